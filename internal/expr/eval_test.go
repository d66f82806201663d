package expr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cvxir/internal/ir"
)

func TestEval_Atoms(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.x.SetValue([]float64{3, -4}))
	require.NoError(t, f.y.SetValue([]float64{1, 2}))
	require.NoError(t, f.s.SetValue(-1.0))
	require.NoError(t, f.pPos.SetValue([][]float64{{1, 2}, {3, 4}}))
	require.NoError(t, f.pNeg.SetValue(-2.0))

	must := func(e *Expr, err error) *Expr {
		t.Helper()
		require.NoError(t, err)
		return e
	}

	tests := []struct {
		name string
		expr *Expr
		want [][]float64
	}{
		{"add broadcast", must(Add(f.x, f.s)), [][]float64{{2}, {-5}}},
		{"sub", must(Sub(f.x, f.y)), [][]float64{{2}, {-6}}},
		{"neg", must(Neg(f.x)), [][]float64{{-3}, {4}}},
		{"mul matrix", must(Mul(f.pPos, f.x)), [][]float64{{-5}, {-7}}},
		{"mul scalar", must(Mul(f.pNeg, f.x)), [][]float64{{-6}, {8}}},
		{"mul row", must(Mul(f.c, f.x)), [][]float64{{7}}},
		{"hstack", must(HStack(f.x, f.y)), [][]float64{{3, 1}, {-4, 2}}},
		{"vstack", must(VStack(f.x, f.s)), [][]float64{{3}, {-4}, {-1}}},
		{"index", must(At(f.pPos, 1, 0)), [][]float64{{3}}},
		{"index column", must(Index(f.pPos, ir.All(2), ir.Slice{Start: 1, Stop: 2, Step: 1})), [][]float64{{2}, {4}}},
		{"transpose", must(Transpose(f.pPos)), [][]float64{{1, 3}, {2, 4}}},
		{"reshape column-major", must(Reshape(f.pPos, 1, 4)), [][]float64{{1, 3, 2, 4}}},
		{"sum entries", must(SumEntries(f.pPos)), [][]float64{{10}}},
		{"abs", must(Abs(f.x)), [][]float64{{3}, {4}}},
		{"pos", must(Pos(f.x)), [][]float64{{3}, {0}}},
		{"neg part", must(NegPart(f.x)), [][]float64{{0}, {4}}},
		{"max elemwise", must(MaxElemwise(f.x, f.y, f.s)), [][]float64{{3}, {2}}},
		{"min elemwise", must(MinElemwise(f.x, f.y)), [][]float64{{1}, {-4}}},
		{"max entries", must(MaxEntries(f.pPos)), [][]float64{{4}}},
		{"min entries", must(MinEntries(f.x)), [][]float64{{-4}}},
		{"norm1", must(Norm1(f.x)), [][]float64{{7}}},
		{"norm inf", must(NormInf(f.x)), [][]float64{{4}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := tt.expr.Value()
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.RowsSlice())
			assert.True(t, tt.expr.IsSpecified())
		})
	}
}

func TestEval_Unspecified(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.x.SetValue([]float64{1, 2}))
	e, err := Add(f.x, f.y)
	require.NoError(t, err)

	assert.False(t, e.IsSpecified())
	_, err = e.Value()
	require.Error(t, err)
	assert.True(t, IsUnspecifiedValueError(err))
	var xe *Error
	require.ErrorAs(t, err, &xe)
	assert.Equal(t, "y", xe.Node)

	assert.True(t, IsUnsupported(e.SetValue(1.0)))
}

func TestEval_Env(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.pNeg.SetValue(-1.0))
	e, err := Mul(f.pNeg, f.x)
	require.NoError(t, err)

	env := e.Env()
	assert.Len(t, env, 1, "unset x is omitted")
	assert.Equal(t, ir.ScalarMatrix(-1), env[f.pNeg.ID()])
}

func TestGrad_Affine(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.pPos.SetValue([][]float64{{1, 2}, {3, 4}}))
	px, err := Mul(f.pPos, f.x)
	require.NoError(t, err)
	e, err := Add(px, f.y)
	require.NoError(t, err)

	before := f.a.Len()
	g, err := e.Grad()
	require.NoError(t, err)
	assert.Equal(t, before, f.a.Len(), "gradient does not register leaves")

	require.Len(t, g, 2)
	assert.True(t, g[f.x.ID()].Equal(mustMatrix(t, [][]float64{{1, 2}, {3, 4}})))
	assert.True(t, g[f.y.ID()].Equal(ir.Identity(2)))
}

func TestGrad_Reductions(t *testing.T) {
	f := newFixture(t)
	sum, err := SumEntries(f.x)
	require.NoError(t, err)
	g, err := sum.Grad()
	require.NoError(t, err)
	assert.True(t, g[f.x.ID()].Equal(mustMatrix(t, [][]float64{{1, 1}})))

	tr, err := Transpose(f.x)
	require.NoError(t, err)
	g, err = tr.Grad()
	require.NoError(t, err)
	assert.True(t, g[f.x.ID()].Equal(ir.Identity(2)))

	idx, err := At(f.x, 1, 0)
	require.NoError(t, err)
	g, err = idx.Grad()
	require.NoError(t, err)
	assert.True(t, g[f.x.ID()].Equal(mustMatrix(t, [][]float64{{0, 1}})))
}

func TestGrad_Errors(t *testing.T) {
	f := newFixture(t)

	absX, err := Abs(f.x)
	require.NoError(t, err)
	_, err = absX.Grad()
	assert.True(t, IsUnsupported(err))

	px, err := Mul(f.pPos, f.x)
	require.NoError(t, err)
	_, err = px.Grad()
	assert.True(t, IsUnspecifiedValueError(err), "parameter values are needed for the Jacobian")
}

func TestError_Format(t *testing.T) {
	err := &Error{Code: ErrCodeDCPViolation, Message: "abs of unknown", Node: "abs"}
	assert.Equal(t, "DCP_VIOLATION: abs of unknown (node=abs)", err.Error())
	assert.Equal(t, "VALIDATION", (&Error{Code: ErrCodeValidation}).Error())

	wrapped := fmt.Errorf("constraint 2: %w", err)
	assert.ErrorIs(t, wrapped, ErrDCPViolation)
	assert.False(t, errors.Is(wrapped, ErrConstruction))
	assert.True(t, IsDCPViolation(wrapped))
	assert.Equal(t, ErrCodeDCPViolation, CodeOf(wrapped))
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))
}
