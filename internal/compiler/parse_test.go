package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cvxir/internal/expr"
	"github.com/roach88/cvxir/internal/ir"
	"github.com/roach88/cvxir/internal/testutil"
)

func testScope(t *testing.T) *scope {
	t.Helper()
	a := testutil.NewArena()
	must := func(e *expr.Expr, err error) *expr.Expr {
		t.Helper()
		require.NoError(t, err)
		return e
	}
	return &scope{arena: a, names: map[string]*expr.Expr{
		"x":  must(a.Variable(3, 1, expr.WithName("x"))),
		"y":  must(a.Variable(3, 1, expr.WithName("y"))),
		"M":  must(a.Variable(2, 3, expr.WithName("M"))),
		"mu": must(a.Parameter(3, 1, expr.WithName("mu"))),
		"g":  must(a.Parameter(1, 1, expr.WithName("g"), expr.WithSign("positive"))),
	}}
}

func TestParseExpr(t *testing.T) {
	tests := []struct {
		src   string
		kind  expr.Kind
		shape ir.Shape
		name  string
	}{
		{"x", expr.KindVariable, ir.Shape{Rows: 3, Cols: 1}, "x"},
		{"x + y + 1", expr.KindAdd, ir.Shape{Rows: 3, Cols: 1}, ""},
		{"x - y", expr.KindAdd, ir.Shape{Rows: 3, Cols: 1}, "x + -y"},
		{"-x", expr.KindNeg, ir.Shape{Rows: 3, Cols: 1}, "-x"},
		{"+x", expr.KindVariable, ir.Shape{Rows: 3, Cols: 1}, "x"},
		{"2 * x", expr.KindMul, ir.Shape{Rows: 3, Cols: 1}, ""},
		{"x / 4", expr.KindMul, ir.Shape{Rows: 3, Cols: 1}, ""},
		{"transpose(mu) * x", expr.KindMul, ir.ScalarShape, "mu.T * x"},
		{"mu.T * x", expr.KindMul, ir.ScalarShape, "mu.T * x"},
		{"g * norm1(x)", expr.KindMul, ir.ScalarShape, "g * norm1(x)"},
		{"abs(x)", expr.KindAbs, ir.Shape{Rows: 3, Cols: 1}, "abs(x)"},
		{"max(x, y, 0)", expr.KindMaxElemwise, ir.Shape{Rows: 3, Cols: 1}, ""},
		{"min(x, y)", expr.KindMinElemwise, ir.Shape{Rows: 3, Cols: 1}, "min_elemwise(x, y)"},
		{"sum(x)", expr.KindSumEntries, ir.ScalarShape, "sum_entries(x)"},
		{"norm_inf(M)", expr.KindNormInf, ir.ScalarShape, "norm_inf(M)"},
		{"reshape(M, 3, 2)", expr.KindReshape, ir.Shape{Rows: 3, Cols: 2}, ""},
		{"hstack(x, y)", expr.KindHStack, ir.Shape{Rows: 3, Cols: 2}, "hstack(x, y)"},
		{"vstack(x, y)", expr.KindVStack, ir.Shape{Rows: 6, Cols: 1}, ""},
		{"x[1]", expr.KindIndex, ir.ScalarShape, "x[1:2:1, 0:1:1]"},
		{"M[1][2]", expr.KindIndex, ir.ScalarShape, "M[1:2:1, 2:3:1]"},
		{"at(M, 0, 1)", expr.KindIndex, ir.ScalarShape, ""},
		{"index(M, 0, 2, 1, 3)", expr.KindIndex, ir.Shape{Rows: 2, Cols: 2}, ""},
		{"[1, 2, 3]", expr.KindConstant, ir.Shape{Rows: 3, Cols: 1}, ""},
		{"[[1, 2, 3]] * x", expr.KindMul, ir.ScalarShape, ""},
		{"(((x)))", expr.KindVariable, ir.Shape{Rows: 3, Cols: 1}, "x"},
		{"-2.5", expr.KindConstant, ir.ScalarShape, ""},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			s := testScope(t)
			e, err := s.parseExpr(tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, e.Kind())
			assert.Equal(t, tt.shape, e.Shape())
			if tt.name != "" {
				assert.Equal(t, tt.name, e.Name())
			}
		})
	}
}

func TestParseExpr_Values(t *testing.T) {
	s := testScope(t)
	require.NoError(t, s.names["x"].SetValue([]float64{1, -2, 3}))
	require.NoError(t, s.names["mu"].SetValue([]float64{0.5, 1, 2}))

	tests := []struct {
		src  string
		want float64
	}{
		{"transpose(mu) * x", 0.5 - 2 + 6},
		{"sum(x / 2)", 1},
		{"norm1(x) - 1", 5},
		{"max_entries(x)", 3},
		{"x[1]", -2},
		{"[[1, 1, 1]] * abs(x)", 6},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			e, err := s.parseExpr(tt.src)
			require.NoError(t, err)
			v, err := e.Value()
			require.NoError(t, err)
			assert.InDelta(t, tt.want, v.Data[0], 1e-12)
		})
	}
}

func TestParseExpr_Errors(t *testing.T) {
	tests := []struct {
		src string
		msg string
	}{
		{"x +", "syntax error"},
		{"z", `undefined name "z"`},
		{"foo(x)", `unknown function "foo"`},
		{"abs(x, y)", "abs takes 1 arguments, got 2"},
		{"max()", "max needs at least one argument"},
		{"reshape(x, n, 1)", "must be an integer literal"},
		{"x / y", "division is only defined by a numeric literal"},
		{"x / 0", "division by zero"},
		{"x <= y", "only allowed in constraints"},
		{"x.y", "only the .T selector"},
		{"x[y]", "index must be an integer literal"},
		{`"str"`, "unsupported syntax"},
		{"[[1, 2], [3]]", "row 1 has"},
		{"[x]", "list entries must be numeric literals"},
		{"x * y", "cannot multiply two non-constant"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			_, err := testScope(t).parseExpr(tt.src)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestParseExpr_ShapeErrorsKeepCode(t *testing.T) {
	_, err := testScope(t).parseExpr("x + M")
	require.Error(t, err)
	assert.True(t, expr.IsConstructionError(err))

	_, err = testScope(t).parseExpr("at(x, 5, 0)")
	require.Error(t, err)
	assert.True(t, expr.IsConstructionError(err))
}

func TestParseConstraint(t *testing.T) {
	tests := []struct {
		src  string
		kind ir.ConstraintKind
		str  string
	}{
		{"x <= y", ir.ConstraintLeq, "x <= y"},
		{"x >= 0", ir.ConstraintLeq, ""},
		{"sum(x) == 1", ir.ConstraintEq, ""},
		{"norm1(x) <= g", ir.ConstraintLeq, "norm1(x) <= g"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			c, err := testScope(t).parseConstraint(tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, c.Kind())
			assert.True(t, c.IsDCP())
			if tt.str != "" {
				assert.Equal(t, tt.str, c.String())
			}
		})
	}

	for _, src := range []string{"x", "x < y", "norm1(x)"} {
		_, err := testScope(t).parseConstraint(src)
		assert.Error(t, err, src)
	}
}

func TestReferencedNames(t *testing.T) {
	names, err := referencedNames("max(x, y)[1] + transpose(mu) * x - norm1(M.T)")
	require.NoError(t, err)
	assert.Equal(t, []string{"M", "mu", "x", "y"}, names)

	_, err = referencedNames("(")
	assert.Error(t, err)
}

func TestFunctions(t *testing.T) {
	fns := Functions()
	assert.Contains(t, fns, "norm1")
	assert.Contains(t, fns, "reshape")
	assert.IsIncreasing(t, fns)
}
