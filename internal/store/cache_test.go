package store

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cvxir/internal/ir"
	"github.com/roach88/cvxir/internal/linop"
)

func TestCanonicalize_ReusesFormAcrossParameterValues(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first, hit, err := s.Canonicalize(ctx, compileTestModel(t, portfolioYAML), quietCanonicalizer())
	require.NoError(t, err)
	assert.False(t, hit)

	rebound := strings.Replace(portfolioYAML, "value: 0.5", "value: 3", 1)
	second, hit, err := s.Canonicalize(ctx, compileTestModel(t, rebound), quietCanonicalizer())
	require.NoError(t, err)
	assert.True(t, hit, "new parameter values reuse the cached form")
	assert.Equal(t, first.Hash, second.Hash)

	changed := strings.Replace(portfolioYAML, "x >= 0", "x >= -1", 1)
	third, hit, err := s.Canonicalize(ctx, compileTestModel(t, changed), quietCanonicalizer())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.NotEqual(t, first.Hash, third.Hash)
}

func TestCanonicalize_CachedProgramMatchesModel(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, _, err := s.Canonicalize(ctx, compileTestModel(t, portfolioYAML), quietCanonicalizer())
	require.NoError(t, err)

	m := compileTestModel(t, portfolioYAML)
	f, hit, err := s.Canonicalize(ctx, m, quietCanonicalizer())
	require.NoError(t, err)
	require.True(t, hit)

	prog, err := f.Program()
	require.NoError(t, err)
	require.NoError(t, linop.CheckForm(prog.Form()))

	x := []float64{0.2, 0.3, 0.5}
	require.NoError(t, m.Bind(map[string]any{"x": x}))
	env := linop.Env{}
	for _, l := range prog.Leaves {
		switch l.Kind {
		case ir.LeafVariable, ir.LeafParameter:
			e, ok := m.Leaf(l.Name)
			require.True(t, ok, l.Name)
			require.Equal(t, e.ID(), l.ID, "cached ids match a fresh compile")
			v, err := e.Value()
			require.NoError(t, err)
			env[l.ID] = v
		}
	}

	direct, err := m.Objective.Expr().Value()
	require.NoError(t, err)

	// The canonical objective is affine in x and the aux variables; setting
	// each aux to |x| makes it equal the original (negated for maximize).
	for _, l := range prog.Leaves {
		if l.Kind == ir.LeafAuxiliary {
			env[l.ID] = ir.Matrix{Rows: l.Shape.Rows, Cols: l.Shape.Cols, Data: x[:l.Shape.Size()]}
		}
	}
	got, err := linop.Eval(prog.Objective, env)
	require.NoError(t, err)
	assert.InDelta(t, -direct.Data[0], got.Data[0], 1e-12)
}

func TestCanonicalize_DCPError(t *testing.T) {
	s := createTestStore(t)
	m := compileTestModel(t, `
name: wrong
variables:
  x: {shape: [2]}
objective: {sense: maximize, expr: norm1(x)}
`)
	_, _, err := s.Canonicalize(context.Background(), m, quietCanonicalizer())
	require.Error(t, err)

	forms, err := s.ListForms(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, forms, "failed canonicalization caches nothing")
}

func TestRecordRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	m := compileTestModel(t, portfolioYAML)

	f, hit, err := s.Canonicalize(ctx, m, quietCanonicalizer())
	require.NoError(t, err)
	run, err := s.RecordRun(ctx, m, f, hit)
	require.NoError(t, err)

	parsed, err := uuid.Parse(run.ID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())

	got, err := s.ReadRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, f.Hash, got.FormHash)
	assert.Equal(t, 0.5, got.Parameters["gamma"].Data[0])
	assert.Equal(t, []float64{0.1, 0.2, 0.15}, got.Parameters["mu"].Data)
	assert.NotContains(t, got.Parameters, "x", "variables are not recorded")
}
