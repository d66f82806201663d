package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cvxir/internal/testutil"
)

const unboundYAML = `
name: scaled
variables:
  x: {shape: [2]}
parameters:
  k: {sign: positive}
  c: {shape: [2], value: [1, 1]}
objective: {sense: minimize, expr: k * norm1(x - c)}
`

func TestGetRunState(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	m := compileTestModel(t, portfolioYAML)

	f, hit, err := s.Canonicalize(ctx, m, quietCanonicalizer())
	require.NoError(t, err)
	run, err := s.RecordRun(ctx, m, f, hit)
	require.NoError(t, err)

	st, err := s.GetRunState(ctx, run.ID)
	require.NoError(t, err)
	assert.True(t, st.IsComplete())
	assert.Equal(t, f.Hash, st.Form.Hash)

	env := st.Env()
	assert.Len(t, env, 2, "gamma and mu")
	assert.Equal(t, 0.5, env[m.Parameters["gamma"].ID()].Data[0])
	testutil.RequireMatrixNear(t, testutil.Vector(t, 0.1, 0.2, 0.15), env[m.Parameters["mu"].ID()], 0)
}

func TestGetRunState_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.GetRunState(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindIncompleteRuns(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	complete := compileTestModel(t, portfolioYAML)
	f, hit, err := s.Canonicalize(ctx, complete, quietCanonicalizer())
	require.NoError(t, err)
	_, err = s.RecordRun(ctx, complete, f, hit)
	require.NoError(t, err)

	partial := compileTestModel(t, unboundYAML)
	f, hit, err = s.Canonicalize(ctx, partial, quietCanonicalizer())
	require.NoError(t, err)
	run, err := s.RecordRun(ctx, partial, f, hit)
	require.NoError(t, err)

	states, err := s.FindIncompleteRuns(ctx, "")
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, run.ID, states[0].Run.ID)
	assert.Equal(t, []string{"k"}, states[0].Unbound)

	states, err = s.FindIncompleteRuns(ctx, "portfolio")
	require.NoError(t, err)
	assert.Empty(t, states)
}
