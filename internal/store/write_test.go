package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cvxir/internal/ir"
)

func TestWriteForm(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	f := createTestForm(t)

	stored, inserted, err := s.WriteForm(ctx, f)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, int64(1), stored.CreatedSeq)

	got, err := s.ReadForm(ctx, f.Hash)
	require.NoError(t, err)
	assert.Equal(t, f.Hash, got.Hash)
	assert.Equal(t, "portfolio", got.Model)
	assert.Equal(t, ir.SenseMaximize, got.Sense)
	assert.Equal(t, f.ConstraintCount, got.ConstraintCount)
	assert.Equal(t, f.AuxCount, got.AuxCount)
	assert.Equal(t, f.Leaves, got.Leaves)
	assert.Equal(t, f.Hash, ir.MustFormHash(got.Graph), "stored graph hashes to its key")
}

func TestWriteForm_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	f := createTestForm(t)

	first, inserted, err := s.WriteForm(ctx, f)
	require.NoError(t, err)
	require.True(t, inserted)

	second, inserted, err := s.WriteForm(ctx, f)
	require.NoError(t, err)
	assert.False(t, inserted, "duplicate hash is ignored")
	assert.Equal(t, first.CreatedSeq, second.CreatedSeq, "existing seq is returned")

	forms, err := s.ListForms(ctx, "")
	require.NoError(t, err)
	assert.Len(t, forms, 1)
}

func TestWriteRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	f, _, err := s.WriteForm(ctx, createTestForm(t))
	require.NoError(t, err)

	run, err := s.WriteRun(ctx, Run{
		ID:       "run-1",
		Model:    "portfolio",
		FormHash: f.Hash,
		Parameters: map[string]ir.Matrix{
			"gamma": scalar(0.5),
			"mu":    {Rows: 3, Cols: 1, Data: []float64{0.1, 0.2, 0.15}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, f.CreatedSeq+1, run.Seq)

	got, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, run.Seq, got.Seq)
	assert.False(t, got.CacheHit)
	require.Len(t, got.Parameters, 2)
	assert.Equal(t, []float64{0.1, 0.2, 0.15}, got.Parameters["mu"].Data)
}

func TestWriteRun_Errors(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.WriteRun(ctx, Run{Model: "m", FormHash: "x"})
	assert.ErrorContains(t, err, "empty id")

	_, err = s.WriteRun(ctx, Run{ID: "r", Model: "m", FormHash: "missing"})
	assert.Error(t, err, "form must exist")
}

func TestWriteRun_DuplicateKeepsFirst(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	f, _, err := s.WriteForm(ctx, createTestForm(t))
	require.NoError(t, err)

	first, err := s.WriteRun(ctx, Run{ID: "r", Model: "portfolio", FormHash: f.Hash,
		Parameters: map[string]ir.Matrix{"gamma": scalar(1)}})
	require.NoError(t, err)

	again, err := s.WriteRun(ctx, Run{ID: "r", Model: "portfolio", FormHash: f.Hash, CacheHit: true,
		Parameters: map[string]ir.Matrix{"gamma": scalar(2)}})
	require.NoError(t, err)
	assert.Equal(t, first.Seq, again.Seq)
	assert.False(t, again.CacheHit)
	assert.Equal(t, 1.0, again.Parameters["gamma"].Data[0])
}

func TestWriteStructure(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	f, _, err := s.WriteForm(ctx, createTestForm(t))
	require.NoError(t, err)

	_, ok, err := s.LookupStructure(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.WriteStructure(ctx, "abc", f.Hash, "portfolio"))
	require.NoError(t, s.WriteStructure(ctx, "abc", f.Hash, "portfolio"), "idempotent")

	got, ok, err := s.LookupStructure(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, f.Hash, got.Hash)

	assert.Error(t, s.WriteStructure(ctx, "def", "missing", "portfolio"))
}
