package store

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/cvxir/internal/compiler"
	"github.com/roach88/cvxir/internal/expr"
	"github.com/roach88/cvxir/internal/ir"
	"github.com/roach88/cvxir/internal/testutil"
)

// createTestStore creates a new in-memory store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createFileStore creates a store on disk; WAL needs a real file.
func createFileStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

const portfolioYAML = `
name: portfolio
variables:
  x: {shape: [3]}
parameters:
  mu: {shape: [3], value: [0.1, 0.2, 0.15]}
  gamma: {sign: positive, value: 0.5}
objective: {sense: maximize, expr: transpose(mu) * x - gamma * norm1(x)}
constraints:
  - sum(x) == 1
  - x >= 0
`

// compileTestModel compiles src with a fresh deterministic arena.
func compileTestModel(t *testing.T, src string) *compiler.Model {
	t.Helper()
	m, err := compiler.CompileYAML(strings.NewReader(src),
		compiler.WithArena(testutil.NewArena()))
	require.NoError(t, err)
	return m
}

func quietCanonicalizer() *expr.Canonicalizer {
	return testutil.QuietCanonicalizer()
}

// createTestForm canonicalizes the portfolio model into an unsaved Form.
func createTestForm(t *testing.T) Form {
	t.Helper()
	m := compileTestModel(t, portfolioYAML)
	prog, err := m.Canonicalize(quietCanonicalizer())
	require.NoError(t, err)
	f, err := NewForm(m.Name, prog)
	require.NoError(t, err)
	return f
}

func scalar(v float64) ir.Matrix { return ir.ScalarMatrix(v) }
