package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/cvxir/internal/ir"
)

// Matrix builds a dense matrix from rows and fails the test on ragged input.
func Matrix(t testing.TB, rows ...[]float64) ir.Matrix {
	t.Helper()
	m, err := ir.MatrixFromRows(rows)
	require.NoError(t, err)
	return m
}

// Vector builds a column vector.
func Vector(t testing.TB, vals ...float64) ir.Matrix {
	t.Helper()
	m, err := ir.ColumnVector(vals)
	require.NoError(t, err)
	return m
}

// RequireMatrixNear fails unless got has want's shape and every entry is
// within tol.
func RequireMatrixNear(t testing.TB, want, got ir.Matrix, tol float64) {
	t.Helper()
	require.Equal(t, want.Shape(), got.Shape(), "shape")
	if !want.ApproxEqual(got, tol) {
		require.Failf(t, "matrices differ", "want %v\ngot  %v", want.RowsSlice(), got.RowsSlice())
	}
}
