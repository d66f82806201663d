package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRows(t *testing.T, rows [][]float64) Matrix {
	t.Helper()
	m, err := MatrixFromRows(rows)
	require.NoError(t, err)
	return m
}

func TestMatrixFromRows_ColumnMajor(t *testing.T) {
	m := mustRows(t, [][]float64{{1, 2}, {3, 4}})

	assert.Equal(t, Shape{Rows: 2, Cols: 2}, m.Shape())
	assert.Equal(t, []float64{1, 3, 2, 4}, m.Data)
	assert.Equal(t, 2.0, m.At(0, 1))
	assert.Equal(t, [][]float64{{1, 2}, {3, 4}}, m.RowsSlice())
}

func TestMatrixFromRows_Ragged(t *testing.T) {
	_, err := MatrixFromRows([][]float64{{1, 2}, {3}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 1")
}

func TestToMatrix(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected Shape
		wantErr  bool
	}{
		{"float", 2.5, Shape{1, 1}, false},
		{"int", 3, Shape{1, 1}, false},
		{"vector", []float64{1, 2, 3}, Shape{3, 1}, false},
		{"rows", [][]float64{{1, 2, 3}}, Shape{1, 3}, false},
		{"yaml rows", []any{[]any{1, 2.5}, []any{3, 4}}, Shape{2, 2}, false},
		{"yaml vector", []any{1, 2}, Shape{2, 1}, false},
		{"matrix", ScalarMatrix(1), Shape{1, 1}, false},
		{"nil", nil, Shape{}, true},
		{"string", "1", Shape{}, true},
		{"bad entry", []any{"x"}, Shape{}, true},
		{"broken matrix", Matrix{Rows: 2, Cols: 2, Data: []float64{1}}, Shape{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ToMatrix(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, m.Shape())
		})
	}
}

func TestToMatrix_ClonesInput(t *testing.T) {
	src := mustRows(t, [][]float64{{1, 2}})
	m, err := ToMatrix(src)
	require.NoError(t, err)
	src.Set(0, 0, 99)
	assert.Equal(t, 1.0, m.At(0, 0))
}

func TestMatrixSign(t *testing.T) {
	assert.Equal(t, SignZero, FilledMatrix(Shape{2, 2}, 0).Sign())
	assert.Equal(t, SignPositive, mustRows(t, [][]float64{{0, 1}}).Sign())
	assert.Equal(t, SignNegative, mustRows(t, [][]float64{{0, -1}}).Sign())
	assert.Equal(t, SignUnknown, mustRows(t, [][]float64{{1, -1}}).Sign())
}

func TestMatMul(t *testing.T) {
	a := mustRows(t, [][]float64{{1, 2}, {3, 4}})
	b := mustRows(t, [][]float64{{5}, {6}})

	out, err := MatMul(a, b)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{17}, {39}}, out.RowsSlice())

	scaled, err := MatMul(ScalarMatrix(2), a)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{2, 4}, {6, 8}}, scaled.RowsSlice())

	_, err = MatMul(b, b)
	require.Error(t, err)
}

func TestMatrixStackAndIndex(t *testing.T) {
	a := mustRows(t, [][]float64{{1, 2}, {3, 4}})
	b := mustRows(t, [][]float64{{5}, {6}})

	h, err := HStack(a, b)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 2, 5}, {3, 4, 6}}, h.RowsSlice())

	v, err := VStack(a, mustRows(t, [][]float64{{7, 8}}))
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 2}, {3, 4}, {7, 8}}, v.RowsSlice())

	_, err = VStack(a, b)
	require.Error(t, err)

	sub, err := h.Index(Key{Rows: All(2), Cols: Slice{Start: 0, Stop: 3, Step: 2}})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 5}, {3, 6}}, sub.RowsSlice())
}

func TestMatrixReshapeTranspose(t *testing.T) {
	a := mustRows(t, [][]float64{{1, 2}, {3, 4}})

	r, err := a.Reshape(Shape{Rows: 4, Cols: 1})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1}, {3}, {2}, {4}}, r.RowsSlice())

	_, err = a.Reshape(Shape{Rows: 3, Cols: 1})
	require.Error(t, err)

	assert.Equal(t, [][]float64{{1, 3}, {2, 4}}, a.Transpose().RowsSlice())
	assert.Equal(t, ScalarMatrix(10), a.SumEntries())
}

func TestAddBroadcast(t *testing.T) {
	a := mustRows(t, [][]float64{{1, 2}})
	out, err := Add(a, ScalarMatrix(1))
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{2, 3}}, out.RowsSlice())

	_, err = Add(a, mustRows(t, [][]float64{{1}, {2}}))
	require.Error(t, err)
}

func TestSlice(t *testing.T) {
	s := Slice{Start: 1, Stop: 6, Step: 2}
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, []int{1, 3, 5}, s.Indices())
	require.NoError(t, s.Validate(6))
	require.Error(t, s.Validate(5))
	require.Error(t, Slice{Start: 0, Stop: 2, Step: 0}.Validate(2))
	require.Error(t, Slice{Start: 2, Stop: 2, Step: 1}.Validate(4))
}

func TestNewShape(t *testing.T) {
	s, err := NewShape(2, 3)
	require.NoError(t, err)
	assert.Equal(t, 6, s.Size())
	assert.Equal(t, Shape{Rows: 3, Cols: 2}, s.T())
	assert.Equal(t, "(2, 3)", s.String())

	_, err = NewShape(0, 1)
	require.Error(t, err)
	_, err = NewShape(1, -2)
	require.Error(t, err)
}
