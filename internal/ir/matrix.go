package ir

import (
	"fmt"
	"math"
)

// Matrix is a small dense matrix stored column-major.
// Entry (i, j) lives at Data[j*Rows+i].
type Matrix struct {
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	Data []float64 `json:"data"`
}

// NewMatrix returns a zero matrix of the given shape.
func NewMatrix(s Shape) Matrix {
	return Matrix{Rows: s.Rows, Cols: s.Cols, Data: make([]float64, s.Size())}
}

// ScalarMatrix returns a 1x1 matrix.
func ScalarMatrix(v float64) Matrix {
	return Matrix{Rows: 1, Cols: 1, Data: []float64{v}}
}

// FilledMatrix returns a matrix with every entry set to v.
func FilledMatrix(s Shape, v float64) Matrix {
	m := NewMatrix(s)
	for i := range m.Data {
		m.Data[i] = v
	}
	return m
}

// Identity returns the n x n identity.
func Identity(n int) Matrix {
	m := NewMatrix(Shape{Rows: n, Cols: n})
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// MatrixFromRows builds a matrix from row-major nested slices.
func MatrixFromRows(rows [][]float64) (Matrix, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return Matrix{}, fmt.Errorf("matrix must have at least one row and one column")
	}
	cols := len(rows[0])
	m := NewMatrix(Shape{Rows: len(rows), Cols: cols})
	for i, row := range rows {
		if len(row) != cols {
			return Matrix{}, fmt.Errorf("row %d has %d entries, expected %d", i, len(row), cols)
		}
		for j, v := range row {
			m.Set(i, j, v)
		}
	}
	return m, nil
}

// ColumnVector builds an n x 1 matrix.
func ColumnVector(vals []float64) (Matrix, error) {
	if len(vals) == 0 {
		return Matrix{}, fmt.Errorf("vector must be non-empty")
	}
	data := make([]float64, len(vals))
	copy(data, vals)
	return Matrix{Rows: len(vals), Cols: 1, Data: data}, nil
}

// ToMatrix converts numeric Go values to a Matrix.
//
// Supported inputs: float64, float32, int, int64, []float64 (column vector),
// [][]float64 (row-major), []any and [][]any of numbers (as decoded from
// YAML or JSON), Matrix and *Matrix.
func ToMatrix(v any) (Matrix, error) {
	switch val := v.(type) {
	case nil:
		return Matrix{}, fmt.Errorf("value is nil")
	case Matrix:
		if err := val.check(); err != nil {
			return Matrix{}, err
		}
		return val.Clone(), nil
	case *Matrix:
		if val == nil {
			return Matrix{}, fmt.Errorf("value is nil")
		}
		return ToMatrix(*val)
	case float64:
		return ScalarMatrix(val), nil
	case float32:
		return ScalarMatrix(float64(val)), nil
	case int:
		return ScalarMatrix(float64(val)), nil
	case int64:
		return ScalarMatrix(float64(val)), nil
	case []float64:
		return ColumnVector(val)
	case [][]float64:
		return MatrixFromRows(val)
	case []any:
		if len(val) == 0 {
			return Matrix{}, fmt.Errorf("value is empty")
		}
		if _, nested := val[0].([]any); nested {
			rows := make([][]float64, len(val))
			for i, r := range val {
				inner, ok := r.([]any)
				if !ok {
					return Matrix{}, fmt.Errorf("[%d]: expected a row, got %T", i, r)
				}
				row, err := toFloats(inner)
				if err != nil {
					return Matrix{}, fmt.Errorf("[%d]%w", i, err)
				}
				rows[i] = row
			}
			return MatrixFromRows(rows)
		}
		vals, err := toFloats(val)
		if err != nil {
			return Matrix{}, err
		}
		return ColumnVector(vals)
	default:
		return Matrix{}, fmt.Errorf("unsupported numeric value type: %T", v)
	}
}

func toFloats(vals []any) ([]float64, error) {
	out := make([]float64, len(vals))
	for i, v := range vals {
		switch n := v.(type) {
		case float64:
			out[i] = n
		case float32:
			out[i] = float64(n)
		case int:
			out[i] = float64(n)
		case int64:
			out[i] = float64(n)
		default:
			return nil, fmt.Errorf("[%d]: expected a number, got %T", i, v)
		}
	}
	return out, nil
}

func (m Matrix) check() error {
	if m.Rows < 1 || m.Cols < 1 {
		return fmt.Errorf("invalid matrix dimensions (%d, %d)", m.Rows, m.Cols)
	}
	if len(m.Data) != m.Rows*m.Cols {
		return fmt.Errorf("matrix data has %d entries, expected %d", len(m.Data), m.Rows*m.Cols)
	}
	return nil
}

// Shape returns the matrix dimensions.
func (m Matrix) Shape() Shape {
	return Shape{Rows: m.Rows, Cols: m.Cols}
}

// At returns entry (i, j).
func (m Matrix) At(i, j int) float64 {
	return m.Data[j*m.Rows+i]
}

// Set assigns entry (i, j).
func (m Matrix) Set(i, j int, v float64) {
	m.Data[j*m.Rows+i] = v
}

// Clone returns a deep copy.
func (m Matrix) Clone() Matrix {
	data := make([]float64, len(m.Data))
	copy(data, m.Data)
	return Matrix{Rows: m.Rows, Cols: m.Cols, Data: data}
}

// Equal reports exact entry-wise equality.
func (m Matrix) Equal(o Matrix) bool {
	if m.Rows != o.Rows || m.Cols != o.Cols || len(m.Data) != len(o.Data) {
		return false
	}
	for i := range m.Data {
		if m.Data[i] != o.Data[i] {
			return false
		}
	}
	return true
}

// ApproxEqual reports entry-wise equality within an absolute tolerance.
func (m Matrix) ApproxEqual(o Matrix, tol float64) bool {
	if m.Rows != o.Rows || m.Cols != o.Cols {
		return false
	}
	for i := range m.Data {
		if math.Abs(m.Data[i]-o.Data[i]) > tol {
			return false
		}
	}
	return true
}

// RowsSlice returns the matrix as row-major nested slices.
func (m Matrix) RowsSlice() [][]float64 {
	out := make([][]float64, m.Rows)
	for i := range out {
		out[i] = make([]float64, m.Cols)
		for j := range out[i] {
			out[i][j] = m.At(i, j)
		}
	}
	return out
}

// Sign returns the sign shared by every entry.
func (m Matrix) Sign() Sign {
	pos, neg := true, true
	for _, v := range m.Data {
		if v > 0 {
			neg = false
		}
		if v < 0 {
			pos = false
		}
	}
	switch {
	case pos && neg:
		return SignZero
	case pos:
		return SignPositive
	case neg:
		return SignNegative
	}
	return SignUnknown
}

// Map applies f entry-wise.
func (m Matrix) Map(f func(float64) float64) Matrix {
	out := m.Clone()
	for i, v := range out.Data {
		out.Data[i] = f(v)
	}
	return out
}

// Promote broadcasts a 1x1 matrix to shape s. Other matrices must already
// have shape s.
func (m Matrix) Promote(s Shape) (Matrix, error) {
	if m.Shape() == s {
		return m.Clone(), nil
	}
	if !m.Shape().IsScalar() {
		return Matrix{}, fmt.Errorf("cannot promote %s to %s", m.Shape(), s)
	}
	return FilledMatrix(s, m.Data[0]), nil
}

// ZipWith combines two matrices entry-wise, broadcasting scalars.
func ZipWith(a, b Matrix, f func(x, y float64) float64) (Matrix, error) {
	s := a.Shape()
	if s.IsScalar() {
		s = b.Shape()
	}
	pa, err := a.Promote(s)
	if err != nil {
		return Matrix{}, err
	}
	pb, err := b.Promote(s)
	if err != nil {
		return Matrix{}, err
	}
	for i := range pa.Data {
		pa.Data[i] = f(pa.Data[i], pb.Data[i])
	}
	return pa, nil
}

// Add returns a+b with scalar broadcasting.
func Add(a, b Matrix) (Matrix, error) {
	return ZipWith(a, b, func(x, y float64) float64 { return x + y })
}

// Neg returns -m.
func (m Matrix) Neg() Matrix {
	return m.Map(func(v float64) float64 { return -v })
}

// MatMul returns a*b. A 1x1 operand scales the other.
func MatMul(a, b Matrix) (Matrix, error) {
	if a.Shape().IsScalar() {
		s := a.Data[0]
		return b.Map(func(v float64) float64 { return s * v }), nil
	}
	if b.Shape().IsScalar() {
		s := b.Data[0]
		return a.Map(func(v float64) float64 { return v * s }), nil
	}
	if a.Cols != b.Rows {
		return Matrix{}, fmt.Errorf("incompatible dimensions %s * %s", a.Shape(), b.Shape())
	}
	out := NewMatrix(Shape{Rows: a.Rows, Cols: b.Cols})
	for j := 0; j < b.Cols; j++ {
		for k := 0; k < a.Cols; k++ {
			bkj := b.At(k, j)
			if bkj == 0 {
				continue
			}
			for i := 0; i < a.Rows; i++ {
				out.Data[j*out.Rows+i] += a.At(i, k) * bkj
			}
		}
	}
	return out, nil
}

// Transpose returns m^T.
func (m Matrix) Transpose() Matrix {
	out := NewMatrix(m.Shape().T())
	for i := 0; i < m.Rows; i++ {
		for j := 0; j < m.Cols; j++ {
			out.Set(j, i, m.At(i, j))
		}
	}
	return out
}

// Reshape reinterprets the column-major data with a new shape of equal size.
func (m Matrix) Reshape(s Shape) (Matrix, error) {
	if s.Size() != m.Shape().Size() {
		return Matrix{}, fmt.Errorf("cannot reshape %s to %s", m.Shape(), s)
	}
	out := m.Clone()
	out.Rows, out.Cols = s.Rows, s.Cols
	return out, nil
}

// Index returns the sub-matrix selected by k.
func (m Matrix) Index(k Key) (Matrix, error) {
	if err := k.Validate(m.Shape()); err != nil {
		return Matrix{}, err
	}
	out := NewMatrix(k.Shape())
	for oj, j := range k.Cols.Indices() {
		for oi, i := range k.Rows.Indices() {
			out.Set(oi, oj, m.At(i, j))
		}
	}
	return out, nil
}

// SumEntries returns the 1x1 sum of all entries.
func (m Matrix) SumEntries() Matrix {
	var total float64
	for _, v := range m.Data {
		total += v
	}
	return ScalarMatrix(total)
}

// HStack concatenates matrices with equal row counts left to right.
func HStack(ms ...Matrix) (Matrix, error) {
	if len(ms) == 0 {
		return Matrix{}, fmt.Errorf("hstack needs at least one matrix")
	}
	rows, cols := ms[0].Rows, 0
	for _, m := range ms {
		if m.Rows != rows {
			return Matrix{}, fmt.Errorf("hstack row mismatch: %d vs %d", m.Rows, rows)
		}
		cols += m.Cols
	}
	out := Matrix{Rows: rows, Cols: cols, Data: make([]float64, 0, rows*cols)}
	for _, m := range ms {
		out.Data = append(out.Data, m.Data...)
	}
	return out, nil
}

// VStack concatenates matrices with equal column counts top to bottom.
func VStack(ms ...Matrix) (Matrix, error) {
	if len(ms) == 0 {
		return Matrix{}, fmt.Errorf("vstack needs at least one matrix")
	}
	rows, cols := 0, ms[0].Cols
	for _, m := range ms {
		if m.Cols != cols {
			return Matrix{}, fmt.Errorf("vstack column mismatch: %d vs %d", m.Cols, cols)
		}
		rows += m.Rows
	}
	out := NewMatrix(Shape{Rows: rows, Cols: cols})
	offset := 0
	for _, m := range ms {
		for i := 0; i < m.Rows; i++ {
			for j := 0; j < cols; j++ {
				out.Set(offset+i, j, m.At(i, j))
			}
		}
		offset += m.Rows
	}
	return out, nil
}
