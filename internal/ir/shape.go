package ir

import "fmt"

// LeafID is the stable identity of a leaf (variable, parameter, constant)
// or of an auxiliary variable introduced during canonicalization. Ids are
// unique per allocator, not per process: two arenas with private
// allocators both start at 1, so ids from different arenas must not be
// mixed.
type LeafID int64

// Shape is the (rows, cols) dimension of an expression. Both are >= 1.
type Shape struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

// ScalarShape is the 1x1 shape.
var ScalarShape = Shape{Rows: 1, Cols: 1}

// NewShape validates and returns a shape.
func NewShape(rows, cols int) (Shape, error) {
	if rows < 1 || cols < 1 {
		return Shape{}, fmt.Errorf("invalid dimensions (%d, %d): rows and cols must be positive", rows, cols)
	}
	return Shape{Rows: rows, Cols: cols}, nil
}

// Size returns rows*cols.
func (s Shape) Size() int {
	return s.Rows * s.Cols
}

// IsScalar reports whether the shape is 1x1.
func (s Shape) IsScalar() bool {
	return s.Rows == 1 && s.Cols == 1
}

// T returns the transposed shape.
func (s Shape) T() Shape {
	return Shape{Rows: s.Cols, Cols: s.Rows}
}

// Valid reports whether both dimensions are positive.
func (s Shape) Valid() bool {
	return s.Rows >= 1 && s.Cols >= 1
}

func (s Shape) String() string {
	return fmt.Sprintf("(%d, %d)", s.Rows, s.Cols)
}

// Slice selects indices start, start+step, ... below stop along one axis.
type Slice struct {
	Start int `json:"start"`
	Stop  int `json:"stop"`
	Step  int `json:"step"`
}

// Len returns the number of selected indices.
func (s Slice) Len() int {
	if s.Step < 1 || s.Stop <= s.Start {
		return 0
	}
	return (s.Stop - s.Start + s.Step - 1) / s.Step
}

// Validate checks the slice against an axis of length dim.
func (s Slice) Validate(dim int) error {
	if s.Step < 1 {
		return fmt.Errorf("slice step must be positive, got %d", s.Step)
	}
	if s.Start < 0 || s.Stop > dim || s.Start >= s.Stop {
		return fmt.Errorf("slice [%d:%d] out of range for axis of length %d", s.Start, s.Stop, dim)
	}
	return nil
}

// Indices returns the selected indices in order.
func (s Slice) Indices() []int {
	out := make([]int, 0, s.Len())
	for i := s.Start; i < s.Stop; i += s.Step {
		out = append(out, i)
	}
	return out
}

// All returns the slice covering an entire axis of length dim.
func All(dim int) Slice {
	return Slice{Start: 0, Stop: dim, Step: 1}
}

// Key is a two-axis index/slice.
type Key struct {
	Rows Slice `json:"rows"`
	Cols Slice `json:"cols"`
}

// Shape returns the shape selected by the key.
func (k Key) Shape() Shape {
	return Shape{Rows: k.Rows.Len(), Cols: k.Cols.Len()}
}

// Validate checks the key against the shape being indexed.
func (k Key) Validate(s Shape) error {
	if err := k.Rows.Validate(s.Rows); err != nil {
		return fmt.Errorf("rows: %w", err)
	}
	if err := k.Cols.Validate(s.Cols); err != nil {
		return fmt.Errorf("cols: %w", err)
	}
	return nil
}
