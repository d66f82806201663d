package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/cvxir/internal/compiler"
	"github.com/roach88/cvxir/internal/ir"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Type, e.Expected, e.Actual)
}

// evaluateAssertion builds a.Expr in the model's scope and checks one of
// its properties.
func evaluateAssertion(m *compiler.Model, a Assertion, tol float64) error {
	e, err := m.Parse(a.Expr)
	if err != nil {
		return err
	}

	switch a.Type {
	case AssertCurvature:
		want, ok := a.Expect.(string)
		if !ok {
			return fmt.Errorf("curvature expect must be a string, got %T", a.Expect)
		}
		if got := e.Curvature().String(); got != strings.ToLower(want) {
			return &AssertionError{Type: a.Type, Expected: want, Actual: got}
		}

	case AssertSign:
		tok, ok := a.Expect.(string)
		if !ok {
			return fmt.Errorf("sign expect must be a string, got %T", a.Expect)
		}
		want, err := ir.ParseSign(tok)
		if err != nil {
			return err
		}
		if got := e.Sign(); got != want {
			return &AssertionError{Type: a.Type, Expected: want.String(), Actual: got.String()}
		}

	case AssertShape:
		want, err := expectShape(a.Expect)
		if err != nil {
			return err
		}
		if got := e.Shape(); got != want {
			return &AssertionError{Type: a.Type, Expected: want.String(), Actual: got.String()}
		}

	case AssertValue:
		want, err := ir.ToMatrix(a.Expect)
		if err != nil {
			return fmt.Errorf("value expect: %w", err)
		}
		got, err := e.Value()
		if err != nil {
			return err
		}
		if want.Shape().IsScalar() && !got.Shape().IsScalar() {
			want = ir.FilledMatrix(got.Shape(), want.Data[0])
		}
		if !got.ApproxEqual(want, tol) {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprint(want.RowsSlice()), Actual: fmt.Sprint(got.RowsSlice())}
		}

	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
	return nil
}

// expectShape reads a [rows] or [rows, cols] list.
func expectShape(v any) (ir.Shape, error) {
	list, ok := v.([]any)
	if !ok || len(list) == 0 || len(list) > 2 {
		return ir.Shape{}, fmt.Errorf("shape expect must be [rows] or [rows, cols], got %v", v)
	}
	dims := []int{1, 1}
	for i, d := range list {
		n, ok := d.(int)
		if !ok {
			return ir.Shape{}, fmt.Errorf("shape expect: dimension %d is not an integer", i)
		}
		dims[i] = n
	}
	return ir.Shape{Rows: dims[0], Cols: dims[1]}, nil
}
