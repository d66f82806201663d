package linop

import (
	"errors"
	"fmt"

	"github.com/roach88/cvxir/internal/ir"
)

// ErrShape is wrapped by every shape-contract violation.
var ErrShape = errors.New("lin-op shape contract violated")

func shapeErr(kind ir.LinOpKind, format string, args ...any) error {
	return fmt.Errorf("%s: %s: %w", kind, fmt.Sprintf(format, args...), ErrShape)
}

// Variable references a variable (or auxiliary variable) leaf.
func Variable(id ir.LeafID, shape ir.Shape) (*ir.LinOp, error) {
	if !shape.Valid() {
		return nil, shapeErr(ir.LinVariable, "invalid shape %s", shape)
	}
	return &ir.LinOp{Kind: ir.LinVariable, Shape: shape, Leaf: id}, nil
}

// Parameter references a parameter leaf. Its value is not read.
func Parameter(id ir.LeafID, shape ir.Shape) (*ir.LinOp, error) {
	if !shape.Valid() {
		return nil, shapeErr(ir.LinParameter, "invalid shape %s", shape)
	}
	return &ir.LinOp{Kind: ir.LinParameter, Shape: shape, Leaf: id}, nil
}

// Constant wraps constant data. 1x1 data becomes scalar_const.
func Constant(m ir.Matrix) *ir.LinOp {
	v := m.Clone()
	kind := ir.LinDenseConst
	if m.Shape().IsScalar() {
		kind = ir.LinScalarConst
	}
	return &ir.LinOp{Kind: kind, Shape: m.Shape(), Value: &v}
}

// Scalar is shorthand for a scalar_const node.
func Scalar(v float64) *ir.LinOp {
	return Constant(ir.ScalarMatrix(v))
}

// Sum adds operands of identical shape. A single operand is returned as is.
func Sum(args ...*ir.LinOp) (*ir.LinOp, error) {
	if len(args) == 0 {
		return nil, shapeErr(ir.LinSum, "no operands")
	}
	if len(args) == 1 {
		return args[0], nil
	}
	s := args[0].Shape
	for i, a := range args[1:] {
		if a.Shape != s {
			return nil, shapeErr(ir.LinSum, "operand %d has shape %s, expected %s", i+1, a.Shape, s)
		}
	}
	return &ir.LinOp{Kind: ir.LinSum, Shape: s, Args: args}, nil
}

// Neg negates x.
func Neg(x *ir.LinOp) *ir.LinOp {
	return &ir.LinOp{Kind: ir.LinNeg, Shape: x.Shape, Args: []*ir.LinOp{x}}
}

// Mul computes coeff*x. The coefficient must not reference any variable.
// A 1x1 operand on either side scales the other.
func Mul(coeff, x *ir.LinOp) (*ir.LinOp, error) {
	if !IsConstant(coeff) {
		return nil, shapeErr(ir.LinMul, "coefficient references a variable")
	}
	s, err := productShape(coeff.Shape, x.Shape)
	if err != nil {
		return nil, shapeErr(ir.LinMul, "%v", err)
	}
	return &ir.LinOp{Kind: ir.LinMul, Shape: s, Args: []*ir.LinOp{x}, Coeff: coeff}, nil
}

// RMul computes x*coeff. The coefficient must not reference any variable.
func RMul(x, coeff *ir.LinOp) (*ir.LinOp, error) {
	if !IsConstant(coeff) {
		return nil, shapeErr(ir.LinRMul, "coefficient references a variable")
	}
	s, err := productShape(x.Shape, coeff.Shape)
	if err != nil {
		return nil, shapeErr(ir.LinRMul, "%v", err)
	}
	return &ir.LinOp{Kind: ir.LinRMul, Shape: s, Args: []*ir.LinOp{x}, Coeff: coeff}, nil
}

// productShape returns the shape of a*b, with 1x1 operands acting as scalars.
func productShape(a, b ir.Shape) (ir.Shape, error) {
	switch {
	case a.IsScalar():
		return b, nil
	case b.IsScalar():
		return a, nil
	case a.Cols != b.Rows:
		return ir.Shape{}, fmt.Errorf("incompatible dimensions %s * %s", a, b)
	}
	return ir.Shape{Rows: a.Rows, Cols: b.Cols}, nil
}

// Promote broadcasts a 1x1 node to shape. A node already of that shape is
// returned unchanged.
func Promote(x *ir.LinOp, shape ir.Shape) (*ir.LinOp, error) {
	if x.Shape == shape {
		return x, nil
	}
	if !x.Shape.IsScalar() {
		return nil, shapeErr(ir.LinPromote, "cannot promote %s to %s", x.Shape, shape)
	}
	if !shape.Valid() {
		return nil, shapeErr(ir.LinPromote, "invalid target shape %s", shape)
	}
	return &ir.LinOp{Kind: ir.LinPromote, Shape: shape, Args: []*ir.LinOp{x}}, nil
}

// Index selects x[key].
func Index(x *ir.LinOp, key ir.Key) (*ir.LinOp, error) {
	if err := key.Validate(x.Shape); err != nil {
		return nil, shapeErr(ir.LinIndex, "%v", err)
	}
	k := key
	return &ir.LinOp{Kind: ir.LinIndex, Shape: key.Shape(), Args: []*ir.LinOp{x}, Key: &k}, nil
}

// Transpose returns x^T.
func Transpose(x *ir.LinOp) *ir.LinOp {
	return &ir.LinOp{Kind: ir.LinTranspose, Shape: x.Shape.T(), Args: []*ir.LinOp{x}}
}

// Reshape reinterprets x column-major with a shape of equal size.
func Reshape(x *ir.LinOp, shape ir.Shape) (*ir.LinOp, error) {
	if !shape.Valid() || shape.Size() != x.Shape.Size() {
		return nil, shapeErr(ir.LinReshape, "cannot reshape %s to %s", x.Shape, shape)
	}
	return &ir.LinOp{Kind: ir.LinReshape, Shape: shape, Args: []*ir.LinOp{x}}, nil
}

// SumEntries returns the 1x1 sum of x's entries.
func SumEntries(x *ir.LinOp) *ir.LinOp {
	return &ir.LinOp{Kind: ir.LinSumEntries, Shape: ir.ScalarShape, Args: []*ir.LinOp{x}}
}

// HStack concatenates operands with equal row counts.
func HStack(args ...*ir.LinOp) (*ir.LinOp, error) {
	if len(args) == 0 {
		return nil, shapeErr(ir.LinHStack, "no operands")
	}
	rows, cols := args[0].Shape.Rows, 0
	for i, a := range args {
		if a.Shape.Rows != rows {
			return nil, shapeErr(ir.LinHStack, "operand %d has %d rows, expected %d", i, a.Shape.Rows, rows)
		}
		cols += a.Shape.Cols
	}
	return &ir.LinOp{Kind: ir.LinHStack, Shape: ir.Shape{Rows: rows, Cols: cols}, Args: args}, nil
}

// VStack concatenates operands with equal column counts.
func VStack(args ...*ir.LinOp) (*ir.LinOp, error) {
	if len(args) == 0 {
		return nil, shapeErr(ir.LinVStack, "no operands")
	}
	rows, cols := 0, args[0].Shape.Cols
	for i, a := range args {
		if a.Shape.Cols != cols {
			return nil, shapeErr(ir.LinVStack, "operand %d has %d columns, expected %d", i, a.Shape.Cols, cols)
		}
		rows += a.Shape.Rows
	}
	return &ir.LinOp{Kind: ir.LinVStack, Shape: ir.Shape{Rows: rows, Cols: cols}, Args: args}, nil
}

// Sub returns a - b, promoting a 1x1 operand to the other's shape.
func Sub(a, b *ir.LinOp) (*ir.LinOp, error) {
	a, b, err := Broadcast(a, b)
	if err != nil {
		return nil, err
	}
	return Sum(a, Neg(b))
}

// Broadcast promotes whichever of a, b is 1x1 to the other's shape.
func Broadcast(a, b *ir.LinOp) (*ir.LinOp, *ir.LinOp, error) {
	var err error
	switch {
	case a.Shape == b.Shape:
	case a.Shape.IsScalar():
		a, err = Promote(a, b.Shape)
	case b.Shape.IsScalar():
		b, err = Promote(b, a.Shape)
	default:
		err = shapeErr(ir.LinSum, "incompatible shapes %s and %s", a.Shape, b.Shape)
	}
	return a, b, err
}

// Eq builds the constraint expr == 0.
func Eq(id int64, expr *ir.LinOp) ir.LinConstraint {
	return ir.LinConstraint{ID: id, Kind: ir.ConstraintEq, Expr: expr}
}

// Leq builds the constraint expr <= 0.
func Leq(id int64, expr *ir.LinOp) ir.LinConstraint {
	return ir.LinConstraint{ID: id, Kind: ir.ConstraintLeq, Expr: expr}
}

// IsConstant reports whether no variable is reachable from op.
// Parameters count as constant.
func IsConstant(op *ir.LinOp) bool {
	seen := make(map[*ir.LinOp]bool)
	var walk func(*ir.LinOp) bool
	walk = func(n *ir.LinOp) bool {
		if n == nil || seen[n] {
			return true
		}
		seen[n] = true
		if n.Kind == ir.LinVariable {
			return false
		}
		if n.Coeff != nil && !walk(n.Coeff) {
			return false
		}
		for _, a := range n.Args {
			if !walk(a) {
				return false
			}
		}
		return true
	}
	return walk(op)
}
