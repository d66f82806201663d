package linop

import (
	"fmt"

	"github.com/roach88/cvxir/internal/ir"
)

// Check re-validates every node reachable from op against its kind's shape
// contract. Shared nodes are checked once.
func Check(op *ir.LinOp) error {
	c := &checker{seen: make(map[*ir.LinOp]bool)}
	return c.check(op)
}

// CheckForm validates a canonical form's root and every constraint.
func CheckForm(form ir.CanonicalForm) error {
	c := &checker{seen: make(map[*ir.LinOp]bool)}
	if err := c.check(form.Root); err != nil {
		return fmt.Errorf("root: %w", err)
	}
	ids := make(map[int64]bool, len(form.Constraints))
	for i, con := range form.Constraints {
		if con.Kind != ir.ConstraintEq && con.Kind != ir.ConstraintLeq {
			return fmt.Errorf("constraint %d: unknown kind %q", i, con.Kind)
		}
		if ids[con.ID] {
			return fmt.Errorf("constraint %d: duplicate id %d", i, con.ID)
		}
		ids[con.ID] = true
		if err := c.check(con.Expr); err != nil {
			return fmt.Errorf("constraint %d: %w", i, err)
		}
	}
	return nil
}

type checker struct {
	seen map[*ir.LinOp]bool
}

func (c *checker) check(op *ir.LinOp) error {
	if op == nil {
		return fmt.Errorf("nil lin-op: %w", ErrShape)
	}
	if c.seen[op] {
		return nil
	}
	c.seen[op] = true

	if !ir.ValidLinOpKinds[op.Kind] {
		return fmt.Errorf("unknown lin-op kind %q: %w", op.Kind, ErrShape)
	}
	if !op.Shape.Valid() {
		return shapeErr(op.Kind, "invalid shape %s", op.Shape)
	}
	if op.Coeff != nil {
		if err := c.check(op.Coeff); err != nil {
			return err
		}
	}
	for _, a := range op.Args {
		if err := c.check(a); err != nil {
			return err
		}
	}

	rebuilt, err := rebuild(op)
	if err != nil {
		return err
	}
	if rebuilt.Shape != op.Shape {
		return shapeErr(op.Kind, "declared shape %s, contract gives %s", op.Shape, rebuilt.Shape)
	}
	return nil
}

// rebuild re-derives a node through its builder so the contract lives in
// one place.
func rebuild(op *ir.LinOp) (*ir.LinOp, error) {
	switch op.Kind {
	case ir.LinVariable:
		return Variable(op.Leaf, op.Shape)
	case ir.LinParameter:
		return Parameter(op.Leaf, op.Shape)
	case ir.LinScalarConst, ir.LinDenseConst:
		if op.Value == nil {
			return nil, shapeErr(op.Kind, "missing value")
		}
		if len(op.Value.Data) != op.Value.Rows*op.Value.Cols {
			return nil, shapeErr(op.Kind, "value data has %d entries for %s", len(op.Value.Data), op.Value.Shape())
		}
		if op.Kind == ir.LinScalarConst && !op.Value.Shape().IsScalar() {
			return nil, shapeErr(op.Kind, "scalar constant with shape %s", op.Value.Shape())
		}
		return Constant(*op.Value), nil
	case ir.LinSum:
		return Sum(op.Args...)
	case ir.LinHStack:
		return HStack(op.Args...)
	case ir.LinVStack:
		return VStack(op.Args...)
	}

	if len(op.Args) != 1 {
		return nil, shapeErr(op.Kind, "expected 1 operand, got %d", len(op.Args))
	}
	x := op.Args[0]
	switch op.Kind {
	case ir.LinNeg:
		return Neg(x), nil
	case ir.LinTranspose:
		return Transpose(x), nil
	case ir.LinSumEntries:
		return SumEntries(x), nil
	case ir.LinReshape:
		return Reshape(x, op.Shape)
	case ir.LinPromote:
		return Promote(x, op.Shape)
	case ir.LinIndex:
		if op.Key == nil {
			return nil, shapeErr(op.Kind, "missing key")
		}
		return Index(x, *op.Key)
	case ir.LinMul:
		if op.Coeff == nil {
			return nil, shapeErr(op.Kind, "missing coefficient")
		}
		return Mul(op.Coeff, x)
	case ir.LinRMul:
		if op.Coeff == nil {
			return nil, shapeErr(op.Kind, "missing coefficient")
		}
		return RMul(x, op.Coeff)
	}
	return nil, fmt.Errorf("unknown lin-op kind %q: %w", op.Kind, ErrShape)
}
