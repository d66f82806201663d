package expr

import (
	"fmt"

	"github.com/roach88/cvxir/internal/ir"
	"github.com/roach88/cvxir/internal/linop"
)

func init() {
	register(AtomDef{
		Kind:         KindAdd,
		Name:         "add",
		Arity:        -1,
		Shape:        shapeBroadcast,
		Sign:         signFold(ir.SignAdd),
		Curvature:    ir.CurvatureAffine,
		Monotonicity: monoAll(ir.Increasing),
		Lower: func(_ *Lowering, args []*ir.LinOp, _ AtomData) (*ir.LinOp, error) {
			shapes := make([]ir.Shape, len(args))
			for i, a := range args {
				shapes[i] = a.Shape
			}
			target, err := shapeBroadcast(shapes, AtomData{})
			if err != nil {
				return nil, err
			}
			terms := make([]*ir.LinOp, len(args))
			for i, a := range args {
				if terms[i], err = linop.Promote(a, target); err != nil {
					return nil, err
				}
			}
			return linop.Sum(terms...)
		},
		Eval: func(args []ir.Matrix, _ AtomData) (ir.Matrix, error) {
			acc := args[0]
			for _, a := range args[1:] {
				var err error
				if acc, err = ir.Add(acc, a); err != nil {
					return ir.Matrix{}, err
				}
			}
			return acc.Clone(), nil
		},
	})

	register(AtomDef{
		Kind:         KindNeg,
		Name:         "neg",
		Arity:        1,
		Shape:        shapeSame,
		Sign:         func(args []ir.Sign, _ AtomData) ir.Sign { return args[0].Neg() },
		Curvature:    ir.CurvatureAffine,
		Monotonicity: monoAll(ir.Decreasing),
		Lower: func(_ *Lowering, args []*ir.LinOp, _ AtomData) (*ir.LinOp, error) {
			return linop.Neg(args[0]), nil
		},
		Eval: func(args []ir.Matrix, _ AtomData) (ir.Matrix, error) {
			return args[0].Neg(), nil
		},
	})

	register(AtomDef{
		Kind:  KindMul,
		Name:  "mul",
		Arity: 2,
		Shape: func(args []ir.Shape, _ AtomData) (ir.Shape, error) {
			a, b := args[0], args[1]
			switch {
			case a.IsScalar():
				return b, nil
			case b.IsScalar():
				return a, nil
			case a.Cols != b.Rows:
				return ir.Shape{}, fmt.Errorf("incompatible dimensions %s * %s", a, b)
			}
			return ir.Shape{Rows: a.Rows, Cols: b.Cols}, nil
		},
		Sign:      signFold(ir.SignMul),
		Curvature: ir.CurvatureAffine,
		// Increasing in one factor when the other is known positive,
		// decreasing when it is known negative.
		Monotonicity: func(args []ir.Sign) []ir.Monotonicity {
			other := monoBySign([]ir.Sign{args[1], args[0]})
			return []ir.Monotonicity{other[0], other[1]}
		},
		Check: checkProduct,
		Lower: func(_ *Lowering, args []*ir.LinOp, _ AtomData) (*ir.LinOp, error) {
			if linop.IsConstant(args[0]) {
				return linop.Mul(args[0], args[1])
			}
			return linop.RMul(args[0], args[1])
		},
		Eval: func(args []ir.Matrix, _ AtomData) (ir.Matrix, error) {
			return ir.MatMul(args[0], args[1])
		},
	})

	register(AtomDef{
		Kind:         KindHStack,
		Name:         "hstack",
		Arity:        -1,
		Shape:        func(args []ir.Shape, _ AtomData) (ir.Shape, error) { return stackShape(args, true) },
		Sign:         signFold(ir.SignAdd),
		Curvature:    ir.CurvatureAffine,
		Monotonicity: monoAll(ir.Increasing),
		Lower: func(_ *Lowering, args []*ir.LinOp, _ AtomData) (*ir.LinOp, error) {
			return linop.HStack(args...)
		},
		Eval: func(args []ir.Matrix, _ AtomData) (ir.Matrix, error) {
			return ir.HStack(args...)
		},
	})

	register(AtomDef{
		Kind:         KindVStack,
		Name:         "vstack",
		Arity:        -1,
		Shape:        func(args []ir.Shape, _ AtomData) (ir.Shape, error) { return stackShape(args, false) },
		Sign:         signFold(ir.SignAdd),
		Curvature:    ir.CurvatureAffine,
		Monotonicity: monoAll(ir.Increasing),
		Lower: func(_ *Lowering, args []*ir.LinOp, _ AtomData) (*ir.LinOp, error) {
			return linop.VStack(args...)
		},
		Eval: func(args []ir.Matrix, _ AtomData) (ir.Matrix, error) {
			return ir.VStack(args...)
		},
	})

	register(AtomDef{
		Kind:  KindIndex,
		Name:  "index",
		Arity: 1,
		Shape: func(args []ir.Shape, data AtomData) (ir.Shape, error) {
			if data.Key == nil {
				return ir.Shape{}, fmt.Errorf("missing index key")
			}
			if err := data.Key.Validate(args[0]); err != nil {
				return ir.Shape{}, err
			}
			return data.Key.Shape(), nil
		},
		Sign:         signFirst,
		Curvature:    ir.CurvatureAffine,
		Monotonicity: monoAll(ir.Increasing),
		Lower: func(_ *Lowering, args []*ir.LinOp, data AtomData) (*ir.LinOp, error) {
			return linop.Index(args[0], *data.Key)
		},
		Eval: func(args []ir.Matrix, data AtomData) (ir.Matrix, error) {
			return args[0].Index(*data.Key)
		},
	})

	register(AtomDef{
		Kind:         KindTranspose,
		Name:         "transpose",
		Arity:        1,
		Shape:        func(args []ir.Shape, _ AtomData) (ir.Shape, error) { return args[0].T(), nil },
		Sign:         signFirst,
		Curvature:    ir.CurvatureAffine,
		Monotonicity: monoAll(ir.Increasing),
		Lower: func(_ *Lowering, args []*ir.LinOp, _ AtomData) (*ir.LinOp, error) {
			return linop.Transpose(args[0]), nil
		},
		Eval: func(args []ir.Matrix, _ AtomData) (ir.Matrix, error) {
			return args[0].Transpose(), nil
		},
	})

	register(AtomDef{
		Kind:  KindReshape,
		Name:  "reshape",
		Arity: 1,
		Shape: func(args []ir.Shape, data AtomData) (ir.Shape, error) {
			if data.Shape == nil {
				return ir.Shape{}, fmt.Errorf("missing target shape")
			}
			if !data.Shape.Valid() || data.Shape.Size() != args[0].Size() {
				return ir.Shape{}, fmt.Errorf("cannot reshape %s to %s", args[0], *data.Shape)
			}
			return *data.Shape, nil
		},
		Sign:         signFirst,
		Curvature:    ir.CurvatureAffine,
		Monotonicity: monoAll(ir.Increasing),
		Lower: func(_ *Lowering, args []*ir.LinOp, data AtomData) (*ir.LinOp, error) {
			return linop.Reshape(args[0], *data.Shape)
		},
		Eval: func(args []ir.Matrix, data AtomData) (ir.Matrix, error) {
			return args[0].Reshape(*data.Shape)
		},
	})

	register(AtomDef{
		Kind:         KindSumEntries,
		Name:         "sum_entries",
		Arity:        1,
		Shape:        shapeScalar,
		Sign:         signFirst,
		Curvature:    ir.CurvatureAffine,
		Monotonicity: monoAll(ir.Increasing),
		Lower: func(_ *Lowering, args []*ir.LinOp, _ AtomData) (*ir.LinOp, error) {
			return linop.SumEntries(args[0]), nil
		},
		Eval: func(args []ir.Matrix, _ AtomData) (ir.Matrix, error) {
			return args[0].SumEntries(), nil
		},
	})
}

func stackShape(args []ir.Shape, horizontal bool) (ir.Shape, error) {
	out := args[0]
	for i, s := range args[1:] {
		if horizontal {
			if s.Rows != out.Rows {
				return ir.Shape{}, fmt.Errorf("argument %d has %d rows, expected %d", i+1, s.Rows, out.Rows)
			}
			out.Cols += s.Cols
			continue
		}
		if s.Cols != out.Cols {
			return ir.Shape{}, fmt.Errorf("argument %d has %d columns, expected %d", i+1, s.Cols, out.Cols)
		}
		out.Rows += s.Rows
	}
	return out, nil
}

// Add returns the entry-wise sum. 1x1 operands broadcast; other operands
// must have equal shapes.
func Add(args ...*Expr) (*Expr, error) {
	return newAtom(KindAdd, args, AtomData{})
}

// Neg returns -x.
func Neg(x *Expr) (*Expr, error) {
	return newAtom(KindNeg, []*Expr{x}, AtomData{})
}

// Sub returns a - b.
func Sub(a, b *Expr) (*Expr, error) {
	nb, err := Neg(b)
	if err != nil {
		return nil, err
	}
	return Add(a, nb)
}

// Mul returns a*b. At least one side must be constant (parameters count as
// constant). A 1x1 side scales the other; otherwise this is the matrix
// product.
func Mul(a, b *Expr) (*Expr, error) {
	if a == nil || b == nil {
		return nil, constructionErr("mul", "argument is nil")
	}
	return newAtom(KindMul, []*Expr{a, b}, AtomData{})
}

// checkProduct requires one factor to be a coefficient: a constant built
// from affine atoms only, so it lowers to a variable-free lin-op.
func checkProduct(args []*Expr) error {
	a, b := args[0], args[1]
	if !a.IsConstant() && !b.IsConstant() {
		return fmt.Errorf("cannot multiply two non-constant expressions %s and %s", a.Name(), b.Name())
	}
	if !isCoefficient(a) && !isCoefficient(b) {
		return fmt.Errorf("coefficient of %s * %s must be built from affine atoms over constants and parameters", a.Name(), b.Name())
	}
	return nil
}

// isCoefficient reports whether e is constant and contains no convex or
// concave atom.
func isCoefficient(e *Expr) bool {
	if !e.IsConstant() {
		return false
	}
	ok := true
	e.Walk(func(n *Expr) bool {
		if ok && !n.IsLeaf() && !mustLookup(n.kind).Curvature.IsAffine() {
			ok = false
		}
		return ok
	})
	return ok
}

// HStack concatenates expressions with equal row counts.
func HStack(args ...*Expr) (*Expr, error) {
	return newAtom(KindHStack, args, AtomData{})
}

// VStack concatenates expressions with equal column counts.
func VStack(args ...*Expr) (*Expr, error) {
	return newAtom(KindVStack, args, AtomData{})
}

// Index selects x[rows, cols].
func Index(x *Expr, rows, cols ir.Slice) (*Expr, error) {
	return newAtom(KindIndex, []*Expr{x}, AtomData{Key: &ir.Key{Rows: rows, Cols: cols}})
}

// At selects the single entry x[i, j].
func At(x *Expr, i, j int) (*Expr, error) {
	return Index(x, ir.Slice{Start: i, Stop: i + 1, Step: 1}, ir.Slice{Start: j, Stop: j + 1, Step: 1})
}

// Transpose returns x^T.
func Transpose(x *Expr) (*Expr, error) {
	return newAtom(KindTranspose, []*Expr{x}, AtomData{})
}

// Reshape reinterprets x column-major as rows x cols.
func Reshape(x *Expr, rows, cols int) (*Expr, error) {
	s := ir.Shape{Rows: rows, Cols: cols}
	return newAtom(KindReshape, []*Expr{x}, AtomData{Shape: &s})
}

// SumEntries returns the 1x1 sum of x's entries.
func SumEntries(x *Expr) (*Expr, error) {
	return newAtom(KindSumEntries, []*Expr{x}, AtomData{})
}
