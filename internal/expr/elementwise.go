package expr

import (
	"math"

	"github.com/roach88/cvxir/internal/ir"
	"github.com/roach88/cvxir/internal/linop"
)

func init() {
	// abs(x) = t with x <= t, -x <= t.
	register(AtomDef{
		Kind:         KindAbs,
		Name:         "abs",
		Arity:        1,
		Shape:        shapeSame,
		Sign:         signOf(ir.SignPositive),
		Curvature:    ir.CurvatureConvex,
		Monotonicity: monoBySign,
		Lower: func(l *Lowering, args []*ir.LinOp, _ AtomData) (*ir.LinOp, error) {
			x := args[0]
			t, err := l.NewVariable(x.Shape)
			if err != nil {
				return nil, err
			}
			if err := l.AddLeqDiff(x, t); err != nil {
				return nil, err
			}
			if err := l.AddLeqDiff(linop.Neg(x), t); err != nil {
				return nil, err
			}
			return t, nil
		},
		Eval: func(args []ir.Matrix, _ AtomData) (ir.Matrix, error) {
			return args[0].Map(math.Abs), nil
		},
	})

	// pos(x) = max(x, 0) = t with x <= t, 0 <= t.
	register(AtomDef{
		Kind:         KindPos,
		Name:         "pos",
		Arity:        1,
		Shape:        shapeSame,
		Sign:         signOf(ir.SignPositive),
		Curvature:    ir.CurvatureConvex,
		Monotonicity: monoAll(ir.Increasing),
		Lower: func(l *Lowering, args []*ir.LinOp, _ AtomData) (*ir.LinOp, error) {
			x := args[0]
			t, err := l.NewVariable(x.Shape)
			if err != nil {
				return nil, err
			}
			if err := l.AddLeqDiff(x, t); err != nil {
				return nil, err
			}
			l.AddLeq(linop.Neg(t))
			return t, nil
		},
		Eval: func(args []ir.Matrix, _ AtomData) (ir.Matrix, error) {
			return args[0].Map(func(v float64) float64 { return math.Max(v, 0) }), nil
		},
	})

	// neg_part(x) = max(-x, 0) = t with -x <= t, 0 <= t.
	register(AtomDef{
		Kind:         KindNegPart,
		Name:         "neg_part",
		Arity:        1,
		Shape:        shapeSame,
		Sign:         signOf(ir.SignPositive),
		Curvature:    ir.CurvatureConvex,
		Monotonicity: monoAll(ir.Decreasing),
		Lower: func(l *Lowering, args []*ir.LinOp, _ AtomData) (*ir.LinOp, error) {
			x := args[0]
			t, err := l.NewVariable(x.Shape)
			if err != nil {
				return nil, err
			}
			if err := l.AddLeqDiff(linop.Neg(x), t); err != nil {
				return nil, err
			}
			l.AddLeq(linop.Neg(t))
			return t, nil
		},
		Eval: func(args []ir.Matrix, _ AtomData) (ir.Matrix, error) {
			return args[0].Map(func(v float64) float64 { return math.Max(-v, 0) }), nil
		},
	})

	// max_elemwise(x1, ..., xn) = t with xi <= t for every i.
	register(AtomDef{
		Kind:         KindMaxElemwise,
		Name:         "max_elemwise",
		Arity:        -1,
		Shape:        shapeBroadcast,
		Sign:         signFold(ir.SignMax),
		Curvature:    ir.CurvatureConvex,
		Monotonicity: monoAll(ir.Increasing),
		Lower: func(l *Lowering, args []*ir.LinOp, _ AtomData) (*ir.LinOp, error) {
			t, err := l.NewVariable(broadcastOps(args))
			if err != nil {
				return nil, err
			}
			for _, x := range args {
				if err := l.AddLeqDiff(x, t); err != nil {
					return nil, err
				}
			}
			return t, nil
		},
		Eval: func(args []ir.Matrix, _ AtomData) (ir.Matrix, error) {
			return foldMatrices(args, math.Max)
		},
	})

	// min_elemwise(x1, ..., xn) = t with t <= xi for every i.
	register(AtomDef{
		Kind:         KindMinElemwise,
		Name:         "min_elemwise",
		Arity:        -1,
		Shape:        shapeBroadcast,
		Sign:         signFold(ir.SignMin),
		Curvature:    ir.CurvatureConcave,
		Monotonicity: monoAll(ir.Increasing),
		Lower: func(l *Lowering, args []*ir.LinOp, _ AtomData) (*ir.LinOp, error) {
			t, err := l.NewVariable(broadcastOps(args))
			if err != nil {
				return nil, err
			}
			for _, x := range args {
				if err := l.AddLeqDiff(t, x); err != nil {
					return nil, err
				}
			}
			return t, nil
		},
		Eval: func(args []ir.Matrix, _ AtomData) (ir.Matrix, error) {
			return foldMatrices(args, math.Min)
		},
	})
}

func broadcastOps(args []*ir.LinOp) ir.Shape {
	out := ir.ScalarShape
	for _, a := range args {
		if !a.Shape.IsScalar() {
			out = a.Shape
		}
	}
	return out
}

func foldMatrices(args []ir.Matrix, f func(x, y float64) float64) (ir.Matrix, error) {
	acc := args[0].Clone()
	for _, a := range args[1:] {
		var err error
		if acc, err = ir.ZipWith(acc, a, f); err != nil {
			return ir.Matrix{}, err
		}
	}
	return acc, nil
}

// Abs returns |x| entry-wise.
func Abs(x *Expr) (*Expr, error) {
	return newAtom(KindAbs, []*Expr{x}, AtomData{})
}

// Pos returns max(x, 0) entry-wise.
func Pos(x *Expr) (*Expr, error) {
	return newAtom(KindPos, []*Expr{x}, AtomData{})
}

// NegPart returns max(-x, 0) entry-wise.
func NegPart(x *Expr) (*Expr, error) {
	return newAtom(KindNegPart, []*Expr{x}, AtomData{})
}

// MaxElemwise returns the entry-wise maximum. 1x1 arguments broadcast.
func MaxElemwise(args ...*Expr) (*Expr, error) {
	return newAtom(KindMaxElemwise, args, AtomData{})
}

// MinElemwise returns the entry-wise minimum. 1x1 arguments broadcast.
func MinElemwise(args ...*Expr) (*Expr, error) {
	return newAtom(KindMinElemwise, args, AtomData{})
}
