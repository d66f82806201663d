package expr

import (
	"math"

	"github.com/roach88/cvxir/internal/ir"
	"github.com/roach88/cvxir/internal/linop"
)

func init() {
	// max_entries(x) = t with x <= t entry-wise.
	register(AtomDef{
		Kind:         KindMaxEntries,
		Name:         "max_entries",
		Arity:        1,
		Shape:        shapeScalar,
		Sign:         signFirst,
		Curvature:    ir.CurvatureConvex,
		Monotonicity: monoAll(ir.Increasing),
		Lower: func(l *Lowering, args []*ir.LinOp, _ AtomData) (*ir.LinOp, error) {
			t, err := l.NewVariable(ir.ScalarShape)
			if err != nil {
				return nil, err
			}
			if err := l.AddLeqDiff(args[0], t); err != nil {
				return nil, err
			}
			return t, nil
		},
		Eval: func(args []ir.Matrix, _ AtomData) (ir.Matrix, error) {
			return reduce(args[0], math.Max), nil
		},
	})

	// min_entries(x) = t with t <= x entry-wise.
	register(AtomDef{
		Kind:         KindMinEntries,
		Name:         "min_entries",
		Arity:        1,
		Shape:        shapeScalar,
		Sign:         signFirst,
		Curvature:    ir.CurvatureConcave,
		Monotonicity: monoAll(ir.Increasing),
		Lower: func(l *Lowering, args []*ir.LinOp, _ AtomData) (*ir.LinOp, error) {
			t, err := l.NewVariable(ir.ScalarShape)
			if err != nil {
				return nil, err
			}
			if err := l.AddLeqDiff(t, args[0]); err != nil {
				return nil, err
			}
			return t, nil
		},
		Eval: func(args []ir.Matrix, _ AtomData) (ir.Matrix, error) {
			return reduce(args[0], math.Min), nil
		},
	})

	// norm1(x) = sum(t) with x <= t, -x <= t.
	register(AtomDef{
		Kind:         KindNorm1,
		Name:         "norm1",
		Arity:        1,
		Shape:        shapeScalar,
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
			return linop.SumEntries(t), nil
		},
		Eval: func(args []ir.Matrix, _ AtomData) (ir.Matrix, error) {
			return args[0].Map(math.Abs).SumEntries(), nil
		},
	})

	// norm_inf(x) = t with x <= t, -x <= t entry-wise.
	register(AtomDef{
		Kind:         KindNormInf,
		Name:         "norm_inf",
		Arity:        1,
		Shape:        shapeScalar,
		Sign:         signOf(ir.SignPositive),
		Curvature:    ir.CurvatureConvex,
		Monotonicity: monoBySign,
		Lower: func(l *Lowering, args []*ir.LinOp, _ AtomData) (*ir.LinOp, error) {
			x := args[0]
			t, err := l.NewVariable(ir.ScalarShape)
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
			return reduce(args[0].Map(math.Abs), math.Max), nil
		},
	})
}

func reduce(m ir.Matrix, f func(x, y float64) float64) ir.Matrix {
	acc := m.Data[0]
	for _, v := range m.Data[1:] {
		acc = f(acc, v)
	}
	return ir.ScalarMatrix(acc)
}

// MaxEntries returns the largest entry of x.
func MaxEntries(x *Expr) (*Expr, error) {
	return newAtom(KindMaxEntries, []*Expr{x}, AtomData{})
}

// MinEntries returns the smallest entry of x.
func MinEntries(x *Expr) (*Expr, error) {
	return newAtom(KindMinEntries, []*Expr{x}, AtomData{})
}

// Norm1 returns the sum of absolute entries of x.
func Norm1(x *Expr) (*Expr, error) {
	return newAtom(KindNorm1, []*Expr{x}, AtomData{})
}

// NormInf returns the largest absolute entry of x.
func NormInf(x *Expr) (*Expr, error) {
	return newAtom(KindNormInf, []*Expr{x}, AtomData{})
}
