package linop

import (
	"errors"
	"fmt"

	"github.com/roach88/cvxir/internal/ir"
)

// ErrUnbound is returned when evaluation reaches a leaf with no value.
var ErrUnbound = errors.New("leaf has no value")

// Env maps variable and parameter ids to their values.
type Env map[ir.LeafID]ir.Matrix

// Eval computes the value of op. Shared nodes are evaluated once.
func Eval(op *ir.LinOp, env Env) (ir.Matrix, error) {
	e := &evaluator{env: env, memo: make(map[*ir.LinOp]ir.Matrix)}
	return e.eval(op)
}

type evaluator struct {
	env  Env
	memo map[*ir.LinOp]ir.Matrix
}

func (e *evaluator) eval(op *ir.LinOp) (ir.Matrix, error) {
	if v, ok := e.memo[op]; ok {
		return v, nil
	}
	v, err := e.compute(op)
	if err != nil {
		return ir.Matrix{}, err
	}
	if v.Shape() != op.Shape {
		return ir.Matrix{}, fmt.Errorf("%s: value has shape %s, node declares %s", op.Kind, v.Shape(), op.Shape)
	}
	e.memo[op] = v
	return v, nil
}

func (e *evaluator) args(op *ir.LinOp) ([]ir.Matrix, error) {
	out := make([]ir.Matrix, len(op.Args))
	for i, a := range op.Args {
		v, err := e.eval(a)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *evaluator) compute(op *ir.LinOp) (ir.Matrix, error) {
	switch op.Kind {
	case ir.LinVariable, ir.LinParameter:
		v, ok := e.env[op.Leaf]
		if !ok {
			return ir.Matrix{}, fmt.Errorf("%s %d: %w", op.Kind, op.Leaf, ErrUnbound)
		}
		return v, nil
	case ir.LinScalarConst, ir.LinDenseConst:
		return op.Value.Clone(), nil
	}

	args, err := e.args(op)
	if err != nil {
		return ir.Matrix{}, err
	}

	switch op.Kind {
	case ir.LinSum:
		acc := args[0].Clone()
		for _, a := range args[1:] {
			if acc, err = ir.Add(acc, a); err != nil {
				return ir.Matrix{}, err
			}
		}
		return acc, nil
	case ir.LinNeg:
		return args[0].Neg(), nil
	case ir.LinMul, ir.LinRMul:
		coeff, err := e.eval(op.Coeff)
		if err != nil {
			return ir.Matrix{}, err
		}
		if op.Kind == ir.LinMul {
			return ir.MatMul(coeff, args[0])
		}
		return ir.MatMul(args[0], coeff)
	case ir.LinPromote:
		return args[0].Promote(op.Shape)
	case ir.LinIndex:
		return args[0].Index(*op.Key)
	case ir.LinTranspose:
		return args[0].Transpose(), nil
	case ir.LinReshape:
		return args[0].Reshape(op.Shape)
	case ir.LinSumEntries:
		return args[0].SumEntries(), nil
	case ir.LinHStack:
		return ir.HStack(args...)
	case ir.LinVStack:
		return ir.VStack(args...)
	}
	return ir.Matrix{}, fmt.Errorf("unknown lin-op kind %q", op.Kind)
}

// Residuals evaluates every constraint expression of form. The returned
// slice is in constraint order.
func Residuals(form ir.CanonicalForm, env Env) ([]ir.Matrix, error) {
	e := &evaluator{env: env, memo: make(map[*ir.LinOp]ir.Matrix)}
	out := make([]ir.Matrix, len(form.Constraints))
	for i, c := range form.Constraints {
		v, err := e.eval(c.Expr)
		if err != nil {
			return nil, fmt.Errorf("constraint %d: %w", c.ID, err)
		}
		out[i] = v
	}
	return out, nil
}

// Satisfied reports whether every constraint holds within tol.
func Satisfied(form ir.CanonicalForm, env Env, tol float64) (bool, error) {
	res, err := Residuals(form, env)
	if err != nil {
		return false, err
	}
	for i, r := range res {
		for _, v := range r.Data {
			switch form.Constraints[i].Kind {
			case ir.ConstraintEq:
				if v > tol || v < -tol {
					return false, nil
				}
			case ir.ConstraintLeq:
				if v > tol {
					return false, nil
				}
			}
		}
	}
	return true, nil
}

// Coefficients returns, for each variable in vars, the Jacobian of the
// affine node op: a (size(op) x size(var)) matrix whose column k is the
// change in vec(op) for a unit change in entry k of vec(var).
//
// env must bind every parameter op reads. Variables not in vars are held at
// zero. Results are exact only for affine nodes.
func Coefficients(op *ir.LinOp, vars []LeafRef, env Env) (map[ir.LeafID]ir.Matrix, error) {
	point := make(Env, len(env)+len(vars))
	for id, v := range env {
		point[id] = v
	}
	for _, ref := range Variables(op) {
		point[ref.ID] = ir.NewMatrix(ref.Shape)
	}
	for _, ref := range vars {
		point[ref.ID] = ir.NewMatrix(ref.Shape)
	}

	base, err := Eval(op, point)
	if err != nil {
		return nil, err
	}

	out := make(map[ir.LeafID]ir.Matrix, len(vars))
	for _, ref := range vars {
		jac := ir.NewMatrix(ir.Shape{Rows: op.Shape.Size(), Cols: ref.Shape.Size()})
		for k := 0; k < ref.Shape.Size(); k++ {
			unit := ir.NewMatrix(ref.Shape)
			unit.Data[k] = 1
			point[ref.ID] = unit
			v, err := Eval(op, point)
			if err != nil {
				return nil, err
			}
			for i := range v.Data {
				jac.Data[k*jac.Rows+i] = v.Data[i] - base.Data[i]
			}
		}
		point[ref.ID] = ir.NewMatrix(ref.Shape)
		out[ref.ID] = jac
	}
	return out, nil
}
