package expr

import (
	"github.com/roach88/cvxir/internal/ident"
	"github.com/roach88/cvxir/internal/ir"
	"github.com/roach88/cvxir/internal/linop"
)

// Eval computes the value of e from the current leaf values. Any unassigned
// leaf below e yields an UNSPECIFIED_VALUE error.
func (e *Expr) Eval() (ir.Matrix, error) {
	memo := make(map[*Expr]ir.Matrix)
	var eval func(*Expr) (ir.Matrix, error)
	eval = func(n *Expr) (ir.Matrix, error) {
		if v, ok := memo[n]; ok {
			return v, nil
		}
		var (
			v   ir.Matrix
			err error
		)
		if n.IsLeaf() {
			v, err = n.Value()
		} else {
			args := make([]ir.Matrix, len(n.args))
			for i, a := range n.args {
				if args[i], err = eval(a); err != nil {
					return ir.Matrix{}, err
				}
			}
			def := mustLookup(n.kind)
			v, err = def.Eval(args, n.data)
			if err != nil {
				err = constructionErr(def.Name, "evaluation failed: %v", err)
			}
		}
		if err != nil {
			return ir.Matrix{}, err
		}
		memo[n] = v
		return v, nil
	}
	return eval(e)
}

// Env returns the values of every leaf below e that has one, keyed by id,
// for use with linop.Eval.
func (e *Expr) Env() linop.Env {
	env := make(linop.Env)
	for _, leaf := range e.Leaves() {
		if v, ok := leaf.arena.value(leaf.leaf); ok {
			env[leaf.leaf] = v
		}
	}
	return env
}

// affineGrad lowers an affine tree and recovers each variable's Jacobian.
// Lowering draws ids from a private allocator so the arena's sequence is
// untouched.
func (e *Expr) affineGrad() (map[ir.LeafID]ir.Matrix, error) {
	if !e.IsAffine() {
		return nil, unsupportedErr(e.Name(), "gradient is only defined for affine expressions, got %s", e.Curvature())
	}

	env := make(linop.Env)
	for _, p := range e.Parameters() {
		v, err := p.Value()
		if err != nil {
			return nil, err
		}
		env[p.leaf] = v
	}

	ids := ident.New()
	l := NewCanonicalizer().newLowering(e.arena, ids.Next)
	root, err := l.lower(e)
	if err != nil {
		return nil, err
	}

	vars := e.Variables()
	refs := make([]linop.LeafRef, len(vars))
	for i, v := range vars {
		refs[i] = linop.LeafRef{Kind: ir.LinVariable, ID: v.leaf, Shape: v.Shape()}
	}
	grads, err := linop.Coefficients(root.op, refs, env)
	if err != nil {
		return nil, constructionErr(e.Name(), "gradient evaluation failed: %v", err)
	}
	return grads, nil
}
