package linop

import (
	"fmt"

	"github.com/roach88/cvxir/internal/ir"
)

// Flatten converts a canonical form into an index-addressed ir.Graph.
//
// Nodes are emitted in post-order: the root's subgraph first, then each
// constraint's in order. A node reachable along several paths is emitted
// once, keyed by pointer identity.
func Flatten(form ir.CanonicalForm) (*ir.Graph, error) {
	f := &flattener{index: make(map[*ir.LinOp]int)}

	root, err := f.visit(form.Root)
	if err != nil {
		return nil, fmt.Errorf("root: %w", err)
	}

	cons := make([]ir.GraphConstraint, len(form.Constraints))
	for i, c := range form.Constraints {
		idx, err := f.visit(c.Expr)
		if err != nil {
			return nil, fmt.Errorf("constraint %d: %w", c.ID, err)
		}
		cons[i] = ir.GraphConstraint{ID: c.ID, Kind: c.Kind, Expr: idx}
	}

	return &ir.Graph{Nodes: f.nodes, Root: root, Constraints: cons}, nil
}

type flattener struct {
	nodes []ir.GraphNode
	index map[*ir.LinOp]int
}

func (f *flattener) visit(op *ir.LinOp) (int, error) {
	if op == nil {
		return 0, fmt.Errorf("nil lin-op: %w", ErrShape)
	}
	if idx, ok := f.index[op]; ok {
		return idx, nil
	}

	node := ir.GraphNode{
		Kind:  op.Kind,
		Shape: op.Shape,
		Leaf:  op.Leaf,
		Key:   op.Key,
	}
	if op.Value != nil {
		v := op.Value.Clone()
		node.Value = &v
	}
	if op.Coeff != nil {
		c, err := f.visit(op.Coeff)
		if err != nil {
			return 0, err
		}
		node.Coeff = &c
	}
	if len(op.Args) > 0 {
		node.Args = make([]int, len(op.Args))
		for i, a := range op.Args {
			idx, err := f.visit(a)
			if err != nil {
				return 0, err
			}
			node.Args[i] = idx
		}
	}

	idx := len(f.nodes)
	f.nodes = append(f.nodes, node)
	f.index[op] = idx
	return idx, nil
}

// Unflatten rebuilds the pointer graph from a flattened graph. Nodes shared
// by index become shared pointers.
func Unflatten(g *ir.Graph) (ir.CanonicalForm, error) {
	ops := make([]*ir.LinOp, len(g.Nodes))
	ref := func(at, i int) (*ir.LinOp, error) {
		if i < 0 || i >= at {
			return nil, fmt.Errorf("node %d: reference %d is not an earlier node", at, i)
		}
		return ops[i], nil
	}

	for i, n := range g.Nodes {
		op := &ir.LinOp{Kind: n.Kind, Shape: n.Shape, Leaf: n.Leaf, Key: n.Key}
		if n.Value != nil {
			v := n.Value.Clone()
			op.Value = &v
		}
		if n.Coeff != nil {
			c, err := ref(i, *n.Coeff)
			if err != nil {
				return ir.CanonicalForm{}, err
			}
			op.Coeff = c
		}
		for _, a := range n.Args {
			arg, err := ref(i, a)
			if err != nil {
				return ir.CanonicalForm{}, err
			}
			op.Args = append(op.Args, arg)
		}
		ops[i] = op
	}

	lookup := func(i int) (*ir.LinOp, error) {
		if i < 0 || i >= len(ops) {
			return nil, fmt.Errorf("reference %d out of range", i)
		}
		return ops[i], nil
	}

	root, err := lookup(g.Root)
	if err != nil {
		return ir.CanonicalForm{}, fmt.Errorf("root: %w", err)
	}
	form := ir.CanonicalForm{Root: root}
	for _, c := range g.Constraints {
		expr, err := lookup(c.Expr)
		if err != nil {
			return ir.CanonicalForm{}, fmt.Errorf("constraint %d: %w", c.ID, err)
		}
		form.Constraints = append(form.Constraints, ir.LinConstraint{ID: c.ID, Kind: c.Kind, Expr: expr})
	}
	return form, nil
}
