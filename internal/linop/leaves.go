package linop

import "github.com/roach88/cvxir/internal/ir"

// LeafRef is a leaf referenced from a lin-op graph.
type LeafRef struct {
	Kind  ir.LinOpKind
	ID    ir.LeafID
	Shape ir.Shape
}

// Variables returns the distinct variable leaves reachable from op, in
// first-seen post-order.
func Variables(op *ir.LinOp) []LeafRef {
	return collect([]*ir.LinOp{op}, ir.LinVariable)
}

// Parameters returns the distinct parameter leaves reachable from op.
func Parameters(op *ir.LinOp) []LeafRef {
	return collect([]*ir.LinOp{op}, ir.LinParameter)
}

// FormLeaves returns every distinct variable and parameter leaf referenced by
// the form's root and constraints, in first-seen order.
func FormLeaves(form ir.CanonicalForm) []LeafRef {
	roots := make([]*ir.LinOp, 0, len(form.Constraints)+1)
	roots = append(roots, form.Root)
	for _, c := range form.Constraints {
		roots = append(roots, c.Expr)
	}
	return collect(roots, ir.LinVariable, ir.LinParameter)
}

func collect(roots []*ir.LinOp, kinds ...ir.LinOpKind) []LeafRef {
	want := make(map[ir.LinOpKind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}

	var out []LeafRef
	seenNode := make(map[*ir.LinOp]bool)
	seenLeaf := make(map[ir.LeafID]bool)
	var walk func(*ir.LinOp)
	walk = func(n *ir.LinOp) {
		if n == nil || seenNode[n] {
			return
		}
		seenNode[n] = true
		if n.Coeff != nil {
			walk(n.Coeff)
		}
		for _, a := range n.Args {
			walk(a)
		}
		if want[n.Kind] && !seenLeaf[n.Leaf] {
			seenLeaf[n.Leaf] = true
			out = append(out, LeafRef{Kind: n.Kind, ID: n.Leaf, Shape: n.Shape})
		}
	}
	for _, r := range roots {
		walk(r)
	}
	return out
}

// NodeCount returns the number of distinct nodes reachable from op.
func NodeCount(op *ir.LinOp) int {
	seen := make(map[*ir.LinOp]bool)
	var walk func(*ir.LinOp)
	walk = func(n *ir.LinOp) {
		if n == nil || seen[n] {
			return
		}
		seen[n] = true
		if n.Coeff != nil {
			walk(n.Coeff)
		}
		for _, a := range n.Args {
			walk(a)
		}
	}
	walk(op)
	return len(seen)
}
