package expr

// Parameters returns the distinct parameters in e, in first-seen order.
// A parameter returns itself.
func (e *Expr) Parameters() []*Expr {
	return e.collect(func(k Kind) bool { return k == KindParameter })
}

// Variables returns the distinct variables in e, in first-seen order.
func (e *Expr) Variables() []*Expr {
	return e.collect(func(k Kind) bool { return k == KindVariable })
}

// Constants returns the distinct constants in e, in first-seen order.
func (e *Expr) Constants() []*Expr {
	return e.collect(func(k Kind) bool { return k == KindConstant })
}

// Leaves returns every distinct leaf in e, in first-seen order.
func (e *Expr) Leaves() []*Expr {
	return e.collect(Kind.IsLeaf)
}

func (e *Expr) collect(want func(Kind) bool) []*Expr {
	var out []*Expr
	seenLeaf := make(map[*Arena]map[int64]bool)
	seenNode := make(map[*Expr]bool)
	var walk func(*Expr)
	walk = func(n *Expr) {
		if seenNode[n] {
			return
		}
		seenNode[n] = true
		if n.IsLeaf() {
			ids := seenLeaf[n.arena]
			if ids == nil {
				ids = make(map[int64]bool)
				seenLeaf[n.arena] = ids
			}
			if !ids[int64(n.leaf)] && want(n.kind) {
				out = append(out, n)
			}
			ids[int64(n.leaf)] = true
			return
		}
		for _, a := range n.args {
			walk(a)
		}
	}
	walk(e)
	return out
}

// Walk visits e and its descendants in pre-order, left to right. Shared
// subtrees are visited once. Returning false from fn skips the node's
// children.
func (e *Expr) Walk(fn func(*Expr) bool) {
	seen := make(map[*Expr]bool)
	var walk func(*Expr)
	walk = func(n *Expr) {
		if seen[n] {
			return
		}
		seen[n] = true
		if !fn(n) {
			return
		}
		for _, a := range n.args {
			walk(a)
		}
	}
	walk(e)
}
