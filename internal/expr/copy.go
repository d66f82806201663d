package expr

import "github.com/roach88/cvxir/internal/ir"

// Memo maps original leaf ids to the nodes that replace them in a copy.
// It is owned by the caller and shared across one copy traversal. Pre-seed
// it to substitute leaves: every occurrence of the id resolves to the
// mapped node.
type Memo map[ir.LeafID]*Expr

// Copy copies a single node.
//
// For a leaf, a memo hit returns the mapped node. Otherwise a new leaf of
// the same kind is created in the same arena with a fresh id and the same
// Data (shape, name, sign, current value) and recorded under the old id.
//
// For an atom, a new node of the same kind is built over args (the node's
// own args when args is nil) with the same AtomData. Shape rules run again,
// so substituted args must keep the atom well-formed.
func (e *Expr) Copy(args []*Expr, memo Memo) (*Expr, error) {
	if memo == nil {
		return nil, constructionErr(e.Name(), "copy requires a non-nil memo")
	}
	if e.IsLeaf() {
		return e.copyLeaf(memo)
	}
	if args == nil {
		args = e.args
	}
	return newAtom(e.kind, args, e.data)
}

func (e *Expr) copyLeaf(memo Memo) (*Expr, error) {
	if mapped, ok := memo[e.leaf]; ok {
		return mapped, nil
	}
	d := e.Data()
	var value *ir.Matrix
	if d.Value != nil {
		v := d.Value.Clone()
		value = &v
	}
	r := e.arena.record(e.leaf)
	id := e.arena.register(e.kind, d.Name, r.shape, r.sign, value)
	c := &Expr{kind: e.kind, arena: e.arena, leaf: id}
	memo[e.leaf] = c
	return c, nil
}

// DeepCopy copies the whole tree. Leaves are resolved through memo; an atom
// subtree reachable along several paths is copied once and stays shared.
func (e *Expr) DeepCopy(memo Memo) (*Expr, error) {
	if memo == nil {
		return nil, constructionErr(e.Name(), "copy requires a non-nil memo")
	}
	atoms := make(map[*Expr]*Expr)
	var walk func(*Expr) (*Expr, error)
	walk = func(n *Expr) (*Expr, error) {
		if n.IsLeaf() {
			return n.copyLeaf(memo)
		}
		if c, ok := atoms[n]; ok {
			return c, nil
		}
		args := make([]*Expr, len(n.args))
		for i, a := range n.args {
			c, err := walk(a)
			if err != nil {
				return nil, err
			}
			args[i] = c
		}
		c, err := n.Copy(args, memo)
		if err != nil {
			return nil, err
		}
		atoms[n] = c
		return c, nil
	}
	return walk(e)
}
