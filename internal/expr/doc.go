// Package expr implements DCP expression trees and their canonicalization.
//
// LEAVES:
//
// Variables, Parameters and Constants are created through an Arena, which
// owns their records (name, shape, sign, value). Tree nodes hold only the
// leaf's ir.LeafID, so value updates and substitution work on handles:
//
//	a := expr.NewArena()
//	p, _ := a.Parameter(2, 2, expr.WithSign("positive"))
//	_ = p.SetValue([][]float64{{1, 2}, {3, 4}})
//
// ATOMS:
//
// Every atom kind has one AtomDef in a closed dispatch table, entered
// through register. A definition carries the atom's shape rule (run once at
// construction), sign table, curvature, per-argument monotonicity, lowering
// rule and numeric evaluation. Sign and curvature are recomputed from the
// current arguments on every call.
//
// CANONICALIZATION:
//
// A Canonicalizer folds a tree bottom-up into an ir.CanonicalForm. Affine
// atoms map directly onto lin-ops. Convex and concave atoms introduce
// auxiliary variables and constraints (epigraph and hypograph forms). A
// composition the DCP rules cannot certify stops the fold with a
// DCP_VIOLATION error naming the atom and its argument curvatures.
//
// COPYING:
//
// Copy and DeepCopy take an explicit, caller-owned Memo keyed by leaf id.
// A leaf referenced several times is cloned once; pre-seeding the memo
// substitutes a leaf everywhere it occurs.
package expr
