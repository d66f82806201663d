package expr

import (
	"fmt"
	"strings"

	"github.com/roach88/cvxir/internal/ir"
)

// Kind tags every expression node. The set is closed: leaves plus the
// atoms registered in registry.go.
type Kind int

const (
	KindVariable Kind = iota
	KindParameter
	KindConstant

	KindAdd
	KindNeg
	KindMul
	KindHStack
	KindVStack
	KindIndex
	KindTranspose
	KindReshape
	KindSumEntries

	KindAbs
	KindPos
	KindNegPart
	KindMaxElemwise
	KindMinElemwise
	KindMaxEntries
	KindMinEntries
	KindNorm1
	KindNormInf

	kindCount
)

// IsLeaf reports whether the kind is a Variable, Parameter or Constant.
func (k Kind) IsLeaf() bool {
	return k == KindVariable || k == KindParameter || k == KindConstant
}

func (k Kind) String() string {
	switch k {
	case KindVariable:
		return "Variable"
	case KindParameter:
		return "Parameter"
	case KindConstant:
		return "Constant"
	}
	if def, ok := lookup(k); ok {
		return def.Name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func (k Kind) namePrefix() string {
	switch k {
	case KindVariable:
		return "var"
	case KindParameter:
		return "param"
	default:
		return "const"
	}
}

func (k Kind) leafKind() ir.LeafKind {
	switch k {
	case KindVariable:
		return ir.LeafVariable
	case KindParameter:
		return ir.LeafParameter
	default:
		return ir.LeafConstant
	}
}

// AtomData is the non-expression construction data of an atom.
type AtomData struct {
	Key   *ir.Key   `json:"key,omitempty"`   // Index
	Shape *ir.Shape `json:"shape,omitempty"` // Reshape
}

// Expr is a node of an expression tree: a leaf handle or an atom over
// child expressions. Nodes are immutable after construction.
type Expr struct {
	kind  Kind
	arena *Arena
	leaf  ir.LeafID
	args  []*Expr
	data  AtomData
	shape ir.Shape
}

// Kind returns the node's tag.
func (e *Expr) Kind() Kind { return e.kind }

// Arena returns the arena holding the node's leaves.
func (e *Expr) Arena() *Arena { return e.arena }

// ID returns the leaf id. Atoms have id 0.
func (e *Expr) ID() ir.LeafID { return e.leaf }

// IsLeaf reports whether e is a Variable, Parameter or Constant.
func (e *Expr) IsLeaf() bool { return e.kind.IsLeaf() }

// Args returns a copy of the child list.
func (e *Expr) Args() []*Expr {
	out := make([]*Expr, len(e.args))
	copy(out, e.args)
	return out
}

// AtomData returns the atom's construction data.
func (e *Expr) AtomData() AtomData { return e.data }

// Shape returns the node's dimensions.
func (e *Expr) Shape() ir.Shape {
	if e.IsLeaf() {
		return e.arena.record(e.leaf).shape
	}
	return e.shape
}

// Size returns rows*cols.
func (e *Expr) Size() int { return e.Shape().Size() }

// IsScalar reports a 1x1 shape.
func (e *Expr) IsScalar() bool { return e.Shape().IsScalar() }

// Sign returns the sign of every entry, derived from the current args.
func (e *Expr) Sign() ir.Sign {
	if e.IsLeaf() {
		return e.arena.record(e.leaf).sign
	}
	def := mustLookup(e.kind)
	return def.Sign(e.argSigns(), e.data)
}

// IsPositive reports sign zero or positive.
func (e *Expr) IsPositive() bool { return e.Sign().IsPositive() }

// IsNegative reports sign zero or negative.
func (e *Expr) IsNegative() bool { return e.Sign().IsNegative() }

// Curvature returns the DCP curvature, derived from the current args.
func (e *Expr) Curvature() ir.Curvature {
	switch e.kind {
	case KindVariable:
		return ir.CurvatureAffine
	case KindParameter, KindConstant:
		return ir.CurvatureConstant
	}
	def := mustLookup(e.kind)
	args := make([]ir.Curvature, len(e.args))
	for i, a := range e.args {
		args[i] = a.Curvature()
	}
	return ir.DCPCurvature(def.Curvature, def.Monotonicity(e.argSigns()), args)
}

// IsDCP reports whether the curvature is certified.
func (e *Expr) IsDCP() bool { return e.Curvature().IsDCP() }

// IsConstant reports whether the node depends on no variable.
func (e *Expr) IsConstant() bool { return e.Curvature().IsConstant() }

// IsAffine reports constant or affine curvature.
func (e *Expr) IsAffine() bool { return e.Curvature().IsAffine() }

// IsConvex reports constant, affine or convex curvature.
func (e *Expr) IsConvex() bool { return e.Curvature().IsConvex() }

// IsConcave reports constant, affine or concave curvature.
func (e *Expr) IsConcave() bool { return e.Curvature().IsConcave() }

func (e *Expr) argSigns() []ir.Sign {
	out := make([]ir.Sign, len(e.args))
	for i, a := range e.args {
		out[i] = a.Sign()
	}
	return out
}

// Name returns the leaf's name, or a formula over child names for atoms.
func (e *Expr) Name() string {
	if e.IsLeaf() {
		return e.arena.record(e.leaf).name
	}
	switch e.kind {
	case KindAdd:
		parts := make([]string, len(e.args))
		for i, a := range e.args {
			parts[i] = a.Name()
		}
		return strings.Join(parts, " + ")
	case KindNeg:
		return "-" + e.args[0].Name()
	case KindMul:
		return e.args[0].Name() + " * " + e.args[1].Name()
	case KindIndex:
		k := e.data.Key
		return fmt.Sprintf("%s[%d:%d:%d, %d:%d:%d]", e.args[0].Name(),
			k.Rows.Start, k.Rows.Stop, k.Rows.Step, k.Cols.Start, k.Cols.Stop, k.Cols.Step)
	case KindTranspose:
		return e.args[0].Name() + ".T"
	}
	parts := make([]string, len(e.args))
	for i, a := range e.args {
		parts[i] = a.Name()
	}
	return fmt.Sprintf("%s(%s)", mustLookup(e.kind).Name, strings.Join(parts, ", "))
}

// String renders leaves as constructor calls, such as
// Parameter(2, 2, sign="positive"), and atoms as formulas.
func (e *Expr) String() string {
	if !e.IsLeaf() {
		return e.Name()
	}
	s := e.Shape()
	switch e.kind {
	case KindConstant:
		return fmt.Sprintf("Constant(%d, %d)", s.Rows, s.Cols)
	default:
		return fmt.Sprintf("%s(%d, %d, sign=%q)", e.kind, s.Rows, s.Cols, e.Sign().String())
	}
}

// sameArena returns the arena shared by args or a construction error.
func sameArena(name string, args []*Expr) (*Arena, error) {
	if len(args) == 0 {
		return nil, constructionErr(name, "no arguments")
	}
	var a *Arena
	for i, x := range args {
		if x == nil {
			return nil, constructionErr(name, "argument %d is nil", i)
		}
		if a == nil {
			a = x.arena
			continue
		}
		if x.arena != a {
			return nil, constructionErr(name, "argument %d belongs to a different arena", i)
		}
	}
	return a, nil
}
