package expr

import (
	"fmt"

	"github.com/roach88/cvxir/internal/ir"
)

// AtomDef is the dispatch-table entry of one atom kind.
type AtomDef struct {
	Kind Kind
	Name string

	// Arity is the exact argument count, or -1 for variadic atoms (at least one).
	Arity int

	// Shape derives the result shape and rejects malformed arguments.
	// It runs once, at construction.
	Shape func(args []ir.Shape, data AtomData) (ir.Shape, error)

	// Sign derives the result sign from the argument signs.
	Sign func(args []ir.Sign, data AtomData) ir.Sign

	// Curvature is the atom's own curvature as a function.
	Curvature ir.Curvature

	// Monotonicity gives the atom's monotonicity in each argument, which may
	// depend on the argument signs.
	Monotonicity func(args []ir.Sign) []ir.Monotonicity

	// Lower builds the representative lin-op and any new constraints from
	// the lowered arguments.
	Lower func(l *Lowering, args []*ir.LinOp, data AtomData) (*ir.LinOp, error)

	// Eval computes the atom numerically.
	Eval func(args []ir.Matrix, data AtomData) (ir.Matrix, error)

	// Check, when set, rejects argument trees the atom cannot lower. It runs
	// at construction, after the arity check.
	Check func(args []*Expr) error
}

var registry [kindCount]*AtomDef

// register is the only way an atom kind enters the dispatch table.
func register(def AtomDef) {
	if def.Kind.IsLeaf() || def.Kind < 0 || def.Kind >= kindCount {
		panic(fmt.Sprintf("expr: cannot register kind %d as an atom", def.Kind))
	}
	if registry[def.Kind] != nil {
		panic(fmt.Sprintf("expr: atom %s registered twice", def.Name))
	}
	if def.Shape == nil || def.Sign == nil || def.Monotonicity == nil || def.Lower == nil || def.Eval == nil {
		panic(fmt.Sprintf("expr: atom %s is missing a rule", def.Name))
	}
	d := def
	registry[def.Kind] = &d
}

func lookup(k Kind) (*AtomDef, bool) {
	if k < 0 || k >= kindCount || registry[k] == nil {
		return nil, false
	}
	return registry[k], true
}

func mustLookup(k Kind) *AtomDef {
	def, ok := lookup(k)
	if !ok {
		panic(fmt.Sprintf("expr: no atom registered for kind %d", int(k)))
	}
	return def
}

// Atoms returns the registered atom definitions in kind order.
func Atoms() []AtomDef {
	var out []AtomDef
	for _, d := range registry {
		if d != nil {
			out = append(out, *d)
		}
	}
	return out
}

// newAtom validates arguments through the kind's shape rule and builds the
// node.
func newAtom(kind Kind, args []*Expr, data AtomData) (*Expr, error) {
	def := mustLookup(kind)
	arena, err := sameArena(def.Name, args)
	if err != nil {
		return nil, err
	}
	if def.Arity >= 0 && len(args) != def.Arity {
		return nil, constructionErr(def.Name, "expected %d arguments, got %d", def.Arity, len(args))
	}
	if def.Check != nil {
		if err := def.Check(args); err != nil {
			return nil, constructionErr(def.Name, "%v", err)
		}
	}
	shapes := make([]ir.Shape, len(args))
	for i, a := range args {
		shapes[i] = a.Shape()
	}
	shape, err := def.Shape(shapes, data)
	if err != nil {
		return nil, constructionErr(def.Name, "%v", err)
	}
	owned := make([]*Expr, len(args))
	copy(owned, args)
	return &Expr{kind: kind, arena: arena, args: owned, data: data, shape: shape}, nil
}

// Common rule helpers.

func monoAll(m ir.Monotonicity) func([]ir.Sign) []ir.Monotonicity {
	return func(args []ir.Sign) []ir.Monotonicity {
		out := make([]ir.Monotonicity, len(args))
		for i := range out {
			out[i] = m
		}
		return out
	}
}

// monoBySign is increasing in positive args, decreasing in negative args
// and non-monotone otherwise.
func monoBySign(args []ir.Sign) []ir.Monotonicity {
	out := make([]ir.Monotonicity, len(args))
	for i, s := range args {
		switch {
		case s.IsPositive():
			out[i] = ir.Increasing
		case s.IsNegative():
			out[i] = ir.Decreasing
		default:
			out[i] = ir.Nonmonotone
		}
	}
	return out
}

func signOf(s ir.Sign) func([]ir.Sign, AtomData) ir.Sign {
	return func([]ir.Sign, AtomData) ir.Sign { return s }
}

func signFirst(args []ir.Sign, _ AtomData) ir.Sign { return args[0] }

func signFold(op func(a, b ir.Sign) ir.Sign) func([]ir.Sign, AtomData) ir.Sign {
	return func(args []ir.Sign, _ AtomData) ir.Sign {
		acc := args[0]
		for _, s := range args[1:] {
			acc = op(acc, s)
		}
		return acc
	}
}

func shapeSame(args []ir.Shape, _ AtomData) (ir.Shape, error) { return args[0], nil }

func shapeScalar([]ir.Shape, AtomData) (ir.Shape, error) { return ir.ScalarShape, nil }

// shapeBroadcast accepts equal shapes, with 1x1 shapes promoted to the
// common shape.
func shapeBroadcast(args []ir.Shape, _ AtomData) (ir.Shape, error) {
	out := ir.ScalarShape
	for _, s := range args {
		if s.IsScalar() {
			continue
		}
		if out.IsScalar() {
			out = s
			continue
		}
		if s != out {
			return ir.Shape{}, fmt.Errorf("incompatible dimensions %s and %s", out, s)
		}
	}
	return out, nil
}
