package expr

import (
	"github.com/roach88/cvxir/internal/ir"
)

// LeafOption configures a Variable or Parameter.
type LeafOption func(*leafConfig)

type leafConfig struct {
	name     string
	sign     string
	hasSign  bool
	value    any
	hasValue bool
}

// WithName sets the leaf name. Without it the name is synthesized from the
// kind prefix and the id.
func WithName(name string) LeafOption {
	return func(c *leafConfig) {
		c.name = name
	}
}

// WithSign declares the sign: positive, negative, zero or unknown.
func WithSign(token string) LeafOption {
	return func(c *leafConfig) {
		c.sign = token
		c.hasSign = true
	}
}

// WithValue sets the initial value.
func WithValue(v any) LeafOption {
	return func(c *leafConfig) {
		c.value = v
		c.hasValue = true
	}
}

// Variable creates a rows x cols optimization variable.
func (a *Arena) Variable(rows, cols int, opts ...LeafOption) (*Expr, error) {
	return a.newLeaf(KindVariable, rows, cols, opts)
}

// Parameter creates a rows x cols parameter. Its value may be assigned and
// reassigned at any time; canonicalization never reads it.
func (a *Arena) Parameter(rows, cols int, opts ...LeafOption) (*Expr, error) {
	return a.newLeaf(KindParameter, rows, cols, opts)
}

func (a *Arena) newLeaf(kind Kind, rows, cols int, opts []LeafOption) (*Expr, error) {
	var cfg leafConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	shape, err := ir.NewShape(rows, cols)
	if err != nil {
		return nil, constructionErr(kind.String(), "%v", err)
	}

	sign := ir.SignUnknown
	if cfg.hasSign {
		sign, err = ir.ParseSign(cfg.sign)
		if err != nil {
			return nil, constructionErr(kind.String(), "%v", err)
		}
	}

	var value *ir.Matrix
	if cfg.hasValue {
		m, err := checkValue(kind.String(), shape, cfg.value)
		if err != nil {
			return nil, err
		}
		value = &m
	}

	id := a.register(kind, cfg.name, shape, sign, value)
	return &Expr{kind: kind, arena: a, leaf: id}, nil
}

// Constant wraps numeric data. Its sign is inferred from the entries.
func (a *Arena) Constant(v any, opts ...LeafOption) (*Expr, error) {
	var cfg leafConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	m, err := ir.ToMatrix(v)
	if err != nil {
		return nil, constructionErr("Constant", "%v", err)
	}
	id := a.register(KindConstant, cfg.name, m.Shape(), m.Sign(), &m)
	return &Expr{kind: KindConstant, arena: a, leaf: id}, nil
}

func checkValue(node string, shape ir.Shape, v any) (ir.Matrix, error) {
	m, err := ir.ToMatrix(v)
	if err != nil {
		return ir.Matrix{}, validationErr(node, "%v", err)
	}
	if m.Shape() != shape {
		return ir.Matrix{}, validationErr(node, "value has shape %s, expected %s", m.Shape(), shape)
	}
	return m, nil
}

// Value returns the assigned value of a leaf, or the evaluated value of an
// atom. Reading an unassigned Parameter or Variable fails with an
// UNSPECIFIED_VALUE error.
func (e *Expr) Value() (ir.Matrix, error) {
	if !e.IsLeaf() {
		return e.Eval()
	}
	v, ok := e.arena.value(e.leaf)
	if !ok {
		return ir.Matrix{}, unspecifiedErr(e.Name())
	}
	return v, nil
}

// SetValue assigns a value to a Parameter or Variable. The value must match
// the declared shape. Accepted inputs are those of ir.ToMatrix.
func (e *Expr) SetValue(v any) error {
	switch e.kind {
	case KindParameter, KindVariable:
	case KindConstant:
		return constructionErr(e.Name(), "constant data is immutable")
	default:
		return unsupportedErr(e.Name(), "cannot assign a value to an atom")
	}
	m, err := checkValue(e.Name(), e.Shape(), v)
	if err != nil {
		return err
	}
	e.arena.setValue(e.leaf, m)
	return nil
}

// IsSpecified reports whether a leaf value has been assigned. Constants are
// always specified; atoms are specified when every leaf below them is.
func (e *Expr) IsSpecified() bool {
	if e.IsLeaf() {
		_, ok := e.arena.value(e.leaf)
		return ok
	}
	for _, a := range e.args {
		if !a.IsSpecified() {
			return false
		}
	}
	return true
}

// LeafData is the reconstruction record of a leaf.
type LeafData struct {
	Rows  int        `json:"rows"`
	Cols  int        `json:"cols"`
	Name  string     `json:"name"`
	Sign  string     `json:"sign"`
	Value *ir.Matrix `json:"value,omitempty"`
}

// Data returns the data needed to rebuild the leaf. Atoms return the zero
// LeafData; use AtomData for them.
func (e *Expr) Data() LeafData {
	if !e.IsLeaf() {
		return LeafData{}
	}
	s := e.Shape()
	d := LeafData{Rows: s.Rows, Cols: s.Cols, Name: e.Name(), Sign: e.Sign().String()}
	if v, ok := e.arena.value(e.leaf); ok {
		d.Value = &v
	}
	return d
}

// Grad returns the gradient of e with respect to each variable it depends
// on. Parameters and constants return an empty map. A variable returns the
// identity over its entries. Affine atoms return their Jacobian; other atoms
// are UNSUPPORTED.
func (e *Expr) Grad() (map[ir.LeafID]ir.Matrix, error) {
	switch e.kind {
	case KindParameter, KindConstant:
		return map[ir.LeafID]ir.Matrix{}, nil
	case KindVariable:
		return map[ir.LeafID]ir.Matrix{e.leaf: ir.Identity(e.Size())}, nil
	}
	return e.affineGrad()
}
