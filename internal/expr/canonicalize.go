package expr

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/cvxir/internal/ir"
	"github.com/roach88/cvxir/internal/linop"
)

// Canonicalizer lowers expression trees into lin-op graphs plus generated
// constraints.
//
// Lowering is a bottom-up fold. Children are lowered left to right before
// their parent; child constraint lists are concatenated in that order and
// the node's own constraints are appended last. Within one call every leaf
// maps to a single lin-op node and a subtree reachable along several paths
// is lowered once, so the result is a DAG.
//
// Canonicalization reads shapes, signs and ids only. It never reads
// parameter values, so a cached form stays valid when values change.
type Canonicalizer struct {
	logger *slog.Logger
}

// Option configures a Canonicalizer.
type Option func(*Canonicalizer)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Canonicalizer) {
		c.logger = l
	}
}

// NewCanonicalizer creates a Canonicalizer.
func NewCanonicalizer(opts ...Option) *Canonicalizer {
	c := &Canonicalizer{}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Canonicalize lowers e with a default Canonicalizer.
func (e *Expr) Canonicalize() (ir.CanonicalForm, error) {
	return NewCanonicalizer().Canonicalize(e)
}

// Canonicalize lowers e into a canonical form. On a DCP violation no
// partial form is returned.
func (c *Canonicalizer) Canonicalize(e *Expr) (ir.CanonicalForm, error) {
	start := time.Now()
	l := c.newLowering(e.arena, e.arena.NextID)

	root, err := l.lower(e)
	canonicalizeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.observeFailure(err)
		return ir.CanonicalForm{}, err
	}

	canonicalizeTotal.WithLabelValues(resultOK).Inc()
	auxVariables.Add(float64(len(l.aux)))
	c.logger.Debug("canonicalized expression",
		"expr", e.Name(),
		"constraints", len(l.constraints),
		"aux_variables", len(l.aux),
	)
	return ir.CanonicalForm{Root: root.op, Constraints: l.constraints}, nil
}

func (c *Canonicalizer) observeFailure(err error) {
	var xe *Error
	if errors.As(err, &xe) && xe.Code == ErrCodeDCPViolation {
		canonicalizeTotal.WithLabelValues(resultDCPViolation).Inc()
		dcpViolations.WithLabelValues(xe.Node).Inc()
		c.logger.Warn("dcp violation",
			"atom", xe.Node,
			"message", xe.Message,
		)
		return
	}
	canonicalizeTotal.WithLabelValues(resultError).Inc()
}

func (c *Canonicalizer) newLowering(a *Arena, ids func() int64) *Lowering {
	return &Lowering{
		logger: c.logger,
		arena:  a,
		ids:    ids,
		memo:   make(map[*Expr]lowered),
		leaves: make(map[ir.LeafID]*ir.LinOp),
	}
}

// lowered is the memoized result for one node.
type lowered struct {
	op   *ir.LinOp
	curv ir.Curvature
}

// Lowering is the state of a single canonicalization traversal. Atom lower
// rules use it to introduce auxiliary variables and constraints.
type Lowering struct {
	logger      *slog.Logger
	arena       *Arena
	ids         func() int64
	memo        map[*Expr]lowered
	leaves      map[ir.LeafID]*ir.LinOp
	constraints []ir.LinConstraint
	aux         []ir.LeafInfo
}

// NewVariable introduces an auxiliary variable with a fresh id.
func (l *Lowering) NewVariable(shape ir.Shape) (*ir.LinOp, error) {
	id := ir.LeafID(l.ids())
	op, err := linop.Variable(id, shape)
	if err != nil {
		return nil, err
	}
	l.aux = append(l.aux, ir.LeafInfo{
		ID:    id,
		Kind:  ir.LeafAuxiliary,
		Name:  fmt.Sprintf("aux%d", id),
		Shape: shape,
		Sign:  ir.SignUnknown.String(),
	})
	return op, nil
}

// AddLeq appends the constraint expr <= 0.
func (l *Lowering) AddLeq(expr *ir.LinOp) {
	l.constraints = append(l.constraints, linop.Leq(l.ids(), expr))
}

// AddEq appends the constraint expr == 0.
func (l *Lowering) AddEq(expr *ir.LinOp) {
	l.constraints = append(l.constraints, linop.Eq(l.ids(), expr))
}

// AddLeqDiff appends a - b <= 0, promoting a 1x1 side.
func (l *Lowering) AddLeqDiff(a, b *ir.LinOp) error {
	d, err := linop.Sub(a, b)
	if err != nil {
		return err
	}
	l.AddLeq(d)
	return nil
}

func (l *Lowering) lower(e *Expr) (lowered, error) {
	if r, ok := l.memo[e]; ok {
		return r, nil
	}
	var (
		r   lowered
		err error
	)
	if e.IsLeaf() {
		r, err = l.lowerLeaf(e)
	} else {
		r, err = l.lowerAtom(e)
	}
	if err != nil {
		return lowered{}, err
	}
	l.memo[e] = r
	return r, nil
}

func (l *Lowering) lowerLeaf(e *Expr) (lowered, error) {
	if op, ok := l.leaves[e.leaf]; ok {
		return lowered{op: op, curv: e.Curvature()}, nil
	}

	var (
		op  *ir.LinOp
		err error
	)
	switch e.kind {
	case KindVariable:
		op, err = linop.Variable(e.leaf, e.Shape())
	case KindParameter:
		op, err = linop.Parameter(e.leaf, e.Shape())
	case KindConstant:
		v, _ := e.arena.value(e.leaf)
		op = linop.Constant(v)
	}
	if err != nil {
		return lowered{}, constructionErr(e.Name(), "%v", err)
	}
	l.leaves[e.leaf] = op
	return lowered{op: op, curv: e.Curvature()}, nil
}

// signConstraints makes the declared sign of every lowered variable part
// of the problem, in leaf-table order. Expression canonicalization never
// calls it, so an affine tree keeps an empty constraint list.
func (l *Lowering) signConstraints(leaves []ir.LeafInfo) {
	for _, info := range leaves {
		if info.Kind != ir.LeafVariable {
			continue
		}
		x, ok := l.leaves[info.ID]
		if !ok {
			continue
		}
		switch l.arena.record(info.ID).sign {
		case ir.SignPositive:
			l.AddLeq(linop.Neg(x))
		case ir.SignNegative:
			l.AddLeq(x)
		case ir.SignZero:
			l.AddEq(x)
		}
	}
}

func (l *Lowering) lowerAtom(e *Expr) (lowered, error) {
	def := mustLookup(e.kind)

	ops := make([]*ir.LinOp, len(e.args))
	curvs := make([]ir.Curvature, len(e.args))
	for i, a := range e.args {
		r, err := l.lower(a)
		if err != nil {
			return lowered{}, err
		}
		ops[i] = r.op
		curvs[i] = r.curv
	}

	curv := ir.DCPCurvature(def.Curvature, def.Monotonicity(e.argSigns()), curvs)
	if !curv.IsDCP() {
		return lowered{}, dcpViolation(def.Name, e, curvs)
	}

	op, err := def.Lower(l, ops, e.data)
	if err != nil {
		return lowered{}, constructionErr(def.Name, "lowering failed: %v", err)
	}
	if op.Shape != e.shape {
		return lowered{}, constructionErr(def.Name, "lowered shape %s does not match %s", op.Shape, e.shape)
	}
	l.logger.Debug("lowered atom",
		"atom", def.Name,
		"curvature", curv.String(),
		"constraints", len(l.constraints),
	)
	return lowered{op: op, curv: curv}, nil
}

func dcpViolation(atom string, e *Expr, curvs []ir.Curvature) *Error {
	details := make(map[string]string, len(curvs)+1)
	names := make([]string, len(curvs))
	for i, c := range curvs {
		details[fmt.Sprintf("arg%d", i)] = c.String()
		names[i] = c.String()
	}
	details["expr"] = e.Name()
	return &Error{
		Code:    ErrCodeDCPViolation,
		Message: fmt.Sprintf("%s applied to arguments with curvature %v is not DCP", atom, names),
		Node:    atom,
		Details: details,
	}
}
