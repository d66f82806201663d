package expr

import (
	"fmt"
	"time"

	"github.com/roach88/cvxir/internal/ir"
	"github.com/roach88/cvxir/internal/linop"
)

// Constraint relates two expressions. It is stored as lhs - rhs compared
// with zero.
type Constraint struct {
	kind ir.ConstraintKind
	lhs  *Expr
	rhs  *Expr
	diff *Expr
}

func newConstraint(kind ir.ConstraintKind, lhs, rhs *Expr) (*Constraint, error) {
	diff, err := Sub(lhs, rhs)
	if err != nil {
		return nil, err
	}
	return &Constraint{kind: kind, lhs: lhs, rhs: rhs, diff: diff}, nil
}

// Leq builds lhs <= rhs.
func Leq(lhs, rhs *Expr) (*Constraint, error) {
	return newConstraint(ir.ConstraintLeq, lhs, rhs)
}

// Geq builds lhs >= rhs, stored as rhs <= lhs.
func Geq(lhs, rhs *Expr) (*Constraint, error) {
	return newConstraint(ir.ConstraintLeq, rhs, lhs)
}

// Eq builds lhs == rhs.
func Eq(lhs, rhs *Expr) (*Constraint, error) {
	return newConstraint(ir.ConstraintEq, lhs, rhs)
}

// Kind returns eq or leq.
func (c *Constraint) Kind() ir.ConstraintKind { return c.kind }

// Expr returns lhs - rhs.
func (c *Constraint) Expr() *Expr { return c.diff }

// IsDCP reports whether the constraint is convex: lhs - rhs convex for
// inequalities, affine for equalities.
func (c *Constraint) IsDCP() bool {
	if c.kind == ir.ConstraintEq {
		return c.diff.IsAffine()
	}
	return c.diff.IsConvex()
}

func (c *Constraint) String() string {
	op := "<="
	if c.kind == ir.ConstraintEq {
		op = "=="
	}
	return fmt.Sprintf("%s %s %s", c.lhs.Name(), op, c.rhs.Name())
}

// Objective is an expression with an optimization sense.
type Objective struct {
	sense ir.Sense
	expr  *Expr
}

// Minimize builds a minimization objective. The expression must be 1x1.
func Minimize(e *Expr) (*Objective, error) {
	return newObjective(ir.SenseMinimize, e)
}

// Maximize builds a maximization objective. The expression must be 1x1.
func Maximize(e *Expr) (*Objective, error) {
	return newObjective(ir.SenseMaximize, e)
}

func newObjective(sense ir.Sense, e *Expr) (*Objective, error) {
	if e == nil {
		return nil, constructionErr(string(sense), "objective is nil")
	}
	if !e.IsScalar() {
		return nil, constructionErr(string(sense), "objective must be scalar, got shape %s", e.Shape())
	}
	return &Objective{sense: sense, expr: e}, nil
}

// Sense returns minimize or maximize.
func (o *Objective) Sense() ir.Sense { return o.sense }

// Expr returns the objective expression.
func (o *Objective) Expr() *Expr { return o.expr }

// IsDCP reports a convex objective for minimization or a concave one for
// maximization.
func (o *Objective) IsDCP() bool {
	if o.sense == ir.SenseMaximize {
		return o.expr.IsConcave()
	}
	return o.expr.IsConvex()
}

// CanonicalizeProgram lowers an objective and constraints with a default
// Canonicalizer.
func CanonicalizeProgram(obj *Objective, cons ...*Constraint) (*ir.CanonicalProgram, error) {
	return NewCanonicalizer().CanonicalizeProgram(obj, cons...)
}

// CanonicalizeProgram lowers an objective and constraints in one traversal,
// so a leaf shared between them maps to a single lin-op node.
//
// The stored objective is always minimized: a Maximize objective is lowered
// as the negation of its expression. Generated constraints precede each
// user constraint, in traversal order. Sign constraints of declared-sign
// variables come last.
func (c *Canonicalizer) CanonicalizeProgram(obj *Objective, cons ...*Constraint) (*ir.CanonicalProgram, error) {
	if obj == nil {
		return nil, constructionErr("program", "objective is nil")
	}
	start := time.Now()
	prog, aux, err := c.program(obj, cons)
	canonicalizeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.observeFailure(err)
		return nil, err
	}
	canonicalizeTotal.WithLabelValues(resultOK).Inc()
	auxVariables.Add(float64(aux))
	c.logger.Debug("canonicalized program",
		"sense", string(prog.Sense),
		"constraints", len(prog.Constraints),
		"aux_variables", aux,
	)
	return prog, nil
}

func (c *Canonicalizer) program(obj *Objective, cons []*Constraint) (*ir.CanonicalProgram, int, error) {
	arena := obj.expr.arena
	for i, con := range cons {
		if con == nil {
			return nil, 0, constructionErr("program", "constraint %d is nil", i)
		}
		if con.diff.arena != arena {
			return nil, 0, constructionErr("program", "constraint %d belongs to a different arena", i)
		}
	}
	l := c.newLowering(arena, arena.NextID)

	r, err := l.lower(obj.expr)
	if err != nil {
		return nil, 0, err
	}
	if !obj.IsDCP() {
		want := ir.CurvatureConvex
		if obj.sense == ir.SenseMaximize {
			want = ir.CurvatureConcave
		}
		return nil, 0, &Error{
			Code:    ErrCodeDCPViolation,
			Message: fmt.Sprintf("%s needs a %s expression, got %s", obj.sense, want, r.curv),
			Node:    string(obj.sense),
			Details: map[string]string{"expr": obj.expr.Name(), "arg0": r.curv.String()},
		}
	}
	objective := r.op
	if obj.sense == ir.SenseMaximize {
		objective = linop.Neg(objective)
	}

	for i, con := range cons {
		r, err := l.lower(con.diff)
		if err != nil {
			return nil, 0, fmt.Errorf("constraint %d: %w", i, err)
		}
		if !con.IsDCP() {
			node := "leq"
			if con.kind == ir.ConstraintEq {
				node = "eq"
			}
			return nil, 0, &Error{
				Code:    ErrCodeDCPViolation,
				Message: fmt.Sprintf("constraint %s has lhs - rhs with curvature %s", con, r.curv),
				Node:    node,
				Details: map[string]string{"constraint": con.String(), "arg0": r.curv.String()},
			}
		}
		if con.kind == ir.ConstraintEq {
			l.AddEq(r.op)
		} else {
			l.AddLeq(r.op)
		}
	}

	prog := &ir.CanonicalProgram{
		Sense:       obj.sense,
		Objective:   objective,
		Constraints: l.constraints,
	}
	// Sign constraints reference only leaves already in the form, so the
	// leaf table does not change when they are added.
	prog.Leaves = c.leafTable(arena, prog.Form(), l.aux)
	l.signConstraints(prog.Leaves)
	prog.Constraints = l.constraints
	return prog, len(l.aux), nil
}

// leafTable lists the user leaves the form references, in first-seen order,
// followed by the auxiliary variables.
func (c *Canonicalizer) leafTable(arena *Arena, form ir.CanonicalForm, aux []ir.LeafInfo) []ir.LeafInfo {
	isAux := make(map[ir.LeafID]bool, len(aux))
	for _, a := range aux {
		isAux[a.ID] = true
	}
	var out []ir.LeafInfo
	for _, ref := range linop.FormLeaves(form) {
		if isAux[ref.ID] {
			continue
		}
		if info, ok := arena.Info(ref.ID); ok {
			out = append(out, info)
		}
	}
	return append(out, aux...)
}
