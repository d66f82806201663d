package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/roach88/cvxir/internal/compiler"
	"github.com/roach88/cvxir/internal/expr"
	"github.com/roach88/cvxir/internal/ir"
	"github.com/roach88/cvxir/internal/linop"
	"github.com/roach88/cvxir/internal/store"
)

// Harness runs scenarios against a store. Each Run call gets a fresh
// in-memory store unless one is supplied with New.
type Harness struct {
	store  *store.Store
	canon  *expr.Canonicalizer
	logger *slog.Logger
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger routes canonicalization logs to logger. The default discards
// them.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harness) { h.logger = logger }
}

// New creates a harness that caches canonical forms in st.
func New(st *store.Store, opts ...Option) *Harness {
	h := &Harness{store: st, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(h)
	}
	h.canon = expr.NewCanonicalizer(expr.WithLogger(h.logger))
	return h
}

// Run executes a scenario in a fresh in-memory store and returns the result.
//
// Execution flow:
// 1. Load the model file with deterministic leaf ids
// 2. Bind parameters and variables
// 3. Canonicalize through the store cache
// 4. Check expect clauses and assertions
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()
	return New(st).Run(context.Background(), scenario)
}

// Run executes one scenario. The returned error covers harness failures
// such as a model file that names no matching model; model errors are
// reported in the Result and checked against expect.error_code.
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	result := NewResult(scenario.Name)

	models, err := compiler.LoadFile(scenario.Model, compiler.DeterministicIDs())
	if err != nil {
		result.ErrorCode = compiler.ErrorCode(err)
		h.checkError(scenario, result, err)
		return result, nil
	}
	m, err := pickModel(models, scenario.ModelName)
	if err != nil {
		return nil, err
	}
	result.Model = m.Name

	if err := bind(m, scenario); err != nil {
		result.ErrorCode = compiler.ErrorCode(err)
		h.checkError(scenario, result, err)
		return result, nil
	}

	result.DCP = m.Objective.IsDCP()
	for _, c := range m.Constraints {
		result.DCP = result.DCP && c.IsDCP()
	}

	form, _, err := h.store.Canonicalize(ctx, m, h.canon)
	if err != nil {
		result.ErrorCode = compiler.ErrorCode(err)
		h.checkError(scenario, result, err)
		h.checkExpect(scenario, result)
		return result, nil
	}
	result.Form = &form
	result.FormHash = form.Hash
	result.Constraints = form.ConstraintCount
	result.AuxVariables = form.AuxCount

	if err := h.objectiveValue(m, form, result); err != nil {
		result.AddError("objective value: %v", err)
	}

	h.checkError(scenario, result, nil)
	h.checkExpect(scenario, result)
	for i, a := range scenario.Assertions {
		if err := evaluateAssertion(m, a, scenario.Expect.tolerance()); err != nil {
			result.AddError("assertion %d (%s %s): %v", i, a.Type, a.Expr, err)
		}
	}
	return result, nil
}

func pickModel(models []*compiler.Model, name string) (*compiler.Model, error) {
	if name == "" {
		if len(models) != 1 {
			return nil, fmt.Errorf("model file declares %d models: set model_name", len(models))
		}
		return models[0], nil
	}
	for _, m := range models {
		if m.Name == name {
			return m, nil
		}
	}
	return nil, fmt.Errorf("model %q not found", name)
}

func bind(m *compiler.Model, s *Scenario) error {
	for name := range s.Parameters {
		if _, ok := m.Parameters[name]; !ok {
			return fmt.Errorf("bind %s: no such parameter", name)
		}
	}
	for name := range s.Variables {
		if _, ok := m.Variables[name]; !ok {
			return fmt.Errorf("bind %s: no such variable", name)
		}
	}
	if err := m.Bind(s.Parameters); err != nil {
		return err
	}
	return m.Bind(s.Variables)
}

// objectiveValue evaluates the objective when every leaf it references has
// a value. An affine objective is cross-checked against the lin-op program.
func (h *Harness) objectiveValue(m *compiler.Model, form store.Form, result *Result) error {
	e := m.Objective.Expr()
	for _, leaf := range e.Leaves() {
		if !leaf.IsSpecified() {
			return nil
		}
	}
	v, err := e.Value()
	if err != nil {
		return err
	}
	val := v.Data[0]
	result.ObjectiveValue = &val

	if !e.IsAffine() {
		return nil
	}
	prog, err := form.Program()
	if err != nil {
		return err
	}
	lv, err := linop.Eval(prog.Objective, e.Env())
	if err != nil {
		return fmt.Errorf("lin-op program: %w", err)
	}
	got := lv.Data[0]
	if prog.Sense == ir.SenseMaximize {
		got = -got
	}
	if math.Abs(got-val) > 1e-9*math.Max(1, math.Abs(val)) {
		return fmt.Errorf("lin-op program gives %g, expression gives %g", got, val)
	}
	return nil
}

// checkError compares the outcome with expect.error_code. err is nil when
// the scenario ran to completion.
func (h *Harness) checkError(s *Scenario, result *Result, err error) {
	want := s.Expect.ErrorCode
	switch {
	case want == "" && err != nil:
		result.AddError("unexpected error [%s]: %v", result.ErrorCode, err)
	case want != "" && err == nil:
		result.AddError("expected error %s, got success", want)
	case want != "" && want != result.ErrorCode:
		result.AddError("expected error %s, got %s: %v", want, result.ErrorCode, err)
	}
}

func (h *Harness) checkExpect(s *Scenario, result *Result) {
	exp := s.Expect
	if exp.DCP != nil && *exp.DCP != result.DCP {
		result.AddError("expected dcp=%t, got %t", *exp.DCP, result.DCP)
	}
	if result.Form == nil {
		return
	}
	if exp.Constraints != nil && *exp.Constraints != result.Constraints {
		result.AddError("expected %d constraints, got %d", *exp.Constraints, result.Constraints)
	}
	if exp.AuxVariables != nil && *exp.AuxVariables != result.AuxVariables {
		result.AddError("expected %d aux variables, got %d", *exp.AuxVariables, result.AuxVariables)
	}
	if exp.ObjectiveValue != nil {
		switch {
		case result.ObjectiveValue == nil:
			result.AddError("expected objective value %g, but the objective has unbound leaves", *exp.ObjectiveValue)
		case math.Abs(*result.ObjectiveValue-*exp.ObjectiveValue) > exp.tolerance():
			result.AddError("expected objective value %g, got %g", *exp.ObjectiveValue, *result.ObjectiveValue)
		}
	}
}
