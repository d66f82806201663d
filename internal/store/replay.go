package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/roach88/cvxir/internal/ir"
	"github.com/roach88/cvxir/internal/linop"
)

// RunState is a recorded run joined with the form it used.
type RunState struct {
	Run  Run
	Form Form

	// Unbound lists parameters of the form with no recorded value.
	Unbound []string
}

// IsComplete reports whether every parameter of the form has a value.
func (st RunState) IsComplete() bool {
	return len(st.Unbound) == 0
}

// Env returns the run's parameter values keyed by leaf id, ready for
// linop evaluation. Callers add variable values before evaluating.
func (st RunState) Env() linop.Env {
	env := make(linop.Env)
	for _, l := range st.Form.Leaves {
		if l.Kind != ir.LeafParameter {
			continue
		}
		if v, ok := st.Run.Parameters[l.Name]; ok {
			env[l.ID] = v
		}
	}
	return env
}

// GetRunState loads a run, its parameter values and its cached form.
func (s *Store) GetRunState(ctx context.Context, runID string) (RunState, error) {
	run, err := s.ReadRun(ctx, runID)
	if err != nil {
		return RunState{}, fmt.Errorf("get run state: %w", err)
	}
	form, err := s.ReadForm(ctx, run.FormHash)
	if err != nil {
		return RunState{}, fmt.Errorf("get run state: %w", err)
	}

	st := RunState{Run: run, Form: form, Unbound: []string{}}
	for _, l := range form.Leaves {
		if l.Kind != ir.LeafParameter {
			continue
		}
		if _, ok := run.Parameters[l.Name]; !ok {
			st.Unbound = append(st.Unbound, l.Name)
		}
	}
	sort.Strings(st.Unbound)
	return st, nil
}

// FindIncompleteRuns returns runs that left at least one parameter of their
// form unbound, ordered by seq.
func (s *Store) FindIncompleteRuns(ctx context.Context, model string) ([]RunState, error) {
	runs, err := s.ReadRuns(ctx, model)
	if err != nil {
		return nil, fmt.Errorf("find incomplete runs: %w", err)
	}
	states := []RunState{}
	for _, run := range runs {
		st, err := s.GetRunState(ctx, run.ID)
		if err != nil {
			return nil, fmt.Errorf("find incomplete runs: %w", err)
		}
		if !st.IsComplete() {
			states = append(states, st)
		}
	}
	return states, nil
}
