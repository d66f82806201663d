package harness

import (
	"fmt"

	"github.com/roach88/cvxir/internal/store"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion matched.
	Pass bool `json:"pass"`

	Name  string `json:"name"`
	Model string `json:"model,omitempty"`

	// DCP reports whether the objective and every constraint are DCP.
	DCP bool `json:"dcp"`

	// ErrorCode is set when compilation, binding or canonicalization failed.
	ErrorCode string `json:"error_code,omitempty"`

	FormHash       string   `json:"form_hash,omitempty"`
	Constraints    int      `json:"constraints"`
	AuxVariables   int      `json:"aux_variables"`
	ObjectiveValue *float64 `json:"objective_value,omitempty"`

	// Errors contains expectation failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Form is the canonical form, nil when canonicalization failed.
	Form *store.Form `json:"-"`
}

// NewResult creates a new passing result.
func NewResult(name string) *Result {
	return &Result{
		Pass:   true,
		Name:   name,
		Errors: []string{},
	}
}

// AddError adds an expectation failure and marks the result as failed.
func (r *Result) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}
