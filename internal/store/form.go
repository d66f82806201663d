package store

import (
	"fmt"

	"github.com/roach88/cvxir/internal/ir"
	"github.com/roach88/cvxir/internal/linop"
)

// Form is a cached canonical program in flattened form.
type Form struct {
	Hash            string
	Model           string
	Sense           ir.Sense
	Graph           *ir.Graph
	Leaves          []ir.LeafInfo
	ConstraintCount int
	AuxCount        int
	CreatedSeq      int64
}

// NewForm flattens prog and computes its content hash. CreatedSeq is
// assigned when the form is written.
func NewForm(model string, prog *ir.CanonicalProgram) (Form, error) {
	g, err := linop.Flatten(prog.Form())
	if err != nil {
		return Form{}, fmt.Errorf("new form: %w", err)
	}
	hash, err := ir.FormHash(g)
	if err != nil {
		return Form{}, fmt.Errorf("new form: %w", err)
	}
	aux := 0
	for _, l := range prog.Leaves {
		if l.Kind == ir.LeafAuxiliary {
			aux++
		}
	}
	return Form{
		Hash:            hash,
		Model:           model,
		Sense:           prog.Sense,
		Graph:           g,
		Leaves:          prog.Leaves,
		ConstraintCount: len(prog.Constraints),
		AuxCount:        aux,
	}, nil
}

// Program rebuilds the canonical program from the flattened graph.
func (f Form) Program() (*ir.CanonicalProgram, error) {
	form, err := linop.Unflatten(f.Graph)
	if err != nil {
		return nil, fmt.Errorf("form %s: %w", f.Hash, err)
	}
	return &ir.CanonicalProgram{
		Sense:       f.Sense,
		Objective:   form.Root,
		Constraints: form.Constraints,
		Leaves:      f.Leaves,
	}, nil
}

// Run records one compilation of a model against the cache.
type Run struct {
	ID       string
	Model    string
	FormHash string
	CacheHit bool
	Seq      int64

	// Parameters holds the parameter values bound for this run.
	Parameters map[string]ir.Matrix
}
