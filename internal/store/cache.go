package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/cvxir/internal/compiler"
	"github.com/roach88/cvxir/internal/expr"
	"github.com/roach88/cvxir/internal/ir"
)

// Canonicalize returns the canonical form of m, reusing the cached form of
// an earlier model with the same structure. Canonicalization never reads
// parameter values, so rebinding parameters is a cache hit.
//
// Cached graphs embed leaf ids: compile m into an arena with a private
// allocator so equal models get equal ids.
func (s *Store) Canonicalize(ctx context.Context, m *compiler.Model, c *expr.Canonicalizer) (Form, bool, error) {
	if m.Def == nil {
		return Form{}, false, fmt.Errorf("canonicalize %s: model has no definition", m.Name)
	}
	structure, err := m.Def.StructureHash()
	if err != nil {
		return Form{}, false, fmt.Errorf("canonicalize %s: %w", m.Name, err)
	}

	f, ok, err := s.LookupStructure(ctx, structure)
	if err != nil {
		return Form{}, false, fmt.Errorf("canonicalize %s: %w", m.Name, err)
	}
	if ok {
		return f, true, nil
	}

	prog, err := m.Canonicalize(c)
	if err != nil {
		return Form{}, false, err
	}
	f, err = NewForm(m.Name, prog)
	if err != nil {
		return Form{}, false, fmt.Errorf("canonicalize %s: %w", m.Name, err)
	}
	if f, _, err = s.WriteForm(ctx, f); err != nil {
		return Form{}, false, fmt.Errorf("canonicalize %s: %w", m.Name, err)
	}
	if err := s.WriteStructure(ctx, structure, f.Hash, m.Name); err != nil {
		return Form{}, false, fmt.Errorf("canonicalize %s: %w", m.Name, err)
	}
	return f, false, nil
}

// RecordRun stores a run of m against form f with the parameter values
// currently bound in m. Unbound parameters are skipped.
func (s *Store) RecordRun(ctx context.Context, m *compiler.Model, f Form, cacheHit bool) (Run, error) {
	params := make(map[string]ir.Matrix, len(m.Parameters))
	for name, p := range m.Parameters {
		if !p.IsSpecified() {
			continue
		}
		v, err := p.Value()
		if err != nil {
			return Run{}, fmt.Errorf("record run: %s: %w", name, err)
		}
		params[name] = v
	}
	return s.WriteRun(ctx, Run{
		ID:         newRunID(),
		Model:      m.Name,
		FormHash:   f.Hash,
		CacheHit:   cacheHit,
		Parameters: params,
	})
}

// newRunID returns a UUIDv7, so ids sort by creation time.
func newRunID() string {
	return uuid.Must(uuid.NewV7()).String()
}
