package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/roach88/cvxir/internal/ir"
)

// WriteForm inserts a canonical form. Uses ON CONFLICT(hash) DO NOTHING for
// idempotency; inserted is false when the form was already cached. The
// returned form carries the stored CreatedSeq.
func (s *Store) WriteForm(ctx context.Context, f Form) (stored Form, inserted bool, err error) {
	graphJSON, err := marshalGraph(f.Graph)
	if err != nil {
		return Form{}, false, fmt.Errorf("write form: %w", err)
	}
	leavesJSON, err := marshalLeaves(f.Leaves)
	if err != nil {
		return Form{}, false, fmt.Errorf("write form: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Form{}, false, fmt.Errorf("write form: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	seq, err := nextSeq(ctx, tx)
	if err != nil {
		return Form{}, false, fmt.Errorf("write form: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO canonical_forms
		(hash, model, sense, graph_json, leaves_json, constraint_count, aux_count, created_seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(hash) DO NOTHING
	`,
		f.Hash,
		f.Model,
		string(f.Sense),
		graphJSON,
		leavesJSON,
		f.ConstraintCount,
		f.AuxCount,
		seq,
	)
	if err != nil {
		return Form{}, false, fmt.Errorf("write form: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return Form{}, false, fmt.Errorf("write form: rows affected: %w", err)
	}

	if n == 0 {
		err = tx.QueryRowContext(ctx, `
			SELECT created_seq FROM canonical_forms WHERE hash = ?
		`, f.Hash).Scan(&seq)
		if err != nil {
			return Form{}, false, fmt.Errorf("write form: read existing: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Form{}, false, fmt.Errorf("write form: commit: %w", err)
	}
	f.CreatedSeq = seq
	return f, n > 0, nil
}

// WriteStructure maps a model structure hash to the form it canonicalized
// to. An existing mapping is kept.
//
// Note: the form referenced by formHash must exist (foreign key constraint).
func (s *Store) WriteStructure(ctx context.Context, structureHash, formHash, model string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write structure: begin tx: %w", err)
	}
	defer tx.Rollback()

	seq, err := nextSeq(ctx, tx)
	if err != nil {
		return fmt.Errorf("write structure: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO structures (structure_hash, form_hash, model, seq)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(structure_hash) DO NOTHING
	`, structureHash, formHash, model, seq)
	if err != nil {
		return fmt.Errorf("write structure: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write structure: commit: %w", err)
	}
	return nil
}

// WriteRun records a run and its parameter values in one transaction. The
// run's Seq is assigned from the store clock. Writing the same run ID twice
// keeps the first record.
//
// Note: the form referenced by run.FormHash must exist (foreign key constraint).
func (s *Store) WriteRun(ctx context.Context, run Run) (Run, error) {
	if run.ID == "" {
		return Run{}, fmt.Errorf("write run: empty id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("write run: begin tx: %w", err)
	}
	defer tx.Rollback()

	seq, err := nextSeq(ctx, tx)
	if err != nil {
		return Run{}, fmt.Errorf("write run: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, model, form_hash, cache_hit, seq)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, run.ID, run.Model, run.FormHash, run.CacheHit, seq)
	if err != nil {
		return Run{}, fmt.Errorf("write run: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return Run{}, fmt.Errorf("write run: rows affected: %w", err)
	}
	if n == 0 {
		if err := tx.Commit(); err != nil {
			return Run{}, fmt.Errorf("write run: commit: %w", err)
		}
		return s.ReadRun(ctx, run.ID)
	}

	for _, name := range sortedNames(run.Parameters) {
		if err := writeParameterValue(ctx, tx, run.ID, name, run.Parameters[name], seq); err != nil {
			return Run{}, fmt.Errorf("write run: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("write run: commit: %w", err)
	}
	run.Seq = seq
	return run, nil
}

func writeParameterValue(ctx context.Context, tx *sql.Tx, runID, name string, v ir.Matrix, seq int64) error {
	valueJSON, err := marshalMatrix(v)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO parameter_values (run_id, param_name, value_json, seq)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id, param_name) DO NOTHING
	`, runID, name, valueJSON, seq)
	if err != nil {
		return fmt.Errorf("parameter %s: %w", name, err)
	}
	return nil
}

func sortedNames(m map[string]ir.Matrix) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
