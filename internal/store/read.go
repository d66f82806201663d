package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/cvxir/internal/ir"
)

const formColumns = `hash, model, sense, graph_json, leaves_json, constraint_count, aux_count, created_seq`

// ReadForm returns the cached form with the given hash, or ErrNotFound.
func (s *Store) ReadForm(ctx context.Context, hash string) (Form, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+formColumns+`
		FROM canonical_forms
		WHERE hash = ?
	`, hash)
	f, err := scanForm(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Form{}, fmt.Errorf("form %s: %w", hash, ErrNotFound)
	}
	if err != nil {
		return Form{}, fmt.Errorf("read form: %w", err)
	}
	return f, nil
}

// LookupStructure returns the form a model structure canonicalized to.
// ok is false when the structure has not been seen.
func (s *Store) LookupStructure(ctx context.Context, structureHash string) (f Form, ok bool, err error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT f.hash, f.model, f.sense, f.graph_json, f.leaves_json,
		       f.constraint_count, f.aux_count, f.created_seq
		FROM structures st
		JOIN canonical_forms f ON st.form_hash = f.hash
		WHERE st.structure_hash = ?
	`, structureHash)
	f, err = scanForm(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Form{}, false, nil
	}
	if err != nil {
		return Form{}, false, fmt.Errorf("lookup structure: %w", err)
	}
	return f, true, nil
}

// ListForms returns cached forms ordered by creation. An empty model lists
// every form.
//
// Returns an empty slice (not nil) if nothing is cached.
func (s *Store) ListForms(ctx context.Context, model string) ([]Form, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+formColumns+`
		FROM canonical_forms
		WHERE ? = '' OR model = ?
		ORDER BY created_seq ASC, hash COLLATE BINARY ASC
	`, model, model)
	if err != nil {
		return nil, fmt.Errorf("query forms: %w", err)
	}
	defer rows.Close()

	forms := []Form{}
	for rows.Next() {
		f, err := scanForm(rows)
		if err != nil {
			return nil, err
		}
		forms = append(forms, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate forms: %w", err)
	}
	return forms, nil
}

// ReadRun returns one run with its parameter values, or ErrNotFound.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, model, form_hash, cache_hit, seq
		FROM runs
		WHERE id = ?
	`, id)
	var run Run
	err := row.Scan(&run.ID, &run.Model, &run.FormHash, &run.CacheHit, &run.Seq)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run: %w", err)
	}
	if run.Parameters, err = s.readParameterValues(ctx, id); err != nil {
		return Run{}, err
	}
	return run, nil
}

// ReadRuns returns runs ordered by seq. An empty model lists every run.
// Parameter values are not loaded; use ReadRun for them.
func (s *Store) ReadRuns(ctx context.Context, model string) ([]Run, error) {
	return s.queryRuns(ctx, `
		SELECT id, model, form_hash, cache_hit, seq
		FROM runs
		WHERE ? = '' OR model = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, model, model)
}

// ReadRunsForForm returns the runs that used a cached form, ordered by seq.
func (s *Store) ReadRunsForForm(ctx context.Context, formHash string) ([]Run, error) {
	return s.queryRuns(ctx, `
		SELECT id, model, form_hash, cache_hit, seq
		FROM runs
		WHERE form_hash = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, formHash)
}

func (s *Store) queryRuns(ctx context.Context, query string, args ...any) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.Model, &run.FormHash, &run.CacheHit, &run.Seq); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ParameterHistory returns every value recorded for a parameter of a model,
// oldest first.
func (s *Store) ParameterHistory(ctx context.Context, model, param string) ([]ir.Matrix, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pv.value_json
		FROM parameter_values pv
		JOIN runs r ON pv.run_id = r.id
		WHERE r.model = ? AND pv.param_name = ?
		ORDER BY pv.seq ASC, pv.run_id COLLATE BINARY ASC
	`, model, param)
	if err != nil {
		return nil, fmt.Errorf("query parameter history: %w", err)
	}
	defer rows.Close()

	values := []ir.Matrix{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan parameter value: %w", err)
		}
		m, err := unmarshalMatrix(data)
		if err != nil {
			return nil, err
		}
		values = append(values, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate parameter history: %w", err)
	}
	return values, nil
}

func (s *Store) readParameterValues(ctx context.Context, runID string) (map[string]ir.Matrix, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT param_name, value_json
		FROM parameter_values
		WHERE run_id = ?
		ORDER BY param_name COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query parameter values: %w", err)
	}
	defer rows.Close()

	values := make(map[string]ir.Matrix)
	for rows.Next() {
		var name, data string
		if err := rows.Scan(&name, &data); err != nil {
			return nil, fmt.Errorf("scan parameter value: %w", err)
		}
		m, err := unmarshalMatrix(data)
		if err != nil {
			return nil, err
		}
		values[name] = m
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate parameter values: %w", err)
	}
	return values, nil
}

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanForm(row scanner) (Form, error) {
	var (
		f                     Form
		sense                 string
		graphJSON, leavesJSON string
	)
	err := row.Scan(&f.Hash, &f.Model, &sense, &graphJSON, &leavesJSON,
		&f.ConstraintCount, &f.AuxCount, &f.CreatedSeq)
	if err != nil {
		return Form{}, err
	}
	f.Sense = ir.Sense(sense)
	if f.Graph, err = unmarshalGraph(graphJSON); err != nil {
		return Form{}, err
	}
	if f.Leaves, err = unmarshalLeaves(leavesJSON); err != nil {
		return Form{}, err
	}
	return f, nil
}
