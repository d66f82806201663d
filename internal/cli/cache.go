package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/cvxir/internal/ir"
	"github.com/roach88/cvxir/internal/store"
)

// CacheOptions holds flags shared by the cache subcommands.
type CacheOptions struct {
	*RootOptions
	Database string
	Model    string // optional - filter to one model
}

// FormEntry summarizes a cached canonical form.
type FormEntry struct {
	Hash         string `json:"hash"`
	Model        string `json:"model"`
	Sense        string `json:"sense"`
	Nodes        int    `json:"nodes"`
	Constraints  int    `json:"constraints"`
	AuxVariables int    `json:"aux_variables"`
	Seq          int64  `json:"seq"`
}

// RunEntry summarizes a recorded run.
type RunEntry struct {
	ID         string                 `json:"id"`
	Model      string                 `json:"model"`
	FormHash   string                 `json:"form_hash"`
	CacheHit   bool                   `json:"cache_hit"`
	Seq        int64                  `json:"seq"`
	Parameters map[string][][]float64 `json:"parameters,omitempty"`
	Unbound    []string               `json:"unbound,omitempty"`
	Complete   *bool                  `json:"complete,omitempty"`
}

// FormDetail is a cached form with the runs that used it.
type FormDetail struct {
	FormEntry
	Leaves []ir.LeafInfo `json:"leaves"`
	Runs   []RunEntry    `json:"runs"`
}

// NewCacheCommand creates the cache command and its subcommands.
func NewCacheCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CacheOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the canonical-form cache",
		Long: `Inspect the SQLite cache written by compile --db.

Forms are keyed by model structure, so recompiling a model with new
parameter values reuses its form. Every compile is recorded as a run with
the parameter values bound at the time.

Examples:
  cvxir cache list --db ./cvxir.db
  cvxir cache show <form-hash> --db ./cvxir.db
  cvxir cache runs --db ./cvxir.db --model lasso
  cvxir cache run <run-id> --db ./cvxir.db
  cvxir cache history lasso gamma --db ./cvxir.db
  cvxir cache pending --db ./cvxir.db`,
	}

	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkPersistentFlagRequired("db")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List cached forms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, cmd, func(ctx context.Context, st *store.Store, f *OutputFormatter) error {
				return runCacheList(ctx, st, f, opts.Model)
			})
		},
	}
	listCmd.Flags().StringVar(&opts.Model, "model", "", "only forms of this model")

	showCmd := &cobra.Command{
		Use:   "show <form-hash>",
		Short: "Show a cached form and its runs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, cmd, func(ctx context.Context, st *store.Store, f *OutputFormatter) error {
				return runCacheShow(ctx, st, f, args[0])
			})
		},
	}

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, cmd, func(ctx context.Context, st *store.Store, f *OutputFormatter) error {
				return runCacheRuns(ctx, st, f, opts.Model)
			})
		},
	}
	runsCmd.Flags().StringVar(&opts.Model, "model", "", "only runs of this model")

	runCmd := &cobra.Command{
		Use:   "run <run-id>",
		Short: "Show one run with its parameter values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, cmd, func(ctx context.Context, st *store.Store, f *OutputFormatter) error {
				return runCacheRun(ctx, st, f, args[0])
			})
		},
	}

	historyCmd := &cobra.Command{
		Use:   "history <model> <parameter>",
		Short: "Show every recorded value of a parameter",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, cmd, func(ctx context.Context, st *store.Store, f *OutputFormatter) error {
				return runCacheHistory(ctx, st, f, args[0], args[1])
			})
		},
	}

	pendingCmd := &cobra.Command{
		Use:   "pending",
		Short: "List runs that left parameters unbound",
		Long: `List runs whose model had parameters without values at compile time.

Exit codes:
  0 - Every run bound all of its parameters
  1 - At least one run is incomplete
  2 - Command error (database not found, etc.)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, cmd, func(ctx context.Context, st *store.Store, f *OutputFormatter) error {
				return runCachePending(ctx, st, f, opts.Model)
			})
		},
	}
	pendingCmd.Flags().StringVar(&opts.Model, "model", "", "only runs of this model")

	for _, sub := range []*cobra.Command{listCmd, showCmd, runsCmd, runCmd, historyCmd, pendingCmd} {
		sub.SilenceUsage = true
		sub.SilenceErrors = true
		cmd.AddCommand(sub)
	}
	return cmd
}

// withStore opens the database, runs fn and closes the database.
func withStore(opts *CacheOptions, cmd *cobra.Command, fn func(context.Context, *store.Store, *OutputFormatter) error) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, st, formatter)
}

func formEntry(f store.Form) FormEntry {
	nodes := 0
	if f.Graph != nil {
		nodes = len(f.Graph.Nodes)
	}
	return FormEntry{
		Hash:         f.Hash,
		Model:        f.Model,
		Sense:        string(f.Sense),
		Nodes:        nodes,
		Constraints:  f.ConstraintCount,
		AuxVariables: f.AuxCount,
		Seq:          f.CreatedSeq,
	}
}

func runEntry(r store.Run) RunEntry {
	e := RunEntry{ID: r.ID, Model: r.Model, FormHash: r.FormHash, CacheHit: r.CacheHit, Seq: r.Seq}
	if len(r.Parameters) > 0 {
		e.Parameters = make(map[string][][]float64, len(r.Parameters))
		for name, v := range r.Parameters {
			e.Parameters[name] = v.RowsSlice()
		}
	}
	return e
}

func runCacheList(ctx context.Context, st *store.Store, f *OutputFormatter, model string) error {
	forms, err := st.ListForms(ctx, model)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list forms", err)
	}
	entries := make([]FormEntry, len(forms))
	for i, form := range forms {
		entries[i] = formEntry(form)
	}
	if f.Format == "json" {
		return f.Success(entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(f.Writer, "No cached forms.")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(f.Writer, "%s  %s  %s, %d node(s), %d constraint(s), %d aux\n",
			e.Hash[:12], e.Model, e.Sense, e.Nodes, e.Constraints, e.AuxVariables)
	}
	return nil
}

func runCacheShow(ctx context.Context, st *store.Store, f *OutputFormatter, hash string) error {
	form, err := st.ReadForm(ctx, hash)
	if errors.Is(err, store.ErrNotFound) {
		_ = f.Error(ErrCodeNotFound, fmt.Sprintf("form %s not found", hash), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("form %s not found", hash))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read form", err)
	}
	runs, err := st.ReadRunsForForm(ctx, hash)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read runs", err)
	}

	detail := FormDetail{FormEntry: formEntry(form), Leaves: form.Leaves, Runs: make([]RunEntry, len(runs))}
	for i, r := range runs {
		detail.Runs[i] = runEntry(r)
	}
	if f.Format == "json" {
		return f.Success(detail)
	}

	fmt.Fprintf(f.Writer, "Form %s\n", detail.Hash)
	fmt.Fprintf(f.Writer, "  model: %s\n  sense: %s\n", detail.Model, detail.Sense)
	fmt.Fprintf(f.Writer, "  %d node(s), %d constraint(s), %d aux variable(s)\n\n", detail.Nodes, detail.Constraints, detail.AuxVariables)
	fmt.Fprintln(f.Writer, "Leaves:")
	for _, l := range detail.Leaves {
		fmt.Fprintf(f.Writer, "  #%d %s %s %s\n", l.ID, l.Kind, l.Name, l.Shape)
	}
	fmt.Fprintf(f.Writer, "\nRuns: %d\n", len(detail.Runs))
	for _, r := range detail.Runs {
		fmt.Fprintf(f.Writer, "  [%d] %s cache_hit=%t\n", r.Seq, r.ID, r.CacheHit)
	}
	return nil
}

func runCacheRuns(ctx context.Context, st *store.Store, f *OutputFormatter, model string) error {
	runs, err := st.ReadRuns(ctx, model)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}
	entries := make([]RunEntry, len(runs))
	for i, r := range runs {
		entries[i] = runEntry(r)
	}
	if f.Format == "json" {
		return f.Success(entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(f.Writer, "No runs recorded.")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(f.Writer, "[%d] %s  %s  form %s  cache_hit=%t\n", e.Seq, e.ID, e.Model, e.FormHash[:12], e.CacheHit)
	}
	return nil
}

func runCacheRun(ctx context.Context, st *store.Store, f *OutputFormatter, id string) error {
	state, err := st.GetRunState(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		_ = f.Error(ErrCodeNotFound, fmt.Sprintf("run %s not found", id), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("run %s not found", id))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	entry := runEntry(state.Run)
	complete := state.IsComplete()
	entry.Complete = &complete
	entry.Unbound = state.Unbound
	if f.Format == "json" {
		return f.Respond(CLIResponse{Status: "ok", Data: entry, RunID: entry.ID})
	}

	fmt.Fprintf(f.Writer, "Run %s\n", entry.ID)
	fmt.Fprintf(f.Writer, "  model: %s\n  form: %s\n  cache_hit: %t\n", entry.Model, entry.FormHash, entry.CacheHit)
	for _, name := range sortedParamNames(entry.Parameters) {
		fmt.Fprintf(f.Writer, "  %s = %v\n", name, entry.Parameters[name])
	}
	for _, name := range entry.Unbound {
		fmt.Fprintf(f.Writer, "  %s unbound\n", name)
	}
	return nil
}

func runCacheHistory(ctx context.Context, st *store.Store, f *OutputFormatter, model, param string) error {
	values, err := st.ParameterHistory(ctx, model, param)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read parameter history", err)
	}
	rows := make([][][]float64, len(values))
	for i, v := range values {
		rows[i] = v.RowsSlice()
	}
	if f.Format == "json" {
		return f.Success(rows)
	}
	if len(rows) == 0 {
		fmt.Fprintf(f.Writer, "No values recorded for %s.%s.\n", model, param)
		return nil
	}
	for i, r := range rows {
		fmt.Fprintf(f.Writer, "%d: %v\n", i+1, r)
	}
	return nil
}

func runCachePending(ctx context.Context, st *store.Store, f *OutputFormatter, model string) error {
	states, err := st.FindIncompleteRuns(ctx, model)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find incomplete runs", err)
	}
	entries := make([]RunEntry, len(states))
	for i, s := range states {
		entries[i] = runEntry(s.Run)
		entries[i].Unbound = s.Unbound
	}

	if f.Format == "json" {
		if err := f.Success(entries); err != nil {
			return err
		}
	} else if len(entries) == 0 {
		fmt.Fprintln(f.Writer, "✓ Every run bound all parameters")
	} else {
		for _, e := range entries {
			fmt.Fprintf(f.Writer, "✗ %s (%s): unbound %v\n", e.ID, e.Model, e.Unbound)
		}
	}

	if len(entries) > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d run(s) left parameters unbound", len(entries)))
	}
	return nil
}

func sortedParamNames(params map[string][][]float64) []string {
	return slices.Sorted(maps.Keys(params))
}
