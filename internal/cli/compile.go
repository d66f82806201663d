package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/cvxir/internal/compiler"
	"github.com/roach88/cvxir/internal/expr"
	"github.com/roach88/cvxir/internal/ir"
	"github.com/roach88/cvxir/internal/store"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output   string // output file path
	Database string // optional canonical-form cache
}

// ModelSummary describes one canonicalized model.
type ModelSummary struct {
	Name         string `json:"name"`
	Sense        string `json:"sense"`
	Feasibility  bool   `json:"feasibility,omitempty"`
	FormHash     string `json:"form_hash"`
	Nodes        int    `json:"nodes"`
	Constraints  int    `json:"constraints"`
	AuxVariables int    `json:"aux_variables"`
	Leaves       int    `json:"leaves"`
	CacheHit     bool   `json:"cache_hit,omitempty"`
	RunID        string `json:"run_id,omitempty"`
}

// CompilationResult holds the summaries of every compiled model.
type CompilationResult struct {
	Models []ModelSummary `json:"models"`
}

// CompiledForm is the --output file entry for one model.
type CompiledForm struct {
	IRVersion string        `json:"ir_version"`
	Name      string        `json:"name"`
	Hash      string        `json:"hash"`
	Sense     ir.Sense      `json:"sense"`
	Graph     *ir.Graph     `json:"graph"`
	Leaves    []ir.LeafInfo `json:"leaves"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <models-path>",
		Short: "Canonicalize models to lin-op graphs",
		Long: `Compile CUE or YAML models and canonicalize them.

Each model is checked against the DCP rules and lowered to a flattened
linear-operation graph. With --db, forms are cached by model structure and
every compile is recorded as a run with its parameter values.

Examples:
  cvxir compile ./models
  cvxir compile ./models/lasso.cue --output forms.json
  cvxir compile ./models --db ./cvxir.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite form cache")

	return cmd
}

func runCompile(opts *CompileOptions, modelsPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	loadResult, loadErrors := LoadModels(modelsPath, LoadModeCollectAll)
	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputCompileError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputCompileError(formatter, ErrCodeGeneric, loadErrors[0].Error(), nil)
	}
	if len(loadErrors) > 0 {
		return outputCompileErrors(formatter, loadErrors, ExitCommandError)
	}
	formatter.VerboseLog("Found %d model file(s) in %s", loadResult.FileCount, modelsPath)

	var st *store.Store
	if opts.Database != "" {
		var err error
		st, err = store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	canon := expr.NewCanonicalizer(expr.WithLogger(slog.Default()))

	result := &CompilationResult{Models: make([]ModelSummary, 0, len(loadResult.Models))}
	forms := make([]CompiledForm, 0, len(loadResult.Models))
	var failures []error
	for _, m := range loadResult.Models {
		formatter.VerboseLog("Canonicalizing model: %s", m.Name)
		summary, form, err := compileModel(ctx, st, canon, m)
		if err != nil {
			failures = append(failures, &LoadError{
				Code:    compiler.ErrorCode(err),
				Field:   "model." + m.Name,
				Message: err.Error(),
			})
			continue
		}
		result.Models = append(result.Models, summary)
		forms = append(forms, CompiledForm{IRVersion: ir.IRVersion, Name: m.Name, Hash: form.Hash, Sense: form.Sense, Graph: form.Graph, Leaves: form.Leaves})
	}
	if len(failures) > 0 {
		// DCP violations are model failures, not command errors
		return outputCompileErrors(formatter, failures, ExitFailure)
	}

	if opts.Output != "" {
		if err := writeFormsToFile(forms, opts.Output); err != nil {
			return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	return outputCompileSuccess(formatter, result, opts.Output)
}

// compileModel canonicalizes m, through the cache when st is set.
func compileModel(ctx context.Context, st *store.Store, canon *expr.Canonicalizer, m *compiler.Model) (ModelSummary, store.Form, error) {
	var (
		form store.Form
		hit  bool
		err  error
	)
	if st != nil {
		form, hit, err = st.Canonicalize(ctx, m, canon)
	} else {
		var prog *ir.CanonicalProgram
		if prog, err = m.Canonicalize(canon); err == nil {
			form, err = store.NewForm(m.Name, prog)
		}
	}
	if err != nil {
		return ModelSummary{}, store.Form{}, err
	}

	summary := ModelSummary{
		Name:         m.Name,
		Sense:        string(form.Sense),
		Feasibility:  m.Feasibility,
		FormHash:     form.Hash,
		Nodes:        len(form.Graph.Nodes),
		Constraints:  form.ConstraintCount,
		AuxVariables: form.AuxCount,
		Leaves:       len(form.Leaves),
		CacheHit:     hit,
	}
	if st != nil {
		run, err := st.RecordRun(ctx, m, form, hit)
		if err != nil {
			return ModelSummary{}, store.Form{}, fmt.Errorf("record run: %w", err)
		}
		summary.RunID = run.ID
	}
	return summary, form, nil
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Compiled %d model(s)\n\n", len(result.Models))
	for _, m := range result.Models {
		cache := ""
		if m.RunID != "" {
			cache = " (cache miss)"
			if m.CacheHit {
				cache = " (cache hit)"
			}
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s, %d node(s), %d constraint(s), %d aux variable(s)%s\n",
			m.Name, m.Sense, m.Nodes, m.Constraints, m.AuxVariables, cache)
		fmt.Fprintf(formatter.Writer, "    form %s\n", m.FormHash)
	}
	fmt.Fprintln(formatter.Writer)

	if outputFile != "" {
		fmt.Fprintf(formatter.Writer, "Wrote canonical forms to %s\n", outputFile)
	}
	return nil
}

// outputCompileError outputs a single compilation error.
func outputCompileError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	// Compilation errors are command-level errors (exit code 2)
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
}

// outputCompileErrors outputs multiple compilation errors.
func outputCompileErrors(formatter *OutputFormatter, errs []error, exitCode int) error {
	if formatter.Format == "json" {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := parseCompileError(err)
			cliErrors[i] = CLIError{Code: code, Message: message}
		}

		response := CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors, // Include all errors in data
		}

		if err := formatter.Respond(response); err != nil {
			return err
		}
		return NewExitError(exitCode, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		code, message := parseCompileError(err)
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
				loadErr.Pos.Filename(),
				loadErr.Pos.Line(),
				loadErr.Pos.Column())
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", code, message)
	}
	return NewExitError(exitCode, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}

// parseCompileError extracts error code and message from an error.
func parseCompileError(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		if loadErr.Field != "" {
			return loadErr.Code, loadErr.Field + ": " + loadErr.Message
		}
		return loadErr.Code, loadErr.Message
	}
	return ErrCodeGeneric, err.Error()
}

// writeFormsToFile writes the canonical forms as indented JSON.
func writeFormsToFile(forms []CompiledForm, filename string) error {
	// Canonical JSON without indentation is used only for hashing
	data, err := json.MarshalIndent(forms, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling forms: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
