package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/cvxir/internal/compiler"
	"github.com/roach88/cvxir/internal/expr"
	"github.com/roach88/cvxir/internal/ir"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Models int                        `json:"models"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <models-path>",
		Short: "Validate models without canonicalizing",
		Long: `Validate CUE or YAML models without canonicalization.

Performs schema validation, expression parsing, shape checking and the DCP
curvature check. Faster than compile for development feedback.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, modelsPath string, cmd *cobra.Command) error {
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
			return outputValidateError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputValidateError(formatter, ErrCodeGeneric, loadErrors[0].Error(), nil)
	}

	formatter.VerboseLog("Found %d model file(s) in %s", loadResult.FileCount, modelsPath)

	validationErrors := loadErrorsToValidation(loadErrors)
	for _, m := range loadResult.Models {
		formatter.VerboseLog("Checking DCP rules: %s", m.Name)
		validationErrors = append(validationErrors, checkDCP(m)...)
	}

	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, validationErrors)
	}
	return outputValidateSuccess(formatter, len(loadResult.Models))
}

// checkDCP reports the objective and every constraint that the DCP rules
// cannot certify.
func checkDCP(m *compiler.Model) []compiler.ValidationError {
	var errs []compiler.ValidationError
	if !m.Objective.IsDCP() {
		e := m.Objective.Expr()
		errs = append(errs, compiler.ValidationError{
			Field:   fmt.Sprintf("model.%s.objective", m.Name),
			Message: fmt.Sprintf("%s needs a %s expression, %s is %s", m.Objective.Sense(), wantCurvature(m), e.Name(), e.Curvature()),
			Code:    string(expr.ErrCodeDCPViolation),
		})
	}
	for i, c := range m.Constraints {
		if !c.IsDCP() {
			errs = append(errs, compiler.ValidationError{
				Field:   fmt.Sprintf("model.%s.constraints[%d]", m.Name, i),
				Message: fmt.Sprintf("constraint %s is not DCP", c),
				Code:    string(expr.ErrCodeDCPViolation),
			})
		}
	}
	return errs
}

func wantCurvature(m *compiler.Model) string {
	if m.Objective.Sense() == ir.SenseMaximize {
		return "concave"
	}
	return "convex"
}

func loadErrorsToValidation(errs []error) []compiler.ValidationError {
	out := make([]compiler.ValidationError, 0, len(errs))
	for _, err := range errs {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			out = append(out, compiler.ValidationError{
				Field:   loadErr.Field,
				Message: loadErr.Message,
				Code:    loadErr.Code,
				Line:    lineOf(loadErr),
			})
			continue
		}
		out = append(out, compiler.ValidationError{Field: "load", Message: err.Error(), Code: ErrCodeGeneric})
	}
	return out
}

// lineOf extracts the line number from a load error's CUE position.
func lineOf(e *LoadError) int {
	if e.Pos.IsValid() {
		return e.Pos.Line()
	}
	return 0
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, models int) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Models: models})
	}

	fmt.Fprintf(formatter.Writer, "✓ All models valid (%d)\n", models)
	return nil
}

// outputValidateError outputs a single validation error.
func outputValidateError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	// Load errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		if err := formatter.Respond(response); err != nil {
			return err
		}

		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}

// ValidateModelsPath validates all models in a file or directory.
// This is a helper function for external callers.
func ValidateModelsPath(path string) ([]compiler.ValidationError, error) {
	loadResult, loadErrors := LoadModels(path, LoadModeCollectAll)
	if loadResult == nil && len(loadErrors) > 0 {
		return nil, loadErrors[0]
	}
	errs := loadErrorsToValidation(loadErrors)
	for _, m := range loadResult.Models {
		errs = append(errs, checkDCP(m)...)
	}
	return errs, nil
}
