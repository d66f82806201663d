package compiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/roach88/cvxir/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrSchema = "E100" // struct tag rule failed

	// Declaration errors (E101-E109)
	ErrModelEmpty      = "E101" // neither objective nor constraints
	ErrInvalidShape    = "E102" // shape must be [n] or [rows, cols]
	ErrInvalidSign     = "E103" // unknown sign token
	ErrDuplicateName   = "E104" // name declared twice
	ErrReservedName    = "E105" // name shadows an atom function
	ErrInvalidValue    = "E106" // value is not numeric or has the wrong shape
	ErrValueOnVariable = "E107" // variables carry no declared value

	// Expression errors (E110-E119)
	ErrExpressionCycle = "E110" // named expressions reference each other
	ErrUndefinedName   = "E111" // reference to an undeclared name
	ErrInvalidSyntax   = "E112" // expression does not parse
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a model definition against the schema rules.
// Returns all errors found (does not fail-fast).
func Validate(def *ModelDef) []ValidationError {
	var errs []ValidationError

	errs = append(errs, tagErrors(modelValidate.Struct(def))...)

	// E101: something to canonicalize
	if def.Objective == nil && len(def.Constraints) == 0 {
		errs = append(errs, ValidationError{
			Field:   "model",
			Message: "model must declare an objective or at least one constraint",
			Code:    ErrModelEmpty,
		})
	}

	seen := make(map[string]string)
	declare := func(section, name string) {
		field := section + "." + name
		// E104: duplicate across sections
		if prev, ok := seen[name]; ok {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("name %q already declared in %s", name, prev),
				Code:    ErrDuplicateName,
			})
		}
		seen[name] = section
		// E105: reserved
		if _, ok := functions[name]; ok {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("name %q is reserved for an atom function", name),
				Code:    ErrReservedName,
			})
		}
	}

	for _, name := range sortedKeys(def.Variables) {
		declare("variables", name)
		leaf := def.Variables[name]
		errs = append(errs, validateLeaf("variables."+name, leaf)...)
		// E107
		if leaf.Value != nil {
			errs = append(errs, ValidationError{
				Field:   "variables." + name + ".value",
				Message: "variables cannot declare a value",
				Code:    ErrValueOnVariable,
			})
		}
	}
	for _, name := range sortedKeys(def.Parameters) {
		declare("parameters", name)
		errs = append(errs, validateLeaf("parameters."+name, def.Parameters[name])...)
	}
	for _, name := range sortedKeys(def.Expressions) {
		declare("expressions", name)
	}

	errs = append(errs, validateReferences(def, seen)...)
	return errs
}

// validateLeaf checks shape, sign and value of one leaf.
func validateLeaf(field string, leaf LeafDef) []ValidationError {
	var errs []ValidationError

	// E102
	if len(leaf.Shape) > 2 {
		errs = append(errs, ValidationError{
			Field:   field + ".shape",
			Message: fmt.Sprintf("shape must have one or two dimensions, got %d", len(leaf.Shape)),
			Code:    ErrInvalidShape,
		})
		return errs
	}
	for i, d := range leaf.Shape {
		if d <= 0 {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.shape[%d]", field, i),
				Message: fmt.Sprintf("dimension must be positive, got %d", d),
				Code:    ErrInvalidShape,
			})
		}
	}

	// E103
	if leaf.Sign != "" {
		if _, err := ir.ParseSign(leaf.Sign); err != nil {
			errs = append(errs, ValidationError{
				Field:   field + ".sign",
				Message: err.Error(),
				Code:    ErrInvalidSign,
			})
		}
	}

	// E106
	if leaf.Value != nil && len(errs) == 0 {
		rows, cols := leaf.Dims()
		m, err := ir.ToMatrix(leaf.Value)
		switch {
		case err != nil:
			errs = append(errs, ValidationError{
				Field:   field + ".value",
				Message: err.Error(),
				Code:    ErrInvalidValue,
			})
		case m.Rows != rows || m.Cols != cols:
			errs = append(errs, ValidationError{
				Field:   field + ".value",
				Message: fmt.Sprintf("value has shape %s, expected (%d, %d)", m.Shape(), rows, cols),
				Code:    ErrInvalidValue,
			})
		}
	}
	return errs
}

// validateReferences parses every expression and checks that each name it
// references is declared and that named expressions form no cycle.
func validateReferences(def *ModelDef, declared map[string]string) []ValidationError {
	var errs []ValidationError

	check := func(field, src string) {
		names, err := referencedNames(src)
		if err != nil {
			errs = append(errs, ValidationError{Field: field, Message: err.Error(), Code: ErrInvalidSyntax})
			return
		}
		for _, n := range names {
			if _, ok := declared[n]; !ok {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("undefined name %q", n),
					Code:    ErrUndefinedName,
				})
			}
		}
	}

	for _, name := range sortedKeys(def.Expressions) {
		check("expressions."+name, def.Expressions[name])
	}
	if def.Objective != nil && def.Objective.Expr != "" {
		check("objective.expr", def.Objective.Expr)
	}
	for i, c := range def.Constraints {
		check(fmt.Sprintf("constraints[%d]", i), c)
	}

	// E110
	for _, c := range AnalyzeCycles(def.Expressions) {
		errs = append(errs, ValidationError{
			Field:   "expressions." + c.Path[0],
			Message: c.Message,
			Code:    ErrExpressionCycle,
		})
	}
	return errs
}

// tagErrors converts validator failures into E100 errors.
func tagErrors(err error) []ValidationError {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []ValidationError{{Field: "model", Message: err.Error(), Code: ErrSchema}}
	}
	out := make([]ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		msg := fmt.Sprintf("failed %q rule", fe.Tag())
		if fe.Param() != "" {
			msg = fmt.Sprintf("failed %q rule (%s)", fe.Tag(), fe.Param())
		}
		out = append(out, ValidationError{Field: field, Message: msg, Code: ErrSchema})
	}
	return out
}
