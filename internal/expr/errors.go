package expr

import (
	"errors"
	"fmt"
	"strings"
)

// Error is the single error type returned by expression construction,
// value access and canonicalization.
//
// Error codes:
//   - CONSTRUCTION: invalid shape, dimension mismatch or sign token at build time
//   - VALIDATION: assigned value does not match the declared shape
//   - UNSPECIFIED_VALUE: value read before it was assigned
//   - DCP_VIOLATION: curvature composition the DCP rules cannot certify
//   - UNSUPPORTED: operation not defined for this node
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Node names the offending node (leaf name or atom name).
	Node string

	// Details contains additional context, such as child curvatures.
	Details map[string]string
}

// ErrorCode categorizes expression errors.
type ErrorCode string

const (
	ErrCodeConstruction     ErrorCode = "CONSTRUCTION"
	ErrCodeValidation       ErrorCode = "VALIDATION"
	ErrCodeUnspecifiedValue ErrorCode = "UNSPECIFIED_VALUE"
	ErrCodeDCPViolation     ErrorCode = "DCP_VIOLATION"
	ErrCodeUnsupported      ErrorCode = "UNSUPPORTED"
)

// Sentinels for errors.Is. Any *Error with the same code matches.
var (
	ErrConstruction     = &Error{Code: ErrCodeConstruction}
	ErrValidation       = &Error{Code: ErrCodeValidation}
	ErrUnspecifiedValue = &Error{Code: ErrCodeUnspecifiedValue}
	ErrDCPViolation     = &Error{Code: ErrCodeDCPViolation}
	ErrUnsupported      = &Error{Code: ErrCodeUnsupported}
)

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Node != "" {
		fmt.Fprintf(&b, " (node=%s)", e.Node)
	}
	return b.String()
}

// Is matches another *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsConstructionError reports whether err is a construction error.
func IsConstructionError(err error) bool { return hasCode(err, ErrCodeConstruction) }

// IsValidationError reports whether err is a value validation error.
func IsValidationError(err error) bool { return hasCode(err, ErrCodeValidation) }

// IsUnspecifiedValueError reports whether err is an unset-value read.
func IsUnspecifiedValueError(err error) bool { return hasCode(err, ErrCodeUnspecifiedValue) }

// IsDCPViolation reports whether err is a DCP violation.
func IsDCPViolation(err error) bool { return hasCode(err, ErrCodeDCPViolation) }

// IsUnsupported reports whether err is an unsupported-operation error.
func IsUnsupported(err error) bool { return hasCode(err, ErrCodeUnsupported) }

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func constructionErr(node, format string, args ...any) *Error {
	return &Error{Code: ErrCodeConstruction, Message: fmt.Sprintf(format, args...), Node: node}
}

func validationErr(node, format string, args ...any) *Error {
	return &Error{Code: ErrCodeValidation, Message: fmt.Sprintf(format, args...), Node: node}
}

func unsupportedErr(node, format string, args ...any) *Error {
	return &Error{Code: ErrCodeUnsupported, Message: fmt.Sprintf(format, args...), Node: node}
}

func unspecifiedErr(node string) *Error {
	return &Error{Code: ErrCodeUnspecifiedValue, Message: "value has not been assigned", Node: node}
}
