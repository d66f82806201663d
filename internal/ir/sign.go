package ir

import (
	"fmt"
	"strings"
)

// Sign is the known sign of every entry of an expression.
type Sign int

const (
	// SignUnknown means entries may take either sign.
	SignUnknown Sign = iota
	// SignPositive means every entry is >= 0.
	SignPositive
	// SignNegative means every entry is <= 0.
	SignNegative
	// SignZero means every entry is exactly 0.
	SignZero
)

// Sign tokens accepted by ParseSign.
const (
	SignTokenPositive = "positive"
	SignTokenNegative = "negative"
	SignTokenZero     = "zero"
	SignTokenUnknown  = "unknown"
)

// ParseSign converts a user-supplied sign token.
//
// "positive", "negative" and "unknown" are matched case-insensitively.
// The zero sentinel matches "zero" or "ZERO" exactly; mixed case such as
// "Zero" is rejected.
func ParseSign(token string) (Sign, error) {
	if token == SignTokenZero || token == strings.ToUpper(SignTokenZero) {
		return SignZero, nil
	}
	switch strings.ToLower(token) {
	case SignTokenPositive:
		return SignPositive, nil
	case SignTokenNegative:
		return SignNegative, nil
	case SignTokenUnknown:
		return SignUnknown, nil
	}
	return SignUnknown, fmt.Errorf("invalid sign %q: must be one of positive, negative, zero, unknown", token)
}

func (s Sign) String() string {
	switch s {
	case SignPositive:
		return SignTokenPositive
	case SignNegative:
		return SignTokenNegative
	case SignZero:
		return SignTokenZero
	default:
		return SignTokenUnknown
	}
}

// IsPositive reports whether every entry is known to be >= 0.
// Zero counts as positive.
func (s Sign) IsPositive() bool {
	return s == SignZero || s == SignPositive
}

// IsNegative reports whether every entry is known to be <= 0.
// Zero counts as negative.
func (s Sign) IsNegative() bool {
	return s == SignZero || s == SignNegative
}

// Neg returns the sign of -x.
func (s Sign) Neg() Sign {
	switch s {
	case SignPositive:
		return SignNegative
	case SignNegative:
		return SignPositive
	}
	return s
}

// SignAdd returns the sign of a+b. Zero is the identity; mixed signs are unknown.
// The same table is used for stacking.
func SignAdd(a, b Sign) Sign {
	switch {
	case a == SignZero:
		return b
	case b == SignZero:
		return a
	case a == b:
		return a
	}
	return SignUnknown
}

// SignMul returns the sign of a*b. Zero absorbs everything, then unknown
// absorbs; otherwise the rule of signs applies.
func SignMul(a, b Sign) Sign {
	switch {
	case a == SignZero || b == SignZero:
		return SignZero
	case a == SignUnknown || b == SignUnknown:
		return SignUnknown
	case a == b:
		return SignPositive
	}
	return SignNegative
}

// SignMax returns the sign of max(a, b).
func SignMax(a, b Sign) Sign {
	switch {
	case a == SignPositive || b == SignPositive:
		return SignPositive
	case a == SignZero && b == SignZero:
		return SignZero
	case a == SignZero:
		if b == SignNegative {
			return SignZero
		}
		return SignPositive
	case b == SignZero:
		if a == SignNegative {
			return SignZero
		}
		return SignPositive
	case a == SignNegative && b == SignNegative:
		return SignNegative
	}
	return SignUnknown
}

// SignMin returns the sign of min(a, b).
func SignMin(a, b Sign) Sign {
	return SignMax(a.Neg(), b.Neg()).Neg()
}
