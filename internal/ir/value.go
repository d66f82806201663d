package ir

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"unicode/utf16"
)

// IRValue is a sealed interface over the values canonical JSON can carry.
// Only IRString, IRInt, IRBool, IRNumber, IRArray and IRObject implement it.
type IRValue interface {
	irValue()
}

// IRString is a string value.
type IRString string

func (IRString) irValue() {}

// IRInt is an integer value.
type IRInt int64

func (IRInt) irValue() {}

// IRBool is a boolean value.
type IRBool bool

func (IRBool) irValue() {}

// IRNumber is a finite float carried as its shortest round-trip decimal
// string, so canonical bytes never depend on float formatting rules.
type IRNumber string

func (IRNumber) irValue() {}

// NewIRNumber encodes a finite float. Negative zero is folded to zero.
func NewIRNumber(v float64) (IRNumber, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "", fmt.Errorf("non-finite number %v is forbidden in canonical JSON", v)
	}
	if v == 0 {
		v = 0
	}
	return IRNumber(strconv.FormatFloat(v, 'g', -1, 64)), nil
}

// Float64 decodes the number.
func (n IRNumber) Float64() (float64, error) {
	return strconv.ParseFloat(string(n), 64)
}

// IRArray is an ordered list of values.
type IRArray []IRValue

func (IRArray) irValue() {}

// IRObject maps string keys to values. Use SortedKeys for deterministic iteration.
type IRObject map[string]IRValue

func (IRObject) irValue() {}

// SortedKeys returns keys in RFC 8785 order (UTF-16 code units).
func (obj IRObject) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 orders strings by UTF-16 code units; Go's native string
// comparison is by UTF-8 bytes, which differs outside the BMP.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	return slices.Compare(a16, b16)
}
