package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIRValueSealed(t *testing.T) {
	var _ IRValue = IRString("test")
	var _ IRValue = IRInt(42)
	var _ IRValue = IRBool(true)
	var _ IRValue = IRNumber("1")
	var _ IRValue = IRArray{IRString("a"), IRInt(1)}
	var _ IRValue = IRObject{"key": IRString("value")}
}

func TestIRObjectSortedKeys(t *testing.T) {
	obj := IRObject{
		"zebra":  IRString("z"),
		"apple":  IRString("a"),
		"banana": IRString("b"),
		"A":      IRString("A"),
		"aa":     IRString("aa"),
	}

	assert.Equal(t, []string{"A", "aa", "apple", "banana", "zebra"}, obj.SortedKeys())
}
