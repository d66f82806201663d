package harness

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cvxir/internal/compiler"
)

const assertModel = `
name: assert
variables:
  x: {shape: [2]}
parameters:
  c: {shape: [2], value: [1, -2]}
expressions:
  dev: norm1(x - c)
objective: {sense: minimize, expr: dev}
`

func assertionModel(t *testing.T) *compiler.Model {
	t.Helper()
	m, err := compiler.CompileYAML(strings.NewReader(assertModel), compiler.DeterministicIDs())
	require.NoError(t, err)
	require.NoError(t, m.Bind(map[string]any{"x": []float64{1, 1}}))
	return m
}

func TestEvaluateAssertion_Pass(t *testing.T) {
	m := assertionModel(t)
	tests := []Assertion{
		{Type: AssertCurvature, Expr: "dev", Expect: "convex"},
		{Type: AssertCurvature, Expr: "-dev", Expect: "Concave"},
		{Type: AssertCurvature, Expr: "x - c", Expect: "affine"},
		{Type: AssertSign, Expr: "abs(x)", Expect: "positive"},
		{Type: AssertSign, Expr: "x", Expect: "unknown"},
		{Type: AssertShape, Expr: "x", Expect: []any{2}},
		{Type: AssertShape, Expr: "transpose(x)", Expect: []any{1, 2}},
		{Type: AssertValue, Expr: "dev", Expect: 3},
		{Type: AssertValue, Expr: "x - c", Expect: []any{0, 3}},
		{Type: AssertValue, Expr: "x", Expect: 1},
	}
	for _, a := range tests {
		t.Run(a.Type+" "+a.Expr, func(t *testing.T) {
			assert.NoError(t, evaluateAssertion(m, a, DefaultTolerance))
		})
	}
}

func TestEvaluateAssertion_Fail(t *testing.T) {
	m := assertionModel(t)
	tests := []struct {
		a   Assertion
		msg string
	}{
		{Assertion{Type: AssertCurvature, Expr: "dev", Expect: "concave"}, "curvature: expected concave, got convex"},
		{Assertion{Type: AssertSign, Expr: "dev", Expect: "negative"}, "sign: expected negative, got positive"},
		{Assertion{Type: AssertSign, Expr: "dev", Expect: "Zero"}, "invalid sign"},
		{Assertion{Type: AssertShape, Expr: "x", Expect: []any{3}}, "shape: expected (3, 1), got (2, 1)"},
		{Assertion{Type: AssertShape, Expr: "x", Expect: "2"}, "shape expect must be"},
		{Assertion{Type: AssertValue, Expr: "dev", Expect: 4}, "value: expected"},
		{Assertion{Type: AssertCurvature, Expr: "nope", Expect: "affine"}, `undefined name "nope"`},
		{Assertion{Type: AssertCurvature, Expr: "x", Expect: 1}, "must be a string"},
		{Assertion{Type: "trace", Expr: "x", Expect: 1}, "unknown assertion type"},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			err := evaluateAssertion(m, tt.a, DefaultTolerance)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestEvaluateAssertion_UnboundValue(t *testing.T) {
	m, err := compiler.CompileYAML(strings.NewReader(assertModel), compiler.DeterministicIDs())
	require.NoError(t, err)
	err = evaluateAssertion(m, Assertion{Type: AssertValue, Expr: "dev", Expect: 0}, DefaultTolerance)
	assert.Error(t, err)
}
