package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cvxir/internal/compiler"
	"github.com/roach88/cvxir/internal/store"
)

func loadScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario("testdata/scenarios/" + name + ".yaml")
	require.NoError(t, err)
	return s
}

func TestRun_Testdata(t *testing.T) {
	for _, name := range []string{"scalar_min", "negated_max", "lasso", "dcp_violation", "invalid_shape"} {
		t.Run(name, func(t *testing.T) {
			result, err := Run(loadScenario(t, name))
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
		})
	}
}

func TestRun_Lasso(t *testing.T) {
	result, err := Run(loadScenario(t, "lasso"))
	require.NoError(t, err)

	assert.Equal(t, "lasso", result.Model)
	assert.True(t, result.DCP)
	assert.Equal(t, 6, result.Constraints)
	assert.Equal(t, 2, result.AuxVariables)
	require.NotNil(t, result.ObjectiveValue)
	assert.InDelta(t, 5.0, *result.ObjectiveValue, 1e-12)
	assert.Len(t, result.FormHash, 64)
	require.NotNil(t, result.Form)
	assert.Equal(t, result.FormHash, result.Form.Hash)
}

func TestRun_Deterministic(t *testing.T) {
	first, err := Run(loadScenario(t, "lasso"))
	require.NoError(t, err)
	second, err := Run(loadScenario(t, "lasso"))
	require.NoError(t, err)
	assert.Equal(t, first.FormHash, second.FormHash)
}

func TestRun_DCPViolation(t *testing.T) {
	result, err := Run(loadScenario(t, "dcp_violation"))
	require.NoError(t, err)
	assert.False(t, result.DCP)
	assert.Equal(t, "DCP_VIOLATION", result.ErrorCode)
	assert.Nil(t, result.Form)
}

func TestRun_ExpectationFailures(t *testing.T) {
	s := loadScenario(t, "lasso")
	three, five := 3, 5
	wrong := 4.0
	s.Expect.Constraints = &three
	s.Expect.AuxVariables = &five
	s.Expect.ObjectiveValue = &wrong
	s.Assertions = []Assertion{{Type: AssertCurvature, Expr: "fit", Expect: "concave"}}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 4)
	assert.Contains(t, result.Errors[0], "expected 3 constraints, got 6")
	assert.Contains(t, result.Errors[1], "expected 5 aux variables, got 2")
	assert.Contains(t, result.Errors[2], "expected objective value 4, got 5")
	assert.Contains(t, result.Errors[3], "assertion 0 (curvature fit)")
}

func TestRun_UnexpectedAndMissingErrors(t *testing.T) {
	s := loadScenario(t, "dcp_violation")
	s.Expect.ErrorCode = ""
	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "unexpected error [DCP_VIOLATION]")

	s = loadScenario(t, "scalar_min")
	s.Expect.ErrorCode = "E102"
	result, err = Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "expected error E102, got success")

	s = loadScenario(t, "invalid_shape")
	s.Expect.ErrorCode = "E111"
	result, err = Run(s)
	require.NoError(t, err)
	assert.Contains(t, result.Errors[0], "expected error E111, got E102")
}

func TestRun_UnboundObjective(t *testing.T) {
	s := loadScenario(t, "scalar_min")
	s.Variables = nil
	s.Expect.ObjectiveValue = nil

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Nil(t, result.ObjectiveValue)
}

func TestRun_BindErrors(t *testing.T) {
	s := loadScenario(t, "scalar_min")
	s.Parameters = map[string]any{"x": 1}
	s.Variables = nil
	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "bind x: no such parameter")

	s = loadScenario(t, "lasso")
	s.Variables = map[string]any{"x": []any{1, 2}}
	result, err = Run(s)
	require.NoError(t, err)
	assert.Equal(t, "VALIDATION", result.ErrorCode)
}

func TestRun_ModelSelection(t *testing.T) {
	s := loadScenario(t, "lasso")
	s.ModelName = ""
	_, err := Run(s)
	assert.ErrorContains(t, err, "declares 2 models")

	s.ModelName = "ridge"
	_, err = Run(s)
	assert.ErrorContains(t, err, `model "ridge" not found`)
}

func TestHarness_SharedStoreHitsCache(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()
	h := New(st)
	ctx := context.Background()

	first, err := h.Run(ctx, loadScenario(t, "lasso"))
	require.NoError(t, err)

	s := loadScenario(t, "lasso")
	s.Parameters = map[string]any{"gamma": 2.0}
	s.Expect.ObjectiveValue = nil
	second, err := h.Run(ctx, s)
	require.NoError(t, err)
	assert.True(t, second.Pass, "errors: %v", second.Errors)
	assert.Equal(t, first.FormHash, second.FormHash, "rebinding a parameter reuses the cached form")

	forms, err := st.ListForms(ctx, "lasso")
	require.NoError(t, err)
	assert.Len(t, forms, 1)
}

func TestResult_AddError(t *testing.T) {
	r := NewResult("r")
	assert.True(t, r.Pass)
	r.AddError("bad %d", 1)
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"bad 1"}, r.Errors)
}

func TestErrorCodeMatchesCompiler(t *testing.T) {
	_, err := compiler.LoadFile("testdata/models/invalid.yaml")
	require.Error(t, err)
	assert.Equal(t, "E102", compiler.ErrorCode(err))
}
