package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden_ScalarMin(t *testing.T) {
	result, err := RunWithGolden(t, loadScenario(t, "scalar_min"))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRunWithGolden_NegatedMax(t *testing.T) {
	result, err := RunWithGolden(t, loadScenario(t, "negated_max"))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestGoldenBytes_NoForm(t *testing.T) {
	result, err := Run(loadScenario(t, "dcp_violation"))
	require.NoError(t, err)
	_, err = GoldenBytes(result)
	assert.ErrorContains(t, err, "produced no canonical form")
}
