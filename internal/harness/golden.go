package harness

import (
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/cvxir/internal/ir"
)

// GoldenBytes returns the canonical JSON of the result's flattened form.
// The leaf ids are deterministic because scenarios compile with a fresh
// allocator per model.
func GoldenBytes(result *Result) ([]byte, error) {
	if result.Form == nil || result.Form.Graph == nil {
		return nil, fmt.Errorf("scenario %s produced no canonical form", result.Name)
	}
	return ir.MarshalCanonical(result.Form.Graph)
}

// RunWithGolden executes a scenario and compares its canonical form against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return result, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := GoldenBytes(result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
