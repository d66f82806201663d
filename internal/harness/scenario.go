package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance scenario for one model.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name" validate:"required"`

	// Description explains what this scenario validates.
	Description string `yaml:"description" validate:"required"`

	// Model is the path of a .cue, .yaml or .yml model file. Relative
	// paths are resolved against the scenario file's directory.
	Model string `yaml:"model" validate:"required"`

	// ModelName selects a model when the file declares several.
	ModelName string `yaml:"model_name,omitempty"`

	// Parameters and Variables are bound by name before evaluation.
	Parameters map[string]any `yaml:"parameters,omitempty"`
	Variables  map[string]any `yaml:"variables,omitempty"`

	Expect Expect `yaml:"expect"`

	Assertions []Assertion `yaml:"assertions,omitempty" validate:"dive"`
}

// Expect lists the checked outcomes. Nil fields are not checked.
type Expect struct {
	DCP            *bool    `yaml:"dcp,omitempty"`
	ErrorCode      string   `yaml:"error_code,omitempty"`
	Constraints    *int     `yaml:"constraints,omitempty" validate:"omitempty,gte=0"`
	AuxVariables   *int     `yaml:"aux_variables,omitempty" validate:"omitempty,gte=0"`
	ObjectiveValue *float64 `yaml:"objective_value,omitempty"`

	// Tolerance bounds numeric comparisons. Defaults to DefaultTolerance.
	Tolerance float64 `yaml:"tolerance,omitempty" validate:"gte=0"`
}

// DefaultTolerance is the absolute tolerance of numeric checks.
const DefaultTolerance = 1e-9

func (e Expect) tolerance() float64 {
	if e.Tolerance > 0 {
		return e.Tolerance
	}
	return DefaultTolerance
}

// Assertion checks one property of an expression built in the model's
// scope.
type Assertion struct {
	// Type is one of curvature, sign, shape, value.
	Type string `yaml:"type" validate:"required,oneof=curvature sign shape value"`

	// Expr is an expression source, usually a named expression.
	Expr string `yaml:"expr" validate:"required"`

	// Expect is a curvature or sign token, a [rows, cols] list or a value.
	Expect any `yaml:"expect"`
}

// Assertion type constants.
const (
	AssertCurvature = "curvature"
	AssertSign      = "sign"
	AssertShape     = "shape"
	AssertValue     = "value"
)

var scenarioValidate = validator.New(validator.WithRequiredStructEnabled())

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Model != "" && !filepath.IsAbs(scenario.Model) {
		scenario.Model = filepath.Join(filepath.Dir(path), scenario.Model)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks struct tags, then that the model file exists and
// no name is bound twice.
func validateScenario(s *Scenario) error {
	if err := scenarioValidate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s: failed %q", strings.ToLower(fe.Namespace()[len("Scenario."):]), fe.Tag())
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}

	if _, err := os.Stat(s.Model); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", s.Model)
	}

	for name := range s.Variables {
		if _, ok := s.Parameters[name]; ok {
			return fmt.Errorf("%s is bound both as a parameter and a variable", name)
		}
	}
	return nil
}
