package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/strata/internal/recipe"
	"github.com/roach88/strata/internal/validation"
)

// Scenario is a sequence of timeline operations with expectations on their
// outcome and on the final state years.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Timeline defaults to "harness".
	Timeline string `yaml:"timeline,omitempty"`

	// Changes are stored as atomic changes before the first step.
	Changes map[string]ChangeDef `yaml:"changes,omitempty"`

	Steps []Step `yaml:"steps"`

	// Snapshot lists the cells rendered into the golden file.
	Snapshot []SnapshotEntry `yaml:"snapshot,omitempty"`

	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// ChangeDef is an atomic change declared by a scenario.
type ChangeDef struct {
	Description   string        `yaml:"description,omitempty"`
	Modifications recipe.Recipe `yaml:"modifications"`
}

// Step is one timeline operation.
type Step struct {
	Op      string        `yaml:"op"`
	Year    int           `yaml:"year,omitempty"`
	Recipe  recipe.Recipe `yaml:"recipe,omitempty"`
	Changes []string      `yaml:"changes,omitempty"`
	Expect  *Expect       `yaml:"expect,omitempty"`
}

// Expect checks the outcome of a step. Empty fields are not checked.
type Expect struct {
	// Outcome is "committed" or an error code such as NOT_FOUND.
	Outcome    string `yaml:"outcome"`
	Created    []int  `yaml:"created,omitempty"`
	Reconciled []int  `yaml:"reconciled,omitempty"`
	Touched    []int  `yaml:"touched,omitempty"`
	Modified   *bool  `yaml:"modified,omitempty"`
}

// SnapshotEntry selects recipe paths of one state year.
type SnapshotEntry struct {
	Year  int      `yaml:"year"`
	Paths []string `yaml:"paths"`
}

// Assertion validates the final state.
type Assertion struct {
	Type   string `yaml:"type"`
	Year   int    `yaml:"year,omitempty"`
	Path   string `yaml:"path,omitempty"`
	Expect any    `yaml:"expect,omitempty"`
}

// Step operations.
const (
	OpApply        = "apply"
	OpApplyChanges = "apply-changes"
	OpCreateYear   = "create-year"
	OpRemoveYear   = "remove-year"
	OpReconcile    = "reconcile"
	OpEnsure       = "ensure"
	OpBake         = "bake"
)

// Assertion types.
const (
	AssertValue           = "value"
	AssertYears           = "years"
	AssertLogged          = "logged"
	AssertReconciliations = "reconciliations"
	AssertConsistent      = "consistent"
)

// OutcomeCommitted is the outcome of a step that committed.
const OutcomeCommitted = "committed"

var yearOps = []string{OpApply, OpApplyChanges, OpCreateYear, OpRemoveYear, OpReconcile}

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected to catch typos.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if scenario.Timeline == "" {
		scenario.Timeline = "harness"
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if _, err := validation.TimelineName(s.Timeline); err != nil {
		return err
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for name, c := range s.Changes {
		if c.Modifications.IsEmpty() {
			return fmt.Errorf("changes.%s: modifications are required", name)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, e := range s.Snapshot {
		if e.Year == 0 {
			return fmt.Errorf("snapshot[%d]: year is required", i)
		}
		for _, p := range e.Paths {
			if _, err := recipe.ParsePath(p); err != nil {
				return fmt.Errorf("snapshot[%d]: %w", i, err)
			}
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step *Step) error {
	switch step.Op {
	case OpApply:
		if step.Recipe == nil {
			return fmt.Errorf("steps[%d]: recipe is required for apply", index)
		}
	case OpApplyChanges:
		if len(step.Changes) == 0 {
			return fmt.Errorf("steps[%d]: changes are required for apply-changes", index)
		}
	case OpCreateYear, OpRemoveYear, OpReconcile, OpEnsure, OpBake:
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, step.Op)
	}
	if slices.Contains(yearOps, step.Op) && step.Year == 0 {
		return fmt.Errorf("steps[%d]: year is required for %s", index, step.Op)
	}
	if step.Expect != nil && step.Expect.Outcome == "" {
		return fmt.Errorf("steps[%d].expect: outcome is required", index)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case AssertValue:
		if a.Year == 0 {
			return fmt.Errorf("assertions[%d]: year is required for value", index)
		}
		if _, err := recipe.ParsePath(a.Path); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
		if a.Expect == nil {
			return fmt.Errorf("assertions[%d]: expect is required for value", index)
		}
	case AssertYears, AssertLogged:
		if _, err := yearList(a.Expect); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	case AssertReconciliations:
		if a.Year == 0 {
			return fmt.Errorf("assertions[%d]: year is required for reconciliations", index)
		}
		if _, ok := a.Expect.(int); !ok {
			return fmt.Errorf("assertions[%d]: expect must be a count for reconciliations", index)
		}
	case AssertConsistent:
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// yearList converts a decoded YAML sequence of years.
func yearList(v any) ([]int, error) {
	if v == nil {
		return []int{}, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expect must be a list of years")
	}
	years := make([]int, len(items))
	for i, item := range items {
		y, ok := item.(int)
		if !ok {
			return nil, fmt.Errorf("expect[%d] is not a year", i)
		}
		years[i] = y
	}
	return years, nil
}
