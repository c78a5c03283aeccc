package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ScenarioFileError is returned when a scenario file of a suite cannot be
// loaded.
type ScenarioFileError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *ScenarioFileError) Error() string {
	return fmt.Sprintf("scenario file %s: %v", e.Path, e.Err)
}

// Unwrap returns the load error.
func (e *ScenarioFileError) Unwrap() error { return e.Err }

// LoadDir loads every .yaml and .yml scenario of a directory, ordered by
// file name. Scenario names must be unique because they name golden files.
func LoadDir(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)

	seen := map[string]string{}
	scenarios := make([]*Scenario, 0, len(files))
	for _, name := range files {
		path := filepath.Join(dir, name)
		s, err := LoadScenario(path)
		if err != nil {
			return nil, &ScenarioFileError{Path: path, Err: err}
		}
		if prev, dup := seen[s.Name]; dup {
			return nil, &ScenarioFileError{Path: path, Err: fmt.Errorf("scenario name %q already used by %s", s.Name, prev)}
		}
		seen[s.Name] = name
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// SuiteResult summarizes the results of several scenarios.
type SuiteResult struct {
	Total    int            `json:"total"`
	Passed   int            `json:"passed"`
	Failed   int            `json:"failed"`
	Failures []SuiteFailure `json:"failures,omitempty"`
}

// SuiteFailure is one failed scenario of a suite.
type SuiteFailure struct {
	Scenario string   `json:"scenario"`
	Errors   []string `json:"errors"`
}

// Add records the result of one scenario.
func (r *SuiteResult) Add(name string, result *Result) {
	r.Total++
	if result.Pass {
		r.Passed++
		return
	}
	r.Failed++
	r.Failures = append(r.Failures, SuiteFailure{Scenario: name, Errors: result.Errors})
}
