package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/strata/internal/integrity"
	"github.com/roach88/strata/internal/recipe"
	"github.com/roach88/strata/internal/timeline"
)

// AssertionError is returned when an assertion fails.
// It includes the step trace to help debug the failure.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []StepTrace
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nSteps:\n")
		for _, s := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", s.Seq, stepLine(s))
		}
	}
	return buf.String()
}

// assertValue checks the cell a state year holds for a recipe path.
func assertValue(tl *timeline.Timeline, result *Result, a Assertion) error {
	p, err := recipe.ParsePath(a.Path)
	if err != nil {
		return err
	}
	want, err := recipe.FromAny(a.Expect)
	if err != nil {
		return err
	}
	expected := want.Format()
	actual, err := tl.ValueAt(a.Year, p)
	if err != nil {
		return &AssertionError{
			Type:     AssertValue,
			Expected: fmt.Sprintf("%d %s = %s", a.Year, a.Path, expected),
			Actual:   err.Error(),
			Trace:    result.Trace,
		}
	}
	if !want.Matches(actual) {
		return &AssertionError{
			Type:     AssertValue,
			Expected: fmt.Sprintf("%d %s = %s", a.Year, a.Path, expected),
			Actual:   fmt.Sprintf("%d %s = %s", a.Year, a.Path, actual),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertYears checks a list of years against the expectation.
func assertYears(kind string, actual []int, result *Result, a Assertion) error {
	expected, err := yearList(a.Expect)
	if err != nil {
		return err
	}
	if !slices.Equal(expected, actual) {
		return &AssertionError{
			Type:     kind,
			Expected: fmt.Sprintf("%v", expected),
			Actual:   fmt.Sprintf("%v", actual),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertReconciliations checks how many reconciliation records a year has.
func assertReconciliations(tl *timeline.Timeline, result *Result, a Assertion) error {
	log, err := tl.Log()
	if err != nil {
		return err
	}
	actual := 0
	if entry, ok := log[a.Year]; ok {
		actual = len(entry.Reconciliations)
	}
	if expected, _ := a.Expect.(int); expected != actual {
		return &AssertionError{
			Type:     AssertReconciliations,
			Expected: fmt.Sprintf("%d reconciliation(s) for %d", expected, a.Year),
			Actual:   fmt.Sprintf("%d", actual),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertConsistent runs a comprehensive integrity check.
func assertConsistent(tl *timeline.Timeline, result *Result) error {
	report, err := tl.Check(integrity.Comprehensive)
	if err != nil {
		return err
	}
	if rerr := report.Err(); rerr != nil {
		return &AssertionError{
			Type:     AssertConsistent,
			Expected: "comprehensive integrity check passes",
			Actual:   rerr.Error(),
			Trace:    result.Trace,
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions after the steps ran.
// Returns a message for every failed assertion.
func EvaluateAssertions(tl *timeline.Timeline, result *Result, assertions []Assertion) []string {
	var errors []string

	for i, a := range assertions {
		var err error

		switch a.Type {
		case AssertValue:
			err = assertValue(tl, result, a)
		case AssertYears:
			err = assertYears(AssertYears, result.DiskYears, result, a)
		case AssertLogged:
			err = assertYears(AssertLogged, result.LoggedYears, result, a)
		case AssertReconciliations:
			err = assertReconciliations(tl, result, a)
		case AssertConsistent:
			err = assertConsistent(tl, result)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
