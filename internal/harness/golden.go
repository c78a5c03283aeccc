package harness

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/strata/internal/testutil"
)

// Render writes the snapshot of a result compared against golden files:
// one line per step, the final years and the snapshot cells.
func Render(name string, r *Result) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "scenario: %s\n", name)
	b.WriteString("steps:\n")
	for _, s := range r.Trace {
		fmt.Fprintf(&b, "  %d %s\n", s.Seq, stepLine(s))
	}
	b.WriteString("years:\n")
	fmt.Fprintf(&b, "  disk: %v\n", r.DiskYears)
	fmt.Fprintf(&b, "  log:  %v\n", r.LoggedYears)
	if len(r.Values) > 0 {
		b.WriteString("values:\n")
		for _, v := range r.Values {
			fmt.Fprintf(&b, "  %d %s = %s\n", v.Year, v.Path, v.Value)
		}
	}
	if len(r.Errors) > 0 {
		b.WriteString("errors:\n")
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "  %s\n", e)
		}
	}
	return b.Bytes()
}

func stepLine(s StepTrace) string {
	label := s.Op
	if s.Year != 0 {
		label = fmt.Sprintf("%s %d", s.Op, s.Year)
	}
	if !s.Committed() {
		return fmt.Sprintf("%s: %s", label, s.Outcome)
	}
	return fmt.Sprintf("%s: committed %s created=%v modified=%t reconciled=%v touched=%v",
		label, s.TxID, s.Created, s.Modified, s.Reconciled, s.Touched)
}

// RunWithGolden executes a scenario against a fresh test scenario folder and
// compares the rendered result against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), testutil.NewScenario(t), scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, Render(name, result))
}
