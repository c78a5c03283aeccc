package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/strata/internal/testutil"
)

func TestScenarios_Golden(t *testing.T) {
	scenarios, err := LoadDir(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	require.Len(t, scenarios, 3)

	var suite SuiteResult
	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			suite.Add(s.Name, result)
		})
	}
	assert.Equal(t, 3, suite.Total)
	assert.Equal(t, 0, suite.Failed)
}

func TestRun_ExpectMismatchFails(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: mismatch
description: expectations that do not hold
steps:
  - op: apply
    year: 2020
    recipe:
      STANDARD1: { wall: { thickness_1_m: 0.1 } }
    expect:
      outcome: committed
      created: [2021]
  - op: reconcile
    year: 2040
assertions:
  - type: value
    year: 2020
    path: STANDARD1.wall.thickness_1_m
    expect: 0.2
  - type: years
    expect: [2020, 2030]
`))
	require.NoError(t, err)

	result, err := Run(context.Background(), testutil.NewScenario(t), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 4)
	assert.Contains(t, result.Errors[0], "expected created [2021], got [2020]")
	assert.Contains(t, result.Errors[1], "expected outcome committed, got NOT_FOUND")
	assert.Contains(t, result.Errors[2], "Expected: 2020 STANDARD1.wall.thickness_1_m = 0.2")
	assert.Contains(t, result.Errors[2], "Actual: 2020 STANDARD1.wall.thickness_1_m = 0.1")
	assert.Contains(t, result.Errors[3], "Assertion failed: years")

	// Failed runs still render every step.
	out := string(Render(s.Name, result))
	assert.Contains(t, out, "2 reconcile 2040: NOT_FOUND")
	assert.Contains(t, out, "errors:\n")
}

func TestRun_DefaultTimeline(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: default_timeline
description: the timeline name defaults to harness
steps:
  - op: create-year
    year: 2020
`))
	require.NoError(t, err)
	assert.Equal(t, "harness", s.Timeline)

	root := testutil.NewScenario(t)
	result, err := Run(context.Background(), root, s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.DirExists(t, filepath.Join(root, "district_timelines", "harness", "state_2020"))
}

func TestRun_MissingScenarioFolder(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: missing
description: no scenario folder
steps:
  - op: bake
`))
	require.NoError(t, err)

	_, err = Run(context.Background(), filepath.Join(t.TempDir(), "nowhere"), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open timeline")
}

func TestRender(t *testing.T) {
	result := NewResult()
	result.Trace = []StepTrace{
		{Seq: 1, Op: OpApply, Year: 2020, Outcome: OutcomeCommitted, TxID: "tx-0001", Created: []int{2020}, Modified: true, Touched: []int{2020}},
		{Seq: 2, Op: OpBake, Outcome: "INTEGRITY"},
	}
	result.DiskYears = []int{2020}
	result.LoggedYears = []int{2020}
	result.Values = []CellValue{{Year: 2020, Path: "A.wall.U_wall", Value: "0.3"}}

	want := "scenario: demo\n" +
		"steps:\n" +
		"  1 apply 2020: committed tx-0001 created=[2020] modified=true reconciled=[] touched=[2020]\n" +
		"  2 bake: INTEGRITY\n" +
		"years:\n" +
		"  disk: [2020]\n" +
		"  log:  [2020]\n" +
		"values:\n" +
		"  2020 A.wall.U_wall = 0.3\n"
	assert.Equal(t, want, string(Render("demo", result)))
}

func TestCheckExpect(t *testing.T) {
	modified := false
	trace := StepTrace{Outcome: OutcomeCommitted, Created: []int{2020}, Modified: true, Touched: []int{2020, 2030}}

	assert.Empty(t, checkExpect(trace, &Expect{Outcome: OutcomeCommitted}))
	assert.Empty(t, checkExpect(trace, &Expect{Outcome: OutcomeCommitted, Touched: []int{2020, 2030}}))
	assert.Equal(t, []string{"expected modified false, got true"},
		checkExpect(trace, &Expect{Outcome: OutcomeCommitted, Modified: &modified}))
	assert.Equal(t, []string{"expected outcome CONFLICT, got committed"},
		checkExpect(trace, &Expect{Outcome: "CONFLICT", Created: []int{1999}}))
}

func TestSuiteResult(t *testing.T) {
	var suite SuiteResult
	suite.Add("ok", &Result{Pass: true})
	suite.Add("bad", &Result{Pass: false, Errors: []string{"boom"}})

	assert.Equal(t, 2, suite.Total)
	assert.Equal(t, 1, suite.Passed)
	assert.Equal(t, 1, suite.Failed)
	assert.Equal(t, []SuiteFailure{{Scenario: "bad", Errors: []string{"boom"}}}, suite.Failures)
}
