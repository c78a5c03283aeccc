package harness

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"

	"github.com/roach88/strata/internal/changes"
	"github.com/roach88/strata/internal/errs"
	"github.com/roach88/strata/internal/integrity"
	"github.com/roach88/strata/internal/locator"
	"github.com/roach88/strata/internal/recipe"
	"github.com/roach88/strata/internal/testutil"
	"github.com/roach88/strata/internal/timeline"
)

// Harness executes the steps of one scenario against one timeline.
type Harness struct {
	tl     *timeline.Timeline
	logger *slog.Logger
}

// Run executes a scenario against the scenario folder at root and returns
// the result.
//
// The timeline runs with a deterministic clock, sequential transaction
// ids and comprehensive verification. Execution flow:
//  1. Store the scenario's atomic changes
//  2. Execute every step, checking its expect clause
//  3. Collect the final years and snapshot cells
//  4. Evaluate assertions
//
// A step that fails is recorded in the trace; the remaining steps still
// run. The returned error is reserved for problems outside the scenario.
func Run(ctx context.Context, root string, scenario *Scenario) (*Result, error) {
	clock := testutil.NewDeterministicClock()
	logger := testutil.DiscardLogger()
	tl, err := timeline.Open(root, scenario.Timeline,
		timeline.WithClock(clock.Now),
		timeline.WithIDGenerator(testutil.NewSequentialIDs("")),
		timeline.WithLogger(logger),
		timeline.WithIntegrityMode(integrity.Comprehensive),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open timeline: %w", err)
	}
	defer tl.Close()

	h := &Harness{tl: tl, logger: logger}
	if err := h.putChanges(scenario.Changes); err != nil {
		return nil, fmt.Errorf("failed to store atomic changes: %w", err)
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		trace := h.executeStep(ctx, i+1, step)
		result.Trace = append(result.Trace, trace)

		expect := step.Expect
		if expect == nil {
			expect = &Expect{Outcome: OutcomeCommitted}
		}
		for _, msg := range checkExpect(trace, expect) {
			result.AddError(fmt.Sprintf("steps[%d] %s: %s", i, step.Op, msg))
		}
	}

	if err := h.collect(result, scenario.Snapshot); err != nil {
		return nil, fmt.Errorf("failed to collect final state: %w", err)
	}
	for _, msg := range EvaluateAssertions(tl, result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) putChanges(defs map[string]ChangeDef) error {
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		def := defs[name]
		if _, err := h.tl.Changes().Put(changes.Change{
			Name:          name,
			Description:   def.Description,
			Modifications: def.Modifications,
		}); err != nil {
			return fmt.Errorf("change %s: %w", name, err)
		}
	}
	return nil
}

// executeStep runs one operation and records its outcome.
func (h *Harness) executeStep(ctx context.Context, seq int, step Step) StepTrace {
	var (
		res *timeline.Result
		err error
	)
	switch step.Op {
	case OpApply:
		res, err = h.tl.Apply(ctx, step.Year, step.Recipe)
	case OpApplyChanges:
		res, err = h.tl.ApplyChanges(ctx, step.Year, step.Changes)
	case OpCreateYear:
		res, err = h.tl.CreateYear(ctx, step.Year)
	case OpRemoveYear:
		res, err = h.tl.RemoveYear(ctx, step.Year)
	case OpReconcile:
		res, err = h.tl.Reconcile(ctx, step.Year)
	case OpEnsure:
		res, err = h.tl.EnsureRequiredYears(ctx)
	case OpBake:
		res, err = h.tl.Bake(ctx)
	default:
		err = errs.Validation("unknown op %q", step.Op)
	}

	trace := StepTrace{Seq: seq, Op: step.Op, Year: step.Year}
	if err != nil {
		trace.Outcome = outcomeOf(err)
		trace.Error = err.Error()
		h.logger.Info("step failed", "step", seq, "op", step.Op, "error", err)
		return trace
	}
	trace.Outcome = OutcomeCommitted
	trace.TxID = res.TxID
	trace.Created = res.Created
	trace.Modified = res.Modified
	trace.Reconciled = res.Reconciled
	trace.Touched = res.Touched
	h.logger.Info("step committed", "step", seq, "op", step.Op, "tx", res.TxID)
	return trace
}

// outcomeOf names a failure by its error code.
func outcomeOf(err error) string {
	if code := errs.CodeOf(err); code != "" {
		return string(code)
	}
	return "ERROR"
}

// checkExpect compares a step trace with its expect clause.
func checkExpect(trace StepTrace, expect *Expect) []string {
	var problems []string
	if trace.Outcome != expect.Outcome {
		msg := fmt.Sprintf("expected outcome %s, got %s", expect.Outcome, trace.Outcome)
		if trace.Error != "" {
			msg += ": " + trace.Error
		}
		return append(problems, msg)
	}
	for _, c := range []struct {
		name           string
		expect, actual []int
	}{
		{"created", expect.Created, trace.Created},
		{"reconciled", expect.Reconciled, trace.Reconciled},
		{"touched", expect.Touched, trace.Touched},
	} {
		if c.expect != nil && !slices.Equal(c.expect, c.actual) {
			problems = append(problems, fmt.Sprintf("expected %s %v, got %v", c.name, c.expect, c.actual))
		}
	}
	if expect.Modified != nil && *expect.Modified != trace.Modified {
		problems = append(problems, fmt.Sprintf("expected modified %t, got %t", *expect.Modified, trace.Modified))
	}
	return problems
}

// collect reads the final years and the snapshot cells.
func (h *Harness) collect(result *Result, snapshot []SnapshotEntry) error {
	disk, err := locator.StateYears(h.tl.Locator())
	if err != nil {
		return err
	}
	log, err := h.tl.Log()
	if err != nil {
		return err
	}
	result.DiskYears = nonNil(disk)
	result.LoggedYears = nonNil(log.Years())

	for _, entry := range snapshot {
		for _, raw := range entry.Paths {
			p, err := recipe.ParsePath(raw)
			if err != nil {
				return err
			}
			v, err := h.tl.ValueAt(entry.Year, p)
			if err != nil {
				v = "<" + outcomeOf(err) + ">"
			}
			result.Values = append(result.Values, CellValue{Year: entry.Year, Path: raw, Value: v})
		}
	}
	return nil
}

func nonNil(years []int) []int {
	if years == nil {
		return []int{}
	}
	return years
}
