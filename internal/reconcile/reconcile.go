// Package reconcile keeps later state years consistent with the
// modifications logged for earlier years.
//
// The expected configuration of a year is the cumulative recipe: every
// logged year's modifications up to and including it, merged in ascending
// year order. Reconciliation diffs that recipe against the year's
// materialized database and applies only what is missing, so running it
// again changes nothing.
package reconcile

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/roach88/strata/internal/errs"
	"github.com/roach88/strata/internal/materialize"
	"github.com/roach88/strata/internal/recipe"
	"github.com/roach88/strata/internal/timelog"
)

// Cumulative merges the modifications of every logged year ≤ upto in
// ascending order. Later values win and Keep never erases a set value.
//
// A year that repoints an archetype to another envelope code (a
// construction_type pointer field) drops the archetype's earlier edits of
// that component: they described the old code.
func Cumulative(log timelog.Log, upto int) recipe.Recipe {
	acc := recipe.Recipe{}
	for _, y := range log.Years() {
		if y > upto {
			break
		}
		delta := log[y].Modifications
		dropRepointed(acc, delta)
		acc = recipe.Merge(acc, delta)
	}
	return acc.Compact()
}

func dropRepointed(acc, delta recipe.Recipe) {
	for arch, comps := range delta {
		for field, v := range comps[recipe.ConstructionTypeComponent] {
			if v.IsKeep() {
				continue
			}
			for _, comp := range materialize.PointerComponents(field) {
				delete(acc[arch], comp)
			}
		}
	}
}

// Mismatch is one leaf whose materialized value differs from the expected
// one.
type Mismatch struct {
	Year     int
	Path     recipe.Path
	Expected string
	Actual   string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("year %d: %s expected %q, found %q", m.Year, m.Path, m.Expected, m.Actual)
}

// Result is the outcome of comparing a database with an expected recipe.
type Result struct {
	// Missing holds the leaves to apply to bring the database in line.
	Missing recipe.Recipe
	// Mismatches lists every differing leaf, in path order.
	Mismatches []Mismatch
	// Problems lists leaves that cannot be resolved at all: unknown
	// archetypes, dangling codes, absent columns.
	Problems []string
}

// InSync reports whether nothing is missing and nothing is broken.
func (r Result) InSync() bool {
	return r.Missing.IsEmpty() && len(r.Problems) == 0
}

// Diff compares expected with the database. Keep leaves always match.
//
// When a construction_type pointer leaf differs, the expected edits of the
// components it points to are added to Missing too, since the database
// will fork them from the new code.
func Diff(db *materialize.Database, expected recipe.Recipe) Result {
	res := Result{Missing: recipe.Recipe{}}
	var repointed []recipe.Path
	for _, p := range expected.Paths() {
		v, _ := expected.Get(p.Archetype, p.Component, p.Field)
		if v.IsKeep() {
			continue
		}
		actual, err := db.ValueAt(p)
		if err != nil {
			res.Problems = append(res.Problems, fmt.Sprintf("%s: %v", p, errs.Message(err)))
			continue
		}
		if v.Matches(actual) {
			continue
		}
		res.Missing.Set(p.Archetype, p.Component, p.Field, v)
		res.Mismatches = append(res.Mismatches, Mismatch{Year: db.Year(), Path: p, Expected: v.Format(), Actual: actual})
		if p.Component == recipe.ConstructionTypeComponent {
			repointed = append(repointed, p)
		}
	}
	for _, p := range repointed {
		for _, comp := range materialize.PointerComponents(p.Field) {
			for field, v := range expected[p.Archetype][comp] {
				if !v.IsKeep() {
					res.Missing.Set(p.Archetype, comp, field, v)
				}
			}
		}
	}
	return res
}

// Engine applies reconciliation through a Materializer.
type Engine struct {
	m      *materialize.Materializer
	clock  func() time.Time
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used for reconciliation timestamps.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// New returns an Engine.
func New(m *materialize.Materializer, opts ...Option) *Engine {
	e := &Engine{m: m, clock: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Year diffs a materialized year against its cumulative recipe and applies
// whatever is missing, tagged with triggerYear. When anything was applied
// a reconciliation record is appended to the year's log entry and
// latest_reconciled_at is set; the entry's own modifications are never
// touched. It reports whether the year changed.
//
// log is updated in memory only; the caller persists it.
func (e *Engine) Year(log timelog.Log, year, triggerYear int) (bool, error) {
	entry, ok := log[year]
	if !ok {
		return false, errs.NotFound("state year %d is not logged", year)
	}
	db, err := e.m.OpenDatabase(year)
	if err != nil {
		return false, err
	}
	res := Diff(db, Cumulative(log, year))
	if len(res.Problems) > 0 {
		return false, errs.Validation("cannot reconcile state year %d", year).WithKeys(res.Problems...)
	}
	if res.Missing.IsEmpty() {
		e.logger.Debug("state year already reconciled", "year", year, "trigger_year", triggerYear)
		return false, nil
	}
	changed, err := e.m.ApplyConstructionChange(year, res.Missing, materialize.ApplyOptions{TriggerYear: triggerYear})
	if err != nil {
		return false, fmt.Errorf("failed to reconcile state year %d: %w", year, err)
	}
	if !changed {
		return false, nil
	}
	now := timelog.Timestamp(e.clock())
	entry.Reconciliations = append(entry.Reconciliations, timelog.Reconciliation{
		TriggerYear:   triggerYear,
		AppliedAt:     now,
		Modifications: res.Missing,
	})
	entry.LatestReconciledAt = now
	e.logger.Info("reconciled state year", "year", year, "trigger_year", triggerYear, "leaves", res.Missing.Len())
	return true, nil
}

// PropagateForward reconciles every logged, materialized year after
// triggerYear in ascending order and returns the years that changed.
func (e *Engine) PropagateForward(log timelog.Log, triggerYear int) ([]int, error) {
	var changed []int
	for _, y := range log.Years() {
		if y <= triggerYear || !e.m.Exists(y) {
			continue
		}
		ok, err := e.Year(log, y, triggerYear)
		if err != nil {
			return changed, err
		}
		if ok {
			changed = append(changed, y)
		}
	}
	return changed, nil
}

// CatchUp brings a newly created year in line with the history logged
// before it. The record is attributed to the latest earlier logged year;
// a year with no earlier history is left alone.
func (e *Engine) CatchUp(log timelog.Log, year int) (bool, error) {
	prev, ok := Previous(log, year)
	if !ok {
		return false, nil
	}
	return e.Year(log, year, prev)
}

// Previous returns the latest logged year before year.
func Previous(log timelog.Log, year int) (int, bool) {
	years := log.Years()
	i, _ := slices.BinarySearch(years, year)
	if i == 0 {
		return 0, false
	}
	return years[i-1], true
}

// Verify diffs every logged, materialized year against its cumulative
// recipe without writing anything.
func (e *Engine) Verify(log timelog.Log) ([]Mismatch, []string, error) {
	var mismatches []Mismatch
	var problems []string
	for _, y := range log.Years() {
		if !e.m.Exists(y) {
			continue
		}
		db, err := e.m.OpenDatabase(y)
		if err != nil {
			return nil, nil, err
		}
		res := Diff(db, Cumulative(log, y))
		mismatches = append(mismatches, res.Mismatches...)
		for _, p := range res.Problems {
			problems = append(problems, fmt.Sprintf("year %d: %s", y, p))
		}
	}
	return mismatches, problems, nil
}
