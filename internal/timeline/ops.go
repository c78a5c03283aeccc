package timeline

import (
	"context"
	"os"
	"slices"

	"github.com/roach88/strata/internal/errs"
	"github.com/roach88/strata/internal/integrity"
	"github.com/roach88/strata/internal/locator"
	"github.com/roach88/strata/internal/materialize"
	"github.com/roach88/strata/internal/recipe"
	"github.com/roach88/strata/internal/reconcile"
	"github.com/roach88/strata/internal/timelog"
)

const (
	minYear = 1
	maxYear = 9999
)

// Apply edits the construction database of a state year and carries the
// change into every later materialized year.
//
// A year that does not exist yet is created from the baseline, pruned to
// the buildings standing in it and caught up with the history logged for
// earlier years before the recipe is applied. The recipe is merged into
// the year's own modifications; later years only gain reconciliation
// records.
func (t *Timeline) Apply(ctx context.Context, year int, r recipe.Recipe) (*Result, error) {
	return t.apply(ctx, "apply", year, r)
}

// ApplyChanges resolves named atomic changes, failing closed on any
// overlapping key, and applies the merged recipe like Apply.
func (t *Timeline) ApplyChanges(ctx context.Context, year int, names []string) (*Result, error) {
	r, err := t.changes.Resolve(names)
	if err != nil {
		return nil, err
	}
	res, err := t.apply(ctx, "apply-changes", year, r)
	if err != nil {
		return nil, err
	}
	res.Changes = slices.Clone(names)
	return res, nil
}

func (t *Timeline) apply(ctx context.Context, op string, year int, r recipe.Recipe) (*Result, error) {
	if err := validateYear(year); err != nil {
		return nil, err
	}
	delta := r.Compact()
	if delta.IsEmpty() {
		return nil, errs.Validation("no archetypes specified in the modification recipe")
	}
	if err := recipe.Validate(r); err != nil {
		return nil, err
	}
	if _, err := t.preflight(); err != nil {
		return nil, err
	}
	if err := t.checkArchetypes(year, delta); err != nil {
		return nil, err
	}
	paths, err := t.capturePaths(year)
	if err != nil {
		return nil, err
	}

	return t.transact(ctx, txSpec{op: op, year: year, paths: paths}, func(x *tx) error {
		if err := x.enter(StageMaterializingYear); err != nil {
			return err
		}
		if err := x.materialize(year, 0); err != nil {
			return err
		}

		if err := x.enter(StageApplyingDelta); err != nil {
			return err
		}
		modified, err := t.mat.ApplyConstructionChange(year, delta, materialize.ApplyOptions{})
		if err != nil {
			return err
		}
		x.res.Modified = modified
		if !modified {
			x.logger.Info("delta matches the state year; nothing to log", "year", year)
			return nil
		}
		entry := x.log[year]
		entry.Modifications = recipe.Merge(entry.Modifications, delta)
		entry.LatestModifiedAt = timelog.Timestamp(t.clock())
		x.touch(year)

		if err := x.enter(StagePropagatingForward); err != nil {
			return err
		}
		return x.propagate(year)
	})
}

// CreateYear materializes an empty state year, caught up with the history
// logged before it.
func (t *Timeline) CreateYear(ctx context.Context, year int) (*Result, error) {
	if err := validateYear(year); err != nil {
		return nil, err
	}
	log, err := t.preflight()
	if err != nil {
		return nil, err
	}
	if log.Has(year) {
		return nil, errs.Validation("state year %d already exists", year)
	}
	paths, err := t.capturePaths(year)
	if err != nil {
		return nil, err
	}
	return t.transact(ctx, txSpec{op: "create-year", year: year, paths: paths}, func(x *tx) error {
		if err := x.enter(StageMaterializingYear); err != nil {
			return err
		}
		return x.materialize(year, 0)
	})
}

// RemoveYear deletes a state year folder and its log entry. Later years
// keep whatever they inherited; Bake rebuilds them from the remaining log.
func (t *Timeline) RemoveYear(ctx context.Context, year int) (*Result, error) {
	log, err := t.Log()
	if err != nil {
		return nil, err
	}
	if !log.Has(year) && !t.mat.Exists(year) {
		return nil, errs.NotFound("state year %d does not exist in timeline %q", year, t.Name())
	}
	paths := []string{t.loc.LogFile(), t.loc.StateDir(year)}
	return t.transact(ctx, txSpec{op: "remove-year", year: year, paths: paths, verify: integrity.Basic}, func(x *tx) error {
		if err := x.enter(StageMaterializingYear); err != nil {
			return err
		}
		if entry, ok := x.log[year]; ok && !entry.Modifications.IsEmpty() {
			x.logger.Warn("removed year had modifications; later years keep them until the timeline is baked", "year", year)
		}
		if err := t.mat.Remove(year); err != nil {
			return err
		}
		delete(x.log, year)
		return nil
	})
}

// Reconcile re-applies the cumulative history to every materialized year
// after triggerYear.
func (t *Timeline) Reconcile(ctx context.Context, triggerYear int) (*Result, error) {
	log, err := t.preflight()
	if err != nil {
		return nil, err
	}
	if !log.Has(triggerYear) {
		return nil, errs.NotFound("state year %d is not logged in timeline %q", triggerYear, t.Name())
	}
	paths, err := t.capturePaths(triggerYear)
	if err != nil {
		return nil, err
	}
	return t.transact(ctx, txSpec{op: "reconcile", year: triggerYear, paths: paths}, func(x *tx) error {
		if err := x.enter(StagePropagatingForward); err != nil {
			return err
		}
		return x.propagate(triggerYear)
	})
}

// RequiredYears returns every year that should have a state folder: the
// logged years and every baseline construction year.
func (t *Timeline) RequiredYears(log timelog.Log) ([]int, error) {
	stock, err := t.mat.Stock()
	if err != nil {
		return nil, err
	}
	seen := map[int]bool{}
	for _, y := range log.Years() {
		seen[y] = true
	}
	for _, y := range stock.Construction {
		seen[y] = true
	}
	return locator.SortedYears(seen), nil
}

// EnsureRequiredYears materializes every required year that is missing and
// refreshes the building events of every required year. Logged years
// missing on disk are recreated.
func (t *Timeline) EnsureRequiredYears(ctx context.Context) (*Result, error) {
	log, err := t.Log()
	if err != nil {
		return nil, err
	}
	years, err := t.RequiredYears(log)
	if err != nil {
		return nil, err
	}
	paths := []string{t.loc.LogFile()}
	for _, y := range years {
		paths = append(paths, t.loc.StateDir(y))
	}
	return t.transact(ctx, txSpec{op: "ensure", paths: paths}, func(x *tx) error {
		if err := x.enter(StageMaterializingYear); err != nil {
			return err
		}
		prev := 0
		for _, y := range years {
			if err := x.materialize(y, prev); err != nil {
				return err
			}
			if err := x.mergeBuildingEvents(y, prev); err != nil {
				return err
			}
			prev = y
		}
		return nil
	})
}

// Bake rebuilds every required year from the log: each folder is deleted,
// recreated from the baseline, pruned and patched with its cumulative
// recipe. Envelope codes are therefore reproducible from the log alone.
func (t *Timeline) Bake(ctx context.Context) (*Result, error) {
	log, err := t.Log()
	if err != nil {
		return nil, err
	}
	years, err := t.RequiredYears(log)
	if err != nil {
		return nil, err
	}
	if len(years) == 0 {
		return nil, errs.Validation("timeline %q has no logged years and the baseline has no construction years", t.Name())
	}
	paths := []string{t.loc.LogFile()}
	for _, y := range years {
		paths = append(paths, t.loc.StateDir(y))
	}
	return t.transact(ctx, txSpec{op: "bake", paths: paths}, func(x *tx) error {
		if err := x.enter(StageMaterializingYear); err != nil {
			return err
		}
		prev := 0
		for _, y := range years {
			if err := os.RemoveAll(t.loc.StateDir(y)); err != nil {
				return errs.IO("remove", t.loc.StateDir(y), err)
			}
			if err := t.mat.Create(y); err != nil {
				return err
			}
			if _, err := t.mat.PruneUnbuiltBuildings(y); err != nil {
				return err
			}
			if !x.log.Has(y) {
				x.log[y] = timelog.NewEntry(t.clock())
			}
			if err := x.mergeBuildingEvents(y, prev); err != nil {
				return err
			}
			x.touch(y)
			prev = y
		}

		if err := x.enter(StageApplyingDelta); err != nil {
			return err
		}
		for _, y := range years {
			cum := reconcile.Cumulative(x.log, y)
			if cum.IsEmpty() {
				continue
			}
			modified, err := t.mat.ApplyConstructionChange(y, cum, materialize.ApplyOptions{})
			if err != nil {
				return err
			}
			x.res.Modified = x.res.Modified || modified
		}
		return nil
	})
}

// materialize creates year if it is missing: baseline copy, pruning, a log
// entry with its building events, then the catch-up with earlier history.
// prev is the year building events compare against; zero means the
// previous logged year.
func (x *tx) materialize(year, prev int) error {
	t := x.t
	if t.mat.Exists(year) {
		if !x.log.Has(year) {
			return errs.Integrity("state year %d exists on disk but not in the event log", year)
		}
		return nil
	}
	if err := t.mat.Create(year); err != nil {
		return err
	}
	if _, err := t.mat.PruneUnbuiltBuildings(year); err != nil {
		return err
	}
	if prev == 0 {
		prev, _ = reconcile.Previous(x.log, year)
	}
	entry, ok := x.log[year]
	if !ok {
		entry = timelog.NewEntry(t.clock())
		x.log[year] = entry
	}
	ev, err := t.mat.BuildingEvents(year, prev)
	if err != nil {
		return err
	}
	entry.BuildingEvents = mergeEvents(entry.BuildingEvents, ev)
	if _, err := t.rec.CatchUp(x.log, year); err != nil {
		return err
	}
	x.res.Created = append(x.res.Created, year)
	x.touch(year)
	x.logger.Info("created state year", "year", year, "new_buildings", len(ev.NewBuildings), "demolished_buildings", len(ev.DemolishedBuildings))
	return nil
}

func (x *tx) mergeBuildingEvents(year, prev int) error {
	ev, err := x.t.mat.BuildingEvents(year, prev)
	if err != nil {
		return err
	}
	entry := x.log[year]
	entry.BuildingEvents = mergeEvents(entry.BuildingEvents, ev)
	return nil
}

// mergeEvents appends names from add that are not already listed.
func mergeEvents(have, add timelog.BuildingEvents) timelog.BuildingEvents {
	out := timelog.BuildingEvents{
		NewBuildings:        slices.Clone(have.NewBuildings),
		DemolishedBuildings: slices.Clone(have.DemolishedBuildings),
	}
	for _, b := range add.NewBuildings {
		if !slices.Contains(out.NewBuildings, b) {
			out.NewBuildings = append(out.NewBuildings, b)
		}
	}
	for _, b := range add.DemolishedBuildings {
		if !slices.Contains(out.DemolishedBuildings, b) {
			out.DemolishedBuildings = append(out.DemolishedBuildings, b)
		}
	}
	if out.NewBuildings == nil {
		out.NewBuildings = []string{}
	}
	if out.DemolishedBuildings == nil {
		out.DemolishedBuildings = []string{}
	}
	return out
}

// preflight loads the log and runs the basic integrity check before any
// file is touched.
func (t *Timeline) preflight() (timelog.Log, error) {
	log, err := t.Log()
	if err != nil {
		return nil, err
	}
	if err := t.checker.Check(log, integrity.Basic); err != nil {
		return nil, err
	}
	return log, nil
}

// checkArchetypes reports every recipe archetype missing from the year's
// construction types, or from the baseline's when the year does not exist.
func (t *Timeline) checkArchetypes(year int, r recipe.Recipe) error {
	path := t.loc.Baseline(locator.ConstructionTypes)
	if t.mat.Exists(year) {
		path = t.loc.State(year, locator.ConstructionTypes)
	}
	types, err := t.tables.ReadTable(path, materialize.ArchetypeIndex)
	if err != nil {
		return err
	}
	var missing []string
	for _, arch := range r.Archetypes() {
		if !types.Has(arch) {
			missing = append(missing, arch)
		}
	}
	if len(missing) > 0 {
		return errs.NotFound("archetypes not found in construction types of state year %d", year).WithKeys(missing...)
	}
	return nil
}

// capturePaths returns the log file plus the folders of year and every
// materialized later year.
func (t *Timeline) capturePaths(year int) ([]string, error) {
	disk, err := locator.StateYears(t.loc)
	if err != nil {
		return nil, err
	}
	paths := []string{t.loc.LogFile(), t.loc.StateDir(year)}
	for _, y := range disk {
		if y > year {
			paths = append(paths, t.loc.StateDir(y))
		}
	}
	return paths, nil
}

func validateYear(year int) error {
	if year < minYear || year > maxYear {
		return errs.Validation("year %d is out of range [%d, %d]", year, minYear, maxYear)
	}
	return nil
}
