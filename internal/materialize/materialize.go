// Package materialize creates, edits and removes state-year folders.
//
// A state year is a full copy of the scenario's baseline inputs, pruned to
// the buildings that stand in that year and patched with the envelope
// changes the timeline has accumulated up to it. Envelope component codes
// are append-only: an edit never rewrites an existing code, it forks a new
// one named {Component}_{Archetype}_YEAR_{year}[_n] and repoints the
// archetype to it.
package materialize

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/roach88/strata/internal/errs"
	"github.com/roach88/strata/internal/fsutil"
	"github.com/roach88/strata/internal/locator"
	"github.com/roach88/strata/internal/table"
	"github.com/roach88/strata/internal/timelog"
)

// Materializer owns the state-year folders of one timeline.
type Materializer struct {
	loc    locator.Resolver
	tables table.Store
	log    *timelog.File
	clock  func() time.Time
	logger *slog.Logger
}

// Option configures a Materializer.
type Option func(*Materializer)

// WithClock sets the clock used for log timestamps.
func WithClock(clock func() time.Time) Option {
	return func(m *Materializer) { m.clock = clock }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Materializer) { m.logger = logger }
}

// New returns a Materializer.
func New(loc locator.Resolver, tables table.Store, log *timelog.File, opts ...Option) *Materializer {
	m := &Materializer{
		loc:    loc,
		tables: tables,
		log:    log,
		clock:  time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Exists reports whether a state-year folder exists.
func (m *Materializer) Exists(year int) bool {
	return fsutil.IsDir(m.loc.StateDir(year))
}

// Create copies the baseline inputs into the state-year folder. Existing
// files are overwritten and files only present in the state folder are kept,
// so calling Create on an existing year repairs it rather than resetting it.
func (m *Materializer) Create(year int) error {
	src := m.loc.Baseline(locator.Inputs)
	if !fsutil.IsDir(src) {
		return errs.NotFound("baseline inputs %s do not exist", src)
	}
	if err := fsutil.CopyTree(src, m.loc.State(year, locator.Inputs)); err != nil {
		return fmt.Errorf("failed to materialize state year %d: %w", year, err)
	}
	m.logger.Debug("materialized state year", "year", year, "dir", m.loc.StateDir(year))
	return nil
}

// Remove deletes the state-year folder and its log entry. Folder removal
// errors are ignored; the log entry is removed regardless.
func (m *Materializer) Remove(year int) error {
	if err := os.RemoveAll(m.loc.StateDir(year)); err != nil {
		m.logger.Warn("failed to remove state year folder", "year", year, "error", err)
	}
	return m.log.DelYear(year)
}

// Stock loads the construction and demolition years of the baseline
// buildings.
func (m *Materializer) Stock() (*Stock, error) {
	zone, err := m.tables.ReadTable(m.loc.Baseline(locator.ZoneGeometry), BuildingIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to read baseline zone: %w", err)
	}
	return NewStock(zone)
}

// PruneUnbuiltBuildings removes from a state year every building that does
// not stand in that year: from the zone table, every per-building property
// table, the monthly multipliers and the schedule files. It returns the
// removed names in zone order.
func (m *Materializer) PruneUnbuiltBuildings(year int) ([]string, error) {
	stock, err := m.Stock()
	if err != nil {
		return nil, err
	}
	absent := stock.Absent(year)
	if len(absent) == 0 {
		return nil, nil
	}

	zonePath := m.loc.State(year, locator.ZoneGeometry)
	zone, err := m.tables.ReadTable(zonePath, BuildingIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to read zone of state year %d: %w", year, err)
	}
	var removed []string
	for _, name := range zone.Keys() {
		if slices.Contains(absent, name) {
			removed = append(removed, name)
		}
	}
	if zone.Delete(absent...) > 0 {
		if err := m.tables.WriteTable(zonePath, zone); err != nil {
			return nil, err
		}
	}

	perBuilding := append(slices.Clone(locator.PropertyTables), locator.MonthlyMultipliers)
	for _, a := range perBuilding {
		path := m.loc.State(year, a)
		if !fsutil.Exists(path) {
			continue
		}
		t, err := m.tables.ReadTable(path, BuildingIndex)
		if err != nil {
			return nil, fmt.Errorf("failed to prune %s: %w", path, err)
		}
		if t.Delete(absent...) > 0 {
			if err := m.tables.WriteTable(path, t); err != nil {
				return nil, err
			}
		}
	}

	for _, name := range absent {
		path := m.loc.ScheduleFile(year, name)
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, errs.IO("remove", path, err)
		}
	}

	if len(removed) > 0 {
		m.logger.Info("pruned buildings not standing in state year", "year", year, "count", len(removed))
	}
	return removed, nil
}

// BuildingEvents compares the buildings standing in year with those standing
// in prev. When prev is zero the year is compared with its own construction
// and demolition dates.
func (m *Materializer) BuildingEvents(year, prev int) (timelog.BuildingEvents, error) {
	stock, err := m.Stock()
	if err != nil {
		return timelog.BuildingEvents{}, err
	}
	ev := timelog.BuildingEvents{NewBuildings: []string{}, DemolishedBuildings: []string{}}
	if prev == 0 {
		for _, name := range stock.Names {
			if y, ok := stock.Construction[name]; ok && y == year {
				ev.NewBuildings = append(ev.NewBuildings, name)
			}
			if y, ok := stock.Demolition[name]; ok && y == year {
				ev.DemolishedBuildings = append(ev.DemolishedBuildings, name)
			}
		}
		return ev, nil
	}
	before, now := stock.Present(prev), stock.Present(year)
	for _, name := range now {
		if !slices.Contains(before, name) {
			ev.NewBuildings = append(ev.NewBuildings, name)
		}
	}
	for _, name := range before {
		if !slices.Contains(now, name) {
			ev.DemolishedBuildings = append(ev.DemolishedBuildings, name)
		}
	}
	return ev, nil
}

// derivedPointerColumns are the construction types columns copied onto each
// building's architecture row.
var derivedPointerColumns = []string{"type_wall", "type_roof", "type_floor", "type_base", "type_win"}

// SyncDerivedProperties copies each archetype's current envelope codes onto
// the architecture rows of the buildings using it. It returns the number of
// cells changed. A state year without an architecture table is left alone.
func (m *Materializer) SyncDerivedProperties(year int) (int, error) {
	path := m.loc.State(year, locator.Architecture)
	if !fsutil.Exists(path) {
		return 0, nil
	}
	arch, err := m.tables.ReadTable(path, BuildingIndex)
	if err != nil {
		return 0, err
	}
	db, err := m.OpenDatabase(year)
	if err != nil {
		return 0, err
	}
	types := db.Types()

	changed := 0
	for _, building := range arch.Keys() {
		archetype, _ := arch.Get(building, ArchetypeIndex)
		if archetype == "" || !types.Has(archetype) {
			continue
		}
		for _, col := range derivedPointerColumns {
			if !arch.HasColumn(col) || !types.HasColumn(col) {
				continue
			}
			want, _ := types.Get(archetype, col)
			got, _ := arch.Get(building, col)
			if got == want {
				continue
			}
			if err := arch.Set(building, col, want); err != nil {
				return 0, err
			}
			changed++
		}
	}
	if changed > 0 {
		if err := m.tables.WriteTable(path, arch); err != nil {
			return 0, err
		}
		m.logger.Debug("synchronized building envelope pointers", "year", year, "cells", changed)
	}
	return changed, nil
}
