// Package locator resolves where every artifact of a scenario lives on disk.
//
// A scenario root holds the baseline inputs tree and a district_timelines
// folder. Each timeline folder holds its event log, its atomic change
// templates, its journal and one state_<year> folder per materialized year.
// Every state folder mirrors the baseline layout, so the same artifact id
// resolves to the baseline or to any year.
package locator

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

// Artifact identifies a file or folder inside an inputs tree.
type Artifact string

const (
	Inputs              Artifact = "inputs"
	ZoneGeometry        Artifact = "zone_geometry"
	BuildingProperties  Artifact = "building_properties"
	Architecture        Artifact = "architecture"
	AirConditioning     Artifact = "air_conditioning"
	IndoorComfort       Artifact = "indoor_comfort"
	InternalLoads       Artifact = "internal_loads"
	SupplySystems       Artifact = "supply_systems"
	MonthlyMultipliers  Artifact = "monthly_multipliers"
	Schedules           Artifact = "schedules"
	ConstructionTypes   Artifact = "construction_types"
	EnvelopeDir         Artifact = "envelope"
	EnvelopeWall        Artifact = "envelope_wall"
	EnvelopeRoof        Artifact = "envelope_roof"
	EnvelopeFloor       Artifact = "envelope_floor"
	EnvelopeWindow      Artifact = "envelope_window"
	EnvelopeCodeCounter Artifact = "envelope_code_counters"
)

var relPaths = map[Artifact]string{
	Inputs:              "inputs",
	ZoneGeometry:        "inputs/building-geometry/zone.csv",
	BuildingProperties:  "inputs/building-properties",
	Architecture:        "inputs/building-properties/architecture.csv",
	AirConditioning:     "inputs/building-properties/air_conditioning.csv",
	IndoorComfort:       "inputs/building-properties/indoor_comfort.csv",
	InternalLoads:       "inputs/building-properties/internal_loads.csv",
	SupplySystems:       "inputs/building-properties/supply_systems.csv",
	MonthlyMultipliers:  "inputs/building-properties/schedules/monthly_multipliers.csv",
	Schedules:           "inputs/building-properties/schedules",
	ConstructionTypes:   "inputs/database/archetypes/construction_types.csv",
	EnvelopeDir:         "inputs/database/assemblies/envelope",
	EnvelopeWall:        "inputs/database/assemblies/envelope/wall.csv",
	EnvelopeRoof:        "inputs/database/assemblies/envelope/roof.csv",
	EnvelopeFloor:       "inputs/database/assemblies/envelope/floor.csv",
	EnvelopeWindow:      "inputs/database/assemblies/envelope/window.csv",
	EnvelopeCodeCounter: "inputs/database/assemblies/envelope/code_counters.yml",
}

// PropertyTables lists the per-building tables keyed by building name.
var PropertyTables = []Artifact{Architecture, AirConditioning, IndoorComfort, InternalLoads, SupplySystems}

const (
	timelinesFolder   = "district_timelines"
	logFileName       = "district_timeline_log.yml"
	changesFileName   = "atomic_changes.yml"
	journalFileName   = "timeline_journal.db"
	statePrefix       = "state_"
	signatureFileName = ".district_timeline_signature.json"
)

var stateDirPattern = regexp.MustCompile(`^state_(\d+)$`)

// Resolver is the path-resolution contract consumed by the engine.
// Baseline resolves an artifact in the scenario's own inputs tree; State
// resolves it inside a state year.
type Resolver interface {
	Baseline(a Artifact) string
	State(year int, a Artifact) string
	StateDir(year int) string
	TimelineDir() string
	LogFile() string
	ChangesFile() string
	JournalFile() string
	SignatureFile(year int) string
	ScheduleFile(year int, building string) string
}

// Locator is the filesystem Resolver for one scenario timeline.
type Locator struct {
	scenario string
	timeline string
}

// New returns a Locator for timeline inside scenario.
func New(scenario, timeline string) *Locator {
	return &Locator{scenario: filepath.Clean(scenario), timeline: timeline}
}

// Scenario returns the scenario root.
func (l *Locator) Scenario() string { return l.scenario }

// Timeline returns the timeline name.
func (l *Locator) Timeline() string { return l.timeline }

// Baseline resolves an artifact in the scenario's baseline inputs.
func (l *Locator) Baseline(a Artifact) string {
	return filepath.Join(l.scenario, rel(a))
}

// State resolves an artifact inside state year.
func (l *Locator) State(year int, a Artifact) string {
	return filepath.Join(l.StateDir(year), rel(a))
}

// StateDir returns the folder of a state year.
func (l *Locator) StateDir(year int) string {
	return filepath.Join(l.TimelineDir(), statePrefix+strconv.Itoa(year))
}

// TimelinesRoot returns the folder holding every timeline of the scenario.
func (l *Locator) TimelinesRoot() string {
	return filepath.Join(l.scenario, timelinesFolder)
}

// TimelineDir returns the timeline folder.
func (l *Locator) TimelineDir() string {
	return filepath.Join(l.TimelinesRoot(), l.timeline)
}

// LogFile returns the event log path.
func (l *Locator) LogFile() string {
	return filepath.Join(l.TimelineDir(), logFileName)
}

// ChangesFile returns the atomic change template path.
func (l *Locator) ChangesFile() string {
	return filepath.Join(l.TimelineDir(), changesFileName)
}

// JournalFile returns the transaction journal path.
func (l *Locator) JournalFile() string {
	return filepath.Join(l.TimelineDir(), journalFileName)
}

// SignatureFile returns the applied-signature sidecar of a state year.
func (l *Locator) SignatureFile(year int) string {
	return filepath.Join(l.StateDir(year), signatureFileName)
}

// ScheduleFile returns the per-building schedule file inside state year.
func (l *Locator) ScheduleFile(year int, building string) string {
	return filepath.Join(l.State(year, Schedules), building+".csv")
}

// ParseStateDir extracts the year from a folder name such as "state_2030".
func ParseStateDir(name string) (int, bool) {
	m := stateDirPattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	year, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return year, true
}

// StateYears lists the years materialized under a timeline folder, ascending.
// A missing timeline folder yields no years.
func StateYears(r Resolver) ([]int, error) {
	entries, err := os.ReadDir(r.TimelineDir())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", r.TimelineDir(), err)
	}
	var years []int
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if y, ok := ParseStateDir(e.Name()); ok {
			years = append(years, y)
		}
	}
	sort.Ints(years)
	return years, nil
}

// SortedYears returns the keys of a year-keyed map in ascending order.
func SortedYears[V any](m map[int]V) []int {
	years := make([]int, 0, len(m))
	for y := range m {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

func rel(a Artifact) string {
	p, ok := relPaths[a]
	if !ok {
		panic(fmt.Sprintf("locator: unknown artifact %q", a))
	}
	return filepath.FromSlash(p)
}
