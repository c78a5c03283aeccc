package materialize

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/roach88/strata/internal/errs"
	"github.com/roach88/strata/internal/fsutil"
	"github.com/roach88/strata/internal/locator"
	"github.com/roach88/strata/internal/recipe"
	"github.com/roach88/strata/internal/table"
)

const (
	// ArchetypeIndex is the index column of the construction types table.
	ArchetypeIndex = "const_type"
	// CodeIndex is the index column of every envelope component table.
	CodeIndex = "code"
	// BuildingIndex is the index column of zone and property tables.
	BuildingIndex = "name"
	// DescriptionColumn carries the provenance of forked codes.
	DescriptionColumn = "description"
)

var envelopeArtifacts = map[string]locator.Artifact{
	"wall":   locator.EnvelopeWall,
	"roof":   locator.EnvelopeRoof,
	"floor":  locator.EnvelopeFloor,
	"window": locator.EnvelopeWindow,
}

var componentAliases = map[string]string{
	"base": "floor",
	"win":  "window",
}

// pointerColumns lists, per recipe component name, the construction types
// columns that may hold its code, in preference order.
var pointerColumns = map[string][]string{
	"wall":   {"type_wall"},
	"roof":   {"type_roof"},
	"floor":  {"type_floor", "type_base"},
	"base":   {"type_base", "type_floor"},
	"window": {"type_win", "type_window"},
	"win":    {"type_win", "type_window"},
}

// PointerComponents returns the recipe components whose primary pointer is
// the given construction types column (type_win → window, win).
func PointerComponents(column string) []string {
	var out []string
	for comp, cols := range pointerColumns {
		if cols[0] == column {
			out = append(out, comp)
		}
	}
	slices.Sort(out)
	return out
}

// EnvelopeComponent maps a recipe component name to its envelope table
// name (base → floor, win → window).
func EnvelopeComponent(name string) (string, bool) {
	if alias, ok := componentAliases[name]; ok {
		name = alias
	}
	_, ok := envelopeArtifacts[name]
	return name, ok
}

// columnSuffixes lists, per envelope table, the suffixes its columns carry
// in preference order (floor tables use U_base, window tables U_win).
var columnSuffixes = map[string][]string{
	"wall":   {"wall"},
	"roof":   {"roof"},
	"floor":  {"floor", "base"},
	"window": {"window", "win"},
}

// ResolveColumn maps a recipe field to the component table column it
// edits. exists reports whether the column is present in t.
//
//   - material_name_* and thickness_* are used verbatim
//   - otherwise the field itself if present, else {field}_{suffix} for the
//     first table suffix that exists (Service_Life → Service_Life_wall)
func ResolveColumn(component, field string, t *table.Table) (column string, exists bool) {
	if strings.HasPrefix(field, "material_name_") || strings.HasPrefix(field, "thickness_") || t.HasColumn(field) {
		return field, t.HasColumn(field)
	}
	envelope, _ := EnvelopeComponent(component)
	suffixes := columnSuffixes[envelope]
	if len(suffixes) == 0 {
		suffixes = []string{envelope}
	}
	for _, s := range suffixes {
		if c := field + "_" + s; t.HasColumn(c) {
			return c, true
		}
	}
	return field + "_" + suffixes[0], false
}

// Database is the archetype and envelope database of one state year.
// Tables are read lazily and written only by Save.
type Database struct {
	year      int
	loc       locator.Resolver
	tables    table.Store
	types     *table.Table
	envelopes map[string]*table.Table
	dirty     map[string]bool
	typesDirt bool
	counters  map[string]int
	cntLoaded bool
	cntDirty  bool
}

// OpenDatabase reads the construction types table of a state year.
func (m *Materializer) OpenDatabase(year int) (*Database, error) {
	if !fsutil.IsDir(m.loc.StateDir(year)) {
		return nil, errs.NotFound("state year %d is not materialized", year)
	}
	types, err := m.tables.ReadTable(m.loc.State(year, locator.ConstructionTypes), ArchetypeIndex)
	if err != nil {
		return nil, fmt.Errorf("state year %d: %w", year, err)
	}
	return &Database{
		year:      year,
		loc:       m.loc,
		tables:    m.tables,
		types:     types,
		envelopes: map[string]*table.Table{},
		dirty:     map[string]bool{},
	}, nil
}

// Year returns the state year the database belongs to.
func (d *Database) Year() int { return d.year }

// Types returns the construction types table.
func (d *Database) Types() *table.Table { return d.types }

// HasArchetype reports whether an archetype row exists.
func (d *Database) HasArchetype(archetype string) bool { return d.types.Has(archetype) }

// Envelope returns the table of an envelope component, loading it once.
func (d *Database) Envelope(component string) (*table.Table, error) {
	name, ok := EnvelopeComponent(component)
	if !ok {
		return nil, errs.Validation("unknown envelope component %q", component)
	}
	if t, ok := d.envelopes[name]; ok {
		return t, nil
	}
	t, err := d.tables.ReadTable(d.loc.State(d.year, envelopeArtifacts[name]), CodeIndex)
	if err != nil {
		return nil, fmt.Errorf("state year %d: %w", d.year, err)
	}
	d.envelopes[name] = t
	return t, nil
}

// Pointer returns the construction types column and code an archetype uses
// for a component.
func (d *Database) Pointer(archetype, component string) (column, code string, err error) {
	cols, ok := pointerColumns[component]
	if !ok {
		return "", "", errs.Validation("unknown envelope component %q", component)
	}
	if !d.types.Has(archetype) {
		return "", "", errs.NotFound("archetype %q not found in state year %d", archetype, d.year)
	}
	for _, c := range cols {
		if d.types.HasColumn(c) {
			code, _ = d.types.Get(archetype, c)
			return c, strings.TrimSpace(code), nil
		}
	}
	return "", "", errs.Validation("construction types of state year %d have no %s column", d.year, strings.Join(cols, "/"))
}

// CurrentRow returns the envelope row an archetype currently points to.
func (d *Database) CurrentRow(archetype, component string) (code string, row map[string]string, t *table.Table, err error) {
	_, code, err = d.Pointer(archetype, component)
	if err != nil {
		return "", nil, nil, err
	}
	t, err = d.Envelope(component)
	if err != nil {
		return "", nil, nil, err
	}
	row, ok := t.Row(code)
	if !ok {
		return "", nil, nil, errs.NotFound("%s code %q of archetype %q not found in state year %d", component, code, archetype, d.year)
	}
	return code, row, t, nil
}

// nextCode returns an unused code for a fork of component for archetype.
// The first fork of a year takes the bare prefix; later forks append
// _n where n continues a per-prefix counter seeded from the rows that
// already share the prefix.
func (d *Database) nextCode(component, archetype string, t *table.Table) (string, error) {
	if err := d.loadCounters(); err != nil {
		return "", err
	}
	prefix := fmt.Sprintf("%s_%s_YEAR_%d", capitalize(component), archetype, d.year)
	last, seen := d.counters[prefix]
	if !seen {
		if !t.Has(prefix) {
			d.counters[prefix] = 1
			d.cntDirty = true
			return prefix, nil
		}
		for _, k := range t.Keys() {
			if k == prefix || strings.HasPrefix(k, prefix+"_") {
				last++
			}
		}
	}
	n := last + 1
	code := fmt.Sprintf("%s_%d", prefix, n)
	for t.Has(code) {
		n++
		code = fmt.Sprintf("%s_%d", prefix, n)
	}
	d.counters[prefix] = n
	d.cntDirty = true
	return code, nil
}

func (d *Database) loadCounters() error {
	if d.cntLoaded {
		return nil
	}
	d.cntLoaded = true
	d.counters = map[string]int{}
	path := d.loc.State(d.year, locator.EnvelopeCodeCounter)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return errs.IO("read", path, err)
	}
	if err := yaml.Unmarshal(data, &d.counters); err != nil {
		return errs.Validation("code counter file %s is invalid: %v", path, err)
	}
	if d.counters == nil {
		d.counters = map[string]int{}
	}
	return nil
}

// Save writes every table modified through this database.
func (d *Database) Save() error {
	for name, t := range d.envelopes {
		if !d.dirty[name] {
			continue
		}
		if err := d.tables.WriteTable(d.loc.State(d.year, envelopeArtifacts[name]), t); err != nil {
			return err
		}
	}
	if d.typesDirt {
		if err := d.tables.WriteTable(d.loc.State(d.year, locator.ConstructionTypes), d.types); err != nil {
			return err
		}
	}
	if d.cntDirty {
		data, err := yaml.Marshal(d.counters)
		if err != nil {
			return fmt.Errorf("failed to encode code counters: %w", err)
		}
		if err := fsutil.WriteFileAtomic(d.loc.State(d.year, locator.EnvelopeCodeCounter), data); err != nil {
			return err
		}
	}
	d.dirty = map[string]bool{}
	d.typesDirt, d.cntDirty = false, false
	return nil
}

// ValueAt returns the cell an archetype currently has for a recipe leaf,
// following the component pointer for envelope components.
func (d *Database) ValueAt(p recipe.Path) (string, error) {
	if p.Component == recipe.ConstructionTypeComponent {
		if !d.types.HasColumn(p.Field) {
			return "", errs.Validation("column %q not found in construction types of state year %d", p.Field, d.year)
		}
		v, ok := d.types.Get(p.Archetype, p.Field)
		if !ok {
			return "", errs.NotFound("archetype %q not found in state year %d", p.Archetype, d.year)
		}
		return v, nil
	}
	code, row, t, err := d.CurrentRow(p.Archetype, p.Component)
	if err != nil {
		return "", err
	}
	col, ok := ResolveColumn(p.Component, p.Field, t)
	if !ok {
		return "", errs.Validation("column %q not found in %s row %q of state year %d", col, p.Component, code, d.year)
	}
	return row[col], nil
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
