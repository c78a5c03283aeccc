package materialize

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/strata/internal/errs"
	"github.com/roach88/strata/internal/recipe"
)

// ApplyOptions tags a construction change with its origin.
type ApplyOptions struct {
	// TriggerYear is the earlier year whose change is being reconciled
	// into this one. Zero means a direct edit.
	TriggerYear int
}

// ApplyConstructionChange applies a recipe to the database of a state year.
//
// For every (archetype, envelope component) the archetype's current row is
// copied under a fresh code, the recipe's non-Keep fields are written onto
// the copy together with a provenance description, and the archetype is
// repointed to it. Components whose fields already hold the requested
// values are left alone. construction_type fields are written straight onto
// the archetype row.
//
// It returns whether anything changed; when nothing did, no file is
// written. An empty recipe removes the state year and fails with
// VALIDATION. Unknown archetypes, codes and columns are reported before any
// file is written.
func (m *Materializer) ApplyConstructionChange(year int, r recipe.Recipe, opts ApplyOptions) (bool, error) {
	if r.IsEmpty() {
		if err := m.Remove(year); err != nil {
			m.logger.Warn("failed to remove state year after empty recipe", "year", year, "error", err)
		}
		return false, errs.Validation("no archetypes specified in the modification recipe; state year %d has been deleted", year)
	}

	db, err := m.OpenDatabase(year)
	if err != nil {
		return false, err
	}

	var missing []string
	for _, arch := range r.Archetypes() {
		if !db.HasArchetype(arch) {
			missing = append(missing, arch)
		}
	}
	if len(missing) > 0 {
		return false, errs.NotFound("archetypes not found in construction types of state year %d", year).WithKeys(missing...)
	}

	modified := 0
	for _, arch := range r.Archetypes() {
		comps := r[arch]
		for _, comp := range componentOrder(comps) {
			var changed bool
			if comp == recipe.ConstructionTypeComponent {
				changed, err = m.applyArchetypeColumns(db, arch, comps[comp])
			} else {
				changed, err = m.forkComponent(db, arch, comp, comps[comp], opts)
			}
			if err != nil {
				return false, err
			}
			if changed {
				modified++
			}
		}
	}

	if modified == 0 {
		m.logger.Debug("construction change already in place", "year", year)
		return false, nil
	}
	if err := db.Save(); err != nil {
		return false, fmt.Errorf("failed to save database of state year %d: %w", year, err)
	}
	m.logger.Info("applied construction change", "year", year, "components", modified, "trigger_year", opts.TriggerYear)
	return true, nil
}

// forkComponent writes fields onto a fresh copy of the archetype's current
// component row. It returns false when every field already matches.
func (m *Materializer) forkComponent(db *Database, arch, comp string, fields recipe.Fields, opts ApplyOptions) (bool, error) {
	if _, ok := EnvelopeComponent(comp); !ok {
		return false, errs.Validation("unknown component %q for archetype %q", comp, arch)
	}
	col, _, err := db.Pointer(arch, comp)
	if err != nil {
		return false, err
	}
	oldCode, oldRow, t, err := db.CurrentRow(arch, comp)
	if err != nil {
		return false, err
	}

	newRow := make(map[string]string, len(oldRow))
	for k, v := range oldRow {
		newRow[k] = v
	}
	var changed, missingCols []string
	for _, field := range sortedFields(fields) {
		v := fields[field]
		if v.IsKeep() {
			continue
		}
		column, ok := ResolveColumn(comp, field, t)
		if !ok {
			missingCols = append(missingCols, fmt.Sprintf("%s.%s.%s -> %s", arch, comp, field, column))
			continue
		}
		if !v.Matches(oldRow[column]) {
			changed = append(changed, field)
		}
		newRow[column] = v.Format()
	}
	if len(missingCols) > 0 {
		return false, errs.Validation("columns not found in %s table of state year %d", comp, db.year).WithKeys(missingCols...)
	}
	if len(changed) == 0 {
		return false, nil
	}

	name, _ := EnvelopeComponent(comp)
	newCode, err := db.nextCode(name, arch, t)
	if err != nil {
		return false, err
	}
	desc := fmt.Sprintf("Modified %s for archetype %s in year %d, based on %s, fields modified: %s",
		comp, arch, db.year, oldCode, strings.Join(changed, ", "))
	if opts.TriggerYear != 0 {
		desc += fmt.Sprintf(" (reconciled due to year %d)", opts.TriggerYear)
	}
	newRow[DescriptionColumn] = desc
	t.Put(newCode, newRow)
	if err := db.types.Set(arch, col, newCode); err != nil {
		return false, err
	}

	db.dirty[name] = true
	db.typesDirt = true
	m.logger.Debug("forked envelope code", "year", db.year, "archetype", arch, "component", comp, "from", oldCode, "to", newCode)
	return true, nil
}

// applyArchetypeColumns writes construction_type fields onto the archetype
// row. Pointer columns must name an existing envelope code.
func (m *Materializer) applyArchetypeColumns(db *Database, arch string, fields recipe.Fields) (bool, error) {
	var problems []string
	changed := false
	for _, field := range sortedFields(fields) {
		v := fields[field]
		if v.IsKeep() {
			continue
		}
		if !db.types.HasColumn(field) {
			problems = append(problems, fmt.Sprintf("%s.%s.%s: column not in construction types", arch, recipe.ConstructionTypeComponent, field))
			continue
		}
		if comp, ok := pointerComponent(field); ok {
			t, err := db.Envelope(comp)
			if err != nil {
				return false, err
			}
			if !t.Has(v.Format()) {
				return false, errs.NotFound("%s code %q not found in state year %d", comp, v.Format(), db.year)
			}
		}
		current, _ := db.types.Get(arch, field)
		if v.Matches(current) {
			continue
		}
		if err := db.types.Set(arch, field, v.Format()); err != nil {
			return false, err
		}
		changed = true
	}
	if len(problems) > 0 {
		return false, errs.Validation("invalid construction type fields in state year %d", db.year).WithKeys(problems...)
	}
	if changed {
		db.typesDirt = true
	}
	return changed, nil
}

// pointerComponent maps a construction types pointer column to its envelope
// component.
func pointerComponent(column string) (string, bool) {
	for comp, cols := range pointerColumns {
		if slices.Contains(cols, column) {
			name, _ := EnvelopeComponent(comp)
			return name, true
		}
	}
	return "", false
}

// componentOrder puts construction_type first so that a repointed archetype
// is forked from its new code, then the rest alphabetically.
func componentOrder(comps recipe.Components) []string {
	var out []string
	if _, ok := comps[recipe.ConstructionTypeComponent]; ok {
		out = append(out, recipe.ConstructionTypeComponent)
	}
	var rest []string
	for c := range comps {
		if c != recipe.ConstructionTypeComponent {
			rest = append(rest, c)
		}
	}
	slices.Sort(rest)
	return append(out, rest...)
}

func sortedFields(fields recipe.Fields) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
