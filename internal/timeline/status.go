package timeline

import (
	"slices"

	"github.com/roach88/strata/internal/integrity"
	"github.com/roach88/strata/internal/locator"
	"github.com/roach88/strata/internal/recipe"
)

// YearStatus summarizes one state year.
type YearStatus struct {
	Year                int      `json:"year"`
	OnDisk              bool     `json:"on_disk"`
	InLog               bool     `json:"in_log"`
	Required            bool     `json:"required"`
	Modifications       int      `json:"modifications"`
	Reconciliations     int      `json:"reconciliations"`
	NewBuildings        []string `json:"new_buildings,omitempty"`
	DemolishedBuildings []string `json:"demolished_buildings,omitempty"`
	AppliedSignature    string   `json:"applied_signature,omitempty"`
	ExpectedSignature   string   `json:"expected_signature,omitempty"`
	SimulationStatus    string   `json:"simulation_status,omitempty"`
	// Stale is set when the folder was built from a different cumulative
	// recipe than the log now describes.
	Stale           bool `json:"stale"`
	NeedsSimulation bool `json:"needs_simulation"`
}

// Status lists every year that is logged, materialized or required, in
// ascending order. Nothing is written.
func (t *Timeline) Status() ([]YearStatus, error) {
	log, err := t.Log()
	if err != nil {
		return nil, err
	}
	disk, err := locator.StateYears(t.loc)
	if err != nil {
		return nil, err
	}
	required, err := t.RequiredYears(log)
	if err != nil {
		return nil, err
	}
	all := map[int]bool{}
	for _, ys := range [][]int{disk, log.Years(), required} {
		for _, y := range ys {
			all[y] = true
		}
	}

	out := make([]YearStatus, 0, len(all))
	for _, y := range locator.SortedYears(all) {
		st := YearStatus{
			Year:     y,
			OnDisk:   slices.Contains(disk, y),
			InLog:    log.Has(y),
			Required: slices.Contains(required, y),
		}
		if entry, ok := log[y]; ok {
			st.Modifications = entry.Modifications.Len()
			st.Reconciliations = len(entry.Reconciliations)
			st.NewBuildings = entry.BuildingEvents.NewBuildings
			st.DemolishedBuildings = entry.BuildingEvents.DemolishedBuildings
			if st.ExpectedSignature, err = ExpectedSignature(log, y); err != nil {
				return nil, err
			}
		}
		if st.OnDisk {
			rec, err := t.Signature(y)
			if err != nil {
				return nil, err
			}
			st.NeedsSimulation = rec.NeedsSimulation()
			if rec != nil {
				st.AppliedSignature = rec.AppliedSignature
				st.SimulationStatus = rec.SimulationStatus
			}
			st.Stale = st.InLog && st.AppliedSignature != st.ExpectedSignature
		}
		out = append(out, st)
	}
	return out, nil
}

// Check runs an integrity check without modifying anything.
func (t *Timeline) Check(mode integrity.Mode) (integrity.Report, error) {
	log, err := t.Log()
	if err != nil {
		return integrity.Report{Mode: mode}, err
	}
	return t.checker.Run(log, mode)
}

// ValueAt returns the cell a state year currently holds for a recipe path.
// Envelope paths follow the archetype's component pointer.
func (t *Timeline) ValueAt(year int, p recipe.Path) (string, error) {
	db, err := t.mat.OpenDatabase(year)
	if err != nil {
		return "", err
	}
	return db.ValueAt(p)
}
