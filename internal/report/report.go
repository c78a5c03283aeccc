// Package report exports a timeline's log and year status as an Excel
// workbook.
package report

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/roach88/strata/internal/recipe"
	"github.com/roach88/strata/internal/timeline"
	"github.com/roach88/strata/internal/timelog"
)

// Sheet names, in workbook order.
const (
	SheetYears           = "Years"
	SheetModifications   = "Modifications"
	SheetReconciliations = "Reconciliations"
)

// Sheet is one worksheet: a header row followed by data rows.
type Sheet struct {
	Name   string
	Header []string
	Rows   [][]any
}

// Build lays out the workbook sheets for a timeline. statuses gives one row
// per year on the Years sheet; log supplies the edit history.
func Build(log timelog.Log, statuses []timeline.YearStatus) []Sheet {
	years := Sheet{
		Name: SheetYears,
		Header: []string{
			"Year", "On disk", "In log", "Required", "Modifications", "Reconciliations",
			"New buildings", "Demolished buildings", "Created at", "Latest modified at",
			"Latest reconciled at", "Applied signature", "Simulation status", "Stale",
			"Needs simulation",
		},
	}
	for _, s := range statuses {
		var created, modified, reconciled string
		if e, ok := log[s.Year]; ok {
			created, modified, reconciled = e.CreatedAt, e.LatestModifiedAt, e.LatestReconciledAt
		}
		years.Rows = append(years.Rows, []any{
			s.Year, s.OnDisk, s.InLog, s.Required, s.Modifications, s.Reconciliations,
			strings.Join(s.NewBuildings, ", "), strings.Join(s.DemolishedBuildings, ", "),
			created, modified, reconciled, s.AppliedSignature, s.SimulationStatus, s.Stale,
			s.NeedsSimulation,
		})
	}

	mods := Sheet{
		Name:   SheetModifications,
		Header: []string{"Year", "Archetype", "Component", "Field", "Value"},
	}
	recs := Sheet{
		Name:   SheetReconciliations,
		Header: []string{"Year", "Trigger year", "Applied at", "Archetype", "Component", "Field", "Value"},
	}
	for _, y := range log.Years() {
		e := log[y]
		e.Modifications.Walk(func(p recipe.Path, v recipe.Value) {
			mods.Rows = append(mods.Rows, []any{y, p.Archetype, p.Component, p.Field, cellValue(v)})
		})
		for _, r := range e.Reconciliations {
			r.Modifications.Walk(func(p recipe.Path, v recipe.Value) {
				recs.Rows = append(recs.Rows, []any{y, r.TriggerYear, r.AppliedAt, p.Archetype, p.Component, p.Field, cellValue(v)})
			})
		}
	}
	return []Sheet{years, mods, recs}
}

// cellValue keeps numbers and booleans typed in the workbook.
func cellValue(v recipe.Value) any {
	if v.IsKeep() {
		return ""
	}
	return v.Any()
}

// WriteWorkbook saves sheets to path as an .xlsx file.
func WriteWorkbook(path string, sheets []Sheet) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.Name); err != nil {
				return fmt.Errorf("failed to name sheet %s: %w", s.Name, err)
			}
		} else if _, err := f.NewSheet(s.Name); err != nil {
			return fmt.Errorf("failed to add sheet %s: %w", s.Name, err)
		}
		if err := writeSheet(f, s); err != nil {
			return err
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	return nil
}

func writeSheet(f *excelize.File, s Sheet) error {
	header := make([]any, len(s.Header))
	for i, h := range s.Header {
		header[i] = h
	}
	if err := f.SetSheetRow(s.Name, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header of %s: %w", s.Name, err)
	}
	for i, row := range s.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(s.Name, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d of %s: %w", i+2, s.Name, err)
		}
	}
	if len(s.Header) > 0 {
		last, err := excelize.ColumnNumberToName(len(s.Header))
		if err != nil {
			return err
		}
		if err := f.AutoFilter(s.Name, "A1:"+last+"1", nil); err != nil {
			return fmt.Errorf("failed to add filter to %s: %w", s.Name, err)
		}
	}
	return nil
}
