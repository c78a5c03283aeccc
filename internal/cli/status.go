package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/strata/internal/errs"
	"github.com/roach88/strata/internal/report"
	"github.com/roach88/strata/internal/timeline"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show every state year of the timeline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withTimeline(cmd, "status failed", func(tl *timeline.Timeline, f *OutputFormatter) error {
				statuses, err := tl.Status()
				if err != nil {
					return err
				}
				return f.Render(statuses, func(w io.Writer) { writeStatus(w, tl.Name(), statuses) })
			})
		},
	}
}

func writeStatus(w io.Writer, name string, statuses []timeline.YearStatus) {
	if len(statuses) == 0 {
		fmt.Fprintf(w, "timeline %s has no state years\n", name)
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "YEAR\tDISK\tLOG\tREQUIRED\tMODS\tRECONCILED\tSIMULATION\tNOTES")
	for _, s := range statuses {
		var notes []string
		if s.Stale {
			notes = append(notes, "stale")
		}
		if len(s.NewBuildings) > 0 {
			notes = append(notes, fmt.Sprintf("new: %s", strings.Join(s.NewBuildings, ",")))
		}
		if len(s.DemolishedBuildings) > 0 {
			notes = append(notes, fmt.Sprintf("demolished: %s", strings.Join(s.DemolishedBuildings, ",")))
		}
		sim := "-"
		if s.OnDisk {
			sim = "needed"
			if !s.NeedsSimulation {
				sim = "current"
			}
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			s.Year, mark(s.OnDisk), mark(s.InLog), mark(s.Required),
			s.Modifications, s.Reconciliations, sim, strings.Join(notes, "; "))
	}
	tw.Flush()
}

func mark(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file.xlsx>",
		Short: "Export the timeline's years and history as an Excel workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withTimeline(cmd, "export failed", func(tl *timeline.Timeline, f *OutputFormatter) error {
				path := args[0]
				if !strings.EqualFold(filepath.Ext(path), ".xlsx") {
					return errs.Validation("export file %s must have the .xlsx extension", path)
				}
				log, err := tl.Log()
				if err != nil {
					return err
				}
				statuses, err := tl.Status()
				if err != nil {
					return err
				}
				sheets := report.Build(log, statuses)
				if err := report.WriteWorkbook(path, sheets); err != nil {
					return errs.IO("write", path, err)
				}
				return f.Render(map[string]any{"path": path, "years": len(statuses)}, func(w io.Writer) {
					fmt.Fprintf(w, "exported %d year(s) to %s\n", len(statuses), path)
				})
			})
		},
	}
}
