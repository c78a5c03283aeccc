package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/strata/internal/timeline"
)

// NewYearCommand creates the year command group.
func NewYearCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "year",
		Short: "Create or remove state years",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "create <year>",
		Short: "Materialize a state year from the baseline",
		Long: `Materialize a state year from the baseline.

Buildings not standing in the year are pruned and the history logged for
earlier years is applied, so the new year starts where the timeline is.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runYear(rootOpts, cmd, args[0], "create year failed", (*timeline.Timeline).CreateYear)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "remove <year>",
		Short: "Delete a state year and its log entry",
		Long: `Delete a state year and its log entry.

Later years keep what they inherited from the removed year until the
timeline is baked.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runYear(rootOpts, cmd, args[0], "remove year failed", (*timeline.Timeline).RemoveYear)
		},
	})
	return cmd
}

type yearOp func(tl *timeline.Timeline, ctx context.Context, year int) (*timeline.Result, error)

func runYear(opts *RootOptions, cmd *cobra.Command, yearArg, action string, op yearOp) error {
	return opts.withTimeline(cmd, action, func(tl *timeline.Timeline, f *OutputFormatter) error {
		year, err := parseYear(yearArg)
		if err != nil {
			return err
		}
		res, err := op(tl, cmd.Context(), year)
		if err != nil {
			return err
		}
		return f.Render(res, func(w io.Writer) { writeResult(w, res) })
	})
}

// NewMarkSimulatedCommand creates the mark-simulated command.
func NewMarkSimulatedCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mark-simulated <year>",
		Short: "Record that a state year was simulated with its current inputs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withTimeline(cmd, "mark simulated failed", func(tl *timeline.Timeline, f *OutputFormatter) error {
				year, err := parseYear(args[0])
				if err != nil {
					return err
				}
				rec, err := tl.MarkSimulated(year)
				if err != nil {
					return err
				}
				return f.Render(rec, func(w io.Writer) {
					fmt.Fprintf(w, "state year %d marked simulated (signature %s)\n", rec.Year, short(rec.AppliedSignature))
				})
			})
		},
	}
}

// short abbreviates a signature for text output.
func short(sig string) string {
	if len(sig) > 12 {
		return sig[:12]
	}
	return sig
}
