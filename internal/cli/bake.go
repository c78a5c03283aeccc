package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/strata/internal/timeline"
)

// NewBakeCommand creates the bake command.
func NewBakeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "bake",
		Short: "Rebuild every required state year from the event log",
		Long: `Rebuild every required state year from the event log.

Each year is deleted, copied from the baseline, pruned and patched with its
cumulative modifications. Envelope codes depend only on the log, so two
bakes of the same log produce identical folders.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withTimeline(cmd, "bake failed", func(tl *timeline.Timeline, f *OutputFormatter) error {
				res, err := tl.Bake(cmd.Context())
				if err != nil {
					return err
				}
				return f.Render(res, func(w io.Writer) { writeResult(w, res) })
			})
		},
	}
}

// NewEnsureCommand creates the ensure command.
func NewEnsureCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ensure",
		Short: "Materialize every missing required state year",
		Long: `Materialize every missing required state year.

Required years are the logged years and every construction year found in
the baseline building stock. Existing years are left as they are apart
from their building events.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withTimeline(cmd, "ensure failed", func(tl *timeline.Timeline, f *OutputFormatter) error {
				res, err := tl.EnsureRequiredYears(cmd.Context())
				if err != nil {
					return err
				}
				return f.Render(res, func(w io.Writer) { writeResult(w, res) })
			})
		},
	}
}
