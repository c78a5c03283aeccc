package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/strata/internal/integrity"
	"github.com/roach88/strata/internal/timeline"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Mode string
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check that state years agree with the event log",
		Long: `Check that state years agree with the event log.

basic compares the state folders on disk with the logged years.
comprehensive also verifies every year's construction tables against the
cumulative modifications of the years up to it.

Exits with code 1 when the check finds problems.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Mode, "mode", "", "basic or comprehensive (default from config)")

	return cmd
}

func runCheck(opts *CheckOptions, cmd *cobra.Command) error {
	return opts.withTimeline(cmd, "check failed", func(tl *timeline.Timeline, f *OutputFormatter) error {
		mode := opts.cfg.Mode()
		if opts.Mode != "" {
			m, err := integrity.ParseMode(opts.Mode)
			if err != nil {
				return err
			}
			mode = m
		}
		report, err := tl.Check(mode)
		if err != nil {
			return err
		}
		if !report.OK() {
			return f.Fail("check found problems", report.Err())
		}
		return f.Render(report, func(w io.Writer) {
			fmt.Fprintf(w, "timeline %s is consistent (%s check)\n", tl.Name(), mode)
		})
	})
}
