package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/strata/internal/journal"
	"github.com/roach88/strata/internal/timeline"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Limit int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent transactions from the timeline journal",
		Long: `List recent transactions from the timeline journal.

Every operation that writes to the timeline is journaled with the stage it
reached and its outcome, including operations that failed and were rolled
back.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withTimeline(cmd, "history failed", func(tl *timeline.Timeline, f *OutputFormatter) error {
				records, err := tl.History(cmd.Context(), opts.Limit)
				if err != nil {
					return err
				}
				return f.Render(records, func(w io.Writer) { writeHistory(w, records) })
			})
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum number of transactions")

	return cmd
}

func writeHistory(w io.Writer, records []journal.Record) {
	if len(records) == 0 {
		fmt.Fprintln(w, "no transactions")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tID\tOPERATION\tYEAR\tSTATUS\tSTAGE\tTOUCHED\tERROR")
	for _, r := range records {
		year := "-"
		if r.Year != 0 {
			year = fmt.Sprint(r.Year)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%v\t%s\n",
			r.StartedAt.UTC().Format(time.RFC3339), r.ID, r.Operation, year,
			r.Status, r.Stage, r.YearsTouched, r.Error)
	}
	tw.Flush()
}
