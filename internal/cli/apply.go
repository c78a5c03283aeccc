package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/strata/internal/recipe"
	"github.com/roach88/strata/internal/timeline"
)

// ApplyOptions holds flags for the apply command.
type ApplyOptions struct {
	*RootOptions
	RecipeFile string
	Changes    []string
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ApplyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "apply <year>",
		Short: "Apply construction changes to a state year",
		Long: `Apply a modification recipe to a state year and carry it forward.

The recipe comes from a YAML file or from named atomic changes of the
timeline. A missing year is created from the baseline first. Every later
state year is reconciled with the new history.

Example:
  strata apply 2030 --recipe insulate.yml
  strata apply 2030 --change insulate_walls --change better_windows`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.RecipeFile, "recipe", "", "path to a YAML modification recipe")
	cmd.Flags().StringArrayVar(&opts.Changes, "change", nil, "name of an atomic change (repeatable)")
	cmd.MarkFlagsMutuallyExclusive("recipe", "change")
	cmd.MarkFlagsOneRequired("recipe", "change")

	return cmd
}

func runApply(opts *ApplyOptions, yearArg string, cmd *cobra.Command) error {
	return opts.withTimeline(cmd, "apply failed", func(tl *timeline.Timeline, f *OutputFormatter) error {
		year, err := parseYear(yearArg)
		if err != nil {
			return err
		}
		var res *timeline.Result
		if opts.RecipeFile != "" {
			r, err := recipe.ReadFile(opts.RecipeFile)
			if err != nil {
				return err
			}
			f.VerboseLog("Applying %d field(s) from %s to %d", r.Len(), opts.RecipeFile, year)
			res, err = tl.Apply(cmd.Context(), year, r)
			if err != nil {
				return err
			}
		} else {
			f.VerboseLog("Applying atomic changes %v to %d", opts.Changes, year)
			res, err = tl.ApplyChanges(cmd.Context(), year, opts.Changes)
			if err != nil {
				return err
			}
		}
		return f.Render(res, func(w io.Writer) { writeResult(w, res) })
	})
}

// writeResult prints a committed transaction.
func writeResult(w io.Writer, res *timeline.Result) {
	fmt.Fprintf(w, "%s committed (tx %s)\n", res.Operation, res.TxID)
	if res.Year != 0 {
		fmt.Fprintf(w, "  year:       %d\n", res.Year)
	}
	if len(res.Changes) > 0 {
		fmt.Fprintf(w, "  changes:    %v\n", res.Changes)
	}
	if len(res.Created) > 0 {
		fmt.Fprintf(w, "  created:    %v\n", res.Created)
	}
	fmt.Fprintf(w, "  modified:   %t\n", res.Modified)
	if len(res.Reconciled) > 0 {
		fmt.Fprintf(w, "  reconciled: %v\n", res.Reconciled)
	}
	if res.Synced > 0 {
		fmt.Fprintf(w, "  synced:     %d cell(s)\n", res.Synced)
	}
	fmt.Fprintf(w, "  touched:    %v\n", res.Touched)
}

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile <year>",
		Short: "Re-apply a year's history to every later state year",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withTimeline(cmd, "reconcile failed", func(tl *timeline.Timeline, f *OutputFormatter) error {
				year, err := parseYear(args[0])
				if err != nil {
					return err
				}
				res, err := tl.Reconcile(cmd.Context(), year)
				if err != nil {
					return err
				}
				return f.Render(res, func(w io.Writer) { writeResult(w, res) })
			})
		},
	}
}
