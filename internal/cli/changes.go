package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/strata/internal/changes"
	"github.com/roach88/strata/internal/recipe"
	"github.com/roach88/strata/internal/timeline"
)

// changeView is the JSON form of an atomic change.
type changeView struct {
	Name          string         `json:"name"`
	Description   string         `json:"description,omitempty"`
	Version       int            `json:"version"`
	Modifications map[string]any `json:"modifications"`
}

func viewChange(c changes.Change) changeView {
	return changeView{
		Name:          c.Name,
		Description:   c.Description,
		Version:       c.Version,
		Modifications: recipeView(c.Modifications),
	}
}

// recipeView converts a recipe to plain maps for JSON output. Keep leaves
// become null.
func recipeView(r recipe.Recipe) map[string]any {
	out := map[string]any{}
	r.Walk(func(p recipe.Path, v recipe.Value) {
		comps, ok := out[p.Archetype].(map[string]any)
		if !ok {
			comps = map[string]any{}
			out[p.Archetype] = comps
		}
		fields, ok := comps[p.Component].(map[string]any)
		if !ok {
			fields = map[string]any{}
			comps[p.Component] = fields
		}
		fields[p.Field] = v.Any()
	})
	return out
}

// writeRecipe prints r as YAML.
func writeRecipe(w io.Writer, r recipe.Recipe, indent string) {
	r.Walk(func(p recipe.Path, v recipe.Value) {
		val := v.Format()
		if v.IsKeep() {
			val = "null"
		}
		fmt.Fprintf(w, "%s%s: %s\n", indent, p, val)
	})
}

// ChangePutOptions holds flags for changes put.
type ChangePutOptions struct {
	*RootOptions
	RecipeFile  string
	Description string
}

// NewChangesCommand creates the changes command group.
func NewChangesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "changes",
		Short: "Manage the timeline's named atomic changes",
		Long: `Manage the timeline's named atomic changes.

An atomic change is a small, reusable recipe. Applying several at once
fails if any two of them modify the same field.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List atomic changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withTimeline(cmd, "list changes failed", func(tl *timeline.Timeline, f *OutputFormatter) error {
				list, err := tl.Changes().List()
				if err != nil {
					return err
				}
				views := make([]changeView, len(list))
				for i, c := range list {
					views[i] = viewChange(c)
				}
				return f.Render(views, func(w io.Writer) {
					if len(list) == 0 {
						fmt.Fprintln(w, "no atomic changes")
						return
					}
					for _, c := range list {
						fmt.Fprintf(w, "%s (v%d, %d field(s))", c.Name, c.Version, c.Modifications.Len())
						if c.Description != "" {
							fmt.Fprintf(w, ": %s", c.Description)
						}
						fmt.Fprintln(w)
					}
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <name>",
		Short: "Show one atomic change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withTimeline(cmd, "show change failed", func(tl *timeline.Timeline, f *OutputFormatter) error {
				c, err := tl.Changes().Get(args[0])
				if err != nil {
					return err
				}
				return f.Render(viewChange(c), func(w io.Writer) {
					fmt.Fprintf(w, "%s (v%d)\n", c.Name, c.Version)
					if c.Description != "" {
						fmt.Fprintf(w, "  %s\n", c.Description)
					}
					writeRecipe(w, c.Modifications, "  ")
				})
			})
		},
	})

	putOpts := &ChangePutOptions{RootOptions: rootOpts}
	put := &cobra.Command{
		Use:   "put <name>",
		Short: "Create or replace an atomic change from a recipe file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withTimeline(cmd, "put change failed", func(tl *timeline.Timeline, f *OutputFormatter) error {
				r, err := recipe.ReadFile(putOpts.RecipeFile)
				if err != nil {
					return err
				}
				c, err := tl.Changes().Put(changes.Change{Name: args[0], Description: putOpts.Description, Modifications: r})
				if err != nil {
					return err
				}
				return f.Render(viewChange(c), func(w io.Writer) {
					fmt.Fprintf(w, "saved atomic change %s (v%d)\n", c.Name, c.Version)
				})
			})
		},
	}
	put.Flags().StringVar(&putOpts.RecipeFile, "recipe", "", "path to a YAML modification recipe (required)")
	put.Flags().StringVar(&putOpts.Description, "description", "", "what the change does")
	_ = put.MarkFlagRequired("recipe")
	cmd.AddCommand(put)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <name>",
		Short: "Delete an atomic change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withTimeline(cmd, "delete change failed", func(tl *timeline.Timeline, f *OutputFormatter) error {
				if err := tl.Changes().Delete(args[0]); err != nil {
					return err
				}
				return f.Render(map[string]string{"deleted": args[0]}, func(w io.Writer) {
					fmt.Fprintf(w, "deleted atomic change %s\n", args[0])
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "resolve <name>...",
		Short: "Merge atomic changes and print the resulting recipe",
		Long: `Merge atomic changes, in order, and print the resulting recipe as YAML.

Fails listing every field modified by more than one of the changes.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withTimeline(cmd, "resolve changes failed", func(tl *timeline.Timeline, f *OutputFormatter) error {
				r, err := tl.Changes().Resolve(args)
				if err != nil {
					return err
				}
				if f.Format == "json" {
					return f.Success(recipeView(r))
				}
				enc := yaml.NewEncoder(f.Writer)
				enc.SetIndent(2)
				if err := enc.Encode(r); err != nil {
					return err
				}
				return enc.Close()
			})
		},
	})

	return cmd
}
