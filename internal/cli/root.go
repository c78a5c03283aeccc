package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/strata/internal/config"
	"github.com/roach88/strata/internal/errs"
	"github.com/roach88/strata/internal/timeline"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	Scenario   string
	Timeline   string
	ConfigFile string

	// Clock and IDs override the wall clock and transaction ids (for testing).
	Clock func() time.Time
	IDs   timeline.IDGenerator

	cfg    config.Config
	logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the strata CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "strata",
		Short: "strata - district timelines of state years",
		Long: `Manage district timelines: per-year copies of a scenario's building inputs
whose construction edits are logged and carried forward to later years.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return opts.loadConfig(cmd)
		},
	}

	// Global flags
	pf := cmd.PersistentFlags()
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	pf.StringVar(&opts.Scenario, "scenario", "", "scenario folder (default \".\")")
	pf.StringVar(&opts.Timeline, "timeline", "", "timeline name (default \"baseline\")")
	pf.StringVar(&opts.ConfigFile, "config", "", "config file (default .strata.yaml)")

	// Add subcommands
	cmd.AddCommand(NewYearCommand(opts))
	cmd.AddCommand(NewApplyCommand(opts))
	cmd.AddCommand(NewReconcileCommand(opts))
	cmd.AddCommand(NewChangesCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewBakeCommand(opts))
	cmd.AddCommand(NewEnsureCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewMarkSimulatedCommand(opts))

	return cmd
}

// Execute runs the CLI with args and returns the process exit code.
// Errors that commands did not already report are written to stderr.
func Execute(args []string, stdout, stderr io.Writer) int {
	return execute(NewRootCommand(), args, stdout, stderr)
}

func execute(cmd *cobra.Command, args []string, stdout, stderr io.Writer) int {
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	err := cmd.Execute()
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		// Flag and argument errors from cobra.
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitCommandError
	}
	return exitErr.Code
}

// loadConfig merges the config file, environment and flags and builds the
// logger.
func (o *RootOptions) loadConfig(cmd *cobra.Command) error {
	v := config.New()
	if err := config.ReadFile(v, o.ConfigFile); err != nil {
		return o.formatter(cmd).Fail("failed to load configuration", err)
	}
	flags := cmd.Root().PersistentFlags()
	for key, flag := range map[string]string{
		config.KeyScenario: "scenario",
		config.KeyTimeline: "timeline",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return err
		}
	}
	cfg, err := config.Load(v)
	if err != nil {
		return o.formatter(cmd).Fail("invalid configuration", err)
	}
	if o.Verbose {
		cfg.LogLevel = "debug"
	}
	o.cfg = cfg
	o.logger = cfg.Logger(cmd.ErrOrStderr())
	return nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

// open returns the configured timeline. The caller closes it.
func (o *RootOptions) open() (*timeline.Timeline, error) {
	tlOpts := []timeline.Option{
		timeline.WithLogger(o.logger),
		timeline.WithIntegrityMode(o.cfg.Mode()),
		timeline.WithJournal(o.cfg.Journal),
	}
	if o.Clock != nil {
		tlOpts = append(tlOpts, timeline.WithClock(o.Clock))
	}
	if o.IDs != nil {
		tlOpts = append(tlOpts, timeline.WithIDGenerator(o.IDs))
	}
	return timeline.Open(o.cfg.Scenario, o.cfg.Timeline, tlOpts...)
}

// withTimeline opens the timeline, runs fn and reports any error through
// the formatter.
func (o *RootOptions) withTimeline(cmd *cobra.Command, action string, fn func(tl *timeline.Timeline, f *OutputFormatter) error) error {
	f := o.formatter(cmd)
	tl, err := o.open()
	if err != nil {
		return f.Fail(action, err)
	}
	defer func() {
		if cerr := tl.Close(); cerr != nil {
			o.logger.Warn("failed to close journal", "error", cerr)
		}
	}()
	if err := fn(tl, f); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return err
		}
		return f.Fail(action, err)
	}
	return nil
}

// parseYear parses a year argument.
func parseYear(s string) (int, error) {
	y, err := strconv.Atoi(s)
	if err != nil {
		return 0, errs.Validation("invalid year %q", s)
	}
	return y, nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
