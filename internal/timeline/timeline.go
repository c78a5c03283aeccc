package timeline

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/roach88/strata/internal/changes"
	"github.com/roach88/strata/internal/errs"
	"github.com/roach88/strata/internal/fsutil"
	"github.com/roach88/strata/internal/integrity"
	"github.com/roach88/strata/internal/journal"
	"github.com/roach88/strata/internal/locator"
	"github.com/roach88/strata/internal/materialize"
	"github.com/roach88/strata/internal/reconcile"
	"github.com/roach88/strata/internal/table"
	"github.com/roach88/strata/internal/timelog"
	"github.com/roach88/strata/internal/validation"
)

// Timeline is the handle to one named timeline of a scenario.
type Timeline struct {
	loc     *locator.Locator
	tables  table.Store
	logFile *timelog.File
	mat     *materialize.Materializer
	rec     *reconcile.Engine
	checker *integrity.Checker
	changes *changes.Store

	clock   func() time.Time
	ids     IDGenerator
	logger  *slog.Logger
	mode    integrity.Mode
	hook    StageHook
	useJrnl bool
	jrnl    *journal.Journal
}

// Option configures a Timeline.
type Option func(*Timeline)

// WithClock sets the wall clock used for log and journal timestamps.
func WithClock(clock func() time.Time) Option {
	return func(t *Timeline) { t.clock = clock }
}

// WithLogger sets the structured logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Timeline) { t.logger = logger }
}

// WithIntegrityMode sets the check run in the VERIFYING stage.
//
// Default: integrity.Basic
func WithIntegrityMode(mode integrity.Mode) Option {
	return func(t *Timeline) { t.mode = mode }
}

// WithJournal enables or disables the SQLite transaction journal.
//
// Default: enabled
func WithJournal(enabled bool) Option {
	return func(t *Timeline) { t.useJrnl = enabled }
}

// WithStageHook installs a hook called on entering every forward stage.
// Used by tests to inject failures at a given stage.
func WithStageHook(hook StageHook) Option {
	return func(t *Timeline) { t.hook = hook }
}

// WithIDGenerator sets the transaction id generator.
//
// Default: UUIDv7Generator
func WithIDGenerator(ids IDGenerator) Option {
	return func(t *Timeline) { t.ids = ids }
}

// WithTableStore replaces the CSV table store.
func WithTableStore(tables table.Store) Option {
	return func(t *Timeline) { t.tables = tables }
}

// Open returns the handle for timeline name inside scenario. The timeline
// folder is created lazily by the first operation that writes.
func Open(scenario, name string, opts ...Option) (*Timeline, error) {
	name, err := validation.TimelineName(name)
	if err != nil {
		return nil, err
	}
	if !fsutil.IsDir(scenario) {
		return nil, errs.NotFound("scenario folder %s does not exist", scenario)
	}
	t := &Timeline{
		loc:     locator.New(scenario, name),
		tables:  table.CSV{},
		clock:   time.Now,
		ids:     UUIDv7Generator{},
		logger:  slog.Default(),
		mode:    integrity.Basic,
		useJrnl: true,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With("timeline", name)
	t.logFile = timelog.NewFile(t.loc.LogFile())
	t.mat = materialize.New(t.loc, t.tables, t.logFile,
		materialize.WithClock(t.clock),
		materialize.WithLogger(t.logger),
	)
	t.rec = reconcile.New(t.mat,
		reconcile.WithClock(t.clock),
		reconcile.WithLogger(t.logger),
	)
	t.checker = integrity.New(t.loc, t.rec)
	t.changes = changes.NewStore(t.loc.ChangesFile())
	return t, nil
}

// Close releases the journal.
func (t *Timeline) Close() error {
	if t.jrnl == nil {
		return nil
	}
	err := t.jrnl.Close()
	t.jrnl = nil
	return err
}

// Name returns the timeline name.
func (t *Timeline) Name() string { return t.loc.Timeline() }

// Locator returns the path resolver of the timeline.
func (t *Timeline) Locator() *locator.Locator { return t.loc }

// Changes returns the atomic change store of the timeline.
func (t *Timeline) Changes() *changes.Store { return t.changes }

// Log loads the event log. A timeline that was never written has an empty
// log.
func (t *Timeline) Log() (timelog.Log, error) {
	return t.logFile.Load(timelog.LoadOptions{AllowMissing: true, AllowEmpty: true})
}

// History returns the most recent journaled transactions in the order they
// started.
func (t *Timeline) History(ctx context.Context, limit int) ([]journal.Record, error) {
	j := t.openJournal()
	if j == nil {
		return nil, errs.NotFound("transaction journal of timeline %q is not available", t.Name())
	}
	return j.List(ctx, limit)
}

// openJournal opens the journal on first use. A journal that cannot be opened
// is logged and disabled; it never blocks an operation.
func (t *Timeline) openJournal() *journal.Journal {
	if !t.useJrnl {
		return nil
	}
	if t.jrnl != nil {
		return t.jrnl
	}
	if err := os.MkdirAll(t.loc.TimelineDir(), 0o755); err != nil {
		t.logger.Warn("journal disabled", "error", err)
		t.useJrnl = false
		return nil
	}
	j, err := journal.Open(t.loc.JournalFile())
	if err != nil {
		t.logger.Warn("journal disabled", "error", err)
		t.useJrnl = false
		return nil
	}
	t.jrnl = j
	return j
}
