package timeline

import (
	"context"
	"log/slog"
	"slices"

	"github.com/roach88/strata/internal/integrity"
	"github.com/roach88/strata/internal/journal"
	"github.com/roach88/strata/internal/locator"
	"github.com/roach88/strata/internal/timelog"
	"github.com/roach88/strata/internal/txn"
)

// Result reports what a committed transaction did.
type Result struct {
	TxID       string   `json:"tx_id"`
	Operation  string   `json:"operation"`
	Year       int      `json:"year,omitempty"`
	Changes    []string `json:"changes,omitempty"`
	Created    []int    `json:"created,omitempty"`
	Modified   bool     `json:"modified"`
	Reconciled []int    `json:"reconciled,omitempty"`
	Synced     int      `json:"synced_cells"`
	Touched    []int    `json:"touched"`
}

type txSpec struct {
	op    string
	year  int
	paths []string
	// verify overrides the timeline's integrity mode for this operation.
	verify integrity.Mode
}

// tx is the in-flight state of one transaction.
type tx struct {
	t       *Timeline
	ctx     context.Context
	spec    txSpec
	id      string
	stage   Stage
	log     timelog.Log
	touched map[int]bool
	res     *Result
	jrnl    *journal.Journal
	logger  *slog.Logger
}

// transact runs body inside a snapshot of spec.paths. body works on x.log
// and enters the materialize, apply and propagate stages itself; transact
// then syncs derived properties of touched years, persists the log and the
// signatures, and verifies integrity before committing.
//
// On any failure, or a panic in body, every captured path is restored and
// the original error is returned unchanged.
func (t *Timeline) transact(ctx context.Context, spec txSpec, body func(x *tx) error) (res *Result, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if spec.verify == "" {
		spec.verify = t.mode
	}
	x := &tx{
		t:       t,
		ctx:     ctx,
		spec:    spec,
		id:      t.ids.Generate(),
		touched: map[int]bool{},
	}
	x.res = &Result{TxID: x.id, Operation: spec.op, Year: spec.year}
	x.logger = t.logger.With("tx", x.id, "operation", spec.op)
	x.beginJournal()
	defer func() { x.finishJournal(err) }()

	if err = x.enter(StageSnapshotting); err != nil {
		x.stage = StageFailed
		return nil, err
	}
	guard, err := txn.Begin(spec.paths...)
	if err != nil {
		x.stage = StageFailed
		return nil, err
	}
	guard.OnRestoreError = func(rerr error) {
		x.logger.Error("failed to restore snapshot", "error", rerr)
	}
	defer func() {
		if guard.Done() {
			return
		}
		failed := x.stage
		x.stage = StageRollingBack
		x.recordStage()
		guard.Abort()
		x.stage = StageFailed
		x.logger.Warn("transaction rolled back", "stage", failed.String(), "error", err)
	}()

	raw, err := t.logFile.Raw()
	if err != nil {
		return nil, err
	}
	if x.log, err = timelog.Decode(raw, t.logFile.Path(), true); err != nil {
		return nil, err
	}
	if err = body(x); err != nil {
		return nil, err
	}

	if err = x.enter(StageSyncingDerivedProperties); err != nil {
		return nil, err
	}
	if err = x.syncDerived(); err != nil {
		return nil, err
	}

	if err = x.enter(StagePersistingLog); err != nil {
		return nil, err
	}
	saved, err := t.logFile.SaveIfChanged(x.log, raw)
	if err != nil {
		return nil, err
	}
	if !saved {
		x.logger.Debug("event log unchanged")
	}
	if err = x.writeSignatures(); err != nil {
		return nil, err
	}

	if err = x.enter(StageVerifying); err != nil {
		return nil, err
	}
	if err = t.checker.Check(x.log, spec.verify); err != nil {
		return nil, err
	}

	guard.Commit()
	x.stage = StageCommitted
	x.recordStage()
	x.res.Touched = x.touchedYears()
	x.logger.Info("transaction committed", "year", spec.year, "touched", x.res.Touched)
	return x.res, nil
}

// enter moves to stage and runs the stage hook.
func (x *tx) enter(stage Stage) error {
	x.stage = stage
	x.recordStage()
	x.logger.Debug("entering stage", "stage", stage.String())
	if x.t.hook != nil {
		return x.t.hook(stage)
	}
	return nil
}

func (x *tx) touch(years ...int) {
	for _, y := range years {
		x.touched[y] = true
	}
}

func (x *tx) touchedYears() []int {
	years := locator.SortedYears(x.touched)
	if years == nil {
		years = []int{}
	}
	return years
}

func (x *tx) syncDerived() error {
	for _, y := range x.touchedYears() {
		if !x.t.mat.Exists(y) {
			continue
		}
		n, err := x.t.mat.SyncDerivedProperties(y)
		if err != nil {
			return err
		}
		x.res.Synced += n
	}
	return nil
}

// propagate reconciles every later materialized year with year's history.
func (x *tx) propagate(year int) error {
	changed, err := x.t.rec.PropagateForward(x.log, year)
	if err != nil {
		return err
	}
	for _, y := range changed {
		if !slices.Contains(x.res.Reconciled, y) {
			x.res.Reconciled = append(x.res.Reconciled, y)
		}
	}
	x.touch(changed...)
	return nil
}

func (x *tx) beginJournal() {
	j := x.t.openJournal()
	if j == nil {
		return
	}
	if _, err := j.Begin(x.ctx, x.id, x.t.Name(), x.spec.op, x.spec.year, StageIdle.String(), x.t.clock()); err != nil {
		x.logger.Warn("failed to journal transaction start", "error", err)
		return
	}
	x.jrnl = j
}

func (x *tx) recordStage() {
	if x.jrnl == nil {
		return
	}
	if err := x.jrnl.Stage(context.WithoutCancel(x.ctx), x.id, x.stage.String()); err != nil {
		x.logger.Warn("failed to journal stage", "stage", x.stage.String(), "error", err)
	}
}

func (x *tx) finishJournal(cause error) {
	if x.jrnl == nil {
		return
	}
	status := journal.StatusCommitted
	if x.stage != StageCommitted {
		status = journal.StatusFailed
		x.recordStage()
	}
	if err := x.jrnl.Finish(context.WithoutCancel(x.ctx), x.id, status, x.touchedYears(), cause, x.t.clock()); err != nil {
		x.logger.Warn("failed to journal transaction outcome", "error", err)
	}
}
