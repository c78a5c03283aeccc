// Package journal records every timeline transaction in a SQLite database.
//
// Each apply, create, remove, bake or reconcile call opens a row when it
// starts, updates the row's stage as the transaction advances and closes it
// as committed or failed. The database file sits in the timeline folder but
// outside every snapshotted path, so a rollback never erases the record of
// the failure that caused it.
//
// # Database Configuration
//
//   - WAL mode: readers (strata history) never block the writer
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait rather than fail on a transient lock
//   - Single connection: SQLite allows one writer at a time
//
// Rows are ordered by seq, never by timestamp.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/strata/internal/errs"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added index on transactions.status
const currentSchemaVersion = 1

// Status is the outcome of a journaled transaction.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCommitted Status = "committed"
	StatusFailed    Status = "failed"
)

// Record is one journaled transaction.
type Record struct {
	Seq          int64     `json:"seq"`
	ID           string    `json:"id"`
	Timeline     string    `json:"timeline"`
	Operation    string    `json:"operation"`
	Year         int       `json:"year,omitempty"`
	Stage        string    `json:"stage"`
	Status       Status    `json:"status"`
	Error        string    `json:"error,omitempty"`
	YearsTouched []int     `json:"years_touched"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at,omitzero"`
}

// Journal is the SQLite-backed transaction journal.
type Journal struct {
	db *sql.DB
}

// Open creates or opens the journal at path and applies migrations.
// This function is idempotent - safe to call multiple times.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to journal: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Begin records a new running transaction and returns its id. An empty id
// is replaced by a random UUID.
func (j *Journal) Begin(ctx context.Context, id, timeline, operation string, year int, stage string, at time.Time) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO transactions (id, timeline, operation, year, stage, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, timeline, operation, year, stage, StatusRunning, formatTime(at))
	if err != nil {
		return "", fmt.Errorf("failed to record transaction start: %w", err)
	}
	return id, nil
}

// Stage records the stage a running transaction has reached.
func (j *Journal) Stage(ctx context.Context, id, stage string) error {
	res, err := j.db.ExecContext(ctx, `UPDATE transactions SET stage = ? WHERE id = ?`, stage, id)
	if err != nil {
		return fmt.Errorf("failed to record stage: %w", err)
	}
	return expectOneRow(res, id)
}

// Finish closes a transaction. cause is recorded when status is failed.
func (j *Journal) Finish(ctx context.Context, id string, status Status, years []int, cause error, at time.Time) error {
	if years == nil {
		years = []int{}
	}
	touched, err := json.Marshal(years)
	if err != nil {
		return fmt.Errorf("failed to encode touched years: %w", err)
	}
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	res, err := j.db.ExecContext(ctx, `
		UPDATE transactions
		SET status = ?, error = ?, years_touched = ?, finished_at = ?
		WHERE id = ?`,
		status, msg, string(touched), formatTime(at), id)
	if err != nil {
		return fmt.Errorf("failed to record transaction outcome: %w", err)
	}
	return expectOneRow(res, id)
}

// Get returns one transaction.
func (j *Journal) Get(ctx context.Context, id string) (Record, error) {
	row := j.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, errs.NotFound("transaction %s not found", id)
	}
	return rec, err
}

// List returns the most recent limit transactions in seq order.
// limit <= 0 returns all of them.
func (j *Journal) List(ctx context.Context, limit int) ([]Record, error) {
	query := selectColumns + ` ORDER BY seq ASC`
	var args []any
	if limit > 0 {
		query = `SELECT * FROM (` + selectColumns + ` ORDER BY seq DESC LIMIT ?) ORDER BY seq ASC`
		args = append(args, limit)
	}
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

const selectColumns = `
	SELECT seq, id, timeline, operation, year, stage, status, error, years_touched, started_at, finished_at
	FROM transactions`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (Record, error) {
	var (
		rec                  Record
		touched              string
		startedAt, finishedAt string
	)
	err := s.Scan(&rec.Seq, &rec.ID, &rec.Timeline, &rec.Operation, &rec.Year, &rec.Stage,
		&rec.Status, &rec.Error, &touched, &startedAt, &finishedAt)
	if err != nil {
		return Record{}, err
	}
	if err := json.Unmarshal([]byte(touched), &rec.YearsTouched); err != nil {
		return Record{}, fmt.Errorf("transaction %s: invalid years_touched: %w", rec.ID, err)
	}
	if rec.StartedAt, err = parseTime(startedAt); err != nil {
		return Record{}, fmt.Errorf("transaction %s: %w", rec.ID, err)
	}
	if rec.FinishedAt, err = parseTime(finishedAt); err != nil {
		return Record{}, fmt.Errorf("transaction %s: %w", rec.ID, err)
	}
	return rec, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

func expectOneRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return errs.NotFound("transaction %s not found", id)
	}
	return nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return runMigrations(db)
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version < 1 {
		if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions(status)`); err != nil {
			return fmt.Errorf("migrate to v1: %w", err)
		}
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}
