package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"FreightTracker/internal/infrastructure/retry"
	"FreightTracker/internal/ports"
)

const (
	attemptsTable = "tracking_attempts"
	recordsTable  = "tracking_records"

	// fixed-width UTC so stored timestamps sort lexically
	timeLayout = "2006-01-02T15:04:05.000000000Z"
)

// writePolicy retries writes that hit WAL contention.
var writePolicy = retry.Policy{
	Attempts:  3,
	BaseDelay: 50 * time.Millisecond,
	MaxDelay:  500 * time.Millisecond,
}

// SQLiteRepository keeps tracking attempts and resolved records in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

var _ ports.RecordRepository = (*SQLiteRepository)(nil)

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*SQLiteRepository, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	repo := NewSQLiteRepository(db)
	if err := repo.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return repo, nil
}

// NewSQLiteRepository wires an already opened sql.DB; the schema must exist.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Close closes the database connection.
func (r *SQLiteRepository) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *SQLiteRepository) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS tracking_attempts (
		id              TEXT PRIMARY KEY,
		tracking_number TEXT NOT NULL,
		adapter         TEXT NOT NULL,
		outcome         TEXT NOT NULL,
		error           TEXT NOT NULL DEFAULT '',
		artifact        TEXT NOT NULL DEFAULT '',
		events          INTEGER NOT NULL DEFAULT 0,
		duration_ms     INTEGER NOT NULL DEFAULT 0,
		started_at      TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_attempts_tracking ON tracking_attempts(tracking_number, started_at);

	CREATE TABLE IF NOT EXISTS tracking_records (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		tracking_number TEXT NOT NULL,
		adapter         TEXT NOT NULL,
		record          TEXT NOT NULL,
		resolved_at     TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_records_tracking ON tracking_records(tracking_number, id);
	`
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

// SaveAttempts inserts the attempt trace of one tracking run as a single multi-row insert.
func (r *SQLiteRepository) SaveAttempts(ctx context.Context, attempts []ports.AttemptRecord) error {
	if r.db == nil || len(attempts) == 0 {
		return nil
	}

	insert := sq.Insert(attemptsTable).Columns(
		"id", "tracking_number", "adapter", "outcome", "error", "artifact", "events", "duration_ms", "started_at",
	)
	for _, a := range attempts {
		insert = insert.Values(
			a.ID, a.TrackingNumber, a.Adapter, a.Outcome, a.Error, a.Artifact,
			a.Events, a.Duration.Milliseconds(), formatTime(a.StartedAt),
		)
	}

	query, args, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("build insert attempts: %w", err)
	}

	if err := r.exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert attempts: %w", err)
	}
	return nil
}

// SaveRecord appends a resolved record; history is never overwritten.
func (r *SQLiteRepository) SaveRecord(ctx context.Context, rec ports.StoredRecord) error {
	if r.db == nil {
		return nil
	}

	payload, err := json.Marshal(rec.Record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	query, args, err := sq.Insert(recordsTable).
		Columns("tracking_number", "adapter", "record", "resolved_at").
		Values(rec.TrackingNumber, rec.Adapter, string(payload), formatTime(rec.ResolvedAt)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert record: %w", err)
	}

	if err := r.exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// LatestRecord returns the most recently stored record for trackingNumber.
func (r *SQLiteRepository) LatestRecord(ctx context.Context, trackingNumber string) (ports.StoredRecord, bool, error) {
	if r.db == nil {
		return ports.StoredRecord{}, false, nil
	}

	query, args, err := sq.Select("tracking_number", "adapter", "record", "resolved_at").
		From(recordsTable).
		Where(sq.Eq{"tracking_number": trackingNumber}).
		OrderBy("id DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return ports.StoredRecord{}, false, fmt.Errorf("build select record: %w", err)
	}

	var (
		rec        ports.StoredRecord
		payload    string
		resolvedAt string
	)
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&rec.TrackingNumber, &rec.Adapter, &payload, &resolvedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.StoredRecord{}, false, nil
	}
	if err != nil {
		return ports.StoredRecord{}, false, fmt.Errorf("select record: %w", err)
	}

	if err := json.Unmarshal([]byte(payload), &rec.Record); err != nil {
		return ports.StoredRecord{}, false, fmt.Errorf("decode record: %w", err)
	}
	if rec.ResolvedAt, err = parseTime(resolvedAt); err != nil {
		return ports.StoredRecord{}, false, fmt.Errorf("decode resolved_at: %w", err)
	}
	return rec, true, nil
}

// RecentAttempts returns up to limit attempts for trackingNumber, newest first.
func (r *SQLiteRepository) RecentAttempts(ctx context.Context, trackingNumber string, limit int) ([]ports.AttemptRecord, error) {
	if r.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	query, args, err := sq.Select(
		"id", "tracking_number", "adapter", "outcome", "error", "artifact", "events", "duration_ms", "started_at",
	).
		From(attemptsTable).
		Where(sq.Eq{"tracking_number": trackingNumber}).
		OrderBy("started_at DESC", "rowid DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select attempts: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var out []ports.AttemptRecord
	for rows.Next() {
		var (
			a          ports.AttemptRecord
			durationMS int64
			startedAt  string
		)
		if err := rows.Scan(&a.ID, &a.TrackingNumber, &a.Adapter, &a.Outcome, &a.Error, &a.Artifact, &a.Events, &durationMS, &startedAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.Duration = time.Duration(durationMS) * time.Millisecond
		if a.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, fmt.Errorf("decode started_at: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

// exec runs a write, retrying transient SQLite contention errors.
func (r *SQLiteRepository) exec(ctx context.Context, query string, args ...any) error {
	return retry.Do(ctx, writePolicy, func(ctx context.Context) error {
		_, err := r.db.ExecContext(ctx, query, args...)
		if err != nil && !isTransientSQLiteErr(err) {
			return retry.Permanent(err)
		}
		return err
	})
}

// isTransientSQLiteErr reports lock and WAL read contention that a retry can resolve.
func isTransientSQLiteErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, pattern := range []string{
		"SQLITE_BUSY",
		"SQLITE_LOCKED",
		"IOERR_SHORT_READ",
		"database is locked",
		"database table is locked",
		"(5)",
		"(6)",
		"(522)",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(raw string) (time.Time, error) {
	return time.Parse(timeLayout, raw)
}
