// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

// Package loanqueue provides the durable on-device store for the offline-first
// loan submission flow: the pending submission queues, the read caches of
// server-confirmed entities, the duplicate guard, and a live display feed.
//
// The store is SQLite-backed. Rows are written by the UI flow (enqueue) and
// mutated only by the sync job; UI reads may run concurrently with sync writes.
package loanqueue

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store manages the local SQLite database holding the submission queues and
// read caches.
type Store struct {
	DB      *sql.DB
	logger  *slog.Logger
	writeMu sync.Mutex // Serialize write operations to prevent SQLite locking issues

	subMu sync.Mutex
	subs  map[chan struct{}]struct{}
}

// NewStore initializes the submission store on the given database,
// creating the schema if needed.
func NewStore(db *sql.DB, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := initializeDatabase(db); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return &Store{
		DB:     db,
		logger: logger,
		subs:   make(map[chan struct{}]struct{}),
	}, nil
}

// initializeDatabase creates the queue and cache tables (private function)
func initializeDatabase(db *sql.DB) error {
	// Enable WAL mode and foreign keys
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	tables := []string{
		// Loan / credit-line application queue (shared envelope + kind discriminator)
		`CREATE TABLE IF NOT EXISTS pending_submission (
			id              TEXT PRIMARY KEY,       -- client-generated UUID
			kind            TEXT NOT NULL CHECK (kind IN ('LOAN','CREDIT_LINE')),
			plafond_id      TEXT NOT NULL,
			amount          INTEGER NOT NULL,
			tenor_months    INTEGER NOT NULL,
			purpose         TEXT NOT NULL DEFAULT '',
			latitude        REAL,
			longitude       REAL,
			status          TEXT NOT NULL CHECK (status IN ('PENDING','SENDING','FAILED')),
			retry_count     INTEGER NOT NULL DEFAULT 0,
			last_attempt_at TIMESTAMP,
			error_message   TEXT,
			created_at      TIMESTAMP NOT NULL
		)`,

		// Disbursement queue (separate table, separate sync job)
		`CREATE TABLE IF NOT EXISTS pending_disbursement (
			id              TEXT PRIMARY KEY,
			credit_line_id  TEXT NOT NULL,
			amount          INTEGER NOT NULL,
			purpose         TEXT NOT NULL DEFAULT '',
			status          TEXT NOT NULL CHECK (status IN ('PENDING','SENDING','FAILED')),
			retry_count     INTEGER NOT NULL DEFAULT 0,
			last_attempt_at TIMESTAMP,
			error_message   TEXT,
			created_at      TIMESTAMP NOT NULL
		)`,

		// Read caches, replaced wholesale after each clean sync pass
		`CREATE TABLE IF NOT EXISTS loan_cache (
			id           TEXT PRIMARY KEY,
			kind         TEXT NOT NULL,
			plafond_id   TEXT NOT NULL,
			amount       INTEGER NOT NULL,
			tenor_months INTEGER NOT NULL,
			purpose      TEXT NOT NULL DEFAULT '',
			status       TEXT NOT NULL,
			created_at   TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS credit_line_cache (
			id          TEXT PRIMARY KEY,
			max_limit   INTEGER NOT NULL,
			available   INTEGER NOT NULL,
			status      TEXT NOT NULL,
			created_at  TIMESTAMP NOT NULL
		)`,
	}

	for _, table := range tables {
		if _, err := db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}

// EnqueueSubmission adds a new PENDING application row. It does not check for
// duplicates; callers are expected to consult CheckDuplicateSubmission first.
func (s *Store) EnqueueSubmission(ctx context.Context, sub *PendingSubmission) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	sub.Status = StatusPending

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO pending_submission
			(id, kind, plafond_id, amount, tenor_months, purpose, latitude, longitude,
			 status, retry_count, last_attempt_at, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, NULL, NULL, ?)
	`, sub.ID, string(sub.Kind), sub.PlafondID, sub.Amount, sub.TenorMonths, sub.Purpose,
		sub.Latitude, sub.Longitude, string(StatusPending), sub.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to enqueue submission: %w", err)
	}

	s.notifySubscribers()
	return nil
}

// EnqueueDisbursement adds a new PENDING disbursement row.
func (s *Store) EnqueueDisbursement(ctx context.Context, d *PendingDisbursement) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	d.Status = StatusPending

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO pending_disbursement
			(id, credit_line_id, amount, purpose, status, retry_count, last_attempt_at, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, 0, NULL, NULL, ?)
	`, d.ID, d.CreditLineID, d.Amount, d.Purpose, string(StatusPending), d.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to enqueue disbursement: %w", err)
	}

	s.notifySubscribers()
	return nil
}

// PendingForSync returns a snapshot of all PENDING application rows,
// newest first. SENDING and FAILED rows are never selected.
func (s *Store) PendingForSync(ctx context.Context) ([]PendingSubmission, error) {
	return s.querySubmissions(ctx, `WHERE status = ?`, string(StatusPending))
}

// AllSubmissions returns every queued application row, newest first.
// Confirmed submissions are deleted, so this is the full display set.
func (s *Store) AllSubmissions(ctx context.Context) ([]PendingSubmission, error) {
	return s.querySubmissions(ctx, ``)
}

func (s *Store) querySubmissions(ctx context.Context, where string, args ...any) ([]PendingSubmission, error) {
	query := `
		SELECT id, kind, plafond_id, amount, tenor_months, purpose, latitude, longitude,
		       status, retry_count, last_attempt_at, error_message, created_at
		FROM pending_submission ` + where + `
		ORDER BY created_at DESC`

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()

	var out []PendingSubmission
	for rows.Next() {
		var sub PendingSubmission
		var kind, status string
		var lat, lon sql.NullFloat64
		var lastAttempt sql.NullTime
		var errMsg sql.NullString

		if err := rows.Scan(&sub.ID, &kind, &sub.PlafondID, &sub.Amount, &sub.TenorMonths,
			&sub.Purpose, &lat, &lon, &status, &sub.RetryCount, &lastAttempt, &errMsg, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}

		sub.Kind = Kind(kind)
		sub.Status = Status(status)
		if lat.Valid {
			sub.Latitude = &lat.Float64
		}
		if lon.Valid {
			sub.Longitude = &lon.Float64
		}
		if lastAttempt.Valid {
			t := lastAttempt.Time
			sub.LastAttemptAt = &t
		}
		if errMsg.Valid {
			sub.ErrorMessage = errMsg.String
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating submissions: %w", err)
	}
	return out, nil
}

// PendingDisbursementsForSync returns a snapshot of all PENDING disbursement
// rows, newest first.
func (s *Store) PendingDisbursementsForSync(ctx context.Context) ([]PendingDisbursement, error) {
	return s.queryDisbursements(ctx, `WHERE status = ?`, string(StatusPending))
}

// AllDisbursements returns every queued disbursement row, newest first.
func (s *Store) AllDisbursements(ctx context.Context) ([]PendingDisbursement, error) {
	return s.queryDisbursements(ctx, ``)
}

func (s *Store) queryDisbursements(ctx context.Context, where string, args ...any) ([]PendingDisbursement, error) {
	query := `
		SELECT id, credit_line_id, amount, purpose, status, retry_count, last_attempt_at, error_message, created_at
		FROM pending_disbursement ` + where + `
		ORDER BY created_at DESC`

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query disbursements: %w", err)
	}
	defer rows.Close()

	var out []PendingDisbursement
	for rows.Next() {
		var d PendingDisbursement
		var status string
		var lastAttempt sql.NullTime
		var errMsg sql.NullString

		if err := rows.Scan(&d.ID, &d.CreditLineID, &d.Amount, &d.Purpose, &status,
			&d.RetryCount, &lastAttempt, &errMsg, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan disbursement: %w", err)
		}

		d.Status = Status(status)
		if lastAttempt.Valid {
			t := lastAttempt.Time
			d.LastAttemptAt = &t
		}
		if errMsg.Valid {
			d.ErrorMessage = errMsg.String
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating disbursements: %w", err)
	}
	return out, nil
}

// UpdateSubmissionStatus atomically updates one application row's status
// envelope. A vanished id is a silent no-op (the row was confirmed and
// deleted by a concurrent pass).
func (s *Store) UpdateSubmissionStatus(ctx context.Context, id string, status Status, retryCount int, lastAttemptAt *time.Time, errorMessage string) error {
	return s.updateStatus(ctx, "pending_submission", id, status, retryCount, lastAttemptAt, errorMessage)
}

// UpdateDisbursementStatus atomically updates one disbursement row's status envelope.
func (s *Store) UpdateDisbursementStatus(ctx context.Context, id string, status Status, retryCount int, lastAttemptAt *time.Time, errorMessage string) error {
	return s.updateStatus(ctx, "pending_disbursement", id, status, retryCount, lastAttemptAt, errorMessage)
}

func (s *Store) updateStatus(ctx context.Context, table, id string, status Status, retryCount int, lastAttemptAt *time.Time, errorMessage string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var errMsg sql.NullString
	if errorMessage != "" {
		errMsg = sql.NullString{String: errorMessage, Valid: true}
	}
	var attempt sql.NullTime
	if lastAttemptAt != nil {
		attempt = sql.NullTime{Time: *lastAttemptAt, Valid: true}
	}

	_, err := s.DB.ExecContext(ctx, `
		UPDATE `+table+`
		SET status = ?, retry_count = ?, last_attempt_at = ?, error_message = ?
		WHERE id = ?
	`, string(status), retryCount, attempt, errMsg, id)
	if err != nil {
		return fmt.Errorf("failed to update %s status: %w", table, err)
	}

	s.notifySubscribers()
	return nil
}

// DeleteSubmission removes an application row. Idempotent.
func (s *Store) DeleteSubmission(ctx context.Context, id string) error {
	return s.deleteRow(ctx, "pending_submission", id)
}

// DeleteDisbursement removes a disbursement row. Idempotent.
func (s *Store) DeleteDisbursement(ctx context.Context, id string) error {
	return s.deleteRow(ctx, "pending_disbursement", id)
}

func (s *Store) deleteRow(ctx context.Context, table, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.DB.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}

	s.notifySubscribers()
	return nil
}

// CountPendingByKind counts PENDING application rows of one kind.
func (s *Store) CountPendingByKind(ctx context.Context, kind Kind) (int, error) {
	var count int
	err := s.DB.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM pending_submission WHERE kind = ? AND status = ?
	`, string(kind), string(StatusPending)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending submissions: %w", err)
	}
	return count, nil
}

// CountPendingForCreditLine counts PENDING disbursement rows for one credit line.
func (s *Store) CountPendingForCreditLine(ctx context.Context, creditLineID string) (int, error) {
	var count int
	err := s.DB.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM pending_disbursement WHERE credit_line_id = ? AND status = ?
	`, creditLineID, string(StatusPending)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending disbursements: %w", err)
	}
	return count, nil
}

// SweepStaleSendingSubmissions resets application rows left in SENDING by an
// interrupted run back to PENDING. The retry counter is not touched: it counts
// attempts started, and the interrupted attempt already incremented it.
func (s *Store) SweepStaleSendingSubmissions(ctx context.Context) (int, error) {
	return s.sweepStaleSending(ctx, "pending_submission")
}

// SweepStaleSendingDisbursements resets disbursement rows left in SENDING
// back to PENDING.
func (s *Store) SweepStaleSendingDisbursements(ctx context.Context) (int, error) {
	return s.sweepStaleSending(ctx, "pending_disbursement")
}

func (s *Store) sweepStaleSending(ctx context.Context, table string) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.DB.ExecContext(ctx, `
		UPDATE `+table+` SET status = ? WHERE status = ?
	`, string(StatusPending), string(StatusSending))
	if err != nil {
		return 0, fmt.Errorf("failed to sweep stale SENDING rows in %s: %w", table, err)
	}

	swept, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read swept row count: %w", err)
	}
	if swept > 0 {
		s.logger.Warn("reset stale SENDING rows from interrupted run",
			"table", table, "count", swept)
		s.notifySubscribers()
	}
	return int(swept), nil
}
