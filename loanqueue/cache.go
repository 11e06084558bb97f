// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package loanqueue

import (
	"context"
	"database/sql"
	"fmt"
)

// ReplaceAllLoans overwrites the loan cache with the authoritative server
// list in one transaction. The cache is disposable and rebuildable; there is
// no field-by-field merging, last fetch wins.
func (s *Store) ReplaceAllLoans(ctx context.Context, loans []CachedLoan) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM loan_cache`); err != nil {
		return fmt.Errorf("failed to clear loan cache: %w", err)
	}
	for _, loan := range loans {
		if err := upsertLoanInTx(ctx, tx, loan); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit loan cache replace: %w", err)
	}
	return nil
}

// UpsertLoan writes one server-confirmed loan into the cache. Used right
// after a successful submission so the new loan shows up before the next
// full reconciliation.
func (s *Store) UpsertLoan(ctx context.Context, loan CachedLoan) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := upsertLoanInTx(ctx, tx, loan); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit loan upsert: %w", err)
	}
	return nil
}

func upsertLoanInTx(ctx context.Context, tx *sql.Tx, loan CachedLoan) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO loan_cache (id, kind, plafond_id, amount, tenor_months, purpose, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			kind = excluded.kind,
			plafond_id = excluded.plafond_id,
			amount = excluded.amount,
			tenor_months = excluded.tenor_months,
			purpose = excluded.purpose,
			status = excluded.status,
			created_at = excluded.created_at
	`, loan.ID, loan.Kind, loan.PlafondID, loan.Amount, loan.TenorMonths, loan.Purpose, loan.Status, loan.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert cached loan %s: %w", loan.ID, err)
	}
	return nil
}

// ListLoans returns the cached loans, newest first.
func (s *Store) ListLoans(ctx context.Context) ([]CachedLoan, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, kind, plafond_id, amount, tenor_months, purpose, status, created_at
		FROM loan_cache
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query loan cache: %w", err)
	}
	defer rows.Close()

	var out []CachedLoan
	for rows.Next() {
		var loan CachedLoan
		if err := rows.Scan(&loan.ID, &loan.Kind, &loan.PlafondID, &loan.Amount,
			&loan.TenorMonths, &loan.Purpose, &loan.Status, &loan.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cached loan: %w", err)
		}
		out = append(out, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating loan cache: %w", err)
	}
	return out, nil
}

// ReplaceAllCreditLines overwrites the credit-line cache with the
// authoritative server list in one transaction.
func (s *Store) ReplaceAllCreditLines(ctx context.Context, lines []CachedCreditLine) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM credit_line_cache`); err != nil {
		return fmt.Errorf("failed to clear credit-line cache: %w", err)
	}
	for _, line := range lines {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO credit_line_cache (id, max_limit, available, status, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, line.ID, line.Limit, line.Available, line.Status, line.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert cached credit line %s: %w", line.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit credit-line cache replace: %w", err)
	}
	return nil
}

// ListCreditLines returns the cached credit lines, newest first.
func (s *Store) ListCreditLines(ctx context.Context) ([]CachedCreditLine, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, max_limit, available, status, created_at
		FROM credit_line_cache
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query credit-line cache: %w", err)
	}
	defer rows.Close()

	var out []CachedCreditLine
	for rows.Next() {
		var line CachedCreditLine
		if err := rows.Scan(&line.ID, &line.Limit, &line.Available, &line.Status, &line.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cached credit line: %w", err)
		}
		out = append(out, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating credit-line cache: %w", err)
	}
	return out, nil
}
