// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package loanqueue

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a queued submission.
//
// Transitions are PENDING -> SENDING -> {deleted | FAILED | PENDING}.
// There is no SENT state: a confirmed submission is removed from the queue.
// FAILED is terminal for the sync job; only a user action clears it.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusSending Status = "SENDING"
	StatusFailed  Status = "FAILED"
)

// Kind discriminates the two application variants sharing the submission queue.
type Kind string

const (
	KindLoan       Kind = "LOAN"
	KindCreditLine Kind = "CREDIT_LINE"
)

// PendingSubmission is a queued loan or credit-line application. The payload
// fields are immutable after creation; only the status envelope (Status,
// RetryCount, LastAttemptAt, ErrorMessage) is mutated, and only by the sync job.
type PendingSubmission struct {
	ID          string // client-generated UUID, stable across retries
	Kind        Kind
	PlafondID   string
	Amount      int64
	TenorMonths int
	Purpose     string
	Latitude    *float64
	Longitude   *float64

	Status        Status
	RetryCount    int
	LastAttemptAt *time.Time
	ErrorMessage  string // last failure only, empty when none
	CreatedAt     time.Time
}

// PendingDisbursement is a queued drawdown request against a credit line.
// It carries the same status envelope as PendingSubmission but lives in its
// own queue, matching the separate disbursement sync job.
type PendingDisbursement struct {
	ID           string
	CreditLineID string
	Amount       int64
	Purpose      string

	Status        Status
	RetryCount    int
	LastAttemptAt *time.Time
	ErrorMessage  string
	CreatedAt     time.Time
}

// CachedLoan is a read-only projection of a server-side loan, refreshed
// wholesale after each clean sync pass. Never the source of truth.
type CachedLoan struct {
	ID          string
	Kind        string
	PlafondID   string
	Amount      int64
	TenorMonths int
	Purpose     string
	Status      string
	CreatedAt   time.Time
}

// CachedCreditLine is a read-only projection of a server-side credit line.
type CachedCreditLine struct {
	ID        string
	Limit     int64
	Available int64
	Status    string
	CreatedAt time.Time
}

// NewLoanSubmission builds a PENDING loan application ready to enqueue.
func NewLoanSubmission(kind Kind, plafondID string, amount int64, tenorMonths int, purpose string) *PendingSubmission {
	return &PendingSubmission{
		ID:          uuid.NewString(),
		Kind:        kind,
		PlafondID:   plafondID,
		Amount:      amount,
		TenorMonths: tenorMonths,
		Purpose:     purpose,
		Status:      StatusPending,
		CreatedAt:   time.Now().UTC(),
	}
}

// NewDisbursement builds a PENDING disbursement request ready to enqueue.
func NewDisbursement(creditLineID string, amount int64, purpose string) *PendingDisbursement {
	return &PendingDisbursement{
		ID:           uuid.NewString(),
		CreditLineID: creditLineID,
		Amount:       amount,
		Purpose:      purpose,
		Status:       StatusPending,
		CreatedAt:    time.Now().UTC(),
	}
}
