// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package loanapi

import "time"

// REST/JSON models for the loan origination HTTP API.
// These models are shared between the device client and the reference server.

// SubmitLoanRequest is the payload for a loan or credit-line application.
// SubmissionID is generated on the device and stays stable across retries so
// the server can deduplicate replays of the same logical submission.
type SubmitLoanRequest struct {
	SubmissionID string   `json:"submission_id"`
	Kind         string   `json:"kind"` // LOAN or CREDIT_LINE
	PlafondID    string   `json:"plafond_id"`
	Amount       int64    `json:"amount"`
	TenorMonths  int      `json:"tenor_months"`
	Purpose      string   `json:"purpose,omitempty"`
	Latitude     *float64 `json:"lat,omitempty"`
	Longitude    *float64 `json:"lon,omitempty"`
}

// SubmitDisbursementRequest is the payload for a drawdown against an
// approved credit line.
type SubmitDisbursementRequest struct {
	SubmissionID string `json:"submission_id"`
	CreditLineID string `json:"credit_line_id"`
	Amount       int64  `json:"amount"`
	Purpose      string `json:"purpose,omitempty"`
}

// Loan is the server-confirmed loan aggregate.
type Loan struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	PlafondID   string    `json:"plafond_id"`
	Amount      int64     `json:"amount"`
	TenorMonths int       `json:"tenor_months"`
	Purpose     string    `json:"purpose,omitempty"`
	Status      string    `json:"status"` // e.g. SUBMITTED, APPROVED, REJECTED
	CreatedAt   time.Time `json:"created_at"`
}

// CreditLine is a revolving pre-approved limit.
type CreditLine struct {
	ID        string    `json:"id"`
	Limit     int64     `json:"limit"`
	Available int64     `json:"available"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Disbursement is a single confirmed drawdown against a credit line.
type Disbursement struct {
	ID           string    `json:"id"`
	CreditLineID string    `json:"credit_line_id"`
	Amount       int64     `json:"amount"`
	Purpose      string    `json:"purpose,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// SubmitLoanResponse is the server verdict on one loan submission.
// Success=false is a business rejection (permanent), not a transport fault.
type SubmitLoanResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    *Loan  `json:"data,omitempty"`
}

// SubmitDisbursementResponse is the server verdict on one disbursement.
type SubmitDisbursementResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message,omitempty"`
	Data    *Disbursement `json:"data,omitempty"`
}

// LoanListResponse carries the authoritative loan list for reconciliation.
type LoanListResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    []Loan `json:"data"`
}

// CreditLineListResponse carries the authoritative credit-line list.
type CreditLineListResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Data    []CreditLine `json:"data"`
}

// ErrorResponse is returned by the server for protocol-level errors
// (bad auth, malformed body). Business rejections use Success=false instead.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Submission kind constants shared by client queue and server.
const (
	KindLoan       = "LOAN"
	KindCreditLine = "CREDIT_LINE"
)
