// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

// Package loansync drains the on-device submission queues against the remote
// loan API. Each job run walks the PENDING snapshot sequentially, classifies
// every outcome as confirmed, permanently rejected, or transient, and then
// reconciles the local read cache against the server when the pass was clean.
package loansync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prasasatbumi/plapofy-sync/appevent"
	"github.com/prasasatbumi/plapofy-sync/loanapi"
	"github.com/prasasatbumi/plapofy-sync/loanqueue"
)

// Result tells the scheduler what to do with this job invocation.
type Result int

const (
	// Success means every item reached a resolved outcome (confirmed or
	// FAILED). FAILED items do not make the job fail: they are settled and
	// will not be retried.
	Success Result = iota
	// RetryLater means at least one item hit a transport fault and was put
	// back to PENDING; the scheduler should run the job again with backoff.
	RetryLater
)

func (r Result) String() string {
	if r == RetryLater {
		return "RETRY_LATER"
	}
	return "SUCCESS"
}

// API is the remote collaborator consumed by the sync jobs.
// *loanapi.Client satisfies it.
type API interface {
	SubmitLoan(ctx context.Context, req *loanapi.SubmitLoanRequest) (*loanapi.SubmitLoanResponse, error)
	SubmitDisbursement(ctx context.Context, req *loanapi.SubmitDisbursementRequest) (*loanapi.SubmitDisbursementResponse, error)
	FetchLoans(ctx context.Context) (*loanapi.LoanListResponse, error)
	FetchCreditLines(ctx context.Context) (*loanapi.CreditLineListResponse, error)
}

// Syncer runs the submission and disbursement sync jobs. Each job is guarded
// by its own mutex: the SENDING transition is not a lease, so two concurrent
// runs of the same job could double-send an item.
type Syncer struct {
	store  *loanqueue.Store
	api    API
	bus    *appevent.Bus // optional
	logger *slog.Logger

	submissionMu   sync.Mutex
	disbursementMu sync.Mutex
}

// NewSyncer wires the sync jobs. bus may be nil when no UI notifications are
// wanted; logger nil falls back to slog.Default().
func NewSyncer(store *loanqueue.Store, api API, bus *appevent.Bus, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		store:  store,
		api:    api,
		bus:    bus,
		logger: logger,
	}
}

// SyncSubmissions drains the loan/credit-line application queue once.
func (s *Syncer) SyncSubmissions(ctx context.Context) (Result, error) {
	s.submissionMu.Lock()
	defer s.submissionMu.Unlock()

	// Rows left in SENDING by a killed run have an unknown outcome; treat the
	// previous attempt as lost and let this run retry them.
	if _, err := s.store.SweepStaleSendingSubmissions(ctx); err != nil {
		return RetryLater, fmt.Errorf("failed to sweep stale submissions: %w", err)
	}

	items, err := s.store.PendingForSync(ctx)
	if err != nil {
		return RetryLater, fmt.Errorf("failed to load pending submissions: %w", err)
	}
	if len(items) == 0 {
		return Success, nil
	}

	hadNetworkError := false
	for i := range items {
		outcome := s.processSubmission(ctx, &items[i])
		if outcome == outcomeTransient {
			hadNetworkError = true
		}
		if ctx.Err() != nil {
			s.publish(appevent.TypeSyncRetryScheduled, "sync interrupted")
			return RetryLater, ctx.Err()
		}
	}

	if !hadNetworkError {
		s.reconcileLoans(ctx)
		s.publish(appevent.TypeSyncSucceeded, "submissions synced")
		return Success, nil
	}
	s.publish(appevent.TypeSyncRetryScheduled, "network error, submissions sync will retry")
	return RetryLater, nil
}

// SyncDisbursements drains the disbursement queue once. Identical shape to
// SyncSubmissions, reconciling the credit-line cache instead.
func (s *Syncer) SyncDisbursements(ctx context.Context) (Result, error) {
	s.disbursementMu.Lock()
	defer s.disbursementMu.Unlock()

	if _, err := s.store.SweepStaleSendingDisbursements(ctx); err != nil {
		return RetryLater, fmt.Errorf("failed to sweep stale disbursements: %w", err)
	}

	items, err := s.store.PendingDisbursementsForSync(ctx)
	if err != nil {
		return RetryLater, fmt.Errorf("failed to load pending disbursements: %w", err)
	}
	if len(items) == 0 {
		return Success, nil
	}

	hadNetworkError := false
	for i := range items {
		outcome := s.processDisbursement(ctx, &items[i])
		if outcome == outcomeTransient {
			hadNetworkError = true
		}
		if ctx.Err() != nil {
			s.publish(appevent.TypeSyncRetryScheduled, "sync interrupted")
			return RetryLater, ctx.Err()
		}
	}

	if !hadNetworkError {
		s.reconcileCreditLines(ctx)
		s.publish(appevent.TypeSyncSucceeded, "disbursements synced")
		return Success, nil
	}
	s.publish(appevent.TypeSyncRetryScheduled, "network error, disbursements sync will retry")
	return RetryLater, nil
}

type outcome int

const (
	outcomeConfirmed outcome = iota
	outcomePermanent
	outcomeTransient
	outcomeStorageFault
)

// processSubmission runs the per-item state machine for one application row.
// Storage faults abort this item only; one bad row must not block the queue.
func (s *Syncer) processSubmission(ctx context.Context, item *loanqueue.PendingSubmission) outcome {
	retry := item.RetryCount + 1
	now := time.Now().UTC()

	if err := s.store.UpdateSubmissionStatus(ctx, item.ID, loanqueue.StatusSending, retry, &now, ""); err != nil {
		s.logger.Error("failed to mark submission SENDING, skipping item", "id", item.ID, "error", err)
		return outcomeStorageFault
	}

	resp, err := s.api.SubmitLoan(ctx, &loanapi.SubmitLoanRequest{
		SubmissionID: item.ID,
		Kind:         string(item.Kind),
		PlafondID:    item.PlafondID,
		Amount:       item.Amount,
		TenorMonths:  item.TenorMonths,
		Purpose:      item.Purpose,
		Latitude:     item.Latitude,
		Longitude:    item.Longitude,
	})

	switch {
	case err != nil && loanapi.IsTransient(err):
		// Network blip: back to PENDING, keep the retry count growth.
		s.logger.Info("submission hit transient error, will retry",
			"id", item.ID, "retry_count", retry, "error", err)
		if uerr := s.store.UpdateSubmissionStatus(ctx, item.ID, loanqueue.StatusPending, retry, &now, ""); uerr != nil {
			s.logger.Error("failed to reset submission to PENDING", "id", item.ID, "error", uerr)
		}
		return outcomeTransient

	case err != nil:
		// Serialization or other unexpected fault: never retried, to avoid an
		// infinite loop on an unrecoverable bug.
		s.logger.Error("submission failed permanently", "id", item.ID, "error", err)
		if uerr := s.store.UpdateSubmissionStatus(ctx, item.ID, loanqueue.StatusFailed, retry, &now, err.Error()); uerr != nil {
			s.logger.Error("failed to mark submission FAILED", "id", item.ID, "error", uerr)
			return outcomeStorageFault
		}
		s.publish(appevent.TypeSubmissionFailed, err.Error())
		return outcomePermanent

	case !resp.Success:
		// Business rejection from the server: resolved, not a job failure.
		s.logger.Warn("submission rejected by server", "id", item.ID, "message", resp.Message)
		if uerr := s.store.UpdateSubmissionStatus(ctx, item.ID, loanqueue.StatusFailed, retry, &now, resp.Message); uerr != nil {
			s.logger.Error("failed to mark submission FAILED", "id", item.ID, "error", uerr)
			return outcomeStorageFault
		}
		s.publish(appevent.TypeSubmissionFailed, resp.Message)
		return outcomePermanent

	default:
		if err := s.store.DeleteSubmission(ctx, item.ID); err != nil {
			s.logger.Error("failed to delete confirmed submission", "id", item.ID, "error", err)
			return outcomeStorageFault
		}
		if resp.Data != nil {
			if err := s.store.UpsertLoan(ctx, loanFromAPI(resp.Data)); err != nil {
				s.logger.Error("failed to cache confirmed loan", "id", resp.Data.ID, "error", err)
			}
		}
		s.publish(appevent.TypeSubmissionConfirmed, "submission confirmed")
		return outcomeConfirmed
	}
}

func (s *Syncer) processDisbursement(ctx context.Context, item *loanqueue.PendingDisbursement) outcome {
	retry := item.RetryCount + 1
	now := time.Now().UTC()

	if err := s.store.UpdateDisbursementStatus(ctx, item.ID, loanqueue.StatusSending, retry, &now, ""); err != nil {
		s.logger.Error("failed to mark disbursement SENDING, skipping item", "id", item.ID, "error", err)
		return outcomeStorageFault
	}

	resp, err := s.api.SubmitDisbursement(ctx, &loanapi.SubmitDisbursementRequest{
		SubmissionID: item.ID,
		CreditLineID: item.CreditLineID,
		Amount:       item.Amount,
		Purpose:      item.Purpose,
	})

	switch {
	case err != nil && loanapi.IsTransient(err):
		s.logger.Info("disbursement hit transient error, will retry",
			"id", item.ID, "retry_count", retry, "error", err)
		if uerr := s.store.UpdateDisbursementStatus(ctx, item.ID, loanqueue.StatusPending, retry, &now, ""); uerr != nil {
			s.logger.Error("failed to reset disbursement to PENDING", "id", item.ID, "error", uerr)
		}
		return outcomeTransient

	case err != nil:
		s.logger.Error("disbursement failed permanently", "id", item.ID, "error", err)
		if uerr := s.store.UpdateDisbursementStatus(ctx, item.ID, loanqueue.StatusFailed, retry, &now, err.Error()); uerr != nil {
			s.logger.Error("failed to mark disbursement FAILED", "id", item.ID, "error", uerr)
			return outcomeStorageFault
		}
		s.publish(appevent.TypeSubmissionFailed, err.Error())
		return outcomePermanent

	case !resp.Success:
		s.logger.Warn("disbursement rejected by server", "id", item.ID, "message", resp.Message)
		if uerr := s.store.UpdateDisbursementStatus(ctx, item.ID, loanqueue.StatusFailed, retry, &now, resp.Message); uerr != nil {
			s.logger.Error("failed to mark disbursement FAILED", "id", item.ID, "error", uerr)
			return outcomeStorageFault
		}
		s.publish(appevent.TypeSubmissionFailed, resp.Message)
		return outcomePermanent

	default:
		if err := s.store.DeleteDisbursement(ctx, item.ID); err != nil {
			s.logger.Error("failed to delete confirmed disbursement", "id", item.ID, "error", err)
			return outcomeStorageFault
		}
		s.publish(appevent.TypeSubmissionConfirmed, "disbursement confirmed")
		return outcomeConfirmed
	}
}

// reconcileLoans replaces the loan cache with the server's list. Failure is
// logged and swallowed: reconciliation never fails the job.
func (s *Syncer) reconcileLoans(ctx context.Context) {
	resp, err := s.api.FetchLoans(ctx)
	if err != nil {
		s.logger.Warn("loan reconciliation fetch failed", "error", err)
		return
	}
	if !resp.Success {
		s.logger.Warn("loan reconciliation rejected", "message", resp.Message)
		return
	}

	loans := make([]loanqueue.CachedLoan, 0, len(resp.Data))
	for i := range resp.Data {
		loans = append(loans, loanFromAPI(&resp.Data[i]))
	}
	if err := s.store.ReplaceAllLoans(ctx, loans); err != nil {
		s.logger.Warn("failed to replace loan cache", "error", err)
	}
}

func (s *Syncer) reconcileCreditLines(ctx context.Context) {
	resp, err := s.api.FetchCreditLines(ctx)
	if err != nil {
		s.logger.Warn("credit-line reconciliation fetch failed", "error", err)
		return
	}
	if !resp.Success {
		s.logger.Warn("credit-line reconciliation rejected", "message", resp.Message)
		return
	}

	lines := make([]loanqueue.CachedCreditLine, 0, len(resp.Data))
	for _, cl := range resp.Data {
		lines = append(lines, loanqueue.CachedCreditLine{
			ID:        cl.ID,
			Limit:     cl.Limit,
			Available: cl.Available,
			Status:    cl.Status,
			CreatedAt: cl.CreatedAt,
		})
	}
	if err := s.store.ReplaceAllCreditLines(ctx, lines); err != nil {
		s.logger.Warn("failed to replace credit-line cache", "error", err)
	}
}

func (s *Syncer) publish(typ appevent.Type, message string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(appevent.Event{Type: typ, Message: message})
}

func loanFromAPI(loan *loanapi.Loan) loanqueue.CachedLoan {
	return loanqueue.CachedLoan{
		ID:          loan.ID,
		Kind:        loan.Kind,
		PlafondID:   loan.PlafondID,
		Amount:      loan.Amount,
		TenorMonths: loan.TenorMonths,
		Purpose:     loan.Purpose,
		Status:      loan.Status,
		CreatedAt:   loan.CreatedAt,
	}
}
