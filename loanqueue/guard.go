// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package loanqueue

import (
	"context"
	"errors"
	"fmt"
)

// ErrDuplicateSubmission is returned by the duplicate guard when an
// equivalent submission is already queued and unresolved. The UI flow must
// reject the new submission instead of enqueueing a second one.
var ErrDuplicateSubmission = errors.New("an equivalent submission is already pending")

// CheckDuplicateSubmission rejects queueing a second application of the same
// kind while one is still PENDING. FAILED rows do not block: the user is
// expected to edit and resubmit those.
func (s *Store) CheckDuplicateSubmission(ctx context.Context, kind Kind) error {
	count, err := s.CountPendingByKind(ctx, kind)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%s application already queued: %w", kind, ErrDuplicateSubmission)
	}
	return nil
}

// CheckDuplicateDisbursement rejects queueing a second drawdown against the
// same credit line while one is still PENDING.
func (s *Store) CheckDuplicateDisbursement(ctx context.Context, creditLineID string) error {
	count, err := s.CountPendingForCreditLine(ctx, creditLineID)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("disbursement for credit line %s already queued: %w", creditLineID, ErrDuplicateSubmission)
	}
	return nil
}
