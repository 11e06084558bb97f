// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package loanqueue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDuplicateGuardBlocksSameKind(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CheckDuplicateSubmission(ctx, KindLoan))

	require.NoError(t, store.EnqueueSubmission(ctx, NewLoanSubmission(KindLoan, "p1", 100, 6, "")))

	err := store.CheckDuplicateSubmission(ctx, KindLoan)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrDuplicateSubmission))

	// A different kind is unaffected.
	require.NoError(t, store.CheckDuplicateSubmission(ctx, KindCreditLine))
}

func TestDuplicateGuardBlocksSameCreditLine(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.EnqueueDisbursement(ctx, NewDisbursement("cl-1", 100, "")))

	err := store.CheckDuplicateDisbursement(ctx, "cl-1")
	require.True(t, errors.Is(err, ErrDuplicateSubmission))

	require.NoError(t, store.CheckDuplicateDisbursement(ctx, "cl-2"))
}

func TestDuplicateGuardUnblocksAfterResolution(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sub := NewLoanSubmission(KindLoan, "p1", 100, 6, "")
	require.NoError(t, store.EnqueueSubmission(ctx, sub))
	require.True(t, errors.Is(store.CheckDuplicateSubmission(ctx, KindLoan), ErrDuplicateSubmission))

	// Confirmed -> deleted -> guard opens again.
	require.NoError(t, store.DeleteSubmission(ctx, sub.ID))
	require.NoError(t, store.CheckDuplicateSubmission(ctx, KindLoan))

	// FAILED rows also unblock: the user edits and resubmits.
	sub2 := NewLoanSubmission(KindLoan, "p1", 100, 6, "")
	require.NoError(t, store.EnqueueSubmission(ctx, sub2))
	now := time.Now().UTC()
	require.NoError(t, store.UpdateSubmissionStatus(ctx, sub2.ID, StatusFailed, 1, &now, "rejected"))
	require.NoError(t, store.CheckDuplicateSubmission(ctx, KindLoan))
}
