// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package loanqueue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReplaceAllLoansIsWholesale(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := []CachedLoan{
		{ID: "loan-1", Kind: "LOAN", PlafondID: "p1", Amount: 100, TenorMonths: 6, Status: "SUBMITTED", CreatedAt: time.Now().UTC()},
		{ID: "loan-2", Kind: "LOAN", PlafondID: "p1", Amount: 200, TenorMonths: 12, Status: "APPROVED", CreatedAt: time.Now().UTC()},
	}
	require.NoError(t, store.ReplaceAllLoans(ctx, first))

	loans, err := store.ListLoans(ctx)
	require.NoError(t, err)
	require.Len(t, loans, 2)

	// A later fetch that no longer contains loan-2 removes it locally: the
	// cache is always superseded by server truth, never merged.
	second := []CachedLoan{
		{ID: "loan-1", Kind: "LOAN", PlafondID: "p1", Amount: 100, TenorMonths: 6, Status: "APPROVED", CreatedAt: time.Now().UTC()},
	}
	require.NoError(t, store.ReplaceAllLoans(ctx, second))

	loans, err = store.ListLoans(ctx)
	require.NoError(t, err)
	require.Len(t, loans, 1)
	require.Equal(t, "loan-1", loans[0].ID)
	require.Equal(t, "APPROVED", loans[0].Status)
}

func TestUpsertLoan(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	loan := CachedLoan{ID: "loan-1", Kind: "LOAN", PlafondID: "p1", Amount: 100, TenorMonths: 6, Status: "SUBMITTED", CreatedAt: time.Now().UTC()}
	require.NoError(t, store.UpsertLoan(ctx, loan))

	loan.Status = "APPROVED"
	require.NoError(t, store.UpsertLoan(ctx, loan))

	loans, err := store.ListLoans(ctx)
	require.NoError(t, err)
	require.Len(t, loans, 1)
	require.Equal(t, "APPROVED", loans[0].Status)
}

func TestReplaceAllCreditLines(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	lines := []CachedCreditLine{
		{ID: "cl-1", Limit: 1_000_000, Available: 600_000, Status: "ACTIVE", CreatedAt: time.Now().UTC()},
	}
	require.NoError(t, store.ReplaceAllCreditLines(ctx, lines))

	got, err := store.ListCreditLines(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, int64(600_000), got[0].Available)

	require.NoError(t, store.ReplaceAllCreditLines(ctx, nil))
	got, err = store.ListCreditLines(ctx)
	require.NoError(t, err)
	require.Empty(t, got)
}
