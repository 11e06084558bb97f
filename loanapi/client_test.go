// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package loanapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func newFakeClient(transport roundTripFunc) *Client {
	client := NewClient("http://example.com",
		func(ctx context.Context) (string, error) { return "test-token", nil }, nil)
	client.HTTP = &http.Client{Transport: transport}
	return client
}

func okJSON(body any) *http.Response {
	data, _ := json.Marshal(body)
	return &http.Response{
		StatusCode: 200,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader(data)),
	}
}

func TestSubmitLoanSendsBearerToken(t *testing.T) {
	client := newFakeClient(func(r *http.Request) (*http.Response, error) {
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.Equal(t, "/loans", r.URL.Path)

		var req SubmitLoanRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "sub-1", req.SubmissionID)
		require.Equal(t, int64(5_000_000), req.Amount)

		return okJSON(SubmitLoanResponse{
			Success: true,
			Data:    &Loan{ID: req.SubmissionID, Status: "SUBMITTED", CreatedAt: time.Now().UTC()},
		}), nil
	})

	resp, err := client.SubmitLoan(context.Background(), &SubmitLoanRequest{
		SubmissionID: "sub-1", Kind: KindLoan, PlafondID: "p1", Amount: 5_000_000, TenorMonths: 6,
	})
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.Equal(t, "sub-1", resp.Data.ID)
}

func TestClientNon2xxBecomesStatusError(t *testing.T) {
	client := newFakeClient(func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: 401,
			Body:       io.NopCloser(bytes.NewReader([]byte(`{"error":"unauthorized"}`))),
		}, nil
	})

	_, err := client.FetchLoans(context.Background())
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, 401, statusErr.StatusCode)
	require.False(t, IsTransient(err))
}

func TestClientTokenFailureAbortsBeforeSend(t *testing.T) {
	sent := false
	client := NewClient("http://example.com",
		func(ctx context.Context) (string, error) { return "", errors.New("session expired") }, nil)
	client.HTTP = &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		sent = true
		return okJSON(LoanListResponse{Success: true}), nil
	})}

	_, err := client.FetchLoans(context.Background())
	require.ErrorContains(t, err, "session expired")
	require.False(t, sent)
}

func TestClientTransportErrorIsTransient(t *testing.T) {
	client := newFakeClient(func(r *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})

	_, err := client.FetchCreditLines(context.Background())
	require.Error(t, err)
	require.True(t, IsTransient(err), "errors from the transport arrive wrapped in *url.Error")
}
