// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

// Package loanapi contains the wire models and HTTP client for the remote
// loan origination API, plus the JWT helper shared with the reference server.
package loanapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// TokenFunc returns a bearer token for the current user session. The lookup
// is asynchronous by contract: it may hit the credential store, but must
// never block a shared dispatch pool the way a synchronous interceptor would.
type TokenFunc func(ctx context.Context) (string, error)

// Client talks to the remote loan origination API.
type Client struct {
	BaseURL string
	Token   TokenFunc
	HTTP    *http.Client
	logger  *slog.Logger
}

// NewClient creates an API client for the given base URL. Transport-level
// timeout lives here; the sync job classifies a fired timeout as transient.
func NewClient(baseURL string, tok TokenFunc, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		BaseURL: baseURL,
		Token:   tok,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

// SubmitLoan submits one loan or credit-line application.
func (c *Client) SubmitLoan(ctx context.Context, req *SubmitLoanRequest) (*SubmitLoanResponse, error) {
	var resp SubmitLoanResponse
	if err := c.postJSON(ctx, "/loans", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SubmitDisbursement submits one drawdown request against a credit line.
func (c *Client) SubmitDisbursement(ctx context.Context, req *SubmitDisbursementRequest) (*SubmitDisbursementResponse, error) {
	var resp SubmitDisbursementResponse
	if err := c.postJSON(ctx, "/disbursements", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FetchLoans downloads the authoritative loan list for cache reconciliation.
func (c *Client) FetchLoans(ctx context.Context) (*LoanListResponse, error) {
	var resp LoanListResponse
	if err := c.getJSON(ctx, "/loans", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FetchCreditLines downloads the authoritative credit-line list.
func (c *Client) FetchCreditLines(ctx context.Context) (*CreditLineListResponse, error) {
	var resp CreditLineListResponse
	if err := c.getJSON(ctx, "/credit-lines", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body any, out any) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	return c.send(httpReq, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, "GET", c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	return c.send(httpReq, out)
}

func (c *Client) send(httpReq *http.Request, out any) error {
	token, err := c.Token(httpReq.Context())
	if err != nil {
		return fmt.Errorf("failed to get bearer token: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
