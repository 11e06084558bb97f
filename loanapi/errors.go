// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package loanapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"syscall"
)

// StatusError is returned when the server answers with a non-2xx HTTP status.
// 5xx and throttling statuses are treated as transient (the gateway or the
// backend is temporarily unhealthy); everything else is permanent.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Body)
}

// Transient reports whether the status is worth retrying.
func (e *StatusError) Transient() bool {
	switch e.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return e.StatusCode >= 500
}

// IsTransient classifies an error from an API call as a transport-level
// (retryable) fault. The sync job resets rows to PENDING on transient errors
// and marks them FAILED on everything else, so the split here is the one
// piece of logic that decides whether a user request survives a bad network.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Transient()
	}

	// Timeouts, DNS failures, refused/reset connections.
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	// Context errors surface when the transport timeout fires or the job run
	// is cancelled; either way the attempt outcome is unknown, so retry.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}

	return false
}
