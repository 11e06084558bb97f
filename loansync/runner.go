// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package loansync

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// RunnerConfig holds timing for the background trigger loop. The backoff
// curve here is the library's own trigger policy; hosts with their own
// scheduler can call the Syncer directly and apply their own.
type RunnerConfig struct {
	Interval   time.Duration // wait between clean passes
	BackoffMin time.Duration
	BackoffMax time.Duration
}

// DefaultRunnerConfig returns timing suitable for a mobile-style client.
func DefaultRunnerConfig() *RunnerConfig {
	return &RunnerConfig{
		Interval:   30 * time.Second,
		BackoffMin: 1 * time.Second,
		BackoffMax: 60 * time.Second,
	}
}

// Runner triggers the sync jobs periodically with exponential backoff after
// RetryLater outcomes, and immediately on TriggerNow.
type Runner struct {
	syncer *Syncer
	config *RunnerConfig
	logger *slog.Logger

	kick   chan struct{}
	paused int32
}

// NewRunner creates a runner for the given syncer.
func NewRunner(syncer *Syncer, config *RunnerConfig, logger *slog.Logger) *Runner {
	if config == nil {
		config = DefaultRunnerConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		syncer: syncer,
		config: config,
		logger: logger,
		kick:   make(chan struct{}, 1),
	}
}

// Start launches the trigger loop. It returns immediately; the loop stops
// when ctx is cancelled.
func (r *Runner) Start(ctx context.Context) {
	go r.loop(ctx)
}

// TriggerNow requests an immediate sync pass, e.g. right after the UI
// enqueued a new submission. Non-blocking; coalesces with a pending trigger.
func (r *Runner) TriggerNow() {
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

// Pause suspends sync passes until Resume. A pass already in flight finishes.
func (r *Runner) Pause() { atomic.StoreInt32(&r.paused, 1) }

// Resume re-enables sync passes.
func (r *Runner) Resume() { atomic.StoreInt32(&r.paused, 0) }

func (r *Runner) loop(ctx context.Context) {
	backoff := r.config.BackoffMin
	for {
		if atomic.LoadInt32(&r.paused) == 0 {
			result := r.runOnce(ctx)
			if ctx.Err() != nil {
				return
			}
			if result == RetryLater {
				// Exponential backoff until the network comes back.
				if err := sleepWithContext(ctx, backoff); err != nil {
					return
				}
				backoff = backoff * 2
				if backoff > r.config.BackoffMax {
					backoff = r.config.BackoffMax
				}
				continue
			}
			backoff = r.config.BackoffMin
		}

		select {
		case <-ctx.Done():
			return
		case <-r.kick:
		case <-time.After(r.config.Interval):
		}
	}
}

// runOnce executes both jobs sequentially and folds their results.
func (r *Runner) runOnce(ctx context.Context) Result {
	result := Success

	if res, err := r.syncer.SyncSubmissions(ctx); err != nil {
		r.logger.Error("submission sync pass failed", "error", err)
		result = RetryLater
	} else if res == RetryLater {
		result = RetryLater
	}

	if res, err := r.syncer.SyncDisbursements(ctx); err != nil {
		r.logger.Error("disbursement sync pass failed", "error", err)
		result = RetryLater
	} else if res == RetryLater {
		result = RetryLater
	}

	return result
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
