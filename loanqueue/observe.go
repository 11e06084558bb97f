// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package loanqueue

import (
	"context"
)

// ObserveSubmissions returns a live feed of the full application queue for
// display. The channel receives the current newest-first row set immediately
// and again after every store write, so a subscriber always converges on a
// consistent snapshot. The feed closes when ctx is cancelled. Each call is an
// independent, restartable subscription.
func (s *Store) ObserveSubmissions(ctx context.Context) <-chan []PendingSubmission {
	out := make(chan []PendingSubmission, 1)
	observeQuery(ctx, s, out, s.AllSubmissions)
	return out
}

// ObserveDisbursements returns a live feed of the disbursement queue.
func (s *Store) ObserveDisbursements(ctx context.Context) <-chan []PendingDisbursement {
	out := make(chan []PendingDisbursement, 1)
	observeQuery(ctx, s, out, s.AllDisbursements)
	return out
}

func observeQuery[T any](ctx context.Context, s *Store, out chan []T, query func(context.Context) ([]T, error)) {
	notify := make(chan struct{}, 1)
	s.subMu.Lock()
	s.subs[notify] = struct{}{}
	s.subMu.Unlock()

	go func() {
		defer func() {
			s.subMu.Lock()
			delete(s.subs, notify)
			s.subMu.Unlock()
			close(out)
		}()

		for {
			rows, err := query(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.Error("live query failed", "error", err)
			} else {
				// Replace a stale unread snapshot instead of blocking the writer.
				select {
				case out <- rows:
				default:
					select {
					case <-out:
					default:
					}
					out <- rows
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-notify:
			}
		}
	}()
}

// notifySubscribers wakes every live-query subscriber after a completed write.
func (s *Store) notifySubscribers() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for notify := range s.subs {
		select {
		case notify <- struct{}{}:
		default:
		}
	}
}
