// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

// Package appevent provides an injected publish/subscribe bus for app-wide
// notifications (session expiry, sync outcomes). It replaces the idea of a
// process-wide singleton: a composition root owns the Bus and hands it to
// the components that publish or subscribe, and every subscription has an
// explicit cancel.
package appevent

import (
	"sync"
	"time"
)

// Type identifies what happened.
type Type string

const (
	TypeSessionExpired      Type = "session_expired"
	TypeSyncSucceeded       Type = "sync_succeeded"
	TypeSyncRetryScheduled  Type = "sync_retry_scheduled"
	TypeSubmissionFailed    Type = "submission_failed"
	TypeSubmissionConfirmed Type = "submission_confirmed"
)

// Event is a single broadcast notification.
type Event struct {
	Type    Type
	Message string
	At      time.Time
}

// Bus is a small fan-out broadcaster. Publish never blocks: a subscriber
// that stops draining loses events rather than stalling the publisher.
type Bus struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a new subscriber. The returned cancel func must be
// called when the subscriber goes away; it closes the channel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish broadcasts an event to all current subscribers.
func (b *Bus) Publish(evt Event) {
	if evt.At.IsZero() {
		evt.At = time.Now()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}
