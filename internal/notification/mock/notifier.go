// Package mock provides an in-memory notifier for tests.
package mock

import (
	"context"
	"sync"

	"github.com/aiodarr/aiodarr/internal/notification"
)

// Notifier records every event it receives.
type Notifier struct {
	mu        sync.Mutex
	successes []notification.SuccessEvent
	pending   []notification.FailureEvent
	batches   [][]notification.FailureEvent
}

// New creates an empty recording notifier.
func New() *Notifier {
	return &Notifier{}
}

func (n *Notifier) NotifySuccess(_ context.Context, event notification.SuccessEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes = append(n.successes, event)
}

func (n *Notifier) CollectFailure(event notification.FailureEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pending = append(n.pending, event)
}

func (n *Notifier) Flush(context.Context) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.batches = append(n.batches, n.pending)
	n.pending = nil
}

// Successes returns the success events received so far.
func (n *Notifier) Successes() []notification.SuccessEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification.SuccessEvent(nil), n.successes...)
}

// Pending returns failures collected since the last flush.
func (n *Notifier) Pending() []notification.FailureEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification.FailureEvent(nil), n.pending...)
}

// Batches returns one slice of failures per Flush call.
func (n *Notifier) Batches() [][]notification.FailureEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([][]notification.FailureEvent(nil), n.batches...)
}
