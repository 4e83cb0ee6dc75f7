package test

import (
	"context"
	"sync"

	"github.com/go-petr/carmarket-wallet/internal/domain"
)

// Recorder is a publisher that keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

// Publish records the events.
func (r *Recorder) Publish(_ context.Context, events ...domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, events...)
}

// Events returns the recorded events.
func (r *Recorder) Events() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]domain.Event(nil), r.events...)
}

// Kinds returns the kinds of the recorded events in publishing order.
func (r *Recorder) Kinds() []domain.EventKind {
	events := r.Events()
	kinds := make([]domain.EventKind, len(events))

	for i, e := range events {
		kinds[i] = e.Kind
	}

	return kinds
}
