package testkit

import (
	"context"
	"sync"

	"github.com/louisbranch/orderflow/internal/domain/entity"
	"github.com/louisbranch/orderflow/internal/domain/event"
)

// SpyAction records action invocations, counting the triggering (I/O) branch
// separately from historical fast-forward invocations.
type SpyAction struct {
	mu sync.Mutex
	// Err, when set, is returned from triggering executions.
	Err error
	// HistoricalErr, when set, is returned from non-triggering executions.
	HistoricalErr error
	// OnTrigger, when set, runs in place of the default triggering behavior.
	OnTrigger func(ctx context.Context, snapshot entity.Aggregate, evt event.Event) (entity.Aggregate, error)

	triggered  int
	historical int
	seen       []event.Event
}

// Execute implements machine.Action.
func (s *SpyAction) Execute(ctx context.Context, snapshot entity.Aggregate, evt event.Event, triggering bool) (entity.Aggregate, error) {
	s.mu.Lock()
	s.seen = append(s.seen, evt)
	if !triggering {
		s.historical++
		err := s.HistoricalErr
		s.mu.Unlock()
		return snapshot, err
	}
	s.triggered++
	onTrigger := s.OnTrigger
	err := s.Err
	s.mu.Unlock()

	if err != nil {
		return snapshot, err
	}
	if onTrigger != nil {
		return onTrigger(ctx, snapshot, evt)
	}
	return snapshot, nil
}

// Triggered returns the number of triggering executions.
func (s *SpyAction) Triggered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.triggered
}

// Historical returns the number of non-triggering executions.
func (s *SpyAction) Historical() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.historical
}

// Seen returns every event the action was invoked with, in order.
func (s *SpyAction) Seen() []event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event.Event(nil), s.seen...)
}
