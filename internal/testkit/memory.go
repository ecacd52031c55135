// Package testkit provides in-memory fakes for engine and workflow tests.
package testkit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/louisbranch/orderflow/internal/domain/entity"
	"github.com/louisbranch/orderflow/internal/domain/event"
	"github.com/louisbranch/orderflow/internal/storage"
)

// EventStore is an in-memory storage.EventStore. Appended events receive
// sequential IDs and strictly increasing timestamps so replay order is
// stable in tests.
type EventStore struct {
	mu     sync.Mutex
	events []event.Event
	nextID int
	now    time.Time
}

// NewEventStore creates an empty in-memory event store.
func NewEventStore() *EventStore {
	return &EventStore{
		now: time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC),
	}
}

// Append implements storage.EventStore.
func (s *EventStore) Append(_ context.Context, evt event.Event) (event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	s.now = s.now.Add(time.Second)
	if evt.ID == "" {
		evt.ID = fmt.Sprintf("evt-%04d", s.nextID)
	}
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = s.now
	}
	s.events = append(s.events, evt)
	return evt, nil
}

// ListByEntity implements storage.EventStore.
func (s *EventStore) ListByEntity(_ context.Context, ref entity.Ref) ([]event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var log []event.Event
	for _, evt := range s.events {
		if evt.Entity == ref {
			log = append(log, evt)
		}
	}
	event.SortLog(log)
	return log, nil
}

// Seed stores events verbatim, preserving caller-assigned IDs and timestamps.
func (s *EventStore) Seed(events ...event.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
}

// All returns every stored event in append order.
func (s *EventStore) All() []event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event.Event(nil), s.events...)
}

// ByType returns appended events matching the given type, in append order.
func (s *EventStore) ByType(eventType event.Type) []event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []event.Event
	for _, evt := range s.events {
		if evt.Type == eventType {
			matched = append(matched, evt)
		}
	}
	return matched
}

// EntityStore is an in-memory storage.EntityStore.
type EntityStore struct {
	mu      sync.Mutex
	records map[entity.Ref]entity.Aggregate
	// Updates counts Update calls, for asserting write behavior.
	updates int
}

// NewEntityStore creates an empty in-memory entity store.
func NewEntityStore() *EntityStore {
	return &EntityStore{records: make(map[entity.Ref]entity.Aggregate)}
}

// Get implements storage.EntityStore.
func (s *EntityStore) Get(_ context.Context, ref entity.Ref) (entity.Aggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	agg, ok := s.records[ref]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return agg, nil
}

// Put implements storage.EntityStore.
func (s *EntityStore) Put(_ context.Context, agg entity.Aggregate) (entity.Aggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[agg.Ref()] = agg
	return agg, nil
}

// Update implements storage.EntityStore.
func (s *EntityStore) Update(_ context.Context, agg entity.Aggregate) (entity.Aggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[agg.Ref()]; !ok {
		return nil, storage.ErrNotFound
	}
	s.updates++
	s.records[agg.Ref()] = agg
	return agg, nil
}

// Exists implements storage.EntityStore.
func (s *EntityStore) Exists(_ context.Context, ref entity.Ref) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.records[ref]
	return ok, nil
}

// UpdateCount returns the number of Update calls.
func (s *EntityStore) UpdateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updates
}

// StatusCache is an in-memory storage.StatusCache.
type StatusCache struct {
	mu      sync.Mutex
	entries map[entity.Ref]storage.StatusEntry
}

// NewStatusCache creates an empty in-memory status cache.
func NewStatusCache() *StatusCache {
	return &StatusCache{entries: make(map[entity.Ref]storage.StatusEntry)}
}

// SetStatus implements storage.StatusCache.
func (c *StatusCache) SetStatus(_ context.Context, entry storage.StatusEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entry.Ref] = entry
	return nil
}

// GetStatus implements storage.StatusCache.
func (c *StatusCache) GetStatus(_ context.Context, ref entity.Ref) (storage.StatusEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[ref]
	if !ok {
		return storage.StatusEntry{}, storage.ErrNotFound
	}
	return entry, nil
}
