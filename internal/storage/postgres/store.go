// Package postgres provides pgx-backed event and entity stores for
// deployments that outgrow the embedded SQLite storage.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/louisbranch/orderflow/internal/domain/codec"
	"github.com/louisbranch/orderflow/internal/domain/entity"
	"github.com/louisbranch/orderflow/internal/domain/event"
	"github.com/louisbranch/orderflow/internal/platform/id"
	"github.com/louisbranch/orderflow/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
    id TEXT PRIMARY KEY,
    entity_kind TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    event_type TEXT NOT NULL,
    annotations JSONB NOT NULL DEFAULT '{}',
    created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_entity
    ON events (entity_kind, entity_id, created_at, id);

CREATE TABLE IF NOT EXISTS entities (
    entity_kind TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    status TEXT NOT NULL,
    payload JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (entity_kind, entity_id)
);
`

// Store persists aggregate logs and snapshots in PostgreSQL. It implements
// both storage.EventStore and storage.EntityStore.
type Store struct {
	pool *pgxpool.Pool

	now   func() time.Time
	newID func() (string, error)
}

// Open connects a pgx pool and ensures the schema exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Store{pool: pool, now: time.Now, newID: id.NewID}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Append implements storage.EventStore. ID and CreatedAt are assigned when
// the caller leaves them empty.
func (s *Store) Append(ctx context.Context, evt event.Event) (event.Event, error) {
	if s == nil || s.pool == nil {
		return event.Event{}, fmt.Errorf("storage is not configured")
	}
	if err := evt.Entity.Validate(); err != nil {
		return event.Event{}, err
	}
	if !evt.Type.IsValid() {
		return event.Event{}, fmt.Errorf("event type is required")
	}
	if evt.ID == "" {
		eventID, err := s.newID()
		if err != nil {
			return event.Event{}, fmt.Errorf("generate event id: %w", err)
		}
		evt.ID = eventID
	}
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = s.now().UTC()
	}

	annotations := []byte("{}")
	if len(evt.Annotations) > 0 {
		encoded, err := json.Marshal(evt.Annotations)
		if err != nil {
			return event.Event{}, fmt.Errorf("marshal annotations: %w", err)
		}
		annotations = encoded
	}

	_, err := s.pool.Exec(
		ctx,
		`INSERT INTO events (id, entity_kind, entity_id, event_type, annotations, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		evt.ID,
		string(evt.Entity.Kind),
		evt.Entity.ID,
		string(evt.Type),
		annotations,
		evt.CreatedAt.UTC(),
	)
	if err != nil {
		return event.Event{}, fmt.Errorf("append event %s: %w", evt.ID, err)
	}
	return evt, nil
}

// ListByEntity implements storage.EventStore in replay order.
func (s *Store) ListByEntity(ctx context.Context, ref entity.Ref) ([]event.Event, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if err := ref.Validate(); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(
		ctx,
		`SELECT id, event_type, annotations, created_at
		 FROM events
		 WHERE entity_kind = $1 AND entity_id = $2
		 ORDER BY created_at ASC, id ASC`,
		string(ref.Kind),
		ref.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("list events for %s: %w", ref, err)
	}
	defer rows.Close()

	var log []event.Event
	for rows.Next() {
		var (
			evt         event.Event
			eventType   string
			annotations []byte
			createdAt   time.Time
		)
		if err := rows.Scan(&evt.ID, &eventType, &annotations, &createdAt); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		evt.Type = event.Type(eventType)
		evt.Entity = ref
		evt.CreatedAt = createdAt.UTC()
		if len(annotations) > 0 && string(annotations) != "{}" {
			if err := json.Unmarshal(annotations, &evt.Annotations); err != nil {
				return nil, fmt.Errorf("unmarshal annotations for %s: %w", evt.ID, err)
			}
		}
		log = append(log, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}
	return log, nil
}

// Get implements storage.EntityStore.
func (s *Store) Get(ctx context.Context, ref entity.Ref) (entity.Aggregate, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if err := ref.Validate(); err != nil {
		return nil, err
	}

	var payload []byte
	err := s.pool.QueryRow(
		ctx,
		`SELECT payload FROM entities WHERE entity_kind = $1 AND entity_id = $2`,
		string(ref.Kind),
		ref.ID,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get entity %s: %w", ref, err)
	}
	return codec.Decode(ref.Kind, payload)
}

// Put implements storage.EntityStore as an upsert.
func (s *Store) Put(ctx context.Context, agg entity.Aggregate) (entity.Aggregate, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	payload, err := codec.Encode(agg)
	if err != nil {
		return nil, err
	}
	ref := agg.Ref()
	now := s.now().UTC()
	_, err = s.pool.Exec(
		ctx,
		`INSERT INTO entities (entity_kind, entity_id, status, payload, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $5)
		 ON CONFLICT (entity_kind, entity_id) DO UPDATE SET
		   status = EXCLUDED.status,
		   payload = EXCLUDED.payload,
		   updated_at = EXCLUDED.updated_at`,
		string(ref.Kind),
		ref.ID,
		agg.StatusValue(),
		payload,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("put entity %s: %w", ref, err)
	}
	return agg, nil
}

// Update implements storage.EntityStore. The row must already exist.
func (s *Store) Update(ctx context.Context, agg entity.Aggregate) (entity.Aggregate, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	payload, err := codec.Encode(agg)
	if err != nil {
		return nil, err
	}
	ref := agg.Ref()
	tag, err := s.pool.Exec(
		ctx,
		`UPDATE entities SET status = $1, payload = $2, updated_at = $3
		 WHERE entity_kind = $4 AND entity_id = $5`,
		agg.StatusValue(),
		payload,
		s.now().UTC(),
		string(ref.Kind),
		ref.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update entity %s: %w", ref, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, storage.ErrNotFound
	}
	return agg, nil
}

// Exists implements storage.EntityStore.
func (s *Store) Exists(ctx context.Context, ref entity.Ref) (bool, error) {
	if s == nil || s.pool == nil {
		return false, fmt.Errorf("storage is not configured")
	}
	if err := ref.Validate(); err != nil {
		return false, err
	}

	var found int
	err := s.pool.QueryRow(
		ctx,
		`SELECT 1 FROM entities WHERE entity_kind = $1 AND entity_id = $2`,
		string(ref.Kind),
		ref.ID,
	).Scan(&found)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check entity %s: %w", ref, err)
	}
	return true, nil
}
