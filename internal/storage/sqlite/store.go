// Package sqlite provides SQLite-backed event and entity stores.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/louisbranch/orderflow/internal/domain/codec"
	"github.com/louisbranch/orderflow/internal/domain/entity"
	"github.com/louisbranch/orderflow/internal/domain/event"
	"github.com/louisbranch/orderflow/internal/platform/id"
	sqlitemigrate "github.com/louisbranch/orderflow/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/orderflow/internal/storage"
	"github.com/louisbranch/orderflow/internal/storage/sqlite/migrations"
)

// Store persists aggregate logs and snapshots in SQLite. It implements both
// storage.EventStore and storage.EntityStore.
type Store struct {
	sqlDB *sql.DB

	now   func() time.Time
	newID func() (string, error)
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now, newID: id.NewID}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Append implements storage.EventStore. ID and CreatedAt are assigned when
// the caller leaves them empty.
func (s *Store) Append(ctx context.Context, evt event.Event) (event.Event, error) {
	if err := ctx.Err(); err != nil {
		return event.Event{}, err
	}
	if s == nil || s.sqlDB == nil {
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

	annotations := "{}"
	if len(evt.Annotations) > 0 {
		encoded, err := json.Marshal(evt.Annotations)
		if err != nil {
			return event.Event{}, fmt.Errorf("marshal annotations: %w", err)
		}
		annotations = string(encoded)
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO events (id, entity_kind, entity_id, event_type, annotations, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		evt.ID,
		string(evt.Entity.Kind),
		evt.Entity.ID,
		string(evt.Type),
		annotations,
		toMillis(evt.CreatedAt),
	)
	if err != nil {
		return event.Event{}, fmt.Errorf("append event %s: %w", evt.ID, err)
	}
	return evt, nil
}

// ListByEntity implements storage.EventStore. Events return in replay
// order: created_at ascending with ties broken by id.
func (s *Store) ListByEntity(ctx context.Context, ref entity.Ref) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if err := ref.Validate(); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, event_type, annotations, created_at
		 FROM events
		 WHERE entity_kind = ? AND entity_id = ?
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
			annotations string
			createdAt   int64
		)
		if err := rows.Scan(&evt.ID, &eventType, &annotations, &createdAt); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		evt.Type = event.Type(eventType)
		evt.Entity = ref
		evt.CreatedAt = fromMillis(createdAt)
		if annotations != "" && annotations != "{}" {
			if err := json.Unmarshal([]byte(annotations), &evt.Annotations); err != nil {
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
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if err := ref.Validate(); err != nil {
		return nil, err
	}

	var payload string
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT payload FROM entities WHERE entity_kind = ? AND entity_id = ?`,
		string(ref.Kind),
		ref.ID,
	)
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get entity %s: %w", ref, err)
	}
	return codec.Decode(ref.Kind, []byte(payload))
}

// Put implements storage.EntityStore as an upsert.
func (s *Store) Put(ctx context.Context, agg entity.Aggregate) (entity.Aggregate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	payload, err := codec.Encode(agg)
	if err != nil {
		return nil, err
	}
	ref := agg.Ref()
	nowMillis := toMillis(s.now())
	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO entities (entity_kind, entity_id, status, payload, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (entity_kind, entity_id) DO UPDATE SET
		   status = excluded.status,
		   payload = excluded.payload,
		   updated_at = excluded.updated_at`,
		string(ref.Kind),
		ref.ID,
		agg.StatusValue(),
		string(payload),
		nowMillis,
		nowMillis,
	)
	if err != nil {
		return nil, fmt.Errorf("put entity %s: %w", ref, err)
	}
	return agg, nil
}

// Update implements storage.EntityStore. The row must already exist.
func (s *Store) Update(ctx context.Context, agg entity.Aggregate) (entity.Aggregate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	payload, err := codec.Encode(agg)
	if err != nil {
		return nil, err
	}
	ref := agg.Ref()
	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE entities SET status = ?, payload = ?, updated_at = ?
		 WHERE entity_kind = ? AND entity_id = ?`,
		agg.StatusValue(),
		string(payload),
		toMillis(s.now()),
		string(ref.Kind),
		ref.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update entity %s: %w", ref, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update entity %s: %w", ref, err)
	}
	if affected == 0 {
		return nil, storage.ErrNotFound
	}
	return agg, nil
}

// Exists implements storage.EntityStore.
func (s *Store) Exists(ctx context.Context, ref entity.Ref) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s == nil || s.sqlDB == nil {
		return false, fmt.Errorf("storage is not configured")
	}
	if err := ref.Validate(); err != nil {
		return false, err
	}

	var found int
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT 1 FROM entities WHERE entity_kind = ? AND entity_id = ?`,
		string(ref.Kind),
		ref.ID,
	)
	if err := row.Scan(&found); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check entity %s: %w", ref, err)
	}
	return true, nil
}
