// Package admin exposes a small read-only HTTP surface for operators:
// health, derived aggregate status, and raw event logs.
package admin

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/louisbranch/orderflow/internal/domain/entity"
	"github.com/louisbranch/orderflow/internal/storage"
)

// Handler serves the admin routes.
type Handler struct {
	entities storage.EntityStore
	events   storage.EventStore
	cache    storage.StatusCache
}

// NewRouter builds the admin router. cache may be nil; status reads then
// come straight from the entity store.
func NewRouter(entities storage.EntityStore, events storage.EventStore, cache storage.StatusCache) http.Handler {
	h := &Handler{entities: entities, events: events, cache: cache}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.health)
	r.Route("/v1/aggregates/{kind}/{id}", func(r chi.Router) {
		r.Get("/", h.getAggregate)
		r.Get("/events", h.listEvents)
	})
	return r
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type aggregateResponse struct {
	Kind       string           `json:"kind"`
	ID         string           `json:"id"`
	Status     string           `json:"status"`
	Source     string           `json:"source"`
	ComputedAt *time.Time       `json:"computed_at,omitempty"`
	Snapshot   entity.Aggregate `json:"snapshot"`
}

func (h *Handler) getAggregate(w http.ResponseWriter, r *http.Request) {
	ref, ok := refFromRequest(w, r)
	if !ok {
		return
	}

	agg, err := h.entities.Get(r.Context(), ref)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "aggregate not found")
			return
		}
		log.Printf("get aggregate %s: %v", ref, err)
		writeError(w, http.StatusInternalServerError, "storage failure")
		return
	}

	response := aggregateResponse{
		Kind:     string(ref.Kind),
		ID:       ref.ID,
		Status:   agg.StatusValue(),
		Source:   "store",
		Snapshot: agg,
	}
	if h.cache != nil {
		if entry, err := h.cache.GetStatus(r.Context(), ref); err == nil {
			response.Status = entry.Status
			response.Source = "cache"
			computedAt := entry.ComputedAt
			response.ComputedAt = &computedAt
		}
	}
	writeJSON(w, http.StatusOK, response)
}

type eventResponse struct {
	ID          string            `json:"id"`
	Type        string            `json:"type"`
	CreatedAt   time.Time         `json:"created_at"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	ref, ok := refFromRequest(w, r)
	if !ok {
		return
	}

	history, err := h.events.ListByEntity(r.Context(), ref)
	if err != nil {
		log.Printf("list events %s: %v", ref, err)
		writeError(w, http.StatusInternalServerError, "storage failure")
		return
	}
	if len(history) == 0 {
		writeError(w, http.StatusNotFound, "aggregate has no events")
		return
	}

	events := make([]eventResponse, 0, len(history))
	for _, evt := range history {
		events = append(events, eventResponse{
			ID:          evt.ID,
			Type:        string(evt.Type),
			CreatedAt:   evt.CreatedAt,
			Annotations: evt.Annotations,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"kind":   string(ref.Kind),
		"id":     ref.ID,
		"events": events,
	})
}

func refFromRequest(w http.ResponseWriter, r *http.Request) (entity.Ref, bool) {
	ref := entity.Ref{
		Kind: entity.Kind(chi.URLParam(r, "kind")),
		ID:   chi.URLParam(r, "id"),
	}
	if err := ref.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return entity.Ref{}, false
	}
	return ref, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
