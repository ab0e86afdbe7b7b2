package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/weiawesome/artisans-live/archive-service/internal/domain"
	"github.com/weiawesome/artisans-live/pkg/log"
)

// EventReader reads archived events of one entity.
type EventReader interface {
	EventsFor(ctx context.Context, entityType string, entityID int64) ([]*domain.Event, error)
}

type HTTPHandler struct {
	reader EventReader
}

func NewHTTPHandler(reader EventReader) *HTTPHandler {
	return &HTTPHandler{reader: reader}
}

type eventsResponse struct {
	EntityType string          `json:"entity_type"`
	EntityID   int64           `json:"entity_id"`
	Events     []*domain.Event `json:"events"`
}

// GetEvents handles GET /api/v1/events/{entity_type}/{entity_id}
func (h *HTTPHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	entityType := vars["entity_type"]

	entityID, err := strconv.ParseInt(vars["entity_id"], 10, 64)
	if err != nil || entityID <= 0 {
		http.Error(w, "entity_id must be a positive integer", http.StatusBadRequest)
		return
	}

	events, err := h.reader.EventsFor(r.Context(), entityType, entityID)
	if err != nil {
		l := log.Ctx(r.Context())
		l.Error().Err(err).Str("entity_type", entityType).Int64("entity_id", entityID).Msg("failed to read events")
		http.Error(w, "failed to read events", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []*domain.Event{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(eventsResponse{
		EntityType: entityType,
		EntityID:   entityID,
		Events:     events,
	})
}

// HealthCheck handles GET /health
func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *HTTPHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	router.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/events/{entity_type}/{entity_id}", h.GetEvents).Methods(http.MethodGet)
}
