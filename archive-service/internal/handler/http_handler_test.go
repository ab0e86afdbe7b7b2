package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/artisans-live/archive-service/internal/domain"
)

type fakeReader struct {
	events map[string][]*domain.Event
	err    error
}

func (f *fakeReader) EventsFor(ctx context.Context, entityType string, entityID int64) ([]*domain.Event, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.events[entityType], nil
}

func serve(t *testing.T, reader EventReader, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	router := mux.NewRouter()
	NewHTTPHandler(reader).RegisterRoutes(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestGetEvents(t *testing.T) {
	reader := &fakeReader{events: map[string][]*domain.Event{
		"bid": {
			{ID: "01J0000000000000000000000A", Type: "bid.created", EntityType: "bid", EntityID: 7},
			{ID: "01J0000000000000000000000B", Type: "bid.accepted", EntityType: "bid", EntityID: 7},
		},
	}}

	rec := serve(t, reader, http.MethodGet, "/api/v1/events/bid/7")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		EntityType string         `json:"entity_type"`
		EntityID   int64          `json:"entity_id"`
		Events     []domain.Event `json:"events"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "bid", body.EntityType)
	assert.Equal(t, int64(7), body.EntityID)
	require.Len(t, body.Events, 2)
	assert.Equal(t, "bid.accepted", body.Events[1].Type)
}

func TestGetEventsEmptyIsArray(t *testing.T) {
	rec := serve(t, &fakeReader{}, http.MethodGet, "/api/v1/events/message/3")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"entity_type":"message","entity_id":3,"events":[]}`, rec.Body.String())
}

func TestGetEventsErrors(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, serve(t, &fakeReader{}, http.MethodGet, "/api/v1/events/bid/zero").Code)
	assert.Equal(t, http.StatusBadRequest, serve(t, &fakeReader{}, http.MethodGet, "/api/v1/events/bid/-1").Code)

	failing := &fakeReader{err: errors.New("cassandra down")}
	assert.Equal(t, http.StatusInternalServerError, serve(t, failing, http.MethodGet, "/api/v1/events/bid/1").Code)

	assert.Equal(t, http.StatusMethodNotAllowed, serve(t, &fakeReader{}, http.MethodPost, "/api/v1/events/bid/1").Code)
}

func TestHealth(t *testing.T) {
	rec := serve(t, &fakeReader{}, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}
