package log

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &m))
	return m
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("loud"))
}

func TestNewCarriesServiceName(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "info", ServiceName: "collab-service", Output: &buf})

	l.Debug().Msg("hidden")
	assert.Zero(t, buf.Len())

	l.Info().Msg("visible")
	line := lastLine(t, &buf)
	assert.Equal(t, "collab-service", line[FieldService])
	assert.Equal(t, "visible", line["message"])
}

func TestCtxCarriesUser(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Output: &buf})

	ctx := WithUser(WithLogger(context.Background(), base), 42, "alice")
	l := Ctx(ctx)
	l.Info().Msg("hello")

	line := lastLine(t, &buf)
	assert.Equal(t, float64(42), line[FieldUserID])
	assert.Equal(t, "alice", line[FieldUsername])

}

func TestHTTPMiddlewareSetsRequestID(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Output: &buf})

	h := HTTPMiddleware(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := Ctx(r.Context())
		l.Info().Msg("inside")
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(headerRequestID, "req-1")
	h.ServeHTTP(rec, req)

	assert.Equal(t, "req-1", rec.Header().Get(headerRequestID))
	line := lastLine(t, &buf)
	assert.Equal(t, "req-1", line[FieldRequestID])
	assert.Equal(t, float64(http.StatusTeapot), line[FieldStatus])
	assert.Equal(t, "/health", line[FieldPath])
}
