package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/retrieverd/core/dispatch/logging"
)

type failingStore struct{}

func (failingStore) Append(context.Context, logging.LogRecord) error { return nil }
func (failingStore) Query(context.Context, logging.LogQuery) ([]logging.LogRecord, error) {
	return nil, errors.New("disk gone")
}
func (failingStore) Close() error { return nil }

func seedStore(t *testing.T) logging.LogStore {
	t.Helper()
	store, err := logging.NewJSONLStore(filepath.Join(t.TempDir(), "decisions.jsonl"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	base := time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)
	recs := []logging.LogRecord{
		{Timestamp: base, FreeSlots: 2, Hired: "R-01", Priority: 1},
		{Timestamp: base.Add(time.Minute), FreeSlots: 1, Collected: []logging.Collect{{Slot: 0, Name: "R-01"}}},
		{Timestamp: base.Add(2 * time.Minute), FreeSlots: 1, Hired: "R-02", Priority: 2},
	}
	for _, r := range recs {
		require.NoError(t, store.Append(context.Background(), r))
	}
	return store
}

func get(t *testing.T, h http.Handler, url, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) []logging.LogRecord {
	t.Helper()
	var out []logging.LogRecord
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&out))
	return out
}

func TestLogHandler_Auth(t *testing.T) {
	h := NewLogHandler(seedStore(t), "secret")
	assert.Equal(t, http.StatusUnauthorized, get(t, h, "/api/dispatch/logs", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(t, h, "/api/dispatch/logs", "wrong").Code)
	assert.Equal(t, http.StatusUnauthorized, get(t, h, "/api/dispatch/logs", "secre").Code)
	assert.Equal(t, http.StatusUnauthorized, get(t, h, "/api/dispatch/logs", "secret2").Code)
	rr := get(t, h, "/api/dispatch/logs", "secret")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Len(t, decode(t, rr), 3)
}

func TestLogHandler_Filters(t *testing.T) {
	h := NewLogHandler(seedStore(t), "")
	tests := []struct {
		query string
		want  int
	}{
		{"", 3},
		{"?retriever=R-01", 2},
		{"?hired_only=true", 2},
		{"?retriever=R-01&hired_only=1", 1},
		{"?start=2024-04-01T08:01:00Z", 2},
		{"?end=2024-04-01T08:00:30Z", 1},
		{"?retriever=ACE%20R-02", 0},
	}
	for _, tt := range tests {
		rr := get(t, h, "/api/dispatch/logs"+tt.query, "")
		require.Equal(t, http.StatusOK, rr.Code, tt.query)
		assert.Len(t, decode(t, rr), tt.want, tt.query)
	}
}

func TestLogHandler_BadRequest(t *testing.T) {
	h := NewLogHandler(seedStore(t), "")
	for _, q := range []string{"?start=yesterday", "?end=1", "?hired_only=maybe"} {
		assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/dispatch/logs"+q, "").Code, q)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/dispatch/logs", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestLogHandler_StoreError(t *testing.T) {
	h := NewLogHandler(failingStore{}, "")
	assert.Equal(t, http.StatusInternalServerError, get(t, h, "/api/dispatch/logs", "").Code)
}
