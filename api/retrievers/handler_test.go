package retrievers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/retrieverd/core/retrieverstatus"
)

func TestStatusHandler(t *testing.T) {
	store := retrieverstatus.NewMemoryStore()
	now := time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)
	store.RecordHire("R-01", 1, now)
	store.RecordHire("R-02", 2, now)
	store.RecordCollect("R-02", now.Add(time.Minute))

	h := NewStatusHandler(store)
	req := httptest.NewRequest(http.MethodGet, "/api/retrievers/status?state=running", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var out []retrieverstatus.Status
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&out))
	require.Len(t, out, 1)
	assert.Equal(t, "R-01", out[0].Retriever)
	assert.Equal(t, 1, out[0].Hires)
}

func TestStatusHandlerEmptyAndMethod(t *testing.T) {
	h := NewStatusHandler(retrieverstatus.NewMemoryStore())
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/retrievers/status", nil))
	assert.JSONEq(t, "[]", rr.Body.String())

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/retrievers/status", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
