package retrievers

import (
	"encoding/json"
	"net/http"

	"github.com/kilianp07/retrieverd/core/retrieverstatus"
)

// NewStatusHandler returns an HTTP handler exposing retriever status data via GET /api/retrievers/status.
func NewStatusHandler(store retrieverstatus.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		f := retrieverstatus.Filter{State: r.URL.Query().Get("state")}
		entries := store.List(f)
		if entries == nil {
			entries = []retrieverstatus.Status{}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(entries); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}
