// Package statsapi exposes the scheduler's statistics over HTTP: a
// self-delimited XML fragment at GET /stats, plus a JSON rendering of the
// same snapshot at GET /stats.json for dashboards that prefer it.
package statsapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/corepool/dispatch/internal/scheduler"
)

// Source is the subset of *scheduler.Scheduler the stats HTTP surface needs.
// Kept narrow so the handler can be unit tested against a fake.
type Source interface {
	Stats(w io.Writer) (int, error)
	StatsSnapshot() scheduler.Stats
}

// Handler serves the scheduler's statistics snapshot.
type Handler struct {
	sched Source
}

// NewHandler builds a Handler backed by sched.
func NewHandler(sched Source) *Handler {
	return &Handler{sched: sched}
}

// ServeXML handles GET /stats: the self-delimited XML stats fragment.
func (h *Handler) ServeXML(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	if _, err := h.sched.Stats(w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// ServeJSON handles GET /stats.json: the same snapshot, JSON-encoded, for
// callers that would rather not parse XML.
func (h *Handler) ServeJSON(w http.ResponseWriter, r *http.Request) {
	snap := h.sched.StatsSnapshot()
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// NewRouter builds the stats router and registers both endpoints.
func NewRouter(sched Source) *mux.Router {
	r := mux.NewRouter()
	h := NewHandler(sched)
	r.HandleFunc("/stats", h.ServeXML).Methods(http.MethodGet)
	r.HandleFunc("/stats.json", h.ServeJSON).Methods(http.MethodGet)
	return r
}
