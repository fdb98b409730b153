package statsapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/corepool/dispatch/internal/scheduler"
)

func testLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.Disabled)
}

func newTestScheduler(t *testing.T) *scheduler.Scheduler {
	t.Helper()
	s, err := scheduler.New(scheduler.Params{MinWorkers: 1, MaxWorkers: 2, MaxIdleInterval: time.Second}, testLogger())
	if err != nil {
		t.Fatalf("scheduler.New: %v", err)
	}
	s.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})
	return s
}

func TestRouter_StatsXML(t *testing.T) {
	r := NewRouter(newTestScheduler(t))

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `<stats id="sched">`) {
		t.Fatalf("expected the sched stats XML fragment, got %q", body)
	}
}

func TestRouter_StatsJSON(t *testing.T) {
	r := NewRouter(newTestScheduler(t))

	req := httptest.NewRequest(http.MethodGet, "/stats.json", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var snap scheduler.Stats
	if err := json.NewDecoder(w.Body).Decode(&snap); err != nil {
		t.Fatalf("decode json stats: %v", err)
	}
	if snap.Threads == 0 {
		t.Fatalf("expected at least one worker thread reported, got %+v", snap)
	}
}
