// Package status serves a small HTTP surface while a cycle runs. Rate-limit
// backoffs can stretch a cycle past several minutes, so operators get a
// progress endpoint and a metrics scrape target for the duration.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/smenon/traffic-collector/internal/observability"
)

// Tracker holds the running cycle's progress counters.
type Tracker struct {
	mu        sync.Mutex
	cycleID   string
	startedAt time.Time
	completed int
	succeeded int
	total     int
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Begin resets the tracker for a new cycle.
func (t *Tracker) Begin(cycleID string, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cycleID = cycleID
	t.startedAt = time.Now()
	t.completed = 0
	t.succeeded = 0
	t.total = total
}

// Update records running counts; wired to the collector's progress callback.
func (t *Tracker) Update(completed, succeeded, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completed = completed
	t.succeeded = succeeded
	t.total = total
}

// Snapshot is the JSON shape served by /healthz.
type Snapshot struct {
	Status        string `json:"status"`
	CycleID       string `json:"cycle_id,omitempty"`
	Completed     int    `json:"completed"`
	Succeeded     int    `json:"succeeded"`
	Total         int    `json:"total"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// Snapshot returns the current progress.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	state := "collecting"
	if t.total > 0 && t.completed == t.total {
		state = "finishing"
	}
	var uptime int64
	if !t.startedAt.IsZero() {
		uptime = int64(time.Since(t.startedAt).Seconds())
	}
	return Snapshot{
		Status:        state,
		CycleID:       t.cycleID,
		Completed:     t.completed,
		Succeeded:     t.succeeded,
		Total:         t.total,
		UptimeSeconds: uptime,
	}
}

// Server exposes /healthz and /metrics for the lifetime of a cycle.
type Server struct {
	srv    *http.Server
	logger *zap.Logger
}

// NewServer builds the server; Start actually listens.
func NewServer(addr string, tracker *Tracker, logger *zap.Logger) *Server {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(tracker.Snapshot())
	}).Methods("GET")
	r.Handle("/metrics", observability.Handler()).Methods("GET")

	return &Server{
		srv: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Start serves in the background. Listen failures are logged, not fatal: the
// cycle matters more than its observability side-car.
func (s *Server) Start() {
	go func() {
		s.logger.Info("status server listening", zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("status server stopped", zap.Error(err))
		}
	}()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) {
	if err := s.srv.Shutdown(ctx); err != nil {
		s.logger.Warn("status server shutdown", zap.Error(err))
	}
}
