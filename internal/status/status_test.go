package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestTracker_Snapshot(t *testing.T) {
	tr := NewTracker()
	tr.Begin("cycle-1", 3)

	snap := tr.Snapshot()
	if snap.Status != "collecting" || snap.Completed != 0 || snap.Total != 3 {
		t.Errorf("initial snapshot = %+v", snap)
	}

	tr.Update(2, 1, 3)
	snap = tr.Snapshot()
	if snap.Completed != 2 || snap.Succeeded != 1 {
		t.Errorf("snapshot after update = %+v", snap)
	}

	tr.Update(3, 2, 3)
	if got := tr.Snapshot().Status; got != "finishing" {
		t.Errorf("status = %q, want finishing when all routes done", got)
	}
}

func TestTracker_BeginResets(t *testing.T) {
	tr := NewTracker()
	tr.Begin("cycle-1", 3)
	tr.Update(3, 3, 3)

	tr.Begin("cycle-2", 5)
	snap := tr.Snapshot()
	if snap.CycleID != "cycle-2" || snap.Completed != 0 || snap.Total != 5 {
		t.Errorf("snapshot after Begin = %+v", snap)
	}
}

func TestServer_Healthz(t *testing.T) {
	tr := NewTracker()
	tr.Begin("cycle-abc", 4)
	tr.Update(1, 1, 4)

	s := NewServer(":0", tr, zap.NewNop())
	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var snap Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if snap.CycleID != "cycle-abc" || snap.Completed != 1 || snap.Total != 4 {
		t.Errorf("healthz body = %+v", snap)
	}
}

func TestServer_Metrics(t *testing.T) {
	s := NewServer(":0", NewTracker(), zap.NewNop())
	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Error("metrics body is empty")
	}
}

func TestServer_MethodNotAllowed(t *testing.T) {
	s := NewServer(":0", NewTracker(), zap.NewNop())
	req := httptest.NewRequest("POST", "/healthz", nil)
	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}
