package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"fswatchd/internal/daemon"
	"fswatchd/internal/eventmap"
	"fswatchd/internal/fsevent"
	"fswatchd/internal/history"
	"fswatchd/internal/scheduler"
	"fswatchd/internal/watch"
)

func testDaemon(t *testing.T) *daemon.Daemon {
	t.Helper()
	dir := t.TempDir()
	s := scheduler.New(func(ctx context.Context, e fsevent.Event, taskID string) error { return nil },
		scheduler.WithLogName("test"))
	em := eventmap.New(map[string]any{"IN_CLOSE_WRITE": scheduler.Scheduler(s)}, nil, nil)
	w, err := watch.New(watch.Options{Path: dir}, em)
	if err != nil {
		t.Fatal(err)
	}
	d := daemon.New([]*watch.Watch{w}, time.Second)
	if err := d.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(d.Shutdown)
	return d
}

func TestHealthzReturns200(t *testing.T) {
	srv := NewServer("127.0.0.1:0", testDaemon(t), nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestStatusReflectsDaemonState(t *testing.T) {
	srv := NewServer("127.0.0.1:0", testDaemon(t), nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Running    bool `json:"running"`
		Watches    int  `json:"watches"`
		Schedulers []struct {
			Name string `json:"name"`
		} `json:"schedulers"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !body.Running {
		t.Error("expected running true")
	}
	if body.Watches != 1 {
		t.Errorf("expected 1 watch, got %d", body.Watches)
	}
	if len(body.Schedulers) != 1 || body.Schedulers[0].Name != "test" {
		t.Errorf("expected scheduler 'test' in status, got %+v", body.Schedulers)
	}
}

func TestHistoryEmptyWhenDisabled(t *testing.T) {
	srv := NewServer("127.0.0.1:0", testDaemon(t), nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/history", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Executions []history.TaskExecution `json:"executions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Executions == nil || len(body.Executions) != 0 {
		t.Errorf("expected an empty executions list, got %+v", body.Executions)
	}
}

func TestHistoryReturnsRecordedRows(t *testing.T) {
	store, err := history.Open(filepath.Join(t.TempDir(), "h.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	store.Record("t1", "shell", "finished", "IN_CLOSE_WRITE", "/tmp/a", "", "")

	srv := NewServer("127.0.0.1:0", testDaemon(t), store, nil)

	req := httptest.NewRequest(http.MethodGet, "/history?limit=5", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	var body struct {
		Executions []history.TaskExecution `json:"executions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(body.Executions) != 1 {
		t.Fatalf("expected 1 recorded execution, got %d", len(body.Executions))
	}
}

func TestReloadWithoutHandlerReturns503(t *testing.T) {
	srv := NewServer("127.0.0.1:0", testDaemon(t), nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/reload", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when no reload function is configured, got %d", rec.Code)
	}
}

func TestReloadInvokesReloadFunc(t *testing.T) {
	called := false
	reload := func() error { called = true; return nil }

	srv := NewServer("127.0.0.1:0", testDaemon(t), nil, reload)

	req := httptest.NewRequest(http.MethodPost, "/reload", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !called {
		t.Fatal("expected the reload function to be invoked")
	}
}

func TestRequestIDHeaderIsSet(t *testing.T) {
	srv := NewServer("127.0.0.1:0", testDaemon(t), nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected X-Request-ID header to be set")
	}
}
