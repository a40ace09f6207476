package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
)

func TestHandlerExposesDomainCollectors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m.ObserveAutosave(ResultOK, 20*time.Millisecond)
	m.ObserveAutosave(ResultError, time.Millisecond)
	m.IncAutosaveCoalesced()
	m.IncRefine(ResultOK)
	m.SetEditorSessions(3)

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/metrics", m.Handler())

	// Prime the http histogram with one request.
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	body := resp.Body.String()
	for _, want := range []string{
		`vitaeforge_autosave_writes_total{result="ok"} 1`,
		`vitaeforge_autosave_writes_total{result="error"} 1`,
		`vitaeforge_autosave_coalesced_edits_total 1`,
		`vitaeforge_refine_calls_total{result="ok"} 1`,
		`vitaeforge_editor_open_sessions 3`,
		`vitaeforge_http_request_duration_seconds_count{method="GET",route="/metrics",status="200"}`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveAutosave(ResultOK, time.Second)
	m.IncRefine(ResultError)
	m.SetEditorSessions(1)
	if m.Registry() != nil {
		t.Fatalf("expected nil registry")
	}
}

func TestWatchDBExportsPoolStats(t *testing.T) {
	gin.SetMode(gin.TestMode)
	conn, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer conn.Close()
	conn.SetMaxOpenConns(4)

	m, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.WatchDB(conn); err != nil {
		t.Fatalf("WatchDB: %v", err)
	}
	if err := m.WatchDB(conn); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}

	r := gin.New()
	r.GET("/metrics", m.Handler())
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(resp.Body.String(), `go_sql_max_open_connections{db_name="vitaeforge"} 4`) {
		t.Fatalf("missing pool stats:\n%s", resp.Body.String())
	}

	var none *Metrics
	if err := none.WatchDB(conn); err != nil {
		t.Fatalf("nil metrics should ignore WatchDB: %v", err)
	}
}
