package metrics

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vitaeforge"

// Result labels shared by counters.
const (
	ResultOK    = "ok"
	ResultError = "error"
	ResultSkip  = "skipped"
)

// Metrics holds the collectors exported on /metrics. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	autosaveWrites    *prometheus.CounterVec
	autosaveCoalesced prometheus.Counter
	autosaveSeconds   prometheus.Histogram
	refineCalls       *prometheus.CounterVec
	editorSessions    prometheus.Gauge
	httpDuration      *prometheus.HistogramVec
}

// New creates a Metrics instance backed by a private registry.
func New() (*Metrics, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("register process collector: %w", err)
	}
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("register go collector: %w", err)
	}

	return &Metrics{
		registry: reg,
		autosaveWrites: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "autosave",
			Name:      "writes_total",
			Help:      "Total autosave writes by result.",
		}, []string{"result"}),
		autosaveCoalesced: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "autosave",
			Name:      "coalesced_edits_total",
			Help:      "Edits absorbed by a pending debounce window.",
		}),
		autosaveSeconds: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "autosave",
			Name:      "write_seconds",
			Help:      "Duration of autosave writes.",
		}),
		refineCalls: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refine",
			Name:      "calls_total",
			Help:      "AI refine calls by result.",
		}, []string{"result"}),
		editorSessions: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "editor",
			Name:      "open_sessions",
			Help:      "Number of open editor sessions.",
		}),
		httpDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"method", "route", "status"}),
	}, nil
}

// Registry returns the registry of the metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// WatchDB exports the pool statistics of conn.
func (m *Metrics) WatchDB(conn *sql.DB) error {
	if m == nil || conn == nil {
		return nil
	}
	if err := m.registry.Register(collectors.NewDBStatsCollector(conn, namespace)); err != nil {
		return fmt.Errorf("register db stats collector: %w", err)
	}
	return nil
}

// ObserveAutosave records one finished autosave write.
func (m *Metrics) ObserveAutosave(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.autosaveWrites.WithLabelValues(result).Inc()
	m.autosaveSeconds.Observe(d.Seconds())
}

// IncAutosaveCoalesced counts an edit that restarted a pending debounce timer.
func (m *Metrics) IncAutosaveCoalesced() {
	if m == nil {
		return
	}
	m.autosaveCoalesced.Inc()
}

// IncRefine counts a refine call.
func (m *Metrics) IncRefine(result string) {
	if m == nil {
		return
	}
	m.refineCalls.WithLabelValues(result).Inc()
}

// SetEditorSessions sets the open editor sessions gauge.
func (m *Metrics) SetEditorSessions(n int) {
	if m == nil {
		return
	}
	m.editorSessions.Set(float64(n))
}

// Middleware records request durations keyed by the matched route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpDuration.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// Handler exposes metrics in Prometheus text format.
func (m *Metrics) Handler() gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Status(404) }
	}
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}
