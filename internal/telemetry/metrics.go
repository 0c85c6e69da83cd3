// Package telemetry holds the Prometheus metrics for sync, rollup and query paths.
// A nil *Metrics is valid and records nothing.
package telemetry

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	HTTPRequestDuration *prometheus.HistogramVec

	SyncRuns       *prometheus.CounterVec
	SyncRecords    *prometheus.CounterVec
	UnknownStatus  prometheus.Counter
	RollupDocs     *prometheus.CounterVec
	DailyViewPaths *prometheus.CounterVec
	JobDuration    *prometheus.HistogramVec
}

// New registers all metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		SyncRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "call_sync_runs_total",
				Help: "Call sync runs by result",
			},
			[]string{"result"}, // success, provider_error, skipped
		),
		SyncRecords: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "call_sync_records_total",
				Help: "Call records processed by outcome",
			},
			[]string{"outcome"}, // created, updated, failed
		),
		UnknownStatus: f.NewCounter(prometheus.CounterOpts{
			Name: "call_sync_unknown_status_total",
			Help: "Provider call statuses not in the mapping table (stored as failed)",
		}),
		RollupDocs: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rollup_documents_total",
				Help: "Daily metrics documents written by result",
			},
			[]string{"result"}, // ok, error
		),
		DailyViewPaths: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_daily_view_total",
				Help: "Daily view resolutions by serving path",
			},
			[]string{"path"}, // precomputed, recomputed
		),
		JobDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "job_duration_seconds",
				Help:    "Background job duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"job"},
		),
	}
}

func (m *Metrics) RecordSyncRun(result string) {
	if m == nil {
		return
	}
	m.SyncRuns.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordSyncRecords(created, updated, failed int) {
	if m == nil {
		return
	}
	m.SyncRecords.WithLabelValues("created").Add(float64(created))
	m.SyncRecords.WithLabelValues("updated").Add(float64(updated))
	m.SyncRecords.WithLabelValues("failed").Add(float64(failed))
}

func (m *Metrics) RecordUnknownStatus() {
	if m == nil {
		return
	}
	m.UnknownStatus.Inc()
}

func (m *Metrics) RecordRollupDocument(ok bool) {
	if m == nil {
		return
	}
	result := "error"
	if ok {
		result = "ok"
	}
	m.RollupDocs.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordDailyViewPath(path string) {
	if m == nil {
		return
	}
	m.DailyViewPaths.WithLabelValues(path).Inc()
}

func (m *Metrics) ObserveJob(job string, d time.Duration) {
	if m == nil {
		return
	}
	m.JobDuration.WithLabelValues(job).Observe(d.Seconds())
}

// Middleware records request latency labelled by route pattern.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.HTTPRequestDuration.
			WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
