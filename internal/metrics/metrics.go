// Package metrics provides Prometheus collectors for the file store.
//
// Collectors are registered on a private registry so that several instances
// (one per test, for example) never collide. When metrics are disabled the
// caller uses filestore.NopMetrics instead and serves no /metrics endpoint.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"filestore/internal/filestore"
)

// Metrics is the Prometheus implementation of filestore.Metrics. It also
// records HTTP requests for the transport.
type Metrics struct {
	registry        *prometheus.Registry
	cacheLookups    *prometheus.CounterVec
	filesSaved      *prometheus.CounterVec
	uploadBytes     prometheus.Counter
	archivesBuilt   *prometheus.CounterVec
	archiveBytes    *prometheus.HistogramVec
	archiveDuration *prometheus.HistogramVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

var _ filestore.Metrics = (*Metrics)(nil)

// New creates and registers every collector, plus the Go runtime and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{registry: reg}

	m.cacheLookups = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "filestore_cache_lookups_total",
			Help: "Cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)

	m.filesSaved = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "filestore_uploads_total",
			Help: "Completed uploads by outcome (created, overwritten)",
		},
		[]string{"outcome"},
	)

	m.uploadBytes = promauto.With(reg).NewCounter(
		prometheus.CounterOpts{
			Name: "filestore_upload_bytes_total",
			Help: "Total bytes stored by uploads",
		},
	)

	m.archivesBuilt = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "filestore_archives_built_total",
			Help: "Archives built by codec",
		},
		[]string{"codec"},
	)

	m.archiveBytes = promauto.With(reg).NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "filestore_archive_size_bytes",
			Help: "Size of built archives",
			Buckets: []float64{
				4096,      // 4KB
				65536,     // 64KB
				1048576,   // 1MB
				16777216,  // 16MB
				268435456, // 256MB
			},
		},
		[]string{"codec"},
	)

	m.archiveDuration = promauto.With(reg).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filestore_archive_build_duration_seconds",
			Help:    "Time spent building archives",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"codec"},
	)

	m.httpRequests = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "filestore_http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"route", "status"},
	)

	m.httpDuration = promauto.With(reg).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filestore_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	return m
}

func (m *Metrics) CacheLookup(result string) {
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) FileSaved(created bool, size int64) {
	outcome := "overwritten"
	if created {
		outcome = "created"
	}
	m.filesSaved.WithLabelValues(outcome).Inc()
	m.uploadBytes.Add(float64(size))
}

func (m *Metrics) ArchiveBuilt(codec string, size int, took time.Duration) {
	m.archivesBuilt.WithLabelValues(codec).Inc()
	m.archiveBytes.WithLabelValues(codec).Observe(float64(size))
	m.archiveDuration.WithLabelValues(codec).Observe(took.Seconds())
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(route string, status int, took time.Duration) {
	m.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(took.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
