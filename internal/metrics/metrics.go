// Package metrics holds the Prometheus collectors for the version store.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Commit results.
const (
	ResultAppended          = "appended"
	ResultDuplicate         = "duplicate"
	ResultUploadFailed      = "upload_failed"
	ResultPersistenceFailed = "persistence_failed"
)

type Metrics struct {
	registry  *prometheus.Registry
	commits   *prometheus.CounterVec
	uploads   prometheus.Histogram
	documents prometheus.Gauge
}

// New registers the collectors on a fresh registry, along with the Go and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "doccloud",
			Name:      "commits_total",
			Help:      "Commits by result.",
		}, []string{"result"}),
		uploads: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "doccloud",
			Name:      "blob_upload_seconds",
			Help:      "Blob store upload latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		documents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "doccloud",
			Name:      "documents",
			Help:      "Documents with at least one version.",
		}),
	}
	m.registry.MustRegister(
		m.commits,
		m.uploads,
		m.documents,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Commit(result string) {
	m.commits.WithLabelValues(result).Inc()
}

func (m *Metrics) BlobUpload(d time.Duration) {
	m.uploads.Observe(d.Seconds())
}

func (m *Metrics) Documents(n int) {
	m.documents.Set(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
