package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "imgvault"

// Result labels for store operations.
const (
	ResultOK       = "ok"
	ResultNotFound = "not_found"
	ResultError    = "error"
)

// Metrics is a prometheus.Collector for the image engine and its HTTP
// surface. A nil *Metrics is valid and records nothing.
type Metrics struct {
	storeOperations      *prometheus.CounterVec
	metadataWriteFailure *prometheus.CounterVec
	orphans              *prometheus.GaugeVec
	requestDuration      *prometheus.HistogramVec
}

// New returns a new Metrics collector. It is not registered anywhere.
func New() *Metrics {
	return &Metrics{
		storeOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_operations_total",
				Help:      "Image store operations by operation and result.",
			}, []string{"op", "result"},
		),
		metadataWriteFailure: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "metadata_write_failures_total",
				Help:      "Metadata writes that failed after the object was stored.",
			}, []string{"stage"},
		),
		orphans: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "orphans_found",
				Help:      "Orphans found by the last reconciliation of each user, by kind.",
			}, []string{"username", "kind"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method", "route", "status"},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.storeOperations.Describe(ch)
	m.metadataWriteFailure.Describe(ch)
	m.orphans.Describe(ch)
	m.requestDuration.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.storeOperations.Collect(ch)
	m.metadataWriteFailure.Collect(ch)
	m.orphans.Collect(ch)
	m.requestDuration.Collect(ch)
}

// StoreOperation counts one finished store operation.
func (m *Metrics) StoreOperation(op, result string) {
	if m == nil {
		return
	}
	m.storeOperations.WithLabelValues(op, result).Inc()
}

// MetadataWriteFailure counts a metadata write swallowed by upload.
func (m *Metrics) MetadataWriteFailure(stage string) {
	if m == nil {
		return
	}
	m.metadataWriteFailure.WithLabelValues(stage).Inc()
}

// SetOrphans records the orphan counts of one user's reconciliation.
func (m *Metrics) SetOrphans(username string, objects, images int) {
	if m == nil {
		return
	}
	m.orphans.WithLabelValues(username, "object").Set(float64(objects))
	m.orphans.WithLabelValues(username, "image").Set(float64(images))
}

// ObserveRequest records the latency of one HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
