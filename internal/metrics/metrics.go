// Package metrics holds the Prometheus instruments recorded during a run.
//
// Each run owns its own registry. The CLI writes it to a node_exporter
// textfile when --metrics-file is set. All methods are safe on a nil *Metrics
// so components can be built without instrumentation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "s3utils"

// Metrics contains every instrument recorded by s3utils.
type Metrics struct {
	registry *prometheus.Registry

	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	Retries         *prometheus.CounterVec
	PartsCopied     prometheus.Counter
	BytesCopied     prometheus.Counter
	Sessions        *prometheus.CounterVec
	Renames         *prometheus.CounterVec
	ObjectsScanned  prometheus.Counter
}

// New creates a Metrics instance registered on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "storage",
				Name:      "requests_total",
				Help:      "Storage calls by operation and outcome",
			},
			[]string{"op", "outcome"},
		),

		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "storage",
				Name:      "request_duration_seconds",
				Help:      "Storage call latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op"},
		),

		Retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "storage",
				Name:      "retries_total",
				Help:      "Retried storage calls by operation",
			},
			[]string{"op"},
		),

		PartsCopied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "concat",
			Name:      "parts_copied_total",
			Help:      "Parts copied into multipart uploads",
		}),

		BytesCopied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "concat",
			Name:      "bytes_copied_total",
			Help:      "Bytes copied into multipart uploads",
		}),

		Sessions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "concat",
				Name:      "sessions_total",
				Help:      "Multipart sessions by final state",
			},
			[]string{"state"},
		),

		Renames: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "rename",
				Name:      "objects_total",
				Help:      "Rename outcomes by status",
			},
			[]string{"status"},
		),

		ObjectsScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "list",
			Name:      "objects_total",
			Help:      "Objects returned by listing",
		}),
	}

	m.registry.MustRegister(
		m.Requests,
		m.RequestDuration,
		m.Retries,
		m.PartsCopied,
		m.BytesCopied,
		m.Sessions,
		m.Renames,
		m.ObjectsScanned,
	)
	return m
}

// Registry returns the registry holding every instrument.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveRequest records one storage call.
func (m *Metrics) ObserveRequest(op string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Requests.WithLabelValues(op, outcome).Inc()
	m.RequestDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObserveRetry records a retried storage call.
func (m *Metrics) ObserveRetry(op string) {
	if m == nil {
		return
	}
	m.Retries.WithLabelValues(op).Inc()
}

// ObservePart records a copied part.
func (m *Metrics) ObservePart(size int64) {
	if m == nil {
		return
	}
	m.PartsCopied.Inc()
	m.BytesCopied.Add(float64(size))
}

// ObserveSession records the final state of a multipart session.
func (m *Metrics) ObserveSession(state string) {
	if m == nil {
		return
	}
	m.Sessions.WithLabelValues(state).Inc()
}

// ObserveRename records one rename outcome.
func (m *Metrics) ObserveRename(status string) {
	if m == nil {
		return
	}
	m.Renames.WithLabelValues(status).Inc()
}

// ObserveScanned records listed objects.
func (m *Metrics) ObserveScanned(n int) {
	if m == nil {
		return
	}
	m.ObjectsScanned.Add(float64(n))
}

// WriteTextfile writes the registry in the Prometheus text format.
// The file is written atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
