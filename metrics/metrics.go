package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// SubmissionsTotal counts submissions by delivery channel and outcome.
	SubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "houtveilig",
		Subsystem: "dispatch",
		Name:      "submissions_total",
		Help:      "Total number of report submissions, labeled by channel (share, mailto, local) and outcome.",
	}, []string{"channel", "outcome"})

	// PersistenceFailuresTotal counts swallowed durable store errors by operation.
	PersistenceFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "houtveilig",
		Subsystem: "storage",
		Name:      "persistence_failures_total",
		Help:      "Total number of durable store failures that were logged and swallowed, labeled by operation.",
	}, []string{"op"})

	// ReportsStored is the size of the in-memory report collection.
	ReportsStored = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "houtveilig",
		Subsystem: "storage",
		Name:      "reports_stored",
		Help:      "Number of reports currently held in the local collection.",
	})

	// PhotosProcessedTotal counts photo ingestion completions by result.
	PhotosProcessedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "houtveilig",
		Subsystem: "photo",
		Name:      "processed_total",
		Help:      "Total number of photos processed, labeled by result (ok, error, stale, dropped).",
	}, []string{"result"})

	// PhotoProcessingSeconds is decode + downscale + encode time per photo.
	PhotoProcessingSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "houtveilig",
		Subsystem: "photo",
		Name:      "processing_duration_seconds",
		Help:      "Time to decode, downscale and re-encode one photo.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})

	// LocationRequestsTotal counts location acquisitions by result.
	LocationRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "houtveilig",
		Subsystem: "location",
		Name:      "requests_total",
		Help:      "Total number of location acquisitions, labeled by result.",
	}, []string{"result"})

	// EventClients is the number of connected websocket clients.
	EventClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "houtveilig",
		Subsystem: "events",
		Name:      "connected_clients",
		Help:      "Number of forms connected to the event stream.",
	})
)

// Register registers all collectors with the default registry. Safe to call
// more than once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			SubmissionsTotal,
			PersistenceFailuresTotal,
			ReportsStored,
			PhotosProcessedTotal,
			PhotoProcessingSeconds,
			LocationRequestsTotal,
			EventClients,
		)
	})
}
