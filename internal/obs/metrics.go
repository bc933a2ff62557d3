package obs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the optional instrumentation hook client.Client updates
// through, grounded on kraklabs/cie's direct use of
// github.com/prometheus/client_golang (the only Prometheus consumer in the
// retrieval pack). The core never requires a running registry of metrics:
// a nil *Metrics is valid and every method on it is a no-op.
type Metrics struct {
	syncDuration   prometheus.Histogram
	recordsApplied prometheus.Counter
	uploadBytes    prometheus.Counter
	uploadFailures prometheus.Counter
}

// NewMetrics registers warg client metrics against reg and returns a
// Metrics ready to pass to client.New. Passing a nil *Metrics to client.New
// disables instrumentation entirely.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		syncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "warg",
			Subsystem: "client",
			Name:      "sync_duration_seconds",
			Help:      "Duration of a single UpdateCheckpoint pass.",
			Buckets:   prometheus.DefBuckets,
		}),
		recordsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "warg",
			Subsystem: "client",
			Name:      "records_applied_total",
			Help:      "Records successfully validated and applied across all logs.",
		}),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "warg",
			Subsystem: "client",
			Name:      "upload_bytes_total",
			Help:      "Bytes streamed to content upload endpoints.",
		}),
		uploadFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "warg",
			Subsystem: "client",
			Name:      "upload_failures_total",
			Help:      "Content uploads that did not complete successfully.",
		}),
	}
	reg.MustRegister(m.syncDuration, m.recordsApplied, m.uploadBytes, m.uploadFailures)
	return m
}

func (m *Metrics) ObserveSync(d time.Duration) {
	if m == nil {
		return
	}
	m.syncDuration.Observe(d.Seconds())
}

func (m *Metrics) AddRecordsApplied(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.recordsApplied.Add(float64(n))
}

func (m *Metrics) AddUploadBytes(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.uploadBytes.Add(float64(n))
}

func (m *Metrics) IncUploadFailures() {
	if m == nil {
		return
	}
	m.uploadFailures.Inc()
}
