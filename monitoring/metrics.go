package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"spamdetect/apperr"
	"spamdetect/progress"
)

// Metrics holds the detector's prometheus collectors. It observes scheduler
// events to time executions and count failures by error kind.
type Metrics struct {
	registry *prometheus.Registry

	Classifications   *prometheus.CounterVec
	Failures          *prometheus.CounterVec
	ExecutionDuration *prometheus.HistogramVec
	BatchRows         prometheus.Histogram
	Busy              prometheus.Gauge

	mu      sync.Mutex
	started map[string]time.Time
	now     func() time.Time
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Classifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spamdetect_classifications_total",
				Help: "Classified texts by mode and label",
			},
			[]string{"mode", "label"},
		),
		Failures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spamdetect_execution_failures_total",
				Help: "Failed executions by error kind",
			},
			[]string{"kind"},
		),
		ExecutionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "spamdetect_execution_duration_seconds",
				Help:    "Wall time of an execution from first to terminal event",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"outcome"},
		),
		BatchRows: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "spamdetect_batch_rows",
			Help:    "Rows per completed batch run",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}),
		Busy: factory.NewGauge(prometheus.GaugeOpts{
			Name: "spamdetect_execution_in_progress",
			Help: "1 while an execution is running",
		}),
		started: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordClassifications counts n texts given label. mode is "single" or
// "batch".
func (m *Metrics) RecordClassifications(mode, label string, n int) {
	m.Classifications.WithLabelValues(mode, label).Add(float64(n))
}

func (m *Metrics) RecordBatch(rows int) {
	m.BatchRows.Observe(float64(rows))
}

// RecordRejection counts a request refused before an execution started,
// such as empty input or a concurrent run.
func (m *Metrics) RecordRejection(err error) {
	m.Failures.WithLabelValues(apperr.KindOf(err).String()).Inc()
}

func (m *Metrics) Observe(e progress.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch e.Type {
	case progress.EventProgress:
		if _, ok := m.started[e.ExecutionID]; !ok {
			m.started[e.ExecutionID] = m.now()
			m.Busy.Set(1)
		}
	case progress.EventCompleted, progress.EventFailed:
		outcome := "completed"
		if e.Type == progress.EventFailed {
			outcome = "failed"
			m.Failures.WithLabelValues(apperr.KindOf(e.Err).String()).Inc()
		}
		if start, ok := m.started[e.ExecutionID]; ok {
			m.ExecutionDuration.WithLabelValues(outcome).Observe(m.now().Sub(start).Seconds())
			delete(m.started, e.ExecutionID)
		}
		m.Busy.Set(0)
	}
}
