// ABOUTME: Prometheus collectors for agent invocations, trace steps, and chat sessions.
// ABOUTME: All methods are safe on a nil *Metrics so metrics can be disabled by passing nil.

package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "alphabot"

// Metrics exposes Prometheus collectors that report chat activity.
type Metrics struct {
	invocations      *prometheus.CounterVec
	duration         *prometheus.HistogramVec
	traceSteps       prometheus.Histogram
	answerBytes      prometheus.Histogram
	inFlight         prometheus.Gauge
	busyRejections   prometheus.Counter
	sessionsActive   prometheus.Gauge
	duplicateSubmits prometheus.Counter
	ledgerFailures   prometheus.Counter
}

// MustNewMetrics constructs a Metrics instance using the provided registerer.
// Tests should pass a fresh prometheus.NewRegistry(). Registration errors
// panic, except that collectors already registered under the same name are
// reused.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		invocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "agent",
				Name:      "invocations_total",
				Help:      "Agent invocations by outcome.",
			},
			[]string{"backend", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "agent",
				Name:      "invocation_duration_seconds",
				Help:      "Wall time from invocation start to the end of the stream.",
				Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
			},
			[]string{"backend", "outcome"},
		),
		traceSteps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "trace_steps",
			Help:      "Normalized trace steps per answer.",
			Buckets:   prometheus.LinearBuckets(0, 4, 8),
		}),
		answerBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "answer_bytes",
			Help:      "Size of aggregated answers in bytes.",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 7),
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "invocations_in_flight",
			Help:      "Invocations currently running.",
		}),
		busyRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "busy_rejections_total",
			Help:      "Prompts rejected because the session already had one in flight.",
		}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "sessions_active",
			Help:      "Live chat sessions.",
		}),
		duplicateSubmits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "duplicate_submits_total",
			Help:      "Form submissions dropped as browser resubmits.",
		}),
		ledgerFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "ledger_write_failures_total",
			Help:      "Invocation records that could not be saved.",
		}),
	}

	m.invocations = register(reg, m.invocations)
	m.duration = register(reg, m.duration)
	m.traceSteps = register(reg, m.traceSteps)
	m.answerBytes = register(reg, m.answerBytes)
	m.inFlight = register(reg, m.inFlight)
	m.busyRejections = register(reg, m.busyRejections)
	m.sessionsActive = register(reg, m.sessionsActive)
	m.duplicateSubmits = register(reg, m.duplicateSubmits)
	m.ledgerFailures = register(reg, m.ledgerFailures)
	return m
}

// register adds c to reg, returning the existing collector if an identical
// one is already registered.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// InvocationStarted marks an invocation as running.
func (m *Metrics) InvocationStarted() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

// InvocationFinished records the outcome of an invocation started with InvocationStarted.
func (m *Metrics) InvocationFinished(backend, outcome string, d time.Duration, steps, answerBytes int) {
	if m == nil {
		return
	}
	m.inFlight.Dec()
	m.invocations.WithLabelValues(backend, outcome).Inc()
	m.duration.WithLabelValues(backend, outcome).Observe(d.Seconds())
	m.traceSteps.Observe(float64(steps))
	m.answerBytes.Observe(float64(answerBytes))
}

// BusyRejected counts a prompt refused because its session was busy.
func (m *Metrics) BusyRejected() {
	if m == nil {
		return
	}
	m.busyRejections.Inc()
}

// SetSessions reports the number of live sessions.
func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.sessionsActive.Set(float64(n))
}

// DuplicateSubmit counts a dropped browser resubmission.
func (m *Metrics) DuplicateSubmit() {
	if m == nil {
		return
	}
	m.duplicateSubmits.Inc()
}

// LedgerWriteFailed counts an invocation record that could not be saved.
func (m *Metrics) LedgerWriteFailed() {
	if m == nil {
		return
	}
	m.ledgerFailures.Inc()
}
