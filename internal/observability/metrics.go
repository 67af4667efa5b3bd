// internal/observability/metrics.go
package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus series recorded by the engine. A nil *Metrics
// is valid and records nothing, so components can take one unconditionally.
type Metrics struct {
	waits             *prometheus.CounterVec
	waitDuration      *prometheus.HistogramVec
	interactionTries  *prometheus.CounterVec
	interactionResult *prometheus.CounterVec
	recoveryStages    *prometheus.CounterVec
	arrivalRefreshes  *prometheus.CounterVec
	classified        *prometheus.CounterVec
	scenarios         *prometheus.CounterVec
	timeSeconds       *prometheus.GaugeVec

	gatherer prometheus.Gatherer
}

// NewMetrics registers every series against reg. Passing a fresh
// prometheus.NewRegistry() keeps tests isolated from the default registry.
func NewMetrics(reg *prometheus.Registry, namespace string) *Metrics {
	if namespace == "" {
		namespace = "bolt"
	}
	factory := promauto.With(reg)

	return &Metrics{
		gatherer: reg,
		waits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "waiter",
			Name:      "waits_total",
			Help:      "Condition waits by condition and outcome",
		}, []string{"condition", "outcome"}),
		waitDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "waiter",
			Name:      "wait_duration_seconds",
			Help:      "Time spent waiting for a condition",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 15, 30, 61, 120, 360},
		}, []string{"condition"}),
		interactionTries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "interact",
			Name:      "attempts_total",
			Help:      "Individual click and type attempts",
		}, []string{"operation"}),
		interactionResult: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "interact",
			Name:      "outcomes_total",
			Help:      "Final outcome of retrying click and type operations",
		}, []string{"operation", "outcome"}),
		recoveryStages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recovery",
			Name:      "stages_total",
			Help:      "Robust click stages entered",
		}, []string{"stage"}),
		arrivalRefreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "arrival",
			Name:      "refreshes_total",
			Help:      "Page refreshes issued while confirming arrival",
		}, []string{"page"}),
		classified: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classify",
			Name:      "errors_total",
			Help:      "Terminal errors by disposition",
		}, []string{"disposition"}),
		scenarios: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scenario",
			Name:      "completed_total",
			Help:      "Scenarios by final status",
		}, []string{"status"}),
		timeSeconds: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stopwatch",
			Name:      "seconds",
			Help:      "Accumulated working and waiting time",
		}, []string{"category"}),
	}
}

func (m *Metrics) ObserveWait(condition, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.waits.WithLabelValues(condition, outcome).Inc()
	m.waitDuration.WithLabelValues(condition).Observe(d.Seconds())
}

func (m *Metrics) IncAttempt(operation string) {
	if m == nil {
		return
	}
	m.interactionTries.WithLabelValues(operation).Inc()
}

func (m *Metrics) ObserveOutcome(operation, outcome string) {
	if m == nil {
		return
	}
	m.interactionResult.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) IncRecoveryStage(stage string) {
	if m == nil {
		return
	}
	m.recoveryStages.WithLabelValues(stage).Inc()
}

func (m *Metrics) IncArrivalRefresh(page string) {
	if m == nil {
		return
	}
	m.arrivalRefreshes.WithLabelValues(page).Inc()
}

func (m *Metrics) IncClassified(disposition string) {
	if m == nil {
		return
	}
	m.classified.WithLabelValues(disposition).Inc()
}

func (m *Metrics) IncScenario(status string) {
	if m == nil {
		return
	}
	m.scenarios.WithLabelValues(status).Inc()
}

// SetTime publishes a stopwatch category total.
func (m *Metrics) SetTime(category string, d time.Duration) {
	if m == nil {
		return
	}
	m.timeSeconds.WithLabelValues(category).Set(d.Seconds())
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Serve runs the metrics endpoint until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, address, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	server := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
