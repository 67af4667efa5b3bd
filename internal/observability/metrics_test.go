// internal/observability/metrics_test.go
package observability

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	t.Run("records series against its own registry", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		m := NewMetrics(reg, "bolt")

		m.ObserveWait("visible", "satisfied", 300*time.Millisecond)
		m.ObserveWait("visible", "timeout", 7*time.Second)
		m.IncAttempt("click")
		m.IncAttempt("click")
		m.ObserveOutcome("click", "success")
		m.IncRecoveryStage("refresh")
		m.IncArrivalRefresh("Home")
		m.IncClassified("skip")
		m.IncScenario("passed")
		m.SetTime("waiting", 1500*time.Millisecond)

		assert.Equal(t, 1.0, testutil.ToFloat64(m.waits.WithLabelValues("visible", "timeout")))
		assert.Equal(t, 2.0, testutil.ToFloat64(m.interactionTries.WithLabelValues("click")))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.recoveryStages.WithLabelValues("refresh")))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.classified.WithLabelValues("skip")))
		assert.Equal(t, 1.5, testutil.ToFloat64(m.timeSeconds.WithLabelValues("waiting")))
		assert.Equal(t, 1, testutil.CollectAndCount(m.waitDuration))
	})

	t.Run("nil metrics are a no-op", func(t *testing.T) {
		var m *Metrics
		assert.NotPanics(t, func() {
			m.ObserveWait("visible", "satisfied", time.Second)
			m.IncAttempt("type")
			m.ObserveOutcome("type", "success")
			m.IncRecoveryStage("script")
			m.IncArrivalRefresh("Home")
			m.IncClassified("fail")
			m.IncScenario("failed")
			m.SetTime("working", time.Second)
		})
	})

	t.Run("handler serves the text format", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		m := NewMetrics(reg, "bolt")
		m.IncScenario("passed")

		rec := httptest.NewRecorder()
		m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

		require.Equal(t, 200, rec.Code)
		assert.Contains(t, rec.Body.String(), `bolt_scenario_completed_total{status="passed"} 1`)
	})
}
