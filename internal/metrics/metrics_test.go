package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/triage/internal/metrics"
)

func TestRegisterIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, metrics.Register(reg))
	require.NoError(t, metrics.Register(reg))
}

func TestObserversExport(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, metrics.Register(reg))

	metrics.ObserveClassification(metrics.SourceHeuristic, "TODAY")
	metrics.ObserveFallback(250*time.Millisecond, "timeout")
	metrics.ObserveVectorCreated()
	metrics.ObserveTick(40*time.Millisecond, 3, 1)
	metrics.ObserveCorrection("STAT")

	for _, name := range []string{
		"triage_classifications_total",
		"triage_fallback_seconds",
		"triage_vectors_created_total",
		"triage_escalations_total",
		"triage_tick_failures_total",
		"triage_tick_seconds",
		"triage_corrections_total",
	} {
		n, err := testutil.GatherAndCount(reg, name)
		require.NoError(t, err, name)
		assert.Positive(t, n, name)
	}
}

func TestMiddlewareCountsStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, metrics.Register(reg))

	h := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))

	before := countSeries(t, reg, "POST", "409")
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/vectors/x/complete", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/vectors/x/complete", nil))

	assert.Equal(t, before+2, countSeries(t, reg, "POST", "409"))
}

func countSeries(t *testing.T, reg *prometheus.Registry, method, code string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	for _, f := range families {
		if f.GetName() != "triage_http_requests_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			labels := map[string]string{}
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["method"] == method && labels["code"] == code {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}
