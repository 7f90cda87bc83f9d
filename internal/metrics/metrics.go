// Package metrics exposes Prometheus collectors for the escalation engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "triage"

// Classification sources.
const (
	SourceRule      = "rule"
	SourceHeuristic = "heuristic"
	SourceFallback  = "fallback"
	SourceDegraded  = "degraded"
)

// Fallback outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeDegraded = "degraded"
)

var (
	classificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifications_total",
			Help:      "Messages classified, partitioned by deciding source and zone.",
		},
		[]string{"source", "zone"},
	)

	fallbackSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fallback_seconds",
			Help:      "Model fallback latency in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30},
		},
		[]string{"outcome"},
	)

	vectorsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vectors_created_total",
			Help:      "State vectors created by ingestion.",
		},
	)

	escalationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalations_total",
			Help:      "State vectors transitioned to OVERDUE.",
		},
	)

	tickFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tick_failures_total",
			Help:      "Per-vector failures collected during escalation sweeps.",
		},
	)

	tickSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_seconds",
			Help:      "Escalation sweep duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	correctionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "corrections_total",
			Help:      "Zone corrections applied, partitioned by target zone.",
		},
		[]string{"zone"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, partitioned by method and status code.",
		},
		[]string{"method", "code"},
	)
)

// Register attaches the engine collectors to reg.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		classificationsTotal,
		fallbackSeconds,
		vectorsCreatedTotal,
		escalationsTotal,
		tickFailuresTotal,
		tickSeconds,
		correctionsTotal,
		httpRequestsTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveClassification counts a classification decided by source.
func ObserveClassification(source, zone string) {
	classificationsTotal.WithLabelValues(source, zone).Inc()
}

// ObserveFallback records a model fallback call.
func ObserveFallback(duration time.Duration, outcome string) {
	if outcome != OutcomeSuccess {
		outcome = OutcomeDegraded
	}
	fallbackSeconds.WithLabelValues(outcome).Observe(max(duration, 0).Seconds())
}

// ObserveVectorCreated counts a newly persisted state vector.
func ObserveVectorCreated() {
	vectorsCreatedTotal.Inc()
}

// ObserveTick records one escalation sweep.
func ObserveTick(duration time.Duration, escalated, failed int) {
	tickSeconds.Observe(max(duration, 0).Seconds())
	escalationsTotal.Add(float64(escalated))
	tickFailuresTotal.Add(float64(failed))
}

// ObserveCorrection counts an applied correction.
func ObserveCorrection(zone string) {
	correctionsTotal.WithLabelValues(zone).Inc()
}

// Middleware counts HTTP requests by method and status code.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)
		httpRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(rec.code)).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}
