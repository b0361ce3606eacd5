package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "acorn_domains"

var (
	DoHLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "doh_lookups_total",
		Help:      "DNS-over-HTTPS lookups by record type and outcome.",
	}, []string{"type", "outcome"})

	DoHAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "doh_attempts_total",
		Help:      "Individual DNS-over-HTTPS requests, including retries.",
	})

	ProbeResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "probe_results_total",
		Help:      "HTTPS probe results by probe kind and outcome.",
	}, []string{"probe", "outcome"})

	VerificationRunsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "verification_runs_active",
		Help:      "Domains with a verification run in progress or scheduled.",
	})

	VerificationOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "verification_outcomes_total",
		Help:      "Results of verification passes.",
	}, []string{"outcome"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "API request latency by method, route template and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeInvalid  = "invalid"
	OutcomeEmpty    = "empty"
	OutcomeTimeout  = "timeout"
	OutcomeRetry    = "retry"
	OutcomeEnabled  = "enabled"
	OutcomeFailed   = "failed"
	OutcomeSSLRetry = "ssl_retry"
)
