package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SteamRequests counts outbound Steam requests by endpoint and status class
	SteamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "steamdeal",
		Name:      "steam_requests_total",
		Help:      "Steam HTTP requests by endpoint and outcome.",
	}, []string{"endpoint", "outcome"})

	// RateLimitHits counts 429 responses
	RateLimitHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "steamdeal",
		Name:      "rate_limit_hits_total",
		Help:      "HTTP 429 responses received from Steam.",
	})

	// ExtractorStages counts cascade stage outcomes
	ExtractorStages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "steamdeal",
		Name:      "extractor_stage_outcomes_total",
		Help:      "List extractor stage outcomes.",
	}, []string{"kind", "stage", "outcome"})

	// PriceChecks counts per-item price lookups
	PriceChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "steamdeal",
		Name:      "price_checks_total",
		Help:      "Per-item price checks by result.",
	}, []string{"result"})

	// PipelineRuns counts finished pipeline runs by status
	PipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "steamdeal",
		Name:      "pipeline_runs_total",
		Help:      "Pipeline runs by final status.",
	}, []string{"status"})

	// DigestRuns counts weekly digest runs by result
	DigestRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "steamdeal",
		Name:      "digest_runs_total",
		Help:      "Weekly digest worker runs.",
	}, []string{"result"})
)
