package aigen

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	aiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "story_aigen_requests_total",
			Help: "Total number of requests to the AI API, partitioned by status.",
		},
		[]string{"model", "status"},
	)
	aiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "story_aigen_request_duration_seconds",
			Help:    "Histogram of AI API request durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model"},
	)
	promptTokensEstimated = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "story_aigen_prompt_tokens",
			Help:    "Histogram of locally estimated prompt token counts.",
			Buckets: prometheus.LinearBuckets(250, 250, 16),
		},
		[]string{"model"},
	)
	aiTokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "story_aigen_tokens_used_total",
			Help: "Total number of AI tokens consumed for story generation.",
		},
		[]string{"model"},
	)
	aiEstimatedCostUSD = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "story_aigen_estimated_cost_usd_total",
			Help: "Estimated cumulative cost of AI generation in USD.",
		},
		[]string{"model"},
	)
	layersMaterialized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "story_aigen_layers_materialized_total",
			Help: "Total number of story layers materialized, partitioned by layer kind.",
		},
		[]string{"kind"},
	)
)
