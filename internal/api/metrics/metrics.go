// Package metrics defines all custom Prometheus metrics for the taxentia
// API. It is the single source of truth for metric names, labels, and help
// strings; collectors register themselves on import via promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "taxentia"

// ── Research metrics ──────────────────────────────────────────────────────────

// QueriesTotal counts answered research queries.
// Label:
//   - color: the confidence band of the stored answer ("green", "amber", "red")
var QueriesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "queries_total",
		Help:      "Total number of research queries answered, by confidence color.",
	},
	[]string{"color"},
)

// QueryFallbacksTotal counts queries answered with the deterministic fallback
// response instead of a model analysis.
var QueryFallbacksTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "query_fallbacks_total",
		Help:      "Total number of research queries answered with the fallback response.",
	},
)

// QuotaRejectionsTotal counts queries rejected because the user's daily
// allowance was spent.
var QuotaRejectionsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "quota_rejections_total",
		Help:      "Total number of research queries rejected by the daily quota.",
	},
)

// ResearchDuration measures the full submit pipeline end-to-end.
// Label:
//   - outcome: "ok", "fallback", or "error"
var ResearchDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "research_duration_seconds",
		Help:      "Duration of research query handling from request to persisted answer.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
	},
	[]string{"outcome"},
)

// ── Model metrics ─────────────────────────────────────────────────────────────

// LLMCallsTotal counts completion calls against the model API.
// Label:
//   - outcome: "ok" or "error"
var LLMCallsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "llm_calls_total",
		Help:      "Total number of model completion calls, by outcome.",
	},
	[]string{"outcome"},
)

// LLMLatency measures a single completion call, retries included.
var LLMLatency = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "llm_latency_seconds",
		Help:      "Latency of model completion calls.",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
	},
)

// ── Retrieval metrics ─────────────────────────────────────────────────────────

// RetrievalDuration measures a similarity search against the vector index.
var RetrievalDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "retrieval_duration_seconds",
		Help:      "Latency of similarity searches against the vector index.",
		Buckets:   prometheus.DefBuckets, // .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10
	},
)

// RetrievalHits tracks how many chunks each search returned.
var RetrievalHits = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "retrieval_hits",
		Help:      "Number of chunks returned per similarity search.",
		Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
	},
)
