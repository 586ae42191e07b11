// Package metrics exposes Prometheus counters and histograms for LLM calls,
// adapter selections and storage operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "promptlab"

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

type collectorSet struct {
	llmCalls        *prometheus.CounterVec
	llmLatency      *prometheus.HistogramVec
	llmVariants     prometheus.Histogram
	selections      *prometheus.CounterVec
	storageOps      *prometheus.CounterVec
	rateLimitWaited prometheus.Counter
}

func newCollectors(reg prometheus.Registerer) *collectorSet {
	factory := promauto.With(reg)
	return &collectorSet{
		llmCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "llm",
				Name:      "calls_total",
				Help:      "Total number of LLM calls",
			},
			[]string{"op", "provider", "outcome", "kind"},
		),
		llmLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "llm",
				Name:      "call_duration_seconds",
				Help:      "LLM call duration in seconds, including rate limit wait",
				Buckets:   []float64{.1, .25, .5, 1, 2, 4, 8, 15, 30},
			},
			[]string{"op", "provider"},
		),
		llmVariants: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "llm",
				Name:      "variants_per_expansion",
				Help:      "Number of prompt variants returned by one expansion",
				Buckets:   []float64{0, 1, 2, 3, 5, 8},
			},
		),
		selections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "lora",
				Name:      "selections_total",
				Help:      "Total number of LORA selections by method",
			},
			[]string{"method"},
		),
		storageOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "storage",
				Name:      "operations_total",
				Help:      "Total number of storage operations",
			},
			[]string{"op", "outcome"},
		),
		rateLimitWaited: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "llm",
				Name:      "rate_limit_wait_seconds_total",
				Help:      "Total time spent waiting on the minimum call interval",
			},
		),
	}
}
