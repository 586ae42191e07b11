package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder records metrics into its own registry. A nil *Recorder is valid
// and records nothing.
type Recorder struct {
	registry *prometheus.Registry
	c        *collectorSet
}

// NewRecorder creates a recorder with a fresh registry that also carries
// the Go runtime and process collectors.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Recorder{registry: reg, c: newCollectors(reg)}
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// RecordLLMCall counts one LLM call. kind is empty on success.
func (r *Recorder) RecordLLMCall(op, provider, kind string, duration time.Duration) {
	if r == nil {
		return
	}
	outcome := OutcomeSuccess
	if kind != "" {
		outcome = OutcomeFailure
	}
	r.c.llmCalls.WithLabelValues(op, provider, outcome, kind).Inc()
	r.c.llmLatency.WithLabelValues(op, provider).Observe(duration.Seconds())
}

// RecordVariants observes the size of one expansion result.
func (r *Recorder) RecordVariants(n int) {
	if r == nil {
		return
	}
	r.c.llmVariants.Observe(float64(n))
}

// RecordRateLimitWait adds time spent blocked on the call interval.
func (r *Recorder) RecordRateLimitWait(d time.Duration) {
	if r == nil || d <= 0 {
		return
	}
	r.c.rateLimitWaited.Add(d.Seconds())
}

// RecordSelection counts one adapter selection by method.
func (r *Recorder) RecordSelection(method string) {
	if r == nil {
		return
	}
	r.c.selections.WithLabelValues(method).Inc()
}

// RecordStorageOp counts one storage operation.
func (r *Recorder) RecordStorageOp(op string, err error) {
	if r == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	r.c.storageOps.WithLabelValues(op, outcome).Inc()
}
