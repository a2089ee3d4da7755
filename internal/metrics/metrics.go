// SPDX-License-Identifier: MIT

// Package metrics exposes pipeline counters to Prometheus. A nil *Metrics
// is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the pipeline updates.
type Metrics struct {
	registry *prometheus.Registry

	// Feature extraction
	HopsProcessed prometheus.Counter
	HopErrors     prometheus.Counter
	ContextFrames prometheus.Gauge

	// Inference
	Inferences        prometheus.Counter
	InferenceErrors   prometheus.Counter
	InferenceDuration prometheus.Histogram
	EmptyPredictions  prometheus.Counter

	// Capture
	BlocksReceived prometheus.Counter
	BlocksGated    prometheus.Counter
}

// New creates the collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := NewWith(reg)
	m.registry = reg
	return m
}

// NewWith registers the collectors on reg.
func NewWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HopsProcessed: f.NewCounter(prometheus.CounterOpts{
			Name: "lipsync_hops_processed_total",
			Help: "Total number of hops turned into feature frames",
		}),
		HopErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "lipsync_hop_errors_total",
			Help: "Total number of hops rejected by the frame processor",
		}),
		ContextFrames: f.NewGauge(prometheus.GaugeOpts{
			Name: "lipsync_context_frames",
			Help: "Feature frames currently held in the context window",
		}),
		Inferences: f.NewCounter(prometheus.CounterOpts{
			Name: "lipsync_inferences_total",
			Help: "Total number of model invocations",
		}),
		InferenceErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "lipsync_inference_errors_total",
			Help: "Total number of failed model invocations",
		}),
		InferenceDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "lipsync_inference_duration_seconds",
			Help:    "Time spent in the model per invocation",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
		}),
		EmptyPredictions: f.NewCounter(prometheus.CounterOpts{
			Name: "lipsync_empty_predictions_total",
			Help: "Total number of invocations that returned no output",
		}),
		BlocksReceived: f.NewCounter(prometheus.CounterOpts{
			Name: "lipsync_audio_blocks_total",
			Help: "Total number of audio blocks delivered by the input stream",
		}),
		BlocksGated: f.NewCounter(prometheus.CounterOpts{
			Name: "lipsync_audio_blocks_gated_total",
			Help: "Total number of audio blocks silenced by the noise gate",
		}),
	}
}

// Handler serves the private registry, or the default one when the
// collectors were registered elsewhere.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Hop() {
	if m != nil {
		m.HopsProcessed.Inc()
	}
}

func (m *Metrics) HopError() {
	if m != nil {
		m.HopErrors.Inc()
	}
}

func (m *Metrics) SetContextFrames(n int) {
	if m != nil {
		m.ContextFrames.Set(float64(n))
	}
}

// ObserveInference records one model call. empty marks a call that
// succeeded without output.
func (m *Metrics) ObserveInference(d time.Duration, err error, empty bool) {
	if m == nil {
		return
	}
	m.Inferences.Inc()
	m.InferenceDuration.Observe(d.Seconds())
	switch {
	case err != nil:
		m.InferenceErrors.Inc()
	case empty:
		m.EmptyPredictions.Inc()
	}
}

func (m *Metrics) Block(gated bool) {
	if m == nil {
		return
	}
	m.BlocksReceived.Inc()
	if gated {
		m.BlocksGated.Inc()
	}
}
