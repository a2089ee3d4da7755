// SPDX-License-Identifier: MIT
package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.Hop()
	m.HopError()
	m.SetContextFrames(3)
	m.ObserveInference(time.Millisecond, nil, false)
	m.Block(true)
	if m.Handler() == nil {
		t.Error("Handler() on nil metrics returned nil")
	}
}

func TestCounters(t *testing.T) {
	m := NewWith(prometheus.NewRegistry())

	m.Hop()
	m.Hop()
	m.HopError()
	m.SetContextFrames(42)
	m.ObserveInference(2*time.Millisecond, nil, false)
	m.ObserveInference(time.Millisecond, errors.New("boom"), false)
	m.ObserveInference(time.Millisecond, nil, true)
	m.Block(false)
	m.Block(true)

	tests := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"hops", m.HopsProcessed, 2},
		{"hop errors", m.HopErrors, 1},
		{"context frames", m.ContextFrames, 42},
		{"inferences", m.Inferences, 3},
		{"inference errors", m.InferenceErrors, 1},
		{"empty predictions", m.EmptyPredictions, 1},
		{"blocks", m.BlocksReceived, 2},
		{"gated blocks", m.BlocksGated, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := testutil.ToFloat64(tt.c); got != tt.want {
				t.Errorf("value = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHandlerServesPrivateRegistry(t *testing.T) {
	m := New()
	m.Hop()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "lipsync_hops_processed_total 1") {
		t.Errorf("body missing hop counter:\n%s", rec.Body.String())
	}
}
