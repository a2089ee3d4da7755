// SPDX-License-Identifier: MIT
package audio

import (
	"testing"

	"lipsync/internal/lipsync"
)

func TestGateEnable(t *testing.T) {
	g := NewGate(0)
	if g.Enabled() {
		t.Error("gate with zero threshold should start disabled")
	}
	g.Enable()
	g.Enable()
	if !g.Enabled() {
		t.Error("gate should be enabled after Enable()")
	}
	g.Disable()
	if g.Enabled() {
		t.Error("gate should be disabled after Disable()")
	}
	if !NewGate(0.1).Enabled() {
		t.Error("gate with positive threshold should start enabled")
	}
}

func TestGateThresholdClamp(t *testing.T) {
	tests := []struct {
		name  string
		input float64
		want  float64
	}{
		{"below min", -0.1, 0},
		{"min", 0, 0},
		{"middle", 0.5, 0.5},
		{"max", 1, 1},
		{"above max", 1.5, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var g Gate
			g.SetThreshold(tt.input)
			if got := g.Threshold(); got != tt.want {
				t.Errorf("Threshold() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPeak(t *testing.T) {
	tests := []struct {
		name  string
		block []lipsync.Stereo
		want  float32
	}{
		{"empty", nil, 0},
		{"positive left", []lipsync.Stereo{{Left: 0.25}, {Left: 0.5}}, 0.5},
		{"negative right", []lipsync.Stereo{{Left: 0.1, Right: -0.75}, {Right: 0.2}}, 0.75},
		{"negative zero", []lipsync.Stereo{{Left: float32(negZero())}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Peak(tt.block); got != tt.want {
				t.Errorf("Peak() = %v, want %v", got, tt.want)
			}
		})
	}
}

func negZero() float64 {
	var z float64
	return -z
}

func TestGateApply(t *testing.T) {
	g := NewGate(0.1)

	quiet := []lipsync.Stereo{{Left: 0.05, Right: -0.02}, {Left: -0.09, Right: 0.01}}
	if !g.Apply(quiet) {
		t.Error("quiet block was not gated")
	}
	for i, s := range quiet {
		if s.Left != 0 || s.Right != 0 {
			t.Errorf("sample %d = %+v after gating, want silence", i, s)
		}
	}

	loud := []lipsync.Stereo{{Left: 0.05}, {Right: -0.3}}
	if g.Apply(loud) {
		t.Error("loud block was gated")
	}
	if loud[1].Right != -0.3 {
		t.Error("loud block was modified")
	}

	g.Disable()
	quiet = []lipsync.Stereo{{Left: 0.05}}
	if g.Apply(quiet) || quiet[0].Left != 0.05 {
		t.Error("disabled gate modified the block")
	}
}

func TestGateApplyAllocs(t *testing.T) {
	g := NewGate(0.5)
	block := make([]lipsync.Stereo, 1024)
	allocs := testing.AllocsPerRun(100, func() {
		g.Apply(block)
	})
	if allocs > 0 {
		t.Errorf("Apply allocated %.1f times", allocs)
	}
}

func BenchmarkGateApply(b *testing.B) {
	g := NewGate(0.01)
	block := make([]lipsync.Stereo, 512)
	for i := range block {
		block[i] = lipsync.Stereo{Left: float32(i%7) * 0.1, Right: -float32(i%5) * 0.1}
	}
	for b.Loop() {
		g.Apply(block)
	}
}
