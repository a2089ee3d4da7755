// SPDX-License-Identifier: MIT
package audio

import (
	"math"

	"lipsync/internal/lipsync"
)

const absMask = 0x7fffffff

// Gate silences blocks whose peak stays under a threshold so room noise
// does not animate the mouth. Silenced blocks still flow through the
// pipeline to keep its timing.
type Gate struct {
	enabled   bool
	threshold uint32 // IEEE-754 bits of the non-negative threshold
}

// NewGate returns a gate at threshold, enabled when threshold > 0.
func NewGate(threshold float64) Gate {
	var g Gate
	g.SetThreshold(threshold)
	g.enabled = threshold > 0
	return g
}

func (g *Gate) Enable()       { g.enabled = true }
func (g *Gate) Disable()      { g.enabled = false }
func (g *Gate) Enabled() bool { return g.enabled }

// SetThreshold clamps threshold to [0, 1] full scale.
func (g *Gate) SetThreshold(threshold float64) {
	threshold = min(max(threshold, 0), 1)
	g.threshold = math.Float32bits(float32(threshold))
}

// Threshold returns the threshold as a fraction of full scale.
func (g *Gate) Threshold() float64 {
	return float64(math.Float32frombits(g.threshold))
}

// peakBits returns the IEEE-754 bits of the largest absolute sample.
// Clearing the sign bit gives |x|, and for non-negative floats the bit
// patterns order the same way as the values, so the scan stays integer.
func peakBits(block []lipsync.Stereo) uint32 {
	var peak uint32
	for _, s := range block {
		peak = max(peak, math.Float32bits(s.Left)&absMask, math.Float32bits(s.Right)&absMask)
	}
	return peak
}

// Peak returns the largest absolute sample in block.
func Peak(block []lipsync.Stereo) float32 {
	return math.Float32frombits(peakBits(block))
}

// Apply zeroes block when the gate is enabled and the peak is below the
// threshold. It reports whether the block was silenced.
func (g *Gate) Apply(block []lipsync.Stereo) bool {
	if !g.enabled || peakBits(block) >= g.threshold {
		return false
	}
	clear(block)
	return true
}
