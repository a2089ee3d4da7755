// SPDX-License-Identifier: MIT

// Package resample converts mono streams between sample rates.
package resample

// Linear is a streaming linear-interpolation resampler to a fixed target
// rate. The fractional read position is carried across calls so chunk
// size never changes output timing.
//
// Only the phase is carried, not the last input sample. Output positions
// that fall between the end of one chunk and the start of the next are
// emitted as the next chunk's first sample. The error is bounded by one
// input sample per boundary and the output count does not drift.
type Linear struct {
	target int
	phase  float64 // read position relative to the start of the next chunk, in [-1, ratio-1)
}

// NewLinear returns a resampler producing samples at targetRate.
func NewLinear(targetRate int) *Linear {
	return &Linear{target: targetRate}
}

// TargetRate returns the output sample rate.
func (r *Linear) TargetRate() int { return r.target }

// Phase returns the carried read position.
func (r *Linear) Phase() float64 { return r.phase }

// Reset discards the carried phase.
func (r *Linear) Reset() { r.phase = 0 }

// Resample appends src, recorded at sourceRate, to dst at the target rate
// and returns the extended slice. Matching rates copy src through
// unchanged. Empty input and non-positive rates leave dst untouched.
func (r *Linear) Resample(dst, src []float32, sourceRate int) []float32 {
	n := len(src)
	if n == 0 || sourceRate <= 0 || r.target <= 0 {
		return dst
	}
	if sourceRate == r.target {
		return append(dst, src...)
	}

	ratio := float64(sourceRate) / float64(r.target)
	last := float64(n - 1)
	cursor := r.phase
	for cursor < last {
		if cursor < 0 {
			dst = append(dst, src[0])
		} else {
			i := int(cursor)
			frac := float32(cursor - float64(i))
			dst = append(dst, src[i]+(src[i+1]-src[i])*frac)
		}
		cursor += ratio
	}
	r.phase = cursor - float64(n)
	return dst
}
