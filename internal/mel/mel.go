// SPDX-License-Identifier: MIT

// Package mel builds triangular mel filter banks over a power spectrum.
package mel

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// HzToMel converts a frequency in Hz to the HTK mel scale.
func HzToMel(hz float64) float64 {
	return 2595 * math.Log10(1+hz/700)
}

// MelToHz is the inverse of HzToMel.
func MelToHz(m float64) float64 {
	return 700 * (math.Pow(10, m/2595) - 1)
}

// Params describes the spectrum a filter bank is built for.
type Params struct {
	SampleRate int
	FFTSize    int
	Bands      int
	MinHz      float64
	MaxHz      float64
}

// FilterBank is a Bands × (FFTSize/2+1) row-major weight matrix.
type FilterBank struct {
	bands   int
	bins    int
	weights []float64
}

// New computes the filter bank. Band edges are placed on fractional bin
// positions (FFTSize+1)·hz/SampleRate; the +1 matches the feature
// extractor the models were trained against and must not be changed.
func New(p Params) *FilterBank {
	bins := p.FFTSize/2 + 1
	fb := &FilterBank{
		bands:   p.Bands,
		bins:    bins,
		weights: make([]float64, p.Bands*bins),
	}
	if p.Bands <= 0 || p.SampleRate <= 0 {
		return fb
	}

	edges := BinEdges(p)
	for i := range p.Bands {
		left, center, right := edges[i], edges[i+1], edges[i+2]
		row := fb.weights[i*bins : (i+1)*bins]
		for j := range row {
			row[j] = triangle(float64(j), left, center, right)
		}
	}
	return fb
}

// BinEdges returns the Bands+2 fractional bin positions of the filter
// corners, evenly spaced on the mel scale between MinHz and MaxHz.
func BinEdges(p Params) []float64 {
	lo, hi := HzToMel(p.MinHz), HzToMel(p.MaxHz)
	edges := make([]float64, p.Bands+2)
	for i := range edges {
		m := lo + (hi-lo)*float64(i)/float64(p.Bands+1)
		edges[i] = float64(p.FFTSize+1) * MelToHz(m) / float64(p.SampleRate)
	}
	return edges
}

// triangle evaluates one filter at bin j. The center bin belongs to the
// rising side only. A zero-width side contributes nothing.
func triangle(j, left, center, right float64) float64 {
	switch {
	case j >= left && j <= center:
		if center == left {
			return 0
		}
		return (j - left) / (center - left)
	case j > center && j <= right:
		if right == center {
			return 0
		}
		return (right - j) / (right - center)
	default:
		return 0
	}
}

// Bands returns the number of filters.
func (fb *FilterBank) Bands() int { return fb.bands }

// Bins returns the number of spectral bins each filter spans.
func (fb *FilterBank) Bins() int { return fb.bins }

// Row returns filter i. The slice aliases the bank and must not be modified.
func (fb *FilterBank) Row(i int) []float64 {
	return fb.weights[i*fb.bins : (i+1)*fb.bins]
}

// Apply writes the weighted sum of power for every band into dst.
// len(power) must be Bins() and len(dst) at least Bands().
func (fb *FilterBank) Apply(dst, power []float64) {
	for i := range fb.bands {
		dst[i] = floats.Dot(fb.Row(i), power)
	}
}
