// SPDX-License-Identifier: MIT

// Package analysis extracts normalised log-mel feature frames from a mono
// stream delivered one hop at a time.
package analysis

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"lipsync/internal/fft"
	"lipsync/internal/log"
	"lipsync/internal/mel"
)

var (
	// ErrInputSizeMismatch is returned when a frame is not exactly one hop long.
	ErrInputSizeMismatch = errors.New("input size does not match hop length")
	// ErrInvalidSettings wraps every rejected configuration.
	ErrInvalidSettings = errors.New("invalid frame processor settings")
)

const (
	powerFloor = 1e-10
	stdFloor   = 1e-8
)

// Settings configures a FrameProcessor.
type Settings struct {
	SampleRate   int
	HopLength    int
	WindowLength int
	FFTSize      int
	MelBands     int
	MinHz        float64
	MaxHz        float64
	Window       WindowFunc
}

// DefaultSettings returns the 16kHz / 10ms hop / 25ms window layout the
// viseme models expect.
func DefaultSettings() Settings {
	return Settings{
		SampleRate:   16000,
		HopLength:    160,
		WindowLength: 400,
		FFTSize:      1024,
		MelBands:     80,
		MinHz:        50,
		MaxHz:        8000,
		Window:       Hann,
	}
}

// Validate reports the first invariant the settings break.
func (s Settings) Validate() error {
	switch {
	case s.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate must be positive, got %d", ErrInvalidSettings, s.SampleRate)
	case s.MelBands <= 0:
		return fmt.Errorf("%w: mel band count must be positive, got %d", ErrInvalidSettings, s.MelBands)
	case s.HopLength <= 0:
		return fmt.Errorf("%w: hop length must be positive, got %d", ErrInvalidSettings, s.HopLength)
	case s.WindowLength < 2:
		return fmt.Errorf("%w: window length must be at least 2, got %d", ErrInvalidSettings, s.WindowLength)
	case s.HopLength > s.WindowLength:
		return fmt.Errorf("%w: hop length %d exceeds window length %d", ErrInvalidSettings, s.HopLength, s.WindowLength)
	case s.WindowLength > s.FFTSize:
		return fmt.Errorf("%w: window length %d exceeds fft size %d", ErrInvalidSettings, s.WindowLength, s.FFTSize)
	case s.MinHz < 0 || s.MinHz >= s.MaxHz:
		return fmt.Errorf("%w: frequency range [%g, %g) is empty", ErrInvalidSettings, s.MinHz, s.MaxHz)
	}
	return nil
}

// FrameProcessor owns the window, the transform and the filter bank, and
// carries the overlap between consecutive hops.
type FrameProcessor struct {
	settings Settings
	window   []float64
	engine   *fft.Engine
	bank     *mel.FilterBank

	overlap  []float64 // window - hop samples carried to the next call
	frame    []float64
	spectrum []complex128
	power    []float64
	bands    []float64
}

// NewFrameProcessor validates s and builds all derived tables.
func NewFrameProcessor(s Settings) (*FrameProcessor, error) {
	p := &FrameProcessor{}
	if err := p.configure(s); err != nil {
		return nil, err
	}
	return p, nil
}

// configure swaps in s only if every derived table could be built.
func (p *FrameProcessor) configure(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	engine, err := fft.New(s.FFTSize)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}

	bank := mel.New(mel.Params{
		SampleRate: s.SampleRate,
		FFTSize:    s.FFTSize,
		Bands:      s.MelBands,
		MinHz:      s.MinHz,
		MaxHz:      s.MaxHz,
	})

	p.settings = s
	p.engine = engine
	p.bank = bank
	p.window = windowCoefficients(s.WindowLength, s.Window)
	p.overlap = make([]float64, s.WindowLength-s.HopLength)
	p.frame = make([]float64, s.WindowLength)
	p.spectrum = make([]complex128, s.FFTSize)
	p.power = make([]float64, s.FFTSize/2+1)
	p.bands = make([]float64, s.MelBands)

	log.Debugf("Analysis: frame processor configured (sr=%d hop=%d win=%d nfft=%d mels=%d range=%.0f-%.0fHz window=%s)",
		s.SampleRate, s.HopLength, s.WindowLength, s.FFTSize, s.MelBands, s.MinHz, s.MaxHz, s.Window)
	return nil
}

// Settings returns a copy of the active configuration.
func (p *FrameProcessor) Settings() Settings { return p.settings }

// SetSampleRate rebuilds the filter bank for a new rate and clears the overlap.
func (p *FrameProcessor) SetSampleRate(rate int) error {
	s := p.settings
	s.SampleRate = rate
	return p.configure(s)
}

// SetFFTSize rebuilds the transform and filter bank.
func (p *FrameProcessor) SetFFTSize(n int) error {
	s := p.settings
	s.FFTSize = n
	return p.configure(s)
}

// SetHopLength changes the number of new samples consumed per frame.
func (p *FrameProcessor) SetHopLength(hop int) error {
	s := p.settings
	s.HopLength = hop
	return p.configure(s)
}

// SetWindowLength changes the analysis span and recomputes the window.
func (p *FrameProcessor) SetWindowLength(n int) error {
	s := p.settings
	s.WindowLength = n
	return p.configure(s)
}

// SetMelBands changes the number of output features per frame.
func (p *FrameProcessor) SetMelBands(n int) error {
	s := p.settings
	s.MelBands = n
	return p.configure(s)
}

// SetFrequencyRange changes the span covered by the filter bank.
func (p *FrameProcessor) SetFrequencyRange(minHz, maxHz float64) error {
	s := p.settings
	s.MinHz, s.MaxHz = minHz, maxHz
	return p.configure(s)
}

// SetWindow changes the window function.
func (p *FrameProcessor) SetWindow(w WindowFunc) error {
	s := p.settings
	s.Window = w
	return p.configure(s)
}

// Reset zeroes the overlap so the next frame starts from silence.
func (p *FrameProcessor) Reset() {
	clear(p.overlap)
}

// ProcessFrame is ProcessFrameInto with a freshly allocated result.
func (p *FrameProcessor) ProcessFrame(samples []float32) ([]float32, error) {
	out := make([]float32, p.settings.MelBands)
	if err := p.ProcessFrameInto(out, samples); err != nil {
		return nil, err
	}
	return out, nil
}

// ProcessFrameInto consumes exactly one hop of samples and writes one
// normalised log-mel frame into dst. On error neither dst nor the overlap
// is modified.
func (p *FrameProcessor) ProcessFrameInto(dst, samples []float32) error {
	hop := p.settings.HopLength
	if len(samples) != hop {
		return fmt.Errorf("%w: got %d samples, want %d", ErrInputSizeMismatch, len(samples), hop)
	}
	if len(dst) < p.settings.MelBands {
		return fmt.Errorf("%w: destination holds %d values, want %d", ErrInputSizeMismatch, len(dst), p.settings.MelBands)
	}

	win := p.settings.WindowLength
	overlapLen := len(p.overlap)

	copy(p.frame, p.overlap)
	for i, s := range samples {
		if overlapLen+i >= win {
			break
		}
		p.frame[overlapLen+i] = float64(s)
	}

	for i := range p.overlap {
		if hop+i < win {
			p.overlap[i] = p.frame[hop+i]
		} else {
			p.overlap[i] = 0
		}
	}

	for i := range p.spectrum {
		if i < win {
			p.spectrum[i] = complex(p.frame[i]*p.window[i], 0)
		} else {
			p.spectrum[i] = 0
		}
	}
	p.engine.Transform(p.spectrum)

	for k := range p.power {
		c := p.spectrum[k]
		p.power[k] = real(c)*real(c) + imag(c)*imag(c)
	}

	p.bank.Apply(p.bands, p.power)
	for i, e := range p.bands {
		p.bands[i] = 10 * math.Log10(math.Max(e, powerFloor))
	}

	mean, std := stat.PopMeanStdDev(p.bands, nil)
	std = math.Max(std, stdFloor)
	for i, v := range p.bands {
		dst[i] = float32((v - mean) / std)
	}
	return nil
}
