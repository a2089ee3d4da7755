// SPDX-License-Identifier: MIT

// Package lipsync turns a live stereo stream at any rate and block size
// into viseme predictions. Audio is downmixed, resampled to the feature
// rate, cut into hops, turned into log-mel frames and kept in a bounded
// context window that is handed to the model whenever new frames arrive.
package lipsync

import (
	"errors"
	"fmt"
	"time"

	"lipsync/internal/analysis"
	"lipsync/internal/inference"
	"lipsync/internal/log"
	"lipsync/internal/metrics"
	"lipsync/internal/resample"
)

// DefaultContextSize is one second of frames at the default 10ms hop.
const DefaultContextSize = 100

// ErrInvalidContextSize is returned for a non-positive context size.
var ErrInvalidContextSize = errors.New("context size must be positive")

// Stereo is one interleaved sample pair.
type Stereo struct {
	Left, Right float32
}

// Option configures a Context at construction.
type Option func(*options)

type options struct {
	settings    analysis.Settings
	contextSize int
	engine      inference.Engine
	metrics     *metrics.Metrics
}

// WithSettings replaces the default feature settings.
func WithSettings(s analysis.Settings) Option {
	return func(o *options) { o.settings = s }
}

// WithTargetRate sets the rate features are extracted at.
func WithTargetRate(rate int) Option {
	return func(o *options) { o.settings.SampleRate = rate }
}

// WithContextSize sets how many frames the model sees per call.
func WithContextSize(frames int) Option {
	return func(o *options) { o.contextSize = frames }
}

// WithEngine sets the model the context runs. The context does not own
// the engine and never closes it.
func WithEngine(e inference.Engine) Option {
	return func(o *options) { o.engine = e }
}

// WithMetrics records pipeline activity on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// Context is one streaming pipeline. It is not safe for concurrent use;
// callers serialise access per audio stream.
type Context struct {
	processor *analysis.FrameProcessor
	resampler *resample.Linear
	engine    inference.Engine
	metrics   *metrics.Metrics

	pending *queue
	window  *ring

	mono   []float32
	frame  []float32
	tensor []float32
}

// NewContext builds a pipeline with default settings and a 100-frame
// context unless overridden.
func NewContext(opts ...Option) (*Context, error) {
	o := options{
		settings:    analysis.DefaultSettings(),
		contextSize: DefaultContextSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.contextSize <= 0 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidContextSize, o.contextSize)
	}

	processor, err := analysis.NewFrameProcessor(o.settings)
	if err != nil {
		return nil, err
	}

	c := &Context{
		processor: processor,
		resampler: resample.NewLinear(o.settings.SampleRate),
		engine:    o.engine,
		metrics:   o.metrics,
		pending:   &queue{},
	}
	c.rebuild(o.contextSize)
	return c, nil
}

// rebuild sizes the window and scratch buffers from the processor's live
// settings, discarding buffered audio and frames.
func (c *Context) rebuild(contextSize int) {
	s := c.processor.Settings()
	if c.resampler.TargetRate() != s.SampleRate {
		c.resampler = resample.NewLinear(s.SampleRate)
	}
	c.window = newRing(contextSize, s.MelBands)
	c.frame = make([]float32, s.MelBands)
	c.tensor = make([]float32, 0, contextSize*s.MelBands)
	c.Reset()
}

// Settings returns the feature extraction settings in effect.
func (c *Context) Settings() analysis.Settings { return c.processor.Settings() }

// ContextSize returns the context window capacity in frames.
func (c *Context) ContextSize() int { return c.window.Cap() }

// Frames returns how many frames the context window currently holds.
func (c *Context) Frames() int { return c.window.Len() }

// SetEngine swaps the model. The pipeline is reset so frames are never
// shared between models.
func (c *Context) SetEngine(e inference.Engine) {
	c.engine = e
	c.Reset()
}

// LoadModel loads path into the engine. On success all streaming state is
// reset; on failure nothing changes.
func (c *Context) LoadModel(path string) error {
	if c.engine == nil {
		return fmt.Errorf("%w: no inference engine configured", inference.ErrModelLoad)
	}
	if err := c.engine.Load(path); err != nil {
		log.Errorf("LipSync: loading model %s: %v", path, err)
		return err
	}
	c.Reset()
	return nil
}

// Reset clears buffered audio, the context window, the overlap and the
// resampler phase. Settings are kept.
func (c *Context) Reset() {
	c.pending.Reset()
	c.window.Reset()
	c.processor.Reset()
	c.resampler.Reset()
	c.metrics.SetContextFrames(0)
}

// SetContextSize changes the window capacity. Shrinking drops the oldest
// frames immediately.
func (c *Context) SetContextSize(frames int) error {
	if frames <= 0 {
		return fmt.Errorf("%w, got %d", ErrInvalidContextSize, frames)
	}
	c.window.Resize(frames)
	if cap(c.tensor) < frames*c.window.width {
		c.tensor = make([]float32, 0, frames*c.window.width)
	}
	c.metrics.SetContextFrames(c.window.Len())
	return nil
}

// configure applies a processor setter and, if it succeeds, resizes the
// pipeline around the new settings.
func (c *Context) configure(set func() error) error {
	if err := set(); err != nil {
		return err
	}
	c.rebuild(c.window.Cap())
	return nil
}

func (c *Context) SetSampleRate(rate int) error {
	return c.configure(func() error { return c.processor.SetSampleRate(rate) })
}

func (c *Context) SetFFTSize(n int) error {
	return c.configure(func() error { return c.processor.SetFFTSize(n) })
}

func (c *Context) SetHopLength(hop int) error {
	return c.configure(func() error { return c.processor.SetHopLength(hop) })
}

func (c *Context) SetWindowLength(n int) error {
	return c.configure(func() error { return c.processor.SetWindowLength(n) })
}

func (c *Context) SetMelBands(n int) error {
	return c.configure(func() error { return c.processor.SetMelBands(n) })
}

func (c *Context) SetFrequencyRange(minHz, maxHz float64) error {
	return c.configure(func() error { return c.processor.SetFrequencyRange(minHz, maxHz) })
}

func (c *Context) SetWindow(w analysis.WindowFunc) error {
	return c.configure(func() error { return c.processor.SetWindow(w) })
}

// Process feeds one block recorded at sourceRate through the pipeline and
// returns the newest timestep of the model output. A nil result means no
// new prediction this call: the block did not complete a hop, no model is
// loaded, or the model failed. Failures are logged and never returned.
func (c *Context) Process(block []Stereo, sourceRate int) []float32 {
	if len(block) == 0 {
		return nil
	}

	c.mono = c.mono[:0]
	for _, s := range block {
		c.mono = append(c.mono, (s.Left+s.Right)*0.5)
	}
	c.pending.data = c.resampler.Resample(c.pending.data, c.mono, sourceRate)

	hop := c.processor.Settings().HopLength
	produced := false
	for c.pending.Len() >= hop {
		if err := c.processor.ProcessFrameInto(c.frame, c.pending.Pop(hop)); err != nil {
			log.Warnf("LipSync: dropping hop: %v", err)
			c.metrics.HopError()
			continue
		}
		c.window.Push(c.frame)
		c.metrics.Hop()
		produced = true
	}
	c.pending.Compact()
	c.metrics.SetContextFrames(c.window.Len())

	if !produced || c.window.Len() == 0 {
		return nil
	}
	return c.infer()
}

func (c *Context) infer() []float32 {
	if c.engine == nil || !c.engine.Loaded() {
		return nil
	}

	c.tensor = c.window.Flatten(c.tensor[:0])
	start := time.Now()
	out, err := c.engine.Run(c.tensor)
	c.metrics.ObserveInference(time.Since(start), err, len(out) == 0)
	if err != nil {
		if errors.Is(err, inference.ErrModelNotLoaded) {
			log.Debugf("LipSync: %v", err)
		} else {
			log.Warnf("LipSync: inference over %d frames: %v", c.window.Len(), err)
		}
		return nil
	}
	if len(out) == 0 {
		return nil
	}

	frames := c.window.Len()
	if len(out)%frames != 0 {
		log.Warnf("LipSync: %v: %d output values for %d frames", inference.ErrTensorShapeMismatch, len(out), frames)
		return nil
	}
	width := len(out) / frames
	prediction := make([]float32, width)
	copy(prediction, out[len(out)-width:])
	return prediction
}
