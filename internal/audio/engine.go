// SPDX-License-Identifier: MIT
/*
Package audio captures live input with PortAudio and drives the viseme
pipeline from the stream callback:

- interleaved float32 input is converted to stereo pairs in a
  pre-allocated block
- the noise gate silences quiet blocks without dropping them
- raw input is optionally written to WAV
- each prediction is stored for pollers and fanned out to transports

The callback runs on a locked OS thread and allocates only when a new
prediction is produced.
*/
package audio

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	"golang.org/x/time/rate"

	"lipsync/internal/config"
	"lipsync/internal/lipsync"
	"lipsync/internal/log"
	"lipsync/internal/metrics"
	"lipsync/internal/transport"
)

// Engine owns one input stream and the pipeline it feeds.
type Engine struct {
	recording  config.RecordingConfig
	labels     []string
	channels   int
	sampleRate int
	frames     int // frames per buffer

	inputDevice  *portaudio.DeviceInfo
	inputLatency time.Duration
	inputStream  *portaudio.Stream

	pipelineMu sync.Mutex // serialises the callback with model loads
	pipeline   *lipsync.Context
	sinks      transport.Multi
	metrics    *metrics.Metrics
	gate       Gate
	block      []lipsync.Stereo
	position   int64 // frames delivered since start
	sequence   uint64

	latestMu  sync.RWMutex
	latest    lipsync.Prediction
	hasLatest bool

	recMu    sync.Mutex
	recorder *Recorder

	warn rate.Sometimes
}

// NewEngine resolves the configured input device and prepares an engine
// around pipeline. Predictions are sent to every sink.
func NewEngine(cfg *config.Config, pipeline *lipsync.Context, m *metrics.Metrics, sinks ...transport.Transport) (*Engine, error) {
	device, err := InputDevice(cfg.Audio.InputDevice)
	if err != nil {
		return nil, err
	}
	e := newEngine(cfg, pipeline, m, sinks...)
	e.inputDevice = device
	if cfg.Audio.LowLatency {
		e.inputLatency = device.DefaultLowInputLatency
	} else {
		e.inputLatency = device.DefaultHighInputLatency
	}
	return e, nil
}

func newEngine(cfg *config.Config, pipeline *lipsync.Context, m *metrics.Metrics, sinks ...transport.Transport) *Engine {
	return &Engine{
		recording:  cfg.Recording,
		labels:     cfg.Visemes,
		channels:   cfg.Audio.InputChannels,
		sampleRate: int(cfg.Audio.SampleRate),
		frames:     cfg.Audio.FramesPerBuffer,
		pipeline:   pipeline,
		sinks:      transport.Multi(sinks),
		metrics:    m,
		gate:       NewGate(cfg.Audio.GateThreshold),
		block:      make([]lipsync.Stereo, cfg.Audio.FramesPerBuffer),
		warn:       rate.Sometimes{First: 3, Interval: 10 * time.Second},
	}
}

// StartInputStream opens and starts a float32 input stream on the device.
func (e *Engine) StartInputStream() error {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   e.inputDevice,
			Channels: e.channels,
			Latency:  e.inputLatency,
		},
		FramesPerBuffer: e.frames,
		SampleRate:      float64(e.sampleRate),
	}

	stream, err := portaudio.OpenStream(params, e.processInputStream)
	if err != nil {
		return fmt.Errorf("open input stream on %q: %w", e.inputDevice.Name, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("start input stream: %w", err)
	}
	e.inputStream = stream
	log.Infof("Engine: capturing %q (%d ch, %d Hz, %d frames, latency %s)",
		e.inputDevice.Name, e.channels, e.sampleRate, e.frames, e.inputLatency)
	return nil
}

// StopInputStream stops and closes the stream if it is open.
func (e *Engine) StopInputStream() error {
	if e.inputStream == nil {
		return nil
	}
	if err := e.inputStream.Stop(); err != nil {
		return err
	}
	if err := e.inputStream.Close(); err != nil {
		return err
	}
	e.inputStream = nil
	return nil
}

// processInputStream is the PortAudio callback.
func (e *Engine) processInputStream(in []float32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	e.processBlock(in)
}

// processBlock runs one interleaved buffer through gate, recorder and
// pipeline.
func (e *Engine) processBlock(in []float32) {
	e.record(in)

	e.pipelineMu.Lock()
	defer e.pipelineMu.Unlock()

	n := len(in) / e.channels
	if cap(e.block) < n {
		e.block = make([]lipsync.Stereo, n)
	}
	block := e.block[:n]
	toStereo(block, in, e.channels)

	gated := e.gate.Apply(block)
	e.metrics.Block(gated)

	weights := e.pipeline.Process(block, e.sampleRate)
	e.position += int64(n)
	if weights == nil {
		return
	}

	e.sequence++
	offset := time.Duration(e.position) * time.Second / time.Duration(e.sampleRate)
	p := lipsync.NewPrediction(e.sequence, time.Now(), offset, weights, e.labels)

	e.latestMu.Lock()
	e.latest, e.hasLatest = p, true
	e.latestMu.Unlock()

	if len(e.sinks) > 0 {
		if err := e.sinks.Send(p); err != nil {
			e.warn.Do(func() { log.Warnf("Engine: sending prediction: %v", err) })
		}
	}
}

// toStereo converts interleaved samples to pairs. Mono is duplicated into
// both sides; beyond two channels only the first two are used.
func toStereo(dst []lipsync.Stereo, in []float32, channels int) {
	switch channels {
	case 1:
		for i := range dst {
			dst[i] = lipsync.Stereo{Left: in[i], Right: in[i]}
		}
	default:
		for i := range dst {
			base := i * channels
			dst[i] = lipsync.Stereo{Left: in[base], Right: in[base+1]}
		}
	}
}

// Latest returns the most recent prediction.
func (e *Engine) Latest() (lipsync.Prediction, bool) {
	e.latestMu.RLock()
	defer e.latestMu.RUnlock()
	return e.latest, e.hasLatest
}

// LoadModel swaps the model between callbacks.
func (e *Engine) LoadModel(path string) error {
	e.pipelineMu.Lock()
	defer e.pipelineMu.Unlock()
	return e.pipeline.LoadModel(path)
}

// Gate exposes the noise gate for adjustment. Changes take effect on the
// next callback.
func (e *Engine) Gate() *Gate {
	return &e.gate
}

// Close stops recording and the stream.
func (e *Engine) Close() error {
	if err := e.StopRecording(); err != nil {
		return err
	}
	return e.StopInputStream()
}
