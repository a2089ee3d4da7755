// SPDX-License-Identifier: MIT
package config

import (
	"time"
)

// Defaults and limits for the capture side and the feature pipeline.
const (
	// Capture
	DefaultDeviceID        = MinDeviceID // System default input
	DefaultInputChannels   = 1
	DefaultFramesPerBuffer = 512
	DefaultSampleRate      = 48000
	DefaultLowLatency      = false
	DefaultGateThreshold   = 0.0 // Gate disabled

	// Features, matching what the viseme models are trained on
	DefaultFeatureRate  = 16000
	DefaultHopLength    = 160  // 10ms
	DefaultWindowLength = 400  // 25ms
	DefaultFFTSize      = 1024 // Power of two, >= window
	DefaultMelBands     = 80
	DefaultMinHz        = 50.0
	DefaultMaxHz        = 8000.0
	DefaultWindow       = "hann"
	DefaultContextSize  = 100 // One second of frames

	// Model
	DefaultIntraOpThreads = 1

	// Recording
	DefaultRecordingDir = "./recordings"
	DefaultBitDepth     = 16

	// Transport
	DefaultUDPTargetAddress = "127.0.0.1:9090"
	DefaultUDPSendInterval  = 33 * time.Millisecond // ~30Hz
	DefaultWebSocketAddress = ":8080"

	// Limits
	MinDeviceID     = -1     // -1 represents the system default device
	MinSampleRate   = 8000   // Hz
	MaxSampleRate   = 192000 // Hz
	MaxBufferFrames = 8192
	MaxContextSize  = 3000 // 30s at the default hop
)

// DefaultVisemes are the labels of the 15-class viseme set, in model
// output order.
var DefaultVisemes = []string{
	"sil", "PP", "FF", "TH", "DD", "kk", "CH", "SS", "nn", "RR", "aa", "E", "ih", "oh", "ou",
}

// Default returns a configuration populated with built-in defaults.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Audio: AudioConfig{
			InputDevice:     DefaultDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			LowLatency:      DefaultLowLatency,
			InputChannels:   DefaultInputChannels,
			GateThreshold:   DefaultGateThreshold,
		},
		Features: FeatureConfig{
			SampleRate:   DefaultFeatureRate,
			HopLength:    DefaultHopLength,
			WindowLength: DefaultWindowLength,
			FFTSize:      DefaultFFTSize,
			MelBands:     DefaultMelBands,
			MinHz:        DefaultMinHz,
			MaxHz:        DefaultMaxHz,
			Window:       DefaultWindow,
			ContextSize:  DefaultContextSize,
		},
		Model: ModelConfig{
			IntraOpThreads: DefaultIntraOpThreads,
		},
		Recording: RecordingConfig{
			OutputDir: DefaultRecordingDir,
			BitDepth:  DefaultBitDepth,
		},
		Transport: TransportConfig{
			UDPTargetAddress: DefaultUDPTargetAddress,
			UDPSendInterval:  DefaultUDPSendInterval,
			WebSocketAddress: DefaultWebSocketAddress,
		},
		Visemes: append([]string(nil), DefaultVisemes...),
	}
}
