// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"lipsync/internal/analysis"
	"lipsync/internal/log"
	"lipsync/pkg/bitint"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the full runtime configuration, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Verbose logging.
	LogLevel  string          `yaml:"log_level"` // debug, info, warn or error.
	TUI       bool            `yaml:"tui"`       // Render the live viseme meter.
	Audio     AudioConfig     `yaml:"audio"`
	Features  FeatureConfig   `yaml:"features"`
	Model     ModelConfig     `yaml:"model"`
	Recording RecordingConfig `yaml:"recording"`
	Transport TransportConfig `yaml:"transport"`
	Visemes   []string        `yaml:"visemes"` // Output labels in model order.
}

// AudioConfig holds capture settings.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index (-1 for default).
	SampleRate      float64 `yaml:"sample_rate"`       // Device rate in Hz; resampled to features.sample_rate.
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Frames per callback.
	LowLatency      bool    `yaml:"low_latency"`
	InputChannels   int     `yaml:"input_channels"`
	GateThreshold   float64 `yaml:"gate_threshold"` // Peak below which a block is silenced (0 disables).
}

// FeatureConfig mirrors analysis.Settings plus the context window size.
type FeatureConfig struct {
	SampleRate   int     `yaml:"sample_rate"`
	HopLength    int     `yaml:"hop_length"`
	WindowLength int     `yaml:"window_length"`
	FFTSize      int     `yaml:"n_fft"`
	MelBands     int     `yaml:"n_mels"`
	MinHz        float64 `yaml:"f_min"`
	MaxHz        float64 `yaml:"f_max"`
	Window       string  `yaml:"window"`
	ContextSize  int     `yaml:"context_size"` // Frames handed to the model per call.
}

// ModelConfig locates the model and the runtime that executes it.
type ModelConfig struct {
	Path           string `yaml:"path"`
	RuntimeLibrary string `yaml:"runtime_library"` // onnxruntime shared library.
	IntraOpThreads int    `yaml:"intra_op_threads"`
}

// RecordingConfig controls capture-to-WAV.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`
	OutputDir string `yaml:"output_dir"`
	File      string `yaml:"file"` // Explicit output path; generated in OutputDir when empty.
	BitDepth  int    `yaml:"bit_depth"`
}

// TransportConfig selects where predictions are sent.
type TransportConfig struct {
	UDPEnabled       bool          `yaml:"udp_enabled"`
	UDPTargetAddress string        `yaml:"udp_target_address"`
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`
	WebSocketEnabled bool          `yaml:"websocket_enabled"`
	WebSocketAddress string        `yaml:"websocket_address"` // Also serves /metrics.
}

// LoadConfig builds the configuration from defaults, then the YAML file at
// path (or ./config.yaml when path is empty and it exists), then LIPSYNC_*
// environment variables, and validates the result.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section and returns the first problem found.
func (c *Config) Validate() error {
	if _, ok := log.ParseLevel(c.LogLevel); !ok && c.LogLevel != "" {
		return fmt.Errorf("%w: unknown log_level %q", ErrInvalidConfig, c.LogLevel)
	}

	a := c.Audio
	switch {
	case a.InputDevice < MinDeviceID:
		return fmt.Errorf("%w: audio.input_device %d below %d", ErrInvalidConfig, a.InputDevice, MinDeviceID)
	case a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate:
		return fmt.Errorf("%w: audio.sample_rate %.0f outside [%d, %d]", ErrInvalidConfig, a.SampleRate, MinSampleRate, MaxSampleRate)
	case a.FramesPerBuffer <= 0 || a.FramesPerBuffer > MaxBufferFrames:
		return fmt.Errorf("%w: audio.frames_per_buffer %d outside (0, %d]", ErrInvalidConfig, a.FramesPerBuffer, MaxBufferFrames)
	case a.InputChannels < 1:
		return fmt.Errorf("%w: audio.input_channels must be at least 1", ErrInvalidConfig)
	case a.GateThreshold < 0 || a.GateThreshold >= 1:
		return fmt.Errorf("%w: audio.gate_threshold %g outside [0, 1)", ErrInvalidConfig, a.GateThreshold)
	}

	f := c.Features
	if !bitint.IsPowerOfTwo(f.FFTSize) {
		return fmt.Errorf("%w: features.n_fft must be a power of 2, got %d", ErrInvalidConfig, f.FFTSize)
	}
	if _, err := f.Settings(); err != nil {
		return fmt.Errorf("%w: features: %w", ErrInvalidConfig, err)
	}
	if f.MaxHz > float64(f.SampleRate)/2 {
		return fmt.Errorf("%w: features.f_max %.0f above Nyquist %.0f", ErrInvalidConfig, f.MaxHz, float64(f.SampleRate)/2)
	}
	if f.ContextSize <= 0 || f.ContextSize > MaxContextSize {
		return fmt.Errorf("%w: features.context_size %d outside (0, %d]", ErrInvalidConfig, f.ContextSize, MaxContextSize)
	}

	switch c.Recording.BitDepth {
	case 16, 24, 32:
	default:
		return fmt.Errorf("%w: recording.bit_depth must be 16, 24 or 32, got %d", ErrInvalidConfig, c.Recording.BitDepth)
	}

	t := c.Transport
	if t.UDPEnabled {
		if t.UDPTargetAddress == "" {
			return fmt.Errorf("%w: transport.udp_target_address must be set when UDP is enabled", ErrInvalidConfig)
		}
		if t.UDPSendInterval <= 0 {
			return fmt.Errorf("%w: transport.udp_send_interval must be positive when UDP is enabled", ErrInvalidConfig)
		}
	}
	if t.WebSocketEnabled && t.WebSocketAddress == "" {
		return fmt.Errorf("%w: transport.websocket_address must be set when the websocket is enabled", ErrInvalidConfig)
	}

	if c.Model.IntraOpThreads < 0 {
		return fmt.Errorf("%w: model.intra_op_threads must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Settings converts the feature section for the frame processor.
func (f FeatureConfig) Settings() (analysis.Settings, error) {
	w, err := analysis.ParseWindowFunc(f.Window)
	if err != nil {
		return analysis.Settings{}, err
	}
	s := analysis.Settings{
		SampleRate:   f.SampleRate,
		HopLength:    f.HopLength,
		WindowLength: f.WindowLength,
		FFTSize:      f.FFTSize,
		MelBands:     f.MelBands,
		MinHz:        f.MinHz,
		MaxHz:        f.MaxHz,
		Window:       w,
	}
	return s, s.Validate()
}

// applyEnvOverrides reads LIPSYNC_* variables. Unparsable values are
// logged and ignored.
func (c *Config) applyEnvOverrides() {
	envBool("LIPSYNC_DEBUG", &c.Debug)
	envString("LIPSYNC_LOG_LEVEL", &c.LogLevel)

	envInt("LIPSYNC_DEVICE", &c.Audio.InputDevice)
	envInt("LIPSYNC_CONTEXT", &c.Features.ContextSize)

	envString("LIPSYNC_MODEL", &c.Model.Path)
	envString("LIPSYNC_ORT_LIB", &c.Model.RuntimeLibrary)

	envBool("LIPSYNC_UDP_ENABLED", &c.Transport.UDPEnabled)
	envString("LIPSYNC_UDP_TARGET_ADDRESS", &c.Transport.UDPTargetAddress)
	if val, ok := os.LookupEnv("LIPSYNC_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			c.Transport.UDPSendInterval = dur
			log.Infof("Config: overriding transport.udp_send_interval from env: %s", dur)
		} else {
			log.Warnf("Config: ignoring LIPSYNC_UDP_SEND_INTERVAL=%q: %v", val, err)
		}
	}
	envString("LIPSYNC_WS_ADDRESS", &c.Transport.WebSocketAddress)
}

func envString(key string, dst *string) {
	if val, ok := os.LookupEnv(key); ok {
		*dst = val
		log.Infof("Config: overriding %s from env: %s", key, val)
	}
}

func envBool(key string, dst *bool) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		log.Warnf("Config: ignoring %s=%q: %v", key, val, err)
		return
	}
	*dst = b
	log.Infof("Config: overriding %s from env: %v", key, b)
}

func envInt(key string, dst *int) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		log.Warnf("Config: ignoring %s=%q: %v", key, val, err)
		return
	}
	*dst = n
	log.Infof("Config: overriding %s from env: %d", key, n)
}
