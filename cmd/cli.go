// SPDX-License-Identifier: MIT

// Package cmd parses the command line into a loaded configuration and the
// command to run.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"lipsync/internal/config"
	"lipsync/pkg/build"
)

// Commands selected by ParseArgs.
const (
	CommandRun  = ""
	CommandList = "list"
	CommandFile = "file"
)

// Options is the parsed command line.
type Options struct {
	Config  *config.Config
	Command string
	Input   string // WAV path for the file command
	Block   int    // Frames per block for the file command
	Pick    bool   // Choose the input device interactively
}

// flagValues collects raw flag values; only flags the user set override
// the loaded configuration.
type flagValues struct {
	configPath      string
	device          int
	channels        int
	sampleRate      float64
	framesPerBuffer int
	lowLatency      bool
	gate            float64
	model           string
	ortLib          string
	contextSize     int
	window          string
	record          bool
	output          string
	tui             bool
	ws              string
	udp             string
	verbose         bool
}

// ParseArgs parses args (without the program name). It returns nil
// Options with a nil error when help or version output was requested.
func ParseArgs(args []string) (*Options, error) {
	info := build.GetBuildFlags()
	opts := &Options{Block: 1024}
	var v flagValues
	ran := false

	rootCmd := &cobra.Command{
		Use:           info.Name,
		Short:         info.Description,
		Version:       info.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Command = CommandRun
			ran = true
			return nil
		},
	}
	rootCmd.SetVersionTemplate(info.String() + "\n")
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})
	if args == nil {
		args = []string{} // cobra falls back to os.Args on nil
	}
	rootCmd.SetArgs(args)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			opts.Command = CommandList
			ran = true
		},
	})

	fileCmd := &cobra.Command{
		Use:   "file <input.wav>",
		Short: "Run the pipeline over a WAV file and print predictions as JSON lines",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			opts.Command = CommandFile
			opts.Input = args[0]
			ran = true
		},
	}
	fileCmd.Flags().IntVar(&opts.Block, "block", opts.Block, "Frames per block fed to the pipeline")
	rootCmd.AddCommand(fileCmd)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&v.configPath, "config", "", "Path to a YAML configuration file (default ./config.yaml if present)")

	// Capture
	flags.IntVarP(&v.device, "device", "d", config.DefaultDeviceID,
		"Input device ID. Use the 'list' command to see available devices.")
	flags.IntVarP(&v.channels, "channels", "c", config.DefaultInputChannels,
		"Number of input channels (1=mono, 2=stereo)")
	flags.Float64VarP(&v.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Capture sample rate in Hz")
	flags.IntVarP(&v.framesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"Frames per callback (affects latency)")
	flags.BoolVarP(&v.lowLatency, "low-latency", "l", config.DefaultLowLatency,
		"Use the device's low input latency")
	flags.Float64Var(&v.gate, "gate", config.DefaultGateThreshold,
		"Noise gate threshold as a fraction of full scale (0 disables)")
	rootCmd.Flags().BoolVar(&opts.Pick, "pick", false, "Choose the input device and rate interactively")

	// Model and features
	flags.StringVarP(&v.model, "model", "m", "", "Path to the ONNX viseme model")
	flags.StringVar(&v.ortLib, "ort-lib", "", "Path to the onnxruntime shared library")
	flags.IntVar(&v.contextSize, "context", config.DefaultContextSize, "Context window in frames")
	flags.StringVar(&v.window, "window", config.DefaultWindow, "Analysis window function")

	// Recording
	flags.BoolVarP(&v.record, "record", "r", false, "Record the raw input to WAV")
	flags.StringVarP(&v.output, "output", "o", "",
		"Recording file (default <output_dir>/lipsync-<time>-<id>.wav)")

	// Output
	flags.BoolVarP(&v.tui, "tui", "t", false, "Show the live viseme meter")
	flags.StringVar(&v.ws, "ws", "", "Serve predictions over WebSocket on this address (e.g. :8080)")
	flags.StringVar(&v.udp, "udp", "", "Publish binary viseme packets to this UDP address")
	flags.BoolVarP(&v.verbose, "verbose", "v", false, "Show verbose output")

	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	if !ran {
		return nil, nil
	}

	cfg, err := config.LoadConfig(v.configPath)
	if err != nil {
		return nil, err
	}
	v.apply(cfg, flags)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("after applying flags: %w", err)
	}
	opts.Config = cfg
	return opts, nil
}

// apply copies every flag the user set onto cfg.
func (v *flagValues) apply(cfg *config.Config, flags *pflag.FlagSet) {
	changed := flags.Changed
	if changed("device") {
		cfg.Audio.InputDevice = v.device
	}
	if changed("channels") {
		cfg.Audio.InputChannels = v.channels
	}
	if changed("sample-rate") {
		cfg.Audio.SampleRate = v.sampleRate
	}
	if changed("frames-per-buffer") {
		cfg.Audio.FramesPerBuffer = v.framesPerBuffer
	}
	if changed("low-latency") {
		cfg.Audio.LowLatency = v.lowLatency
	}
	if changed("gate") {
		cfg.Audio.GateThreshold = v.gate
	}
	if changed("model") {
		cfg.Model.Path = v.model
	}
	if changed("ort-lib") {
		cfg.Model.RuntimeLibrary = v.ortLib
	}
	if changed("context") {
		cfg.Features.ContextSize = v.contextSize
	}
	if changed("window") {
		cfg.Features.Window = v.window
	}
	if changed("record") {
		cfg.Recording.Enabled = v.record
	}
	if changed("output") {
		cfg.Recording.File = v.output
		cfg.Recording.Enabled = true
	}
	if changed("tui") {
		cfg.TUI = v.tui
	}
	if changed("ws") {
		cfg.Transport.WebSocketAddress = v.ws
		cfg.Transport.WebSocketEnabled = v.ws != ""
	}
	if changed("udp") {
		cfg.Transport.UDPTargetAddress = v.udp
		cfg.Transport.UDPEnabled = v.udp != ""
	}
	if changed("verbose") {
		cfg.Debug = v.verbose
	}
}
