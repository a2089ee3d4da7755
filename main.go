// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"lipsync/cmd"
	"lipsync/internal/audio"
	"lipsync/internal/config"
	"lipsync/internal/inference"
	"lipsync/internal/lipsync"
	"lipsync/internal/log"
	"lipsync/internal/metrics"
	"lipsync/internal/transport"
	"lipsync/internal/transport/udp"
	"lipsync/internal/tui"
	"lipsync/pkg/build"
)

// main runs in three phases:
//
//  1. Startup (cold path): build info, flags and config, PortAudio, the
//     model and the output transports.
//  2. Capture (hot path): the PortAudio callback drives the pipeline
//     while the TUI, WebSocket server and UDP publisher run alongside.
//  3. Shutdown (cold path): on SIGINT/SIGTERM or when the TUI quits,
//     stop the stream, finish the recording and close every sink.
func main() {
	if err := build.Initialize(); err != nil {
		log.Debugf("Build: development build: %v", err)
	}

	opts, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}
	if opts == nil {
		return // help or version
	}
	cfg := opts.Config
	if !log.Configure(cfg.LogLevel, cfg.Debug) {
		log.Warnf("Config: unknown log level %q, using info", cfg.LogLevel)
	}

	switch opts.Command {
	case cmd.CommandList:
		err = listDevices()
	case cmd.CommandFile:
		err = processFile(cfg, opts.Input, opts.Block)
	default:
		err = run(cfg, opts.Pick)
	}
	if err != nil {
		log.Fatalf("%v", err)
	}
}

func listDevices() error {
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()
	return audio.ListDevices(os.Stdout)
}

// newPipeline builds the streaming context and loads the configured model.
func newPipeline(cfg *config.Config, m *metrics.Metrics) (*lipsync.Context, inference.Engine, error) {
	settings, err := cfg.Features.Settings()
	if err != nil {
		return nil, nil, err
	}
	engine := inference.NewONNX(inference.ONNXOptions{
		LibraryPath:    cfg.Model.RuntimeLibrary,
		IntraOpThreads: cfg.Model.IntraOpThreads,
	})
	pipeline, err := lipsync.NewContext(
		lipsync.WithSettings(settings),
		lipsync.WithContextSize(cfg.Features.ContextSize),
		lipsync.WithEngine(engine),
		lipsync.WithMetrics(m),
	)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Model.Path == "" {
		log.Warnf("Model: no model configured, features are computed but no visemes are predicted")
		return pipeline, engine, nil
	}
	if err := pipeline.LoadModel(cfg.Model.Path); err != nil {
		engine.Close()
		return nil, nil, err
	}
	return pipeline, engine, nil
}

// processFile prints one JSON line per prediction.
func processFile(cfg *config.Config, path string, block int) error {
	pipeline, engine, err := newPipeline(cfg, nil)
	if err != nil {
		return err
	}
	defer engine.Close()

	enc := json.NewEncoder(os.Stdout)
	return audio.ProcessFile(path, pipeline, block, cfg.Visemes, func(p lipsync.Prediction) error {
		return enc.Encode(p)
	})
}

func run(cfg *config.Config, pick bool) error {
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	if pick {
		devices, err := audio.HostDevices()
		if err != nil {
			return err
		}
		choice, ok, err := tui.PickDevice(devices)
		if err != nil || !ok {
			return err
		}
		cfg.Audio.InputDevice = choice.DeviceID
		cfg.Audio.SampleRate = choice.SampleRate
	}

	m := metrics.New()
	pipeline, model, err := newPipeline(cfg, m)
	if err != nil {
		return err
	}
	defer model.Close()

	var sinks []transport.Transport
	defer func() {
		if err := transport.Multi(sinks).Close(); err != nil {
			log.Errorf("Transport: %v", err)
		}
	}()

	if cfg.Transport.WebSocketEnabled {
		ws, err := transport.NewWebSocketTransport(cfg.Transport.WebSocketAddress, map[string]http.Handler{
			"/metrics": m.Handler(),
		})
		if err != nil {
			return err
		}
		sinks = append(sinks, ws)
	}
	if cfg.Debug {
		sinks = append(sinks, transport.NewLoggingTransport())
	}

	var program *tea.Program
	if cfg.TUI {
		status := fmt.Sprintf("device %d • %.0f Hz • %d-frame context", cfg.Audio.InputDevice, cfg.Audio.SampleRate, cfg.Features.ContextSize)
		program = tea.NewProgram(tui.NewMeter(cfg.Visemes, status), tea.WithAltScreen())
		sinks = append(sinks, tui.NewTransport(program))
		restore, err := quietLogs(cfg.Debug)
		if err != nil {
			return err
		}
		defer restore()
	}

	engine, err := audio.NewEngine(cfg, pipeline, m, sinks...)
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			log.Errorf("Engine: closing: %v", err)
		}
	}()

	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			return err
		}
		defer sender.Close()
		publisher, err := udp.NewPublisher(cfg.Transport.UDPSendInterval, sender, engine)
		if err != nil {
			return err
		}
		publisher.Start()
		defer publisher.Close()
	}

	if cfg.Recording.Enabled {
		if err := engine.StartRecording(cfg.Recording.File); err != nil {
			return err
		}
	}

	// Hot path starts with the first callback.
	if err := engine.StartInputStream(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	if program != nil {
		g.Go(func() error {
			defer stop()
			_, err := program.Run()
			return err
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		if program != nil {
			program.Quit()
		}
		return nil
	})

	if program == nil {
		log.Infof("Capturing. Press Ctrl+C to stop.")
	}
	return g.Wait()
}

// quietLogs keeps log output off the terminal while the TUI owns it. In
// debug mode logs go to lipsync-debug.log instead of being dropped.
func quietLogs(debug bool) (restore func(), err error) {
	if !debug {
		log.SetOutput(io.Discard)
		return func() { log.SetOutput(os.Stderr) }, nil
	}
	f, err := os.OpenFile("lipsync-debug.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	log.SetOutput(f)
	return func() {
		log.SetOutput(os.Stderr)
		f.Close()
	}, nil
}
