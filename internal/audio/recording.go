// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"

	"lipsync/internal/log"
)

// ErrAlreadyRecording is returned by StartRecording while a recording runs.
var ErrAlreadyRecording = errors.New("already recording")

// Recorder writes interleaved float32 capture to a PCM WAV file.
type Recorder struct {
	path  string
	file  *os.File
	enc   *wav.Encoder
	buf   *audio.IntBuffer
	scale float64
}

// NewRecorder creates path and writes a WAV header for the given layout.
// bitDepth is 16, 24 or 32.
func NewRecorder(path string, sampleRate, channels, bitDepth int) (*Recorder, error) {
	switch bitDepth {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("unsupported bit depth %d", bitDepth)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create recording directory: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	return &Recorder{
		path: path,
		file: file,
		enc:  wav.NewEncoder(file, sampleRate, bitDepth, channels, 1),
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
			SourceBitDepth: bitDepth,
		},
		scale: float64(int64(1)<<(bitDepth-1) - 1),
	}, nil
}

// RecordingPath returns dir/lipsync-<time>-<id>.wav.
func RecordingPath(dir string, now time.Time) string {
	id := uuid.New().String()[:8]
	return filepath.Join(dir, fmt.Sprintf("lipsync-%s-%s.wav", now.Format("20060102-150405"), id))
}

// Path returns the file being written.
func (r *Recorder) Path() string { return r.path }

// Write appends interleaved samples, clipping to [-1, 1].
func (r *Recorder) Write(samples []float32) error {
	if cap(r.buf.Data) < len(samples) {
		r.buf.Data = make([]int, len(samples))
	}
	r.buf.Data = r.buf.Data[:len(samples)]
	for i, s := range samples {
		v := min(max(float64(s), -1), 1)
		r.buf.Data[i] = int(v * r.scale)
	}
	return r.enc.Write(r.buf)
}

// Close finalises the WAV header and closes the file.
func (r *Recorder) Close() error {
	encErr := r.enc.Close()
	fileErr := r.file.Close()
	return errors.Join(encErr, fileErr)
}

// StartRecording starts writing raw capture to path. An empty path
// generates one in the configured recording directory.
func (e *Engine) StartRecording(path string) error {
	e.recMu.Lock()
	defer e.recMu.Unlock()
	if e.recorder != nil {
		return ErrAlreadyRecording
	}
	if path == "" {
		path = RecordingPath(e.recording.OutputDir, time.Now())
	}
	rec, err := NewRecorder(path, e.sampleRate, e.channels, e.recording.BitDepth)
	if err != nil {
		return fmt.Errorf("start recording: %w", err)
	}
	e.recorder = rec
	log.Infof("Engine: recording input to %s", path)
	return nil
}

// StopRecording closes the current recording, if any.
func (e *Engine) StopRecording() error {
	e.recMu.Lock()
	defer e.recMu.Unlock()
	if e.recorder == nil {
		return nil
	}
	err := e.recorder.Close()
	log.Infof("Engine: recording saved to %s", e.recorder.Path())
	e.recorder = nil
	return err
}

// Recording reports whether capture is being written to disk.
func (e *Engine) Recording() bool {
	e.recMu.Lock()
	defer e.recMu.Unlock()
	return e.recorder != nil
}

func (e *Engine) record(samples []float32) {
	e.recMu.Lock()
	defer e.recMu.Unlock()
	if e.recorder == nil {
		return
	}
	if err := e.recorder.Write(samples); err != nil {
		e.warn.Do(func() { log.Errorf("Engine: writing recording: %v", err) })
	}
}
