// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"lipsync/internal/lipsync"
	"lipsync/internal/log"
)

// ErrInvalidWAV is returned for files the WAV decoder cannot read.
var ErrInvalidWAV = errors.New("not a valid WAV file")

// DefaultFileBlock is the block size used by ProcessFile when blockFrames
// is not positive.
const DefaultFileBlock = 1024

// ProcessFile streams the PCM WAV file at path through pipeline in
// blocks of blockFrames at the file's own sample rate, as the capture
// callback would. fn receives each prediction with its offset into the
// file; a non-nil error from fn stops processing and is returned.
func ProcessFile(path string, pipeline *lipsync.Context, blockFrames int, labels []string, fn func(lipsync.Prediction) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return fmt.Errorf("%s: %w", path, ErrInvalidWAV)
	}
	channels := int(dec.NumChans)
	sampleRate := int(dec.SampleRate)
	if channels < 1 || sampleRate <= 0 || dec.BitDepth == 0 || dec.BitDepth > 32 {
		return fmt.Errorf("%s: %w: %d channels, %d Hz, %d bit", path, ErrInvalidWAV, channels, sampleRate, dec.BitDepth)
	}
	if blockFrames <= 0 {
		blockFrames = DefaultFileBlock
	}
	log.Infof("File: %s (%d ch, %d Hz, %d bit)", path, channels, sampleRate, dec.BitDepth)

	buf := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:   make([]int, blockFrames*channels),
	}
	scale := 1 / float32(int64(1)<<(dec.BitDepth-1))
	samples := make([]float32, blockFrames*channels)
	block := make([]lipsync.Stereo, blockFrames)

	var (
		position int64
		sequence uint64
		start    = time.Now()
	)
	for {
		n, err := dec.PCMBuffer(buf)
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("%s: reading PCM: %w", path, err)
		}
		frames := n / channels
		if frames == 0 {
			break
		}
		for i, v := range buf.Data[:frames*channels] {
			samples[i] = float32(v) * scale
		}
		toStereo(block[:frames], samples[:frames*channels], channels)

		weights := pipeline.Process(block[:frames], sampleRate)
		position += int64(frames)
		if weights == nil {
			continue
		}
		sequence++
		offset := time.Duration(position) * time.Second / time.Duration(sampleRate)
		p := lipsync.NewPrediction(sequence, start.Add(offset), offset, weights, labels)
		if err := fn(p); err != nil {
			return err
		}
	}
	log.Debugf("File: %d frames, %d predictions", position, sequence)
	return nil
}
