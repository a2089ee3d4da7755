// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/stat"

	"lipsync/internal/mel"
	"lipsync/pkg/utils"
)

func newTestProcessor(t testing.TB) *FrameProcessor {
	t.Helper()
	p, err := NewFrameProcessor(DefaultSettings())
	if err != nil {
		t.Fatalf("NewFrameProcessor() error = %v", err)
	}
	return p
}

// referenceFrame computes the expected features for one full window using
// gonum's real FFT in place of the in-house transform.
func referenceFrame(s Settings, span []float64) []float64 {
	seq := make([]float64, s.FFTSize)
	copy(seq, span)
	win := make([]float64, s.WindowLength)
	for i := range win {
		win[i] = 1
	}
	window.Hann(win)
	for i := range win {
		seq[i] *= win[i]
	}

	coeffs := fourier.NewFFT(s.FFTSize).Coefficients(nil, seq)
	power := make([]float64, len(coeffs))
	for k, c := range coeffs {
		power[k] = real(c)*real(c) + imag(c)*imag(c)
	}

	bank := mel.New(mel.Params{SampleRate: s.SampleRate, FFTSize: s.FFTSize, Bands: s.MelBands, MinHz: s.MinHz, MaxHz: s.MaxHz})
	bands := make([]float64, s.MelBands)
	bank.Apply(bands, power)
	for i := range bands {
		bands[i] = 10 * math.Log10(math.Max(bands[i], 1e-10))
	}
	mean, std := stat.PopMeanStdDev(bands, nil)
	std = math.Max(std, 1e-8)
	for i := range bands {
		bands[i] = (bands[i] - mean) / std
	}
	return bands
}

func TestSettingsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"zero sample rate", func(s *Settings) { s.SampleRate = 0 }},
		{"no bands", func(s *Settings) { s.MelBands = 0 }},
		{"zero hop", func(s *Settings) { s.HopLength = 0 }},
		{"hop longer than window", func(s *Settings) { s.HopLength = 500 }},
		{"window longer than fft", func(s *Settings) { s.WindowLength = 2048 }},
		{"inverted range", func(s *Settings) { s.MinHz, s.MaxHz = 8000, 50 }},
		{"negative min", func(s *Settings) { s.MinHz = -1 }},
		{"tiny window", func(s *Settings) { s.WindowLength, s.HopLength = 1, 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(&s)
			if err := s.Validate(); !errors.Is(err, ErrInvalidSettings) {
				t.Errorf("Validate() = %v, want ErrInvalidSettings", err)
			}
		})
	}

	if err := DefaultSettings().Validate(); err != nil {
		t.Errorf("DefaultSettings().Validate() = %v", err)
	}
}

func TestNewFrameProcessorRejectsNonPowerOfTwo(t *testing.T) {
	s := DefaultSettings()
	s.FFTSize = 1000
	if _, err := NewFrameProcessor(s); !errors.Is(err, ErrInvalidSettings) {
		t.Errorf("NewFrameProcessor(fft=1000) error = %v, want ErrInvalidSettings", err)
	}
}

func TestProcessFrameMatchesReference(t *testing.T) {
	p := newTestProcessor(t)
	s := p.Settings()

	signal := utils.GenerateComplexWave(s.HopLength*12, float64(s.SampleRate))
	for k := range 12 {
		got, err := p.ProcessFrame(signal[k*s.HopLength : (k+1)*s.HopLength])
		if err != nil {
			t.Fatalf("hop %d: %v", k, err)
		}

		// The frame ends at the last sample delivered and reaches back one
		// window, with silence before the stream started.
		end := (k + 1) * s.HopLength
		span := make([]float64, s.WindowLength)
		for i := range span {
			if idx := end - s.WindowLength + i; idx >= 0 {
				span[i] = float64(signal[idx])
			}
		}
		want := referenceFrame(s, span)

		for i := range want {
			if math.Abs(float64(got[i])-want[i]) > 1e-3 {
				t.Fatalf("hop %d band %d = %v, reference %v", k, i, got[i], want[i])
			}
		}
	}
}

func TestProcessFrameIsNormalised(t *testing.T) {
	p := newTestProcessor(t)
	s := p.Settings()
	signal := utils.GenerateSineWave(s.HopLength*5, float64(s.SampleRate), 440)

	var frame []float32
	for k := range 5 {
		var err error
		if frame, err = p.ProcessFrame(signal[k*s.HopLength : (k+1)*s.HopLength]); err != nil {
			t.Fatal(err)
		}
	}

	values := make([]float64, len(frame))
	for i, v := range frame {
		values[i] = float64(v)
	}
	mean, std := stat.PopMeanStdDev(values, nil)
	if math.Abs(mean) > 1e-5 {
		t.Errorf("mean = %v, want ~0", mean)
	}
	if math.Abs(std-1) > 1e-4 {
		t.Errorf("std = %v, want ~1", std)
	}
}

func TestProcessFrameSilenceIsZero(t *testing.T) {
	p := newTestProcessor(t)
	silence := make([]float32, p.Settings().HopLength)
	for range 4 {
		frame, err := p.ProcessFrame(silence)
		if err != nil {
			t.Fatal(err)
		}
		for i, v := range frame {
			if v != 0 {
				t.Fatalf("band %d = %v, want 0", i, v)
			}
		}
	}
}

func TestProcessFrameSizeMismatchKeepsOverlap(t *testing.T) {
	s := DefaultSettings()
	signal := utils.GenerateComplexWave(s.HopLength*2, float64(s.SampleRate))
	first, second := signal[:s.HopLength], signal[s.HopLength:]

	clean := newTestProcessor(t)
	if _, err := clean.ProcessFrame(first); err != nil {
		t.Fatal(err)
	}
	want, err := clean.ProcessFrame(second)
	if err != nil {
		t.Fatal(err)
	}

	p := newTestProcessor(t)
	if _, err := p.ProcessFrame(first); err != nil {
		t.Fatal(err)
	}
	for _, n := range []int{0, 1, s.HopLength - 1, s.HopLength + 1} {
		if _, err := p.ProcessFrame(make([]float32, n)); !errors.Is(err, ErrInputSizeMismatch) {
			t.Errorf("ProcessFrame(%d samples) error = %v, want ErrInputSizeMismatch", n, err)
		}
	}
	got, err := p.ProcessFrame(second)
	if err != nil {
		t.Fatal(err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("band %d = %v after rejected input, want %v", i, got[i], want[i])
		}
	}
}

func TestResetIsDeterministic(t *testing.T) {
	p := newTestProcessor(t)
	s := p.Settings()
	signal := utils.GenerateComplexWave(s.HopLength*6, float64(s.SampleRate))

	run := func() [][]float32 {
		var out [][]float32
		for k := range 6 {
			frame, err := p.ProcessFrame(signal[k*s.HopLength : (k+1)*s.HopLength])
			if err != nil {
				t.Fatal(err)
			}
			out = append(out, frame)
		}
		return out
	}

	a := run()
	p.Reset()
	b := run()
	for k := range a {
		for i := range a[k] {
			if a[k][i] != b[k][i] {
				t.Fatalf("frame %d band %d differs after Reset: %v vs %v", k, i, a[k][i], b[k][i])
			}
		}
	}
}

func TestSettersRecomputeAndValidate(t *testing.T) {
	p := newTestProcessor(t)

	if err := p.SetMelBands(40); err != nil {
		t.Fatal(err)
	}
	frame, err := p.ProcessFrame(make([]float32, p.Settings().HopLength))
	if err != nil {
		t.Fatal(err)
	}
	if len(frame) != 40 {
		t.Errorf("len(frame) = %d after SetMelBands(40)", len(frame))
	}

	if err := p.SetHopLength(320); err != nil {
		t.Fatal(err)
	}
	if len(p.overlap) != 80 {
		t.Errorf("overlap length = %d, want 80", len(p.overlap))
	}

	before := p.Settings()
	bad := []struct {
		name string
		set  func() error
	}{
		{"fft not power of two", func() error { return p.SetFFTSize(1000) }},
		{"fft smaller than window", func() error { return p.SetFFTSize(256) }},
		{"hop above window", func() error { return p.SetHopLength(401) }},
		{"window below hop", func() error { return p.SetWindowLength(100) }},
		{"zero bands", func() error { return p.SetMelBands(0) }},
		{"empty range", func() error { return p.SetFrequencyRange(100, 100) }},
		{"zero rate", func() error { return p.SetSampleRate(0) }},
	}
	for _, tt := range bad {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.set(); !errors.Is(err, ErrInvalidSettings) {
				t.Errorf("error = %v, want ErrInvalidSettings", err)
			}
			if p.Settings() != before {
				t.Errorf("settings changed to %+v", p.Settings())
			}
		})
	}
}

func TestSetterClearsOverlap(t *testing.T) {
	p := newTestProcessor(t)
	s := p.Settings()
	if _, err := p.ProcessFrame(utils.GenerateSineWave(s.HopLength, float64(s.SampleRate), 1000)); err != nil {
		t.Fatal(err)
	}
	if err := p.SetFrequencyRange(80, 7600); err != nil {
		t.Fatal(err)
	}
	for i, v := range p.overlap {
		if v != 0 {
			t.Fatalf("overlap[%d] = %v after reconfigure, want 0", i, v)
		}
	}
}

func TestWindowCoefficientsMatchHann(t *testing.T) {
	const n = 400
	coeffs := windowCoefficients(n, Hann)
	for i, c := range coeffs {
		want := 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
		if math.Abs(c-want) > 1e-12 {
			t.Fatalf("coeff %d = %v, want %v", i, c, want)
		}
	}
}

func TestParseWindowFunc(t *testing.T) {
	tests := []struct {
		in      string
		want    WindowFunc
		wantErr bool
	}{
		{"hann", Hann, false},
		{"Hanning", Hann, false},
		{"", Hann, false},
		{"HAMMING", Hamming, false},
		{"blackman", Blackman, false},
		{"nuttall", Nuttall, false},
		{"triangle", Hann, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseWindowFunc(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseWindowFunc(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseWindowFunc(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
	if Hamming.String() != "hamming" {
		t.Errorf("Hamming.String() = %q", Hamming.String())
	}
}

func TestProcessFrameIntoHotPath(t *testing.T) {
	p := newTestProcessor(t)
	s := p.Settings()
	samples := utils.GenerateComplexWave(s.HopLength, float64(s.SampleRate))
	dst := make([]float32, s.MelBands)

	if err := p.ProcessFrameInto(dst, samples); err != nil {
		t.Fatal(err)
	}
	allocs := testing.AllocsPerRun(100, func() {
		_ = p.ProcessFrameInto(dst, samples)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in ProcessFrameInto hot path, got %.1f", allocs)
	}
}

func BenchmarkProcessFrameInto(b *testing.B) {
	p := newTestProcessor(b)
	s := p.Settings()
	samples := utils.GenerateComplexWave(s.HopLength, float64(s.SampleRate))
	dst := make([]float32, s.MelBands)

	b.ReportAllocs()
	for b.Loop() {
		_ = p.ProcessFrameInto(dst, samples)
	}
}
