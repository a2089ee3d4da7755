// SPDX-License-Identifier: MIT
package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"lipsync/internal/audio"
	"lipsync/internal/lipsync"
	"lipsync/internal/transport"
)

var testDevices = []audio.Device{
	{ID: 0, Name: "Speakers", MaxOutputChannels: 2, DefaultSampleRate: 44100},
	{ID: 1, Name: "USB Mic", MaxInputChannels: 1, DefaultSampleRate: 48000},
	{ID: 2, Name: "Headset", MaxInputChannels: 1, MaxOutputChannels: 2, DefaultSampleRate: 32000},
}

func press(m tea.Model, keys ...tea.KeyMsg) tea.Model {
	for _, k := range keys {
		m, _ = m.Update(k)
	}
	return m
}

var (
	down  = tea.KeyMsg{Type: tea.KeyDown}
	up    = tea.KeyMsg{Type: tea.KeyUp}
	enter = tea.KeyMsg{Type: tea.KeyEnter}
	esc   = tea.KeyMsg{Type: tea.KeyEsc}
)

func TestDevicePickerSelectsInputDevice(t *testing.T) {
	var m tea.Model = NewDevicePicker(testDevices)
	m, _ = m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})

	if view := m.View(); !strings.Contains(view, "USB Mic") || strings.Contains(view, "Speakers") {
		t.Errorf("device list should hold input devices only:\n%s", view)
	}

	// Headset defaults to 32kHz, which is added to the rate table.
	m = press(m, down, down, enter)
	if !strings.Contains(m.View(), "32000 Hz") {
		t.Errorf("rate screen missing device default:\n%s", m.View())
	}
	m = press(m, esc, up, enter, down, enter)

	choice, ok := m.(DevicePicker).Choice()
	if !ok {
		t.Fatal("no choice after confirming")
	}
	if choice.DeviceID != 1 || choice.SampleRate != 88200 {
		t.Errorf("choice = %+v, want device 1 at 88200 Hz", choice)
	}
}

func TestDevicePickerQuitWithoutChoice(t *testing.T) {
	m, cmd := NewDevicePicker(nil).Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Error("ctrl+c did not quit")
	}
	if _, ok := m.(DevicePicker).Choice(); ok {
		t.Error("choice reported after quitting")
	}
	m = press(NewDevicePicker(nil), down, enter)
	if _, ok := m.(DevicePicker).Choice(); ok {
		t.Error("choice reported with no devices")
	}
}

func TestRatesFor(t *testing.T) {
	rates, i := ratesFor(48000)
	if len(rates) != len(rateTable) || rates[i] != 48000 {
		t.Errorf("ratesFor(48000) = %v, %d", rates, i)
	}
	rates, i = ratesFor(11025)
	if rates[0] != 11025 || i != 0 {
		t.Errorf("ratesFor(11025) = %v, %d", rates, i)
	}
}

func TestMeterView(t *testing.T) {
	var m tea.Model = NewMeter([]string{"sil", "PP", "aa"}, "device 1 @ 48000 Hz")
	if !strings.Contains(m.View(), "waiting for speech") {
		t.Errorf("empty meter view:\n%s", m.View())
	}

	m, _ = m.Update(predictionMsg(lipsync.Prediction{Weights: []float32{0.1, 0.2, 0.7, 0.4}}))
	view := m.View()
	for _, want := range []string{"sil", "PP", "aa", "#3", "0.70", "1 predictions"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}

	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")}); cmd == nil {
		t.Error("q did not quit")
	}
}

type chanMessenger chan tea.Msg

func (c chanMessenger) Send(msg tea.Msg) { c <- msg }

func TestTransportKeepsNewest(t *testing.T) {
	out := make(chanMessenger)
	tr := NewTransport(out)

	// The forwarder blocks on the first message until it is read, so
	// later sends coalesce into the pending slot.
	for seq := uint64(1); seq <= 5; seq++ {
		if err := tr.Send(lipsync.Prediction{Seq: seq}); err != nil {
			t.Fatal(err)
		}
	}
	if err := tr.Send("not a prediction"); err != nil {
		t.Errorf("Send(string) = %v", err)
	}

	var last uint64
	timeout := time.After(2 * time.Second)
	for last != 5 {
		select {
		case msg := <-out:
			p := lipsync.Prediction(msg.(predictionMsg))
			if p.Seq <= last {
				t.Fatalf("seq %d after %d", p.Seq, last)
			}
			last = p.Seq
		case <-timeout:
			t.Fatalf("newest prediction never delivered, last seq %d", last)
		}
	}

	if err := tr.Close(); err != nil {
		t.Fatal(err)
	}
	if err := tr.Send(lipsync.Prediction{}); err != transport.ErrClosed {
		t.Errorf("Send after Close = %v, want ErrClosed", err)
	}
}
