// SPDX-License-Identifier: MIT

// Package tui holds the Bubble Tea front ends: an input device picker run
// before capture and the live viseme meter.
package tui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"lipsync/internal/audio"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)
)

var (
	keyQuit   = key.NewBinding(key.WithKeys("q", "ctrl+c"))
	keyUp     = key.NewBinding(key.WithKeys("up", "k"))
	keyDown   = key.NewBinding(key.WithKeys("down", "j"))
	keyEnter  = key.NewBinding(key.WithKeys("enter"))
	keyBack   = key.NewBinding(key.WithKeys("esc"))
	rateTable = []float64{16000, 22050, 44100, 48000, 88200, 96000}
)

type pickerScreen int

const (
	deviceScreen pickerScreen = iota
	rateScreen
)

// Choice is the device and capture rate picked by the user.
type Choice struct {
	DeviceID   int
	SampleRate float64
}

// DevicePicker lists input devices and lets the user choose one and a
// capture rate.
type DevicePicker struct {
	devices  []audio.Device // input-capable only
	cursor   int
	rates    []float64
	rate     int
	screen   pickerScreen
	viewport viewport.Model
	ready    bool

	choice *Choice
}

// NewDevicePicker keeps the devices that can capture.
func NewDevicePicker(devices []audio.Device) DevicePicker {
	var inputs []audio.Device
	for _, d := range devices {
		if d.MaxInputChannels > 0 {
			inputs = append(inputs, d)
		}
	}
	return DevicePicker{devices: inputs}
}

// Choice returns the confirmed selection, if any.
func (m DevicePicker) Choice() (Choice, bool) {
	if m.choice == nil {
		return Choice{}, false
	}
	return *m.choice, true
}

func (m DevicePicker) Init() tea.Cmd { return nil }

func (m DevicePicker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}

	case tea.KeyMsg:
		if key.Matches(msg, keyQuit) {
			return m, tea.Quit
		}
		if m.screen == deviceScreen {
			switch {
			case key.Matches(msg, keyUp):
				m.cursor = max(m.cursor-1, 0)
			case key.Matches(msg, keyDown):
				m.cursor = max(min(m.cursor+1, len(m.devices)-1), 0)
			case key.Matches(msg, keyEnter):
				if len(m.devices) == 0 {
					return m, nil
				}
				m.rates, m.rate = ratesFor(m.devices[m.cursor].DefaultSampleRate)
				m.screen = rateScreen
			}
		} else {
			switch {
			case key.Matches(msg, keyBack):
				m.screen = deviceScreen
			case key.Matches(msg, keyUp):
				m.rate = max(m.rate-1, 0)
			case key.Matches(msg, keyDown):
				m.rate = min(m.rate+1, len(m.rates)-1)
			case key.Matches(msg, keyEnter):
				m.choice = &Choice{DeviceID: m.devices[m.cursor].ID, SampleRate: m.rates[m.rate]}
				return m, tea.Quit
			}
		}
	}

	if m.ready {
		m.viewport.SetContent(m.body())
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// ratesFor returns the selectable rates with the device default included
// and selected.
func ratesFor(def float64) ([]float64, int) {
	rates := slices.Clone(rateTable)
	if def > 0 && !slices.Contains(rates, def) {
		rates = append(rates, def)
		slices.Sort(rates)
	}
	i := slices.Index(rates, def)
	return rates, max(i, 0)
}

func (m DevicePicker) View() string {
	if !m.ready {
		return "Initializing..."
	}
	title, help := titleStyle.Render("Input Devices"), infoStyle.Render("↑/↓: Navigate • Enter: Select • q: Quit")
	if m.screen == rateScreen {
		title, help = titleStyle.Render("Capture Rate"), infoStyle.Render("↑/↓: Change • Enter: Start • Esc: Back • q: Quit")
	}
	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

func (m DevicePicker) body() string {
	if len(m.devices) == 0 {
		return "No input devices found."
	}
	var sb strings.Builder
	if m.screen == rateScreen {
		fmt.Fprintf(&sb, "Device: %s\n\n", m.devices[m.cursor].Name)
		for i, r := range m.rates {
			line := fmt.Sprintf("    %.0f Hz\n", r)
			if i == m.rate {
				line = highlightStyle.Render(fmt.Sprintf("  ▶ %.0f Hz", r)) + "\n"
			}
			sb.WriteString(line)
		}
		return sb.String()
	}
	for i, d := range m.devices {
		entry := fmt.Sprintf("[%d] %s\n    %d input channels, %.0f Hz, latency %.1f-%.1fms\n",
			d.ID, d.Name, d.MaxInputChannels, d.DefaultSampleRate, d.LowInputLatency, d.HighInputLatency)
		if i == m.cursor {
			entry = highlightStyle.Render(entry)
		}
		sb.WriteString(entry)
		sb.WriteString("\n")
	}
	return sb.String()
}

// PickDevice runs the picker full screen and returns the selection. ok is
// false when the user quit without choosing.
func PickDevice(devices []audio.Device) (choice Choice, ok bool, err error) {
	final, err := tea.NewProgram(NewDevicePicker(devices), tea.WithAltScreen()).Run()
	if err != nil {
		return Choice{}, false, err
	}
	choice, ok = final.(DevicePicker).Choice()
	return choice, ok, nil
}
