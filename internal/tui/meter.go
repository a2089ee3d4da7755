// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"lipsync/internal/lipsync"
	"lipsync/internal/transport"
)

const (
	barWidth   = 40
	labelWidth = 6
)

var (
	barStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#25A065"))
	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F25D94")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
)

// predictionMsg carries one prediction into the program.
type predictionMsg lipsync.Prediction

// Meter renders one bar per viseme for the newest prediction.
type Meter struct {
	labels []string
	status string
	latest lipsync.Prediction
	count  uint64
	width  int
}

// NewMeter returns a meter for the given viseme labels. status is shown
// under the title.
func NewMeter(labels []string, status string) Meter {
	return Meter{labels: labels, status: status, width: barWidth}
}

func (m Meter) Init() tea.Cmd { return nil }

func (m Meter) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = min(max(msg.Width-labelWidth-12, 10), barWidth)
	case predictionMsg:
		m.latest = lipsync.Prediction(msg)
		m.count++
	}
	return m, nil
}

func (m Meter) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Visemes"))
	sb.WriteString("\n")
	sb.WriteString(dimStyle.Render(m.status))
	sb.WriteString("\n\n")

	best, _ := lipsync.Dominant(m.latest.Weights)
	for i, w := range m.latest.Weights {
		label := lipsync.Label(m.labels, i)
		if label == "" {
			label = fmt.Sprintf("#%d", i)
		}
		filled := int(min(max(w, 0), 1)*float32(m.width) + 0.5)
		bar := barStyle.Render(strings.Repeat("█", filled)) + dimStyle.Render(strings.Repeat("░", m.width-filled))
		name := fmt.Sprintf("%-*s", labelWidth, label)
		if i == best {
			name = activeStyle.Render(name)
		}
		fmt.Fprintf(&sb, "%s %s %5.2f\n", name, bar, w)
	}
	if len(m.latest.Weights) == 0 {
		sb.WriteString("waiting for speech...\n")
	}

	fmt.Fprintf(&sb, "\n%s\n", infoStyle.Render(fmt.Sprintf("%d predictions • t=%s • q: Quit", m.count, m.latest.Offset.Truncate(1e7))))
	return sb.String()
}

// Transport forwards predictions to a running meter. Send never blocks:
// when the program is behind, the pending prediction is replaced by the
// newer one.
type Transport struct {
	program messenger
	pending chan lipsync.Prediction
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

var _ transport.Transport = (*Transport)(nil)

// messenger is the part of *tea.Program the transport uses.
type messenger interface {
	Send(msg tea.Msg)
}

// NewTransport starts forwarding to program, normally a *tea.Program.
func NewTransport(program messenger) *Transport {
	t := &Transport{
		program: program,
		pending: make(chan lipsync.Prediction, 1),
		done:    make(chan struct{}),
	}
	t.wg.Add(1)
	go t.forward()
	return t
}

func (t *Transport) forward() {
	defer t.wg.Done()
	for {
		select {
		case p := <-t.pending:
			t.program.Send(predictionMsg(p))
		case <-t.done:
			return
		}
	}
}

// Send queues a lipsync.Prediction for display. Other payloads are ignored.
func (t *Transport) Send(data any) error {
	p, ok := data.(lipsync.Prediction)
	if !ok {
		return nil
	}
	select {
	case <-t.done:
		return transport.ErrClosed
	default:
	}
	for {
		select {
		case t.pending <- p:
			return nil
		default:
		}
		select {
		case <-t.pending:
		default:
		}
	}
}

// Close stops forwarding. The program itself is left running.
func (t *Transport) Close() error {
	t.once.Do(func() { close(t.done) })
	t.wg.Wait()
	return nil
}
