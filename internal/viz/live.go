// Package viz renders run diagnostics in the terminal: a live bubbletea
// monitor and static asciigraph plots of recorded scalar series.
package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/Immie1996/boussinesq-convection/internal/run"
)

const historyCapacity = 600

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(12)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	graphStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
	phaseStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	doneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
)

type TickMsg time.Time

// DoneMsg signals that the run driver has finished.
type DoneMsg struct{ Err error }

// Monitor implements run.Observer by forwarding samples into a buffered
// channel the TUI drains on every tick. Samples are dropped when the
// channel is full so the driver never blocks on a slow terminal.
type Monitor struct {
	samples chan run.Sample
	done    chan error
}

func NewMonitor() *Monitor {
	return &Monitor{
		samples: make(chan run.Sample, 64),
		done:    make(chan error, 1),
	}
}

func (m *Monitor) OnSample(s run.Sample) {
	select {
	case m.samples <- s:
	default:
	}
}

// Finish tells the TUI the driver has returned.
func (m *Monitor) Finish(err error) {
	select {
	case m.done <- err:
	default:
	}
}

// Model is the live run monitor.
type Model struct {
	mon   *Monitor
	title string
	fps   int

	last      run.Sample
	seen      bool
	reHistory []float64
	nuHistory []float64
	finished  bool
	runErr    error
}

func NewModel(mon *Monitor, title string, fps int) Model {
	if fps <= 0 {
		fps = 10
	}
	return Model{
		mon:       mon,
		title:     title,
		fps:       fps,
		reHistory: make([]float64, 0, historyCapacity),
		nuHistory: make([]float64, 0, historyCapacity),
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(time.Second/time.Duration(m.fps), func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

// Update drains pending samples and handles input events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case DoneMsg:
		m.finished = true
		m.runErr = msg.Err
		return m, nil
	case TickMsg:
		for {
			select {
			case s := <-m.mon.samples:
				m.last = s
				m.seen = true
				m.reHistory = appendCapped(m.reHistory, s.Re)
				m.nuHistory = appendCapped(m.nuHistory, s.Nu)
			case err := <-m.mon.done:
				m.finished = true
				m.runErr = err
				return m, nil
			default:
				return m, m.tick()
			}
		}
	}
	return m, nil
}

func appendCapped(hist []float64, v float64) []float64 {
	hist = append(hist, v)
	if len(hist) > historyCapacity {
		hist = hist[1:]
	}
	return hist
}

// View renders the monitor.
func (m Model) View() string {
	var s strings.Builder
	s.WriteString(headerStyle.Render(strings.ToUpper(m.title)) + "\n")

	if !m.seen {
		s.WriteString(labelStyle.Render("waiting for first sample...") + "\n")
		return s.String()
	}

	if len(m.reHistory) > 1 {
		s.WriteString(graphStyle.Render(asciigraph.Plot(m.reHistory,
			asciigraph.Height(6), asciigraph.Width(60), asciigraph.Caption("Re"))) + "\n")
	}
	if len(m.nuHistory) > 1 {
		s.WriteString(graphStyle.Render(asciigraph.Plot(m.nuHistory,
			asciigraph.Height(6), asciigraph.Width(60), asciigraph.Caption("Nu"))) + "\n")
	}

	row := func(label, value string) {
		s.WriteString(labelStyle.Render(label) + valueStyle.Render(value) + "\n")
	}
	row("Iteration", fmt.Sprintf("%d", m.last.Iteration))
	row("Time", fmt.Sprintf("%.4e (%.1f t_buoy)", m.last.SimTime, m.last.BuoyTime))
	row("dt", fmt.Sprintf("%.2e", m.last.Dt))
	row("Re", fmt.Sprintf("%.4e / %.4e max", m.last.Re, m.last.ReMax))
	row("Nu", fmt.Sprintf("%.4g", m.last.Nu))
	row("|B|", fmt.Sprintf("%.3e", m.last.BMag))
	row("div B", fmt.Sprintf("%.2e", m.last.DivB))
	row("Ra", fmt.Sprintf("%.3e", m.last.Ra))
	row("Q", fmt.Sprintf("%.3e", m.last.Q))
	if m.last.Phase != "" {
		s.WriteString(labelStyle.Render("Phase") + phaseStyle.Render(m.last.Phase) + "\n")
	}

	if m.finished {
		status := "run finished"
		if m.runErr != nil {
			status = "run failed: " + m.runErr.Error()
		}
		s.WriteString(doneStyle.Render(status+"  (q to quit)") + "\n")
	} else {
		s.WriteString(doneStyle.Render("q: quit") + "\n")
	}
	return s.String()
}
