package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wit-terminal/voicecore/internal/voice"
)

// energyFloorDB and energyCeilDB bound the energy progress bar; frames
// quieter than the floor show empty, frames at or above the ceiling show full.
const (
	energyFloorDB = -60.0
	energyCeilDB  = 0.0
)

var (
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("244"))
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	stateStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)

	stateColors = map[voice.State]lipgloss.Color{
		voice.StateIdle:         lipgloss.Color("240"),
		voice.StateListening:    lipgloss.Color("33"),
		voice.StateWakeDetected: lipgloss.Color("214"),
		voice.StateRecording:    lipgloss.Color("196"),
		voice.StateProcessing:   lipgloss.Color("99"),
		voice.StateError:        lipgloss.Color("160"),
	}
)

// tickMsg drives the periodic stats refresh.
type tickMsg time.Time

// wakeMsg is pushed in whenever the pipeline fires a wake-word callback.
type wakeMsg voice.Detection

// dashboardModel is a bubbletea Model rendering a live snapshot of the
// pipeline's state and counters, grounded on the corpus's tea.Msg-over-channel
// pattern for bridging a non-UI producer goroutine into the Update loop.
type dashboardModel struct {
	ctx      *voice.Context
	lastWake *voice.Detection
	wakeCh   chan voice.Detection
	energy   progress.Model
}

func newDashboardModel(ctx *voice.Context, wakeWordNames []string) *dashboardModel {
	m := &dashboardModel{
		ctx:    ctx,
		wakeCh: make(chan voice.Detection, 8),
		energy: progress.New(progress.WithDefaultGradient()),
	}
	for _, name := range wakeWordNames {
		ctx.RegisterWakeWordCallback(name, func(d voice.Detection) {
			select {
			case m.wakeCh <- d:
			default:
			}
		})
	}
	return m
}

func (m *dashboardModel) Init() tea.Cmd {
	return tea.Batch(tickCmd(), waitForWake(m.wakeCh))
}

func tickCmd() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func waitForWake(ch chan voice.Detection) tea.Cmd {
	return func() tea.Msg { return wakeMsg(<-ch) }
}

func (m *dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}
	case tickMsg:
		return m, tickCmd()
	case wakeMsg:
		d := voice.Detection(msg)
		m.lastWake = &d
		return m, waitForWake(m.wakeCh)
	}
	return m, nil
}

func (m *dashboardModel) View() string {
	stats := m.ctx.GetStats()
	state := m.ctx.GetState()

	color, ok := stateColors[state]
	if !ok {
		color = lipgloss.Color("240")
	}

	header := stateStyle.Background(color).Render(state.String())

	rows := []string{
		header,
		"",
		row("frames processed", stats.FramesProcessed),
		row("buffer overruns", stats.BufferOverruns),
		row("vad activations", stats.VADActivations),
		row("wake detections", stats.WakeDetections),
		row("backend failures", stats.BackendFailures),
		row("avg energy (dB)", fmt.Sprintf("%.1f", stats.AvgEnergyDB)),
		row("noise floor (dB)", fmt.Sprintf("%.1f", stats.NoiseFloorDB)),
		m.energy.ViewAs(normalizeEnergy(stats.AvgEnergyDB)),
	}

	if m.lastWake != nil {
		rows = append(rows, "", row("last wake", fmt.Sprintf("%s (%.2f)", m.lastWake.Name, m.lastWake.Confidence)))
	}

	rows = append(rows, "", lipgloss.NewStyle().Faint(true).Render("q to quit"))

	return lipgloss.JoinVertical(lipgloss.Left, rows...) + "\n"
}

// normalizeEnergy maps a dBFS reading onto [0,1] for the progress bar.
func normalizeEnergy(db float64) float64 {
	if db <= energyFloorDB {
		return 0
	}
	if db >= energyCeilDB {
		return 1
	}
	return (db - energyFloorDB) / (energyCeilDB - energyFloorDB)
}

func row(label string, value interface{}) string {
	return labelStyle.Render(fmt.Sprintf("%-20s", label)) + valueStyle.Render(fmt.Sprintf("%v", value))
}

func runTUI(ctx *voice.Context, wakeWordNames []string) error {
	p := tea.NewProgram(newDashboardModel(ctx, wakeWordNames))
	_, err := p.Run()
	return err
}
