package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bep/debounce"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-cvseq/protocol"
	"go-cvseq/sequencer"
	"go-cvseq/theme"
	"go-cvseq/widgets"
)

const (
	DefaultRefresh = 250 * time.Millisecond
	tempoDebounce  = 300 * time.Millisecond
	tempoStep      = 5
	requestTimeout = 2 * time.Second
)

// Client sends one command to a running sequencer. protocol.Remote is the
// TCP implementation.
type Client interface {
	Send(ctx context.Context, cmd sequencer.Command) (protocol.Response, error)
}

type Model struct {
	client  Client
	label   string
	theme   *theme.Theme
	refresh time.Duration

	status    protocol.StatusData
	sequences map[sequencer.ChannelID]sequencer.Sequence
	connected bool
	message   string
	err       error

	// tempo edits are shown immediately and sent once keys settle
	pendingTempo int
	debounced    func(f func())
	tempoCh      chan int

	quitting bool
}

type tickMsg struct{}

type snapshotMsg struct {
	status    protocol.StatusData
	sequences map[sequencer.ChannelID]sequencer.Sequence
	err       error
}

type resultMsg struct {
	resp protocol.Response
	err  error
}

type tempoMsg int

func NewModel(client Client, label string, th *theme.Theme) Model {
	return Model{
		client:    client,
		label:     label,
		theme:     th,
		refresh:   DefaultRefresh,
		debounced: debounce.New(tempoDebounce),
		tempoCh:   make(chan int, 1),
	}
}

func (m Model) fetch() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		resp, err := m.client.Send(ctx, sequencer.Command{Type: sequencer.CmdStatus})
		if err != nil {
			return snapshotMsg{err: err}
		}
		status, err := resp.Transport()
		if err != nil {
			return snapshotMsg{err: err}
		}

		resp, err = m.client.Send(ctx, sequencer.Command{Type: sequencer.CmdGetSequences})
		if err != nil {
			return snapshotMsg{err: err}
		}
		seqs, err := resp.Sequences()
		if err != nil {
			return snapshotMsg{err: err}
		}
		return snapshotMsg{status: status, sequences: seqs}
	}
}

func (m Model) send(cmd sequencer.Command) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		resp, err := m.client.Send(ctx, cmd)
		return resultMsg{resp: resp, err: err}
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(time.Time) tea.Msg { return tickMsg{} })
}

// ListenForTempo waits for the debounced tempo value
func ListenForTempo(ch <-chan int) tea.Cmd {
	return func() tea.Msg {
		return tempoMsg(<-ch)
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.fetch(), m.tick(), ListenForTempo(m.tempoCh))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case " ", "p":
			if m.status.Running {
				return m, m.send(sequencer.Command{Type: sequencer.CmdStop})
			}
			return m, m.send(sequencer.Command{Type: sequencer.CmdStart})

		case "s":
			return m, m.send(sequencer.Command{Type: sequencer.CmdStop})

		case "+", "=":
			m.nudgeTempo(tempoStep)

		case "-", "_":
			m.nudgeTempo(-tempoStep)
		}

	case tickMsg:
		return m, tea.Batch(m.fetch(), m.tick())

	case snapshotMsg:
		m.err = msg.err
		m.connected = msg.err == nil
		if msg.err == nil {
			m.status = msg.status
			m.sequences = msg.sequences
		}

	case resultMsg:
		m.err = msg.err
		if msg.err == nil {
			m.message = msg.resp.Message
		}
		return m, m.fetch()

	case tempoMsg:
		m.pendingTempo = 0
		return m, tea.Batch(
			m.send(sequencer.Command{Type: sequencer.CmdTempo, Tempo: int(msg)}),
			ListenForTempo(m.tempoCh),
		)
	}

	return m, nil
}

// nudgeTempo changes the displayed tempo now and schedules the send
func (m *Model) nudgeTempo(delta int) {
	bpm := m.pendingTempo
	if bpm == 0 {
		bpm = m.status.Tempo
	}
	if bpm == 0 {
		return
	}
	bpm = min(max(bpm+delta, sequencer.MinTempo), sequencer.MaxTempo)
	m.pendingTempo = bpm

	ch := m.tempoCh
	m.debounced(func() {
		// keep only the latest value
		select {
		case <-ch:
		default:
		}
		ch <- bpm
	})
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	headerStyle := lipgloss.NewStyle().Foreground(m.theme.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(m.theme.Muted())
	warnStyle := lipgloss.NewStyle().Foreground(m.theme.Warning())

	playState := "STOP"
	if m.status.Running {
		playState = "PLAY"
	}
	tempo := m.status.Tempo
	if m.pendingTempo != 0 {
		tempo = m.pendingTempo
	}
	link := "offline"
	if m.connected {
		link = m.label
	}

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(headerStyle.Render(fmt.Sprintf("go-cvseq  %s  %3dbpm  %s", playState, tempo, link)))
	out.WriteString("\n\n")

	for _, ch := range sequencer.Channels {
		out.WriteString(m.renderChannel(ch))
		out.WriteString("\n")
	}

	out.WriteString("\n")
	switch {
	case m.err != nil:
		out.WriteString(warnStyle.Render(m.err.Error()))
	case m.message != "":
		out.WriteString(dimStyle.Render(m.message))
	}
	out.WriteString("\n")
	out.WriteString(dimStyle.Render(widgets.RenderKeyLine([]widgets.KeyBinding{
		{Key: "space", Desc: "play/stop"},
		{Key: "s", Desc: "stop"},
		{Key: "+/-", Desc: "tempo"},
		{Key: "q", Desc: "quit"},
	})))

	return out.String()
}

// renderChannel draws the cv row (colored by level) and the gate row
func (m Model) renderChannel(ch sequencer.ChannelID) string {
	seq := m.sequences[ch]
	sym := m.theme.Symbols
	if seq.Len() == 0 {
		return widgets.RenderStepRow(string(ch), []widgets.StepCell{{Color: m.theme.RGB(0), Symbol: sym.Empty}})
	}

	levels := make([]widgets.StepCell, seq.Len())
	gates := make([]widgets.StepCell, seq.Len())
	for i, cv := range seq.CV {
		levels[i] = widgets.StepCell{Color: m.theme.RGB(cv), Symbol: sym.Level}
		gate := widgets.StepCell{Color: m.theme.RGB(0.2), Symbol: sym.GateOff}
		if i < len(seq.Gates) && seq.Gates[i] {
			gate = widgets.StepCell{Color: m.theme.RGB(1), Symbol: sym.GateOn}
		}
		gates[i] = gate
	}
	return widgets.RenderStepRow(string(ch), levels) + "\n" + widgets.RenderStepRow("", gates)
}

// Run starts the monitor on the terminal
func Run(client Client, label string, th *theme.Theme) error {
	p := tea.NewProgram(NewModel(client, label, th), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
