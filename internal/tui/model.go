// Package tui is a terminal status panel for a running daemon. It polls the
// status endpoint and toggles acquisition on a key press.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ghalamif/AegisSense/internal/status"
)

// StatusClient is the subset of status.Client the panel needs.
type StatusClient interface {
	Status(ctx context.Context) (status.Status, error)
	Toggle(ctx context.Context) (status.Status, error)
}

type statusMsg struct {
	st   status.Status
	err  error
	poll bool
}

type tickMsg time.Time

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	runningStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	pausedStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle    = lipgloss.NewStyle().Faint(true)
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// Model implements tea.Model.
type Model struct {
	client   StatusClient
	interval time.Duration
	timeout  time.Duration

	st     status.Status
	loaded bool
	err    error
	width  int
}

func NewModel(client StatusClient, interval time.Duration) Model {
	if interval <= 0 {
		interval = time.Second
	}
	return Model{client: client, interval: interval, timeout: 3 * time.Second}
}

func (m Model) Init() tea.Cmd {
	return m.fetch(true)
}

func (m Model) fetch(poll bool) tea.Cmd {
	client, timeout := m.client, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		st, err := client.Status(ctx)
		return statusMsg{st: st, err: err, poll: poll}
	}
}

func (m Model) toggle() tea.Cmd {
	client, timeout := m.client, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		st, err := client.Toggle(ctx)
		return statusMsg{st: st, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case " ", "t":
			return m, m.toggle()
		case "r":
			return m, m.fetch(false)
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tickMsg:
		return m, m.fetch(true)
	case statusMsg:
		m.err = msg.err
		if msg.err == nil {
			m.st = msg.st
			m.loaded = true
		}
		if msg.poll {
			return m, tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
		}
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("AegisSense"))
	b.WriteString("\n\n")

	if !m.loaded {
		b.WriteString(labelStyle.Render("waiting for status..."))
	} else {
		st := m.st
		state := runningStyle.Render(st.Acquisition)
		if st.Paused {
			state = pausedStyle.Render(st.Acquisition)
		}
		line := func(label, value string) {
			fmt.Fprintf(&b, "%s %s\n", labelStyle.Render(fmt.Sprintf("%-14s", label)), value)
		}
		line("Acquisition:", state)
		line("Last Message:", st.LastMessage)
		line("Link:", fmt.Sprintf("%s %s", st.LinkState, st.Address))
		line("Messages:", fmt.Sprintf("%d (Δ %.2fs)", st.Messages, st.DeltaSeconds))
		if len(st.Row) == len(st.Header) {
			b.WriteString("\n")
			for i, h := range st.Header {
				line(h+":", st.Row[i])
			}
		}
	}

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("error: " + m.err.Error()))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("space/t toggle acquisition • r refresh • q quit"))

	box := boxStyle
	if m.width > 4 {
		box = box.MaxWidth(m.width)
	}
	return box.Render(b.String())
}

// Run shows the panel until the user quits or ctx is done.
func Run(ctx context.Context, client StatusClient, interval time.Duration) error {
	_, err := tea.NewProgram(NewModel(client, interval), tea.WithContext(ctx)).Run()
	return err
}
