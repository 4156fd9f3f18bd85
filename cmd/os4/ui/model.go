package ui

import (
	"fmt"
	"strings"
	"time"

	"os4/internal/config"
	"os4/internal/status"
	"os4/internal/system"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// PollInterval is how often the model polls the system for timeouts.
const PollInterval = 100 * time.Millisecond

// historyLimit bounds the key log kept for the viewport.
const historyLimit = 500

// TickMsg drives System.Poll.
type TickMsg time.Time

// ConfigMsg carries a reloaded configuration into the update loop, so the
// system is only touched from the program goroutine.
type ConfigMsg struct {
	Config *config.Config
}

// Model is the interactive calculator. The System is single threaded; every
// call into it happens in Update.
type Model struct {
	sys    *system.System
	keymap Keymap
	styles Styles

	history  viewport.Model
	lines    []string
	showHelp bool

	width, height int
	err           error
}

// New creates the model for sys.
func New(sys *system.System, styles Styles) Model {
	vp := viewport.New(40, 10)
	vp.SetContent("")
	return Model{
		sys:     sys,
		keymap:  DefaultKeymap(),
		styles:  styles,
		history: vp,
	}
}

func tick() tea.Cmd {
	return tea.Tick(PollInterval, func(t time.Time) tea.Msg { return TickMsg(t) })
}

// Init starts polling.
func (m Model) Init() tea.Cmd {
	return tick()
}

// Update handles terminal keys, resizes, ticks and config reloads.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.history.Width = msg.Width
		m.history.Height = max(msg.Height-10, 3)
		return m, nil

	case TickMsg:
		m.sys.Poll()
		return m, tick()

	case ConfigMsg:
		m.sys.Apply(msg.Config)
		m.log(m.styles.Muted.Render("config reloaded"))
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return m, tea.Quit
	case "?":
		m.showHelp = !m.showHelp
		return m, nil
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.history, cmd = m.history.Update(msg)
		return m, cmd
	}

	code, ok := m.keymap.Lookup(msg.String())
	if !ok {
		return m, nil
	}
	m.err = nil
	err := m.sys.Press(code)
	line := fmt.Sprintf("%-8s %s", code.Name(), m.sys.Display())
	switch {
	case err == nil:
		m.log(m.styles.Key.Render(line))
	case system.IsUserError(err):
		m.log(m.styles.Error.Render(line))
	default:
		m.err = err
		m.log(m.styles.Error.Render(fmt.Sprintf("%-8s %v", code.Name(), err)))
	}
	return m, nil
}

func (m *Model) log(line string) {
	m.lines = append(m.lines, line)
	if len(m.lines) > historyLimit {
		m.lines = m.lines[len(m.lines)-historyLimit:]
	}
	m.history.SetContent(strings.Join(m.lines, "\n"))
	m.history.GotoBottom()
}

// Lines returns the key log.
func (m Model) Lines() []string { return m.lines }

// Err returns the last internal error.
func (m Model) Err() error { return m.err }

// annunciators renders the status line under the display.
func (m Model) annunciators() string {
	var parts []string
	if m.sys.UserMode() {
		parts = append(parts, "USER")
	}
	st := m.sys.Status()
	if st.ArgumentInProgress() || st.Has(status.SecArgument) {
		parts = append(parts, "ARG")
	}
	if st.Has(status.SecProxy) {
		parts = append(parts, "XROM")
	}
	if st.Has(status.IntervalTimer) {
		parts = append(parts, "TIMER")
	}
	line := m.styles.Annunciator.Render(strings.Join(parts, " "))
	if m.sys.Shifted() {
		line = m.styles.ShiftOn.Render("SHIFT") + " " + line
	}
	return line
}

// View renders the header, the display, annunciators and the key log.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.styles.Header.Render(fmt.Sprintf("OS4 %s", system.APIVersion)))
	b.WriteString("\n")

	lcd := m.sys.Display()
	if len(lcd) > LCDWidth {
		lcd = lcd[:LCDWidth]
	}
	b.WriteString(m.styles.LCD.Render(lcd))
	b.WriteString("\n")
	b.WriteString(m.annunciators())
	b.WriteString("\n\n")
	b.WriteString(m.styles.History.Render(m.history.View()))
	b.WriteString("\n")

	if m.showHelp {
		help := lipgloss.NewStyle().Width(max(m.width-4, 20)).Render(strings.Join(m.keymap.Help(), "  "))
		b.WriteString(m.styles.Muted.Render(help))
		b.WriteString("\n")
	}
	b.WriteString(m.styles.Footer.Render("? keys  tab shift  esc quit"))
	return b.String()
}
