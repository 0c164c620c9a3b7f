// Package logpane shows recent log entries at the bottom of the screen.
package logpane

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/zjrosen/mqttdesk/internal/log"
	"github.com/zjrosen/mqttdesk/internal/ui/styles"
)

// MaxEntries bounds the buffer; older entries are dropped.
const MaxEntries = 500

// Model is the log pane state.
type Model struct {
	visible  bool
	minLevel log.Level
	entries  []string
	width    int
	height   int
	viewport viewport.Model
}

// New creates a hidden pane showing info and above.
func New() Model {
	return Model{minLevel: log.LevelInfo}
}

// Append adds one formatted entry.
func (m *Model) Append(entry string) {
	m.entries = append(m.entries, strings.TrimSuffix(entry, "\n"))
	if over := len(m.entries) - MaxEntries; over > 0 {
		m.entries = m.entries[over:]
	}
	m.refresh()
}

// Update handles keys while the pane is visible.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.visible {
		return m, nil
	}
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "alt+c":
			m.entries = nil
		case "alt+d":
			m.minLevel = log.LevelDebug
		case "alt+i":
			m.minLevel = log.LevelInfo
		case "alt+w":
			m.minLevel = log.LevelWarn
		case "alt+e":
			m.minLevel = log.LevelError
		case "pgup":
			m.viewport.HalfPageUp()
			return m, nil
		case "pgdown":
			m.viewport.HalfPageDown()
			return m, nil
		default:
			return m, nil
		}
		m.refresh()
	}
	return m, nil
}

// View renders the pane, or "" when hidden.
func (m Model) View() string {
	if !m.visible {
		return ""
	}
	t := styles.Current()
	return styles.Panel(t, m.viewport.View(), "Log ("+m.minLevel.String()+")", m.width, m.height, false)
}

// Visible reports whether the pane is shown.
func (m Model) Visible() bool { return m.visible }

// Toggle shows or hides the pane.
func (m *Model) Toggle() {
	m.visible = !m.visible
	m.refresh()
}

// SetSize sets the outer size of the pane including its border.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.refresh()
}

// Filtered returns the buffered entries at or above the current level.
func (m Model) Filtered() []string {
	var out []string
	for _, e := range m.entries {
		if entryLevel(e) >= m.minLevel {
			out = append(out, e)
		}
	}
	return out
}

func (m *Model) refresh() {
	if m.width < 3 || m.height < 3 {
		return
	}
	inner := m.width - 2
	m.viewport.Width = inner
	m.viewport.Height = m.height - 2

	t := styles.Current()
	lines := m.Filtered()
	if len(lines) == 0 {
		m.viewport.SetContent(t.Muted.Italic(true).Render("No logs to display"))
		return
	}
	rendered := make([]string, len(lines))
	for i, e := range lines {
		if ansi.StringWidth(e) > inner {
			e = ansi.Truncate(e, inner, "…")
		}
		rendered[i] = colorize(t, e)
	}
	m.viewport.SetContent(strings.Join(rendered, "\n"))
	m.viewport.GotoBottom()
}

// entryLevel reads the level tag written by internal/log.
func entryLevel(e string) log.Level {
	switch {
	case strings.Contains(e, "[ERROR]"):
		return log.LevelError
	case strings.Contains(e, "[WARN]"):
		return log.LevelWarn
	case strings.Contains(e, "[INFO]"):
		return log.LevelInfo
	default:
		return log.LevelDebug
	}
}

func colorize(t styles.Theme, e string) string {
	switch entryLevel(e) {
	case log.LevelError:
		return t.Error.Render(e)
	case log.LevelWarn:
		return t.Warning.Render(e)
	case log.LevelInfo:
		return t.Info.Render(e)
	default:
		return t.Muted.Render(e)
	}
}
