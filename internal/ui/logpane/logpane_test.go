package logpane

import (
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/mqttdesk/internal/log"
)

func entry(level, msg string) string {
	return fmt.Sprintf("2026-01-01T10:00:00 [%s] [mqtt] %s\n", level, msg)
}

func altKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}, Alt: true}
}

func TestHiddenByDefault(t *testing.T) {
	m := New()
	require.False(t, m.Visible())
	require.Empty(t, m.View())

	m.Toggle()
	require.True(t, m.Visible())
}

func TestFilterByLevel(t *testing.T) {
	m := New()
	m.Append(entry("DEBUG", "noise"))
	m.Append(entry("INFO", "connected"))
	m.Append(entry("WARN", "slow ack"))
	m.Append(entry("ERROR", "dial failed"))

	require.Len(t, m.Filtered(), 3, "info is the default level")

	m.Toggle()
	m, _ = m.Update(altKey('e'))
	require.Len(t, m.Filtered(), 1)
	require.Contains(t, m.Filtered()[0], "dial failed")

	m, _ = m.Update(altKey('d'))
	require.Len(t, m.Filtered(), 4)

	m, _ = m.Update(altKey('c'))
	require.Empty(t, m.Filtered())
}

func TestKeysIgnoredWhileHidden(t *testing.T) {
	m := New()
	m.Append(entry("INFO", "kept"))
	m, _ = m.Update(altKey('c'))
	require.Len(t, m.Filtered(), 1)
}

func TestBufferIsBounded(t *testing.T) {
	m := New()
	for i := 0; i < MaxEntries+10; i++ {
		m.Append(entry("INFO", fmt.Sprintf("line %d", i)))
	}
	got := m.Filtered()
	require.Len(t, got, MaxEntries)
	require.Contains(t, got[0], "line 10")
}

func TestViewShowsNewestEntries(t *testing.T) {
	m := New()
	m.SetSize(60, 5)
	m.Toggle()
	for i := 0; i < 10; i++ {
		m.Append(entry("INFO", fmt.Sprintf("line %d", i)))
	}

	view := ansi.Strip(m.View())
	require.Contains(t, view, "Log (INFO)")
	require.Contains(t, view, "line 9")
	require.NotContains(t, view, "line 0")
	for _, l := range strings.Split(view, "\n") {
		require.Equal(t, 60, ansi.StringWidth(l))
	}
}

func TestEntryLevel(t *testing.T) {
	require.Equal(t, log.LevelError, entryLevel(entry("ERROR", "x")))
	require.Equal(t, log.LevelWarn, entryLevel(entry("WARN", "x")))
	require.Equal(t, log.LevelDebug, entryLevel("no tag at all"))
}
