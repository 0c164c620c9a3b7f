// Package styles contains Lip Gloss style definitions and the light and
// dark palettes of mqttdesk.
package styles

import (
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Palette is the set of semantic colours one theme provides.
type Palette struct {
	TextPrimary   lipgloss.Color
	TextSecondary lipgloss.Color
	TextMuted     lipgloss.Color
	BorderDefault lipgloss.Color
	BorderFocus   lipgloss.Color
	Accent        lipgloss.Color
	Selection     lipgloss.Color
	Success       lipgloss.Color
	Warning       lipgloss.Color
	Error         lipgloss.Color
	Info          lipgloss.Color
	Published     lipgloss.Color
	Received      lipgloss.Color
}

// Dark is the default palette.
var Dark = Palette{
	TextPrimary:   lipgloss.Color("#CCCCCC"),
	TextSecondary: lipgloss.Color("#BBBBBB"),
	TextMuted:     lipgloss.Color("#696969"),
	BorderDefault: lipgloss.Color("#696969"),
	BorderFocus:   lipgloss.Color("#54A0FF"),
	Accent:        lipgloss.Color("#7D56F4"),
	Selection:     lipgloss.Color("#FFFFFF"),
	Success:       lipgloss.Color("#73F59F"),
	Warning:       lipgloss.Color("#FECA57"),
	Error:         lipgloss.Color("#FF8787"),
	Info:          lipgloss.Color("#54A0FF"),
	Published:     lipgloss.Color("#94E2D5"),
	Received:      lipgloss.Color("#F9E2AF"),
}

// Light suits terminals with a light background.
var Light = Palette{
	TextPrimary:   lipgloss.Color("#2D3436"),
	TextSecondary: lipgloss.Color("#555555"),
	TextMuted:     lipgloss.Color("#999999"),
	BorderDefault: lipgloss.Color("#AAAAAA"),
	BorderFocus:   lipgloss.Color("#1E66F5"),
	Accent:        lipgloss.Color("#8839EF"),
	Selection:     lipgloss.Color("#000000"),
	Success:       lipgloss.Color("#43BF6D"),
	Warning:       lipgloss.Color("#DF8E1D"),
	Error:         lipgloss.Color("#D20F39"),
	Info:          lipgloss.Color("#1E66F5"),
	Published:     lipgloss.Color("#179299"),
	Received:      lipgloss.Color("#FE640B"),
}

// Theme is a palette with the styles derived from it.
type Theme struct {
	Name    string
	Palette Palette

	Text      lipgloss.Style
	Muted     lipgloss.Style
	Selected  lipgloss.Style
	Title     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Info      lipgloss.Style
	Published lipgloss.Style
	Received  lipgloss.Style

	TabActive   lipgloss.Style
	TabInactive lipgloss.Style
	StatusBar   lipgloss.Style
}

// NewTheme derives the styles of p.
func NewTheme(name string, p Palette) Theme {
	tab := lipgloss.NewStyle().Padding(0, 1)
	return Theme{
		Name:      name,
		Palette:   p,
		Text:      lipgloss.NewStyle().Foreground(p.TextPrimary),
		Muted:     lipgloss.NewStyle().Foreground(p.TextMuted),
		Selected:  lipgloss.NewStyle().Foreground(p.Selection).Bold(true),
		Title:     lipgloss.NewStyle().Foreground(p.Accent).Bold(true),
		Success:   lipgloss.NewStyle().Foreground(p.Success),
		Warning:   lipgloss.NewStyle().Foreground(p.Warning),
		Error:     lipgloss.NewStyle().Foreground(p.Error).Bold(true),
		Info:      lipgloss.NewStyle().Foreground(p.Info),
		Published: lipgloss.NewStyle().Foreground(p.Published),
		Received:  lipgloss.NewStyle().Foreground(p.Received),

		TabActive:   tab.Foreground(p.Selection).Background(p.Accent).Bold(true),
		TabInactive: tab.Foreground(p.TextSecondary),
		StatusBar:   lipgloss.NewStyle().Foreground(p.TextSecondary).Padding(0, 1),
	}
}

var (
	mu      sync.RWMutex
	current = NewTheme("dark", Dark)
)

// Current returns the active theme.
func Current() Theme {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// SetTheme activates "light" or "dark". An empty name picks by terminal
// background. It returns the theme now active.
func SetTheme(name string) Theme {
	if name == "" {
		name = "dark"
		if !lipgloss.HasDarkBackground() {
			name = "light"
		}
	}
	t := NewTheme("dark", Dark)
	if name == "light" {
		t = NewTheme("light", Light)
	}
	mu.Lock()
	current = t
	mu.Unlock()
	return t
}

// Toggle returns the name of the other theme.
func Toggle(name string) string {
	if name == "light" {
		return "dark"
	}
	return "light"
}
