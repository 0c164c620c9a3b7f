package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// Border characters (rounded)
const (
	borderTopLeft     = "╭"
	borderTopRight    = "╮"
	borderBottomLeft  = "╰"
	borderBottomRight = "╯"
	borderHorizontal  = "─"
	borderVertical    = "│"
)

// Panel renders content in a rounded border with the title embedded in the
// top edge: ╭─ Title ─────╮. Content is clipped to the inner box.
func Panel(t Theme, content, title string, width, height int, focused bool) string {
	borderColor := t.Palette.BorderDefault
	if focused {
		borderColor = t.Palette.BorderFocus
	}
	borderStyle := lipgloss.NewStyle().Foreground(borderColor)
	titleStyle := t.Muted
	if focused {
		titleStyle = t.Title
	}

	innerWidth := max(width-2, 1)
	contentHeight := max(height-2, 1)

	lines := strings.Split(content, "\n")
	rows := make([]string, contentHeight)
	for i := range rows {
		var line string
		if i < len(lines) {
			line = lines[i]
		}
		w := ansi.StringWidth(line)
		if w > innerWidth {
			line = ansi.Truncate(line, innerWidth, "")
			w = ansi.StringWidth(line)
		}
		if w < innerWidth {
			line += strings.Repeat(" ", innerWidth-w)
		}
		rows[i] = borderStyle.Render(borderVertical) + line + borderStyle.Render(borderVertical)
	}

	var b strings.Builder
	b.WriteString(topBorder(title, innerWidth, borderStyle, titleStyle))
	b.WriteByte('\n')
	b.WriteString(strings.Join(rows, "\n"))
	b.WriteByte('\n')
	b.WriteString(borderStyle.Render(borderBottomLeft + strings.Repeat(borderHorizontal, innerWidth) + borderBottomRight))
	return b.String()
}

func topBorder(title string, innerWidth int, borderStyle, titleStyle lipgloss.Style) string {
	// "─ " + title + " " needs at least four cells.
	if title == "" || innerWidth < 4 {
		return borderStyle.Render(borderTopLeft + strings.Repeat(borderHorizontal, innerWidth) + borderTopRight)
	}

	display := ansi.Truncate(title, innerWidth-4, "…")
	remaining := max(innerWidth-3-ansi.StringWidth(display), 0)

	return borderStyle.Render(borderTopLeft+borderHorizontal+" ") +
		titleStyle.Render(display) +
		borderStyle.Render(" "+strings.Repeat(borderHorizontal, remaining)+borderTopRight)
}
