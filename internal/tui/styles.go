package tui

import (
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/mark3labs/reposync/internal/tui/theme"
)

// renderHintBar renders a hint bar with the given key-description pairs.
// Example: renderHintBar("tab", "next field", "esc", "back")
// Returns: "tab next field • esc back"
func renderHintBar(pairs ...string) string {
	if len(pairs) == 0 || len(pairs)%2 != 0 {
		return ""
	}

	s := theme.Current().S()
	var b strings.Builder
	for i := 0; i < len(pairs); i += 2 {
		if i > 0 {
			b.WriteString(" " + s.Muted.Render("•") + " ")
		}
		b.WriteString(s.HintKey.Render(pairs[i]) + " " + s.HintDesc.Render(pairs[i+1]))
	}
	return b.String()
}

// progressBar renders a fixed-width bar for a 0..100 progress value, blending
// from the primary color to the success color as it fills.
func progressBar(progress float64, width int) string {
	if width < 4 {
		width = 4
	}
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	t := theme.Current()
	filled := int(progress / 100 * float64(width))
	fill := theme.InterpolateColor(t.Primary, t.Success, progress/100)
	s := t.S()
	return s.Value.Foreground(lipgloss.Color(fill)).Render(strings.Repeat("█", filled)) +
		s.Muted.Render(strings.Repeat("░", width-filled))
}
