package tui

import (
	"strings"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/x/ansi"
)

// sanitizePaste cleans pasted content for a single-line field:
//   - ANSI escape sequences are stripped
//   - control characters are dropped
//   - runs of line breaks collapse to one space
//   - surrounding whitespace is trimmed
func sanitizePaste(content string) string {
	content = ansi.Strip(content)
	content = strings.ReplaceAll(content, "\r\n", "\n")

	var b strings.Builder
	newline := false
	for _, r := range content {
		switch {
		case r == '\n' || r == '\r':
			newline = true
			continue
		case r == '\t':
			r = ' '
		case r < 32 || r == 127:
			continue
		}
		if newline {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			newline = false
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// Paste inserts sanitized content into the focused text field.
func (f *fieldSet) Paste(content string) tea.Cmd {
	if f.focus < 0 || f.focus >= len(f.editors) || !f.editors[f.focus].textual() {
		return nil
	}
	content = sanitizePaste(content)
	if content == "" {
		return nil
	}

	ed := f.editors[f.focus]
	before := ed.input.Value()
	var cmd tea.Cmd
	ed.input, cmd = ed.input.Update(tea.PasteMsg{Content: content})
	if v := ed.input.Value(); v != before {
		f.write(ed, v)
	}
	return cmd
}
