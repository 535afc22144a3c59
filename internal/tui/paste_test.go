package tui

import (
	"testing"

	"github.com/mark3labs/reposync/internal/provisioning"
	"github.com/mark3labs/reposync/internal/wizard"
	"github.com/stretchr/testify/assert"
)

func TestSanitizePaste(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"color codes", "\x1b[31mred text\x1b[0m", "red text"},
		{"cursor control", "\x1b[2K\x1b[1Gclear line", "clear line"},
		{"crlf token", "ghp_abc\r\n", "ghp_abc"},
		{"multiline collapses", "line1\n\n\nline2", "line1 line2"},
		{"control chars", "a\x00b\x07c\x7fd", "abcd"},
		{"tabs become spaces", "a\tb", "a b"},
		{"surrounding space", "  https://github.com/a/b  ", "https://github.com/a/b"},
		{"only newlines", "\n\n", ""},
		{"unicode kept", "日本語 🎉", "日本語 🎉"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizePaste(tt.input))
		})
	}
}

func TestFieldSet_PasteWritesForm(t *testing.T) {
	form := wizard.NewMemoryForm(wizard.DefaultFormData(provisioning.TypeGitHub))
	fs := newFieldSet(form, []wizard.FieldPath{wizard.FieldURL}, 60)
	fs.Focus()

	fs.Paste("\x1b[1mhttps://github.com/grafana/dashboards\x1b[0m\n")

	assert.Equal(t, "https://github.com/grafana/dashboards", form.Values().Repository.URL)
}
