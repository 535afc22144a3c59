package tui

import (
	"charm.land/lipgloss/v2"
	uv "github.com/charmbracelet/ultraviolet"
	"github.com/mark3labs/reposync/internal/tui/theme"
)

// Dialog is the cancel confirmation drawn over the wizard.
type Dialog struct {
	title   string
	message string
	confirm string
	dismiss string
	visible bool
}

// NewDialog creates a hidden dialog.
func NewDialog() *Dialog {
	return &Dialog{confirm: "y delete and exit", dismiss: "n keep going"}
}

// Show displays the dialog with the given title and message.
func (d *Dialog) Show(title, message string) {
	d.title = title
	d.message = message
	d.visible = true
}

// Hide closes the dialog.
func (d *Dialog) Hide() {
	d.visible = false
}

// IsVisible returns whether the dialog is visible.
func (d *Dialog) IsVisible() bool {
	return d.visible
}

// View renders the dialog box, or "" when hidden.
func (d *Dialog) View() string {
	if !d.visible {
		return ""
	}

	t := theme.Current()
	s := t.S()
	contentWidth := max(lipgloss.Width(d.message), lipgloss.Width(d.title), 36)

	title := s.FieldError.Bold(true).Width(contentWidth).Align(lipgloss.Center).Render(d.title)
	message := s.Value.Width(contentWidth).Align(lipgloss.Center).Render(d.message)
	buttons := lipgloss.NewStyle().Width(contentWidth).Align(lipgloss.Center).Render(
		s.ButtonFocused.Background(lipgloss.Color(t.Error)).Render(d.confirm) +
			s.ButtonNormal.Render(d.dismiss),
	)

	return s.Dialog.Render(lipgloss.JoinVertical(lipgloss.Center, title, "", message, "", buttons))
}

// Draw renders the dialog centered on screen.
func (d *Dialog) Draw(scr uv.Screen, area uv.Rectangle) {
	if !d.visible {
		return
	}

	dialog := d.View()
	w, h := lipgloss.Width(dialog), lipgloss.Height(dialog)
	x := max((area.Dx()-w)/2, 0)
	y := max((area.Dy()-h)/2, 0)

	uv.NewStyledString(dialog).Draw(scr, uv.Rectangle{
		Min: uv.Position{X: area.Min.X + x, Y: area.Min.Y + y},
		Max: uv.Position{X: area.Min.X + x + w, Y: area.Min.Y + y + h},
	})
}
