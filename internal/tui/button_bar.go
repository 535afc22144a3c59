package tui

import (
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/mark3labs/reposync/internal/tui/theme"
	"github.com/mark3labs/reposync/internal/wizard"
)

// ButtonState represents the visual state of a button.
type ButtonState int

const (
	ButtonNormal   ButtonState = iota // Normal state (enabled)
	ButtonDisabled                    // Disabled state (grayed out)
	ButtonFocused                     // Focused/highlighted state
)

// Button represents a single button in the button bar.
type Button struct {
	Label string
	State ButtonState
}

// ButtonBar manages a set of buttons with consistent styling.
type ButtonBar struct {
	buttons []Button
	width   int
}

// NewButtonBar creates a new button bar with the given buttons.
func NewButtonBar(buttons []Button) *ButtonBar {
	return &ButtonBar{
		buttons: buttons,
		width:   60,
	}
}

// SetWidth updates the width for the button bar.
func (b *ButtonBar) SetWidth(width int) {
	b.width = width
}

// Buttons returns the buttons in display order.
func (b *ButtonBar) Buttons() []Button {
	return b.buttons
}

// Render renders the button bar centered in its width.
func (b *ButtonBar) Render() string {
	if len(b.buttons) == 0 {
		return ""
	}

	s := theme.Current().S()
	rendered := make([]string, 0, len(b.buttons))
	for _, btn := range b.buttons {
		switch btn.State {
		case ButtonDisabled:
			rendered = append(rendered, s.ButtonDisabled.Render(btn.Label))
		case ButtonFocused:
			rendered = append(rendered, s.ButtonFocused.Render(btn.Label))
		default:
			rendered = append(rendered, s.ButtonNormal.Render(btn.Label))
		}
	}

	return lipgloss.Place(b.width, 1, lipgloss.Center, lipgloss.Center, strings.Join(rendered, ""))
}

// WizardButtons maps the engine's button state onto a Previous/Next pair.
// The Next button is highlighted whenever it can be pressed.
func WizardButtons(state wizard.ButtonState) []Button {
	prev := Button{Label: "← " + state.PreviousLabel, State: ButtonNormal}
	if state.PreviousCancels {
		prev.Label = state.PreviousLabel
	}
	if state.PreviousDisabled {
		prev.State = ButtonDisabled
	}

	next := Button{Label: state.NextLabel + " →", State: ButtonFocused}
	if state.NextLabel == wizard.LabelFinish {
		next.Label = state.NextLabel
	}
	if state.NextDisabled {
		next.State = ButtonDisabled
	}
	return []Button{prev, next}
}
