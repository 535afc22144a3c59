package theme

import "charm.land/lipgloss/v2"

// Styles contains all pre-built lipgloss styles for the TUI.
type Styles struct {
	Title       lipgloss.Style
	StepHeading lipgloss.Style

	Label        lipgloss.Style
	LabelFocused lipgloss.Style
	Value        lipgloss.Style
	Muted        lipgloss.Style
	FieldError   lipgloss.Style

	BannerError   lipgloss.Style
	BannerWarning lipgloss.Style
	BannerSuccess lipgloss.Style

	ButtonNormal   lipgloss.Style
	ButtonDisabled lipgloss.Style
	ButtonFocused  lipgloss.Style

	HintKey  lipgloss.Style
	HintDesc lipgloss.Style

	Modal  lipgloss.Style
	Dialog lipgloss.Style
}
