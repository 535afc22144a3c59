package tui

import (
	"testing"

	"github.com/mark3labs/reposync/internal/wizard"
	"github.com/stretchr/testify/assert"
)

func TestWizardButtons(t *testing.T) {
	got := WizardButtons(wizard.ButtonState{NextLabel: "Connect", PreviousLabel: wizard.LabelPrevious, PreviousDisabled: true})
	assert.Equal(t, []Button{
		{Label: "← Previous", State: ButtonDisabled},
		{Label: "Connect →", State: ButtonFocused},
	}, got)

	got = WizardButtons(wizard.ButtonState{NextLabel: wizard.LabelFinish, PreviousLabel: wizard.LabelCancel, PreviousCancels: true, NextDisabled: true})
	assert.Equal(t, []Button{
		{Label: "Cancel", State: ButtonNormal},
		{Label: "Finish", State: ButtonDisabled},
	}, got)
}

func TestButtonBar_Render(t *testing.T) {
	bar := NewButtonBar([]Button{{Label: "Back"}, {Label: "Next", State: ButtonFocused}})
	bar.SetWidth(40)

	out := plain(bar.Render())
	assert.Contains(t, out, "Back")
	assert.Contains(t, out, "Next")
	assert.Empty(t, NewButtonBar(nil).Render())
}

func TestRenderHintBar(t *testing.T) {
	out := plain(renderHintBar("enter", "continue", "esc", "back"))
	assert.Contains(t, out, "enter")
	assert.Contains(t, out, "back")
	assert.Empty(t, renderHintBar("odd"))
}

func TestHelpCache(t *testing.T) {
	c := newHelpCache(true)
	out := plain(c.get(wizard.StepAuthType, 60))
	assert.Contains(t, out, "Local storage")
	assert.Equal(t, out, plain(c.get(wizard.StepAuthType, 60)))
	assert.Contains(t, plain(c.get(wizard.StepFinish, 60)), "Finish")

	git := newHelpCache(false)
	assert.NotContains(t, plain(git.get(wizard.StepAuthType, 60)), "Local storage")
}
