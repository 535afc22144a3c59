package wizard

import (
	"testing"

	"github.com/mark3labs/reposync/internal/provisioning"
	"github.com/stretchr/testify/assert"
)

func TestDeriveButtons(t *testing.T) {
	steps := GetSteps(provisioning.TypeGitHub, AuthPAT)

	tests := []struct {
		name string
		in   ButtonInput
		want ButtonState
	}{
		{
			name: "first step without repository",
			in:   ButtonInput{ActiveStep: StepAuthType},
			want: ButtonState{NextLabel: "Connect", PreviousLabel: LabelPrevious},
		},
		{
			name: "next ignores submission on auth type",
			in:   ButtonInput{ActiveStep: StepAuthType, IsSubmitting: true},
			want: ButtonState{NextLabel: "Connect", PreviousLabel: LabelPrevious, PreviousDisabled: true},
		},
		{
			name: "connection with created repository cancels",
			in:   ButtonInput{ActiveStep: StepConnection, RepositoryName: "r1"},
			want: ButtonState{NextLabel: "Choose what to synchronize", PreviousLabel: LabelCancel, PreviousCancels: true},
		},
		{
			name: "bootstrap with repository goes back",
			in:   ButtonInput{ActiveStep: StepBootstrap, RepositoryName: "r1"},
			want: ButtonState{NextLabel: "Synchronize", PreviousLabel: LabelPrevious},
		},
		{
			name: "bootstrap with skip jumps to finish",
			in:   ButtonInput{ActiveStep: StepBootstrap, CanSkipSynchronize: true},
			want: ButtonState{NextLabel: "Choose additional settings", PreviousLabel: LabelPrevious},
		},
		{
			name: "forced cancel anywhere",
			in:   ButtonInput{ActiveStep: StepFinish, ShouldForceCancelBehavior: true},
			want: ButtonState{NextLabel: LabelFinish, PreviousLabel: LabelCancel, PreviousCancels: true},
		},
		{
			name: "cancelling",
			in:   ButtonInput{ActiveStep: StepConnection, RepositoryName: "r1", IsCancelling: true},
			want: ButtonState{
				NextLabel:        "Choose what to synchronize",
				PreviousLabel:    LabelCancelling,
				PreviousCancels:  true,
				NextDisabled:     true,
				PreviousDisabled: true,
			},
		},
		{
			name: "running step blocks both",
			in:   ButtonInput{ActiveStep: StepConnection, IsStepRunning: true},
			want: ButtonState{NextLabel: "Choose what to synchronize", PreviousLabel: LabelPrevious, NextDisabled: true, PreviousDisabled: true},
		},
		{
			name: "background job blocks finish",
			in:   ButtonInput{ActiveStep: StepFinish, IsCreatingBackgroundJob: true},
			want: ButtonState{NextLabel: LabelFinish, PreviousLabel: LabelPrevious, NextDisabled: true},
		},
		{
			name: "confirmation dialog blocks previous",
			in:   ButtonInput{ActiveStep: StepBootstrap, ShowCancelConfirmation: true},
			want: ButtonState{NextLabel: "Synchronize", PreviousLabel: LabelPrevious, PreviousDisabled: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.in.Steps = steps
			assert.Equal(t, tt.want, DeriveButtons(tt.in))
		})
	}
}

func TestDeriveButtons_SynchronizeNeedsCompletedJob(t *testing.T) {
	steps := GetSteps(provisioning.TypeGitHub, AuthPAT)
	base := ButtonInput{ActiveStep: StepSynchronize, Steps: steps}

	assert.True(t, DeriveButtons(base).NextDisabled, "idle")

	in := base
	in.IsStepRunning = true
	assert.True(t, DeriveButtons(in).NextDisabled, "running")

	in = base
	in.IsStepSuccess = true
	assert.False(t, DeriveButtons(in).NextDisabled, "success")

	in = base
	in.HasStepWarning = true
	assert.False(t, DeriveButtons(in).NextDisabled, "warning")

	in = base
	in.IsStepSuccess = true
	in.IsSubmitting = true
	assert.False(t, DeriveButtons(in).NextDisabled, "success ignores other flags")
}

func TestDeriveButtons_LocalLabels(t *testing.T) {
	steps := GetSteps(provisioning.TypeLocal, AuthPAT)
	got := DeriveButtons(ButtonInput{ActiveStep: StepAuthType, Steps: steps})
	assert.Equal(t, "Directory", got.NextLabel)
}
