package wizard

const (
	LabelFinish     = "Finish"
	LabelPrevious   = "Previous"
	LabelCancel     = "Cancel"
	LabelCancelling = "Cancelling..."
)

// ButtonInput is everything the Next/Previous buttons depend on.
type ButtonInput struct {
	ActiveStep                StepID
	Steps                     []StepDescriptor
	CanSkipSynchronize        bool
	IsSubmitting              bool
	IsCancelling              bool
	IsStepRunning             bool
	IsStepSuccess             bool
	HasStepWarning            bool
	IsCreatingBackgroundJob   bool
	ShowCancelConfirmation    bool
	ShouldForceCancelBehavior bool
	RepositoryName            string
}

// ButtonState is the rendered state of the two buttons.
type ButtonState struct {
	NextLabel        string
	PreviousLabel    string
	NextDisabled     bool
	PreviousDisabled bool
	// PreviousCancels is true when pressing Previous cancels the wizard.
	PreviousCancels bool
}

// DeriveButtons projects wizard state onto button labels and enabled flags.
// It has no side effects.
func DeriveButtons(in ButtonInput) ButtonState {
	var out ButtonState

	next := nextIndex(in.Steps, in.ActiveStep, in.CanSkipSynchronize)
	if next >= len(in.Steps) {
		out.NextLabel = LabelFinish
	} else {
		out.NextLabel = in.Steps[next].DisplayName
	}

	// Previous is relabelled to cancel where going back cannot undo the
	// created resource: forced, or on the steps up to connection.
	idx := IndexOf(in.Steps, in.ActiveStep)
	connIdx := IndexOf(in.Steps, StepConnection)
	cancels := in.ShouldForceCancelBehavior || (in.RepositoryName != "" && idx <= connIdx)
	switch {
	case in.IsCancelling:
		out.PreviousLabel = LabelCancelling
		out.PreviousCancels = true
	case cancels:
		out.PreviousLabel = LabelCancel
		out.PreviousCancels = true
	default:
		out.PreviousLabel = LabelPrevious
	}

	switch in.ActiveStep {
	case StepAuthType:
		out.NextDisabled = false
	case StepSynchronize:
		out.NextDisabled = !(in.IsStepSuccess || in.HasStepWarning)
	default:
		out.NextDisabled = in.IsSubmitting || in.IsCancelling || in.IsStepRunning || in.IsCreatingBackgroundJob
	}

	out.PreviousDisabled = in.IsSubmitting || in.IsCancelling || in.IsStepRunning || in.ShowCancelConfirmation
	return out
}

// Buttons derives the current button state.
func (e *Engine) Buttons() ButtonState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return DeriveButtons(e.buttonInputLocked())
}

// buttonInputLocked collects the button inputs. On bootstrap the skip rule is
// evaluated against the current form so the Next label names the step the
// press will land on.
func (e *Engine) buttonInputLocked() ButtonInput {
	status := e.deps.Status
	canSkip := e.canSkipSync
	if e.active == StepBootstrap {
		_, canSkip = e.skipRuleLocked(e.deps.Form.Values())
	}
	return ButtonInput{
		ActiveStep:                e.active,
		Steps:                     e.steps,
		CanSkipSynchronize:        canSkip,
		IsSubmitting:              e.submitting || e.navigating,
		IsCancelling:              e.cancelling,
		IsStepRunning:             status.IsRunning(),
		IsStepSuccess:             status.IsSuccess(),
		HasStepWarning:            status.HasWarning(),
		IsCreatingBackgroundJob:   e.creatingBackgroundJob,
		ShowCancelConfirmation:    e.showCancelConfirmation,
		ShouldForceCancelBehavior: e.opts.ForceCancel,
		RepositoryName:            e.repositoryName,
	}
}
