package wizard

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/reposync/internal/logger"
	"github.com/mark3labs/reposync/internal/provisioning"
)

// Previous is the Previous button. When it is labelled Cancel it starts the
// cancel flow, otherwise it retreats one step.
func (e *Engine) Previous(ctx context.Context) error {
	e.mu.Lock()
	buttons := DeriveButtons(e.buttonInputLocked())
	exited := e.exited
	e.mu.Unlock()

	if exited {
		return nil
	}
	if buttons.PreviousDisabled {
		return ErrNotReady
	}
	if buttons.PreviousCancels {
		return e.RequestCancel(ctx)
	}
	e.GoToPreviousStep(ctx)

	// Entering synchronize backwards starts a fresh job so the step can finish.
	if e.ActiveStep() == StepSynchronize {
		if err := e.StartSynchronize(ctx); err != nil {
			logger.Warn("Synchronization did not start: %v", err)
		}
	}
	return nil
}

// RequestCancel exits immediately when nothing was created yet. Otherwise it
// opens the confirmation; ConfirmCancel performs the deletion.
func (e *Engine) RequestCancel(ctx context.Context) error {
	e.mu.Lock()
	if e.exited || e.cancelling || e.submitting || e.navigating {
		e.mu.Unlock()
		return nil
	}
	if e.repositoryName == "" {
		e.mu.Unlock()
		e.exit(ctx, OutcomeCancelled)
		return nil
	}
	e.showCancelConfirmation = true
	e.mu.Unlock()
	e.notify()
	return nil
}

// DismissCancel closes the confirmation without cancelling.
func (e *Engine) DismissCancel() {
	e.mu.Lock()
	e.showCancelConfirmation = false
	e.mu.Unlock()
	e.notify()
}

// ConfirmCancel deletes the created repository and exits. If deletion fails
// the cancelling flag is cleared and the wizard stays on the current step.
func (e *Engine) ConfirmCancel(ctx context.Context) error {
	e.mu.Lock()
	if e.exited || e.cancelling {
		e.mu.Unlock()
		return nil
	}
	e.showCancelConfirmation = false
	name := e.repositoryName
	if name == "" {
		e.mu.Unlock()
		e.exit(ctx, OutcomeCancelled)
		return nil
	}
	e.cancelling = true
	e.mu.Unlock()
	e.notify()

	err := e.deps.Operation.RunStep(ctx, "cancel", func(ctx context.Context) error {
		return e.deps.Repositories.Delete(ctx, name)
	})
	if err != nil && !errors.Is(err, provisioning.ErrNotFound) {
		e.mu.Lock()
		e.cancelling = false
		e.mu.Unlock()
		e.notify()
		logger.Warn("Deleting repository %s failed: %v", name, err)
		return fmt.Errorf("delete repository %s: %w", name, err)
	}

	logger.Info("Deleted repository %s", name)
	e.mu.Lock()
	e.cancelling = false
	e.mu.Unlock()
	e.exit(ctx, OutcomeCancelled)
	return nil
}
