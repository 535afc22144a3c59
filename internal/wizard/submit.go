package wizard

import (
	"context"
	"fmt"

	"github.com/mark3labs/reposync/internal/logger"
	"github.com/mark3labs/reposync/internal/provisioning"
	"github.com/mark3labs/reposync/internal/session"
	"github.com/mark3labs/reposync/internal/telemetry"
)

const instanceTargetConflict = "Another repository already syncs the whole instance; choose folder sync instead"

// SubmitResult is the outcome of a successful submission.
type SubmitResult struct {
	// Name is the repository name, empty for steps that do not submit.
	Name string
	// Created is true when this submission created the resource.
	Created bool
}

// fieldsFor lists what a step validates before submitting: the repository
// sub-form, plus the title and the step's own fields past connection.
func fieldsFor(step StepDescriptor) []FieldPath {
	fields := append([]FieldPath{}, repositoryFields...)
	if step.ID == StepAuthType || step.ID == StepConnection {
		return append(fields, FieldAuthMode)
	}
	fields = append(fields, FieldTitle)
	for _, f := range step.VisibleFields {
		if f != FieldTitle {
			fields = append(fields, f)
		}
	}
	return fields
}

// Submit validates and persists the active step. Steps without AutoSubmit
// succeed immediately. Validation failures return ErrValidation without
// touching the status; server failures are routed to inline field errors or
// a step banner. Failures shown only inline also match ErrValidation.
func (e *Engine) Submit(ctx context.Context) (SubmitResult, error) {
	e.mu.Lock()
	step := e.activeDescriptorLocked()
	e.mu.Unlock()
	return e.submit(ctx, step)
}

// submit persists step, which must still be the active step.
func (e *Engine) submit(ctx context.Context, step StepDescriptor) (SubmitResult, error) {
	e.mu.Lock()
	if e.submitting {
		e.mu.Unlock()
		return SubmitResult{}, ErrSubmissionInProgress
	}
	if e.active != step.ID {
		e.mu.Unlock()
		return SubmitResult{}, ErrNotReady
	}
	if !step.AutoSubmit {
		e.mu.Unlock()
		return SubmitResult{}, nil
	}
	name := e.repositoryName
	settings := e.settings
	e.mu.Unlock()

	form := e.deps.Form
	form.ClearErrors()
	if !form.Trigger(fieldsFor(step)) {
		return SubmitResult{}, ErrValidation
	}

	data := form.Values()
	if step.ID == StepBootstrap && data.Repository.SyncTarget == provisioning.TargetInstance &&
		settings != nil && settings.HasInstanceTarget(name) {
		form.SetError(FieldSyncTarget, instanceTargetConflict)
		return SubmitResult{}, ErrValidation
	}

	e.mu.Lock()
	if e.submitting {
		e.mu.Unlock()
		return SubmitResult{}, ErrSubmissionInProgress
	}
	e.submitting = true
	epoch := e.epoch
	e.mu.Unlock()
	e.notify()

	defer func() {
		e.mu.Lock()
		e.submitting = false
		e.mu.Unlock()
		e.notify()
	}()

	e.setStatusIfCurrent(epoch, Running())

	repo := BuildRepository(data)
	var saved *provisioning.Repository
	err := e.deps.Operation.RunStep(ctx, "submit."+string(step.ID), func(ctx context.Context) error {
		var err error
		saved, err = e.deps.Repositories.CreateOrUpdate(ctx, name, repo)
		return err
	})
	if err != nil {
		logger.Warn("Submitting %s failed: %v", step.ID, err)
		r := routeFailure(err, step, data.AuthMode)
		for _, fe := range r.inline {
			form.SetError(fe.Field, fe.Message)
		}
		e.report(ctx, telemetry.EventSubmitFailed, step.ID, map[string]string{"error": err.Error()})
		if r.banner == nil {
			e.setStatusIfCurrent(epoch, Idle())
			return SubmitResult{}, fmt.Errorf("submit %s: %w: %w", step.ID, ErrValidation, err)
		}
		e.setStatusIfCurrent(epoch, Failed(*r.banner))
		return SubmitResult{}, fmt.Errorf("submit %s: %w", step.ID, err)
	}

	if saved == nil || saved.Metadata.Name == "" {
		e.setStatusIfCurrent(epoch, Failed(ErrorPayload{Title: saveFailedTitle, Message: []string{noIdentifierMessage}}))
		return SubmitResult{}, ErrNoIdentifier
	}

	e.mu.Lock()
	created := e.repositoryName == ""
	e.repositoryName = saved.Metadata.Name
	t := e.transitionLocked(session.ActionRepository)
	e.mu.Unlock()

	e.setStatusIfCurrent(epoch, Succeeded())
	if created {
		logger.Info("Created repository %s", saved.Metadata.Name)
		e.record(ctx, t)
	}
	return SubmitResult{Name: saved.Metadata.Name, Created: created}, nil
}
