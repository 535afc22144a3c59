package wizard

import (
	"context"
	"errors"

	"github.com/mark3labs/reposync/internal/logger"
	"github.com/mark3labs/reposync/internal/provisioning"
	"github.com/mark3labs/reposync/internal/session"
	"github.com/mark3labs/reposync/internal/telemetry"
)

// nextIndex resolves where Next leads from active; a value >= len(steps)
// means the wizard terminates.
func nextIndex(steps []StepDescriptor, active StepID, canSkipSync bool) int {
	idx := IndexOf(steps, active)
	if idx == len(steps)-1 {
		return len(steps)
	}
	if active == StepBootstrap && canSkipSync {
		return idx + 2
	}
	return idx + 1
}

// prevIndex mirrors nextIndex; -1 means there is nowhere to go.
func prevIndex(steps []StepDescriptor, active StepID, canSkipSync bool) int {
	idx := IndexOf(steps, active)
	if idx <= 0 {
		return -1
	}
	if active == StepFinish && canSkipSync {
		return idx - 2
	}
	return idx - 1
}

// Next is the Next button: gate the step, submit it, plan the sync after
// bootstrap, then advance. The synchronize step starts its job on entry.
// Only one Next runs at a time; the step captured at the gate is the one that
// is submitted and left.
func (e *Engine) Next(ctx context.Context) error {
	e.mu.Lock()
	if e.exited {
		e.mu.Unlock()
		return nil
	}
	if e.submitting || e.navigating {
		e.mu.Unlock()
		return ErrSubmissionInProgress
	}
	buttons := DeriveButtons(e.buttonInputLocked())
	step := e.activeDescriptorLocked()
	if buttons.NextDisabled {
		e.mu.Unlock()
		return ErrNotReady
	}
	e.navigating = true
	e.mu.Unlock()
	e.notify()

	defer func() {
		e.mu.Lock()
		e.navigating = false
		e.mu.Unlock()
		e.notify()
	}()

	if step.ID == StepAuthType {
		data := e.deps.Form.Values()
		fields := []FieldPath{FieldAuthMode}
		if data.AuthMode == AuthApp {
			fields = append(fields, FieldConnection)
		}
		if !e.deps.Form.Trigger(fields) {
			return ErrValidation
		}
		e.applyAuthMode(data.AuthMode)
	}

	if _, err := e.submit(ctx, step); err != nil {
		return err
	}

	if step.ID == StepBootstrap {
		e.planSynchronize()
	}
	e.report(ctx, telemetry.EventStepCompleted, step.ID, nil)

	if err := e.advance(ctx, step.ID); err != nil {
		return err
	}

	if step.ID == StepBootstrap && e.ActiveStep() == StepSynchronize {
		if err := e.StartSynchronize(ctx); err != nil {
			logger.Warn("Synchronization did not start: %v", err)
		}
	}
	return nil
}

// skipRuleLocked evaluates the migration decision and the skip rule for data.
// Synchronize is only skipped for folder targets that need no migration.
func (e *Engine) skipRuleLocked(data FormData) (requiresMigration, canSkip bool) {
	requiresMigration = e.requiresMigration
	if e.settings != nil {
		unmanaged := 0
		if e.stats != nil {
			unmanaged = e.stats.UnmanagedCount()
		}
		requiresMigration = e.settings.LegacyStorage ||
			(data.Repository.SyncTarget == provisioning.TargetInstance && unmanaged > 0)
	}
	canSkip = e.opts.CanSkipSynchronize && !requiresMigration &&
		data.Repository.SyncTarget == provisioning.TargetFolder
	return requiresMigration, canSkip
}

// planSynchronize decides migration and the skip rule from settings once the
// sync target is known.
func (e *Engine) planSynchronize() {
	data := e.deps.Form.Values()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.requiresMigration, e.canSkipSync = e.skipRuleLocked(data)
}

// GoToNextStep advances one step, or two from bootstrap when synchronize can
// be skipped; the skipped sync job is started detached first. Leaving the last
// step terminates the wizard.
func (e *Engine) GoToNextStep(ctx context.Context) error {
	return e.advance(ctx, e.ActiveStep())
}

// advance leaves from. It is a no-op when another step became active since.
func (e *Engine) advance(ctx context.Context, from StepID) error {
	e.mu.Lock()
	if e.exited || e.active != from {
		e.mu.Unlock()
		return nil
	}

	next := nextIndex(e.steps, e.active, e.canSkipSync)
	if next >= len(e.steps) {
		e.mu.Unlock()
		e.exit(ctx, OutcomeFinished)
		return nil
	}

	if e.active == StepBootstrap && e.canSkipSync {
		e.startBackgroundSyncLocked()
	}

	e.completed = appendUnique(e.completed, e.active)
	e.changeStepLocked(e.steps[next].ID)
	t := e.transitionLocked(session.ActionStep)
	e.mu.Unlock()

	e.notify()
	e.record(ctx, t)
	return nil
}

// GoToPreviousStep retreats one step, or two from finish when synchronize was
// skipped. It is a no-op on the first step and while Next is in flight.
func (e *Engine) GoToPreviousStep(ctx context.Context) {
	e.mu.Lock()
	if e.exited || e.navigating {
		e.mu.Unlock()
		return
	}

	prev := prevIndex(e.steps, e.active, e.canSkipSync)
	if prev < 0 {
		e.mu.Unlock()
		return
	}

	dest := e.steps[prev].ID
	e.completed = removeSteps(e.completed, e.active, dest)
	e.changeStepLocked(dest)
	t := e.transitionLocked(session.ActionStep)
	e.mu.Unlock()

	e.notify()
	e.record(ctx, t)
}

// startBackgroundSyncLocked creates the sync job of a skipped synchronize step
// without status updates. Navigation does not wait for it and its failure is
// only logged; the repository's own health reports it later.
func (e *Engine) startBackgroundSyncLocked() {
	requiresMigration := e.requiresMigration
	e.creatingBackgroundJob = true

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		job := e.CreateSyncJob(e.ctx, requiresMigration, SyncJobOptions{SkipStatusUpdates: true})
		if job == nil {
			logger.Warn("Background sync job was not created; check the repository status")
		} else {
			logger.Info("Background sync job %s started", job.Metadata.Name)
		}

		e.mu.Lock()
		e.creatingBackgroundJob = false
		e.mu.Unlock()
		e.notify()
	}()
}

// StartSynchronize (re)starts the sync job for the synchronize step.
func (e *Engine) StartSynchronize(ctx context.Context) error {
	e.mu.Lock()
	if e.active != StepSynchronize {
		e.mu.Unlock()
		return ErrNotReady
	}
	if e.deps.Status.IsRunning() {
		e.mu.Unlock()
		return ErrNotReady
	}
	requiresMigration := e.requiresMigration
	named := e.repositoryName != ""
	e.mu.Unlock()

	if job := e.CreateSyncJob(ctx, requiresMigration, SyncJobOptions{}); job == nil {
		if !named {
			return ErrNoRepositoryName
		}
		return errors.New("synchronization job was not created")
	}
	return nil
}

func (e *Engine) exit(ctx context.Context, outcome Outcome) {
	e.mu.Lock()
	if e.exited {
		e.mu.Unlock()
		return
	}
	e.exited = true
	e.epoch++
	if e.stopWatch != nil {
		e.stopWatch()
		e.stopWatch = nil
	}
	active := e.active
	result := Result{Outcome: outcome, Repository: e.repositoryName, Session: e.opts.Session}
	t := e.transitionLocked(session.ActionExit)
	t.Outcome = string(outcome)
	e.mu.Unlock()

	name := telemetry.EventFinished
	if outcome == OutcomeCancelled {
		name = telemetry.EventCancelled
	}
	e.report(ctx, name, active, nil)
	e.record(ctx, t)
	e.notify()

	logger.Info("Wizard %s (repository=%q)", outcome, result.Repository)
	e.deps.Navigator.Exit(result)
}
