package wizard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/reposync/internal/logger"
	"github.com/mark3labs/reposync/internal/provisioning"
	"github.com/mark3labs/reposync/internal/session"
	"github.com/mark3labs/reposync/internal/telemetry"
)

const (
	noRepositoryMessage = "No repository name provided"
	jobCreateTitle      = "Error starting synchronization"
	jobFailedTitle      = "Synchronization failed"
	jobLostMessage      = "Lost track of the synchronization job"
)

// SyncJobOptions tune CreateSyncJob.
type SyncJobOptions struct {
	// SkipStatusUpdates makes the job fire-and-forget: no status changes and
	// no observation.
	SkipStatusUpdates bool
}

// JobSpecFor builds the job a sync needs: a migration when the instance still
// holds unmanaged resources, else a full pull. History is only kept when
// migrating legacy storage into a git repository.
func JobSpecFor(requiresMigration bool, data FormData, legacyStorage bool) provisioning.JobSpec {
	if requiresMigration {
		return provisioning.JobSpec{
			Action: provisioning.ActionMigrate,
			Migrate: &provisioning.MigrateJobOptions{
				History: data.Migrate.History && data.Repository.Type.IsGit() && legacyStorage,
			},
		}
	}
	return provisioning.JobSpec{
		Action: provisioning.ActionPull,
		Pull:   &provisioning.PullJobOptions{Incremental: false},
	}
}

// CreateSyncJob creates the sync job for the repository and, unless status
// updates are skipped, marks the step running and starts observing the job.
// It returns nil on any failure.
func (e *Engine) CreateSyncJob(ctx context.Context, requiresMigration bool, opts SyncJobOptions) *provisioning.Job {
	e.mu.Lock()
	name := e.repositoryName
	epoch := e.epoch
	legacy := e.legacyStorage
	e.mu.Unlock()

	if name == "" {
		logger.Warn("Cannot create sync job: %s", noRepositoryMessage)
		if !opts.SkipStatusUpdates {
			e.setStatusIfCurrent(epoch, Failed(PlainError(noRepositoryMessage)))
		}
		return nil
	}

	spec := JobSpecFor(requiresMigration, e.deps.Form.Values(), legacy)

	var job *provisioning.Job
	err := e.deps.Operation.RunStep(ctx, "job.create", func(ctx context.Context) error {
		var err error
		job, err = e.deps.Jobs.CreateJob(ctx, name, spec)
		if err == nil && (job == nil || job.Metadata.Name == "") {
			err = errors.New("job created without a name")
		}
		return err
	})
	if err != nil {
		logger.Warn("Creating %s job for %s failed: %v", spec.Action, name, err)
		if !opts.SkipStatusUpdates {
			e.setStatusIfCurrent(epoch, Failed(ErrorPayload{Title: jobCreateTitle, Message: []string{err.Error()}}))
		}
		return nil
	}

	e.mu.Lock()
	t := e.transitionLocked(session.ActionJob)
	active := e.active
	e.mu.Unlock()
	t.Job = job.Metadata.Name
	e.record(ctx, t)
	e.report(ctx, telemetry.EventJobCreated, active, map[string]string{
		"job":        job.Metadata.Name,
		"action":     string(spec.Action),
		"background": fmt.Sprint(opts.SkipStatusUpdates),
	})

	if !opts.SkipStatusUpdates {
		if e.setStatusIfCurrent(epoch, Running()) {
			e.observe(epoch, name, *job)
		}
	}
	return job
}

// observe watches job until it is terminal, the step changes or the engine
// closes. Only observation stops; the job keeps running server-side.
func (e *Engine) observe(epoch uint64, repository string, job provisioning.Job) {
	ctx, cancel := context.WithCancel(e.ctx)

	e.mu.Lock()
	if e.epoch != epoch || e.exited {
		e.mu.Unlock()
		cancel()
		return
	}
	if e.stopWatch != nil {
		e.stopWatch()
	}
	e.stopWatch = cancel
	e.job = &JobProgress{
		Name:   job.Metadata.Name,
		Action: job.Spec.Action,
		State:  provisioning.JobPending,
	}
	e.wg.Add(1)
	e.mu.Unlock()
	e.notify()

	go func() {
		defer e.wg.Done()
		defer cancel()

		err := e.deps.Operation.RunStep(ctx, "job.watch", func(ctx context.Context) error {
			return e.watch(ctx, epoch, repository, job.Metadata.Name)
		})
		if err != nil && ctx.Err() == nil {
			logger.Warn("Job %s: %v", job.Metadata.Name, err)
		}
	}()
}

func (e *Engine) watch(ctx context.Context, epoch uint64, repository, name string) error {
	ch, err := e.deps.Jobs.WatchJob(ctx, repository, name)
	if err != nil {
		if ctx.Err() == nil {
			e.setStatusIfCurrent(epoch, Failed(ErrorPayload{Title: jobFailedTitle, Message: []string{err.Error()}}))
		}
		return err
	}

	for j := range ch {
		finished := j.Status.State.Finished()

		e.mu.Lock()
		if e.epoch != epoch || e.exited {
			e.mu.Unlock()
			return nil
		}
		e.job = &JobProgress{
			Name:     j.Metadata.Name,
			Action:   j.Spec.Action,
			State:    j.Status.State,
			Message:  j.Status.Message,
			Progress: j.Status.Progress,
			Errors:   append([]string(nil), j.Status.Errors...),
		}
		info := statusForJob(j)
		if finished {
			e.deps.Status.SetStatus(info)
		}
		t := e.transitionLocked(session.ActionStatus)
		active := e.active
		e.mu.Unlock()
		e.notify()

		if !finished {
			continue
		}

		t.Job = name
		t.Status = info.Status().String()
		e.record(ctx, t)
		e.report(ctx, telemetry.EventJobFinished, active, map[string]string{
			"job":   name,
			"state": string(j.Status.State),
		})
		if e.opts.OnJobFinished != nil {
			e.opts.OnJobFinished(j)
		}
		if j.Status.State == provisioning.JobError {
			return fmt.Errorf("job failed: %s", jobFailureText(j))
		}
		return nil
	}

	if ctx.Err() != nil {
		return nil
	}
	e.setStatusIfCurrent(epoch, Failed(ErrorPayload{Title: jobFailedTitle, Message: []string{jobLostMessage}}))
	return errors.New(strings.ToLower(jobLostMessage))
}

// statusForJob maps a terminal job onto the step status.
func statusForJob(j provisioning.Job) StepStatusInfo {
	switch j.Status.State {
	case provisioning.JobSuccess:
		return Succeeded()
	case provisioning.JobWarning:
		notes := j.Status.Errors
		if len(notes) == 0 && j.Status.Message != "" {
			notes = []string{j.Status.Message}
		}
		return Warned(notes...)
	case provisioning.JobError:
		msg := j.Status.Errors
		if len(msg) == 0 {
			msg = []string{jobFailureText(j)}
		}
		return Failed(ErrorPayload{Title: jobFailedTitle, Message: msg})
	default:
		return Running()
	}
}

func jobFailureText(j provisioning.Job) string {
	if j.Status.Message != "" {
		return j.Status.Message
	}
	if len(j.Status.Errors) > 0 {
		return strings.Join(j.Status.Errors, "; ")
	}
	return "unknown error"
}
