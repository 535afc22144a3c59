package headless

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/mark3labs/reposync/internal/logger"
	"github.com/mark3labs/reposync/internal/provisioning"
	"github.com/mark3labs/reposync/internal/wizard"
)

// ErrJobFailed is returned when the synchronization job ends in error.
var ErrJobFailed = errors.New("synchronization job failed")

// Runner presses Next until the engine exits.
type Runner struct {
	Engine  *wizard.Engine
	Form    *wizard.MemoryForm
	Out     *Printer
	Verbose bool

	// CancelOnFailure deletes a created repository when the run fails.
	CancelOnFailure bool
	// JobTimeout bounds the wait for the synchronization job.
	JobTimeout time.Duration
}

// Run drives the engine to an outcome. A failure leaves the engine on the
// failing step; with CancelOnFailure the created repository is deleted first.
func (r *Runner) Run(ctx context.Context) error {
	if r.JobTimeout <= 0 {
		r.JobTimeout = 10 * time.Minute
	}

	err := r.run(ctx)
	if err == nil {
		return nil
	}
	r.Out.Fail("%v", err)

	if r.CancelOnFailure && r.Engine.RepositoryName() != "" {
		name := r.Engine.RepositoryName()
		if cerr := r.Engine.ConfirmCancel(context.WithoutCancel(ctx)); cerr != nil {
			r.Out.Fail("Could not delete repository %s: %v", name, cerr)
		} else {
			r.Out.Info("Deleted repository %s", name)
		}
	}
	return err
}

func (r *Runner) run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		snap := r.Engine.Snapshot()
		if snap.Exited {
			return nil
		}

		step := snap.Steps[wizard.IndexOf(snap.Steps, snap.ActiveStep)]
		if step.ID == wizard.StepSynchronize {
			if err := r.awaitJob(ctx); err != nil {
				return err
			}
		} else {
			r.Out.Step("%s", step.Title)
		}

		if r.Verbose && step.ID == wizard.StepConnection {
			r.Out.Info("Repository spec:")
			if err := r.Out.JSON(redacted(wizard.BuildRepository(r.Form.Values()))); err != nil {
				logger.Warn("Printing spec failed: %v", err)
			}
		}

		if snap.CreatingBackgroundJob {
			if err := r.waitUntil(ctx, func(s wizard.Snapshot) bool { return !s.CreatingBackgroundJob }); err != nil {
				return err
			}
		}

		before := r.Engine.RepositoryName()
		if err := r.Engine.Next(ctx); err != nil {
			return r.describe(step, err)
		}
		if name := r.Engine.RepositoryName(); name != "" && before == "" {
			r.Out.OK("Created repository %s", name)
		}
		if step.ID == wizard.StepBootstrap && r.Engine.ActiveStep() == wizard.StepFinish {
			r.Out.Info("Synchronization continues in the background")
		}
	}
}

// awaitJob blocks until the synchronize step's job is terminal.
func (r *Runner) awaitJob(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.JobTimeout)
	defer cancel()

	r.Out.Step("Synchronizing")
	var last wizard.JobProgress
	for {
		snap := r.Engine.Snapshot()
		if snap.Job != nil && (snap.Job.State != last.State || snap.Job.Progress != last.Progress) {
			last = *snap.Job
			msg := string(last.State)
			if last.Message != "" {
				msg += ": " + last.Message
			}
			r.Out.Info("%s job %s %3.0f%% %s", last.Action, last.Name, last.Progress, msg)
		}

		switch snap.Status.Status() {
		case wizard.StatusSuccess:
			r.Out.OK("Synchronization finished")
			return nil
		case wizard.StatusWarning:
			for _, n := range snap.Status.Notes() {
				r.Out.Warn("%s", n)
			}
			r.Out.OK("Synchronization finished with warnings")
			return nil
		case wizard.StatusError:
			payload, _ := snap.Status.Error()
			return fmt.Errorf("%w: %s", ErrJobFailed, payload.Text())
		case wizard.StatusIdle:
			// Resumed on this step: the job was not restarted.
			if snap.Job == nil {
				if err := r.Engine.StartSynchronize(ctx); err != nil {
					return fmt.Errorf("start synchronization: %w", err)
				}
				continue
			}
		}

		select {
		case <-r.Engine.Changes():
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("synchronization did not finish within %s", r.JobTimeout)
			}
			return ctx.Err()
		}
	}
}

// waitUntil blocks until cond holds for a snapshot.
func (r *Runner) waitUntil(ctx context.Context, cond func(wizard.Snapshot) bool) error {
	for !cond(r.Engine.Snapshot()) {
		select {
		case <-r.Engine.Changes():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// describe turns a Next failure into an error carrying the banner and the
// inline field errors.
func (r *Runner) describe(step wizard.StepDescriptor, err error) error {
	if errors.Is(err, wizard.ErrValidation) {
		fields := r.Form.Errors()
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, string(k))
		}
		sort.Strings(keys)
		for _, k := range keys {
			r.Out.Fail("%s: %s", k, fields[wizard.FieldPath(k)])
		}
		return fmt.Errorf("%s: %w", step.DisplayName, err)
	}

	if payload, ok := r.Engine.Status().Status().Error(); ok {
		for field, msg := range r.Form.Errors() {
			r.Out.Fail("%s: %s", field, msg)
		}
		return fmt.Errorf("%s: %s", step.DisplayName, payload.Text())
	}
	return fmt.Errorf("%s: %w", step.DisplayName, err)
}

func redacted(repo provisioning.Repository) provisioning.Repository {
	if repo.Secure != nil && repo.Secure.Token != nil {
		sec := *repo.Secure
		tok := *sec.Token
		tok.Create = "********"
		sec.Token = &tok
		repo.Secure = &sec
	}
	return repo
}
