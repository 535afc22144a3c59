package wizard

import (
	"context"
	"errors"

	"github.com/mark3labs/reposync/internal/provisioning"
	"github.com/mark3labs/reposync/internal/session"
)

var (
	ErrSubmissionInProgress = errors.New("a submission is already in progress")
	ErrValidation           = errors.New("form validation failed")
	ErrNoRepositoryName     = errors.New("no repository name provided")
	ErrNoIdentifier         = errors.New("repository saved but no identifier returned")
	ErrNotReady             = errors.New("step is not ready to continue")
)

// RepositoryAPI persists and removes the repository resource.
type RepositoryAPI interface {
	// CreateOrUpdate creates the resource when name is empty and replaces
	// it otherwise.
	CreateOrUpdate(ctx context.Context, name string, repo provisioning.Repository) (*provisioning.Repository, error)
	Delete(ctx context.Context, name string) error
}

// JobAPI creates jobs and watches their status.
type JobAPI interface {
	CreateJob(ctx context.Context, repository string, spec provisioning.JobSpec) (*provisioning.Job, error)
	// WatchJob emits observations until the job is terminal or ctx is done.
	WatchJob(ctx context.Context, repository, name string) (<-chan provisioning.Job, error)
}

// SettingsAPI reports instance storage settings and resource counts.
type SettingsAPI interface {
	Settings(ctx context.Context) (*provisioning.Settings, error)
	Stats(ctx context.Context) (*provisioning.ResourceStats, error)
}

// Outcome is how a wizard run ended.
type Outcome string

const (
	OutcomeFinished  Outcome = "finished"
	OutcomeCancelled Outcome = "cancelled"
)

// Result is handed to the Navigator on exit.
type Result struct {
	Outcome    Outcome
	Repository string
	Session    string
}

// Navigator performs terminal navigation away from the wizard.
type Navigator interface {
	Exit(result Result)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(Result)

func (f NavigatorFunc) Exit(r Result) { f(r) }

// Journal records durable transitions so a run can be resumed.
type Journal interface {
	Record(ctx context.Context, t session.Transition) error
}
