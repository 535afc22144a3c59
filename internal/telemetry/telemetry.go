// Package telemetry reports wizard events without blocking the caller and
// wraps wizard operations in OpenTelemetry spans.
package telemetry

import (
	"context"
	"time"

	"github.com/mark3labs/reposync/internal/logger"
)

// Event names emitted by the wizard.
const (
	EventStepCompleted = "wizard.step.completed"
	EventSubmitFailed  = "wizard.submit.failed"
	EventJobCreated    = "wizard.job.created"
	EventJobFinished   = "wizard.job.finished"
	EventFinished      = "wizard.finished"
	EventCancelled     = "wizard.cancelled"
)

// Event is one telemetry record keyed by step and provider.
type Event struct {
	Name       string            `json:"name"`
	Session    string            `json:"session,omitempty"`
	Step       string            `json:"step,omitempty"`
	Provider   string            `json:"provider,omitempty"`
	Repository string            `json:"repository,omitempty"`
	Attrs      map[string]string `json:"attrs,omitempty"`
	Time       time.Time         `json:"time"`
}

// Reporter accepts events. Implementations must return promptly and must not
// surface errors to the caller.
type Reporter interface {
	Report(ctx context.Context, event Event)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Report(context.Context, Event) {}

// Multi fans an event out to several reporters.
type Multi []Reporter

func (m Multi) Report(ctx context.Context, event Event) {
	for _, r := range m {
		if r != nil {
			r.Report(ctx, event)
		}
	}
}

// Log writes events to the debug log.
type Log struct{}

func (Log) Report(_ context.Context, event Event) {
	logger.Debug("telemetry: %s step=%s provider=%s repository=%s attrs=%v",
		event.Name, event.Step, event.Provider, event.Repository, event.Attrs)
}
