// Package session journals wizard runs in JetStream so an interrupted run can
// be resumed. Each run is a session; its transitions are appended as events
// and replayed into a State.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gosimple/slug"
	"github.com/mark3labs/reposync/internal/logger"
	"github.com/mark3labs/reposync/internal/nats"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/xid"
)

// Event is one record in the JetStream event log.
type Event struct {
	ID        string          `json:"id"`        // NATS stream sequence
	Timestamp time.Time       `json:"timestamp"` // When the event occurred
	Session   string          `json:"session"`   // Session name
	Type      string          `json:"type"`      // Event type: wizard
	Action    string          `json:"action"`    // Transition action
	Meta      json.RawMessage `json:"meta"`      // Encoded Transition
	Data      string          `json:"data"`      // Human-readable summary
}

// Transition actions.
const (
	ActionStart      = "start"
	ActionStep       = "step"
	ActionRepository = "repository"
	ActionJob        = "job"
	ActionStatus     = "status"
	ActionExit       = "exit"
)

// Transition is a snapshot of the wizard taken when something durable changed.
type Transition struct {
	Action             string   `json:"action"`
	Step               string   `json:"step,omitempty"`
	Completed          []string `json:"completed,omitempty"`
	Repository         string   `json:"repository,omitempty"`
	CanSkipSynchronize bool     `json:"can_skip_synchronize,omitempty"`
	Provider           string   `json:"provider,omitempty"`
	AuthMode           string   `json:"auth_mode,omitempty"`
	Status             string   `json:"status,omitempty"`
	Job                string   `json:"job,omitempty"`
	Outcome            string   `json:"outcome,omitempty"`
	Message            string   `json:"message,omitempty"`
}

// NewID returns a fresh session name usable as a subject token.
func NewID() string {
	return xid.New().String()
}

// ValidID reports whether id can be used as a session name.
func ValidID(id string) bool {
	return id != "" && slug.IsSlug(id)
}

// Store publishes and replays wizard events.
type Store struct {
	js     jetstream.JetStream
	stream jetstream.Stream
}

// NewStore creates a Store over an existing stream.
func NewStore(js jetstream.JetStream, stream jetstream.Stream) *Store {
	return &Store{js: js, stream: stream}
}

// PublishEvent appends an event to reposync.{session}.{type}.
func (s *Store) PublishEvent(ctx context.Context, event Event) (*jetstream.PubAck, error) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	subject := nats.SubjectForEvent(event.Session, event.Type)
	logger.Debug("Publishing event: session=%s type=%s action=%s", event.Session, event.Type, event.Action)

	ack, err := s.js.Publish(ctx, subject, data)
	if err != nil {
		logger.Error("Failed to publish event to subject %s: %v", subject, err)
		return nil, fmt.Errorf("failed to publish event: %w", err)
	}
	return ack, nil
}

// Record journals a transition for session.
func (s *Store) Record(ctx context.Context, session string, t Transition) error {
	if !ValidID(session) {
		return fmt.Errorf("invalid session name %q", session)
	}
	meta, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal transition: %w", err)
	}
	_, err = s.PublishEvent(ctx, Event{
		Session: session,
		Type:    nats.EventTypeWizard,
		Action:  t.Action,
		Meta:    meta,
		Data:    t.Message,
	})
	return err
}

// Journal binds a Store to one session.
type Journal struct {
	store   *Store
	session string
}

// Journal returns a recorder for session.
func (s *Store) Journal(session string) *Journal {
	return &Journal{store: s, session: session}
}

// Session returns the bound session name.
func (j *Journal) Session() string { return j.session }

func (j *Journal) Record(ctx context.Context, t Transition) error {
	return j.store.Record(ctx, j.session, t)
}

// State is a session rebuilt from its events.
type State struct {
	Session            string    `json:"session"`
	Provider           string    `json:"provider"`
	AuthMode           string    `json:"auth_mode"`
	ActiveStep         string    `json:"active_step"`
	Completed          []string  `json:"completed"`
	Repository         string    `json:"repository"`
	CanSkipSynchronize bool      `json:"can_skip_synchronize"`
	LastStatus         string    `json:"last_status"`
	Jobs               []string  `json:"jobs"`
	Outcome            string    `json:"outcome"`
	Events             int       `json:"events"`
	StartedAt          time.Time `json:"started_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Finished reports whether the run exited (finished or cancelled).
func (st *State) Finished() bool {
	return st.Outcome != ""
}

// Apply folds one event into the state.
func (st *State) Apply(event Event) {
	if event.Type != nats.EventTypeWizard {
		return
	}

	var t Transition
	if err := json.Unmarshal(event.Meta, &t); err != nil {
		logger.Warn("Skipping transition with bad meta (id=%s): %v", event.ID, err)
		return
	}

	st.Events++
	if st.StartedAt.IsZero() {
		st.StartedAt = event.Timestamp
	}
	st.UpdatedAt = event.Timestamp

	switch event.Action {
	case ActionStart:
		st.Provider = t.Provider
		st.AuthMode = t.AuthMode
		st.ActiveStep = t.Step
		st.Outcome = ""
	case ActionStep:
		st.ActiveStep = t.Step
		st.Completed = append([]string(nil), t.Completed...)
		st.CanSkipSynchronize = t.CanSkipSynchronize
		if t.AuthMode != "" {
			st.AuthMode = t.AuthMode
		}
		st.LastStatus = ""
	case ActionRepository:
		st.Repository = t.Repository
	case ActionJob:
		st.Jobs = append(st.Jobs, t.Job)
	case ActionStatus:
		st.LastStatus = t.Status
	case ActionExit:
		st.Outcome = t.Outcome
	}
}

// LoadState replays every wizard event of session.
func (s *Store) LoadState(ctx context.Context, session string) (*State, error) {
	logger.Debug("Loading state for session: %s", session)

	consumer, err := s.stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		FilterSubject: nats.SubjectForEvent(session, nats.EventTypeWizard),
		DeliverPolicy: jetstream.DeliverAllPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	state := &State{Session: session}

	const batchSize = 1000
	malformed := 0
	for {
		msgs, err := consumer.FetchNoWait(batchSize)
		if err != nil {
			break
		}

		count := 0
		for msg := range msgs.Messages() {
			count++
			var event Event
			if err := json.Unmarshal(msg.Data(), &event); err != nil {
				malformed++
				_ = msg.Ack()
				continue
			}
			if event.ID == "" {
				if meta, err := msg.Metadata(); err == nil {
					event.ID = fmt.Sprintf("%d", meta.Sequence.Stream)
				}
			}
			state.Apply(event)
			_ = msg.Ack()
		}

		if count < batchSize {
			break
		}
	}

	if malformed > 0 {
		logger.Warn("Skipped %d malformed events while loading session %s", malformed, session)
	}
	logger.Debug("Session %s loaded: %d events, step=%s repository=%s", session, state.Events, state.ActiveStep, state.Repository)
	return state, nil
}

// ListSessions returns the state of every journaled session.
func (s *Store) ListSessions(ctx context.Context) ([]*State, error) {
	names, err := nats.SessionsWithEvents(ctx, s.stream, nats.EventTypeWizard)
	if err != nil {
		return nil, err
	}

	states := make([]*State, 0, len(names))
	for _, name := range names {
		st, err := s.LoadState(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("load session %s: %w", name, err)
		}
		states = append(states, st)
	}
	return states, nil
}
