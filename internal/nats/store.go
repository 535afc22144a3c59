package nats

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

const (
	streamName    = "reposync_events"
	subjectPrefix = "reposync"

	// Event types (last subject token)
	EventTypeWizard    = "wizard"
	EventTypeTelemetry = "telemetry"
)

// SubjectForSession returns the wildcard subject for every event of a session.
// Example: "reposync.d1ek6b2m.>"
func SubjectForSession(session string) string {
	return fmt.Sprintf("%s.%s.>", subjectPrefix, session)
}

// SubjectForEvent returns the subject for one event type of a session.
// Example: "reposync.d1ek6b2m.wizard"
func SubjectForEvent(session, eventType string) string {
	return fmt.Sprintf("%s.%s.%s", subjectPrefix, session, eventType)
}

// SetupStream creates or updates the stream holding all reposync events,
// retained for 30 days.
func SetupStream(ctx context.Context, js jetstream.JetStream) (jetstream.Stream, error) {
	return js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{subjectPrefix + ".>"},
		Storage:  jetstream.FileStorage,
		MaxAge:   30 * 24 * time.Hour,
	})
}

// SessionsWithEvents lists sessions that have at least one event of the given
// type, sorted by name.
func SessionsWithEvents(ctx context.Context, stream jetstream.Stream, eventType string) ([]string, error) {
	filter := SubjectForEvent("*", eventType)
	info, err := stream.Info(ctx, jetstream.WithSubjectFilter(filter))
	if err != nil {
		return nil, fmt.Errorf("stream info: %w", err)
	}

	sessions := make([]string, 0, len(info.State.Subjects))
	for subject := range info.State.Subjects {
		parts := strings.Split(subject, ".")
		if len(parts) == 3 && parts[0] == subjectPrefix && parts[2] == eventType {
			sessions = append(sessions, parts[1])
		}
	}
	sort.Strings(sessions)
	return sessions, nil
}
