package telemetry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mark3labs/reposync/internal/logger"
	"github.com/mark3labs/reposync/internal/nats"
	"github.com/nats-io/nats.go/jetstream"
)

// NATS publishes events asynchronously to reposync.{session}.telemetry.
type NATS struct {
	js      jetstream.JetStream
	session string
}

// NewNATS returns a reporter bound to one wizard session.
func NewNATS(js jetstream.JetStream, session string) *NATS {
	return &NATS{js: js, session: session}
}

func (n *NATS) Report(_ context.Context, event Event) {
	if event.Time.IsZero() {
		event.Time = time.Now()
	}
	if event.Session == "" {
		event.Session = n.session
	}

	data, err := json.Marshal(event)
	if err != nil {
		logger.Warn("Failed to marshal telemetry event %s: %v", event.Name, err)
		return
	}

	subject := nats.SubjectForEvent(n.session, nats.EventTypeTelemetry)
	if _, err := n.js.PublishAsync(subject, data); err != nil {
		logger.Warn("Failed to publish telemetry event %s: %v", event.Name, err)
	}
}

// Flush waits up to timeout for outstanding publishes to be acknowledged.
func (n *NATS) Flush(timeout time.Duration) {
	select {
	case <-n.js.PublishAsyncComplete():
	case <-time.After(timeout):
		logger.Warn("Telemetry flush timed out with %d pending", n.js.PublishAsyncPending())
	}
}
