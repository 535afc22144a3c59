package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mark3labs/reposync/internal/nats"
	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

type captured struct{ events []Event }

func (c *captured) Report(_ context.Context, e Event) { c.events = append(c.events, e) }

func TestMultiFansOut(t *testing.T) {
	t.Parallel()

	a, b := &captured{}, &captured{}
	m := Multi{a, nil, b, Nop{}, Log{}}
	m.Report(context.Background(), Event{Name: EventFinished})

	if len(a.events) != 1 || len(b.events) != 1 {
		t.Fatalf("fan out = %d/%d, want 1/1", len(a.events), len(b.events))
	}
}

func TestNATSReporterPublishesToSessionSubject(t *testing.T) {
	ctx := context.Background()
	bus, err := nats.Open(ctx, t.TempDir())
	if err != nil {
		t.Fatalf("nats.Open() error = %v", err)
	}
	defer bus.Close()

	r := NewNATS(bus.JetStream, "s1")
	r.Report(ctx, Event{Name: EventStepCompleted, Step: "connection", Provider: "github"})
	r.Report(ctx, Event{Name: EventFinished})
	r.Flush(2 * time.Second)

	consumer, err := bus.Stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		FilterSubject: nats.SubjectForEvent("s1", nats.EventTypeTelemetry),
		DeliverPolicy: jetstream.DeliverAllPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		t.Fatalf("CreateOrUpdateConsumer() error = %v", err)
	}
	batch, err := consumer.FetchNoWait(10)
	if err != nil {
		t.Fatalf("FetchNoWait() error = %v", err)
	}

	var got []Event
	for msg := range batch.Messages() {
		var e Event
		if err := json.Unmarshal(msg.Data(), &e); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		got = append(got, e)
		_ = msg.Ack()
	}

	if len(got) != 2 {
		t.Fatalf("published events = %d, want 2", len(got))
	}
	if got[0].Name != EventStepCompleted || got[0].Session != "s1" || got[0].Step != "connection" {
		t.Fatalf("first event = %+v", got[0])
	}
	if got[1].Time.IsZero() {
		t.Fatal("event time not stamped")
	}
}

func TestTracingTransportRecordsClientSpans(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	recorder := tracetest.NewSpanRecorder()
	tr := NewTracingWithProcessor(recorder)
	defer func() { _ = tr.Shutdown(context.Background()) }()

	client := &http.Client{Transport: tr.Transport(nil)}
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	_ = resp.Body.Close()

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("ended span count = %d, want 1", len(spans))
	}
	if spans[0].SpanKind() != trace.SpanKindClient {
		t.Fatalf("span kind = %v, want client", spans[0].SpanKind())
	}
	if tr.Tracer() == nil {
		t.Fatal("Tracer() = nil")
	}
}

func TestNilTracingIsDisabled(t *testing.T) {
	t.Parallel()

	var tr *Tracing
	if tr.Tracer() != nil {
		t.Fatal("Tracer() on nil tracing should be nil")
	}
	if tr.Transport(nil) != http.DefaultTransport {
		t.Fatal("Transport() on nil tracing should return the base transport")
	}
	if err := tr.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
}
