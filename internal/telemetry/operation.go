package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	PlanEventName      = "reposync.plan"
	PlanVersion        = "1"
	PlanVersionKey     = "reposync.plan.version"
	PlanJSONKey        = "reposync.plan.json"
	defaultOperationID = "wizard"
)

// PlannedStep is one wizard step announced on the root span.
type PlannedStep struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Plan is the ordered list of steps a wizard run may go through.
type Plan struct {
	Steps []PlannedStep `json:"steps"`
}

// Operation is the root span of one wizard run. A nil Operation runs steps
// without tracing.
type Operation struct {
	ctx    context.Context
	tracer trace.Tracer
	span   trace.Span
}

// EmitPlan starts the root span and records the plan as an event on it.
func EmitPlan(ctx context.Context, tracer trace.Tracer, operation string, plan Plan) (*Operation, error) {
	if tracer == nil {
		return nil, fmt.Errorf("emit telemetry plan: tracer is required")
	}
	if err := validatePlan(plan); err != nil {
		return nil, fmt.Errorf("emit telemetry plan: %w", err)
	}

	operation = strings.TrimSpace(operation)
	if operation == "" {
		operation = defaultOperationID
	}

	planJSON, err := json.Marshal(plan)
	if err != nil {
		return nil, fmt.Errorf("emit telemetry plan: marshal plan: %w", err)
	}

	spanCtx, span := tracer.Start(ctx, operation, trace.WithAttributes(
		attribute.String(PlanVersionKey, PlanVersion),
	))
	span.AddEvent(PlanEventName, trace.WithAttributes(
		attribute.String(PlanVersionKey, PlanVersion),
		attribute.String(PlanJSONKey, string(planJSON)),
	))

	return &Operation{ctx: spanCtx, tracer: tracer, span: span}, nil
}

// Context returns the root span context.
func (o *Operation) Context() context.Context {
	if o == nil {
		return context.Background()
	}
	return o.ctx
}

// RunStep runs fn inside a child span named id. The span is parented on the
// root span, so callers can pass their own (cancellable) ctx.
func (o *Operation) RunStep(ctx context.Context, id string, fn func(context.Context) error, attrs ...attribute.KeyValue) error {
	if fn == nil {
		return nil
	}

	stepID := strings.TrimSpace(id)
	if stepID == "" {
		return fmt.Errorf("run telemetry step: step id is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if o == nil || o.tracer == nil {
		return fn(ctx)
	}

	parent := trace.SpanContextFromContext(o.ctx)
	stepCtx, span := o.tracer.Start(trace.ContextWithSpanContext(ctx, parent), stepID, trace.WithAttributes(attrs...))
	defer span.End()

	err := fn(stepCtx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, strings.TrimSpace(err.Error()))
		return err
	}
	return nil
}

// Event adds a named event to the root span.
func (o *Operation) Event(name string, attrs ...attribute.KeyValue) {
	if o == nil || o.span == nil {
		return
	}
	o.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// End closes the root span, recording err when non-nil.
func (o *Operation) End(err error) {
	if o == nil || o.span == nil {
		return
	}
	if err != nil {
		o.span.RecordError(err)
		o.span.SetStatus(codes.Error, strings.TrimSpace(err.Error()))
	}
	o.span.End()
}

func validatePlan(plan Plan) error {
	seen := make(map[string]struct{}, len(plan.Steps))
	for i, step := range plan.Steps {
		stepID := strings.TrimSpace(step.ID)
		if stepID == "" {
			return fmt.Errorf("step %d has empty id", i)
		}
		if _, exists := seen[stepID]; exists {
			return fmt.Errorf("duplicate step id %q", stepID)
		}
		seen[stepID] = struct{}{}
	}
	return nil
}
