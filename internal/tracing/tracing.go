// Package tracing records the span tree for one agent run — the root agent
// span and its child LLM-call and tool-call spans — using OpenTelemetry as
// the emission backend and an optional store.TracingStore for durable
// inspection in managed deployments.
package tracing

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/surprisebot/internal/store"
)

type ctxKey string

const (
	keyTraceID                ctxKey = "tracing_trace_id"
	keyParentSpanID            ctxKey = "tracing_parent_span_id"
	keyAnnounceParentSpanID    ctxKey = "tracing_announce_parent_span_id"
	keyDelegateParentTraceID   ctxKey = "tracing_delegate_parent_trace_id"
	keyCollector               ctxKey = "tracing_collector"
)

// Collector fans finished spans out to an OpenTelemetry tracer (for
// exporters wired in cmd/) and, when present, a durable TracingStore.
type Collector struct {
	tracer  trace.Tracer
	store   store.TracingStore
	verbose bool
}

// NewCollector builds a Collector over the given OpenTelemetry tracer.
// Pass a nil tracingStore in standalone mode; spans still flow to otel.
func NewCollector(tracer trace.Tracer, tracingStore store.TracingStore, verbose bool) *Collector {
	return &Collector{tracer: tracer, store: tracingStore, verbose: verbose}
}

// CreateTrace opens the root trace record for a run. In standalone mode
// (no TracingStore bound) this is a no-op — span emission to OpenTelemetry
// still happens without a durable trace row to attach to.
func (c *Collector) CreateTrace(ctx context.Context, trace *store.TraceData) error {
	if c == nil || c.store == nil {
		return nil
	}
	return c.store.SaveTrace(*trace)
}

// FinishTrace closes out a trace with its terminal status.
func (c *Collector) FinishTrace(ctx context.Context, traceID uuid.UUID, status store.TraceStatus, errMsg, outputPreview string) {
	if c == nil || c.store == nil {
		return
	}
	if err := c.store.FinishTrace(traceID, status, errMsg, outputPreview); err != nil {
		slog.Warn("tracing: failed to finish trace", "error", err, "trace_id", traceID)
	}
}

// Verbose reports whether full message/tool-output bodies should be
// serialized into span previews rather than truncated summaries.
func (c *Collector) Verbose() bool {
	return c != nil && c.verbose
}

// EmitSpan records a completed span both as an OpenTelemetry span (for
// otlp export) and, if a store is bound, as a persisted SpanData row.
func (c *Collector) EmitSpan(span store.SpanData) {
	if c == nil {
		return
	}
	if c.tracer != nil {
		c.emitOtel(span)
	}
	if c.store != nil {
		if err := c.store.SaveSpan(span); err != nil {
			slog.Warn("tracing: failed to persist span", "error", err, "span", span.Name)
		}
	}
}

func (c *Collector) emitOtel(span store.SpanData) {
	opts := []trace.SpanStartOption{trace.WithTimestamp(span.StartTime)}
	_, otelSpan := c.tracer.Start(context.Background(), span.Name, opts...)
	defer func() {
		endOpts := []trace.SpanEndOption{}
		if span.EndTime != nil {
			endOpts = append(endOpts, trace.WithTimestamp(*span.EndTime))
		}
		otelSpan.End(endOpts...)
	}()

	otelSpan.SetAttributes(
		attribute.String("span.type", string(span.SpanType)),
		attribute.String("span.status", string(span.Status)),
		attribute.Int("duration_ms", span.DurationMS),
	)
	if span.Model != "" {
		otelSpan.SetAttributes(attribute.String("model", span.Model))
	}
	if span.Provider != "" {
		otelSpan.SetAttributes(attribute.String("provider", span.Provider))
	}
	if span.ToolName != "" {
		otelSpan.SetAttributes(attribute.String("tool.name", span.ToolName))
	}
	if span.InputTokens > 0 || span.OutputTokens > 0 {
		otelSpan.SetAttributes(
			attribute.Int("tokens.input", span.InputTokens),
			attribute.Int("tokens.output", span.OutputTokens),
		)
	}
	if span.Status == store.SpanStatusError && span.Error != "" {
		otelSpan.SetAttributes(attribute.String("error.message", span.Error))
	}
}

// --- context plumbing ---

func WithTraceID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, keyTraceID, id)
}

func TraceIDFromContext(ctx context.Context) uuid.UUID {
	if v, ok := ctx.Value(keyTraceID).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}

func WithCollector(ctx context.Context, c *Collector) context.Context {
	return context.WithValue(ctx, keyCollector, c)
}

func CollectorFromContext(ctx context.Context) *Collector {
	if v, ok := ctx.Value(keyCollector).(*Collector); ok {
		return v
	}
	return nil
}

func WithParentSpanID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, keyParentSpanID, id)
}

func ParentSpanIDFromContext(ctx context.Context) uuid.UUID {
	if v, ok := ctx.Value(keyParentSpanID).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}

// WithAnnounceParentSpanID marks this run as an "announce" — a side-effect
// run (e.g. a heartbeat or cron wake) that should nest under an existing
// root span rather than start a new trace.
func WithAnnounceParentSpanID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, keyAnnounceParentSpanID, id)
}

func AnnounceParentSpanIDFromContext(ctx context.Context) uuid.UUID {
	if v, ok := ctx.Value(keyAnnounceParentSpanID).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}

// WithDelegateParentTraceID marks a subagent run as delegated from a parent
// agent's trace, so its spans can be correlated back to the spawning run.
func WithDelegateParentTraceID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, keyDelegateParentTraceID, id)
}

func DelegateParentTraceIDFromContext(ctx context.Context) uuid.UUID {
	if v, ok := ctx.Value(keyDelegateParentTraceID).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}
