package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SpanType distinguishes the shape of work a trace span represents.
type SpanType string

const (
	SpanTypeAgent    SpanType = "agent"
	SpanTypeLLMCall  SpanType = "llm_call"
	SpanTypeToolCall SpanType = "tool_call"
)

// SpanStatus is the terminal outcome of a span.
type SpanStatus string

const (
	SpanStatusCompleted SpanStatus = "completed"
	SpanStatusError     SpanStatus = "error"
)

// SpanLevel mirrors OpenTelemetry's coarse severity bucketing for spans
// surfaced to a trace viewer.
const (
	SpanLevelDefault = "DEFAULT"
	SpanLevelWarning = "WARNING"
	SpanLevelError   = "ERROR"
)

// SpanData is one recorded unit of work — an agent run, an LLM call, or a
// tool invocation — in the run's trace tree.
type SpanData struct {
	ID           uuid.UUID  `json:"id"`
	TraceID      uuid.UUID  `json:"traceId"`
	ParentSpanID *uuid.UUID `json:"parentSpanId,omitempty"`
	AgentID      *uuid.UUID `json:"agentId,omitempty"`

	SpanType SpanType  `json:"spanType"`
	Name     string    `json:"name"`
	Status   SpanStatus `json:"status"`
	Level    string    `json:"level"`

	StartTime  time.Time  `json:"startTime"`
	EndTime    *time.Time `json:"endTime,omitempty"`
	DurationMS int        `json:"durationMs"`

	Model    string `json:"model,omitempty"`
	Provider string `json:"provider,omitempty"`

	ToolName   string `json:"toolName,omitempty"`
	ToolCallID string `json:"toolCallId,omitempty"`

	InputPreview  string `json:"inputPreview,omitempty"`
	OutputPreview string `json:"outputPreview,omitempty"`

	InputTokens  int `json:"inputTokens,omitempty"`
	OutputTokens int `json:"outputTokens,omitempty"`

	FinishReason string          `json:"finishReason,omitempty"`
	Error        string          `json:"error,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// TracingStore persists spans for later inspection (managed mode only — nil
// in standalone deployments, where tracing.Collector still emits spans via
// OpenTelemetry but has nowhere durable to file them).
type TracingStore interface {
	SaveSpan(span SpanData) error
	SpansByTrace(traceID uuid.UUID) ([]SpanData, error)
	SaveTrace(trace TraceData) error
	FinishTrace(traceID uuid.UUID, status TraceStatus, errMsg, outputPreview string) error
}
