package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TraceStatus is the lifecycle state of a root trace.
type TraceStatus string

const (
	TraceStatusRunning   TraceStatus = "running"
	TraceStatusCompleted TraceStatus = "completed"
	TraceStatusError     TraceStatus = "error"
	TraceStatusCancelled TraceStatus = "cancelled"
)

// TraceData is the root record of one agent run's trace — the parent of
// every SpanData emitted during that run.
type TraceData struct {
	ID            uuid.UUID  `json:"id"`
	RunID         string     `json:"runId"`
	ParentTraceID *uuid.UUID `json:"parentTraceId,omitempty"`
	AgentID       *uuid.UUID `json:"agentId,omitempty"`

	SessionKey string   `json:"sessionKey"`
	UserID     string   `json:"userId,omitempty"`
	Channel    string   `json:"channel,omitempty"`
	Name       string   `json:"name"`
	Tags       []string `json:"tags,omitempty"`

	InputPreview  string      `json:"inputPreview,omitempty"`
	OutputPreview string      `json:"outputPreview,omitempty"`
	Status        TraceStatus `json:"status"`
	Error         string      `json:"error,omitempty"`

	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// GenNewID returns a fresh random identifier for traces, spans, and other
// store-level record IDs.
func GenNewID() uuid.UUID {
	return uuid.New()
}

type agentIDCtxKey struct{}

// WithAgentID threads the managed-mode agent UUID through a run's context
// so tools and stores can scope their lookups without an explicit parameter.
func WithAgentID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, agentIDCtxKey{}, id)
}

func AgentIDFromContext(ctx context.Context) uuid.UUID {
	if v, ok := ctx.Value(agentIDCtxKey{}).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}
