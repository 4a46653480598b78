// Package protocol defines the wire-level event names shared across the
// orchestrator and its observers (agent event subscribers, heartbeat
// listeners, cron dispatchers).
package protocol

// Broadcast event names.
const (
	EventAgent     = "agent"
	EventChat      = "chat"
	EventHealth    = "health"
	EventCron      = "cron"
	EventHeartbeat = "heartbeat"
	EventIncident  = "incident"

	// Cache invalidation events (internal, not forwarded to any external bus).
	EventCacheInvalidate = "cache.invalidate"
)

// Agent event subtypes (AgentEvent.Type).
const (
	AgentEventRunStarted   = "run.started"
	AgentEventRunCompleted = "run.completed"
	AgentEventRunFailed    = "run.failed"
	AgentEventRunRetrying  = "run.retrying"
	AgentEventToolCall     = "tool.call"
	AgentEventToolResult   = "tool.result"
	AgentEventCompaction   = "compaction"
)

// Chat event subtypes (in payload.type)
const (
	ChatEventChunk    = "chunk"
	ChatEventMessage  = "message"
	ChatEventThinking = "thinking"
)

// Agent event stream names, keyed by runId.
const (
	StreamLifecycle  = "lifecycle"
	StreamTool       = "tool"
	StreamCompaction = "compaction"
	StreamBlock      = "block"
	StreamError      = "error"
)

// Heartbeat outcome kinds.
const (
	HeartbeatSent    = "sent"
	HeartbeatOKEmpty = "ok-empty"
	HeartbeatOKToken = "ok-token"
	HeartbeatFailed  = "failed"
	HeartbeatSkipped = "skipped"
)
