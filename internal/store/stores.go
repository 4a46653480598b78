package store

// Stores is the top-level container for the storage backends an
// orchestrator instance wires together: session transcripts, memory, and
// (when otlp/trace export is configured) durable trace spans. The
// mission-control SQLite schema (tasks/incidents/rollups) lives in
// internal/missioncontrol, not here — it isn't a per-request lookup store
// like these.
type Stores struct {
	Sessions SessionStore
	Memory   MemoryStore
	Tracing  TracingStore // nil unless a TracingStore backend is configured
}
