package store

import "time"

// MemoryEntry is one fact an agent has chosen to remember about a session
// or user, retrievable later through MemoryStore.Get and Search.
type MemoryEntry struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	SessionKey string   `json:"sessionKey,omitempty"`
	UserID    string    `json:"userId,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MemoryStore persists MemoryEntry records for later recall.
type MemoryStore interface {
	Save(entry MemoryEntry) error
	Get(key, userID string) (MemoryEntry, bool, error)
	Search(query, userID string) ([]MemoryEntry, error)
}
