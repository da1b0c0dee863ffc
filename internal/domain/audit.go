package domain

import "time"

// DefaultAuditCapacity bounds the in-memory audit ring buffer.
const DefaultAuditCapacity = 1000

type AuditEntry struct {
	ID        string
	Timestamp time.Time
	SessionID string
	Action    string
	Params    map[string]any
	Succeeded bool
	Message   string
}
