package application

import (
	"maps"
	"sync"

	"github.com/bnema/cuedesk/internal/domain"
)

// AuditLog is a fixed-capacity ring buffer of executed actions. Oldest
// entries are dropped silently once the buffer is full.
type AuditLog struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
	start   int
	size    int
}

func NewAuditLog(capacity int) *AuditLog {
	if capacity <= 0 {
		capacity = domain.DefaultAuditCapacity
	}

	return &AuditLog{entries: make([]domain.AuditEntry, capacity)}
}

func (l *AuditLog) Append(entry domain.AuditEntry) {
	entry.Params = maps.Clone(entry.Params)

	l.mu.Lock()
	defer l.mu.Unlock()

	capacity := len(l.entries)
	if l.size < capacity {
		l.entries[(l.start+l.size)%capacity] = entry
		l.size++
		return
	}

	l.entries[l.start] = entry
	l.start = (l.start + 1) % capacity
}

// Recent returns up to limit entries, newest last. A non-positive limit
// returns everything retained.
func (l *AuditLog) Recent(limit int) []domain.AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limit <= 0 || limit > l.size {
		limit = l.size
	}

	out := make([]domain.AuditEntry, 0, limit)
	capacity := len(l.entries)
	for i := l.size - limit; i < l.size; i++ {
		entry := l.entries[(l.start+i)%capacity]
		entry.Params = maps.Clone(entry.Params)
		out = append(out, entry)
	}

	return out
}

func (l *AuditLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.size
}

func (l *AuditLog) Capacity() int {
	return len(l.entries)
}
