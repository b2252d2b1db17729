// Copyright 2025 James Ross
package realtime

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AuditEntry is one Activity Feed record, grounded on the teacher's
// admin-api AuditEntry shape.
type AuditEntry struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"userId"`
	Timestamp time.Time              `json:"timestamp"`
	Action    string                 `json:"action"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// AuditLog is queried by the Gateway's activity_feed command and written to
// by the pipeline and by the Gateway's analytics_ping handler.
type AuditLog interface {
	Record(userID, action string, details map[string]interface{})
	ListByUser(userID string, limit, offset int) []AuditEntry
}

// MemoryAuditLog is an in-process AuditLog, sufficient for single-node
// deployments and tests; a durable backend can wrap the same interface.
type MemoryAuditLog struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func NewMemoryAuditLog() *MemoryAuditLog {
	return &MemoryAuditLog{}
}

func (l *MemoryAuditLog) Record(userID, action string, details map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, AuditEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		Action:    action,
		Details:   details,
	})
}

func (l *MemoryAuditLog) ListByUser(userID string, limit, offset int) []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var matched []AuditEntry
	for _, e := range l.entries {
		if e.UserID == userID {
			matched = append(matched, e)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Timestamp.After(matched[j].Timestamp) })
	if offset >= len(matched) {
		return nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched
}
