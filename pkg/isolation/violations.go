package isolation

import (
	"sync"
	"time"
)

// Violation is one recorded isolation offense. Records are kept whether or
// not the offending request was ultimately rejected, so permissive
// development mode still leaves an audit trail.
type Violation struct {
	Type       string    `json:"type"`
	Schema     string    `json:"schema,omitempty"`
	TenantID   string    `json:"tenantId,omitempty"`
	Method     string    `json:"method,omitempty"`
	Path       string    `json:"path,omitempty"`
	RemoteIP   string    `json:"remoteIp,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// ViolationLog is a bounded rolling log of isolation violations. When full,
// the oldest entry is evicted. Safe for concurrent use.
type ViolationLog struct {
	mu      sync.Mutex
	entries []Violation
	next    int
	full    bool
}

// NewViolationLog creates a log holding at most capacity entries.
func NewViolationLog(capacity int) *ViolationLog {
	if capacity <= 0 {
		capacity = 256
	}
	return &ViolationLog{entries: make([]Violation, capacity)}
}

// Record appends a violation, evicting the oldest entry when full.
func (l *ViolationLog) Record(v Violation) {
	if v.OccurredAt.IsZero() {
		v.OccurredAt = time.Now().UTC()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[l.next] = v
	l.next++
	if l.next == len(l.entries) {
		l.next = 0
		l.full = true
	}
}

// Recent returns up to n violations, newest first.
func (l *ViolationLog) Recent(n int) []Violation {
	l.mu.Lock()
	defer l.mu.Unlock()

	size := l.next
	if l.full {
		size = len(l.entries)
	}
	if n <= 0 || n > size {
		n = size
	}

	out := make([]Violation, 0, n)
	for i := 0; i < n; i++ {
		idx := (l.next - 1 - i + len(l.entries)) % len(l.entries)
		out = append(out, l.entries[idx])
	}
	return out
}

// Len returns the number of violations currently held.
func (l *ViolationLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.full {
		return len(l.entries)
	}
	return l.next
}
