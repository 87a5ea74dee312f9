package models

import (
	"time"
)

// Lock scope and type. Only exclusive write locks exist today; the fields
// are kept explicit because the WebDAV locking model the callers speak
// distinguishes both axes.
const (
	LockScopeExclusive = "EXCLUSIVE"
	LockTypeWrite      = "WRITE"
)

// Lock is an advisory, timed write lock on a single document. A document has
// zero or one active lock; the holder bypasses its own lock. TimeoutAt nil
// means the lock never expires on its own.
type Lock struct {
	DocumentID int64      `json:"document_id" db:"document_id"`
	Owner      int64      `json:"owner" db:"owner"`
	Scope      string     `json:"scope" db:"scope"`
	Type       string     `json:"type" db:"lock_type"`
	TimeoutAt  *time.Time `json:"timeout_at,omitempty" db:"timeout_at"`
}

// Active reports whether the lock still holds at the given instant.
func (l *Lock) Active(now time.Time) bool {
	return l.TimeoutAt == nil || l.TimeoutAt.After(now)
}
