package domain

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
// Implementing this interface keeps the handler layer free of per-error
// switch statements for the typed variants.
type HTTPError interface {
	error
	StatusCode() int
}

// Sentinel errors for the store's failure taxonomy - use with errors.Is()
var (
	// ErrNotFound indicates the document, version or blob does not exist
	ErrNotFound = errors.New("not found")

	// ErrPermissionDenied indicates the caller lacks the required right
	ErrPermissionDenied = errors.New("permission denied")

	// ErrLocked indicates another owner holds the write lock
	ErrLocked = errors.New("locked by another user")

	// ErrConflict indicates a stale sequence number (concurrent modification)
	ErrConflict = errors.New("object has changed")

	// ErrDuplicateFilename indicates the filename is already taken in the folder
	ErrDuplicateFilename = errors.New("filename already in use")

	// ErrQuotaExceeded indicates the write would exceed the owner's storage quota
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// ErrStoreUnavailable indicates the blob store could not be reached
	ErrStoreUnavailable = errors.New("file store unavailable")

	// ErrInconsistent indicates metadata references a blob that is missing.
	// This signals an administrative repair, it is never silently fixed.
	ErrInconsistent = errors.New("file store inconsistent")

	// ErrValidation indicates invalid input
	ErrValidation = errors.New("validation failed")
)

// ConflictError carries the sequence numbers of a lost optimistic-concurrency
// race so callers can reload and retry.
type ConflictError struct {
	DocumentID       int64
	ExpectedSequence int64
	ActualSequence   int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("document %d has changed (expected sequence %d, stored %d)",
		e.DocumentID, e.ExpectedSequence, e.ActualSequence)
}

func (e *ConflictError) StatusCode() int { return http.StatusConflict }

// Is allows errors.Is() to match against ErrConflict
func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// DuplicateFilenameError reports a filename collision within one folder.
type DuplicateFilenameError struct {
	FolderID   int64
	FileName   string
	DocumentID int64 // the document already holding the name
}

func (e *DuplicateFilenameError) Error() string {
	return fmt.Sprintf("filename %q is already used by document %d in folder %d",
		e.FileName, e.DocumentID, e.FolderID)
}

func (e *DuplicateFilenameError) StatusCode() int { return http.StatusConflict }

func (e *DuplicateFilenameError) Is(target error) bool { return target == ErrDuplicateFilename }

// LockedError reports a write lock held by another owner.
type LockedError struct {
	DocumentID int64
	Owner      int64
	Until      *time.Time // nil for infinite locks
}

func (e *LockedError) Error() string {
	if e.Until == nil {
		return fmt.Sprintf("document %d is locked by user %d", e.DocumentID, e.Owner)
	}
	return fmt.Sprintf("document %d is locked by user %d until %s",
		e.DocumentID, e.Owner, e.Until.Format(time.RFC3339))
}

func (e *LockedError) StatusCode() int { return http.StatusLocked }

func (e *LockedError) Is(target error) bool { return target == ErrLocked }

// QuotaExceededError reports a rejected blob write, before anything was
// made durable.
type QuotaExceededError struct {
	Owner     int64
	Limit     int64
	Used      int64
	Requested int64
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for user %d: %d of %d bytes used, %d requested",
		e.Owner, e.Used, e.Limit, e.Requested)
}

func (e *QuotaExceededError) StatusCode() int { return http.StatusInsufficientStorage }

func (e *QuotaExceededError) Is(target error) bool { return target == ErrQuotaExceeded }
