package models

import (
	"time"
)

// Delta partitions a folder's documents relative to a prior sequence number.
// The three sets are disjoint: an item appears in exactly one of them.
type Delta struct {
	New      []DocumentMetadata `json:"new"`
	Modified []DocumentMetadata `json:"modified"`
	Deleted  []Tombstone        `json:"deleted"`
}

// Tombstone records a deleted document (or version) for delta and audit
// queries. DeleteSeq is the sequence number assigned to the deletion itself.
type Tombstone struct {
	DocumentID    int64     `json:"document_id" db:"document_id"`
	VersionNumber int       `json:"version_number" db:"version_number"` // -1 for whole-document tombstones
	FolderID      int64     `json:"folder_id" db:"folder_id"`
	FileName      string    `json:"file_name" db:"file_name"`
	CreatedBy     int64     `json:"created_by" db:"created_by"`
	DeletedBy     int64     `json:"deleted_by" db:"deleted_by"`
	DeletedAt     time.Time `json:"deleted_at" db:"deleted_at"`
	DeleteSeq     int64     `json:"delete_seq" db:"delete_seq"`
}

// WholeDocument reports whether the tombstone covers the document itself
// rather than a single purged version.
func (t *Tombstone) WholeDocument() bool {
	return t.VersionNumber < 0
}
