package models

import (
	"time"
)

// CurrentVersion selects whatever version a document currently points to.
const CurrentVersion = -1

// InfiniteTimeout never expires a lock automatically.
const InfiniteTimeout = time.Duration(-1)

// DocumentMetadata is one logical item living inside a folder. The ID is
// stable across versions; SequenceNumber is a per-document monotonic clock
// used as the optimistic-concurrency timestamp for every mutation of the
// document row or its active version.
type DocumentMetadata struct {
	ID             int64      `json:"id" db:"id"`
	FolderID       int64      `json:"folder_id" db:"folder_id"`
	Title          string     `json:"title" db:"title"`
	FileName       string     `json:"file_name" db:"file_name"`
	Description    string     `json:"description" db:"description"`
	URL            string     `json:"url" db:"url"`
	CreatedBy      int64      `json:"created_by" db:"created_by"`
	ModifiedBy     int64      `json:"modified_by" db:"modified_by"`
	CreationDate   time.Time  `json:"creation_date" db:"creation_date"`
	LastModified   time.Time  `json:"last_modified" db:"last_modified"`
	SequenceNumber int64      `json:"sequence_number" db:"sequence_number"`
	CreationSeq    int64      `json:"-" db:"creation_seq"` // sequence number at creation, drives delta new/modified
	CurrentVersion int        `json:"current_version" db:"current_version"`
	LockedUntil    *time.Time `json:"locked_until,omitempty"` // derived from the lock table, not persisted on the row

	// Fields of the current version, filled in on single-document reads
	FileSize int64  `json:"file_size,omitempty"`
	FileMD5  string `json:"file_md5,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

// Field names a selectable/sortable document column.
type Field string

const (
	FieldID             Field = "id"
	FieldFolderID       Field = "folder_id"
	FieldTitle          Field = "title"
	FieldFileName       Field = "file_name"
	FieldDescription    Field = "description"
	FieldURL            Field = "url"
	FieldCreatedBy      Field = "created_by"
	FieldModifiedBy     Field = "modified_by"
	FieldCreationDate   Field = "creation_date"
	FieldLastModified   Field = "last_modified"
	FieldSequenceNumber Field = "sequence_number"
	FieldCurrentVersion Field = "current_version"
)

// SortOrder is the direction of a list sort.
type SortOrder string

const (
	Ascending  SortOrder = "ASC"
	Descending SortOrder = "DESC"
)

// ListOptions narrows and orders list queries. Empty Columns selects every
// document column. OwnerID, when non-zero, restricts results to documents
// created by that user ("read own objects only").
type ListOptions struct {
	Columns []Field
	SortBy  Field
	Order   SortOrder
	OwnerID int64
}
