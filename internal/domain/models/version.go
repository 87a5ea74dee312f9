package models

import (
	"time"
)

// Version is one entry in a document's content history, identified by
// (DocumentID, Number). Numbering starts at 0: version 0 is a metadata-only
// placeholder with no blob, always present for the lifetime of the document.
// Title, description and URL on version 0 are kept in sync with the current
// version by copy-forward on every save.
type Version struct {
	DocumentID   int64     `json:"document_id" db:"document_id"`
	Number       int       `json:"version" db:"version_number"`
	Title        string    `json:"title" db:"title"`
	Description  string    `json:"description" db:"description"`
	URL          string    `json:"url" db:"url"`
	FileName     string    `json:"file_name" db:"file_name"`
	FileSize     int64     `json:"file_size" db:"file_size"`
	FileMD5      string    `json:"file_md5" db:"file_md5"`
	MimeType     string    `json:"mime_type" db:"mime_type"`
	BlobKey      string    `json:"-" db:"blob_key"` // empty for version 0
	CreatedBy    int64     `json:"created_by" db:"created_by"`
	CreationDate time.Time `json:"creation_date" db:"creation_date"`
	LastModified time.Time `json:"last_modified" db:"last_modified"`
}

// HasContent reports whether this version references a stored blob.
func (v *Version) HasContent() bool {
	return v.BlobKey != ""
}
