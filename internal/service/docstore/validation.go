package docstore

import (
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"docstore/internal/domain"
	"docstore/internal/domain/models"
)

const (
	maxTitleLength    = 255
	maxFileNameLength = 255
	maxDescription    = 10000
)

// validateMetadata checks a save request's metadata before any storage work.
func validateMetadata(doc *models.DocumentMetadata) error {
	err := validation.ValidateStruct(doc,
		validation.Field(&doc.FolderID, validation.Required),
		validation.Field(&doc.Title, validation.Length(0, maxTitleLength)),
		validation.Field(&doc.FileName,
			validation.Length(0, maxFileNameLength),
			validation.By(validFileName),
		),
		validation.Field(&doc.Description, validation.Length(0, maxDescription)),
		validation.Field(&doc.URL,
			validation.When(doc.URL != "", is.URL),
		),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return nil
}

// validFileName rejects path separators and control characters. Empty names
// are allowed; they are exempt from the uniqueness invariant.
func validFileName(value interface{}) error {
	name, _ := value.(string)
	if name == "" {
		return nil
	}
	if strings.ContainsAny(name, "/\\\x00") {
		return fmt.Errorf("must not contain path separators")
	}
	return nil
}

// nextSequence returns the sequence number for a mutation happening at now,
// based on the row's previous value. Sequence numbers double as wall-clock
// millisecond timestamps; the clamp keeps them strictly increasing even for
// mutations landing within the same millisecond.
func nextSequence(now time.Time, previous int64) int64 {
	seq := now.UnixMilli()
	if seq <= previous {
		return previous + 1
	}
	return seq
}
