package docstore

import (
	"context"
	"fmt"
	"log/slog"

	"docstore/internal/domain"
	"docstore/internal/domain/models"
	"docstore/internal/domain/repositories"
)

// ActionKind tags one unit-of-work primitive.
type ActionKind int

const (
	ActionCreateDocument ActionKind = iota
	ActionCreateVersion
	ActionUpdateDocument
	ActionUpdateVersion
	ActionDeleteDocument
	ActionDeleteVersion
)

func (k ActionKind) String() string {
	switch k {
	case ActionCreateDocument:
		return "create-document"
	case ActionCreateVersion:
		return "create-version"
	case ActionUpdateDocument:
		return "update-document"
	case ActionUpdateVersion:
		return "update-version"
	case ActionDeleteDocument:
		return "delete-document"
	case ActionDeleteVersion:
		return "delete-version"
	default:
		return "unknown"
	}
}

// Action is one discrete write over the metadata store. Update variants
// carry the old row snapshot, the new row, the changed columns and the
// caller's concurrency baseline (the old row's sequence number). Delete
// variants carry the tombstone to record.
//
// Actions never manage transactions: the facade wraps a sequence of them in
// one transaction boundary.
type Action struct {
	Kind ActionKind

	Doc    *models.DocumentMetadata // new document row (create/update)
	OldDoc *models.DocumentMetadata // snapshot the update is based on

	Version    *models.Version // new version row (create/update)
	OldVersion *models.Version

	Fields      []models.Field // document columns touched by an update
	ExpectedSeq int64          // concurrency baseline for update/delete document

	Tombstone *models.Tombstone // recorded by delete actions
}

// Executor interprets actions. It is the only code in the service layer
// allowed to call repository write methods, which keeps the consistency
// rules in one testable place.
type Executor struct {
	docs       repositories.DocumentRepository
	versions   repositories.VersionRepository
	tombstones repositories.TombstoneRepository
	locks      repositories.LockRepository
	logger     *slog.Logger
}

// NewExecutor creates a new action executor
func NewExecutor(
	docs repositories.DocumentRepository,
	versions repositories.VersionRepository,
	tombstones repositories.TombstoneRepository,
	locks repositories.LockRepository,
	logger *slog.Logger,
) *Executor {
	return &Executor{
		docs:       docs,
		versions:   versions,
		tombstones: tombstones,
		locks:      locks,
		logger:     logger,
	}
}

// Execute runs the actions in order, stopping at the first failure. The
// caller owns the transaction; a failure here makes the caller roll back,
// so no compensation happens at this level.
func (e *Executor) Execute(ctx context.Context, actions ...Action) error {
	for _, a := range actions {
		if err := e.execute(ctx, a); err != nil {
			return fmt.Errorf("%s: %w", a.Kind, err)
		}
	}
	return nil
}

func (e *Executor) execute(ctx context.Context, a Action) error {
	switch a.Kind {
	case ActionCreateDocument:
		return e.docs.Create(ctx, a.Doc)

	case ActionCreateVersion:
		return e.versions.Create(ctx, a.Version)

	case ActionUpdateDocument:
		// The baseline must be the snapshot the new row was derived
		// from; anything else is a programming error upstream.
		if a.OldDoc != nil && a.ExpectedSeq != a.OldDoc.SequenceNumber {
			return fmt.Errorf("baseline mismatch for document %d: %w", a.Doc.ID, domain.ErrConflict)
		}
		return e.docs.Update(ctx, a.Doc, a.Fields, a.ExpectedSeq)

	case ActionUpdateVersion:
		return e.versions.Update(ctx, a.Version)

	case ActionDeleteDocument:
		if err := e.docs.Delete(ctx, a.Doc.ID, a.ExpectedSeq); err != nil {
			return err
		}
		if err := e.versions.DeleteAll(ctx, a.Doc.ID); err != nil {
			return err
		}
		if err := e.locks.DeleteAllForDocument(ctx, a.Doc.ID); err != nil {
			return err
		}
		if a.Tombstone != nil {
			return e.tombstones.RecordDocument(ctx, a.Tombstone)
		}
		return nil

	case ActionDeleteVersion:
		if err := e.versions.Delete(ctx, a.Version.DocumentID, a.Version.Number); err != nil {
			return err
		}
		if a.Tombstone != nil {
			return e.tombstones.RecordVersion(ctx, a.Tombstone)
		}
		return nil

	default:
		return fmt.Errorf("unknown action kind %d", a.Kind)
	}
}
