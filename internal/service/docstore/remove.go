package docstore

import (
	"context"
	"errors"
	"fmt"

	"docstore/internal/domain"
	"docstore/internal/domain/models"
	"docstore/internal/domain/services"
)

// Remove deletes the given documents. Each id is judged on its own: missing
// rows, rows modified after notAfter, foreign-locked rows and rows the caller
// may not delete are skipped and reported back. The survivors go down in a
// single metadata transaction; their blobs are queued on the commit hook.
func (s *Service) Remove(ctx context.Context, session services.Session, ids []int64, notAfter int64) ([]int64, error) {
	var rejected []int64
	var accepted []*models.DocumentMetadata

	for _, id := range ids {
		doc, err := s.docs.GetByID(ctx, id)
		if err != nil {
			rejected = append(rejected, id)
			continue
		}
		if !s.removable(ctx, session, doc, notAfter) {
			rejected = append(rejected, id)
			continue
		}
		accepted = append(accepted, doc)
	}

	if len(accepted) == 0 {
		return rejected, nil
	}

	deleted, lost, err := s.deleteDocuments(ctx, session, accepted)
	if err != nil {
		return rejected, err
	}
	rejected = append(rejected, lost...)

	for _, doc := range deleted {
		s.notifier.NotifyDelete(ctx, doc)
	}
	return rejected, nil
}

// RemoveAll deletes every document in the folder the caller is allowed to
// delete, with the same per-item rejection rules as Remove.
func (s *Service) RemoveAll(ctx context.Context, session services.Session, folderID int64, notAfter int64) ([]int64, error) {
	rights, err := s.gate.Rights(ctx, folderID, session.UserID)
	if err != nil {
		return nil, err
	}
	if !rights.Visible || (!rights.DeleteAll && !rights.DeleteOwn) {
		return nil, fmt.Errorf("clear folder %d: %w", folderID, domain.ErrPermissionDenied)
	}

	var ownerID int64
	if !rights.DeleteAll {
		ownerID = session.UserID
	}

	docs, err := s.docs.ListByFolder(ctx, folderID, models.ListOptions{OwnerID: ownerID})
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(docs))
	for i := range docs {
		ids = append(ids, docs[i].ID)
	}
	return s.Remove(ctx, session, ids, notAfter)
}

// removable applies the per-item rejection rules.
func (s *Service) removable(ctx context.Context, session services.Session, doc *models.DocumentMetadata, notAfter int64) bool {
	if doc.SequenceNumber > notAfter {
		return false
	}
	if _, err := s.gate.RequireDelete(ctx, doc, session.UserID); err != nil {
		return false
	}
	if err := s.checkNotForeignLocked(ctx, doc, session.UserID); err != nil {
		return false
	}
	return true
}

// deleteDocuments removes the accepted rows in one transaction. It returns
// the ones that actually went down plus the ids that lost the race: a row
// that vanished or moved on between the check and the delete joins the
// rejected set without disturbing its siblings (the conditioned DELETE
// touches zero rows, which aborts nothing). Everything else fails the
// transaction.
func (s *Service) deleteDocuments(ctx context.Context, session services.Session, docs []*models.DocumentMetadata) ([]*models.DocumentMetadata, []int64, error) {
	now := s.now()
	var deleted []*models.DocumentMetadata
	var lost []int64

	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		deleted = deleted[:0]
		lost = lost[:0]
		for _, doc := range docs {
			versions, err := s.versions.ListByDocument(txCtx, doc.ID)
			if err != nil {
				return err
			}

			keys := make([]string, 0, len(versions))
			for _, v := range versions {
				if v.HasContent() {
					keys = append(keys, v.BlobKey)
				}
			}

			tombstone := &models.Tombstone{
				DocumentID:    doc.ID,
				VersionNumber: -1,
				FolderID:      doc.FolderID,
				FileName:      doc.FileName,
				CreatedBy:     doc.CreatedBy,
				DeletedBy:     session.UserID,
				DeletedAt:     now,
				DeleteSeq:     nextSequence(now, doc.SequenceNumber),
			}

			err = s.executor.Execute(txCtx, Action{
				Kind:        ActionDeleteDocument,
				Doc:         doc,
				ExpectedSeq: doc.SequenceNumber,
				Tombstone:   tombstone,
			})
			if errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrNotFound) {
				lost = append(lost, doc.ID)
				continue
			}
			if err != nil {
				return err
			}

			s.deferBlobDeletes(txCtx, keys)
			deleted = append(deleted, doc)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return deleted, lost, nil
}

// RemoveVersions purges the given version numbers from a document's history
// and returns the numbers it refused to remove. A foreign lock refuses the
// whole request. Version 0 is never removable. Removing the active version
// promotes the highest surviving numbered version; the promotion is itself
// rejected when the promoted file name would collide inside the folder.
func (s *Service) RemoveVersions(ctx context.Context, session services.Session, id int64, numbers []int) ([]int, error) {
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if _, err := s.gate.RequireDelete(ctx, doc, session.UserID); err != nil {
		return nil, err
	}

	if err := s.checkNotForeignLocked(ctx, doc, session.UserID); err != nil {
		// a foreign lock protects the whole history
		return append([]int(nil), numbers...), nil
	}

	existing, err := s.versions.ListByDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	byNumber := make(map[int]*models.Version, len(existing))
	for i := range existing {
		byNumber[existing[i].Number] = &existing[i]
	}

	var notRemoved []int
	requested := make(map[int]bool, len(numbers))
	for _, n := range numbers {
		if n == 0 || byNumber[n] == nil || requested[n] {
			notRemoved = append(notRemoved, n)
			continue
		}
		requested[n] = true
	}
	if len(requested) == 0 {
		return notRemoved, nil
	}

	removingCurrent := requested[doc.CurrentVersion]

	// the promoted version is the highest surviving numbered one; with no
	// survivor left the document degrades to contentless version 0
	promoted := byNumber[0]
	if removingCurrent {
		for n, v := range byNumber {
			if n == 0 || requested[n] {
				continue
			}
			if promoted.Number == 0 || n > promoted.Number {
				promoted = v
			}
		}

		if promoted.FileName != doc.FileName && promoted.FileName != "" {
			holder, err := s.docs.FindByFileName(ctx, doc.FolderID, promoted.FileName, doc.ID)
			if err != nil {
				return nil, err
			}
			if holder != 0 {
				// keep the current version rather than promote into a clash
				delete(requested, doc.CurrentVersion)
				notRemoved = append(notRemoved, doc.CurrentVersion)
				removingCurrent = false
				if len(requested) == 0 {
					return notRemoved, nil
				}
			}
		}
	}

	now := s.now()
	newSeq := nextSequence(now, doc.SequenceNumber)

	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		var keys []string
		actions := make([]Action, 0, len(requested)+2)

		for n := range requested {
			v := byNumber[n]
			if v.HasContent() {
				keys = append(keys, v.BlobKey)
			}
			actions = append(actions, Action{
				Kind:    ActionDeleteVersion,
				Version: v,
				Tombstone: &models.Tombstone{
					DocumentID:    id,
					VersionNumber: n,
					FolderID:      doc.FolderID,
					FileName:      v.FileName,
					CreatedBy:     v.CreatedBy,
					DeletedBy:     session.UserID,
					DeletedAt:     now,
					DeleteSeq:     newSeq,
				},
			})
		}

		updated := *doc
		updated.ModifiedBy = session.UserID
		updated.LastModified = now
		updated.SequenceNumber = newSeq
		fields := []models.Field{models.FieldModifiedBy, models.FieldLastModified}

		if removingCurrent {
			updated.CurrentVersion = promoted.Number
			updated.Title = promoted.Title
			updated.Description = promoted.Description
			updated.URL = promoted.URL
			updated.FileName = promoted.FileName
			fields = append(fields,
				models.FieldCurrentVersion,
				models.FieldTitle,
				models.FieldDescription,
				models.FieldURL,
				models.FieldFileName,
			)

			zero := *byNumber[0]
			zero.Title = promoted.Title
			zero.Description = promoted.Description
			zero.URL = promoted.URL
			zero.LastModified = now
			actions = append(actions, Action{Kind: ActionUpdateVersion, Version: &zero})
		}

		actions = append(actions, Action{
			Kind:        ActionUpdateDocument,
			Doc:         &updated,
			OldDoc:      doc,
			Fields:      fields,
			ExpectedSeq: doc.SequenceNumber,
		})

		if err := s.executor.Execute(txCtx, actions...); err != nil {
			return err
		}

		s.deferBlobDeletes(txCtx, keys)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyModify(ctx, doc)
	return notRemoved, nil
}
