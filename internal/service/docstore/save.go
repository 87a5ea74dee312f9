package docstore

import (
	"context"
	"fmt"
	"io"

	"docstore/internal/domain"
	"docstore/internal/domain/models"
	"docstore/internal/domain/repositories"
	"docstore/internal/domain/services"
)

// Save creates the document when doc.ID is zero, otherwise updates it.
func (s *Service) Save(ctx context.Context, session services.Session, doc *models.DocumentMetadata, content io.Reader, expectedSeq int64) (*models.DocumentMetadata, error) {
	if err := validateMetadata(doc); err != nil {
		return nil, err
	}

	if doc.ID == 0 {
		return s.create(ctx, session, doc, content)
	}
	return s.update(ctx, session, doc, content, expectedSeq)
}

// create builds a brand-new document. Ordering is deliberate:
//
//  1. allocate the id (own short transaction inside the generator)
//  2. insert the document row with current_version = 0
//  3. insert the version-0 row
//  4. if content is present: write the blob, insert the version-1 row,
//     advance current_version to 1
//
// A failure in step 4 leaves a valid, contentless document rather than a
// row referencing a version that never made it.
func (s *Service) create(ctx context.Context, session services.Session, doc *models.DocumentMetadata, content io.Reader) (*models.DocumentMetadata, error) {
	if _, err := s.gate.RequireCreate(ctx, doc.FolderID, session.UserID); err != nil {
		return nil, err
	}

	if err := s.checkFileNameFree(ctx, doc.FolderID, doc.FileName, 0); err != nil {
		return nil, err
	}

	id, err := s.idgen.NextID(ctx, repositories.IDDomainDocuments)
	if err != nil {
		return nil, fmt.Errorf("allocate document id: %w", err)
	}

	now := s.now()
	seq := nextSequence(now, 0)

	created := &models.DocumentMetadata{
		ID:             id,
		FolderID:       doc.FolderID,
		Title:          doc.Title,
		FileName:       doc.FileName,
		Description:    doc.Description,
		URL:            doc.URL,
		CreatedBy:      session.UserID,
		ModifiedBy:     session.UserID,
		CreationDate:   now,
		LastModified:   now,
		SequenceNumber: seq,
		CreationSeq:    seq,
		CurrentVersion: 0,
	}

	versionZero := &models.Version{
		DocumentID:   id,
		Number:       0,
		Title:        doc.Title,
		Description:  doc.Description,
		URL:          doc.URL,
		FileName:     doc.FileName,
		CreatedBy:    session.UserID,
		CreationDate: now,
		LastModified: now,
	}

	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		return s.executor.Execute(txCtx,
			Action{Kind: ActionCreateDocument, Doc: created},
			Action{Kind: ActionCreateVersion, Version: versionZero},
		)
	})
	if err != nil {
		return nil, err
	}

	if content != nil {
		if err := s.attachFirstVersion(ctx, session, created, doc, content); err != nil {
			// the contentless document stands; the caller retries the
			// content attach with the returned state if they want to
			return created, err
		}
	}

	s.notifier.NotifyCreate(ctx, created)
	return created, nil
}

// attachFirstVersion writes the blob and promotes the fresh document from
// version 0 to version 1.
func (s *Service) attachFirstVersion(ctx context.Context, session services.Session, created, requested *models.DocumentMetadata, content io.Reader) error {
	put, err := s.blobs.Put(ctx, session.UserID, content, requested.FileSize)
	if err != nil {
		return err
	}

	now := s.now()
	newSeq := nextSequence(now, created.SequenceNumber)

	versionOne := &models.Version{
		DocumentID:   created.ID,
		Number:       1,
		Title:        created.Title,
		Description:  created.Description,
		URL:          created.URL,
		FileName:     created.FileName,
		FileSize:     put.Size,
		FileMD5:      put.MD5,
		MimeType:     requested.MimeType,
		BlobKey:      put.Key,
		CreatedBy:    session.UserID,
		CreationDate: now,
		LastModified: now,
	}

	old := *created
	updated := *created
	updated.CurrentVersion = 1
	updated.SequenceNumber = newSeq
	updated.LastModified = now
	updated.ModifiedBy = session.UserID

	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		return s.executor.Execute(txCtx,
			Action{Kind: ActionCreateVersion, Version: versionOne},
			Action{
				Kind:        ActionUpdateDocument,
				Doc:         &updated,
				OldDoc:      &old,
				Fields:      []models.Field{models.FieldCurrentVersion, models.FieldLastModified, models.FieldModifiedBy},
				ExpectedSeq: old.SequenceNumber,
			},
		)
	})
	if err != nil {
		// the blob is an orphan now; it is unreferenced by any committed
		// metadata, so a best-effort delete is safe
		if delErr := s.blobs.Delete(ctx, put.Key); delErr != nil {
			s.logger.Warn("orphan blob cleanup failed", "blob_key", put.Key, "error", delErr)
		}
		return err
	}

	*created = updated
	created.FileSize = put.Size
	created.FileMD5 = put.MD5
	created.MimeType = requested.MimeType
	return nil
}

// update modifies an existing document, appending a version when content is
// supplied. The blob is written before any metadata write; if the metadata
// transaction then fails, the orphaned blob is removed best-effort, never
// re-queued into the failed transaction.
func (s *Service) update(ctx context.Context, session services.Session, doc *models.DocumentMetadata, content io.Reader, expectedSeq int64) (*models.DocumentMetadata, error) {
	old, err := s.docs.GetByID(ctx, doc.ID)
	if err != nil {
		return nil, err
	}

	if _, err := s.gate.RequireWrite(ctx, old, session.UserID); err != nil {
		return nil, err
	}

	if err := s.checkNotForeignLocked(ctx, old, session.UserID); err != nil {
		return nil, err
	}

	// cheap early conflict check; the conditioned UPDATE is the authority
	if expectedSeq != old.SequenceNumber {
		return nil, &domain.ConflictError{
			DocumentID:       old.ID,
			ExpectedSequence: expectedSeq,
			ActualSequence:   old.SequenceNumber,
		}
	}

	fields := changedFields(old, doc)

	if doc.FolderID != old.FolderID {
		// moving between folders needs create rights on the target
		if _, err := s.gate.RequireCreate(ctx, doc.FolderID, session.UserID); err != nil {
			return nil, err
		}
	}

	targetFolder := doc.FolderID
	if fieldChanged(fields, models.FieldFileName) || fieldChanged(fields, models.FieldFolderID) {
		if err := s.checkFileNameFree(ctx, targetFolder, doc.FileName, doc.ID); err != nil {
			return nil, err
		}
	}

	now := s.now()
	newSeq := nextSequence(now, old.SequenceNumber)

	updated := *old
	updated.FolderID = doc.FolderID
	updated.Title = doc.Title
	updated.FileName = doc.FileName
	updated.Description = doc.Description
	updated.URL = doc.URL
	updated.ModifiedBy = session.UserID
	updated.LastModified = now
	updated.SequenceNumber = newSeq
	fields = append(fields, models.FieldModifiedBy, models.FieldLastModified)

	var newVersion *models.Version
	var orphanKey string

	if content != nil {
		put, err := s.blobs.Put(ctx, session.UserID, content, doc.FileSize)
		if err != nil {
			return nil, err
		}
		orphanKey = put.Key

		maxNumber, err := s.versions.MaxNumber(ctx, doc.ID)
		if err != nil {
			s.cleanupOrphan(ctx, orphanKey)
			return nil, err
		}

		newVersion = &models.Version{
			DocumentID:   doc.ID,
			Number:       maxNumber + 1,
			Title:        updated.Title,
			Description:  updated.Description,
			URL:          updated.URL,
			FileName:     updated.FileName,
			FileSize:     put.Size,
			FileMD5:      put.MD5,
			MimeType:     doc.MimeType,
			BlobKey:      put.Key,
			CreatedBy:    session.UserID,
			CreationDate: now,
			LastModified: now,
		}
		updated.CurrentVersion = newVersion.Number
		fields = append(fields, models.FieldCurrentVersion)
	}

	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		actions := make([]Action, 0, 3)
		if newVersion != nil {
			actions = append(actions, Action{Kind: ActionCreateVersion, Version: newVersion})
		}
		actions = append(actions, Action{
			Kind:        ActionUpdateDocument,
			Doc:         &updated,
			OldDoc:      old,
			Fields:      fields,
			ExpectedSeq: old.SequenceNumber,
		})

		// version 0 mirrors the current descriptive fields by copy-forward
		zero, err := s.versions.Get(txCtx, doc.ID, 0)
		if err != nil {
			return err
		}
		zero.Title = updated.Title
		zero.Description = updated.Description
		zero.URL = updated.URL
		zero.LastModified = now
		actions = append(actions, Action{Kind: ActionUpdateVersion, Version: zero})

		return s.executor.Execute(txCtx, actions...)
	})
	if err != nil {
		if orphanKey != "" {
			s.cleanupOrphan(ctx, orphanKey)
		}
		return nil, err
	}

	if newVersion != nil {
		updated.FileSize = newVersion.FileSize
		updated.FileMD5 = newVersion.FileMD5
		updated.MimeType = newVersion.MimeType
	}

	s.notifier.NotifyModify(ctx, &updated)
	return &updated, nil
}

// checkFileNameFree enforces the per-folder filename-uniqueness invariant.
// Empty names are exempt.
func (s *Service) checkFileNameFree(ctx context.Context, folderID int64, fileName string, excludeID int64) error {
	if fileName == "" {
		return nil
	}

	holder, err := s.docs.FindByFileName(ctx, folderID, fileName, excludeID)
	if err != nil {
		return err
	}
	if holder != 0 {
		return &domain.DuplicateFilenameError{
			FolderID:   folderID,
			FileName:   fileName,
			DocumentID: holder,
		}
	}
	return nil
}

// cleanupOrphan removes a blob whose metadata transaction failed.
// Best-effort: a leftover orphan is unreferenced and harmless.
func (s *Service) cleanupOrphan(ctx context.Context, key string) {
	if err := s.blobs.Delete(ctx, key); err != nil {
		s.logger.Warn("orphan blob cleanup failed", "blob_key", key, "error", err)
	}
}

// changedFields diffs the caller's row against the stored snapshot.
func changedFields(old, requested *models.DocumentMetadata) []models.Field {
	var fields []models.Field
	if requested.FolderID != old.FolderID {
		fields = append(fields, models.FieldFolderID)
	}
	if requested.Title != old.Title {
		fields = append(fields, models.FieldTitle)
	}
	if requested.FileName != old.FileName {
		fields = append(fields, models.FieldFileName)
	}
	if requested.Description != old.Description {
		fields = append(fields, models.FieldDescription)
	}
	if requested.URL != old.URL {
		fields = append(fields, models.FieldURL)
	}
	return fields
}

func fieldChanged(fields []models.Field, f models.Field) bool {
	for _, have := range fields {
		if have == f {
			return true
		}
	}
	return false
}
