package docstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"docstore/internal/domain"
	"docstore/internal/domain/models"
	"docstore/internal/domain/repositories"
	"docstore/internal/domain/services"
	"docstore/internal/storage/blob"
)

// Service is the facade over the metadata store, blob store, lock manager,
// permission gate and change notifier. It owns the transaction boundary:
// actions run inside one metadata transaction per operation, blob writes
// happen before the metadata that references them, and blob deletions are
// deferred to the transaction's commit hook.
type Service struct {
	docs       repositories.DocumentRepository
	versions   repositories.VersionRepository
	tombstones repositories.TombstoneRepository
	idgen      repositories.IDGenerator
	txManager  repositories.TransactionManager
	executor   *Executor
	blobs      blob.Store
	gate       *PermissionGate
	locks      services.LockManager
	notifier   *ChangeNotifier
	logger     *slog.Logger
	now        func() time.Time
}

// NewService creates the document store facade
func NewService(
	docs repositories.DocumentRepository,
	versions repositories.VersionRepository,
	tombstones repositories.TombstoneRepository,
	idgen repositories.IDGenerator,
	txManager repositories.TransactionManager,
	executor *Executor,
	blobs blob.Store,
	gate *PermissionGate,
	locks services.LockManager,
	notifier *ChangeNotifier,
	logger *slog.Logger,
) services.DocumentStore {
	return &Service{
		docs:       docs,
		versions:   versions,
		tombstones: tombstones,
		idgen:      idgen,
		txManager:  txManager,
		executor:   executor,
		blobs:      blobs,
		gate:       gate,
		locks:      locks,
		notifier:   notifier,
		logger:     logger,
		now:        time.Now,
	}
}

// GetMetadata returns the document row merged with the requested version's
// file fields and the active lock deadline.
func (s *Service) GetMetadata(ctx context.Context, session services.Session, id int64, version int) (*models.DocumentMetadata, error) {
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if _, err := s.gate.RequireRead(ctx, doc, session.UserID); err != nil {
		return nil, err
	}

	number := version
	if number == models.CurrentVersion {
		number = doc.CurrentVersion
	}

	v, err := s.versions.Get(ctx, id, number)
	if err != nil {
		return nil, err
	}

	doc.FileSize = v.FileSize
	doc.FileMD5 = v.FileMD5
	doc.MimeType = v.MimeType
	if number != doc.CurrentVersion {
		// a historical read reflects that version's descriptive fields
		doc.Title = v.Title
		doc.Description = v.Description
		doc.URL = v.URL
		doc.FileName = v.FileName
		doc.CurrentVersion = number
	}

	locks, err := s.locks.FindLocks(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, l := range locks {
		doc.LockedUntil = l.TimeoutAt
	}

	return doc, nil
}

// GetContent streams the payload of the requested version.
func (s *Service) GetContent(ctx context.Context, session services.Session, id int64, version int) (io.ReadCloser, error) {
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if _, err := s.gate.RequireRead(ctx, doc, session.UserID); err != nil {
		return nil, err
	}

	number := version
	if number == models.CurrentVersion {
		number = doc.CurrentVersion
	}

	v, err := s.versions.Get(ctx, id, number)
	if err != nil {
		return nil, err
	}

	if !v.HasContent() {
		return nil, fmt.Errorf("version %d of document %d has no content: %w", number, id, domain.ErrNotFound)
	}

	rc, err := s.blobs.Open(ctx, v.BlobKey)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// metadata references a blob that is gone: administrative
			// repair territory, never silently fixed here
			s.logger.Error("blob missing for committed version",
				"document_id", id,
				"version", number,
				"blob_key", v.BlobKey,
			)
			return nil, fmt.Errorf("version %d of document %d: %w", number, id, domain.ErrInconsistent)
		}
		return nil, err
	}

	return rc, nil
}

// ListDocuments returns the folder's documents, owner-scoped when the
// caller may only read own objects.
func (s *Service) ListDocuments(ctx context.Context, session services.Session, folderID int64, opts models.ListOptions) ([]models.DocumentMetadata, error) {
	rights, err := s.gate.Rights(ctx, folderID, session.UserID)
	if err != nil {
		return nil, err
	}
	if !rights.Visible || (!rights.ReadAll && !rights.ReadOwn) {
		return nil, fmt.Errorf("list folder %d: %w", folderID, domain.ErrPermissionDenied)
	}

	if rights.OwnerScoped() {
		opts.OwnerID = session.UserID
	}

	return s.docs.ListByFolder(ctx, folderID, opts)
}

// ListVersions returns the surviving versions of a document.
func (s *Service) ListVersions(ctx context.Context, session services.Session, id int64, opts models.ListOptions) ([]models.Version, error) {
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if _, err := s.gate.RequireRead(ctx, doc, session.UserID); err != nil {
		return nil, err
	}

	versions, err := s.versions.ListByDocument(ctx, id)
	if err != nil {
		return nil, err
	}

	sortVersions(versions, opts)
	return versions, nil
}

// sortVersions orders a version list in memory; the set per document is
// small. Default order is by number ascending, as delivered by the store.
func sortVersions(versions []models.Version, opts models.ListOptions) {
	less := func(a, b *models.Version) bool { return a.Number < b.Number }
	switch opts.SortBy {
	case models.FieldCreationDate:
		less = func(a, b *models.Version) bool { return a.CreationDate.Before(b.CreationDate) }
	case models.FieldFileName:
		less = func(a, b *models.Version) bool { return a.FileName < b.FileName }
	case models.FieldLastModified:
		less = func(a, b *models.Version) bool { return a.LastModified.Before(b.LastModified) }
	}

	sort.SliceStable(versions, func(i, j int) bool {
		if opts.Order == models.Descending {
			return less(&versions[j], &versions[i])
		}
		return less(&versions[i], &versions[j])
	})
}

// Delta partitions the folder's documents into new, modified and deleted
// relative to since. A document counts as new when its creation sequence
// postdates the caller's watermark, regardless of how often it changed
// afterwards; the sets are disjoint by construction since deleted rows no
// longer exist in the live collection.
func (s *Service) Delta(ctx context.Context, session services.Session, folderID int64, since int64) (*models.Delta, error) {
	rights, err := s.gate.Rights(ctx, folderID, session.UserID)
	if err != nil {
		return nil, err
	}
	if !rights.Visible || (!rights.ReadAll && !rights.ReadOwn) {
		return nil, fmt.Errorf("delta for folder %d: %w", folderID, domain.ErrPermissionDenied)
	}

	var ownerID int64
	if rights.OwnerScoped() {
		ownerID = session.UserID
	}

	changed, err := s.docs.ListModifiedSince(ctx, folderID, since, ownerID)
	if err != nil {
		return nil, err
	}

	deleted, err := s.tombstones.ListDocumentsDeletedSince(ctx, folderID, since, ownerID)
	if err != nil {
		return nil, err
	}

	delta := &models.Delta{Deleted: deleted}
	for _, doc := range changed {
		if doc.CreationSeq > since {
			delta.New = append(delta.New, doc)
		} else {
			delta.Modified = append(delta.Modified, doc)
		}
	}

	return delta, nil
}

// CountDocuments counts the documents visible to the caller.
func (s *Service) CountDocuments(ctx context.Context, session services.Session, folderID int64) (int, error) {
	rights, err := s.gate.Rights(ctx, folderID, session.UserID)
	if err != nil {
		return 0, err
	}
	if !rights.Visible || (!rights.ReadAll && !rights.ReadOwn) {
		return 0, fmt.Errorf("count folder %d: %w", folderID, domain.ErrPermissionDenied)
	}

	var ownerID int64
	if rights.OwnerScoped() {
		ownerID = session.UserID
	}

	return s.docs.CountByFolder(ctx, folderID, ownerID)
}

// IsFolderEmpty reports whether the folder holds no live documents.
// Tombstones are bookkeeping, not content: a cleared folder counts as empty
// even while delta still reports its deletions.
func (s *Service) IsFolderEmpty(ctx context.Context, session services.Session, folderID int64) (bool, error) {
	rights, err := s.gate.Rights(ctx, folderID, session.UserID)
	if err != nil {
		return false, err
	}
	if !rights.Visible {
		return false, fmt.Errorf("folder %d: %w", folderID, domain.ErrPermissionDenied)
	}

	return s.docs.IsFolderEmpty(ctx, folderID)
}

// ContainsForeignObjects reports whether the folder holds live documents the
// caller did not create. The folder tree asks this before letting a
// non-admin take a folder down.
func (s *Service) ContainsForeignObjects(ctx context.Context, session services.Session, folderID int64) (bool, error) {
	rights, err := s.gate.Rights(ctx, folderID, session.UserID)
	if err != nil {
		return false, err
	}
	if !rights.Visible {
		return false, fmt.Errorf("folder %d: %w", folderID, domain.ErrPermissionDenied)
	}

	return s.docs.ContainsForeignObjects(ctx, folderID, session.UserID)
}

// Lock places an exclusive write lock for the session user.
func (s *Service) Lock(ctx context.Context, session services.Session, id int64, timeout time.Duration) error {
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if _, err := s.gate.RequireWrite(ctx, doc, session.UserID); err != nil {
		return err
	}

	return s.locks.Lock(ctx, id, timeout, session.UserID)
}

// Unlock releases the lock. Allowed for the creator, the last modifier, or
// the lock holder.
func (s *Service) Unlock(ctx context.Context, session services.Session, id int64) error {
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if _, err := s.gate.RequireWrite(ctx, doc, session.UserID); err != nil {
		return err
	}

	if session.UserID != doc.CreatedBy && session.UserID != doc.ModifiedBy {
		holder := false
		locks, err := s.locks.FindLocks(ctx, id)
		if err != nil {
			return err
		}
		for _, l := range locks {
			if l.Owner == session.UserID {
				holder = true
			}
		}
		if !holder {
			return fmt.Errorf("unlock document %d: %w", id, domain.ErrPermissionDenied)
		}
	}

	// release the document's lock whoever holds it; an authorized caller
	// unlocking another owner's row is exactly the point of this operation
	return s.locks.Unlock(ctx, id)
}

// checkNotForeignLocked fails with LockedError when another owner holds the
// write lock. The holder bypasses its own lock; so does the document's last
// modifier (self-lock semantics for clients that lost their lock token).
func (s *Service) checkNotForeignLocked(ctx context.Context, doc *models.DocumentMetadata, userID int64) error {
	locks, err := s.locks.FindLocks(ctx, doc.ID)
	if err != nil {
		return err
	}

	for _, l := range locks {
		if l.Owner == userID {
			continue
		}
		if doc.ModifiedBy == userID {
			continue
		}
		return &domain.LockedError{DocumentID: doc.ID, Owner: l.Owner, Until: l.TimeoutAt}
	}

	return nil
}

// deferBlobDeletes parks blob keys on the transaction's commit hook list.
// The physical delete must not happen before the metadata transaction is
// known to have committed; on rollback the hooks are discarded and the
// blobs stay, which is the harmless failure direction (an orphaned blob,
// never a dangling reference).
func (s *Service) deferBlobDeletes(ctx context.Context, keys []string) {
	if len(keys) == 0 {
		return
	}

	deleteAll := func() {
		for _, key := range keys {
			if err := s.blobs.Delete(context.Background(), key); err != nil {
				s.logger.Warn("deferred blob delete failed", "blob_key", key, "error", err)
			}
		}
	}

	if !repositories.OnCommit(ctx, deleteAll) {
		// no transaction scope; delete immediately, still best-effort
		deleteAll()
	}
}
