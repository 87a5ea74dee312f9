package docstore

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"docstore/internal/domain"
	"docstore/internal/domain/models"
	"docstore/internal/domain/repositories"
	"docstore/internal/storage/blob"
)

// In-memory implementations of the repository and storage interfaces. They
// reproduce the behavior the Postgres layer promises (conditioned updates,
// conflict/not-found disambiguation) without a database.

type memDocs struct {
	mu   sync.Mutex
	rows map[int64]models.DocumentMetadata
}

func newMemDocs() *memDocs {
	return &memDocs{rows: make(map[int64]models.DocumentMetadata)}
}

func (m *memDocs) Create(_ context.Context, doc *models.DocumentMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[doc.ID]; ok {
		return fmt.Errorf("document %d already exists", doc.ID)
	}
	m.rows[doc.ID] = *doc
	return nil
}

func (m *memDocs) GetByID(_ context.Context, id int64) (*models.DocumentMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, fmt.Errorf("document %d: %w", id, domain.ErrNotFound)
	}
	return &row, nil
}

func (m *memDocs) Update(_ context.Context, doc *models.DocumentMetadata, _ []models.Field, expectedSeq int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[doc.ID]
	if !ok {
		return fmt.Errorf("document %d: %w", doc.ID, domain.ErrNotFound)
	}
	if row.SequenceNumber != expectedSeq {
		return &domain.ConflictError{
			DocumentID:       doc.ID,
			ExpectedSequence: expectedSeq,
			ActualSequence:   row.SequenceNumber,
		}
	}
	stored := *doc
	stored.CreationSeq = row.CreationSeq
	m.rows[doc.ID] = stored
	return nil
}

func (m *memDocs) Delete(_ context.Context, id, expectedSeq int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return fmt.Errorf("document %d: %w", id, domain.ErrNotFound)
	}
	if row.SequenceNumber != expectedSeq {
		return &domain.ConflictError{
			DocumentID:       id,
			ExpectedSequence: expectedSeq,
			ActualSequence:   row.SequenceNumber,
		}
	}
	delete(m.rows, id)
	return nil
}

func (m *memDocs) ListByFolder(_ context.Context, folderID int64, opts models.ListOptions) ([]models.DocumentMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.DocumentMetadata
	for _, row := range m.rows {
		if row.FolderID != folderID {
			continue
		}
		if opts.OwnerID > 0 && row.CreatedBy != opts.OwnerID {
			continue
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memDocs) CountByFolder(_ context.Context, folderID, ownerID int64) (int, error) {
	docs, _ := m.ListByFolder(context.Background(), folderID, models.ListOptions{OwnerID: ownerID})
	return len(docs), nil
}

func (m *memDocs) FindByFileName(_ context.Context, folderID int64, fileName string, excludeID int64) (int64, error) {
	if fileName == "" {
		return 0, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.FolderID == folderID && row.FileName == fileName && row.ID != excludeID {
			return row.ID, nil
		}
	}
	return 0, nil
}

func (m *memDocs) ListModifiedSince(_ context.Context, folderID, since, ownerID int64) ([]models.DocumentMetadata, error) {
	docs, _ := m.ListByFolder(context.Background(), folderID, models.ListOptions{OwnerID: ownerID})
	var out []models.DocumentMetadata
	for _, d := range docs {
		if d.SequenceNumber > since {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memDocs) ContainsForeignObjects(_ context.Context, folderID, userID int64) (bool, error) {
	docs, _ := m.ListByFolder(context.Background(), folderID, models.ListOptions{})
	for _, d := range docs {
		if d.CreatedBy != userID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memDocs) IsFolderEmpty(_ context.Context, folderID int64) (bool, error) {
	docs, _ := m.ListByFolder(context.Background(), folderID, models.ListOptions{})
	return len(docs) == 0, nil
}

type versionKey struct {
	doc    int64
	number int
}

type memVersions struct {
	mu   sync.Mutex
	rows map[versionKey]models.Version
}

func newMemVersions() *memVersions {
	return &memVersions{rows: make(map[versionKey]models.Version)}
}

func (m *memVersions) Create(_ context.Context, v *models.Version) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := versionKey{v.DocumentID, v.Number}
	if _, ok := m.rows[k]; ok {
		return fmt.Errorf("version %d of document %d already exists", v.Number, v.DocumentID)
	}
	m.rows[k] = *v
	return nil
}

func (m *memVersions) Get(_ context.Context, documentID int64, number int) (*models.Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[versionKey{documentID, number}]
	if !ok {
		return nil, fmt.Errorf("version %d of document %d: %w", number, documentID, domain.ErrNotFound)
	}
	return &row, nil
}

func (m *memVersions) Update(_ context.Context, v *models.Version) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := versionKey{v.DocumentID, v.Number}
	if _, ok := m.rows[k]; !ok {
		return fmt.Errorf("version %d of document %d: %w", v.Number, v.DocumentID, domain.ErrNotFound)
	}
	m.rows[k] = *v
	return nil
}

func (m *memVersions) Delete(_ context.Context, documentID int64, number int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, versionKey{documentID, number})
	return nil
}

func (m *memVersions) DeleteAll(_ context.Context, documentID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.rows {
		if k.doc == documentID {
			delete(m.rows, k)
		}
	}
	return nil
}

func (m *memVersions) ListByDocument(_ context.Context, documentID int64) ([]models.Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Version
	for k, v := range m.rows {
		if k.doc == documentID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (m *memVersions) MaxNumber(_ context.Context, documentID int64) (int, error) {
	versions, _ := m.ListByDocument(context.Background(), documentID)
	max := -1
	for _, v := range versions {
		if v.Number > max {
			max = v.Number
		}
	}
	return max, nil
}

type memTombstones struct {
	mu        sync.Mutex
	documents []models.Tombstone
	versions  []models.Tombstone
}

func (m *memTombstones) RecordDocument(_ context.Context, t *models.Tombstone) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents = append(m.documents, *t)
	return nil
}

func (m *memTombstones) RecordVersion(_ context.Context, t *models.Tombstone) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.versions = append(m.versions, *t)
	return nil
}

func (m *memTombstones) ListDocumentsDeletedSince(_ context.Context, folderID, since, ownerID int64) ([]models.Tombstone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Tombstone
	for _, t := range m.documents {
		if t.FolderID != folderID || t.DeleteSeq <= since {
			continue
		}
		if ownerID > 0 && t.CreatedBy != ownerID {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

type memLocks struct {
	mu   sync.Mutex
	rows map[int64]models.Lock
}

func newMemLocks() *memLocks {
	return &memLocks{rows: make(map[int64]models.Lock)}
}

func (m *memLocks) Insert(_ context.Context, lock *models.Lock) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.rows[lock.DocumentID]; ok {
		return &domain.LockedError{DocumentID: lock.DocumentID, Owner: existing.Owner, Until: existing.TimeoutAt}
	}
	m.rows[lock.DocumentID] = *lock
	return nil
}

func (m *memLocks) Delete(_ context.Context, documentID, owner int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.rows[documentID]
	if !ok || existing.Owner != owner {
		return false, nil
	}
	delete(m.rows, documentID)
	return true, nil
}

func (m *memLocks) DeleteAllForDocument(_ context.Context, documentID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, documentID)
	return nil
}

func (m *memLocks) DeleteExpired(_ context.Context, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, lock := range m.rows {
		if !lock.Active(now) {
			delete(m.rows, id)
		}
	}
	return nil
}

func (m *memLocks) FindByDocument(_ context.Context, documentID int64) ([]models.Lock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if lock, ok := m.rows[documentID]; ok {
		return []models.Lock{lock}, nil
	}
	return nil, nil
}

type memIDGen struct {
	mu   sync.Mutex
	next int64
}

func (m *memIDGen) NextID(_ context.Context, _ string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	return m.next, nil
}

// memTx mimics ExecTx's hook semantics: hooks registered inside fn run only
// when fn succeeds. failWith, when set, fails the transaction after fn ran,
// standing in for a commit failure.
type memTx struct {
	failWith error
}

func (m *memTx) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	hooks := &repositories.CommitHooks{}
	if err := fn(repositories.WithCommitHooks(ctx, hooks)); err != nil {
		return err
	}
	if m.failWith != nil {
		return m.failWith
	}
	hooks.Run()
	return nil
}

// memBlobs is an in-memory blob store.
type memBlobs struct {
	mu      sync.Mutex
	data    map[string][]byte
	deleted []string
	nextKey int
}

func newMemBlobs() *memBlobs {
	return &memBlobs{data: make(map[string][]byte)}
}

func (m *memBlobs) Put(_ context.Context, owner int64, r io.Reader, _ int64) (*blob.PutResult, error) {
	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextKey++
	key := fmt.Sprintf("%d/ab/blob-%d", owner, m.nextKey)
	m.data[key] = payload
	sum := md5.Sum(payload)
	return &blob.PutResult{Key: key, Size: int64(len(payload)), MD5: hex.EncodeToString(sum[:])}, nil
}

func (m *memBlobs) Open(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	payload, ok := m.data[key]
	if !ok {
		return nil, fmt.Errorf("blob %s: %w", key, domain.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(payload)), nil
}

func (m *memBlobs) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *memBlobs) SizeOf(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	payload, ok := m.data[key]
	if !ok {
		return 0, fmt.Errorf("blob %s: %w", key, domain.ErrNotFound)
	}
	return int64(len(payload)), nil
}

// stubResolver returns per-user rights, falling back to an open default.
type stubResolver struct {
	mu       sync.Mutex
	byUser   map[int64]models.RightsSet
	fallback models.RightsSet
}

func newStubResolver() *stubResolver {
	return &stubResolver{
		byUser: make(map[int64]models.RightsSet),
		fallback: models.RightsSet{
			Visible:   true,
			ReadAll:   true,
			WriteAll:  true,
			DeleteAll: true,
			CanCreate: true,
		},
	}
}

func (r *stubResolver) set(userID int64, rights models.RightsSet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUser[userID] = rights
}

func (r *stubResolver) EffectiveRights(_ context.Context, _, userID int64) (models.RightsSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rights, ok := r.byUser[userID]; ok {
		return rights, nil
	}
	return r.fallback, nil
}

type testEnv struct {
	docs       *memDocs
	versions   *memVersions
	tombstones *memTombstones
	locks      *memLocks
	blobs      *memBlobs
	resolver   *stubResolver
	tx         *memTx
	svc        *Service
}

func newTestEnv() *testEnv {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	env := &testEnv{
		docs:       newMemDocs(),
		versions:   newMemVersions(),
		tombstones: &memTombstones{},
		locks:      newMemLocks(),
		blobs:      newMemBlobs(),
		resolver:   newStubResolver(),
		tx:         &memTx{},
	}

	executor := NewExecutor(env.docs, env.versions, env.tombstones, env.locks, logger)
	gate := NewPermissionGate(env.resolver)
	lockMgr := NewLockManager(env.locks, logger)
	notifier := NewChangeNotifier(nil, logger)

	store := NewService(
		env.docs,
		env.versions,
		env.tombstones,
		&memIDGen{},
		env.tx,
		executor,
		env.blobs,
		gate,
		lockMgr,
		notifier,
		logger,
	)
	env.svc = store.(*Service)
	return env
}
