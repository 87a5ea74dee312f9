package blob

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"docstore/internal/domain"
)

// FileStore is a local filesystem Store. Keys look like
// "1007/3f/3f9c2a...-...", owner directory first, then a two-character shard
// so one owner's blobs do not pile up in a single directory.
//
// Write pattern: temp file, streamed MD5, fsync, atomic rename. A failed or
// over-quota write removes the temp file and leaves nothing durable.
type FileStore struct {
	dataDir string
	quota   *quotaTracker
	limit   int64 // per-owner byte limit, <= 0 means unlimited
	logger  *slog.Logger
}

// NewFileStore creates a FileStore rooted at dataDir with the given
// per-owner quota limit.
func NewFileStore(dataDir string, quotaLimit int64, logger *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("create blob directory %s: %w", dataDir, err)
	}

	return &FileStore{
		dataDir: dataDir,
		quota:   newQuotaTracker(dataDir),
		limit:   quotaLimit,
		logger:  logger,
	}, nil
}

// Put streams r into the store under a fresh key
func (s *FileStore) Put(ctx context.Context, owner int64, r io.Reader, sizeHint int64) (*PutResult, error) {
	used, err := s.quota.usage(owner)
	if err != nil {
		return nil, fmt.Errorf("%w: read quota usage: %v", domain.ErrStoreUnavailable, err)
	}

	remaining := int64(-1)
	if s.limit > 0 {
		remaining = s.limit - used
		if remaining < 0 {
			remaining = 0
		}
		// Reject on the hint before touching the disk at all
		if sizeHint > 0 && sizeHint > remaining {
			return nil, &domain.QuotaExceededError{
				Owner: owner, Limit: s.limit, Used: used, Requested: sizeHint,
			}
		}
	}

	key := s.newKey(owner)
	fullPath := filepath.Join(s.dataDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return nil, fmt.Errorf("%w: create shard directory: %v", domain.ErrStoreUnavailable, err)
	}

	tmpPath := fullPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("%w: create temp file: %v", domain.ErrStoreUnavailable, err)
	}

	// The size hint is advisory; the bounded reader is what actually holds
	// the quota line for lying or unknown-length streams.
	src := r
	if remaining >= 0 {
		src = io.LimitReader(r, remaining+1)
	}

	hasher := md5.New()
	size, err := io.Copy(f, io.TeeReader(src, hasher))
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("%w: write payload: %v", domain.ErrStoreUnavailable, err)
	}

	if remaining >= 0 && size > remaining {
		f.Close()
		os.Remove(tmpPath)
		return nil, &domain.QuotaExceededError{
			Owner: owner, Limit: s.limit, Used: used, Requested: size,
		}
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("%w: fsync: %v", domain.ErrStoreUnavailable, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("%w: close temp file: %v", domain.ErrStoreUnavailable, err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("%w: rename into place: %v", domain.ErrStoreUnavailable, err)
	}

	s.quota.add(owner, size)

	return &PutResult{
		Key:  key,
		Size: size,
		MD5:  hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// Open returns the payload stream for a key
func (s *FileStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.dataDir, filepath.FromSlash(key)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("blob %s: %w", key, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: open blob %s: %v", domain.ErrStoreUnavailable, key, err)
	}
	return f, nil
}

// Delete removes a payload. Idempotent: a missing key is not an error.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	fullPath := filepath.Join(s.dataDir, filepath.FromSlash(key))

	info, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: stat blob %s: %v", domain.ErrStoreUnavailable, key, err)
	}

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: delete blob %s: %v", domain.ErrStoreUnavailable, key, err)
	}

	if owner, ok := ownerFromKey(key); ok {
		s.quota.add(owner, -info.Size())
	}

	return nil
}

// SizeOf returns the stored payload size in bytes
func (s *FileStore) SizeOf(ctx context.Context, key string) (int64, error) {
	info, err := os.Stat(filepath.Join(s.dataDir, filepath.FromSlash(key)))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("blob %s: %w", key, domain.ErrNotFound)
		}
		return 0, fmt.Errorf("%w: stat blob %s: %v", domain.ErrStoreUnavailable, key, err)
	}
	return info.Size(), nil
}

// newKey generates a fresh blob key: owner / shard / uuid.
func (s *FileStore) newKey(owner int64) string {
	id := uuid.New().String()
	return fmt.Sprintf("%d/%s/%s", owner, id[:2], id)
}

// ownerFromKey recovers the owning user from a key's first segment.
func ownerFromKey(key string) (int64, bool) {
	head, _, ok := strings.Cut(key, "/")
	if !ok {
		return 0, false
	}
	owner, err := strconv.ParseInt(head, 10, 64)
	if err != nil {
		return 0, false
	}
	return owner, true
}
