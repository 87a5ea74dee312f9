package blob

import (
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// quotaTracker keeps per-owner usage in memory, seeded from a directory walk
// the first time an owner shows up. Writes and deletes keep the tally
// current after that.
type quotaTracker struct {
	dataDir string

	mu   sync.Mutex
	used map[int64]int64
}

func newQuotaTracker(dataDir string) *quotaTracker {
	return &quotaTracker{
		dataDir: dataDir,
		used:    make(map[int64]int64),
	}
}

// usage returns the owner's current usage, scanning the owner directory on
// first access.
func (q *quotaTracker) usage(owner int64) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if used, ok := q.used[owner]; ok {
		return used, nil
	}

	var total int64
	ownerDir := filepath.Join(q.dataDir, strconv.FormatInt(owner, 10))
	err := filepath.WalkDir(ownerDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return 0, err
	}

	q.used[owner] = total
	return total, nil
}

// add adjusts the owner's tally by delta (negative for deletions). A tally
// that was never seeded is left alone; the next usage call rebuilds it from
// disk.
func (q *quotaTracker) add(owner, delta int64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	used, ok := q.used[owner]
	if !ok {
		return
	}
	used += delta
	if used < 0 {
		used = 0
	}
	q.used[owner] = used
}
