package docstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"docstore/internal/domain"
	"docstore/internal/domain/models"
	"docstore/internal/domain/services"
)

func mustCreate(t *testing.T, env *testEnv, user int64, folder int64, fileName, title string, content string) *models.DocumentMetadata {
	t.Helper()

	var r io.Reader
	var size int64
	if content != "" {
		r = strings.NewReader(content)
		size = int64(len(content))
	}

	doc, err := env.svc.Save(context.Background(), services.Session{UserID: user}, &models.DocumentMetadata{
		FolderID: folder,
		FileName: fileName,
		Title:    title,
		FileSize: size,
	}, r, 0)
	if err != nil {
		t.Fatalf("create document: %v", err)
	}
	return doc
}

func mustUpdate(t *testing.T, env *testEnv, user int64, doc *models.DocumentMetadata, content string) *models.DocumentMetadata {
	t.Helper()

	var r io.Reader
	if content != "" {
		r = strings.NewReader(content)
	}
	next := *doc
	next.FileSize = int64(len(content))
	updated, err := env.svc.Save(context.Background(), services.Session{UserID: user}, &next, r, doc.SequenceNumber)
	if err != nil {
		t.Fatalf("update document %d: %v", doc.ID, err)
	}
	return updated
}

func TestCreateWithContent(t *testing.T) {
	env := newTestEnv()
	doc := mustCreate(t, env, 1, 10, "report.txt", "Report", "hello world")

	if doc.CurrentVersion != 1 {
		t.Fatalf("current version = %d, want 1", doc.CurrentVersion)
	}
	if doc.CreatedBy != 1 || doc.ModifiedBy != 1 {
		t.Errorf("creator/modifier = %d/%d, want 1/1", doc.CreatedBy, doc.ModifiedBy)
	}

	versions, err := env.versions.ListByDocument(context.Background(), doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 2 || versions[0].Number != 0 || versions[1].Number != 1 {
		t.Fatalf("versions = %+v, want numbers {0, 1}", versions)
	}
	if versions[0].HasContent() {
		t.Error("version 0 must never carry content")
	}
	if !versions[1].HasContent() {
		t.Error("version 1 should carry content")
	}
	if versions[1].FileSize != int64(len("hello world")) {
		t.Errorf("version 1 size = %d", versions[1].FileSize)
	}

	rc, err := env.svc.GetContent(context.Background(), services.Session{UserID: 1}, doc.ID, models.CurrentVersion)
	if err != nil {
		t.Fatalf("get content: %v", err)
	}
	defer rc.Close()
	payload, _ := io.ReadAll(rc)
	if !bytes.Equal(payload, []byte("hello world")) {
		t.Errorf("content = %q", payload)
	}
}

func TestCreateWithoutContent(t *testing.T) {
	env := newTestEnv()
	doc := mustCreate(t, env, 1, 10, "empty.txt", "Empty", "")

	if doc.CurrentVersion != 0 {
		t.Fatalf("current version = %d, want 0", doc.CurrentVersion)
	}

	_, err := env.svc.GetContent(context.Background(), services.Session{UserID: 1}, doc.ID, models.CurrentVersion)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("content of contentless document: err = %v, want ErrNotFound", err)
	}
}

func TestCreateDuplicateFilename(t *testing.T) {
	env := newTestEnv()
	mustCreate(t, env, 1, 10, "taken.txt", "First", "")

	_, err := env.svc.Save(context.Background(), services.Session{UserID: 1}, &models.DocumentMetadata{
		FolderID: 10,
		FileName: "taken.txt",
	}, nil, 0)
	if !errors.Is(err, domain.ErrDuplicateFilename) {
		t.Fatalf("err = %v, want ErrDuplicateFilename", err)
	}

	// same name in a different folder is fine
	if _, err := env.svc.Save(context.Background(), services.Session{UserID: 1}, &models.DocumentMetadata{
		FolderID: 11,
		FileName: "taken.txt",
	}, nil, 0); err != nil {
		t.Fatalf("same name, other folder: %v", err)
	}
}

func TestUpdateStaleSequence(t *testing.T) {
	env := newTestEnv()
	doc := mustCreate(t, env, 1, 10, "race.txt", "Race", "")

	next := *doc
	next.Title = "updated"
	_, err := env.svc.Save(context.Background(), services.Session{UserID: 1}, &next, nil, doc.SequenceNumber-1)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}

	var conflict *domain.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want *ConflictError", err)
	}
	if conflict.ActualSequence != doc.SequenceNumber {
		t.Errorf("actual sequence = %d, want %d", conflict.ActualSequence, doc.SequenceNumber)
	}
}

func TestConcurrentUpdateOneWinner(t *testing.T) {
	env := newTestEnv()
	doc := mustCreate(t, env, 1, 10, "contested.txt", "v0", "")

	first := mustUpdate(t, env, 1, doc, "")
	if first.SequenceNumber <= doc.SequenceNumber {
		t.Fatalf("sequence did not advance: %d -> %d", doc.SequenceNumber, first.SequenceNumber)
	}

	// the second writer still holds the old sequence number
	stale := *doc
	stale.Title = "loser"
	_, err := env.svc.Save(context.Background(), services.Session{UserID: 2}, &stale, nil, doc.SequenceNumber)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("second writer: err = %v, want ErrConflict", err)
	}
}

func TestUpdateAppendsVersionAndCopiesForward(t *testing.T) {
	env := newTestEnv()
	doc := mustCreate(t, env, 1, 10, "doc.txt", "first title", "v1 payload")

	next := *doc
	next.Title = "second title"
	next.FileSize = int64(len("v2 payload"))
	updated, err := env.svc.Save(context.Background(), services.Session{UserID: 2}, &next, strings.NewReader("v2 payload"), doc.SequenceNumber)
	if err != nil {
		t.Fatal(err)
	}

	if updated.CurrentVersion != 2 {
		t.Fatalf("current version = %d, want 2", updated.CurrentVersion)
	}
	if updated.ModifiedBy != 2 {
		t.Errorf("modified by = %d, want 2", updated.ModifiedBy)
	}

	zero, err := env.versions.Get(context.Background(), doc.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if zero.Title != "second title" {
		t.Errorf("version 0 title = %q, want copy-forward of %q", zero.Title, "second title")
	}

	one, err := env.versions.Get(context.Background(), doc.ID, 1)
	if err != nil {
		t.Fatal(err)
	}
	if one.Title != "first title" {
		t.Errorf("version 1 title = %q, history must not be rewritten", one.Title)
	}
}

func TestSaveBlockedByForeignLock(t *testing.T) {
	env := newTestEnv()
	doc := mustCreate(t, env, 1, 10, "locked.txt", "Locked", "")

	if err := env.svc.Lock(context.Background(), services.Session{UserID: 2}, doc.ID, models.InfiniteTimeout); err != nil {
		t.Fatalf("lock: %v", err)
	}

	// user 3: neither holder nor last modifier
	next := *doc
	next.Title = "blocked"
	_, err := env.svc.Save(context.Background(), services.Session{UserID: 3}, &next, nil, doc.SequenceNumber)
	if !errors.Is(err, domain.ErrLocked) {
		t.Fatalf("foreign writer: err = %v, want ErrLocked", err)
	}

	// the holder passes through its own lock
	holderNext := *doc
	holderNext.Title = "holder write"
	if _, err := env.svc.Save(context.Background(), services.Session{UserID: 2}, &holderNext, nil, doc.SequenceNumber); err != nil {
		t.Fatalf("lock holder: %v", err)
	}
}

func TestLockConflictAndUnlockRights(t *testing.T) {
	env := newTestEnv()
	doc := mustCreate(t, env, 1, 10, "l.txt", "L", "")

	if err := env.svc.Lock(context.Background(), services.Session{UserID: 2}, doc.ID, time.Hour); err != nil {
		t.Fatal(err)
	}

	err := env.svc.Lock(context.Background(), services.Session{UserID: 3}, doc.ID, time.Hour)
	if !errors.Is(err, domain.ErrLocked) {
		t.Fatalf("second lock: err = %v, want ErrLocked", err)
	}

	// user 3 is neither creator, last modifier nor holder
	if err := env.svc.Unlock(context.Background(), services.Session{UserID: 3}, doc.ID); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("stranger unlock: err = %v, want ErrPermissionDenied", err)
	}

	// the holder may release
	if err := env.svc.Unlock(context.Background(), services.Session{UserID: 2}, doc.ID); err != nil {
		t.Fatalf("holder unlock: %v", err)
	}

	locks, _ := env.locks.FindByDocument(context.Background(), doc.ID)
	if len(locks) != 0 {
		t.Fatalf("lock still present after unlock: %+v", locks)
	}
}

func TestCreatorUnlocksForeignLock(t *testing.T) {
	env := newTestEnv()
	doc := mustCreate(t, env, 1, 10, "held.txt", "Held", "")

	if err := env.svc.Lock(context.Background(), services.Session{UserID: 2}, doc.ID, models.InfiniteTimeout); err != nil {
		t.Fatal(err)
	}

	// the creator may release a lock it does not hold
	if err := env.svc.Unlock(context.Background(), services.Session{UserID: 1}, doc.ID); err != nil {
		t.Fatalf("creator unlock: %v", err)
	}

	locks, _ := env.locks.FindByDocument(context.Background(), doc.ID)
	if len(locks) != 0 {
		t.Fatalf("lock survived the creator's unlock: %+v", locks)
	}

	// and the document is writable again for everyone
	next := *doc
	next.Title = "released"
	if _, err := env.svc.Save(context.Background(), services.Session{UserID: 3}, &next, nil, doc.SequenceNumber); err != nil {
		t.Fatalf("write after unlock: %v", err)
	}
}

func TestRemoveBatchPartialRejection(t *testing.T) {
	env := newTestEnv()
	keep := mustCreate(t, env, 1, 10, "keep.txt", "Keep", "payload")
	locked := mustCreate(t, env, 1, 10, "locked.txt", "Locked", "")
	time.Sleep(2 * time.Millisecond)
	stale := mustCreate(t, env, 1, 10, "stale.txt", "Stale", "")

	if err := env.svc.Lock(context.Background(), services.Session{UserID: 2}, locked.ID, models.InfiniteTimeout); err != nil {
		t.Fatal(err)
	}

	// caller 3 is not the last modifier of "locked", so the lock blocks it;
	// "stale" was modified after the caller's watermark
	session := services.Session{UserID: 3}

	rejected, err := env.svc.Remove(context.Background(), session,
		[]int64{keep.ID, locked.ID, stale.ID, 9999}, stale.SequenceNumber-1)
	if err != nil {
		t.Fatal(err)
	}

	want := map[int64]bool{locked.ID: true, stale.ID: true, 9999: true}
	if len(rejected) != len(want) {
		t.Fatalf("rejected = %v, want ids %v", rejected, want)
	}
	for _, id := range rejected {
		if !want[id] {
			t.Errorf("unexpected rejected id %d", id)
		}
	}

	if _, err := env.docs.GetByID(context.Background(), keep.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("accepted document still present: %v", err)
	}
	if versions, _ := env.versions.ListByDocument(context.Background(), keep.ID); len(versions) != 0 {
		t.Errorf("versions survived document delete: %+v", versions)
	}
	if len(env.tombstones.documents) != 1 || env.tombstones.documents[0].DocumentID != keep.ID {
		t.Errorf("tombstones = %+v, want one for %d", env.tombstones.documents, keep.ID)
	}
	if len(env.blobs.deleted) != 1 {
		t.Errorf("deleted blobs = %v, want exactly the removed document's payload", env.blobs.deleted)
	}
	if _, err := env.docs.GetByID(context.Background(), locked.ID); err != nil {
		t.Errorf("rejected document vanished: %v", err)
	}
}

func TestRemoveRollbackKeepsBlobs(t *testing.T) {
	env := newTestEnv()
	doc := mustCreate(t, env, 1, 10, "doomed.txt", "Doomed", "precious bytes")

	env.tx.failWith = errors.New("connection lost during commit")

	_, err := env.svc.Remove(context.Background(), services.Session{UserID: 1}, []int64{doc.ID}, doc.SequenceNumber)
	if err == nil {
		t.Fatal("expected the failed transaction to surface")
	}

	if len(env.blobs.deleted) != 0 {
		t.Fatalf("deferred blob deletes ran despite rollback: %v", env.blobs.deleted)
	}
}

func TestRemoveRaceLoserRejected(t *testing.T) {
	env := newTestEnv()
	racer := mustCreate(t, env, 1, 10, "racer.txt", "Racer", "")
	plain := mustCreate(t, env, 1, 10, "plain.txt", "Plain", "")
	ctx := context.Background()

	stale, err := env.docs.GetByID(ctx, racer.ID)
	if err != nil {
		t.Fatal(err)
	}
	fresh, err := env.docs.GetByID(ctx, plain.ID)
	if err != nil {
		t.Fatal(err)
	}

	// a concurrent writer advances the row after the pre-checks saw it
	env.docs.mu.Lock()
	row := env.docs.rows[racer.ID]
	row.SequenceNumber++
	env.docs.rows[racer.ID] = row
	env.docs.mu.Unlock()

	deleted, lost, err := env.svc.deleteDocuments(ctx, services.Session{UserID: 1},
		[]*models.DocumentMetadata{stale, fresh})
	if err != nil {
		t.Fatalf("the race loser must not fail the batch: %v", err)
	}

	if len(deleted) != 1 || deleted[0].ID != plain.ID {
		t.Errorf("deleted = %+v, want only document %d", deleted, plain.ID)
	}
	if len(lost) != 1 || lost[0] != racer.ID {
		t.Errorf("lost = %v, want only document %d", lost, racer.ID)
	}

	if _, err := env.docs.GetByID(ctx, racer.ID); err != nil {
		t.Errorf("race loser vanished: %v", err)
	}
	if _, err := env.docs.GetByID(ctx, plain.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("sibling survived the batch: %v", err)
	}
	if len(env.tombstones.documents) != 1 || env.tombstones.documents[0].DocumentID != plain.ID {
		t.Errorf("tombstones = %+v, want one for %d", env.tombstones.documents, plain.ID)
	}
}

func TestRemoveVersionsPromotion(t *testing.T) {
	env := newTestEnv()
	doc := mustCreate(t, env, 1, 10, "promo.txt", "title one", "one")
	doc = mustUpdate(t, env, 1, withTitle(doc, "title two"), "two")
	doc = mustUpdate(t, env, 1, withTitle(doc, "title three"), "three")

	if doc.CurrentVersion != 3 {
		t.Fatalf("current version = %d, want 3", doc.CurrentVersion)
	}

	notRemoved, err := env.svc.RemoveVersions(context.Background(), services.Session{UserID: 1}, doc.ID, []int{3})
	if err != nil {
		t.Fatal(err)
	}
	if len(notRemoved) != 0 {
		t.Fatalf("notRemoved = %v, want empty", notRemoved)
	}

	after, err := env.docs.GetByID(context.Background(), doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if after.CurrentVersion != 2 {
		t.Fatalf("promoted current version = %d, want 2", after.CurrentVersion)
	}
	if after.Title != "title two" {
		t.Errorf("document title = %q, want promoted version's %q", after.Title, "title two")
	}

	zero, _ := env.versions.Get(context.Background(), doc.ID, 0)
	if zero.Title != "title two" {
		t.Errorf("version 0 title = %q, want copy-forward of promotion", zero.Title)
	}

	if _, err := env.versions.Get(context.Background(), doc.ID, 3); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("purged version still present: %v", err)
	}
	if len(env.tombstones.versions) != 1 || env.tombstones.versions[0].VersionNumber != 3 {
		t.Errorf("version tombstones = %+v", env.tombstones.versions)
	}
	if len(env.blobs.deleted) != 1 {
		t.Errorf("deleted blobs = %v, want the purged version's payload", env.blobs.deleted)
	}
}

func TestRemoveVersionsRefusals(t *testing.T) {
	env := newTestEnv()
	doc := mustCreate(t, env, 1, 10, "r.txt", "R", "payload")

	notRemoved, err := env.svc.RemoveVersions(context.Background(), services.Session{UserID: 1}, doc.ID, []int{0, 42})
	if err != nil {
		t.Fatal(err)
	}
	if len(notRemoved) != 2 {
		t.Fatalf("notRemoved = %v, want version 0 and the missing number back", notRemoved)
	}

	// a foreign lock refuses the whole input
	if err := env.svc.Lock(context.Background(), services.Session{UserID: 2}, doc.ID, models.InfiniteTimeout); err != nil {
		t.Fatal(err)
	}
	notRemoved, err = env.svc.RemoveVersions(context.Background(), services.Session{UserID: 3}, doc.ID, []int{1})
	if err != nil {
		t.Fatal(err)
	}
	if len(notRemoved) != 1 || notRemoved[0] != 1 {
		t.Fatalf("notRemoved = %v, want the full input back", notRemoved)
	}
	if _, err := env.versions.Get(context.Background(), doc.ID, 1); err != nil {
		t.Errorf("version removed despite foreign lock: %v", err)
	}
}

func TestRemoveVersionsPromotionFilenameClash(t *testing.T) {
	env := newTestEnv()

	doc := mustCreate(t, env, 1, 10, "old-name.txt", "Doc", "one")
	renamed := *doc
	renamed.FileName = "new-name.txt"
	doc = mustUpdate(t, env, 1, &renamed, "two")

	// someone else took the old name after the rename
	other := mustCreate(t, env, 1, 10, "old-name.txt", "Squatter", "")

	notRemoved, err := env.svc.RemoveVersions(context.Background(), services.Session{UserID: 1}, doc.ID, []int{2})
	if err != nil {
		t.Fatal(err)
	}
	if len(notRemoved) != 1 || notRemoved[0] != 2 {
		t.Fatalf("notRemoved = %v, want the active version back (promotion would clash)", notRemoved)
	}

	after, _ := env.docs.GetByID(context.Background(), doc.ID)
	if after.CurrentVersion != 2 || after.FileName != "new-name.txt" {
		t.Errorf("document changed despite refused promotion: %+v", after)
	}
	if _, err := env.docs.GetByID(context.Background(), other.ID); err != nil {
		t.Errorf("squatter vanished: %v", err)
	}
}

func withTitle(doc *models.DocumentMetadata, title string) *models.DocumentMetadata {
	next := *doc
	next.Title = title
	return &next
}

func TestDeltaPartition(t *testing.T) {
	env := newTestEnv()
	session := services.Session{UserID: 1}

	before := mustCreate(t, env, 1, 10, "before.txt", "Before", "")
	doomed := mustCreate(t, env, 1, 10, "doomed.txt", "Doomed", "")

	since := doomed.SequenceNumber
	time.Sleep(2 * time.Millisecond)

	created := mustCreate(t, env, 1, 10, "after.txt", "After", "")
	modified := mustUpdate(t, env, 1, withTitle(before, "Before v2"), "")
	if _, err := env.svc.Remove(context.Background(), session, []int64{doomed.ID}, modified.SequenceNumber+1000); err != nil {
		t.Fatal(err)
	}

	delta, err := env.svc.Delta(context.Background(), session, 10, since)
	if err != nil {
		t.Fatal(err)
	}

	if len(delta.New) != 1 || delta.New[0].ID != created.ID {
		t.Errorf("new = %+v, want only document %d", delta.New, created.ID)
	}
	if len(delta.Modified) != 1 || delta.Modified[0].ID != before.ID {
		t.Errorf("modified = %+v, want only document %d", delta.Modified, before.ID)
	}
	if len(delta.Deleted) != 1 || delta.Deleted[0].DocumentID != doomed.ID {
		t.Errorf("deleted = %+v, want only document %d", delta.Deleted, doomed.ID)
	}

	// disjoint: no id may appear in two sets
	seen := map[int64]int{}
	for _, d := range delta.New {
		seen[d.ID]++
	}
	for _, d := range delta.Modified {
		seen[d.ID]++
	}
	for _, d := range delta.Deleted {
		seen[d.DocumentID]++
	}
	for id, n := range seen {
		if n > 1 {
			t.Errorf("document %d appears in %d delta sets", id, n)
		}
	}
}

func TestUpdateRollbackCleansOrphanBlob(t *testing.T) {
	env := newTestEnv()
	doc := mustCreate(t, env, 1, 10, "u.txt", "U", "original")
	ctx := context.Background()

	one, err := env.versions.Get(ctx, doc.ID, 1)
	if err != nil {
		t.Fatal(err)
	}
	committedKey := one.BlobKey

	env.tx.failWith = errors.New("connection lost during commit")

	next := *doc
	next.FileSize = int64(len("replacement"))
	_, err = env.svc.Save(ctx, services.Session{UserID: 1}, &next, strings.NewReader("replacement"), doc.SequenceNumber)
	if err == nil {
		t.Fatal("expected the failed transaction to surface")
	}

	if len(env.blobs.deleted) != 1 {
		t.Fatalf("deleted blobs = %v, want exactly the orphaned upload", env.blobs.deleted)
	}
	orphan := env.blobs.deleted[0]
	if orphan == committedKey {
		t.Fatalf("cleanup removed the committed blob %s", committedKey)
	}
	if _, err := env.blobs.Open(ctx, orphan); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("orphan blob still stored: %v", err)
	}

	rc, err := env.blobs.Open(ctx, committedKey)
	if err != nil {
		t.Fatalf("committed blob gone: %v", err)
	}
	defer rc.Close()
	payload, _ := io.ReadAll(rc)
	if string(payload) != "original" {
		t.Errorf("committed content = %q", payload)
	}
}

func TestFolderEmptinessAndForeignObjects(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	owner := services.Session{UserID: 1}

	empty, err := env.svc.IsFolderEmpty(ctx, owner, 10)
	if err != nil || !empty {
		t.Fatalf("fresh folder: empty = %v, err = %v", empty, err)
	}

	doc := mustCreate(t, env, 1, 10, "f.txt", "F", "")

	empty, err = env.svc.IsFolderEmpty(ctx, owner, 10)
	if err != nil || empty {
		t.Fatalf("populated folder: empty = %v, err = %v", empty, err)
	}

	foreign, err := env.svc.ContainsForeignObjects(ctx, owner, 10)
	if err != nil || foreign {
		t.Fatalf("creator's own folder: foreign = %v, err = %v", foreign, err)
	}
	foreign, err = env.svc.ContainsForeignObjects(ctx, services.Session{UserID: 2}, 10)
	if err != nil || !foreign {
		t.Fatalf("other caller: foreign = %v, err = %v", foreign, err)
	}

	// deletion leaves a tombstone but the folder counts as empty again
	if _, err := env.svc.Remove(ctx, owner, []int64{doc.ID}, doc.SequenceNumber); err != nil {
		t.Fatal(err)
	}
	empty, err = env.svc.IsFolderEmpty(ctx, owner, 10)
	if err != nil || !empty {
		t.Fatalf("cleared folder: empty = %v, err = %v", empty, err)
	}
	if len(env.tombstones.documents) != 1 {
		t.Fatalf("tombstones = %+v, want the deletion recorded", env.tombstones.documents)
	}

	env.resolver.set(5, models.RightsSet{})
	if _, err := env.svc.IsFolderEmpty(ctx, services.Session{UserID: 5}, 10); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Errorf("invisible folder: err = %v, want ErrPermissionDenied", err)
	}
	if _, err := env.svc.ContainsForeignObjects(ctx, services.Session{UserID: 5}, 10); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Errorf("invisible folder: err = %v, want ErrPermissionDenied", err)
	}
}

func TestListDocumentsOwnerScoped(t *testing.T) {
	env := newTestEnv()
	mine := mustCreate(t, env, 2, 10, "mine.txt", "Mine", "")
	mustCreate(t, env, 1, 10, "theirs.txt", "Theirs", "")

	env.resolver.set(2, models.RightsSet{Visible: true, ReadOwn: true})

	docs, err := env.svc.ListDocuments(context.Background(), services.Session{UserID: 2}, 10, models.ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].ID != mine.ID {
		t.Fatalf("docs = %+v, want only the caller's own document", docs)
	}

	count, err := env.svc.CountDocuments(context.Background(), services.Session{UserID: 2}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestPermissionDenied(t *testing.T) {
	env := newTestEnv()
	doc := mustCreate(t, env, 1, 10, "private.txt", "Private", "")

	env.resolver.set(5, models.RightsSet{Visible: true})

	if _, err := env.svc.GetMetadata(context.Background(), services.Session{UserID: 5}, doc.ID, models.CurrentVersion); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Errorf("read: err = %v, want ErrPermissionDenied", err)
	}

	next := *doc
	next.Title = "nope"
	if _, err := env.svc.Save(context.Background(), services.Session{UserID: 5}, &next, nil, doc.SequenceNumber); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Errorf("write: err = %v, want ErrPermissionDenied", err)
	}

	if _, err := env.svc.Save(context.Background(), services.Session{UserID: 5}, &models.DocumentMetadata{FolderID: 10}, nil, 0); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Errorf("create: err = %v, want ErrPermissionDenied", err)
	}
}

func TestGetMetadataHistoricalVersion(t *testing.T) {
	env := newTestEnv()
	doc := mustCreate(t, env, 1, 10, "h.txt", "first", "one")
	doc = mustUpdate(t, env, 1, withTitle(doc, "second"), "two")

	current, err := env.svc.GetMetadata(context.Background(), services.Session{UserID: 1}, doc.ID, models.CurrentVersion)
	if err != nil {
		t.Fatal(err)
	}
	if current.Title != "second" || current.CurrentVersion != 2 {
		t.Errorf("current = %+v", current)
	}

	historical, err := env.svc.GetMetadata(context.Background(), services.Session{UserID: 1}, doc.ID, 1)
	if err != nil {
		t.Fatal(err)
	}
	if historical.Title != "first" {
		t.Errorf("historical title = %q, want the version-1 value", historical.Title)
	}
	if historical.FileSize != int64(len("one")) {
		t.Errorf("historical size = %d", historical.FileSize)
	}
}

func TestGetContentMissingBlobIsInconsistent(t *testing.T) {
	env := newTestEnv()
	doc := mustCreate(t, env, 1, 10, "gone.txt", "Gone", "bytes")

	// simulate operator error: the blob disappears underneath the metadata
	env.blobs.mu.Lock()
	for key := range env.blobs.data {
		delete(env.blobs.data, key)
	}
	env.blobs.mu.Unlock()

	_, err := env.svc.GetContent(context.Background(), services.Session{UserID: 1}, doc.ID, models.CurrentVersion)
	if !errors.Is(err, domain.ErrInconsistent) {
		t.Fatalf("err = %v, want ErrInconsistent", err)
	}
}

func TestSaveValidation(t *testing.T) {
	env := newTestEnv()

	tests := []struct {
		name string
		doc  models.DocumentMetadata
	}{
		{"missing folder", models.DocumentMetadata{FileName: "a.txt"}},
		{"slash in filename", models.DocumentMetadata{FolderID: 10, FileName: "a/b.txt"}},
		{"overlong title", models.DocumentMetadata{FolderID: 10, Title: strings.Repeat("x", 300)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Save(context.Background(), services.Session{UserID: 1}, &tt.doc, nil, 0)
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestListVersionsSorting(t *testing.T) {
	env := newTestEnv()
	doc := mustCreate(t, env, 1, 10, "s.txt", "S", "one")
	doc = mustUpdate(t, env, 1, doc, "two")
	doc = mustUpdate(t, env, 1, doc, "three")

	versions, err := env.svc.ListVersions(context.Background(), services.Session{UserID: 1}, doc.ID,
		models.ListOptions{SortBy: models.FieldID, Order: models.Descending})
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 4 {
		t.Fatalf("len(versions) = %d, want 4 (0..3)", len(versions))
	}
	for i := 1; i < len(versions); i++ {
		if versions[i-1].Number < versions[i].Number {
			t.Fatalf("descending sort violated: %d before %d", versions[i-1].Number, versions[i].Number)
		}
	}
}
