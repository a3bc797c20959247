package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

type sourceRecord struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Rev  int    `json:"rev"`
}

func TestStoragePutAndGet(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()

	rec := sourceRecord{ID: "src_1", Name: "notes", Rev: 3}

	if err := s.Put(ctx, rec, "source", "src_1"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	filePath := filepath.Join(s.Root(), "source", "src_1.json")
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		t.Fatal("document file was not created")
	}

	var got sourceRecord
	if err := s.Get(ctx, &got, "source", "src_1"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if got != rec {
		t.Errorf("document mismatch: got %+v, want %+v", got, rec)
	}
}

func TestStorageGetNotFound(t *testing.T) {
	s := New(t.TempDir())

	var rec sourceRecord
	if err := s.Get(context.Background(), &rec, "source", "missing"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got: %v", err)
	}
}

func TestStorageDelete(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()

	if err := s.Put(ctx, sourceRecord{ID: "gone"}, "source", "gone"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Delete(ctx, "source", "gone"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	var rec sourceRecord
	if err := s.Get(ctx, &rec, "source", "gone"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got: %v", err)
	}
}

func TestStorageDeleteNonexistent(t *testing.T) {
	s := New(t.TempDir())

	if err := s.Delete(context.Background(), "source", "never-existed"); err != nil {
		t.Errorf("deleting a missing document should not error: %v", err)
	}
}

func TestStorageList(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := s.Put(ctx, sourceRecord{ID: id}, "source", id); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	keys, err := s.List(ctx, "source")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(keys) != 3 {
		t.Errorf("expected 3 keys, got %d: %v", len(keys), keys)
	}
}

func TestStorageListEmpty(t *testing.T) {
	s := New(t.TempDir())

	keys, err := s.List(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("expected empty list, got: %v", keys)
	}
}

func TestStorageScan(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()

	expected := map[string]sourceRecord{
		"a": {ID: "a", Name: "first", Rev: 1},
		"b": {ID: "b", Name: "second", Rev: 2},
		"c": {ID: "c", Name: "third", Rev: 3},
	}
	for id, rec := range expected {
		if err := s.Put(ctx, rec, "source", id); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	scanned := make(map[string]sourceRecord)
	err := s.Scan(ctx, func(key string, data json.RawMessage) error {
		var rec sourceRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		scanned[key] = rec
		return nil
	}, "source")
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if len(scanned) != len(expected) {
		t.Fatalf("expected %d documents, got %d", len(expected), len(scanned))
	}
	for id, want := range expected {
		if got := scanned[id]; got != want {
			t.Errorf("mismatch for %s: got %+v, want %+v", id, got, want)
		}
	}
}

func TestStorageExists(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()

	if s.Exists(ctx, "source", "probe") {
		t.Error("document should not exist yet")
	}

	if err := s.Put(ctx, sourceRecord{ID: "probe"}, "source", "probe"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if !s.Exists(ctx, "source", "probe") {
		t.Error("document should exist after Put")
	}
}

func TestStorageConcurrentWrites(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(rev int) {
			defer wg.Done()
			rec := sourceRecord{ID: "shared", Rev: rev}
			if err := s.Put(ctx, rec, "source", "shared"); err != nil {
				t.Errorf("concurrent Put failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	var rec sourceRecord
	if err := s.Get(ctx, &rec, "source", "shared"); err != nil {
		t.Fatalf("Get after concurrent writes failed: %v", err)
	}
	if rec.ID != "shared" {
		t.Errorf("unexpected record after concurrent writes: %+v", rec)
	}
}

func TestStorageAtomicWrite(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()

	if err := s.Put(ctx, sourceRecord{ID: "atomic"}, "source", "atomic"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	tmpPath := filepath.Join(s.Root(), "source", "atomic.json.tmp")
	if _, err := os.Stat(tmpPath); !os.IsNotExist(err) {
		t.Error("temp file should not remain after a successful write")
	}
}

func TestFileLockTryLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")

	l1 := NewFileLock(path)
	if !l1.TryLock() {
		t.Fatal("first TryLock should succeed")
	}

	l2 := NewFileLock(path)
	if l2.TryLock() {
		t.Error("second TryLock should fail while the lock is held")
		l2.Unlock()
	}

	if err := l1.Unlock(); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}

	if !l2.TryLock() {
		t.Error("TryLock should succeed after release")
	}
	l2.Unlock()
}
