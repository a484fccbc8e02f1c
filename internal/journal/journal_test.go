package journal

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gaetan-warin/LearnREST/internal/logging"
	"github.com/gaetan-warin/LearnREST/internal/store"
)

func openJournal(t *testing.T) (*Journal, *store.MemoryStore) {
	t.Helper()
	blobs := store.NewMemoryStore()
	j, err := Open(t.TempDir(), blobs, logging.Discard())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return j, blobs
}

func TestJournalLifecycle(t *testing.T) {
	j, blobs := openJournal(t)
	ctx := context.Background()

	history, err := j.History("data", 10)
	if err != nil {
		t.Fatalf("History() on empty repo error = %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected empty history, got %d entries", len(history))
	}

	if err := j.Save(ctx, "data", []byte(`{"books": []}`)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := j.Save(ctx, "data", []byte(`{"books": [{"id": 1}]}`)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := j.Save(ctx, "progress", []byte(`{}`)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if blobs.Saves("data") != 2 {
		t.Fatalf("expected wrapped store to see 2 saves, got %d", blobs.Saves("data"))
	}
	loaded, err := j.Load(ctx, "data")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(loaded) != `{"books": [{"id": 1}]}` {
		t.Fatalf("unexpected loaded document %s", loaded)
	}

	history, err = j.History("data", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 commits for data, got %d", len(history))
	}
	if history[0].Message != "update data" || history[0].Author != "REST Quest" {
		t.Fatalf("unexpected entry %+v", history[0])
	}

	latest, err := j.Snapshot("data", history[0].Hash)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if string(latest) != `{"books": [{"id": 1}]}` {
		t.Fatalf("unexpected latest snapshot %s", latest)
	}

	first, err := j.Snapshot("data", history[1].Hash[:7])
	if err != nil {
		t.Fatalf("Snapshot() with short hash error = %v", err)
	}
	if string(first) != `{"books": []}` {
		t.Fatalf("unexpected first snapshot %s", first)
	}

	limited, err := j.History("data", 1)
	if err != nil {
		t.Fatalf("History() with limit error = %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected limit to cap entries, got %d", len(limited))
	}
}

func TestJournalSkipsUnchangedSaves(t *testing.T) {
	j, _ := openJournal(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := j.Save(ctx, "data", []byte(`{"books": []}`)); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	history, err := j.History("data", 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected identical saves to collapse into 1 commit, got %d", len(history))
	}
}

func TestJournalSnapshotNotFound(t *testing.T) {
	j, _ := openJournal(t)
	ctx := context.Background()

	if err := j.Save(ctx, "data", []byte(`{"books": []}`)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	history, err := j.History("data", 1)
	if err != nil || len(history) != 1 {
		t.Fatalf("History() = %v, %v", history, err)
	}

	if _, err := j.Snapshot("progress", history[0].Hash); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for untracked document, got %v", err)
	}
	if _, err := j.Snapshot("data", "deadbeef"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown hash, got %v", err)
	}
}

func TestJournalReopensExistingRepo(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	j, err := Open(dir, store.NewMemoryStore(), logging.Discard())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := j.Save(ctx, "data", []byte(`{"books": []}`)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "data.json")); err != nil {
		t.Fatalf("expected working copy of data.json: %v", err)
	}

	reopened, err := Open(dir, store.NewMemoryStore(), logging.Discard())
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	history, err := reopened.History("data", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected history to survive reopen, got %d", len(history))
	}
}

func TestJournalConcurrentSaves(t *testing.T) {
	j, _ := openJournal(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, name := range []string{"data", "progress"} {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			for i := 0; i < 5; i++ {
				body := []byte(`{"n": ` + string(rune('0'+i)) + `}`)
				if err := j.Save(ctx, name, body); err != nil {
					t.Errorf("Save(%s) error = %v", name, err)
				}
			}
		}(name)
	}
	wg.Wait()

	for _, name := range []string{"data", "progress"} {
		history, err := j.History(name, 0)
		if err != nil {
			t.Fatalf("History(%s) error = %v", name, err)
		}
		if len(history) != 5 {
			t.Fatalf("expected 5 commits for %s, got %d", name, len(history))
		}
	}
}
