package index

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/starford/othala/internal/archive"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []string
}

func (r *eventRecorder) record(kind, number string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, kind+" "+number)
}

func (r *eventRecorder) wait(t *testing.T, want string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		r.mu.Lock()
		for _, ev := range r.events {
			if ev == want {
				r.mu.Unlock()
				return
			}
		}
		r.mu.Unlock()
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("event %q not observed", want)
}

func TestWatchIndexesNewRevisions(t *testing.T) {
	db := openTestDB(t)
	store, err := archive.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &eventRecorder{}
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, db, store, logger, rec.record)
	}()

	// Give the watcher a moment to install its watches.
	time.Sleep(100 * time.Millisecond)

	writeRecord(t, store, "T0000001-v1", "Watched")
	rec.wait(t, "archived T0000001-v1")

	got, err := db.GetRecord("T0000001-v1")
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if got.Title != "Watched" {
		t.Errorf("title = %q", got.Title)
	}

	// Removing the meta file drops the catalog entry.
	meta, err := store.MetaPath(mustNumber(t, "T0000001-v1"))
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(meta); err != nil {
		t.Fatal(err)
	}
	rec.wait(t, "deleted T0000001-v1")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Error("watcher did not stop")
	}
}
