package index

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/wintermute/internal/storage"
	"github.com/starford/wintermute/internal/story"
)

const watchedStory = `<tw-storydata name="Watched" startnode="1"><tw-passagedata pid="1" name="A">[[B]]</tw-passagedata></tw-storydata>`

// watcherTestEnv sets up a library dir, storage, and DB for watcher tests.
func watcherTestEnv(t *testing.T) (string, *storage.FS, *DB) {
	t.Helper()
	libDir := t.TempDir()
	store, err := storage.NewFS(libDir)
	if err != nil {
		t.Fatal(err)
	}
	dbFile, err := os.CreateTemp("", "wintermute-watcher-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })
	db, err := Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return store.Root(), store, db
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestSync_IndexesAndRemoves(t *testing.T) {
	libDir, store, db := watcherTestEnv(t)
	logger := quietLogger()

	_ = os.WriteFile(filepath.Join(libDir, "one.html"), []byte(watchedStory), 0o644)
	_ = os.WriteFile(filepath.Join(libDir, "broken.html"), []byte("<html>no story</html>"), 0o644)
	if err := Sync(db, store, story.Builder{}, logger); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if cs, _ := db.GetChecksum("one.html"); cs == "" {
		t.Fatal("one.html not indexed")
	}
	if cs, _ := db.GetChecksum("broken.html"); cs != "" {
		t.Error("file without story data should not be indexed")
	}

	_ = os.Remove(filepath.Join(libDir, "one.html"))
	if err := Sync(db, store, story.Builder{}, logger); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if cs, _ := db.GetChecksum("one.html"); cs != "" {
		t.Error("stale entry not removed")
	}
}

func TestWatcher_NewFileIndexed(t *testing.T) {
	libDir, store, db := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string

	go Watch(ctx, db, store, libDir, story.Builder{}, quietLogger(), func(kind, path string) {
		mu.Lock()
		events = append(events, kind+":"+path)
		mu.Unlock()
	})

	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(libDir, "new.html"), []byte(watchedStory), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("new.html")
		return cs != ""
	}, "new file not indexed by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			if e == KindCreated+":new.html" {
				return true
			}
		}
		return false
	}, "expected created:new.html callback")
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	libDir, store, db := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string
	go Watch(ctx, db, store, libDir, story.Builder{}, quietLogger(), func(kind, path string) {
		mu.Lock()
		events = append(events, kind+":"+path)
		mu.Unlock()
	})
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(libDir, "notes.txt"), []byte(watchedStory), 0o644)
	_ = os.WriteFile(filepath.Join(libDir, "marker.html"), []byte(watchedStory), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("marker.html")
		return cs != ""
	}, "marker file not indexed")

	mu.Lock()
	defer mu.Unlock()
	for _, e := range events {
		if e == KindCreated+":notes.txt" || e == KindUpdated+":notes.txt" {
			t.Errorf("non-story file produced event %q", e)
		}
	}
}

func TestWatcher_NewDirWatched(t *testing.T) {
	libDir, store, db := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, libDir, story.Builder{}, quietLogger(), nil)

	time.Sleep(100 * time.Millisecond)

	subDir := filepath.Join(libDir, "subdir")
	_ = os.MkdirAll(subDir, 0o755)

	time.Sleep(200 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(subDir, "deep.html"), []byte(watchedStory), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("subdir/deep.html")
		return cs != ""
	}, "file in new subdir not indexed by watcher")
}

func TestWatcher_DeleteRemovesFromIndex(t *testing.T) {
	libDir, store, db := watcherTestEnv(t)
	logger := quietLogger()

	_ = os.WriteFile(filepath.Join(libDir, "del.html"), []byte(watchedStory), 0o644)
	_ = Sync(db, store, story.Builder{}, logger)

	cs, _ := db.GetChecksum("del.html")
	if cs == "" {
		t.Fatal("precondition: file should be indexed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, libDir, story.Builder{}, logger, nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Remove(filepath.Join(libDir, "del.html"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("del.html")
		return cs == ""
	}, "deleted file still in index")
}

func TestWatcher_RenameReconciles(t *testing.T) {
	libDir, store, db := watcherTestEnv(t)
	logger := quietLogger()

	_ = os.WriteFile(filepath.Join(libDir, "old.html"), []byte(watchedStory), 0o644)
	_ = Sync(db, store, story.Builder{}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, libDir, story.Builder{}, logger, nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Rename(filepath.Join(libDir, "old.html"), filepath.Join(libDir, "renamed.html"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		oldCS, _ := db.GetChecksum("old.html")
		newCS, _ := db.GetChecksum("renamed.html")
		return oldCS == "" && newCS != ""
	}, "rename reconciliation failed: old path should be removed and new path indexed")
}
