package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/wintermute/internal/storage"
	"github.com/starford/wintermute/internal/story"
)

// Change kinds reported to an EventCallback.
const (
	KindCreated = "created"
	KindUpdated = "updated"
	KindDeleted = "deleted"
)

// reconcileDelay debounces the reconciliation pass after renames.
const reconcileDelay = 200 * time.Millisecond

// EventCallback is called after a watcher-driven index change.
// kind is one of KindCreated, KindUpdated, KindDeleted.
type EventCallback func(kind string, path string)

// watchLoop carries the collaborators shared by the watcher helpers.
type watchLoop struct {
	db      *DB
	store   storage.Provider
	builder story.Builder
	root    string
	logger  *slog.Logger
	cb      EventCallback
}

func (l *watchLoop) emit(kind, path string) {
	if l.cb != nil {
		l.cb(kind, path)
	}
}

// Watch starts an fsnotify watcher on the library root and processes file
// change events until ctx is cancelled. It calls cb (if non-nil) after
// each successful index mutation.
//
// New directories created at runtime are automatically added to the watch
// list. Rename events trigger a reconciliation pass that removes stale
// index entries whose files no longer exist on disk.
func Watch(ctx context.Context, db *DB, store storage.Provider, root string, b story.Builder, logger *slog.Logger, cb EventCallback) error {
	l := &watchLoop{db: db, store: store, builder: b, root: root, logger: logger, cb: cb}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	// reconcileTimer is used to debounce rename reconciliation.
	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			l.reconcile()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			// --- Handle new directories: add to watcher ---
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					// Index any story files already in the new directory.
					l.indexNewDir(absPath)
					continue
				}
			}

			// Only process story files from here on.
			if !storage.IsStoryFile(absPath) {
				continue
			}

			rel, ok := l.relPath(absPath)
			if !ok {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				data, readErr := store.Read(rel)
				if readErr != nil {
					logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", readErr.Error()))
					continue
				}
				if _, idxErr := IndexFile(db, b, rel, data); idxErr != nil {
					logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", idxErr.Error()))
					continue
				}
				kind := KindUpdated
				if ev.Op&fsnotify.Create != 0 {
					kind = KindCreated
				}
				logger.Debug("watcher: indexed", slog.String("path", rel), slog.String("op", kind))
				l.emit(kind, rel)

			case ev.Op&fsnotify.Remove != 0:
				if delErr := db.DeleteStory(rel); delErr != nil {
					logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", delErr.Error()))
					continue
				}
				logger.Debug("watcher: deleted", slog.String("path", rel))
				l.emit(KindDeleted, rel)

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify fires Rename on the OLD path only. The new
				// path will arrive as a separate Create event (if it
				// stays within a watched dir). We delete the old entry
				// immediately and schedule a short reconciliation pass
				// to catch any stragglers.
				if delErr := db.DeleteStory(rel); delErr != nil {
					logger.Warn("watcher: rename delete failed", slog.String("path", rel), slog.String("error", delErr.Error()))
				} else {
					logger.Debug("watcher: rename old deleted", slog.String("path", rel))
					l.emit(KindDeleted, rel)
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcile does a lightweight sync using batch lookups:
// finds index entries without a corresponding file on disk and removes them,
// and finds on-disk files that are not indexed (or changed) and indexes them.
func (l *watchLoop) reconcile() {
	checksums, err := l.db.AllChecksums()
	if err != nil {
		l.logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}

	metas, err := l.store.List("")
	if err != nil {
		l.logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	for _, m := range metas {
		disk[m.Path] = m.Checksum
	}

	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if delErr := l.db.DeleteStory(p); delErr == nil {
				l.logger.Debug("reconcile: removed stale", slog.String("path", p))
				l.emit(KindDeleted, p)
			}
		}
	}

	for p, cs := range disk {
		old, indexed := checksums[p]
		if old == cs {
			continue
		}
		data, readErr := l.store.Read(p)
		if readErr != nil {
			continue
		}
		if _, idxErr := IndexFile(l.db, l.builder, p, data); idxErr == nil {
			l.logger.Debug("reconcile: indexed", slog.String("path", p))
			kind := KindCreated
			if indexed {
				kind = KindUpdated
			}
			l.emit(kind, p)
		}
	}
}

// indexNewDir indexes any story files found in a newly created directory.
func (l *watchLoop) indexNewDir(dirPath string) {
	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !storage.IsStoryFile(path) {
			return nil
		}
		rel, ok := l.relPath(path)
		if !ok {
			return nil
		}
		data, readErr := l.store.Read(rel)
		if readErr != nil {
			return nil
		}
		if _, idxErr := IndexFile(l.db, l.builder, rel, data); idxErr == nil {
			l.logger.Debug("watcher: indexed from new dir", slog.String("path", rel))
			l.emit(KindCreated, rel)
		}
		return nil
	})
}

// relPath converts an absolute event path to a slash-separated library path.
func (l *watchLoop) relPath(abs string) (string, bool) {
	rel, err := filepath.Rel(l.root, abs)
	if err != nil {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
