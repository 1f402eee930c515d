package index

import (
	"bytes"
	"log/slog"
	"time"

	"github.com/starford/wintermute/internal/checksum"
	"github.com/starford/wintermute/internal/document"
	"github.com/starford/wintermute/internal/models"
	"github.com/starford/wintermute/internal/storage"
	"github.com/starford/wintermute/internal/story"
)

// Sync walks the library and brings the index up to date:
//   - new/changed files are converted and upserted
//   - files removed from disk are deleted from the index
func Sync(db *DB, store storage.Provider, b story.Builder, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if _, err := IndexFile(db, b, m.Path, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteStory(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// IndexFile converts data and upserts the resulting story into the index.
// Exported so that the story service can index what it writes.
func IndexFile(db StoryIndex, b story.Builder, path string, data []byte) (*models.Story, error) {
	s, err := document.Convert(bytes.NewReader(data), b)
	if err != nil {
		return nil, err
	}
	if err := db.UpsertStory(NewStoryRow(path, checksum.Sum(data), s, time.Now()), s); err != nil {
		return nil, err
	}
	return s, nil
}
