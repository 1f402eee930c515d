// Package storyservice coordinates the story library, conversion and index.
package storyservice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"github.com/starford/wintermute/internal/apperr"
	"github.com/starford/wintermute/internal/checksum"
	"github.com/starford/wintermute/internal/document"
	"github.com/starford/wintermute/internal/index"
	"github.com/starford/wintermute/internal/models"
	"github.com/starford/wintermute/internal/storage"
	"github.com/starford/wintermute/internal/story"
)

// StoryDetail is the full representation of a library story.
type StoryDetail struct {
	Path      string        `json:"path"`
	Checksum  string        `json:"checksum"`
	Passages  int           `json:"passages"`
	Broken    int           `json:"broken"`
	Story     *models.Story `json:"story"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// StoryListItem is a lightweight item in a list response.
type StoryListItem struct {
	Path      string    `json:"path"`
	Name      string    `json:"name"`
	IFID      string    `json:"ifid"`
	Checksum  string    `json:"checksum"`
	Passages  int       `json:"passages"`
	Broken    int       `json:"broken"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Service coordinates storage, conversion and index operations.
type Service struct {
	store   storage.Provider
	db      index.StoryIndex
	builder story.Builder
}

// NewService creates a new story service.
func NewService(store storage.Provider, db index.StoryIndex, b story.Builder) *Service {
	return &Service{store: store, db: db, builder: b}
}

// Convert turns published story HTML into a story graph without touching
// the library.
func (s *Service) Convert(_ context.Context, data []byte) (*models.Story, error) {
	return document.Convert(bytes.NewReader(data), s.builder)
}

// GetStory reads a story file from the library and converts it.
func (s *Service) GetStory(ctx context.Context, p string) (*StoryDetail, error) {
	data, err := s.read(p)
	if err != nil {
		return nil, err
	}
	st, err := s.Convert(ctx, data)
	if err != nil {
		return nil, err
	}
	return newStoryDetail(p, data, st), nil
}

// CreateStory validates and writes a new story file and indexes it. When p
// is empty the file name is derived from the story name.
func (s *Service) CreateStory(ctx context.Context, p string, content []byte) (*StoryDetail, error) {
	st, err := s.Convert(ctx, content)
	if err != nil {
		return nil, err
	}
	if p == "" {
		p = s.freePath(StoryPath(st.Name))
	}
	if err := validatePath(p); err != nil {
		return nil, err
	}
	if _, err := s.store.Read(p); err == nil {
		return nil, apperr.ErrAlreadyExists
	}
	if err := s.store.Write(p, content); err != nil {
		return nil, err
	}
	if _, err := index.IndexFile(s.db, s.builder, p, content); err != nil {
		// Drop the file so the path stays free for a retry.
		if rmErr := s.store.Delete(p); rmErr != nil {
			err = errors.Join(err, fmt.Errorf("storyservice: remove %s: %w", p, rmErr))
		}
		return nil, err
	}
	return newStoryDetail(p, content, st), nil
}

// UpdateStory writes updated content with optimistic concurrency. ifMatch,
// when set, must match the checksum of the stored file.
func (s *Service) UpdateStory(ctx context.Context, p string, content []byte, ifMatch string) (*StoryDetail, error) {
	existing, err := s.read(p)
	if err != nil {
		return nil, err
	}
	if ifMatch != "" && !checksum.Matches(ifMatch, checksum.Sum(existing)) {
		return nil, apperr.ErrConflict
	}
	st, err := s.Convert(ctx, content)
	if err != nil {
		return nil, err
	}
	if err := s.store.Write(p, content); err != nil {
		return nil, err
	}
	if _, err := index.IndexFile(s.db, s.builder, p, content); err != nil {
		return nil, err
	}
	return newStoryDetail(p, content, st), nil
}

// DeleteStory removes a story from the library and the index.
func (s *Service) DeleteStory(_ context.Context, p string) error {
	if err := s.store.Delete(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperr.ErrNotFound
		}
		return err
	}
	return s.db.DeleteStory(p)
}

// ListStories returns a page of indexed stories.
func (s *Service) ListStories(_ context.Context, limit, offset int, sort string) ([]StoryListItem, int, error) {
	rows, total, err := s.db.ListStories(limit, offset, sort)
	if err != nil {
		return nil, 0, err
	}
	items := make([]StoryListItem, len(rows))
	for i, r := range rows {
		items[i] = StoryListItem{
			Path:      r.Path,
			Name:      r.Name,
			IFID:      r.IFID,
			Checksum:  r.Checksum,
			Passages:  r.Passages,
			Broken:    r.Broken,
			UpdatedAt: r.UpdatedAt,
		}
	}
	return items, total, nil
}

// Search delegates passage search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// Graph returns passages and links of one story, or of the whole library
// when p is empty.
func (s *Service) Graph(_ context.Context, p string) ([]index.GraphNode, []index.LinkRow, error) {
	return s.db.Graph(p)
}

// BrokenLinks returns links without a target passage.
func (s *Service) BrokenLinks(_ context.Context, p string) ([]index.LinkRow, error) {
	return s.db.BrokenLinks(p)
}

// Backlinks returns the links in story p that target the passage name.
func (s *Service) Backlinks(_ context.Context, p, name string) ([]index.LinkRow, error) {
	return s.db.Backlinks(p, name)
}

// IndexFile converts data and upserts it into the index.
// Exported so that sync and watcher callers can reuse it.
func (s *Service) IndexFile(p string, data []byte) error {
	_, err := index.IndexFile(s.db, s.builder, p, data)
	return err
}

func (s *Service) read(p string) ([]byte, error) {
	data, err := s.store.Read(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// freePath returns p, or p with a short unique suffix when p is taken.
func (s *Service) freePath(p string) string {
	if _, err := s.store.Read(p); err != nil {
		return p
	}
	ext := path.Ext(p)
	return strings.TrimSuffix(p, ext) + "-" + uuid.NewString()[:8] + ext
}

// StoryPath derives a library file name from a story name. Names that
// slugify to nothing get a random name.
func StoryPath(name string) string {
	base := slug.Make(name)
	if base == "" {
		base = uuid.NewString()
	}
	return base + ".html"
}

func validatePath(p string) error {
	if !storage.IsStoryFile(p) {
		return fmt.Errorf("storyservice: %q is not an .html or .htm file: %w", p, apperr.ErrInvalidPath)
	}
	return nil
}

func newStoryDetail(p string, data []byte, st *models.Story) *StoryDetail {
	row := index.NewStoryRow(p, checksum.Sum(data), st, time.Now())
	return &StoryDetail{
		Path:      p,
		Checksum:  row.Checksum,
		Passages:  row.Passages,
		Broken:    row.Broken,
		Story:     st,
		UpdatedAt: row.UpdatedAt,
	}
}
