package index

import "github.com/starford/wintermute/internal/models"

// StoryIndex defines the interface for story indexing operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type StoryIndex interface {
	UpsertStory(row StoryRow, s *models.Story) error
	DeleteStory(path string) error
	GetChecksum(path string) (string, error)
	AllChecksums() (map[string]string, error)
	GetStory(path string) (*StoryRow, *models.Story, error)
	ListStories(limit, offset int, sort string) ([]StoryRow, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	Graph(path string) ([]GraphNode, []LinkRow, error)
	BrokenLinks(path string) ([]LinkRow, error)
	Backlinks(path, name string) ([]LinkRow, error)
	Close() error
}

// Verify *DB satisfies StoryIndex at compile time.
var _ StoryIndex = (*DB)(nil)
