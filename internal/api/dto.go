package api

import (
	"time"

	"github.com/starford/wintermute/internal/index"
	"github.com/starford/wintermute/internal/storyservice"
)

// CreateStoryRequest is the request body for creating a story. Path may be
// empty, in which case it is derived from the story name.
type CreateStoryRequest struct {
	Path    string `json:"path" example:"neuromancer.html"`
	Content string `json:"content" example:"<tw-storydata ...>...</tw-storydata>" validate:"required"`
}

// UpdateStoryRequest is the request body for updating a story.
type UpdateStoryRequest struct {
	Content string `json:"content" example:"<tw-storydata ...>...</tw-storydata>" validate:"required"`
}

// StoryDetail is the full story response type (aliased from the domain layer).
type StoryDetail = storyservice.StoryDetail

// StoryListItem is a lightweight item in a list response (aliased from the domain layer).
type StoryListItem = storyservice.StoryListItem

// StoryListResponse wraps paginated story listings.
type StoryListResponse struct {
	Stories []StoryListItem `json:"stories" validate:"required"`
	Total   int             `json:"total" example:"42" validate:"required"`
}

// SearchResult is a single passage hit in the API response.
type SearchResult struct {
	Path      string `json:"path" example:"neuromancer.html" validate:"required"`
	StoryName string `json:"story_name" example:"Neuromancer" validate:"required"`
	PID       string `json:"pid" example:"3" validate:"required"`
	Passage   string `json:"passage" example:"Chiba" validate:"required"`
	Snippet   string `json:"snippet" example:"...matched text..." validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}

// GraphNode is a passage in the story graph.
type GraphNode struct {
	Path string   `json:"path" example:"neuromancer.html" validate:"required"`
	PID  string   `json:"pid" example:"1" validate:"required"`
	Name string   `json:"name" example:"Chiba" validate:"required"`
	Tags []string `json:"tags" validate:"required"`
}

// GraphLink is an edge in the story graph.
type GraphLink struct {
	Path       string `json:"path" example:"neuromancer.html" validate:"required"`
	SourcePID  string `json:"source_pid" example:"1" validate:"required"`
	SourceName string `json:"source_name" example:"Chiba" validate:"required"`
	Name       string `json:"name" example:"Leave" validate:"required"`
	Target     string `json:"target" example:"Freeside" validate:"required"`
	TargetPID  string `json:"target_pid,omitempty" example:"2"`
	Broken     bool   `json:"broken"`
}

// GraphResponse wraps the story graph.
type GraphResponse struct {
	Nodes []GraphNode `json:"nodes" validate:"required"`
	Links []GraphLink `json:"links" validate:"required"`
}

// LinksResponse wraps broken link and backlink listings.
type LinksResponse struct {
	Links []GraphLink `json:"links" validate:"required"`
}

// UploadResponse is returned after a successful story upload.
type UploadResponse struct {
	Filename string    `json:"filename" example:"neuromancer.html" validate:"required"`
	Size     int64     `json:"size" example:"12345" validate:"required"`
	Story    string    `json:"story" example:"Neuromancer" validate:"required"`
	Passages int       `json:"passages" example:"12" validate:"required"`
	Checksum string    `json:"checksum" validate:"required"`
	Uploaded time.Time `json:"uploaded_at"`
}

func toSearchResults(rows []index.SearchResult) []SearchResult {
	out := make([]SearchResult, len(rows))
	for i, r := range rows {
		out[i] = SearchResult{Path: r.Path, StoryName: r.StoryName, PID: r.PID, Passage: r.Passage, Snippet: r.Snippet}
	}
	return out
}

func toGraphNodes(rows []index.GraphNode) []GraphNode {
	out := make([]GraphNode, len(rows))
	for i, n := range rows {
		tags := n.Tags
		if tags == nil {
			tags = []string{}
		}
		out[i] = GraphNode{Path: n.Path, PID: n.PID, Name: n.Name, Tags: tags}
	}
	return out
}

func toGraphLinks(rows []index.LinkRow) []GraphLink {
	out := make([]GraphLink, len(rows))
	for i, l := range rows {
		out[i] = GraphLink{
			Path:       l.Path,
			SourcePID:  l.SourcePID,
			SourceName: l.SourceName,
			Name:       l.Name,
			Target:     l.Target,
			TargetPID:  l.TargetPID,
			Broken:     l.Broken,
		}
	}
	return out
}
