package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/wintermute/internal/checksum"
	"github.com/starford/wintermute/internal/models"
	"github.com/starford/wintermute/internal/storyservice"
)

// maxStoryBytes bounds request bodies carrying story HTML.
const maxStoryBytes = 20 << 20

// Handler holds API route handlers.
type Handler struct {
	svc    *storyservice.Service
	pretty bool
}

// NewHandler creates a new Handler. pretty selects indented output for
// /convert when the request does not say otherwise.
func NewHandler(svc *storyservice.Service, pretty bool) *Handler {
	return &Handler{svc: svc, pretty: pretty}
}

// storyPath extracts the story path from the URL (everything after /api/stories/).
// Supports encoded slashes from OpenAPI clients (e.g. series%2Fpart-one.html).
func storyPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// readBody reads a size-limited request body.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxStoryBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("payload too large"))
		} else {
			writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		}
		return nil, false
	}
	return body, true
}

// Convert handles POST /api/convert.
//
//	@Summary		Convert published story HTML to a story graph
//	@Tags			convert
//	@Accept			html
//	@Produce		json
//	@Param			pretty	query		bool	false	"Indent output"
//	@Success		200		{object}	models.Story
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/convert [post]
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	st, err := h.svc.Convert(r.Context(), body)
	if err != nil {
		writeError(w, err, "convert")
		return
	}
	pretty := h.pretty
	if v := r.URL.Query().Get("pretty"); v != "" {
		pretty, _ = strconv.ParseBool(v)
	}
	data, err := models.MarshalStory(st, pretty)
	if err != nil {
		writeError(w, err, "convert")
		return
	}
	writeRawJSON(w, http.StatusOK, data)
}

// ListStories handles GET /api/stories.
//
//	@Summary		List library stories with pagination
//	@Tags			stories
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			sort	query		string	false	"Sort field"	Enums(path, name, updated_at)
//	@Success		200		{object}	StoryListResponse
//	@Security		BearerAuth
//	@Router			/stories [get]
func (h *Handler) ListStories(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.svc.ListStories(r.Context(), limit, offset, q.Get("sort"))
	if err != nil {
		writeError(w, err, "list stories")
		return
	}
	if items == nil {
		items = []StoryListItem{}
	}
	writeJSON(w, http.StatusOK, StoryListResponse{Stories: items, Total: total})
}

// GetStory handles GET /api/stories/*.
//
//	@Summary		Get a converted story by path
//	@Tags			stories
//	@Produce		json
//	@Param			path	path		string	true	"Story path"
//	@Success		200		{object}	StoryDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/stories/{path} [get]
func (h *Handler) GetStory(w http.ResponseWriter, r *http.Request) {
	path := storyPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	d, err := h.svc.GetStory(r.Context(), path)
	if err != nil {
		writeError(w, err, "get story", slog.String("path", path))
		return
	}
	w.Header().Set("ETag", checksum.ETag(d.Checksum))
	writeJSON(w, http.StatusOK, d)
}

// CreateStory handles POST /api/stories.
//
//	@Summary		Add a story to the library
//	@Tags			stories
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateStoryRequest	true	"Story to create"
//	@Success		201		{object}	StoryDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/stories [post]
func (h *Handler) CreateStory(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	var req CreateStoryRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := validation.ValidateStruct(&req,
		validation.Field(&req.Content, validation.Required),
	); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	d, err := h.svc.CreateStory(r.Context(), req.Path, []byte(req.Content))
	if err != nil {
		writeError(w, err, "create story", slog.String("path", req.Path))
		return
	}
	w.Header().Set("ETag", checksum.ETag(d.Checksum))
	writeJSON(w, http.StatusCreated, d)
}

// UpdateStory handles PUT /api/stories/*.
//
//	@Summary		Replace a story with optimistic concurrency
//	@Tags			stories
//	@Accept			json
//	@Produce		json
//	@Param			path		path		string				true	"Story path"
//	@Param			If-Match	header		string				false	"Checksum for optimistic concurrency"
//	@Param			body		body		UpdateStoryRequest	true	"Updated content"
//	@Success		200			{object}	StoryDetail
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/stories/{path} [put]
func (h *Handler) UpdateStory(w http.ResponseWriter, r *http.Request) {
	path := storyPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	var req UpdateStoryRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := validation.ValidateStruct(&req,
		validation.Field(&req.Content, validation.Required),
	); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	d, err := h.svc.UpdateStory(r.Context(), path, []byte(req.Content), r.Header.Get("If-Match"))
	if err != nil {
		writeError(w, err, "update story", slog.String("path", path))
		return
	}
	w.Header().Set("ETag", checksum.ETag(d.Checksum))
	writeJSON(w, http.StatusOK, d)
}

// DeleteStory handles DELETE /api/stories/*.
//
//	@Summary		Delete a story
//	@Tags			stories
//	@Param			path	path	string	true	"Story path"
//	@Success		204		"Story deleted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/stories/{path} [delete]
func (h *Handler) DeleteStory(w http.ResponseWriter, r *http.Request) {
	path := storyPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.svc.DeleteStory(r.Context(), path); err != nil {
		writeError(w, err, "delete story", slog.String("path", path))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across passages
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, err, "search", slog.String("query", q))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: toSearchResults(results)})
}

// Graph handles GET /api/graph.
//
//	@Summary		Get the passage graph of one story or the whole library
//	@Tags			graph
//	@Produce		json
//	@Param			path	query		string	false	"Story path"
//	@Success		200		{object}	GraphResponse
//	@Security		BearerAuth
//	@Router			/graph [get]
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	nodes, links, err := h.svc.Graph(r.Context(), path)
	if err != nil {
		writeError(w, err, "graph", slog.String("path", path))
		return
	}
	writeJSON(w, http.StatusOK, GraphResponse{
		Nodes: toGraphNodes(nodes),
		Links: toGraphLinks(links),
	})
}

// BrokenLinks handles GET /api/broken.
//
//	@Summary		List links whose target passage does not exist
//	@Tags			graph
//	@Produce		json
//	@Param			path	query		string	false	"Story path"
//	@Success		200		{object}	LinksResponse
//	@Security		BearerAuth
//	@Router			/broken [get]
func (h *Handler) BrokenLinks(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	links, err := h.svc.BrokenLinks(r.Context(), path)
	if err != nil {
		writeError(w, err, "broken links", slog.String("path", path))
		return
	}
	writeJSON(w, http.StatusOK, LinksResponse{Links: toGraphLinks(links)})
}

// Backlinks handles GET /api/backlinks.
//
//	@Summary		List links pointing at a passage
//	@Tags			graph
//	@Produce		json
//	@Param			path	query		string	true	"Story path"
//	@Param			name	query		string	true	"Passage name"
//	@Success		200		{object}	LinksResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/backlinks [get]
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	path, name := q.Get("path"), q.Get("name")
	if path == "" || name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameters 'path' and 'name' are required"))
		return
	}
	links, err := h.svc.Backlinks(r.Context(), path, name)
	if err != nil {
		writeError(w, err, "backlinks", slog.String("path", path))
		return
	}
	writeJSON(w, http.StatusOK, LinksResponse{Links: toGraphLinks(links)})
}
