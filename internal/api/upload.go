package api

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/wintermute/internal/storage"
	"github.com/starford/wintermute/internal/storyservice"
)

const maxUploadBytes = 50 << 20 // 50 MB

// LibraryHandler accepts story uploads and serves the raw published files
// so stories can be played from the library.
type LibraryHandler struct {
	svc         *storyservice.Service
	libraryRoot string
}

// NewLibraryHandler creates a handler rooted at the library directory.
func NewLibraryHandler(svc *storyservice.Service, libraryRoot string) *LibraryHandler {
	return &LibraryHandler{svc: svc, libraryRoot: libraryRoot}
}

// safeName validates that an uploaded filename is a plain story file name
// (no path separators, no traversal).
func safeName(name string) (string, error) {
	if name == "" {
		return "", nil
	}
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("invalid filename: %s", name)
	}
	if !storage.IsStoryFile(cleaned) {
		return "", fmt.Errorf("invalid filename: %s: want .html or .htm", name)
	}
	return cleaned, nil
}

// safePath resolves a library-relative path for serving.
func (h *LibraryHandler) safePath(rel string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(cleaned) || strings.HasPrefix(cleaned, "..") {
		return "", fmt.Errorf("invalid path: %s", rel)
	}
	abs := filepath.Join(h.libraryRoot, cleaned)
	if !strings.HasPrefix(abs, h.libraryRoot+string(os.PathSeparator)) {
		return "", fmt.Errorf("path escapes library directory")
	}
	return abs, nil
}

// ServeFile handles GET /api/raw/* and returns the published story page.
func (h *LibraryHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	rel := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if !storage.IsStoryFile(rel) {
		http.NotFound(w, r)
		return
	}
	abs, err := h.safePath(rel)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, statErr := os.Stat(abs); os.IsNotExist(statErr) {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, abs)
}

// Upload handles POST /api/stories/upload (multipart/form-data, field
// "file"). The uploaded file name is kept when it is a valid story file
// name, otherwise the path is derived from the story name.
func (h *LibraryHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	name, err := safeName(header.Filename)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody("failed to read file"))
		return
	}

	d, err := h.svc.CreateStory(r.Context(), name, content)
	if err != nil {
		writeError(w, err, "upload story", slog.String("filename", header.Filename))
		return
	}

	writeJSON(w, http.StatusCreated, UploadResponse{
		Filename: d.Path,
		Size:     int64(len(content)),
		Story:    d.Story.Name,
		Passages: d.Passages,
		Checksum: d.Checksum,
		Uploaded: d.UpdatedAt,
	})
}
