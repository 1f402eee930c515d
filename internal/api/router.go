package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/wintermute/internal/storyservice"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	// AuthEnabled controls whether Bearer token auth is enforced.
	AuthEnabled bool
	Token       string
	// Events, if non-nil, is mounted at GET /events inside the auth group.
	Events http.Handler
	// LibraryRoot is used to serve raw story files.
	LibraryRoot string
	// Pretty is the default for /convert output indentation.
	Pretty bool
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(svc *storyservice.Service, opts RouterOptions) chi.Router {
	h := NewHandler(svc, opts.Pretty)
	lh := NewLibraryHandler(svc, opts.LibraryRoot)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(opts.AuthEnabled, opts.Token))

	// Stateless conversion.
	r.Post("/convert", h.Convert)

	// Stories CRUD.
	r.Get("/stories", h.ListStories)
	r.Post("/stories", h.CreateStory)
	r.Post("/stories/upload", lh.Upload)
	r.Get("/stories/*", h.GetStory)
	r.Put("/stories/*", h.UpdateStory)
	r.Delete("/stories/*", h.DeleteStory)

	// Raw published files.
	r.Get("/raw/*", lh.ServeFile)

	// Search.
	r.Get("/search", h.Search)

	// Graph queries.
	r.Get("/graph", h.Graph)
	r.Get("/broken", h.BrokenLinks)
	r.Get("/backlinks", h.Backlinks)

	// SSE endpoint (protected by same auth middleware).
	if opts.Events != nil {
		r.Get("/events", opts.Events.ServeHTTP)
	}

	return r
}
