// Package api exposes the grid's backend over HTTP: the mock user resource
// and lookup codes the grid reads, its dataset and column configuration,
// the email suggestion session endpoints, and file export.
package api

import (
	"net/http"

	"github.com/dalemusser/usergrid/internal/columns"
	"github.com/dalemusser/usergrid/internal/dataset"
	"github.com/dalemusser/usergrid/internal/lookup"
	"github.com/dalemusser/usergrid/internal/optionstore"
	"github.com/dalemusser/usergrid/internal/stream"
	"github.com/dalemusser/usergrid/internal/suggest"
	"github.com/dalemusser/usergrid/internal/userstore"
	"github.com/dalemusser/usergrid/middleware"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

// SuggestionsPath is where the email suggestion endpoints are mounted.
const SuggestionsPath = "/api/suggestions/email"

// Deps are the collaborators the handlers need.
type Deps struct {
	Dataset  *dataset.Config
	Columns  []columns.Column
	Editors  *columns.Registry
	Users    *userstore.Store
	Lookups  lookup.Provider
	Sessions *optionstore.Registry
	Suggest  *suggest.Handler
	Locale   language.Tag
	SSE      stream.Config
	Socket   stream.WSConfig
	Logger   *zap.Logger
}

// Handler serves the API routes.
type Handler struct {
	Deps
}

// New returns a Handler. When d.Editors is nil a registry holding the
// email autocomplete factory is created.
func New(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	h := &Handler{Deps: d}
	if h.Editors == nil {
		h.Editors = columns.NewRegistry()
		h.Editors.Register(columns.EmailAutocomplete,
			columns.EmailAutocompleteFactory(SuggestionsPath, h.session))
	}
	return h
}

// session canonicalizes an option session id, or picks a new one. The
// store is created when the editor first uses the session.
func (h *Handler) session(id string) (string, error) {
	return h.Sessions.SessionID(id)
}

// Mount attaches every route to r.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/mock", func(r chi.Router) {
		r.Get("/guide/user", h.listUsers)
		r.With(middleware.RequireJSON()).Post("/guide/user", h.submitUsers)
		r.Get("/{code}", h.lookupCode)
	})

	r.Get("/api/dataset/user", h.datasetSpec)
	r.Get("/api/columns/user", h.columnConfig)

	r.Route(SuggestionsPath, func(r chi.Router) {
		r.Get("/", h.snapshot)
		r.With(middleware.RequireJSON()).Post("/events", h.suggestionEvent)
		r.Get("/stream", h.stream)
		r.Get("/ws", h.socket)
	})

	r.Get("/api/export/user.{format}", h.exportUsers)
}

// locale picks ?lang= over Accept-Language, falling back to the default.
func (h *Handler) locale(r *http.Request) language.Tag {
	if lang := r.URL.Query().Get("lang"); lang != "" {
		return dataset.Negotiate(lang, h.Locale)
	}
	return dataset.Negotiate(r.Header.Get("Accept-Language"), h.Locale)
}
