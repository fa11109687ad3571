package resource

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/strata-api/strata/internal/config"
)

// API registers resource handlers on a chi router. One API instance
// carries the shared configuration and logger for every handler it mounts.
type API struct {
	cfg    config.APIConfig
	log    *slog.Logger
	router chi.Router
}

// New creates an API mounting handlers on the given router. A nil router
// gets a fresh chi.Mux.
func New(cfg config.APIConfig, log *slog.Logger, router chi.Router) *API {
	if log == nil {
		log = slog.Default()
	}
	if router == nil {
		router = chi.NewRouter()
	}
	return &API{cfg: cfg, log: log, router: router}
}

// Router returns the underlying router for mounting into a server.
func (a *API) Router() chi.Router {
	return a.router
}

// Collection mounts a collection handler (GET list, POST create) at pattern.
func (a *API) Collection(pattern string, desc Descriptor, hooks CollectionHooks) *Collection {
	h := NewCollection(a.cfg, a.log, desc, hooks)
	a.handle(pattern, h)
	return h
}

// Item mounts an item handler (GET, PATCH, DELETE) at pattern. The pattern
// must carry the URL parameter named by desc.URLField, e.g. "/articles/{id}".
func (a *API) Item(pattern string, desc Descriptor, hooks ItemHooks) *Item {
	h := NewItem(a.cfg, a.log, desc, hooks)
	a.handle(pattern, h)
	return h
}

// Relationship mounts a relationship handler at pattern. The trailing path
// segment of the pattern names the relationship, e.g.
// "/articles/{id}/relationships/comments".
func (a *API) Relationship(pattern string, desc Descriptor, hooks RelationshipHooks) *Relationship {
	h := NewRelationship(a.cfg, a.log, desc, hooks)
	a.handle(pattern, h)
	return h
}

func (a *API) handle(pattern string, h http.Handler) {
	// Handle registers all verbs; the handler's own verb table answers 405
	// for the ones it does not serve.
	a.router.Handle(pattern, h)
}
