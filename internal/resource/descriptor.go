// Package resource implements the dispatch core of the API: collection,
// item and relationship handlers orchestrating validation, hooks, storage
// calls and serialization, plus the single translator boundary that shapes
// every outcome into a spec-compliant response.
package resource

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/strata-api/strata/internal/apierr"
	"github.com/strata-api/strata/internal/config"
	"github.com/strata-api/strata/internal/schema"
	"github.com/strata-api/strata/internal/storage"
)

// softDeleteAttr is the wire attribute whose presence on a schema makes a
// resource soft-delete capable.
const softDeleteAttr = "deleted_at"

// Descriptor is the static configuration of one resource: its schema,
// its storage layer and the route parameter carrying its identifier.
// Descriptors are created at registration time and shared read-only
// across requests.
type Descriptor struct {
	Schema  *schema.Definition
	Storage storage.Layer

	// URLField is the route parameter holding the identifier; defaults
	// to "id".
	URLField string
}

func (d *Descriptor) normalize(kind string) {
	if d.Schema == nil {
		// ALLOW-PANIC: registration-time configuration error
		panic(fmt.Sprintf("resource: %s registered without a schema", kind))
	}
	if d.Storage == nil {
		// ALLOW-PANIC: registration-time configuration error
		panic(fmt.Sprintf("resource: %s %q registered without a storage layer", kind, d.Schema.Type))
	}
	if d.URLField == "" {
		d.URLField = "id"
	}
}

// handlerFunc is one verb handler. It returns a Result or an error for the
// translator boundary to shape.
type handlerFunc func(r *http.Request) (*Result, error)

// base carries the state shared by the three resource kinds. The
// verb→handler table is resolved at construction time.
type base struct {
	cfg   config.APIConfig
	log   *slog.Logger
	desc  Descriptor
	rsp   *responder
	verbs map[string]handlerFunc
}

func newBase(cfg config.APIConfig, log *slog.Logger, desc Descriptor, component string) base {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", component), slog.String("resource", desc.Schema.Type))
	return base{
		cfg:  cfg,
		log:  log,
		desc: desc,
		rsp:  &responder{cfg: cfg, log: log},
	}
}

// ServeHTTP dispatches through the verb table. HEAD falls back to the GET
// handler; verbs absent from the table answer 405.
func (b *base) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h, ok := b.verbs[r.Method]
	if !ok && r.Method == http.MethodHead {
		h, ok = b.verbs[http.MethodGet]
	}
	if !ok {
		b.rsp.writeError(w, r, apierr.MethodNotAllowed(
			fmt.Sprintf("Method %s is not allowed on this resource", r.Method)))
		return
	}
	b.rsp.handle(w, r, h)
}

// routeContext extracts the request's URL parameters.
func routeContext(r *http.Request) storage.RouteContext {
	rc := storage.RouteContext{}
	if chiCtx := chi.RouteContext(r.Context()); chiCtx != nil {
		for i, key := range chiCtx.URLParams.Keys {
			if key == "*" {
				continue
			}
			rc[key] = chiCtx.URLParams.Values[i]
		}
	}
	return rc
}

// decodeBody reads and decodes the request body into a generic document.
func decodeBody(r *http.Request) (map[string]any, error) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, apierr.BadRequest("", "Unable to read request body")
	}
	if len(raw) == 0 {
		return nil, apierr.BadRequest("", "Request body is empty")
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, apierr.BadRequest("", "Request body is not valid JSON")
	}
	return doc, nil
}

// flagTrue reports whether a boolean escape-hatch query flag is set. Only
// the literal string "true" enables the flag; every other value is false.
func flagTrue(r *http.Request, name string) bool {
	return r.URL.Query().Get(name) == "true"
}

// stringify renders identifier values the way they appear on the wire.
func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if f, ok := v.(float64); ok && f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%v", v)
}

// translateStorage maps storage sentinel errors into the domain taxonomy.
// Unrecognized errors pass through to the translator's unexpected path.
func translateStorage(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrRelatedNotFound):
		return apierr.ObjectNotFound("Related object not found")
	case errors.Is(err, storage.ErrNotFound):
		return apierr.ObjectNotFound("Object not found")
	case errors.Is(err, storage.ErrUnknownRelationship):
		return apierr.RelationNotFound("Unknown relationship field")
	case errors.Is(err, storage.ErrUnknownField):
		return apierr.BadRequest("", err.Error())
	case errors.Is(err, storage.ErrConflict):
		return apierr.Conflict("Object conflicts with an existing one")
	default:
		return err
	}
}

// selfLink extracts the primary object's self link from a dumped document.
func selfLink(doc map[string]any) string {
	data, ok := doc["data"].(map[string]any)
	if !ok {
		return ""
	}
	links, ok := data["links"].(map[string]any)
	if !ok {
		return ""
	}
	self, _ := links["self"].(string)
	return self
}
