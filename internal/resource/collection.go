package resource

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/strata-api/strata/internal/config"
	"github.com/strata-api/strata/internal/pagination"
	"github.com/strata-api/strata/internal/query"
	"github.com/strata-api/strata/internal/schema"
	"github.com/strata-api/strata/internal/storage"
)

// Collection serves the list and create operations of a resource.
type Collection struct {
	base
	hooks CollectionHooks
}

// NewCollection builds a collection handler with its verb table resolved
// up front. Nil hooks mean no-op hooks.
func NewCollection(cfg config.APIConfig, log *slog.Logger, desc Descriptor, hooks CollectionHooks) *Collection {
	desc.normalize("collection")
	if hooks == nil {
		hooks = NoopCollectionHooks{}
	}
	c := &Collection{base: newBase(cfg, log, desc, "collection"), hooks: hooks}
	c.verbs = map[string]handlerFunc{
		http.MethodGet:  c.list,
		http.MethodPost: c.create,
	}
	return c
}

// list retrieves a page of the collection together with its total count
// and navigation links.
func (c *Collection) list(r *http.Request) (*Result, error) {
	ctx := r.Context()
	rc := routeContext(r)

	if err := c.hooks.BeforeList(ctx, rc); err != nil {
		return nil, err
	}

	doc, err := c.listDocument(ctx, r, rc)
	if err != nil {
		return nil, err
	}

	if err := c.hooks.AfterList(ctx, doc); err != nil {
		return nil, err
	}
	return &Result{Doc: doc, Status: http.StatusOK}, nil
}

// listDocument builds the collection document a plain read serves: the
// dumped page, the navigation links and the total count.
func (c *Collection) listDocument(ctx context.Context, r *http.Request, rc storage.RouteContext) (map[string]any, error) {
	q, err := query.Parse(r.URL.Query(), c.cfg.MaxPageSize)
	if err != nil {
		return nil, err
	}

	count, objs, err := c.desc.Storage.CountAndFetch(ctx, q, rc)
	if err != nil {
		return nil, translateStorage(err)
	}

	inst, err := c.desc.Schema.Configure(schema.Options{Many: true}, q, q.Include)
	if err != nil {
		return nil, err
	}
	doc, err := inst.Dump(objs)
	if err != nil {
		return nil, err
	}

	doc["links"] = pagination.Links(count, q, r.URL.Path)
	doc["meta"] = map[string]any{"count": count}
	return doc, nil
}

// create validates the payload against the schema, dispatches to storage
// and answers 201 with the created object's self link in Location.
func (c *Collection) create(r *http.Request) (*Result, error) {
	ctx := r.Context()
	rc := routeContext(r)

	raw, err := decodeBody(r)
	if err != nil {
		return nil, err
	}

	q, err := query.Parse(r.URL.Query(), c.cfg.MaxPageSize)
	if err != nil {
		return nil, err
	}

	inst, err := c.desc.Schema.Configure(schema.Options{}, q, q.Include)
	if err != nil {
		return nil, err
	}
	data, err := inst.Load(raw)
	if err != nil {
		return nil, err
	}

	if err := c.hooks.BeforeCreate(ctx, rc, data); err != nil {
		return nil, err
	}

	// The If-Match precondition compares against the current collection
	// representation before anything is stored.
	if c.cfg.ETag && r.Header.Get("If-Match") != "" {
		current, err := c.listDocument(ctx, r, rc)
		if err != nil {
			return nil, err
		}
		if err := c.checkPrecondition(r, current); err != nil {
			return nil, err
		}
	}

	obj, err := c.desc.Storage.Create(ctx, data, rc)
	if err != nil {
		return nil, translateStorage(err)
	}

	doc, err := inst.Dump(obj)
	if err != nil {
		return nil, err
	}

	if err := c.hooks.AfterCreate(ctx, doc); err != nil {
		return nil, err
	}

	header := http.Header{}
	if self := selfLink(doc); self != "" {
		header.Set("Location", self)
	}
	return &Result{Doc: doc, Status: http.StatusCreated, Header: header}, nil
}
