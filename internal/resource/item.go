package resource

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/strata-api/strata/internal/apierr"
	"github.com/strata-api/strata/internal/config"
	"github.com/strata-api/strata/internal/query"
	"github.com/strata-api/strata/internal/schema"
)

// Item serves the get, update and delete operations of a single object.
type Item struct {
	base
	hooks ItemHooks
}

// NewItem builds an item handler with its verb table resolved up front.
func NewItem(cfg config.APIConfig, log *slog.Logger, desc Descriptor, hooks ItemHooks) *Item {
	desc.normalize("item")
	if hooks == nil {
		hooks = NoopItemHooks{}
	}
	i := &Item{base: newBase(cfg, log, desc, "item"), hooks: hooks}
	i.verbs = map[string]handlerFunc{
		http.MethodGet:    i.get,
		http.MethodPatch:  i.update,
		http.MethodDelete: i.delete,
	}
	return i
}

func (i *Item) get(r *http.Request) (*Result, error) {
	ctx := r.Context()
	rc := routeContext(r)

	if err := i.hooks.BeforeGet(ctx, rc); err != nil {
		return nil, err
	}

	obj, err := i.desc.Storage.FetchOne(ctx, rc, flagTrue(r, "get_trashed"))
	if err != nil {
		return nil, translateStorage(err)
	}

	q, err := query.Parse(r.URL.Query(), i.cfg.MaxPageSize)
	if err != nil {
		return nil, err
	}
	inst, err := i.desc.Schema.Configure(schema.Options{}, q, q.Include)
	if err != nil {
		return nil, err
	}
	doc, err := inst.Dump(obj)
	if err != nil {
		return nil, err
	}

	if err := i.hooks.AfterGet(ctx, doc); err != nil {
		return nil, err
	}
	return &Result{Doc: doc, Status: http.StatusOK}, nil
}

func (i *Item) update(r *http.Request) (*Result, error) {
	ctx := r.Context()
	rc := routeContext(r)

	raw, err := decodeBody(r)
	if err != nil {
		return nil, err
	}

	q, err := query.Parse(r.URL.Query(), i.cfg.MaxPageSize)
	if err != nil {
		return nil, err
	}
	inst, err := i.desc.Schema.Configure(schema.Options{Partial: true}, q, q.Include)
	if err != nil {
		return nil, err
	}
	data, err := inst.Load(raw)
	if err != nil {
		return nil, err
	}

	// The body's identifier must be present and must equal the URL's.
	dataNode, _ := raw["data"].(map[string]any)
	idRaw, ok := dataNode["id"]
	if !ok {
		return nil, apierr.BadRequest("/data/id", `Missing id in "data" node`)
	}
	if stringify(idRaw) != rc[i.desc.URLField] {
		return nil, apierr.BadRequest("/data/id", "Value of id does not match the resource identifier in url")
	}

	if err := i.hooks.BeforeUpdate(ctx, rc, data); err != nil {
		return nil, err
	}

	obj, err := i.desc.Storage.FetchOne(ctx, rc, flagTrue(r, "get_trashed"))
	if err != nil {
		return nil, translateStorage(err)
	}

	// The If-Match precondition is checked against the representation
	// the client last saw, before any mutation happens.
	current, err := inst.Dump(obj)
	if err != nil {
		return nil, err
	}
	if err := i.checkPrecondition(r, current); err != nil {
		return nil, err
	}

	if err := i.desc.Storage.Update(ctx, obj, data, rc); err != nil {
		return nil, translateStorage(err)
	}

	doc, err := inst.Dump(obj)
	if err != nil {
		return nil, err
	}

	if err := i.hooks.AfterUpdate(ctx, doc); err != nil {
		return nil, err
	}
	return &Result{Doc: doc, Status: http.StatusOK}, nil
}

func (i *Item) delete(r *http.Request) (*Result, error) {
	ctx := r.Context()
	rc := routeContext(r)

	if err := i.hooks.BeforeDelete(ctx, rc); err != nil {
		return nil, err
	}

	// The permanent flag also permits fetching an already-soft-deleted
	// object for physical removal.
	permanent := flagTrue(r, "permanent")

	obj, err := i.desc.Storage.FetchOne(ctx, rc, permanent)
	if err != nil {
		return nil, translateStorage(err)
	}

	q, err := query.Parse(r.URL.Query(), i.cfg.MaxPageSize)
	if err != nil {
		return nil, err
	}
	inst, err := i.desc.Schema.Configure(schema.Options{}, q, nil)
	if err != nil {
		return nil, err
	}
	current, err := inst.Dump(obj)
	if err != nil {
		return nil, err
	}
	if err := i.checkPrecondition(r, current); err != nil {
		return nil, err
	}

	softAttr, softCapable := i.desc.Schema.Attribute(softDeleteAttr)
	if !softCapable || permanent || !i.cfg.SoftDelete {
		if err := i.desc.Storage.Delete(ctx, obj, rc); err != nil {
			return nil, translateStorage(err)
		}
	} else {
		// A soft delete is an update, not a physical delete.
		stamp := schema.Object{softAttr.StorageName: time.Now().UTC()}
		if err := i.desc.Storage.Update(ctx, obj, stamp, rc); err != nil {
			return nil, translateStorage(err)
		}
	}

	doc := map[string]any{"meta": map[string]any{"message": "Object successfully deleted"}}
	if err := i.hooks.AfterDelete(ctx, doc); err != nil {
		return nil, err
	}
	return &Result{Doc: doc, Status: http.StatusOK}, nil
}
