package resource

import (
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/strata-api/strata/internal/apierr"
	"github.com/strata-api/strata/internal/config"
	"github.com/strata-api/strata/internal/query"
	"github.com/strata-api/strata/internal/schema"
	"github.com/strata-api/strata/internal/storage"
)

// Relationship serves the read and mutation operations of a single
// relationship field, identified by the trailing path segment of the URL.
type Relationship struct {
	base
	hooks   RelationshipHooks
	storage storage.RelationshipLayer
}

// NewRelationship builds a relationship handler. The descriptor's storage
// layer must also implement storage.RelationshipLayer.
func NewRelationship(cfg config.APIConfig, log *slog.Logger, desc Descriptor, hooks RelationshipHooks) *Relationship {
	desc.normalize("relationship")
	if hooks == nil {
		hooks = NoopRelationshipHooks{}
	}
	rl, ok := desc.Storage.(storage.RelationshipLayer)
	if !ok {
		// ALLOW-PANIC: registration-time configuration error
		panic(fmt.Sprintf("resource: storage layer of %q does not support relationship operations", desc.Schema.Type))
	}
	h := &Relationship{base: newBase(cfg, log, desc, "relationship"), hooks: hooks, storage: rl}
	h.verbs = map[string]handlerFunc{
		http.MethodGet:    h.get,
		http.MethodPost:   h.add,
		http.MethodPatch:  h.replace,
		http.MethodDelete: h.remove,
	}
	return h
}

// resolve maps the trailing URL segment to a declared relationship,
// de-dasherizing it when configured.
func (h *Relationship) resolve(r *http.Request) (*schema.Relationship, error) {
	segment := path.Base(r.URL.Path)
	if h.cfg.DasherizeAPI {
		segment = strings.ReplaceAll(segment, "-", "_")
	}
	rel, ok := h.desc.Schema.Relationship(segment)
	if !ok {
		return nil, apierr.RelationNotFound(
			fmt.Sprintf("%s has no relationship %s", h.desc.Schema.Type, segment))
	}
	return rel, nil
}

func (h *Relationship) get(r *http.Request) (*Result, error) {
	ctx := r.Context()
	rc := routeContext(r)

	if err := h.hooks.BeforeGet(ctx, rc); err != nil {
		return nil, err
	}

	rel, err := h.resolve(r)
	if err != nil {
		return nil, err
	}

	owner, linkage, err := h.storage.ReadRelationship(ctx, rel.StorageField, rel.IDField, rc)
	if err != nil {
		return nil, translateStorage(err)
	}

	doc, err := h.relationshipDoc(r, rel, owner, linkage)
	if err != nil {
		return nil, err
	}

	q, err := query.Parse(r.URL.Query(), h.cfg.MaxPageSize)
	if err != nil {
		return nil, err
	}
	if len(q.Include) > 0 {
		inst, err := h.desc.Schema.Configure(schema.Options{}, q, q.Include)
		if err != nil {
			return nil, err
		}
		full, err := inst.Dump(owner)
		if err != nil {
			return nil, err
		}
		included, ok := full["included"]
		if !ok {
			included = []any{}
		}
		doc["included"] = included
	}

	if err := h.hooks.AfterGet(ctx, doc); err != nil {
		return nil, err
	}
	return &Result{Doc: doc, Status: http.StatusOK}, nil
}

// relationshipDoc builds the {links, data} document of a relationship the
// way a plain read of its URL serves it.
func (h *Relationship) relationshipDoc(r *http.Request, rel *schema.Relationship, owner schema.Object, linkage any) (map[string]any, error) {
	links := map[string]any{"self": r.URL.Path}
	if rel.RelatedURL != "" {
		related, err := schema.ResolveTemplate(rel.RelatedURL, owner)
		if err != nil {
			return nil, err
		}
		links["related"] = related
	}
	return map[string]any{"links": links, "data": linkage}, nil
}

func (h *Relationship) add(r *http.Request) (*Result, error) {
	return h.mutate(r, http.MethodPost)
}

func (h *Relationship) replace(r *http.Request) (*Result, error) {
	return h.mutate(r, http.MethodPatch)
}

func (h *Relationship) remove(r *http.Request) (*Result, error) {
	return h.mutate(r, http.MethodDelete)
}

func (h *Relationship) mutate(r *http.Request, verb string) (*Result, error) {
	ctx := r.Context()
	rc := routeContext(r)

	raw, err := decodeBody(r)
	if err != nil {
		return nil, err
	}

	rel, err := h.resolve(r)
	if err != nil {
		return nil, err
	}

	payload, err := linkagePayload(raw, rel)
	if err != nil {
		return nil, err
	}

	// The If-Match precondition is checked against the representation a
	// read of this URL would have produced, before any mutation happens.
	if h.cfg.ETag && r.Header.Get("If-Match") != "" {
		prior, linkage, err := h.storage.ReadRelationship(ctx, rel.StorageField, rel.IDField, rc)
		if err != nil {
			return nil, translateStorage(err)
		}
		current, err := h.relationshipDoc(r, rel, prior, linkage)
		if err != nil {
			return nil, err
		}
		if err := h.checkPrecondition(r, current); err != nil {
			return nil, err
		}
	}

	var owner schema.Object
	var changed bool
	switch verb {
	case http.MethodPost:
		if err := h.hooks.BeforeAdd(ctx, rc, payload); err != nil {
			return nil, err
		}
		owner, changed, err = h.storage.CreateRelationship(ctx, payload, rel.StorageField, rel.IDField, rc)
	case http.MethodPatch:
		if err := h.hooks.BeforeReplace(ctx, rc, payload); err != nil {
			return nil, err
		}
		owner, changed, err = h.storage.UpdateRelationship(ctx, payload, rel.StorageField, rel.IDField, rc)
	case http.MethodDelete:
		if err := h.hooks.BeforeRemove(ctx, rc, payload); err != nil {
			return nil, err
		}
		owner, changed, err = h.storage.DeleteRelationship(ctx, payload, rel.StorageField, rel.IDField, rc)
	}
	if err != nil {
		return nil, translateStorage(err)
	}

	// A no-op mutation answers 204 with an empty body.
	if !changed {
		return &Result{Status: http.StatusNoContent, Empty: true}, nil
	}

	q, err := query.Parse(r.URL.Query(), h.cfg.MaxPageSize)
	if err != nil {
		return nil, err
	}

	// The mutated relationship is forced into the include set so its
	// linkage is present in the serialized owner.
	includes := q.Include
	if !containsString(includes, rel.Name) {
		includes = append(includes, rel.Name)
	}

	inst, err := h.desc.Schema.Configure(schema.Options{}, q, includes)
	if err != nil {
		return nil, err
	}
	doc, err := inst.Dump(owner)
	if err != nil {
		return nil, err
	}

	// The self link is rewritten to the literal request path.
	if links, ok := doc["links"].(map[string]any); ok {
		if _, ok := links["self"]; ok {
			links["self"] = r.URL.Path
		}
	}

	switch verb {
	case http.MethodPost:
		err = h.hooks.AfterAdd(ctx, doc)
	case http.MethodPatch:
		err = h.hooks.AfterReplace(ctx, doc)
	case http.MethodDelete:
		err = h.hooks.AfterRemove(ctx, doc)
	}
	if err != nil {
		return nil, err
	}

	return &Result{Doc: doc, Status: http.StatusOK}, nil
}

// linkagePayload validates the request body's data node and converts it
// into a structured relationship payload.
func linkagePayload(raw map[string]any, rel *schema.Relationship) (storage.RelationshipPayload, error) {
	node, ok := raw["data"]
	if !ok {
		return storage.RelationshipPayload{}, apierr.BadRequest("/data", `You must provide data with a "data" route node`)
	}

	switch v := node.(type) {
	case nil:
		return storage.RelationshipPayload{}, nil
	case map[string]any:
		item, err := linkageItem(v, rel, "The type field does not match the resource type")
		if err != nil {
			return storage.RelationshipPayload{}, err
		}
		return storage.RelationshipPayload{Items: []storage.Linkage{item}}, nil
	case []any:
		items := make([]storage.Linkage, 0, len(v))
		for _, member := range v {
			m, ok := member.(map[string]any)
			if !ok {
				return storage.RelationshipPayload{}, apierr.BadRequest("/data", `Members of the "data" list must be objects`)
			}
			item, err := linkageItem(m, rel, "The type provided does not match the resource type")
			if err != nil {
				return storage.RelationshipPayload{}, err
			}
			items = append(items, item)
		}
		return storage.RelationshipPayload{Many: true, Items: items}, nil
	default:
		return storage.RelationshipPayload{}, apierr.BadRequest("/data", `The "data" node must be an object or a list`)
	}
}

func linkageItem(m map[string]any, rel *schema.Relationship, typeMismatch string) (storage.Linkage, error) {
	typ, hasType := m["type"]
	if !hasType {
		return storage.Linkage{}, apierr.BadRequest("/data/type", `Missing type in "data" node`)
	}
	id, hasID := m["id"]
	if !hasID {
		return storage.Linkage{}, apierr.BadRequest("/data/id", `Missing id in "data" node`)
	}
	if stringify(typ) != rel.Type {
		return storage.Linkage{}, apierr.InvalidType("/data/type", typeMismatch)
	}
	return storage.Linkage{Type: stringify(typ), ID: stringify(id)}, nil
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
