// Package memory provides a map-backed storage layer. It backs the demo
// server when no database is configured and keeps dispatch tests free of
// external infrastructure. Relationship fields hold references to the
// related store's objects, so mutations through one resource are visible
// through another, the way an ORM session would behave.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/strata-api/strata/internal/query"
	"github.com/strata-api/strata/internal/schema"
	"github.com/strata-api/strata/internal/storage"
)

// Options configure one in-memory table.
type Options struct {
	// Type is the wire type name of the stored resource.
	Type string
	// IDField is the identifier field; defaults to "id".
	IDField string
	// URLParam is the route parameter carrying the identifier; defaults
	// to IDField.
	URLParam string
	// SoftDeleteField, when set, marks objects deleted by a populated
	// timestamp instead of removal.
	SoftDeleteField string
}

type relation struct {
	store *Store
	many  bool
}

// Store is one in-memory table. It implements storage.Layer and
// storage.RelationshipLayer.
type Store struct {
	mu        sync.RWMutex
	opts      Options
	order     []string
	objects   map[string]schema.Object
	relations map[string]relation
}

var (
	_ storage.Layer             = (*Store)(nil)
	_ storage.RelationshipLayer = (*Store)(nil)
)

// New creates an empty store.
func New(opts Options) *Store {
	if opts.IDField == "" {
		opts.IDField = "id"
	}
	if opts.URLParam == "" {
		opts.URLParam = opts.IDField
	}
	return &Store{
		opts:      opts,
		objects:   make(map[string]schema.Object),
		relations: make(map[string]relation),
	}
}

// Relate declares a relationship field resolved against another store.
func (s *Store) Relate(field string, related *Store, many bool) *Store {
	s.relations[field] = relation{store: related, many: many}
	return s
}

// Seed inserts objects directly, assigning identifiers when absent.
func (s *Store) Seed(objs ...schema.Object) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, obj := range objs {
		s.insert(obj)
	}
}

// Len reports the number of stored objects, soft-deleted ones included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// Get returns a stored object by identifier.
func (s *Store) Get(id string) (schema.Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[id]
	return obj, ok
}

func (s *Store) insert(obj schema.Object) schema.Object {
	id := ""
	if v, ok := obj[s.opts.IDField]; ok {
		id = toString(v)
	} else {
		id = uuid.NewString()
	}
	obj[s.opts.IDField] = id
	if _, exists := s.objects[id]; !exists {
		s.order = append(s.order, id)
	}
	s.objects[id] = obj
	return obj
}

// CountAndFetch implements storage.Layer.
func (s *Store) CountAndFetch(ctx context.Context, q *query.Descriptor, rc storage.RouteContext) (int, []schema.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []schema.Object
	for _, id := range s.order {
		obj := s.objects[id]
		if s.softDeleted(obj) {
			continue
		}
		ok, err := matchesAll(obj, q.Filters)
		if err != nil {
			return 0, nil, err
		}
		if ok {
			matched = append(matched, obj)
		}
	}

	sortObjects(matched, q.Sorts)

	count := len(matched)
	return count, window(matched, q.Page), nil
}

// FetchOne implements storage.Layer.
func (s *Store) FetchOne(ctx context.Context, rc storage.RouteContext, includeSoftDeleted bool) (schema.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[rc[s.opts.URLParam]]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if !includeSoftDeleted && s.softDeleted(obj) {
		return nil, storage.ErrNotFound
	}
	return obj, nil
}

// Create implements storage.Layer.
func (s *Store) Create(ctx context.Context, data schema.Object, rc storage.RouteContext) (schema.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj := data.Copy()
	for field, rel := range s.relations {
		raw, ok := obj[field]
		if !ok {
			continue
		}
		resolved, err := rel.resolve(s, raw)
		if err != nil {
			return nil, err
		}
		obj[field] = resolved
	}
	return s.insert(obj), nil
}

// Update implements storage.Layer. The passed object is mutated in place.
func (s *Store) Update(ctx context.Context, obj schema.Object, data schema.Object, rc storage.RouteContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range data {
		if rel, ok := s.relations[k]; ok {
			resolved, err := rel.resolve(s, v)
			if err != nil {
				return err
			}
			obj[k] = resolved
			continue
		}
		obj[k] = v
	}
	return nil
}

// Delete implements storage.Layer by physically removing the object.
func (s *Store) Delete(ctx context.Context, obj schema.Object, rc storage.RouteContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := toString(obj[s.opts.IDField])
	if _, ok := s.objects[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.objects, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store) softDeleted(obj schema.Object) bool {
	if s.opts.SoftDeleteField == "" {
		return false
	}
	v, ok := obj[s.opts.SoftDeleteField]
	return ok && v != nil
}

// resolve turns linkage values ({type,id} objects as produced by schema
// load) into references to the related store's objects. owner is the
// store whose lock the caller already holds.
func (r relation) resolve(owner *Store, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	idField := r.store.opts.IDField
	switch v := raw.(type) {
	case []schema.Object:
		out := make([]schema.Object, 0, len(v))
		for _, item := range v {
			obj, err := r.member(owner, idField, toString(item["id"]))
			if err != nil {
				return nil, err
			}
			out = append(out, obj)
		}
		return out, nil
	case []any:
		out := make([]schema.Object, 0, len(v))
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: malformed linkage", storage.ErrRelatedNotFound)
			}
			obj, err := r.member(owner, idField, toString(m["id"]))
			if err != nil {
				return nil, err
			}
			out = append(out, obj)
		}
		return out, nil
	case schema.Object:
		return r.member(owner, idField, toString(v["id"]))
	case map[string]any:
		return r.member(owner, idField, toString(v["id"]))
	default:
		return nil, fmt.Errorf("%w: malformed linkage", storage.ErrRelatedNotFound)
	}
}

// member finds a related object by an identifier field. A relationship
// pointing back at the owning store reuses the lock the owner already
// holds instead of taking it again.
func (r relation) member(owner *Store, field, id string) (schema.Object, error) {
	if r.store == owner {
		return r.store.findByField(field, id)
	}
	return r.store.lookupByField(field, id)
}

// lookupByField finds an object by an arbitrary identifier field.
func (s *Store) lookupByField(field, id string) (schema.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findByField(field, id)
}

// findByField is lookupByField without locking, for callers that already
// hold s.mu.
func (s *Store) findByField(field, id string) (schema.Object, error) {
	if field == s.opts.IDField {
		obj, ok := s.objects[id]
		if !ok {
			return nil, storage.ErrRelatedNotFound
		}
		return obj, nil
	}
	for _, oid := range s.order {
		obj := s.objects[oid]
		if v, ok := obj[field]; ok && toString(v) == id {
			return obj, nil
		}
	}
	return nil, storage.ErrRelatedNotFound
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if f, ok := v.(float64); ok && f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%v", v)
}

func window(objs []schema.Object, page query.Page) []schema.Object {
	offset, limit := 0, 0
	switch {
	case page.Offset > 0 || page.Limit > 0:
		offset, limit = page.Offset, page.Limit
	case page.Size > 0:
		offset, limit = (page.Number-1)*page.Size, page.Size
	default:
		return objs
	}
	if offset >= len(objs) {
		return nil
	}
	objs = objs[offset:]
	if limit > 0 && limit < len(objs) {
		objs = objs[:limit]
	}
	return objs
}

func sortObjects(objs []schema.Object, sorts []query.Sort) {
	if len(sorts) == 0 {
		return
	}
	sort.SliceStable(objs, func(i, j int) bool {
		for _, sk := range sorts {
			c := compareValues(objs[i][sk.Field], objs[j][sk.Field])
			if c == 0 {
				continue
			}
			if sk.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func matchesAll(obj schema.Object, filters []query.Filter) (bool, error) {
	for _, f := range filters {
		ok, err := matches(obj, f)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func matches(obj schema.Object, f query.Filter) (bool, error) {
	v, ok := obj[f.Name]
	if !ok {
		return false, nil
	}
	switch f.Op {
	case "eq", "":
		return compareValues(v, f.Value) == 0, nil
	case "ne":
		return compareValues(v, f.Value) != 0, nil
	case "gt":
		return compareValues(v, f.Value) > 0, nil
	case "ge":
		return compareValues(v, f.Value) >= 0, nil
	case "lt":
		return compareValues(v, f.Value) < 0, nil
	case "le":
		return compareValues(v, f.Value) <= 0, nil
	case "in":
		items, ok := f.Value.([]any)
		if !ok {
			return false, fmt.Errorf("filter %q: op \"in\" requires a list value", f.Name)
		}
		for _, item := range items {
			if compareValues(v, item) == 0 {
				return true, nil
			}
		}
		return false, nil
	case "like":
		return strings.Contains(strings.ToLower(toString(v)), strings.ToLower(toString(f.Value))), nil
	default:
		return false, fmt.Errorf("filter %q: unsupported op %q", f.Name, f.Op)
	}
}

// compareValues orders two values numerically when both coerce to numbers
// and lexicographically otherwise.
func compareValues(a, b any) int {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(toString(a), toString(b))
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	}
	return 0, false
}
