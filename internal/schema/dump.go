package schema

import (
	"fmt"
	"strings"

	"github.com/strata-api/strata/internal/apierr"
)

// Dump serializes an object or collection into a document with links, data
// and, when includes are requested, a deduplicated included set.
func (s *Instance) Dump(v any) (map[string]any, error) {
	doc := map[string]any{}
	var roots []Object

	if s.opts.Many {
		roots = coerceObjects(v)
		data := make([]any, 0, len(roots))
		for _, obj := range roots {
			ro, _, err := s.resourceObject(s.def, obj)
			if err != nil {
				return nil, err
			}
			data = append(data, ro)
		}
		doc["data"] = data
	} else {
		obj, ok := coerceObject(v)
		if !ok {
			return nil, fmt.Errorf("schema %s: cannot serialize value of type %T", s.def.Type, v)
		}
		roots = []Object{obj}
		ro, self, err := s.resourceObject(s.def, obj)
		if err != nil {
			return nil, err
		}
		doc["data"] = ro
		if self != "" {
			doc["links"] = map[string]any{"self": self}
		}
	}

	if len(s.include) > 0 {
		included, err := s.collectIncluded(roots)
		if err != nil {
			return nil, err
		}
		if included == nil {
			included = []any{}
		}
		doc["included"] = included
	}

	return doc, nil
}

// resourceObject builds a single resource object and returns it together
// with its resolved self link.
func (s *Instance) resourceObject(def *Definition, obj Object) (map[string]any, string, error) {
	idVal, _ := obj.Attr(def.IDField)
	ro := map[string]any{
		"type": def.Type,
		"id":   toString(idVal),
	}

	self := ""
	if def.SelfURL != "" {
		resolved, err := ResolveTemplate(def.SelfURL, obj)
		if err != nil {
			return nil, "", err
		}
		self = resolved
		ro["links"] = map[string]any{"self": self}
	}

	attrs := map[string]any{}
	for i := range def.Attributes {
		a := &def.Attributes[i]
		if !s.fieldVisible(def.Type, a.Name) {
			continue
		}
		if v, ok := obj.Attr(a.StorageName); ok {
			attrs[a.Name] = v
		}
	}
	ro["attributes"] = attrs

	rels := map[string]any{}
	for i := range def.Relationships {
		rel := &def.Relationships[i]
		if !s.fieldVisible(def.Type, rel.Name) {
			continue
		}
		entry := map[string]any{}
		links := map[string]any{}
		if self != "" {
			links["self"] = self + "/relationships/" + rel.Name
		}
		if rel.RelatedURL != "" {
			// Related links depend on attributes of the (possibly
			// unmaterialized) related object; an unresolvable
			// placeholder omits the link instead of failing the dump.
			if related, err := ResolveTemplate(rel.RelatedURL, obj); err == nil {
				links["related"] = related
			}
		}
		if len(links) > 0 {
			entry["links"] = links
		}
		if raw, ok := obj.Attr(rel.StorageField); ok {
			entry["data"] = s.linkage(rel, raw)
		}
		rels[rel.Name] = entry
	}
	if len(rels) > 0 {
		ro["relationships"] = rels
	}

	return ro, self, nil
}

// linkage renders the minimal {type, id} reference form of a relationship
// value.
func (s *Instance) linkage(rel *Relationship, raw any) any {
	if rel.Many {
		items := make([]any, 0)
		for _, o := range coerceObjects(raw) {
			items = append(items, linkageRef(rel, o))
		}
		return items
	}
	objs := coerceObjects(raw)
	if len(objs) == 0 {
		return nil
	}
	return linkageRef(rel, objs[0])
}

func linkageRef(rel *Relationship, o Object) map[string]any {
	id, ok := o.Attr(rel.IDField)
	if !ok {
		id, _ = o.Attr("id")
	}
	return map[string]any{"type": rel.Type, "id": toString(id)}
}

// collectIncluded walks every include path from the root objects and dumps
// each reached resource once, deduplicated by (type, id).
func (s *Instance) collectIncluded(roots []Object) ([]any, error) {
	seen := make(map[string]struct{})
	var included []any

	for _, path := range s.include {
		cur := roots
		curDef := s.def
		for _, seg := range strings.Split(path, ".") {
			rel, ok := curDef.Relationship(seg)
			if !ok {
				return nil, apierr.BadRequest("",
					fmt.Sprintf("%s has no relationship %q to include", curDef.Type, seg))
			}
			relDef, ok := curDef.lookup(rel.Type)
			if !ok {
				return nil, apierr.BadRequest("",
					fmt.Sprintf("no schema registered for included type %q", rel.Type))
			}

			var next []Object
			for _, obj := range cur {
				raw, ok := obj.Attr(rel.StorageField)
				if !ok || raw == nil {
					continue
				}
				for _, related := range coerceObjects(raw) {
					next = append(next, related)
					idVal, _ := related.Attr(relDef.IDField)
					key := relDef.Type + ":" + toString(idVal)
					if _, dup := seen[key]; dup {
						continue
					}
					seen[key] = struct{}{}
					ro, _, err := s.resourceObject(relDef, related)
					if err != nil {
						return nil, err
					}
					included = append(included, ro)
				}
			}
			cur = next
			curDef = relDef
		}
	}

	return included, nil
}

// coerceObject converts storage/dump currency values into an Object.
func coerceObject(v any) (Object, bool) {
	switch t := v.(type) {
	case Object:
		return t, true
	case map[string]any:
		return Object(t), true
	default:
		return nil, false
	}
}

// coerceObjects flattens single objects and the slice shapes storage
// layers produce into []Object.
func coerceObjects(v any) []Object {
	switch t := v.(type) {
	case nil:
		return nil
	case []Object:
		return t
	case []any:
		out := make([]Object, 0, len(t))
		for _, item := range t {
			if obj, ok := coerceObject(item); ok {
				out = append(out, obj)
			}
		}
		return out
	default:
		if obj, ok := coerceObject(v); ok {
			return []Object{obj}
		}
		return nil
	}
}
