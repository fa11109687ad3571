package memory

import (
	"context"

	"github.com/strata-api/strata/internal/schema"
	"github.com/strata-api/strata/internal/storage"
)

// ReadRelationship implements storage.RelationshipLayer.
func (s *Store) ReadRelationship(ctx context.Context, field, idField string, rc storage.RouteContext) (schema.Object, any, error) {
	owner, err := s.FetchOne(ctx, rc, false)
	if err != nil {
		return nil, nil, err
	}
	rel, ok := s.relations[field]
	if !ok {
		return nil, nil, storage.ErrUnknownRelationship
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	raw := owner[field]
	if rel.many {
		linkage := make([]any, 0)
		for _, obj := range asObjects(raw) {
			linkage = append(linkage, rel.linkageRef(obj, idField))
		}
		return owner, linkage, nil
	}

	objs := asObjects(raw)
	if len(objs) == 0 {
		return owner, nil, nil
	}
	return owner, rel.linkageRef(objs[0], idField), nil
}

// CreateRelationship implements storage.RelationshipLayer by adding the
// payload members. Members already present leave the relationship
// untouched and are reported as a no-op.
func (s *Store) CreateRelationship(ctx context.Context, payload storage.RelationshipPayload, field, idField string, rc storage.RouteContext) (schema.Object, bool, error) {
	owner, rel, err := s.relationshipOwner(ctx, field, rc)
	if err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !rel.many {
		return s.setToOne(owner, rel, field, idField, payload)
	}

	existing := asObjects(owner[field])
	changed := false
	for _, item := range payload.Items {
		obj, err := rel.member(s, idField, item.ID)
		if err != nil {
			return nil, false, err
		}
		if !containsObject(existing, idField, item.ID) {
			existing = append(existing, obj)
			changed = true
		}
	}
	owner[field] = existing
	return owner, changed, nil
}

// UpdateRelationship implements storage.RelationshipLayer by replacing the
// relationship with the payload members.
func (s *Store) UpdateRelationship(ctx context.Context, payload storage.RelationshipPayload, field, idField string, rc storage.RouteContext) (schema.Object, bool, error) {
	owner, rel, err := s.relationshipOwner(ctx, field, rc)
	if err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !rel.many {
		return s.setToOne(owner, rel, field, idField, payload)
	}

	replacement := make([]schema.Object, 0, len(payload.Items))
	for _, item := range payload.Items {
		obj, err := rel.member(s, idField, item.ID)
		if err != nil {
			return nil, false, err
		}
		replacement = append(replacement, obj)
	}

	changed := !sameMembers(asObjects(owner[field]), replacement, idField)
	owner[field] = replacement
	return owner, changed, nil
}

// DeleteRelationship implements storage.RelationshipLayer by removing the
// payload members. Removing an absent member is a no-op.
func (s *Store) DeleteRelationship(ctx context.Context, payload storage.RelationshipPayload, field, idField string, rc storage.RouteContext) (schema.Object, bool, error) {
	owner, rel, err := s.relationshipOwner(ctx, field, rc)
	if err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !rel.many {
		current := asObjects(owner[field])
		if len(current) == 0 {
			return owner, false, nil
		}
		for _, item := range payload.Items {
			if toString(current[0][idField]) == item.ID {
				owner[field] = nil
				return owner, true, nil
			}
		}
		return owner, false, nil
	}

	existing := asObjects(owner[field])
	kept := make([]schema.Object, 0, len(existing))
	changed := false
	for _, obj := range existing {
		if payloadContains(payload, toString(obj[idField])) {
			changed = true
			continue
		}
		kept = append(kept, obj)
	}
	owner[field] = kept
	return owner, changed, nil
}

func (s *Store) relationshipOwner(ctx context.Context, field string, rc storage.RouteContext) (schema.Object, relation, error) {
	owner, err := s.FetchOne(ctx, rc, false)
	if err != nil {
		return nil, relation{}, err
	}
	rel, ok := s.relations[field]
	if !ok {
		return nil, relation{}, storage.ErrUnknownRelationship
	}
	return owner, rel, nil
}

func (s *Store) setToOne(owner schema.Object, rel relation, field, idField string, payload storage.RelationshipPayload) (schema.Object, bool, error) {
	current := asObjects(owner[field])

	if len(payload.Items) == 0 {
		if len(current) == 0 {
			return owner, false, nil
		}
		owner[field] = nil
		return owner, true, nil
	}

	target, err := rel.member(s, idField, payload.Items[0].ID)
	if err != nil {
		return nil, false, err
	}
	if len(current) > 0 && toString(current[0][idField]) == payload.Items[0].ID {
		return owner, false, nil
	}
	owner[field] = target
	return owner, true, nil
}

func (r relation) linkageRef(obj schema.Object, idField string) map[string]any {
	id, ok := obj[idField]
	if !ok {
		id = obj[r.store.opts.IDField]
	}
	return map[string]any{"type": r.store.opts.Type, "id": toString(id)}
}

func asObjects(raw any) []schema.Object {
	switch v := raw.(type) {
	case nil:
		return nil
	case []schema.Object:
		return v
	case schema.Object:
		return []schema.Object{v}
	case map[string]any:
		return []schema.Object{schema.Object(v)}
	default:
		return nil
	}
}

func containsObject(objs []schema.Object, idField, id string) bool {
	for _, obj := range objs {
		if toString(obj[idField]) == id {
			return true
		}
	}
	return false
}

func sameMembers(a, b []schema.Object, idField string) bool {
	if len(a) != len(b) {
		return false
	}
	for _, obj := range a {
		if !containsObject(b, idField, toString(obj[idField])) {
			return false
		}
	}
	return true
}

func payloadContains(payload storage.RelationshipPayload, id string) bool {
	for _, item := range payload.Items {
		if item.ID == id {
			return true
		}
	}
	return false
}
