package postgres

import (
	"context"
	"fmt"

	"github.com/strata-api/strata/internal/schema"
	"github.com/strata-api/strata/internal/storage"
)

// ReadRelationship implements storage.RelationshipLayer.
func (l *Layer) ReadRelationship(ctx context.Context, field, idField string, rc storage.RouteContext) (schema.Object, any, error) {
	owner, err := l.FetchOne(ctx, rc, false)
	if err != nil {
		return nil, nil, err
	}
	rel, ok := l.cfg.Relationships[field]
	if !ok {
		return nil, nil, storage.ErrUnknownRelationship
	}

	// FetchOne hydrated the relationship field with full child rows.
	if rel.Many {
		linkage := make([]any, 0)
		for _, child := range childObjects(owner[field]) {
			linkage = append(linkage, linkageFor(rel, child, idField))
		}
		return owner, linkage, nil
	}
	children := childObjects(owner[field])
	if len(children) == 0 {
		return owner, nil, nil
	}
	return owner, linkageFor(rel, children[0], idField), nil
}

// CreateRelationship implements storage.RelationshipLayer by claiming the
// payload members. Members already pointing at the owner leave the set
// unchanged.
func (l *Layer) CreateRelationship(ctx context.Context, payload storage.RelationshipPayload, field, idField string, rc storage.RouteContext) (schema.Object, bool, error) {
	owner, rel, err := l.relationshipOwner(ctx, field, rc)
	if err != nil {
		return nil, false, err
	}
	ownerID := fmt.Sprintf("%v", owner[l.cfg.IDColumn])

	if !rel.Many {
		return l.setToOne(ctx, owner, rel, field, payload)
	}

	ids, err := l.resolveMemberIDs(ctx, rel, idField, payload)
	if err != nil {
		return nil, false, err
	}
	sql := fmt.Sprintf("UPDATE %s SET %s = $1 WHERE %s = ANY($2) AND %s IS DISTINCT FROM $1",
		rel.Table, rel.ChildColumn, rel.IDColumn, rel.ChildColumn)
	tag, err := l.db.Exec(ctx, sql, ownerID, ids)
	if err != nil {
		return nil, false, mapError(err)
	}

	if err := l.hydrate(ctx, []schema.Object{owner}); err != nil {
		return nil, false, err
	}
	return owner, tag.RowsAffected() > 0, nil
}

// UpdateRelationship implements storage.RelationshipLayer by replacing the
// member set.
func (l *Layer) UpdateRelationship(ctx context.Context, payload storage.RelationshipPayload, field, idField string, rc storage.RouteContext) (schema.Object, bool, error) {
	owner, rel, err := l.relationshipOwner(ctx, field, rc)
	if err != nil {
		return nil, false, err
	}
	ownerID := fmt.Sprintf("%v", owner[l.cfg.IDColumn])

	if !rel.Many {
		return l.setToOne(ctx, owner, rel, field, payload)
	}

	ids, err := l.resolveMemberIDs(ctx, rel, idField, payload)
	if err != nil {
		return nil, false, err
	}

	release := fmt.Sprintf("UPDATE %s SET %s = NULL WHERE %s = $1 AND NOT (%s = ANY($2))",
		rel.Table, rel.ChildColumn, rel.ChildColumn, rel.IDColumn)
	released, err := l.db.Exec(ctx, release, ownerID, ids)
	if err != nil {
		return nil, false, mapError(err)
	}

	claim := fmt.Sprintf("UPDATE %s SET %s = $1 WHERE %s = ANY($2) AND %s IS DISTINCT FROM $1",
		rel.Table, rel.ChildColumn, rel.IDColumn, rel.ChildColumn)
	claimed, err := l.db.Exec(ctx, claim, ownerID, ids)
	if err != nil {
		return nil, false, mapError(err)
	}

	if err := l.hydrate(ctx, []schema.Object{owner}); err != nil {
		return nil, false, err
	}
	return owner, released.RowsAffected() > 0 || claimed.RowsAffected() > 0, nil
}

// DeleteRelationship implements storage.RelationshipLayer by releasing the
// payload members. Releasing an absent member is a no-op.
func (l *Layer) DeleteRelationship(ctx context.Context, payload storage.RelationshipPayload, field, idField string, rc storage.RouteContext) (schema.Object, bool, error) {
	owner, rel, err := l.relationshipOwner(ctx, field, rc)
	if err != nil {
		return nil, false, err
	}
	ownerID := fmt.Sprintf("%v", owner[l.cfg.IDColumn])

	if !rel.Many {
		current := childObjects(owner[field])
		if len(current) == 0 {
			return owner, false, nil
		}
		currentID := fmt.Sprintf("%v", current[0][relIDColumn(rel, idField)])
		for _, item := range payload.Items {
			if item.ID == currentID {
				return l.setToOne(ctx, owner, rel, field, storage.RelationshipPayload{})
			}
		}
		return owner, false, nil
	}

	ids := make([]string, 0, len(payload.Items))
	for _, item := range payload.Items {
		ids = append(ids, item.ID)
	}
	sql := fmt.Sprintf("UPDATE %s SET %s = NULL WHERE %s = $1 AND %s = ANY($2)",
		rel.Table, rel.ChildColumn, rel.ChildColumn, relIDColumn(rel, idField))
	tag, err := l.db.Exec(ctx, sql, ownerID, ids)
	if err != nil {
		return nil, false, mapError(err)
	}

	if err := l.hydrate(ctx, []schema.Object{owner}); err != nil {
		return nil, false, err
	}
	return owner, tag.RowsAffected() > 0, nil
}

func (l *Layer) relationshipOwner(ctx context.Context, field string, rc storage.RouteContext) (schema.Object, RelConfig, error) {
	owner, err := l.FetchOne(ctx, rc, false)
	if err != nil {
		return nil, RelConfig{}, err
	}
	rel, ok := l.cfg.Relationships[field]
	if !ok {
		return nil, RelConfig{}, storage.ErrUnknownRelationship
	}
	return owner, rel, nil
}

func (l *Layer) setToOne(ctx context.Context, owner schema.Object, rel RelConfig, field string, payload storage.RelationshipPayload) (schema.Object, bool, error) {
	var target any
	if len(payload.Items) > 0 {
		target = payload.Items[0].ID
	}

	current := owner[rel.OwnerColumn]
	if equalID(current, target) {
		return owner, false, nil
	}

	sql := fmt.Sprintf("UPDATE %s SET %s = $1 WHERE %s = $2",
		l.cfg.Table, rel.OwnerColumn, l.cfg.IDColumn)
	if _, err := l.db.Exec(ctx, sql, target, owner[l.cfg.IDColumn]); err != nil {
		return nil, false, mapError(err)
	}
	owner[rel.OwnerColumn] = target

	if err := l.hydrate(ctx, []schema.Object{owner}); err != nil {
		return nil, false, err
	}
	return owner, true, nil
}

// resolveMemberIDs maps payload members onto primary key values, erroring
// when a member does not exist.
func (l *Layer) resolveMemberIDs(ctx context.Context, rel RelConfig, idField string, payload storage.RelationshipPayload) ([]string, error) {
	ids := make([]string, 0, len(payload.Items))
	for _, item := range payload.Items {
		ids = append(ids, item.ID)
	}
	if len(ids) == 0 {
		return ids, nil
	}

	column := relIDColumn(rel, idField)
	var count int
	sql := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = ANY($1)", rel.Table, column)
	if err := l.db.QueryRow(ctx, sql, ids).Scan(&count); err != nil {
		return nil, mapError(err)
	}
	if count != len(ids) {
		return nil, storage.ErrRelatedNotFound
	}

	if column == rel.IDColumn {
		return ids, nil
	}

	// The payload addressed members by an alternate field; translate to
	// primary keys for the FK updates.
	sql = fmt.Sprintf("SELECT %s FROM %s WHERE %s = ANY($1)", rel.IDColumn, rel.Table, column)
	rows, err := l.db.Query(ctx, sql, ids)
	if err != nil {
		return nil, mapError(err)
	}
	objs, err := scanObjects(rows)
	if err != nil {
		return nil, mapError(err)
	}
	resolved := make([]string, 0, len(objs))
	for _, obj := range objs {
		resolved = append(resolved, fmt.Sprintf("%v", obj[rel.IDColumn]))
	}
	return resolved, nil
}

func relIDColumn(rel RelConfig, idField string) string {
	if idField == "" || idField == "id" {
		return rel.IDColumn
	}
	return idField
}

func linkageFor(rel RelConfig, child schema.Object, idField string) map[string]any {
	id := child[relIDColumn(rel, idField)]
	return map[string]any{"type": rel.Type, "id": fmt.Sprintf("%v", id)}
}

func childObjects(raw any) []schema.Object {
	switch v := raw.(type) {
	case nil:
		return nil
	case []schema.Object:
		return v
	case schema.Object:
		return []schema.Object{v}
	default:
		return nil
	}
}

func equalID(current, target any) bool {
	if current == nil && target == nil {
		return true
	}
	if current == nil || target == nil {
		return false
	}
	return fmt.Sprintf("%v", current) == fmt.Sprintf("%v", target)
}
