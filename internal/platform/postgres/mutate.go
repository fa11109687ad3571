package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/strata-api/strata/internal/schema"
	"github.com/strata-api/strata/internal/storage"
)

// Create implements storage.Layer. Relationship linkage in the payload is
// applied through the configured foreign key columns; to-many members are
// claimed after the row exists.
func (l *Layer) Create(ctx context.Context, data schema.Object, rc storage.RouteContext) (schema.Object, error) {
	cols := []string{l.cfg.IDColumn}
	id, ok := data[l.cfg.IDColumn].(string)
	if !ok || id == "" {
		id = uuid.NewString()
	}
	args := []any{id}

	var toMany []claimSet
	for field, v := range data {
		if field == l.cfg.IDColumn {
			continue
		}
		if rel, isRel := l.cfg.Relationships[field]; isRel {
			ids := linkageIDs(v)
			if rel.Many {
				toMany = append(toMany, claimSet{rel: rel, ids: ids})
				continue
			}
			cols = append(cols, rel.OwnerColumn)
			args = append(args, toOneValue(ids))
			continue
		}
		if !l.hasColumn(field) {
			return nil, fmt.Errorf("%w: %s", storage.ErrUnknownField, field)
		}
		cols = append(cols, field)
		args = append(args, v)
	}

	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		l.cfg.Table, strings.Join(cols, ", "), strings.Join(placeholders, ", "),
		strings.Join(l.cfg.Columns, ", "))

	rows, err := l.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err)
	}
	objs, err := scanObjects(rows)
	if err != nil {
		return nil, mapError(err)
	}
	if len(objs) == 0 {
		return nil, storage.ErrNotFound
	}
	obj := objs[0]

	for _, claim := range toMany {
		if err := l.claimChildren(ctx, claim.rel, id, claim.ids); err != nil {
			return nil, err
		}
	}

	if err := l.hydrate(ctx, []schema.Object{obj}); err != nil {
		return nil, err
	}
	return obj, nil
}

type claimSet struct {
	rel RelConfig
	ids []string
}

// Update implements storage.Layer. The passed object is refreshed in
// place so the caller serializes the mutated state.
func (l *Layer) Update(ctx context.Context, obj schema.Object, data schema.Object, rc storage.RouteContext) error {
	id := fmt.Sprintf("%v", obj[l.cfg.IDColumn])

	var sets []string
	args := []any{id}
	arg := 2

	var toMany []claimSet
	for field, v := range data {
		if field == l.cfg.IDColumn {
			continue
		}
		if rel, isRel := l.cfg.Relationships[field]; isRel {
			ids := linkageIDs(v)
			if rel.Many {
				toMany = append(toMany, claimSet{rel: rel, ids: ids})
				continue
			}
			sets = append(sets, fmt.Sprintf("%s = $%d", rel.OwnerColumn, arg))
			args = append(args, toOneValue(ids))
			arg++
			continue
		}
		if !l.hasColumn(field) {
			return fmt.Errorf("%w: %s", storage.ErrUnknownField, field)
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", field, arg))
		args = append(args, v)
		arg++
	}

	if len(sets) > 0 {
		sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $1",
			l.cfg.Table, strings.Join(sets, ", "), l.cfg.IDColumn)
		tag, err := l.db.Exec(ctx, sql, args...)
		if err != nil {
			return mapError(err)
		}
		if tag.RowsAffected() == 0 {
			return storage.ErrNotFound
		}
	}

	for _, claim := range toMany {
		if err := l.replaceChildren(ctx, claim.rel, id, claim.ids); err != nil {
			return err
		}
	}

	fresh, err := l.FetchOne(ctx, storage.RouteContext{l.cfg.URLParam: id}, true)
	if err != nil {
		return err
	}
	for k, v := range fresh {
		obj[k] = v
	}
	return nil
}

// Delete implements storage.Layer by physically removing the row.
func (l *Layer) Delete(ctx context.Context, obj schema.Object, rc storage.RouteContext) error {
	id := fmt.Sprintf("%v", obj[l.cfg.IDColumn])
	tag, err := l.db.Exec(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE %s = $1", l.cfg.Table, l.cfg.IDColumn), id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// claimChildren points the foreign key of the given child rows at the
// owner, failing when any child does not exist.
func (l *Layer) claimChildren(ctx context.Context, rel RelConfig, ownerID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	sql := fmt.Sprintf("UPDATE %s SET %s = $1 WHERE %s = ANY($2)",
		rel.Table, rel.ChildColumn, rel.IDColumn)
	tag, err := l.db.Exec(ctx, sql, ownerID, ids)
	if err != nil {
		return mapError(err)
	}
	if int(tag.RowsAffected()) != len(ids) {
		return storage.ErrRelatedNotFound
	}
	return nil
}

// replaceChildren makes the owner's child set exactly the given ids.
func (l *Layer) replaceChildren(ctx context.Context, rel RelConfig, ownerID string, ids []string) error {
	release := fmt.Sprintf("UPDATE %s SET %s = NULL WHERE %s = $1 AND NOT (%s = ANY($2))",
		rel.Table, rel.ChildColumn, rel.ChildColumn, rel.IDColumn)
	if _, err := l.db.Exec(ctx, release, ownerID, ids); err != nil {
		return mapError(err)
	}
	return l.claimChildren(ctx, rel, ownerID, ids)
}

// linkageIDs flattens a loaded relationship value into identifier strings.
func linkageIDs(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case schema.Object:
		return []string{fmt.Sprintf("%v", t["id"])}
	case map[string]any:
		return []string{fmt.Sprintf("%v", t["id"])}
	case []schema.Object:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, fmt.Sprintf("%v", item["id"]))
		}
		return out
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				out = append(out, fmt.Sprintf("%v", m["id"]))
			}
		}
		return out
	default:
		return nil
	}
}

// toOneValue renders a to-one linkage as a nullable foreign key value.
func toOneValue(ids []string) any {
	if len(ids) == 0 {
		return nil
	}
	return ids[0]
}
