package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/strata-api/strata/internal/query"
	"github.com/strata-api/strata/internal/schema"
	"github.com/strata-api/strata/internal/storage"
)

// CountAndFetch implements storage.Layer. The count runs against the same
// predicate as the fetch, without the pagination window.
func (l *Layer) CountAndFetch(ctx context.Context, q *query.Descriptor, rc storage.RouteContext) (int, []schema.Object, error) {
	where, args, err := l.whereClause(q.Filters, 1)
	if err != nil {
		return 0, nil, err
	}
	where = l.withSoftDeleteExclusion(where)

	order, err := l.orderClause(q.Sorts)
	if err != nil {
		return 0, nil, err
	}

	countSQL := joinSQL("SELECT COUNT(*) FROM "+l.cfg.Table, whereSQL(where))
	var count int
	if err := l.db.QueryRow(ctx, countSQL, args...).Scan(&count); err != nil {
		return 0, nil, mapError(err)
	}

	fetchSQL := joinSQL(
		"SELECT "+strings.Join(l.cfg.Columns, ", ")+" FROM "+l.cfg.Table,
		whereSQL(where), order, pageClause(q.Page))
	rows, err := l.db.Query(ctx, fetchSQL, args...)
	if err != nil {
		return 0, nil, mapError(err)
	}
	objs, err := scanObjects(rows)
	if err != nil {
		return 0, nil, mapError(err)
	}

	if err := l.hydrate(ctx, objs); err != nil {
		return 0, nil, err
	}
	return count, objs, nil
}

// FetchOne implements storage.Layer.
func (l *Layer) FetchOne(ctx context.Context, rc storage.RouteContext, includeSoftDeleted bool) (schema.Object, error) {
	where := l.cfg.IDColumn + " = $1"
	if !includeSoftDeleted && l.cfg.SoftDeleteColumn != "" {
		where += " AND " + l.cfg.SoftDeleteColumn + " IS NULL"
	}

	sql := "SELECT " + strings.Join(l.cfg.Columns, ", ") + " FROM " + l.cfg.Table + " WHERE " + where
	rows, err := l.db.Query(ctx, sql, rc[l.cfg.URLParam])
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

	if err := l.hydrate(ctx, objs[:1]); err != nil {
		return nil, err
	}
	return objs[0], nil
}

func (l *Layer) withSoftDeleteExclusion(where string) string {
	if l.cfg.SoftDeleteColumn == "" {
		return where
	}
	exclusion := l.cfg.SoftDeleteColumn + " IS NULL"
	if where == "" {
		return exclusion
	}
	return where + " AND " + exclusion
}

func whereSQL(where string) string {
	if where == "" {
		return ""
	}
	return "WHERE " + where
}

// hydrate attaches related rows to the objects so relationship linkage and
// include side-loading serialize without further queries. Related rows are
// fetched in one batch per relationship.
func (l *Layer) hydrate(ctx context.Context, objs []schema.Object) error {
	if len(objs) == 0 {
		return nil
	}
	for field, rel := range l.cfg.Relationships {
		if rel.Many {
			if err := l.hydrateToMany(ctx, objs, field, rel); err != nil {
				return err
			}
			continue
		}
		if err := l.hydrateToOne(ctx, objs, field, rel); err != nil {
			return err
		}
	}
	return nil
}

func (l *Layer) hydrateToMany(ctx context.Context, objs []schema.Object, field string, rel RelConfig) error {
	ids := make([]string, 0, len(objs))
	for _, obj := range objs {
		ids = append(ids, fmt.Sprintf("%v", obj[l.cfg.IDColumn]))
	}

	cols := append(append([]string(nil), rel.Columns...), rel.ChildColumn)
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ANY($1) ORDER BY %s",
		strings.Join(cols, ", "), rel.Table, rel.ChildColumn, rel.IDColumn)
	rows, err := l.db.Query(ctx, sql, ids)
	if err != nil {
		return mapError(err)
	}
	children, err := scanObjects(rows)
	if err != nil {
		return mapError(err)
	}

	byOwner := make(map[string][]schema.Object)
	for _, child := range children {
		owner := fmt.Sprintf("%v", child[rel.ChildColumn])
		byOwner[owner] = append(byOwner[owner], child)
	}
	for _, obj := range objs {
		id := fmt.Sprintf("%v", obj[l.cfg.IDColumn])
		related := byOwner[id]
		if related == nil {
			related = []schema.Object{}
		}
		obj[field] = related
	}
	return nil
}

func (l *Layer) hydrateToOne(ctx context.Context, objs []schema.Object, field string, rel RelConfig) error {
	ids := make([]string, 0, len(objs))
	for _, obj := range objs {
		if v, ok := obj[rel.OwnerColumn]; ok && v != nil {
			ids = append(ids, fmt.Sprintf("%v", v))
		}
	}
	if len(ids) == 0 {
		for _, obj := range objs {
			obj[field] = nil
		}
		return nil
	}

	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ANY($1)",
		strings.Join(rel.Columns, ", "), rel.Table, rel.IDColumn)
	rows, err := l.db.Query(ctx, sql, ids)
	if err != nil {
		return mapError(err)
	}
	children, err := scanObjects(rows)
	if err != nil {
		return mapError(err)
	}

	byID := make(map[string]schema.Object, len(children))
	for _, child := range children {
		byID[fmt.Sprintf("%v", child[rel.IDColumn])] = child
	}
	for _, obj := range objs {
		v, ok := obj[rel.OwnerColumn]
		if !ok || v == nil {
			obj[field] = nil
			continue
		}
		if child, found := byID[fmt.Sprintf("%v", v)]; found {
			obj[field] = child
		} else {
			obj[field] = nil
		}
	}
	return nil
}

// scanObjects drains generic rows into column-keyed objects.
func scanObjects(rows pgx.Rows) ([]schema.Object, error) {
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []schema.Object
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		obj := make(schema.Object, len(fields))
		for i, fd := range fields {
			obj[fd.Name] = values[i]
		}
		out = append(out, obj)
	}
	return out, rows.Err()
}
