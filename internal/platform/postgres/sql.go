package postgres

import (
	"fmt"
	"strings"

	"github.com/strata-api/strata/internal/query"
	"github.com/strata-api/strata/internal/storage"
)

// filterOps maps descriptor operators onto SQL comparison syntax. The "in"
// operator is handled separately because it binds a slice.
var filterOps = map[string]string{
	"eq":   "=",
	"ne":   "<>",
	"gt":   ">",
	"ge":   ">=",
	"lt":   "<",
	"le":   "<=",
	"like": "LIKE",
}

// whereClause renders the descriptor's filters as a parameterized WHERE
// body. Column names are validated against the configuration, never
// interpolated from client input.
func (l *Layer) whereClause(filters []query.Filter, firstArg int) (string, []any, error) {
	var clauses []string
	var args []any
	arg := firstArg

	for _, f := range filters {
		if !l.hasColumn(f.Name) {
			return "", nil, fmt.Errorf("%w: %s", storage.ErrUnknownField, f.Name)
		}
		if f.Op == "in" {
			clauses = append(clauses, fmt.Sprintf("%s = ANY($%d)", f.Name, arg))
			args = append(args, anySlice(f.Value))
			arg++
			continue
		}
		op, ok := filterOps[f.Op]
		if !ok {
			return "", nil, fmt.Errorf("%w: unsupported filter operator %q", storage.ErrUnknownField, f.Op)
		}
		clauses = append(clauses, fmt.Sprintf("%s %s $%d", f.Name, op, arg))
		args = append(args, f.Value)
		arg++
	}

	return strings.Join(clauses, " AND "), args, nil
}

// orderClause renders the descriptor's sort keys, validated against the
// configured columns.
func (l *Layer) orderClause(sorts []query.Sort) (string, error) {
	if len(sorts) == 0 {
		return "", nil
	}
	keys := make([]string, 0, len(sorts))
	for _, s := range sorts {
		if !l.hasColumn(s.Field) {
			return "", fmt.Errorf("%w: %s", storage.ErrUnknownField, s.Field)
		}
		key := s.Field
		if s.Desc {
			key += " DESC"
		}
		keys = append(keys, key)
	}
	return "ORDER BY " + strings.Join(keys, ", "), nil
}

// pageClause renders the pagination window. Offset/Limit addressing wins
// over Number/Size when both are present; a size of zero disables the
// window.
func pageClause(page query.Page) string {
	offset, limit := 0, 0
	switch {
	case page.Offset > 0 || page.Limit > 0:
		offset, limit = page.Offset, page.Limit
	case page.Size > 0:
		number := page.Number
		if number < 1 {
			number = 1
		}
		offset, limit = (number-1)*page.Size, page.Size
	default:
		return ""
	}

	var b strings.Builder
	if limit > 0 {
		fmt.Fprintf(&b, "LIMIT %d", limit)
	}
	if offset > 0 {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "OFFSET %d", offset)
	}
	return b.String()
}

func joinSQL(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

// anySlice normalizes a filter value for ANY() binding.
func anySlice(v any) any {
	if items, ok := v.([]any); ok {
		out := make([]string, 0, len(items))
		for _, item := range items {
			out = append(out, fmt.Sprintf("%v", item))
		}
		return out
	}
	return []any{v}
}
