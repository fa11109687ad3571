// Package schema provides the (de)serialization capability of the resource
// layer: declarative resource definitions, payload loading with batched
// validation errors, and document dumping with sparse fieldsets and
// include expansion.
package schema

import (
	"fmt"
	"strings"
)

// Accessor is the attribute-access capability the resource layer requires
// from domain objects. Placeholder resolution and document dumping operate
// on this interface only, never on concrete types.
type Accessor interface {
	// Attr returns the named attribute and whether it exists.
	Attr(name string) (any, bool)
}

// Object is the canonical Accessor implementation: a flat map of storage
// field names to values. Relationship fields hold nested Objects (to-one)
// or []Object (to-many).
type Object map[string]any

// Attr implements Accessor.
func (o Object) Attr(name string) (any, bool) {
	v, ok := o[name]
	return v, ok
}

// Copy returns a shallow copy of the object.
func (o Object) Copy() Object {
	out := make(Object, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// ResolvePath walks a dotted attribute path against an accessor chain.
// Intermediate values must themselves be accessors (or plain maps).
func ResolvePath(v any, path string) (any, bool) {
	cur := v
	for _, seg := range strings.Split(path, ".") {
		acc, ok := asAccessor(cur)
		if !ok {
			return nil, false
		}
		cur, ok = acc.Attr(seg)
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func asAccessor(v any) (Accessor, bool) {
	switch t := v.(type) {
	case Accessor:
		return t, true
	case map[string]any:
		return Object(t), true
	default:
		return nil, false
	}
}

// ResolveTemplate substitutes <field> placeholders in a URL template with
// attribute values from the given object. Placeholders may traverse dotted
// paths, e.g. "/people/<author.id>".
func ResolveTemplate(tpl string, obj Accessor) (string, error) {
	var b strings.Builder
	rest := tpl
	for {
		start := strings.IndexByte(rest, '<')
		if start < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		end := strings.IndexByte(rest[start:], '>')
		if end < 0 {
			return "", fmt.Errorf("unterminated placeholder in url template %q", tpl)
		}
		b.WriteString(rest[:start])
		path := rest[start+1 : start+end]
		v, ok := ResolvePath(obj, path)
		if !ok {
			return "", fmt.Errorf("url template %q: cannot resolve placeholder <%s>", tpl, path)
		}
		fmt.Fprintf(&b, "%v", v)
		rest = rest[start+end+1:]
	}
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	// JSON numbers decode as float64; render integral values without the
	// trailing ".0" so identifiers round-trip cleanly.
	if f, ok := v.(float64); ok && f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%v", v)
}
