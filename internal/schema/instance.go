package schema

import (
	"fmt"
	"strings"

	"github.com/strata-api/strata/internal/apierr"
	"github.com/strata-api/strata/internal/query"
)

// Options configure a schema instance for one request.
type Options struct {
	// Many serializes a collection instead of a single object.
	Many bool
	// Partial skips required-field enforcement on load (updates).
	Partial bool
}

// Instance is a schema configured for one request: options, sparse
// fieldsets and include paths applied. Instances are cheap per-request
// values over the shared read-only Definition.
type Instance struct {
	def     *Definition
	opts    Options
	q       *query.Descriptor
	include []string
}

// Configure builds a request-scoped instance of the definition. Include
// paths are validated against the relationship graph; an unknown segment
// is a BadRequest domain error.
func (d *Definition) Configure(opts Options, q *query.Descriptor, include []string) (*Instance, error) {
	for _, path := range include {
		cur := d
		for _, seg := range strings.Split(path, ".") {
			rel, ok := cur.Relationship(seg)
			if !ok {
				return nil, apierr.BadRequest("",
					fmt.Sprintf("%s has no relationship %q to include", cur.Type, seg))
			}
			next, ok := d.lookup(rel.Type)
			if !ok {
				return nil, apierr.BadRequest("",
					fmt.Sprintf("no schema registered for included type %q", rel.Type))
			}
			cur = next
		}
	}

	return &Instance{def: d, opts: opts, q: q, include: include}, nil
}

func (d *Definition) lookup(typeName string) (*Definition, bool) {
	if typeName == d.Type {
		return d, true
	}
	if d.reg == nil {
		return nil, false
	}
	return d.reg.Lookup(typeName)
}

// fieldVisible applies the request's sparse fieldset for the given type.
// Absent fieldset means every declared field is visible.
func (s *Instance) fieldVisible(typeName, field string) bool {
	if s.q == nil {
		return true
	}
	fields, ok := s.q.Fields[typeName]
	if !ok {
		return true
	}
	for _, f := range fields {
		if f == field {
			return true
		}
	}
	return false
}
