// Package domain declares the demo resource set served out of the box:
// articles with an author and comments. The definitions double as the
// reference wiring for schema, storage and route registration.
package domain

import (
	"github.com/strata-api/strata/internal/schema"
)

// RegisterSchemas populates the registry with the demo resource
// definitions and returns them keyed by wire type.
func RegisterSchemas(reg *schema.Registry) map[string]*schema.Definition {
	people := reg.MustRegister(&schema.Definition{
		Type:    "people",
		SelfURL: "/people/<id>",
		Attributes: []schema.Attribute{
			{Name: "name", Required: true, Validate: "min=1"},
			{Name: "email", Validate: "omitempty,email"},
		},
	})

	comments := reg.MustRegister(&schema.Definition{
		Type:    "comments",
		SelfURL: "/comments/<id>",
		Attributes: []schema.Attribute{
			{Name: "body", Required: true},
		},
		Relationships: []schema.Relationship{
			{Name: "author", Type: "people", StorageField: "author", RelatedURL: "/comments/<id>/author"},
		},
	})

	articles := reg.MustRegister(&schema.Definition{
		Type:    "articles",
		SelfURL: "/articles/<id>",
		Attributes: []schema.Attribute{
			{Name: "title", Required: true, Validate: "min=1"},
			{Name: "body"},
			{Name: "views"},
			{Name: "deleted_at", ReadOnly: true},
		},
		Relationships: []schema.Relationship{
			{Name: "author", Type: "people", StorageField: "author", RelatedURL: "/articles/<id>/author"},
			{Name: "comments", Type: "comments", Many: true, StorageField: "comments", RelatedURL: "/articles/<id>/comments"},
		},
	})

	return map[string]*schema.Definition{
		"people":   people,
		"comments": comments,
		"articles": articles,
	}
}
