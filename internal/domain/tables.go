package domain

import (
	"github.com/strata-api/strata/internal/platform/postgres"
)

// PostgresTables declares the database mapping of the demo resources,
// matching the migrations shipped with the server.
func PostgresTables() map[string]postgres.TableConfig {
	peopleColumns := []string{"id", "name", "email"}
	commentColumns := []string{"id", "body", "author"}

	return map[string]postgres.TableConfig{
		"people": {
			Table:   "people",
			Columns: peopleColumns,
		},
		"comments": {
			Table:   "comments",
			Columns: commentColumns,
			Relationships: map[string]postgres.RelConfig{
				"author": {
					Type:        "people",
					Table:       "people",
					Columns:     peopleColumns,
					OwnerColumn: "author",
				},
			},
		},
		"articles": {
			Table:            "articles",
			Columns:          []string{"id", "title", "body", "views", "author", "deleted_at"},
			SoftDeleteColumn: "deleted_at",
			Relationships: map[string]postgres.RelConfig{
				"author": {
					Type:        "people",
					Table:       "people",
					Columns:     peopleColumns,
					OwnerColumn: "author",
				},
				"comments": {
					Type:        "comments",
					Table:       "comments",
					Columns:     commentColumns,
					ChildColumn: "article_id",
					Many:        true,
				},
			},
		},
	}
}
