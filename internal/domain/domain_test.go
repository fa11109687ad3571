package domain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-api/strata/internal/query"
	"github.com/strata-api/strata/internal/schema"
	"github.com/strata-api/strata/internal/storage"
)

func TestRegisterSchemas(t *testing.T) {
	reg := schema.NewRegistry()
	defs := RegisterSchemas(reg)

	require.Len(t, defs, 3)
	articles := defs["articles"]
	require.NotNil(t, articles)
	assert.True(t, articles.HasAttribute("deleted_at"))

	rel, ok := articles.Relationship("comments")
	require.True(t, ok)
	assert.True(t, rel.Many)
	assert.Equal(t, "comments", rel.Type)

	// Every relationship target must itself be registered for include
	// expansion to work.
	for _, def := range defs {
		for _, rel := range def.Relationships {
			_, found := reg.Lookup(rel.Type)
			assert.True(t, found, "unregistered relationship type %s", rel.Type)
		}
	}
}

func TestSeedDemo(t *testing.T) {
	stores := NewMemoryStores()
	stores.SeedDemo()

	assert.Equal(t, 2, stores.Articles.Len())
	assert.Equal(t, 2, stores.People.Len())
	assert.Equal(t, 2, stores.Comments.Len())

	q, err := query.Parse(nil, 0)
	require.NoError(t, err)
	count, objs, err := stores.Articles.CountAndFetch(context.Background(), q, storage.RouteContext{})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	require.Len(t, objs, 2)

	// The first article carries its seeded relationships by reference.
	owner, linkage, err := stores.Articles.ReadRelationship(context.Background(), "comments", "id", storage.RouteContext{"id": "1"})
	require.NoError(t, err)
	assert.Equal(t, "Notes on the Analytical Engine", owner["title"])
	assert.Len(t, linkage, 2)
}
