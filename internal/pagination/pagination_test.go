package pagination

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-api/strata/internal/query"
)

func parseQuery(t *testing.T, raw string) *query.Descriptor {
	t.Helper()
	vals, err := url.ParseQuery(raw)
	require.NoError(t, err)
	d, err := query.Parse(vals, 0)
	require.NoError(t, err)
	return d
}

func TestLinksMiddlePage(t *testing.T) {
	t.Parallel()

	q := parseQuery(t, "page%5Bnumber%5D=2&page%5Bsize%5D=10")
	links := Links(25, q, "/articles")

	assert.Equal(t, "/articles?page%5Bnumber%5D=1&page%5Bsize%5D=10", links["first"])
	assert.Equal(t, "/articles?page%5Bnumber%5D=3&page%5Bsize%5D=10", links["last"])
	assert.Equal(t, "/articles?page%5Bnumber%5D=1&page%5Bsize%5D=10", links["prev"])
	assert.Equal(t, "/articles?page%5Bnumber%5D=3&page%5Bsize%5D=10", links["next"])
}

func TestLinksLastPageBoundary(t *testing.T) {
	t.Parallel()

	// count=25 size=10 page=3: last page is 3, next is null, prev present.
	q := parseQuery(t, "page%5Bnumber%5D=3&page%5Bsize%5D=10")
	links := Links(25, q, "/articles")

	assert.Equal(t, "/articles?page%5Bnumber%5D=3&page%5Bsize%5D=10", links["last"])
	assert.Nil(t, links["next"])
	assert.Equal(t, "/articles?page%5Bnumber%5D=2&page%5Bsize%5D=10", links["prev"])
}

func TestLinksFirstPageBoundary(t *testing.T) {
	t.Parallel()

	q := parseQuery(t, "page%5Bnumber%5D=1&page%5Bsize%5D=5")
	links := Links(12, q, "/articles")

	assert.Nil(t, links["prev"])
	assert.Equal(t, "/articles?page%5Bnumber%5D=2&page%5Bsize%5D=5", links["next"])
	assert.Equal(t, "/articles?page%5Bnumber%5D=3&page%5Bsize%5D=5", links["last"])
}

func TestLinksSizeCoversCount(t *testing.T) {
	t.Parallel()

	q := parseQuery(t, "page%5Bsize%5D=50")
	links := Links(12, q, "/articles")

	assert.Equal(t, links["first"], links["last"], "size >= count means last equals first")
	assert.Nil(t, links["next"])
	assert.Nil(t, links["prev"])
}

func TestLinksEmptyCollection(t *testing.T) {
	t.Parallel()

	q := parseQuery(t, "page%5Bsize%5D=10")
	links := Links(0, q, "/articles")

	assert.Equal(t, links["first"], links["last"])
	assert.Nil(t, links["next"])
	assert.Nil(t, links["prev"])
}

func TestLinksPreserveForeignQueryParams(t *testing.T) {
	t.Parallel()

	q := parseQuery(t, "sort=-created&page%5Bsize%5D=10&page%5Bnumber%5D=2")
	links := Links(30, q, "/articles")

	next, ok := links["next"].(string)
	require.True(t, ok)
	parsed, err := url.Parse(next)
	require.NoError(t, err)

	vals := parsed.Query()
	assert.Equal(t, "-created", vals.Get("sort"), "links must re-encode the full query string")
	assert.Equal(t, "3", vals.Get("page[number]"))
	assert.Equal(t, "10", vals.Get("page[size]"))
}

func TestLinksPaginationDisabled(t *testing.T) {
	t.Parallel()

	q := parseQuery(t, "page%5Bsize%5D=0")
	links := Links(100, q, "/articles")

	assert.Contains(t, links, "self")
	assert.NotContains(t, links, "first")
	assert.NotContains(t, links, "next")
}

func TestSelfLinkWithoutQuery(t *testing.T) {
	t.Parallel()

	q := parseQuery(t, "")
	links := Links(3, q, "/articles")
	assert.Equal(t, "/articles", links["self"])
}
