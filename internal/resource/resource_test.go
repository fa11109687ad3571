package resource

import (
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/strata-api/strata/internal/config"
	"github.com/strata-api/strata/internal/schema"
	"github.com/strata-api/strata/internal/storage/memory"
)

// testEnv wires an articles/people/comments fixture onto a router the way
// the server does at startup: one schema registry, one memory store per
// type, and handlers mounted for every route kind.
type testEnv struct {
	api         *API
	articlesDef *schema.Definition
	articles    *memory.Store
	comments    *memory.Store
	people      *memory.Store
}

func newTestEnv(t *testing.T, cfg config.APIConfig) *testEnv {
	t.Helper()

	reg := schema.NewRegistry()
	people := reg.MustRegister(&schema.Definition{
		Type:       "people",
		SelfURL:    "/people/<id>",
		Attributes: []schema.Attribute{{Name: "name", Required: true}},
	})
	comments := reg.MustRegister(&schema.Definition{
		Type:       "comments",
		SelfURL:    "/comments/<id>",
		Attributes: []schema.Attribute{{Name: "body", Required: true}},
	})
	articles := reg.MustRegister(&schema.Definition{
		Type:    "articles",
		SelfURL: "/articles/<id>",
		Attributes: []schema.Attribute{
			{Name: "title", Required: true},
			{Name: "views"},
			{Name: "deleted_at", ReadOnly: true},
		},
		Relationships: []schema.Relationship{
			{Name: "author", Type: "people", RelatedURL: "/articles/<id>/author"},
			{Name: "comments", Type: "comments", Many: true, RelatedURL: "/articles/<id>/comments"},
		},
	})

	peopleStore := memory.New(memory.Options{Type: "people"})
	commentStore := memory.New(memory.Options{Type: "comments"})
	articleStore := memory.New(memory.Options{Type: "articles", SoftDeleteField: "deleted_at"}).
		Relate("author", peopleStore, false).
		Relate("comments", commentStore, true)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	api := New(cfg, log, nil)

	articleDesc := Descriptor{Schema: articles, Storage: articleStore}
	api.Collection("/articles", articleDesc, nil)
	api.Item("/articles/{id}", articleDesc, nil)
	api.Relationship("/articles/{id}/relationships/{relation}", articleDesc, nil)
	api.Collection("/people", Descriptor{Schema: people, Storage: peopleStore}, nil)
	api.Item("/people/{id}", Descriptor{Schema: people, Storage: peopleStore}, nil)
	api.Collection("/comments", Descriptor{Schema: comments, Storage: commentStore}, nil)
	api.Item("/comments/{id}", Descriptor{Schema: comments, Storage: commentStore}, nil)

	env := &testEnv{api: api, articlesDef: articles, articles: articleStore, comments: commentStore, people: peopleStore}
	env.seed()
	return env
}

// seed loads the standard fixture: two people, three comments, and two
// articles, the first of which carries an author and two comments.
func (e *testEnv) seed() {
	e.people.Seed(
		schema.Object{"id": "1", "name": "Ann"},
		schema.Object{"id": "2", "name": "Ben"},
	)
	e.comments.Seed(
		schema.Object{"id": "1", "body": "first comment"},
		schema.Object{"id": "2", "body": "second comment"},
		schema.Object{"id": "3", "body": "third comment"},
	)
	ann, _ := e.people.Get("1")
	c1, _ := e.comments.Get("1")
	c2, _ := e.comments.Get("2")
	e.articles.Seed(
		schema.Object{"id": "1", "title": "First", "views": 5, "author": ann, "comments": []schema.Object{c1, c2}},
		schema.Object{"id": "2", "title": "Second", "views": 10},
	)
}

// seedExtraArticles pads the articles store for pagination scenarios.
func (e *testEnv) seedExtraArticles(n int) {
	for i := 0; i < n; i++ {
		e.articles.Seed(schema.Object{
			"id":    fmt.Sprintf("x%02d", i),
			"title": fmt.Sprintf("Extra %d", i),
		})
	}
}

func (e *testEnv) do(t *testing.T, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.api.Router().ServeHTTP(rec, req)
	return rec
}

func decodeDoc(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc), "body: %s", rec.Body.String())
	return doc
}

// firstError decodes an error document and returns its first entry.
func firstError(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	doc := decodeDoc(t, rec)
	errs, ok := doc["errors"].([]any)
	require.True(t, ok, "expected an error document, got: %s", rec.Body.String())
	require.NotEmpty(t, errs)
	entry, ok := errs[0].(map[string]any)
	require.True(t, ok)
	return entry
}

func dataObject(t *testing.T, doc map[string]any) map[string]any {
	t.Helper()
	data, ok := doc["data"].(map[string]any)
	require.True(t, ok, "expected a single-object data node")
	return data
}

func dataList(t *testing.T, doc map[string]any) []any {
	t.Helper()
	data, ok := doc["data"].([]any)
	require.True(t, ok, "expected a collection data node")
	return data
}

func pointerOf(entry map[string]any) string {
	source, _ := entry["source"].(map[string]any)
	p, _ := source["pointer"].(string)
	return p
}
