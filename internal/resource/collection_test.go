package resource

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-api/strata/internal/config"
)

func TestCollectionList(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})

	rec := env.do(t, http.MethodGet, "/articles", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ContentType, rec.Header().Get("Content-Type"))

	doc := decodeDoc(t, rec)
	assert.Len(t, dataList(t, doc), 2)

	meta, ok := doc["meta"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 2, meta["count"])

	jsonapi, ok := doc["jsonapi"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "1.0", jsonapi["version"])

	links, ok := doc["links"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "/articles", links["self"])
}

func TestCollectionListPagination(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})
	env.seedExtraArticles(10) // 12 total

	rec := env.do(t, http.MethodGet, "/articles?page[size]=5&page[number]=1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	doc := decodeDoc(t, rec)
	assert.Len(t, dataList(t, doc), 5)

	meta := doc["meta"].(map[string]any)
	assert.EqualValues(t, 12, meta["count"])

	links := doc["links"].(map[string]any)
	assert.Equal(t, "2", pageNumberOf(t, links["next"]))
	assert.Equal(t, "3", pageNumberOf(t, links["last"]))
	assert.Equal(t, "1", pageNumberOf(t, links["first"]))
	assert.Nil(t, links["prev"])
}

func TestCollectionListLastPageLinks(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})
	env.seedExtraArticles(23) // 25 total

	rec := env.do(t, http.MethodGet, "/articles?page[size]=10&page[number]=3", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	doc := decodeDoc(t, rec)
	assert.Len(t, dataList(t, doc), 5)

	links := doc["links"].(map[string]any)
	assert.Equal(t, "3", pageNumberOf(t, links["last"]))
	assert.Equal(t, "2", pageNumberOf(t, links["prev"]))
	assert.Nil(t, links["next"])
}

func pageNumberOf(t *testing.T, link any) string {
	t.Helper()
	s, ok := link.(string)
	require.True(t, ok, "expected a link string, got %v", link)
	u, err := url.Parse(s)
	require.NoError(t, err)
	return u.Query().Get("page[number]")
}

func TestCollectionCreate(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})

	body := `{"data":{"type":"articles","attributes":{"title":"Fresh","views":1}}}`
	rec := env.do(t, http.MethodPost, "/articles", body, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	doc := decodeDoc(t, rec)
	data := dataObject(t, doc)
	attrs := data["attributes"].(map[string]any)
	assert.Equal(t, "Fresh", attrs["title"])

	links := data["links"].(map[string]any)
	assert.Equal(t, links["self"], rec.Header().Get("Location"))

	assert.Equal(t, 3, env.articles.Len())
}

func TestCollectionCreateWithRelationships(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})

	body := `{"data":{"type":"articles","attributes":{"title":"Linked"},` +
		`"relationships":{"comments":{"data":[{"type":"comments","id":"3"}]}}}}`
	rec := env.do(t, http.MethodPost, "/articles", body, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	doc := decodeDoc(t, rec)
	data := dataObject(t, doc)
	rels := data["relationships"].(map[string]any)
	comments := rels["comments"].(map[string]any)
	linkage := comments["data"].([]any)
	require.Len(t, linkage, 1)
	first := linkage[0].(map[string]any)
	assert.Equal(t, "comments", first["type"])
	assert.Equal(t, "3", first["id"])
}

func TestCollectionCreateMissingRequiredField(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})

	body := `{"data":{"type":"articles","attributes":{"views":2}}}`
	rec := env.do(t, http.MethodPost, "/articles", body, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	entry := firstError(t, rec)
	assert.Equal(t, "422", entry["status"])
	assert.Equal(t, "Missing data for required field.", entry["detail"])
	assert.Equal(t, "/data/attributes/title", pointerOf(entry))
	assert.Equal(t, 2, env.articles.Len())
}

func TestCollectionCreateWrongType(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})

	body := `{"data":{"type":"people","attributes":{"title":"Nope"}}}`
	rec := env.do(t, http.MethodPost, "/articles", body, nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	entry := firstError(t, rec)
	assert.Equal(t, `Invalid type. Expected "articles".`, entry["detail"])
	assert.Equal(t, "/data/type", pointerOf(entry))
}

func TestCollectionCreateMissingDataNode(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})

	rec := env.do(t, http.MethodPost, "/articles", `{"meta":{}}`, nil)
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
}

func TestCollectionCreateInvalidJSON(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})

	rec := env.do(t, http.MethodPost, "/articles", `{not json`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Request body is not valid JSON", firstError(t, rec)["detail"])
}

func TestCollectionMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})

	rec := env.do(t, http.MethodDelete, "/articles", "", nil)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "405", firstError(t, rec)["status"])
}

func TestCollectionHeadFallsBackToGet(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})

	rec := env.do(t, http.MethodHead, "/articles", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ContentType, rec.Header().Get("Content-Type"))
}
