package resource

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-api/strata/internal/config"
)

func TestItemGet(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})

	rec := env.do(t, http.MethodGet, "/articles/1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	doc := decodeDoc(t, rec)
	data := dataObject(t, doc)
	assert.Equal(t, "articles", data["type"])
	assert.Equal(t, "1", data["id"])

	attrs := data["attributes"].(map[string]any)
	assert.Equal(t, "First", attrs["title"])

	links := doc["links"].(map[string]any)
	assert.Equal(t, "/articles/1", links["self"])
}

func TestItemGetMissing(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})

	rec := env.do(t, http.MethodGet, "/articles/99", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Object not found", firstError(t, rec)["detail"])
}

func TestItemGetWithInclude(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})

	rec := env.do(t, http.MethodGet, "/articles/1?include=comments", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	doc := decodeDoc(t, rec)
	included, ok := doc["included"].([]any)
	require.True(t, ok, "expected an included key")
	assert.Len(t, included, 2)
}

func TestItemGetUnknownInclude(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})

	rec := env.do(t, http.MethodGet, "/articles/1?include=nonsense", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestItemGetSparseFieldset(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})

	rec := env.do(t, http.MethodGet, "/articles/1?fields[articles]=title", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	doc := decodeDoc(t, rec)
	attrs := dataObject(t, doc)["attributes"].(map[string]any)
	assert.Contains(t, attrs, "title")
	assert.NotContains(t, attrs, "views")
}

func TestItemUpdate(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})

	body := `{"data":{"type":"articles","id":"1","attributes":{"title":"Changed"}}}`
	rec := env.do(t, http.MethodPatch, "/articles/1", body, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	attrs := dataObject(t, decodeDoc(t, rec))["attributes"].(map[string]any)
	assert.Equal(t, "Changed", attrs["title"])

	obj, ok := env.articles.Get("1")
	require.True(t, ok)
	assert.Equal(t, "Changed", obj["title"])
}

func TestItemUpdateMissingID(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})

	body := `{"data":{"type":"articles","attributes":{"title":"Changed"}}}`
	rec := env.do(t, http.MethodPatch, "/articles/1", body, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	entry := firstError(t, rec)
	assert.Equal(t, `Missing id in "data" node`, entry["detail"])
	assert.Equal(t, "/data/id", pointerOf(entry))

	obj, _ := env.articles.Get("1")
	assert.Equal(t, "First", obj["title"])
}

func TestItemUpdateIDMismatch(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})

	body := `{"data":{"type":"articles","id":"2","attributes":{"title":"Hijack"}}}`
	rec := env.do(t, http.MethodPatch, "/articles/1", body, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	entry := firstError(t, rec)
	assert.Equal(t, "Value of id does not match the resource identifier in url", entry["detail"])
	assert.Equal(t, "/data/id", pointerOf(entry))

	obj, _ := env.articles.Get("1")
	assert.Equal(t, "First", obj["title"])
}

func TestItemUpdateReadOnlyAttributeIgnored(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})

	body := `{"data":{"type":"articles","id":"1","attributes":{"title":"Kept","deleted_at":"2024-01-01T00:00:00Z"}}}`
	rec := env.do(t, http.MethodPatch, "/articles/1", body, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	obj, _ := env.articles.Get("1")
	assert.Equal(t, "Kept", obj["title"])
	assert.Nil(t, obj["deleted_at"])
}

func TestItemSoftDelete(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{SoftDelete: true})

	rec := env.do(t, http.MethodDelete, "/articles/1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	meta := decodeDoc(t, rec)["meta"].(map[string]any)
	assert.Equal(t, "Object successfully deleted", meta["message"])

	// The object stays in storage with its deletion timestamp set.
	assert.Equal(t, 2, env.articles.Len())
	obj, ok := env.articles.Get("1")
	require.True(t, ok)
	assert.NotNil(t, obj["deleted_at"])

	rec = env.do(t, http.MethodGet, "/articles/1", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/articles/1?get_trashed=true", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestItemPermanentDelete(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{SoftDelete: true})

	rec := env.do(t, http.MethodDelete, "/articles/1?permanent=true", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 1, env.articles.Len())
	_, ok := env.articles.Get("1")
	assert.False(t, ok)
}

func TestItemPermanentDeleteOfTrashedObject(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{SoftDelete: true})

	rec := env.do(t, http.MethodDelete, "/articles/1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodDelete, "/articles/1?permanent=true", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	_, ok := env.articles.Get("1")
	assert.False(t, ok)
}

func TestItemDeleteIsPhysicalWhenSoftDeleteDisabled(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{SoftDelete: false})

	rec := env.do(t, http.MethodDelete, "/articles/1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 1, env.articles.Len())
}

func TestItemDeleteIsPhysicalWithoutDeletedAtAttribute(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{SoftDelete: true})

	// The comments schema declares no deleted_at attribute.
	rec := env.do(t, http.MethodDelete, "/comments/3", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	_, ok := env.comments.Get("3")
	assert.False(t, ok)
}

func TestItemFlagsRequireLiteralTrue(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{SoftDelete: true})

	env.do(t, http.MethodDelete, "/articles/1", "", nil)

	// Any value other than the literal string "true" leaves the flag off.
	rec := env.do(t, http.MethodGet, "/articles/1?get_trashed=1", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = env.do(t, http.MethodGet, "/articles/1?get_trashed=True", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
