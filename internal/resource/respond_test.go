package resource

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strata-api/strata/internal/config"
	"github.com/strata-api/strata/internal/storage"
)

func TestETagHeaderMatchesBody(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{ETag: true})

	rec := env.do(t, http.MethodGet, "/articles/1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	sum := sha1.Sum(rec.Body.Bytes())
	assert.Equal(t, hex.EncodeToString(sum[:]), rec.Header().Get("ETag"))
}

func TestETagDisabledByDefault(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})

	rec := env.do(t, http.MethodGet, "/articles/1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("ETag"))
}

func TestIfNoneMatchNotModified(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{ETag: true})

	rec := env.do(t, http.MethodGet, "/articles/1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	rec = env.do(t, http.MethodGet, "/articles/1", "", map[string]string{"If-None-Match": etag})
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Zero(t, rec.Body.Len())

	// A stale validator still yields the full representation.
	rec = env.do(t, http.MethodGet, "/articles/1", "", map[string]string{"If-None-Match": "stale"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotZero(t, rec.Body.Len())
}

func TestIfMatchMismatchOnGet(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{ETag: true})

	rec := env.do(t, http.MethodGet, "/articles/1", "", map[string]string{"If-Match": "stale"})
	require.Equal(t, http.StatusPreconditionFailed, rec.Code)
	assert.Equal(t, "412", firstError(t, rec)["status"])
}

func TestIfMatchWildcardOnGet(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{ETag: true})

	rec := env.do(t, http.MethodGet, "/articles/1", "", map[string]string{"If-Match": "*"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStaleIfMatchBlocksUpdate(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{ETag: true})

	body := `{"data":{"type":"articles","id":"1","attributes":{"title":"Changed"}}}`
	rec := env.do(t, http.MethodPatch, "/articles/1", body, map[string]string{"If-Match": "stale"})
	require.Equal(t, http.StatusPreconditionFailed, rec.Code)

	// The precondition fires before storage runs.
	obj, _ := env.articles.Get("1")
	assert.Equal(t, "First", obj["title"])
}

func TestFreshIfMatchAllowsUpdate(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{ETag: true})

	rec := env.do(t, http.MethodGet, "/articles/1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	body := `{"data":{"type":"articles","id":"1","attributes":{"title":"Changed"}}}`
	rec = env.do(t, http.MethodPatch, "/articles/1", body, map[string]string{"If-Match": etag})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	obj, _ := env.articles.Get("1")
	assert.Equal(t, "Changed", obj["title"])
}

func TestIfMatchValidatorList(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{ETag: true})

	rec := env.do(t, http.MethodGet, "/articles/1", "", nil)
	etag := rec.Header().Get("ETag")

	// Comma-separated validator lists are split and trimmed; a match on
	// any entry satisfies the precondition.
	rec = env.do(t, http.MethodGet, "/articles/1", "", map[string]string{"If-Match": "stale, " + etag})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStaleIfMatchBlocksRelationshipMutation(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{ETag: true})

	body := `{"data":{"type":"people","id":"2"}}`
	rec := env.do(t, http.MethodPatch, "/articles/1/relationships/author", body, map[string]string{"If-Match": "stale"})
	require.Equal(t, http.StatusPreconditionFailed, rec.Code)

	// The precondition fires before storage runs.
	rec = env.do(t, http.MethodGet, "/articles/1/relationships/author", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", dataObject(t, decodeDoc(t, rec))["id"])
}

func TestFreshIfMatchAllowsRelationshipMutation(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{ETag: true})

	rec := env.do(t, http.MethodGet, "/articles/1/relationships/author", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	body := `{"data":{"type":"people","id":"2"}}`
	rec = env.do(t, http.MethodPatch, "/articles/1/relationships/author", body, map[string]string{"If-Match": etag})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/articles/1/relationships/author", "", nil)
	assert.Equal(t, "2", dataObject(t, decodeDoc(t, rec))["id"])
}

func TestStaleIfMatchBlocksCreate(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{ETag: true})

	body := `{"data":{"type":"articles","attributes":{"title":"Blocked"}}}`
	rec := env.do(t, http.MethodPost, "/articles", body, map[string]string{"If-Match": "stale"})
	require.Equal(t, http.StatusPreconditionFailed, rec.Code)
	assert.Equal(t, 2, env.articles.Len())
}

func TestFreshIfMatchAllowsCreate(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{ETag: true})

	rec := env.do(t, http.MethodGet, "/articles", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	body := `{"data":{"type":"articles","attributes":{"title":"Allowed"}}}`
	rec = env.do(t, http.MethodPost, "/articles", body, map[string]string{"If-Match": etag})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 3, env.articles.Len())
}

type failingListHooks struct {
	NoopCollectionHooks
	err error
}

func (h failingListHooks) BeforeList(context.Context, storage.RouteContext) error {
	return h.err
}

func TestUnexpectedErrorSanitized(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})
	env.api.Collection("/broken", Descriptor{Schema: env.articlesDef, Storage: env.articles},
		failingListHooks{err: errors.New("boom")})

	rec := env.do(t, http.MethodGet, "/broken", "", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Unknown error", firstError(t, rec)["detail"])
}

func TestUnexpectedErrorPropagated(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{PropagateError: true})
	env.api.Collection("/broken", Descriptor{Schema: env.articlesDef, Storage: env.articles},
		failingListHooks{err: errors.New("boom")})

	rec := env.do(t, http.MethodGet, "/broken", "", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "boom", firstError(t, rec)["detail"])
}
