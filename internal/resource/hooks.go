package resource

import (
	"context"

	"github.com/strata-api/strata/internal/schema"
	"github.com/strata-api/strata/internal/storage"
)

// Hooks run synchronously inside the request's execution context,
// immediately before dispatching to storage and immediately before the
// result is returned. A hook error aborts the request and is translated
// like any other domain error. The Noop types are meant to be embedded so
// implementations override only the hooks they care about.

// CollectionHooks intercept list and create operations.
type CollectionHooks interface {
	BeforeList(ctx context.Context, rc storage.RouteContext) error
	AfterList(ctx context.Context, doc map[string]any) error
	BeforeCreate(ctx context.Context, rc storage.RouteContext, data schema.Object) error
	AfterCreate(ctx context.Context, doc map[string]any) error
}

// ItemHooks intercept get, update and delete operations.
type ItemHooks interface {
	BeforeGet(ctx context.Context, rc storage.RouteContext) error
	AfterGet(ctx context.Context, doc map[string]any) error
	BeforeUpdate(ctx context.Context, rc storage.RouteContext, data schema.Object) error
	AfterUpdate(ctx context.Context, doc map[string]any) error
	BeforeDelete(ctx context.Context, rc storage.RouteContext) error
	AfterDelete(ctx context.Context, doc map[string]any) error
}

// RelationshipHooks intercept relationship reads and mutations.
type RelationshipHooks interface {
	BeforeGet(ctx context.Context, rc storage.RouteContext) error
	AfterGet(ctx context.Context, doc map[string]any) error
	BeforeAdd(ctx context.Context, rc storage.RouteContext, payload storage.RelationshipPayload) error
	AfterAdd(ctx context.Context, doc map[string]any) error
	BeforeReplace(ctx context.Context, rc storage.RouteContext, payload storage.RelationshipPayload) error
	AfterReplace(ctx context.Context, doc map[string]any) error
	BeforeRemove(ctx context.Context, rc storage.RouteContext, payload storage.RelationshipPayload) error
	AfterRemove(ctx context.Context, doc map[string]any) error
}

// NoopCollectionHooks is the default CollectionHooks implementation.
type NoopCollectionHooks struct{}

func (NoopCollectionHooks) BeforeList(context.Context, storage.RouteContext) error { return nil }
func (NoopCollectionHooks) AfterList(context.Context, map[string]any) error       { return nil }
func (NoopCollectionHooks) BeforeCreate(context.Context, storage.RouteContext, schema.Object) error {
	return nil
}
func (NoopCollectionHooks) AfterCreate(context.Context, map[string]any) error { return nil }

// NoopItemHooks is the default ItemHooks implementation.
type NoopItemHooks struct{}

func (NoopItemHooks) BeforeGet(context.Context, storage.RouteContext) error { return nil }
func (NoopItemHooks) AfterGet(context.Context, map[string]any) error        { return nil }
func (NoopItemHooks) BeforeUpdate(context.Context, storage.RouteContext, schema.Object) error {
	return nil
}
func (NoopItemHooks) AfterUpdate(context.Context, map[string]any) error        { return nil }
func (NoopItemHooks) BeforeDelete(context.Context, storage.RouteContext) error { return nil }
func (NoopItemHooks) AfterDelete(context.Context, map[string]any) error        { return nil }

// NoopRelationshipHooks is the default RelationshipHooks implementation.
type NoopRelationshipHooks struct{}

func (NoopRelationshipHooks) BeforeGet(context.Context, storage.RouteContext) error { return nil }
func (NoopRelationshipHooks) AfterGet(context.Context, map[string]any) error        { return nil }
func (NoopRelationshipHooks) BeforeAdd(context.Context, storage.RouteContext, storage.RelationshipPayload) error {
	return nil
}
func (NoopRelationshipHooks) AfterAdd(context.Context, map[string]any) error { return nil }
func (NoopRelationshipHooks) BeforeReplace(context.Context, storage.RouteContext, storage.RelationshipPayload) error {
	return nil
}
func (NoopRelationshipHooks) AfterReplace(context.Context, map[string]any) error { return nil }
func (NoopRelationshipHooks) BeforeRemove(context.Context, storage.RouteContext, storage.RelationshipPayload) error {
	return nil
}
func (NoopRelationshipHooks) AfterRemove(context.Context, map[string]any) error { return nil }
