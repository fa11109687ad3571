// Package storage defines the contract the resource dispatch core requires
// from a backing store. Concrete backends implement these interfaces
// explicitly; a misconfigured resource is a compile-time type error, not a
// runtime assertion.
package storage

import (
	"context"

	"github.com/strata-api/strata/internal/query"
	"github.com/strata-api/strata/internal/schema"
)

// RouteContext carries the URL parameters of the current request into the
// storage layer, e.g. {"id": "42"} for an item route.
type RouteContext map[string]string

// Linkage is the minimal {type, id} reference of a relationship target.
type Linkage struct {
	Type string
	ID   string
}

// RelationshipPayload is the validated body of a relationship mutation.
// Items is nil with Many false when a to-one relationship is being
// cleared.
type RelationshipPayload struct {
	Many  bool
	Items []Linkage
}

// Layer is the storage capability for collection and item operations. The
// layer receives already-parsed query descriptors and returns
// already-filtered results; it owns any transactional atomicity its
// operations need.
type Layer interface {
	// CountAndFetch returns the total number of objects matching the
	// descriptor's filters and the window of objects selected by its
	// pagination state.
	CountAndFetch(ctx context.Context, q *query.Descriptor, rc RouteContext) (int, []schema.Object, error)

	// FetchOne returns the object addressed by the route context, or
	// ErrNotFound. Soft-deleted objects are excluded unless
	// includeSoftDeleted is set.
	FetchOne(ctx context.Context, rc RouteContext, includeSoftDeleted bool) (schema.Object, error)

	// Create stores a new object built from the loaded payload and
	// returns it with its identifier assigned.
	Create(ctx context.Context, data schema.Object, rc RouteContext) (schema.Object, error)

	// Update applies the loaded payload onto an existing object. The
	// passed object reflects the mutation afterwards.
	Update(ctx context.Context, obj schema.Object, data schema.Object, rc RouteContext) error

	// Delete physically removes an object.
	Delete(ctx context.Context, obj schema.Object, rc RouteContext) error
}

// RelationshipLayer is the storage capability for relationship reads and
// mutations. The boolean result of the mutation methods reports whether
// anything actually changed, so the dispatch core can answer 204 for
// no-ops.
type RelationshipLayer interface {
	// ReadRelationship returns the owning object and the relationship's
	// linkage data (a single linkage object, a list, or nil).
	ReadRelationship(ctx context.Context, field, idField string, rc RouteContext) (schema.Object, any, error)

	// CreateRelationship adds the payload members to the relationship.
	CreateRelationship(ctx context.Context, payload RelationshipPayload, field, idField string, rc RouteContext) (schema.Object, bool, error)

	// UpdateRelationship replaces the relationship with the payload.
	UpdateRelationship(ctx context.Context, payload RelationshipPayload, field, idField string, rc RouteContext) (schema.Object, bool, error)

	// DeleteRelationship removes the payload members from the
	// relationship.
	DeleteRelationship(ctx context.Context, payload RelationshipPayload, field, idField string, rc RouteContext) (schema.Object, bool, error)
}
