// Package apierr defines the domain error taxonomy shared by the resource
// dispatch core and the response translator. Every failure that can surface
// to a client is represented as an *Error (or a List of them) carrying a
// machine-readable kind, an HTTP status, and a JSON-pointer into the
// offending request element. All other error values are treated as
// unexpected and are sanitized at the translator boundary.
package apierr

import (
	"errors"
	"strconv"
	"strings"
)

// Kind identifies the category of a domain error.
type Kind string

// The full taxonomy. Each kind maps to exactly one HTTP status.
const (
	KindBadRequest         Kind = "bad_request"
	KindInvalidType        Kind = "invalid_type"
	KindRelationNotFound   Kind = "relation_not_found"
	KindObjectNotFound     Kind = "object_not_found"
	KindValidationError    Kind = "validation_error"
	KindIncorrectType      Kind = "incorrect_type"
	KindPreconditionFailed Kind = "precondition_failed"
	KindNotModified        Kind = "not_modified"
	KindMethodNotAllowed   Kind = "method_not_allowed"
	KindConflict           Kind = "conflict"
	KindUnauthorized       Kind = "unauthorized"
	KindUnknown            Kind = "unknown"
)

// Error is a single domain error. Pointer is a JSON-pointer-style path into
// the request element that caused the failure; it is empty for
// resource-level errors.
type Error struct {
	Kind    Kind
	Status  int
	Title   string
	Detail  string
	Pointer string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Title
	}
	return e.Title + ": " + e.Detail
}

// List collects multiple domain errors into a single error value so that
// validation failures can be batched into one document instead of failing
// fast on the first field.
type List []*Error

// Error implements the error interface by summarizing the first entry.
func (l List) Error() string {
	switch len(l) {
	case 0:
		return ""
	case 1:
		return l[0].Error()
	}
	var b strings.Builder
	b.WriteString(l[0].Error())
	b.WriteString(" (and ")
	b.WriteString(strconv.Itoa(len(l) - 1))
	b.WriteString(" more)")
	return b.String()
}

// Status returns the HTTP status of the list, which is the status of its
// first entry. An empty list degrades to 500.
func (l List) Status() int {
	if len(l) == 0 {
		return 500
	}
	return l[0].Status
}

// BadRequest reports a malformed or missing required body node.
func BadRequest(pointer, detail string) *Error {
	return &Error{Kind: KindBadRequest, Status: 400, Title: "Bad request", Detail: detail, Pointer: pointer}
}

// InvalidType reports a wire type that does not match the declared
// relationship or resource type.
func InvalidType(pointer, detail string) *Error {
	return &Error{Kind: KindInvalidType, Status: 409, Title: "Invalid type", Detail: detail, Pointer: pointer}
}

// RelationNotFound reports an URL segment that names no declared
// relationship.
func RelationNotFound(detail string) *Error {
	return &Error{Kind: KindRelationNotFound, Status: 404, Title: "Relation not found", Detail: detail}
}

// ObjectNotFound reports a storage lookup that matched nothing.
func ObjectNotFound(detail string) *Error {
	return &Error{Kind: KindObjectNotFound, Status: 404, Title: "Object not found", Detail: detail}
}

// Validation reports a field-level validation failure. One entry is
// produced per offending field.
func Validation(pointer, detail string) *Error {
	return &Error{Kind: KindValidationError, Status: 422, Title: "Validation error", Detail: detail, Pointer: pointer}
}

// IncorrectType reports a structural type mismatch while loading a payload.
func IncorrectType(pointer, detail string) *Error {
	return &Error{Kind: KindIncorrectType, Status: 409, Title: "Incorrect type", Detail: detail, Pointer: pointer}
}

// PreconditionFailed reports an If-Match validator list that excludes the
// current content hash.
func PreconditionFailed() *Error {
	return &Error{Kind: KindPreconditionFailed, Status: 412, Title: "Precondition failed", Detail: "Precondition failed"}
}

// NotModified short-circuits a conditional read whose If-None-Match list
// contains the current content hash.
func NotModified() *Error {
	return &Error{Kind: KindNotModified, Status: 304, Title: "Not modified", Detail: "Resource not modified"}
}

// MethodNotAllowed reports an HTTP verb absent from a resource's dispatch
// table.
func MethodNotAllowed(detail string) *Error {
	return &Error{Kind: KindMethodNotAllowed, Status: 405, Title: "Method not allowed", Detail: detail}
}

// Conflict reports a write that collides with an existing object.
func Conflict(detail string) *Error {
	return &Error{Kind: KindConflict, Status: 409, Title: "Conflict", Detail: detail}
}

// Unauthorized reports a missing or invalid bearer token.
func Unauthorized(detail string) *Error {
	return &Error{Kind: KindUnauthorized, Status: 401, Title: "Unauthorized", Detail: detail}
}

// Unknown wraps an unexpected failure under a 500-class status. The detail
// is whatever the translator decided is safe to surface.
func Unknown(detail string) *Error {
	return &Error{Kind: KindUnknown, Status: 500, Title: "Unknown error", Detail: detail}
}

// Document renders any error value as the error envelope
// {errors: [...], jsonapi: {version}} together with its HTTP status.
// Non-domain errors are rendered as a generic unknown error; callers that
// want debug detail must convert them before calling Document.
func Document(err error) (map[string]any, int) {
	var list List
	var single *Error
	switch {
	case errors.As(err, &list):
	case errors.As(err, &single):
		list = List{single}
	default:
		list = List{Unknown("Unknown error")}
	}

	entries := make([]any, 0, len(list))
	for _, e := range list {
		entry := map[string]any{
			"status": strconv.Itoa(e.Status),
			"title":  e.Title,
			"detail": e.Detail,
			"source": map[string]any{"pointer": e.Pointer},
		}
		entries = append(entries, entry)
	}

	doc := map[string]any{
		"errors":  entries,
		"jsonapi": map[string]any{"version": "1.0"},
	}
	return doc, list.Status()
}
