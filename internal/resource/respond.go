package resource

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/strata-api/strata/internal/apierr"
	"github.com/strata-api/strata/internal/config"
	"github.com/strata-api/strata/internal/redact"
)

// ContentType is the media type of every response this layer emits.
const ContentType = "application/vnd.api+json"

// Result is the in-flight outcome of a verb handler before encoding: the
// document, the status, extra headers, and whether the body is empty
// (204-style responses).
type Result struct {
	Doc    map[string]any
	Status int
	Header http.Header
	Empty  bool
}

// responder is the single translator boundary wrapping every verb
// invocation. Domain errors become error documents; unexpected errors are
// sanitized unless debug or propagate mode says otherwise; success
// documents are stamped with the version marker and run through the
// conditional-request protocol after the body is final.
type responder struct {
	cfg config.APIConfig
	log *slog.Logger
}

func (rs *responder) handle(w http.ResponseWriter, r *http.Request, fn handlerFunc) {
	res, err := fn(r)
	if err != nil {
		rs.writeError(w, r, err)
		return
	}
	rs.writeResult(w, r, res)
}

func (rs *responder) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var single *apierr.Error
	var list apierr.List
	if !errors.As(err, &single) && !errors.As(err, &list) {
		rs.log.Error("unhandled error during resource dispatch",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", redact.Error(err)))
		detail := "Unknown error"
		if rs.cfg.Debug || rs.cfg.PropagateError {
			detail = err.Error()
		}
		err = apierr.Unknown(detail)
	}

	doc, status := apierr.Document(err)
	rs.write(w, doc, status, nil)
}

func (rs *responder) writeResult(w http.ResponseWriter, r *http.Request, res *Result) {
	status := res.Status
	if status == 0 {
		status = http.StatusOK
	}

	if res.Empty || res.Doc == nil {
		applyHeaders(w, res.Header)
		w.Header().Set("Content-Type", ContentType)
		w.WriteHeader(status)
		return
	}

	// The version marker is stamped on every non-error, non-empty
	// document just before encoding.
	res.Doc["jsonapi"] = map[string]any{"version": "1.0"}

	body, err := json.Marshal(res.Doc)
	if err != nil {
		rs.writeError(w, r, err)
		return
	}

	if rs.cfg.ETag {
		etag := bodyHash(body)
		w.Header().Set("ETag", etag)

		// If-Match on mutating verbs is checked against the prior
		// representation before storage is invoked (see
		// checkPrecondition); only safe reads apply the validators to
		// the final body here.
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			if ifMatch := r.Header.Get("If-Match"); ifMatch != "" {
				if !validatorListContains(ifMatch, etag) {
					doc, errStatus := apierr.Document(apierr.PreconditionFailed())
					rs.write(w, doc, errStatus, nil)
					return
				}
			} else if ifNoneMatch := r.Header.Get("If-None-Match"); ifNoneMatch != "" {
				if validatorListContains(ifNoneMatch, etag) {
					w.Header().Set("Content-Type", ContentType)
					w.WriteHeader(http.StatusNotModified)
					return
				}
			}
		}
	}

	applyHeaders(w, res.Header)
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		rs.log.Error("failed to write response body", slog.String("error", err.Error()))
	}
}

// write encodes and emits a document without conditional-request handling
// (error documents are never subject to it).
func (rs *responder) write(w http.ResponseWriter, doc map[string]any, status int, header http.Header) {
	body, err := json.Marshal(doc)
	if err != nil {
		rs.log.Error("failed to encode response document", slog.String("error", err.Error()))
		w.Header().Set("Content-Type", ContentType)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	applyHeaders(w, header)
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		rs.log.Error("failed to write response body", slog.String("error", err.Error()))
	}
}

// checkPrecondition evaluates an If-Match header against the current
// representation of an object before a mutation runs. currentDoc must be
// the document a GET would have produced.
func (b *base) checkPrecondition(r *http.Request, currentDoc map[string]any) error {
	if !b.cfg.ETag {
		return nil
	}
	ifMatch := r.Header.Get("If-Match")
	if ifMatch == "" {
		return nil
	}

	// Reproduce the exact encoded body of the prior representation,
	// version marker included, so the hash matches the ETag the client
	// previously observed.
	doc := make(map[string]any, len(currentDoc)+1)
	for k, v := range currentDoc {
		doc[k] = v
	}
	doc["jsonapi"] = map[string]any{"version": "1.0"}

	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	if !validatorListContains(ifMatch, bodyHash(body)) {
		return apierr.PreconditionFailed()
	}
	return nil
}

func bodyHash(body []byte) string {
	sum := sha1.Sum(body)
	return hex.EncodeToString(sum[:])
}

// validatorListContains parses a comma-separated, whitespace-trimmed
// validator list and reports whether it contains the hash or a wildcard.
func validatorListContains(header, etag string) bool {
	for _, token := range strings.Split(header, ",") {
		token = strings.TrimSpace(token)
		if token == etag || token == "*" {
			return true
		}
	}
	return false
}

func applyHeaders(w http.ResponseWriter, header http.Header) {
	for key, values := range header {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
}
