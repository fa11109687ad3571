// Package query parses raw querystring input into the structured,
// validated descriptor the dispatch core and storage layers operate on.
// Nothing downstream of this package ever sees a raw filter string.
package query

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/strata-api/strata/internal/apierr"
)

// DefaultPageSize applies when the client does not request a page size.
const DefaultPageSize = 30

// Sort is a single sort key. A leading "-" in the querystring marks the
// key descending.
type Sort struct {
	Field string
	Desc  bool
}

// Filter is a structured filter predicate.
type Filter struct {
	Name  string `json:"name"`
	Op    string `json:"op"`
	Value any    `json:"val"`
}

// Page holds the pagination window. Number/Size and Offset/Limit are
// alternative addressing schemes; storage layers prefer Offset/Limit when
// both are set.
type Page struct {
	Number int
	Size   int
	Offset int
	Limit  int
}

// Descriptor is the per-request, immutable parse result.
type Descriptor struct {
	Fields  map[string][]string
	Sorts   []Sort
	Filters []Filter
	Page    Page
	Include []string

	values url.Values
}

// Values returns a copy of the raw query values the descriptor was parsed
// from, for link rebuilding.
func (d *Descriptor) Values() url.Values {
	out := make(url.Values, len(d.values))
	for k, v := range d.values {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Parse builds a Descriptor from raw query values. The page size is clamped
// to maxPageSize when maxPageSize is positive. Malformed input yields a
// BadRequest domain error.
func Parse(values url.Values, maxPageSize int) (*Descriptor, error) {
	d := &Descriptor{
		Fields: make(map[string][]string),
		Page:   Page{Number: 1, Size: DefaultPageSize},
		values: values,
	}

	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		switch {
		case key == "sort":
			d.Sorts = parseSorts(vals[0])
		case key == "include":
			d.Include = parseInclude(vals[0])
		case key == "filter":
			if err := json.Unmarshal([]byte(vals[0]), &d.Filters); err != nil {
				return nil, apierr.BadRequest("", fmt.Sprintf("Parse error in filter parameter: %v", err))
			}
		case strings.HasPrefix(key, "filter["):
			name, ok := bracketArg(key, "filter")
			if !ok {
				return nil, apierr.BadRequest("", fmt.Sprintf("Malformed querystring parameter %q", key))
			}
			d.Filters = append(d.Filters, Filter{Name: name, Op: "eq", Value: vals[0]})
		case strings.HasPrefix(key, "fields["):
			typ, ok := bracketArg(key, "fields")
			if !ok {
				return nil, apierr.BadRequest("", fmt.Sprintf("Malformed querystring parameter %q", key))
			}
			d.Fields[typ] = splitCSV(vals[0])
		case strings.HasPrefix(key, "page["):
			if err := d.parsePageParam(key, vals[0]); err != nil {
				return nil, err
			}
		}
	}

	if maxPageSize > 0 {
		if d.Page.Size > maxPageSize {
			d.Page.Size = maxPageSize
		}
		if d.Page.Limit > maxPageSize {
			d.Page.Limit = maxPageSize
		}
	}

	return d, nil
}

func (d *Descriptor) parsePageParam(key, raw string) error {
	arg, ok := bracketArg(key, "page")
	if !ok {
		return apierr.BadRequest("", fmt.Sprintf("Malformed querystring parameter %q", key))
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return apierr.BadRequest("", fmt.Sprintf("Invalid value %q for querystring parameter %q", raw, key))
	}

	switch arg {
	case "number":
		if n == 0 {
			n = 1
		}
		d.Page.Number = n
	case "size":
		d.Page.Size = n
	case "offset":
		d.Page.Offset = n
	case "limit":
		d.Page.Limit = n
	default:
		return apierr.BadRequest("", fmt.Sprintf("Unknown pagination parameter %q", key))
	}
	return nil
}

// parseSorts splits a comma-separated sort expression into keys, honoring
// the "-" descending prefix.
func parseSorts(raw string) []Sort {
	var sorts []Sort
	for _, field := range splitCSV(raw) {
		if strings.HasPrefix(field, "-") {
			sorts = append(sorts, Sort{Field: field[1:], Desc: true})
		} else {
			sorts = append(sorts, Sort{Field: field})
		}
	}
	return sorts
}

// parseInclude splits dotted include paths and deduplicates them preserving
// first occurrence. Include paths are a set.
func parseInclude(raw string) []string {
	seen := make(map[string]struct{})
	var include []string
	for _, p := range splitCSV(raw) {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		include = append(include, p)
	}
	return include
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// bracketArg extracts the bracketed argument from keys shaped like
// "prefix[arg]".
func bracketArg(key, prefix string) (string, bool) {
	rest := strings.TrimPrefix(key, prefix)
	if len(rest) < 3 || rest[0] != '[' || rest[len(rest)-1] != ']' {
		return "", false
	}
	return rest[1 : len(rest)-1], true
}
