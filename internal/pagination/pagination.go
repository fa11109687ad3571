// Package pagination computes collection navigation links from the total
// object count and the current query state.
package pagination

import (
	"strconv"

	"github.com/strata-api/strata/internal/query"
)

// Links builds the first/last/prev/next/self link set for a collection
// response. Every link re-encodes the full query string with only the
// page[number] parameter changed. prev and next are null at the boundaries.
// A page size of zero disables pagination, leaving only the self link.
func Links(count int, q *query.Descriptor, baseURL string) map[string]any {
	links := map[string]any{"self": selfURL(baseURL, q)}

	size := q.Page.Size
	if size <= 0 {
		return links
	}

	// last page index = ceil(count / size); a short or empty collection
	// still has one page, so last == first when size >= count.
	last := (count + size - 1) / size
	if last < 1 {
		last = 1
	}

	number := q.Page.Number
	if number < 1 {
		number = 1
	}

	links["first"] = pageURL(baseURL, q, 1)
	links["last"] = pageURL(baseURL, q, last)

	if number > 1 {
		links["prev"] = pageURL(baseURL, q, number-1)
	} else {
		links["prev"] = nil
	}
	if number < last {
		links["next"] = pageURL(baseURL, q, number+1)
	} else {
		links["next"] = nil
	}

	return links
}

func selfURL(baseURL string, q *query.Descriptor) string {
	vals := q.Values()
	if len(vals) == 0 {
		return baseURL
	}
	return baseURL + "?" + vals.Encode()
}

func pageURL(baseURL string, q *query.Descriptor, number int) string {
	vals := q.Values()
	vals.Set("page[number]", strconv.Itoa(number))
	return baseURL + "?" + vals.Encode()
}
