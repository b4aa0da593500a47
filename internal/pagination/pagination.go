// Package pagination parses page requests and builds the page envelope the
// grid reads ({content, totalElements, totalPages, number, size}).
package pagination

import (
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

const (
	DefaultPage = 1
	DefaultSize = 10
	MaxSize     = 100
)

// Page is a 1-indexed page request.
type Page struct {
	Page int
	Size int
}

// New clamps page and size into range.
func New(page, size, maxSize int) Page {
	if page < 1 {
		page = DefaultPage
	}
	if size < 1 {
		size = DefaultSize
	}
	if maxSize > 0 && size > maxSize {
		size = maxSize
	}
	return Page{Page: page, Size: size}
}

// Offset is the row offset of the page's first record.
func (p Page) Offset() int { return (p.Page - 1) * p.Size }

// Limit is the page size.
func (p Page) Limit() int { return p.Size }

// FromRequest reads ?page= and ?size=. Missing or invalid values take the
// defaults; size is capped at maxSize.
func FromRequest(r *http.Request, defaultSize, maxSize int) Page {
	q := r.URL.Query()
	return New(parseInt(q.Get("page"), DefaultPage), parseInt(q.Get("size"), defaultSize), maxSize)
}

func parseInt(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}

// Sort is one ordering term.
type Sort struct {
	Field string
	Desc  bool
}

// ParseSort reads ?sort=field[,asc|desc]. Fields outside allowed are
// dropped; the second return reports whether a sort was applied.
func ParseSort(r *http.Request, allowed []string) (Sort, bool) {
	raw := r.URL.Query().Get("sort")
	if raw == "" {
		return Sort{}, false
	}
	field, dir, _ := strings.Cut(raw, ",")
	field = strings.TrimSpace(field)
	if !slices.Contains(allowed, field) {
		return Sort{}, false
	}
	return Sort{Field: field, Desc: strings.EqualFold(strings.TrimSpace(dir), "desc")}, true
}

// Envelope is a page of T in the grid's wire shape. Number is 0-indexed.
type Envelope[T any] struct {
	Content       []T `json:"content"`
	TotalElements int `json:"totalElements"`
	TotalPages    int `json:"totalPages"`
	Number        int `json:"number"`
	Size          int `json:"size"`
}

// NewEnvelope wraps one page of content drawn from total records.
func NewEnvelope[T any](content []T, p Page, total int) Envelope[T] {
	if content == nil {
		content = []T{}
	}
	pages := 0
	if p.Size > 0 {
		pages = (total + p.Size - 1) / p.Size
	}
	return Envelope[T]{
		Content:       content,
		TotalElements: total,
		TotalPages:    pages,
		Number:        p.Page - 1,
		Size:          p.Size,
	}
}

// SetLinkHeader sets an RFC 8288 Link header with first, prev, next and
// last relations. Other query parameters on base are preserved.
func SetLinkHeader(w http.ResponseWriter, base *url.URL, p Page, total int) {
	last := max(1, (total+p.Size-1)/p.Size)

	link := func(page int, rel string) string {
		u := *base
		q := u.Query()
		q.Set("page", strconv.Itoa(page))
		q.Set("size", strconv.Itoa(p.Size))
		u.RawQuery = q.Encode()
		return "<" + u.String() + `>; rel="` + rel + `"`
	}

	links := []string{link(1, "first")}
	if p.Page > 1 {
		links = append(links, link(p.Page-1, "prev"))
	}
	if p.Page < last {
		links = append(links, link(p.Page+1, "next"))
	}
	links = append(links, link(last, "last"))
	w.Header().Set("Link", strings.Join(links, ", "))
}
