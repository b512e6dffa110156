package search

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// QueryKey is the canonical string form of a FilterState. It is both the
// cache key and the query string placed in the address bar, so its field
// names and ordering must stay stable across releases.
type QueryKey string

// String implements fmt.Stringer.
func (k QueryKey) String() string { return string(k) }

// Wire field names, in encoding order.
const (
	fieldCategory = "category"
	fieldStatus   = "status"
	fieldSearch   = "search"
	fieldPage     = "page"
)

// Encode serializes f as key=value pairs in the fixed order category,
// status, search, page. Empty fields are omitted; page is always present.
// Values are query-escaped so separators inside values cannot collide.
func Encode(f FilterState) QueryKey {
	var b strings.Builder
	add := func(name, value string) {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(value))
	}
	if f.Category != "" {
		add(fieldCategory, f.Category)
	}
	if f.Status != "" {
		add(fieldStatus, f.Status)
	}
	if f.SearchText != "" {
		add(fieldSearch, f.SearchText)
	}
	add(fieldPage, strconv.Itoa(max(f.Page, 1)))
	return QueryKey(b.String())
}

// Decode parses a query string back into a FilterState.
//
// Decode is lenient so it can hydrate state from whatever is in the address
// bar: a leading "?" or a full URL is accepted, unknown fields are ignored,
// the first occurrence of a repeated field wins, and a missing or invalid
// page becomes 1. It only fails on malformed percent-escapes.
func Decode(raw string) (FilterState, error) {
	f := DefaultFilter()
	q := queryPart(raw)
	if q == "" {
		return f, nil
	}

	seen := make(map[string]bool, 4)
	for pair := range strings.SplitSeq(q, "&") {
		if pair == "" {
			continue
		}
		name, value, _ := strings.Cut(pair, "=")
		name, err := url.QueryUnescape(name)
		if err != nil {
			return DefaultFilter(), fmt.Errorf("decoding query key %q: %w", raw, err)
		}
		if seen[name] {
			continue
		}
		value, err = url.QueryUnescape(value)
		if err != nil {
			return DefaultFilter(), fmt.Errorf("decoding %s in query key %q: %w", name, raw, err)
		}

		switch name {
		case fieldCategory:
			f.Category = value
		case fieldStatus:
			f.Status = value
		case fieldSearch:
			f.SearchText = value
		case fieldPage:
			if n, err := strconv.Atoi(value); err == nil && n >= 1 {
				f.Page = n
			}
		default:
			continue
		}
		seen[name] = true
	}
	return f, nil
}

// ParseKey is the strict form of Decode: it only accepts canonical keys,
// i.e. strings that Encode would have produced.
func ParseKey(raw string) (QueryKey, FilterState, error) {
	f, err := Decode(raw)
	if err != nil {
		return "", FilterState{}, err
	}
	key := Encode(f)
	if string(key) != raw {
		return "", FilterState{}, fmt.Errorf("not a canonical query key: %q (canonical form %q)", raw, key)
	}
	return key, f, nil
}

// queryPart extracts the query component from a bare query string,
// a "?query", or a full URL. Fragments are dropped.
func queryPart(raw string) string {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		raw = raw[:i]
	}
	q, eq := strings.IndexByte(raw, '?'), strings.IndexByte(raw, '=')
	// A '?' after the first '=' belongs to a value.
	if q >= 0 && (eq < 0 || q < eq) {
		return raw[q+1:]
	}
	// A bare path without "=" carries no query.
	if eq < 0 {
		return ""
	}
	return raw
}
