// Package sanitize normalizes date-bearing values in candidate records before
// they are written. Values that cannot be read as a timestamp are removed
// from the record rather than reported, so storage leaves the previous value
// in place.
package sanitize

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"recruitpipe/internal/domain"
)

// dateFields are parsed wherever they appear: top level, enrichedData, or
// inside structured list items.
var dateFields = map[string]bool{
	"createdAt":          true,
	"updatedAt":          true,
	"lastEnriched":       true,
	"linkedinLastActive": true,
	"lastActive":         true,
	"scrapedAt":          true,
	"startDate":          true,
	"endDate":            true,
	"issuedAt":           true,
}

// identityFields never pass through the timestamp sniffer; the resolver and
// the tenant guard depend on them surviving a merge.
var identityFields = map[string]bool{
	domain.FieldID:             true,
	domain.FieldTenantID:       true,
	domain.FieldEmail:          true,
	domain.FieldAlternateEmail: true,
	domain.FieldLinkedinURL:    true,
}

// Record returns a sanitized copy of rec: known date fields become time.Time
// or are dropped, enrichedData is handled one level deep, structured list
// items are sanitized recursively, and any other top-level string that looks
// like a timestamp must parse as one or it is dropped. List items only get
// the date-field rule: a list is stored whole, so dropping a key inside an
// item would erase it.
func Record(rec domain.Record) domain.Record {
	return domain.Record(sanitize(rec, true, true))
}

// Dates is Record without the timestamp sniffer. Use it where free text must
// survive untouched but date fields still have to be valid.
func Dates(rec domain.Record) domain.Record {
	return domain.Record(sanitize(rec, true, false))
}

func sanitize(in map[string]any, nested, sniff bool) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		if dateFields[k] {
			if t, ok := ParseTime(v); ok {
				out[k] = t
			}
			continue
		}
		if k == domain.FieldEnrichedData && nested {
			if m, ok := asMap(v); ok {
				out[k] = sanitize(m, false, sniff)
				continue
			}
		}
		switch t := v.(type) {
		case []any:
			out[k] = sanitizeList(t)
		case string:
			if sniff && !identityFields[k] && LooksLikeTimestamp(t) {
				if _, ok := ParseTime(t); !ok {
					continue
				}
			}
			out[k] = t
		default:
			out[k] = v
		}
	}
	return out
}

func sanitizeList(in []any) []any {
	out := make([]any, len(in))
	for i, item := range in {
		if m, ok := asMap(item); ok {
			out[i] = sanitize(m, true, false)
			continue
		}
		out[i] = item
	}
	return out
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case domain.Record:
		return m, true
	}
	return nil, false
}

// LooksLikeTimestamp is the ISO-8601 sniff applied to otherwise unknown
// strings. It is deliberately broad: any "T" or "Z" qualifies.
func LooksLikeTimestamp(s string) bool {
	return strings.ContainsAny(s, "TZ")
}

// ParseTime reads v as a calendar timestamp. Numbers are epoch milliseconds.
func ParseTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, !t.IsZero()
	case string:
		return parseString(t)
	case float64:
		return time.UnixMilli(int64(t)).UTC(), true
	case int64:
		return time.UnixMilli(t).UTC(), true
	case int:
		return time.UnixMilli(int64(t)).UTC(), true
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return time.Time{}, false
		}
		return time.UnixMilli(n).UTC(), true
	}
	return time.Time{}, false
}

func parseString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, !t.IsZero()
	}
	return parseLenient(s)
}

func parseLenient(s string) (t time.Time, ok bool) {
	// dateparse panics on a handful of malformed inputs.
	defer func() {
		if recover() != nil {
			t, ok = time.Time{}, false
		}
	}()
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil || t.IsZero() {
		return time.Time{}, false
	}
	return t, true
}
