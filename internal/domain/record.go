package domain

import (
	"encoding/json"
	"fmt"
	"maps"
	"sort"
	"strconv"
	"strings"
)

// Record is a partial candidate keyed by Candidate json field names. Values are
// JSON-shaped (string, float64, bool, []any, map[string]any) except where the
// sanitizer has replaced a date string with a time.Time.
type Record map[string]any

const (
	FieldID               = "id"
	FieldTenantID         = "tenantId"
	FieldEmail            = "email"
	FieldAlternateEmail   = "alternateEmail"
	FieldLinkedinURL      = "linkedinUrl"
	FieldName             = "name"
	FieldTitle            = "title"
	FieldCompany          = "company"
	FieldSkills           = "skills"
	FieldCertifications   = "certifications"
	FieldExperience       = "experience"
	FieldEducation        = "education"
	FieldEnrichedData     = "enrichedData"
	FieldEnrichmentStatus = "enrichmentStatus"
	FieldLastEnriched     = "lastEnriched"
	FieldCreatedAt        = "createdAt"
	FieldUpdatedAt        = "updatedAt"
)

// RecordOf flattens a candidate into its JSON-shaped Record.
func RecordOf(c Candidate) (Record, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode candidate: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("decode candidate record: %w", err)
	}
	return rec, nil
}

// Apply overlays rec onto c. Keys missing from rec leave c untouched; keys
// present replace the whole field, lists included.
func (c *Candidate) Apply(rec Record) error {
	if len(rec) == 0 {
		return nil
	}
	// Decoding straight into c would reuse existing slice elements and keep
	// stale struct fields, so rebuild from a merged document instead.
	doc, err := RecordOf(*c)
	if err != nil {
		return err
	}
	for k, v := range rec {
		doc[k] = v
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	var out Candidate
	if err := json.Unmarshal(b, &out); err != nil {
		return fmt.Errorf("apply record: %w", err)
	}
	*c = out
	return nil
}

// timeFields are left to the date sanitizer, which accepts far more layouts
// than the JSON decoder.
var timeFields = map[string]bool{
	"linkedinLastActive": true,
	FieldLastEnriched:    true,
	FieldCreatedAt:       true,
	FieldUpdatedAt:       true,
}

var listFields = map[string]bool{
	FieldSkills:         true,
	FieldCertifications: true,
	"languages":         true,
}

// Coerce returns a copy of r holding only values that decode into their
// Candidate field. Loose spreadsheet values are converted first ("500+" and
// "1,200" for counts, "yes" for flags, delimited text for string lists). Keys
// that still do not fit are left out and returned sorted.
func (r Record) Coerce() (Record, []string) {
	out := make(Record, len(r))
	var dropped []string
	for k, v := range r {
		if timeFields[k] || fits(k, v) {
			out[k] = v
			continue
		}
		if c, ok := loosen(k, v); ok {
			out[k] = c
			continue
		}
		dropped = append(dropped, k)
	}
	sort.Strings(dropped)
	return out, dropped
}

func fits(key string, v any) bool {
	b, err := json.Marshal(map[string]any{key: v})
	if err != nil {
		return false
	}
	var c Candidate
	return json.Unmarshal(b, &c) == nil
}

func loosen(key string, v any) (any, bool) {
	var options []any
	switch t := v.(type) {
	case string:
		if listFields[key] {
			options = append(options, splitList(t))
			break
		}
		n := strings.TrimSuffix(strings.ReplaceAll(strings.TrimSpace(t), ",", ""), "+")
		if i, err := strconv.Atoi(n); err == nil {
			options = append(options, i)
		}
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			options = append(options, f)
		}
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "yes", "y", "true", "1":
			options = append(options, true)
		case "no", "n", "false", "0", "":
			options = append(options, false)
		}
	case float64:
		options = append(options, int(t), strconv.FormatFloat(t, 'f', -1, 64))
	case bool:
		options = append(options, strconv.FormatBool(t))
	case []any:
		items := make([]any, 0, len(t))
		for _, item := range t {
			if item != nil {
				items = append(items, fmt.Sprint(item))
			}
		}
		options = append(options, items)
	}
	for _, o := range options {
		if fits(key, o) {
			return o, true
		}
	}
	return nil, false
}

func splitList(s string) []any {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' || r == '|' })
	out := make([]any, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Clone returns a shallow copy.
func (r Record) Clone() Record {
	if r == nil {
		return Record{}
	}
	return maps.Clone(r)
}

// String returns the trimmed string value of key, or "" when absent or not a string.
func (r Record) String(key string) string {
	s, _ := r[key].(string)
	return strings.TrimSpace(s)
}

// Present reports whether key carries a usable value. Nil, blank strings and
// empty collections count as absent so a blank spreadsheet cell never erases
// stored data.
func (r Record) Present(key string) bool {
	v, ok := r[key]
	if !ok {
		return false
	}
	return IsPresent(v)
}

func IsPresent(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(t) != ""
	case []any:
		return len(t) > 0
	case []string:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	return true
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeLinkedinURL trims a profile URL. Case is preserved.
func NormalizeLinkedinURL(s string) string {
	return strings.TrimSpace(s)
}

// NormalizeIdentity rewrites the identity fields of rec in place.
func (r Record) NormalizeIdentity() {
	if _, ok := r[FieldEmail]; ok {
		if e := NormalizeEmail(r.String(FieldEmail)); e != "" {
			r[FieldEmail] = e
		} else {
			delete(r, FieldEmail)
		}
	}
	if _, ok := r[FieldLinkedinURL]; ok {
		if u := NormalizeLinkedinURL(r.String(FieldLinkedinURL)); u != "" {
			r[FieldLinkedinURL] = u
		} else {
			delete(r, FieldLinkedinURL)
		}
	}
}

// Lookup returns the identity keys carried by rec.
func (r Record) Lookup() Lookup {
	return Lookup{
		Email:       NormalizeEmail(r.String(FieldEmail)),
		LinkedinURL: NormalizeLinkedinURL(r.String(FieldLinkedinURL)),
		Name:        r.String(FieldName),
		Company:     r.String(FieldCompany),
	}
}

// LockKeys returns the sorted identity lock keys of l within tenantID. Callers
// that take several locks acquire them in this order.
func (l Lookup) LockKeys(tenantID string) []string {
	var keys []string
	if e := NormalizeEmail(l.Email); e != "" {
		keys = append(keys, tenantID+"|email|"+e)
	}
	if u := NormalizeLinkedinURL(l.LinkedinURL); u != "" {
		keys = append(keys, tenantID+"|linkedin|"+u)
	}
	sort.Strings(keys)
	return keys
}
