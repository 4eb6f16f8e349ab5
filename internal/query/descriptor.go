// Package query turns client-supplied listing parameters into bounded,
// paginated retrievals over any gorm-backed collection.
package query

import (
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// Reserved descriptor keys. Every other key is a candidate filter.
const (
	KeySearchTerm = "searchTerm"
	KeySort       = "sort"
	KeySortOrder  = "sortOrder"
	KeyPage       = "page"
	KeyLimit      = "limit"
	KeyFields     = "fields"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
	DefaultSort  = "created_at"
)

// SortOrder is asc or desc.
type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// SortKey is one field of a sort specification.
type SortKey struct {
	Field string
	Desc  bool
}

// Filter restricts Field to any of Values.
type Filter struct {
	Field  string
	Values []string
}

// Descriptor is the normalized form of a listing request.
// Page and Limit are never zero-defaulted here: Parse fills the defaults, and
// Compose rejects anything below one.
type Descriptor struct {
	SearchTerm string
	Filters    []Filter
	Sort       []SortKey
	Page       int
	Limit      int
	Include    []string
	Exclude    []string
}

var reservedKeys = map[string]struct{}{
	KeySearchTerm: {},
	KeySort:       {},
	KeySortOrder:  {},
	KeyPage:       {},
	KeyLimit:      {},
	KeyFields:     {},
}

// IsReserved reports whether key is a descriptor control key.
func IsReserved(key string) bool {
	_, ok := reservedKeys[key]
	return ok
}

// Parse normalizes raw key/value parameters into a Descriptor. It never fails:
// unparsable page or limit values fall back to their defaults and unknown keys
// are carried as filters for Compose to check against its allow-list.
func Parse(params map[string]string) Descriptor {
	d := Descriptor{
		SearchTerm: strings.TrimSpace(params[KeySearchTerm]),
		Page:       parseInt(params[KeyPage], DefaultPage),
		Limit:      parseInt(params[KeyLimit], DefaultLimit),
	}

	order := Desc
	if strings.EqualFold(strings.TrimSpace(params[KeySortOrder]), string(Asc)) {
		order = Asc
	}
	d.Sort = parseSort(params[KeySort], order)

	for _, name := range splitList(params[KeyFields]) {
		if strings.HasPrefix(name, "-") {
			if f := FieldName(name[1:]); f != "" {
				d.Exclude = append(d.Exclude, f)
			}
			continue
		}
		d.Include = append(d.Include, FieldName(name))
	}

	for key, raw := range params {
		if IsReserved(key) {
			continue
		}
		values := splitList(raw)
		if len(values) == 0 {
			continue
		}
		d.Filters = append(d.Filters, Filter{Field: FieldName(key), Values: values})
	}
	sort.Slice(d.Filters, func(i, j int) bool { return d.Filters[i].Field < d.Filters[j].Field })

	return d
}

func parseSort(raw string, order SortOrder) []SortKey {
	var keys []SortKey
	for _, item := range splitList(raw) {
		desc := order == Desc
		if strings.HasPrefix(item, "-") {
			desc = true
			item = item[1:]
		}
		if name := FieldName(item); name != "" {
			keys = append(keys, SortKey{Field: name, Desc: desc})
		}
	}
	if len(keys) == 0 {
		keys = []SortKey{{Field: DefaultSort, Desc: order == Desc}}
	}
	return keys
}

func parseInt(raw string, def int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// FieldName converts camelCase parameter names to the snake_case names used by
// collections, so createdAt and created_at address the same field.
func FieldName(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
