package query

import (
	"strconv"
	"strings"
)

// Kind tells Compose how to convert filter values for a field.
type Kind int

const (
	KindString Kind = iota
	KindUint
)

// Field describes one addressable attribute of a collection.
type Field struct {
	Column string
	Kind   Kind
	// Enum, when set, is the closed set of values a filter may use.
	Enum []string
}

// Collection declares what a listing may touch. Names are the external
// snake_case names clients send; anything not listed is never turned into SQL.
type Collection struct {
	Table  string
	Fields map[string]Field
	// Search lists fields matched by searchTerm.
	Search []string
	// Filter lists fields that may be used as equality filters.
	Filter []string
	// Sort lists fields that may be sorted on besides id.
	Sort []string
	// Project lists fields that may be named in a projection.
	Project []string
	// Keep lists columns selected under every projection.
	Keep []string
}

func (c Collection) column(name string) string {
	f, ok := c.Fields[name]
	if !ok {
		return ""
	}
	return c.Table + "." + f.Column
}

func contains(list []string, name string) bool {
	for _, v := range list {
		if v == name {
			return true
		}
	}
	return false
}

// convert turns raw filter values into typed arguments, dropping values the
// field cannot hold.
func (f Field) convert(raw []string) []any {
	out := make([]any, 0, len(raw))
	for _, v := range raw {
		switch {
		case len(f.Enum) > 0:
			if contains(f.Enum, v) {
				out = append(out, v)
			}
		case f.Kind == KindUint:
			n, err := strconv.ParseUint(v, 10, 64)
			if err == nil {
				out = append(out, uint(n))
			}
		default:
			out = append(out, v)
		}
	}
	return out
}

// likePattern builds a case-insensitive substring pattern with LIKE
// metacharacters escaped.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(term)) + "%"
}
