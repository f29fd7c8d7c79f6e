package core

import (
	"strings"

	"crmcore/pkg/domain"
)

// Criteria selects records from a collection. Search is matched as a
// case-insensitive substring against the record's search fields; every
// non-empty entry of Filters must equal the record's rendering of that field.
// Empty criteria select everything.
type Criteria struct {
	Search  string            `json:"search,omitempty" yaml:"search,omitempty"`
	Filters map[string]string `json:"filters,omitempty" yaml:"filters,omitempty"`
}

// Active reports whether any predicate narrows the result.
func (c Criteria) Active() bool {
	if c.Search != "" {
		return true
	}
	for _, v := range c.Filters {
		if v != "" {
			return true
		}
	}
	return false
}

// Filter returns the records matching c in their original order. The input
// slice and its records are not modified.
func Filter(records []domain.Record, c Criteria) []domain.Record {
	out := make([]domain.Record, 0, len(records))
	term := strings.ToLower(c.Search)
	for _, r := range records {
		if matchesSearch(r, term) && matchesFilters(r, c.Filters) {
			out = append(out, r)
		}
	}
	return out
}

// Matches reports whether a single record satisfies c.
func Matches(r domain.Record, c Criteria) bool {
	return matchesSearch(r, strings.ToLower(c.Search)) && matchesFilters(r, c.Filters)
}

func matchesSearch(r domain.Record, term string) bool {
	if term == "" {
		return true
	}
	for _, field := range r.SearchFields() {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

// matchesFilters treats fields the record does not expose as non-matching.
func matchesFilters(r domain.Record, filters map[string]string) bool {
	for field, want := range filters {
		if want == "" {
			continue
		}
		got, ok := r.FieldValue(field)
		if !ok || got != want {
			return false
		}
	}
	return true
}
