package catalog

import (
	"strings"
)

// CategoryMapping maps keywords found in a supplier's product type or name
// to canonical catalog categories. Matching is case-insensitive substring
// matching in declaration order, so more specific keywords should come first.
type CategoryMapping struct {
	rules    []categoryRule
	fallback string
}

type categoryRule struct {
	keyword  string
	category string
}

// NewCategoryMapping builds a mapping from ordered keyword/category pairs
// and a fallback category for unmatched product types.
func NewCategoryMapping(pairs [][2]string, fallback string) *CategoryMapping {
	m := &CategoryMapping{fallback: fallback}
	for _, p := range pairs {
		kw := strings.ToLower(strings.TrimSpace(p[0]))
		if kw == "" || p[1] == "" {
			continue
		}
		m.rules = append(m.rules, categoryRule{keyword: kw, category: p[1]})
	}
	return m
}

// Resolve returns the canonical category for the given supplier product type
// and name, falling back to the configured default when nothing matches.
func (m *CategoryMapping) Resolve(productType, name string) string {
	haystack := strings.ToLower(productType + " " + name)
	for _, r := range m.rules {
		if strings.Contains(haystack, r.keyword) {
			return r.category
		}
	}
	return m.fallback
}

// Fallback returns the default category.
func (m *CategoryMapping) Fallback() string {
	return m.fallback
}
