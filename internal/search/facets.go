package search

import (
	"sort"
	"strconv"
	"strings"
	"unicode"

	"storefront/internal/domain"
)

type dimension[T any] struct {
	name   string
	kind   string
	values func(T) []domain.FacetField
	number func(T) int64
	match  func(T, []domain.FacetField) bool
}

func termDimension[T any](name string, extract func(T) []string) dimension[T] {
	return dimension[T]{
		name: name,
		kind: domain.FacetTypeTerms,
		values: func(item T) []domain.FacetField {
			raw := extract(item)
			out := make([]domain.FacetField, 0, len(raw))
			for _, v := range raw {
				if v == "" {
					continue
				}
				out = append(out, domain.FacetField{Key: v, Name: v})
			}
			return out
		},
		match: func(item T, selected []domain.FacetField) bool {
			for _, v := range extract(item) {
				for _, s := range selected {
					if strings.EqualFold(v, s.Key) {
						return true
					}
				}
			}
			return false
		},
	}
}

// categoryDimension keys values by category id; parent and tree path are
// resolved from the product's own category list.
func categoryDimension() dimension[domain.Product] {
	return dimension[domain.Product]{
		name: FacetCategory,
		kind: domain.FacetTypeTerms,
		values: func(p domain.Product) []domain.FacetField {
			names := make(map[string]string, len(p.Categories))
			for _, c := range p.Categories {
				names[c.ID] = c.Name
			}
			out := make([]domain.FacetField, 0, len(p.Categories))
			for _, c := range p.Categories {
				f := domain.FacetField{
					Key:      c.ID,
					Name:     c.Name,
					CatID:    c.ID,
					CatName:  c.Name,
					TreePath: []string{c.Name},
				}
				if parent, ok := names[c.ParentID]; ok {
					f.Parent = parent
					f.TreePath = []string{parent, c.Name}
				}
				out = append(out, f)
			}
			return out
		},
		match: func(p domain.Product, selected []domain.FacetField) bool {
			for _, c := range p.Categories {
				for _, s := range selected {
					if c.ID == s.Key {
						return true
					}
				}
			}
			return false
		},
	}
}

// priceDimension accepts "min-max" selections in cents. Either bound may be
// empty; malformed ranges match nothing.
func priceDimension(name string) dimension[domain.Product] {
	return dimension[domain.Product]{
		name:   name,
		kind:   domain.FacetTypeNumberStats,
		number: func(p domain.Product) int64 { return p.PriceCents },
		match: func(p domain.Product, selected []domain.FacetField) bool {
			for _, s := range selected {
				lo, hi, ok := parseRange(s.Key)
				if ok && p.PriceCents >= lo && p.PriceCents <= hi {
					return true
				}
			}
			return false
		},
	}
}

func parseRange(raw string) (int64, int64, bool) {
	loRaw, hiRaw, found := strings.Cut(raw, "-")
	if !found {
		return 0, 0, false
	}
	lo, hi := int64(0), int64(1<<62)
	var err error
	if s := strings.TrimSpace(loRaw); s != "" {
		if lo, err = strconv.ParseInt(s, 10, 64); err != nil {
			return 0, 0, false
		}
	}
	if s := strings.TrimSpace(hiRaw); s != "" {
		if hi, err = strconv.ParseInt(s, 10, 64); err != nil {
			return 0, 0, false
		}
	}
	if lo > hi {
		return 0, 0, false
	}
	return lo, hi, true
}

// facetSearch returns the items passing text and every selection, plus one
// facet per dimension. Each facet is counted with every other dimension's
// selection applied but not its own, so sibling values stay visible.
func facetSearch[T any](items []T, text func(T) bool, dims []dimension[T], selected map[string][]domain.FacetField) ([]T, []domain.Facet) {
	passes := func(item T, skip string) bool {
		if !text(item) {
			return false
		}
		for _, d := range dims {
			if d.name == skip {
				continue
			}
			if sel := selected[d.name]; len(sel) > 0 && !d.match(item, sel) {
				return false
			}
		}
		return true
	}

	matched := make([]T, 0, len(items))
	for _, item := range items {
		if passes(item, "") {
			matched = append(matched, item)
		}
	}

	facets := make([]domain.Facet, 0, len(dims))
	for _, d := range dims {
		switch d.kind {
		case domain.FacetTypeNumberStats:
			var lo, hi int64
			seen := false
			for _, item := range items {
				if !passes(item, d.name) {
					continue
				}
				n := d.number(item)
				if !seen || n < lo {
					lo = n
				}
				if !seen || n > hi {
					hi = n
				}
				seen = true
			}
			if seen {
				facets = append(facets, domain.Facet{Name: d.name, Type: d.kind, Values: []domain.FacetField{}, Min: &lo, Max: &hi})
			}
		default:
			counts := map[string]*domain.FacetField{}
			order := []string{}
			for _, item := range items {
				if !passes(item, d.name) {
					continue
				}
				for _, v := range d.values(item) {
					if existing, ok := counts[v.Key]; ok {
						existing.Count++
						continue
					}
					v.Count = 1
					counts[v.Key] = &v
					order = append(order, v.Key)
				}
			}
			if len(order) == 0 {
				continue
			}
			values := make([]domain.FacetField, 0, len(order))
			for _, key := range order {
				values = append(values, *counts[key])
			}
			sort.SliceStable(values, func(i, j int) bool {
				if values[i].Count != values[j].Count {
					return values[i].Count > values[j].Count
				}
				return strings.ToLower(values[i].Name) < strings.ToLower(values[j].Name)
			})
			facets = append(facets, domain.Facet{Name: d.name, Type: d.kind, Values: values})
		}
	}
	return matched, facets
}

// textMatcher matches when every query term occurs in one of the fields, as a
// substring or, when exact, as a whole word.
func textMatcher(text string, exact bool) func(fields ...string) bool {
	terms := strings.Fields(strings.ToLower(text))
	if len(terms) == 0 {
		return func(...string) bool { return true }
	}
	return func(fields ...string) bool {
		haystack := strings.ToLower(strings.Join(fields, " "))
		var words map[string]bool
		if exact {
			words = map[string]bool{}
			for _, w := range strings.FieldsFunc(haystack, func(r rune) bool {
				return !unicode.IsLetter(r) && !unicode.IsDigit(r)
			}) {
				words[w] = true
			}
		}
		for _, term := range terms {
			if exact {
				if !words[term] {
					return false
				}
			} else if !strings.Contains(haystack, term) {
				return false
			}
		}
		return true
	}
}
