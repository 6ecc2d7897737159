// Package facet parses facet selections from URL queries, builds the per-facet
// UI state for a result page and applies checkbox toggles back onto the query.
package facet

import (
	"net/url"
	"sort"
	"strings"

	"storefront/internal/domain"
)

const (
	ProductParam = "_sfq"
	ContentParam = "_csfq"
)

// Selected maps a facet name to the values chosen for it, in selection order.
type Selected map[string][]domain.FacetField

// ParamName returns the repeated query parameter that carries facet filters.
func ParamName(content bool) string {
	if content {
		return ContentParam
	}
	return ProductParam
}

// ParseSelected decodes every facetName:'value' entry of the facet filter
// parameter. Entries that do not split into exactly two segments on ':' are
// dropped.
func ParseSelected(query url.Values, content bool) Selected {
	selected := make(Selected)
	for _, raw := range query[ParamName(content)] {
		name, value, ok := parseEntry(raw)
		if !ok {
			continue
		}
		selected[name] = append(selected[name], domain.FacetField{Key: value, Name: value})
	}
	return selected
}

func parseEntry(raw string) (string, string, bool) {
	parts := strings.Split(raw, ":")
	if len(parts) != 2 {
		return "", "", false
	}
	name := strings.TrimSpace(parts[0])
	value := strings.TrimSuffix(strings.TrimPrefix(parts[1], "'"), "'")
	if name == "" || value == "" {
		return "", "", false
	}
	return name, value, true
}

// EncodeSelection renders one selection in its query form.
func EncodeSelection(facetName string, value string) string {
	return facetName + ":'" + value + "'"
}

// EncodeSelected renders a whole selection. Facet names are emitted in sorted
// order, values in selection order.
func EncodeSelected(sel Selected) []string {
	names := make([]string, 0, len(sel))
	for name := range sel {
		names = append(names, name)
	}
	sort.Strings(names)

	encoded := make([]string, 0, len(names))
	for _, name := range names {
		for _, value := range sel[name] {
			encoded = append(encoded, EncodeSelection(name, value.Key))
		}
	}
	return encoded
}

// Clone returns a deep copy of the selection.
func (s Selected) Clone() Selected {
	out := make(Selected, len(s))
	for name, values := range s {
		out[name] = append([]domain.FacetField(nil), values...)
	}
	return out
}

// Has reports whether value is selected for facetName.
func (s Selected) Has(facetName string, value string) bool {
	for _, v := range s[facetName] {
		if v.Key == value {
			return true
		}
	}
	return false
}

// Keys returns the selected value keys of one facet.
func (s Selected) Keys(facetName string) []string {
	values := s[facetName]
	keys := make([]string, 0, len(values))
	for _, v := range values {
		keys = append(keys, v.Key)
	}
	return keys
}

// Map converts the selection into the plain map carried by search requests.
func (s Selected) Map() map[string][]domain.FacetField {
	return map[string][]domain.FacetField(s.Clone())
}
