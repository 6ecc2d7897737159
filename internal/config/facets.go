package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"storefront/internal/facet"
)

// LoadFacetSorting reads the static facet sort-order file (facet name to
// none|ascending|descending). JSON files parse as YAML. An empty path yields
// an empty config.
func LoadFacetSorting(path string) (map[string]facet.Sorting, error) {
	if path == "" {
		return map[string]facet.Sorting{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read facet sort config: %w", err)
	}
	return ParseFacetSorting(raw)
}

func ParseFacetSorting(raw []byte) (map[string]facet.Sorting, error) {
	entries := map[string]string{}
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse facet sort config: %w", err)
	}
	out := make(map[string]facet.Sorting, len(entries))
	for name, value := range entries {
		sorting, err := facet.ParseSorting(value)
		if err != nil {
			return nil, fmt.Errorf("facet %q: %w", name, err)
		}
		out[name] = sorting
	}
	return out, nil
}

// FacetOptions builds the facet state options from the loaded config.
func (c Config) FacetOptions(sorting map[string]facet.Sorting) facet.Options {
	return facet.Options{
		NumDisplayed:        c.FacetDisplayedItems,
		NumOpened:           c.FacetOpened,
		EnablePriceRange:    c.FacetPriceRange,
		PriceField:          c.FacetPriceField,
		EnablePrecisionMode: c.FacetPrecisionMode,
		PrecisionField:      c.FacetPrecisionField,
		SortConfig:          sorting,
	}
}
