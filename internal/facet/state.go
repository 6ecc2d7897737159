package facet

import (
	"fmt"

	"storefront/internal/domain"
)

type Sorting string

const (
	SortNone       Sorting = "none"
	SortAscending  Sorting = "ascending"
	SortDescending Sorting = "descending"
)

func ParseSorting(raw string) (Sorting, error) {
	switch Sorting(raw) {
	case SortNone, SortAscending, SortDescending:
		return Sorting(raw), nil
	case "":
		return SortNone, nil
	}
	return SortNone, fmt.Errorf("unknown facet sorting %q", raw)
}

type Options struct {
	NumDisplayed        int
	NumOpened           int
	EnablePriceRange    bool
	PriceField          string
	EnablePrecisionMode bool
	PrecisionField      string
	SortConfig          map[string]Sorting
}

func DefaultOptions() Options {
	return Options{
		NumDisplayed:   5,
		NumOpened:      3,
		PriceField:     "price",
		PrecisionField: "precision",
	}
}

func (o Options) sortingFor(facetName string) Sorting {
	if s, ok := o.SortConfig[facetName]; ok && s != "" {
		return s
	}
	return SortNone
}

type FacetState struct {
	Shown   int             `json:"shown"`
	Max     int             `json:"max"`
	Sorting Sorting         `json:"sorting"`
	Open    bool            `json:"open"`
	Values  map[string]bool `json:"values"`
}

// State maps a facet name to its UI state.
type State map[string]*FacetState

// BuildState derives the facet list state from the filtered server facets and
// the current selection. It is a pure function of its inputs.
func BuildState(filtered []domain.Facet, selected Selected, opts Options) State {
	state := make(State, len(filtered)+2)

	if opts.EnablePriceRange && opts.PriceField != "" {
		state[opts.PriceField] = syntheticState(opts.sortingFor(opts.PriceField))
	}
	if opts.EnablePrecisionMode && opts.PrecisionField != "" {
		if _, exists := state[opts.PrecisionField]; !exists {
			state[opts.PrecisionField] = syntheticState(opts.sortingFor(opts.PrecisionField))
		}
	}

	for index, f := range filtered {
		if _, exists := state[f.Name]; exists {
			continue
		}
		total := len(f.Values)
		if total == 0 {
			state[f.Name] = &FacetState{
				Sorting: opts.sortingFor(f.Name),
				Values:  map[string]bool{},
			}
			continue
		}
		values := make(map[string]bool, total)
		for _, v := range f.Values {
			values[v.Key] = false
		}
		state[f.Name] = &FacetState{
			Shown:   min(opts.NumDisplayed, total),
			Max:     total,
			Sorting: opts.sortingFor(f.Name),
			Open:    index < opts.NumOpened,
			Values:  values,
		}
	}

	for name, values := range selected {
		fs, ok := state[name]
		if !ok {
			fs = &FacetState{Sorting: opts.sortingFor(name), Values: map[string]bool{}}
			state[name] = fs
		}
		fs.Open = true
		for _, v := range values {
			fs.Values[v.Key] = true
		}
	}

	return state
}

func syntheticState(sorting Sorting) *FacetState {
	return &FacetState{Shown: 1, Max: 1, Sorting: sorting, Open: true, Values: map[string]bool{}}
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	out := make(State, len(s))
	for name, fs := range s {
		cp := *fs
		cp.Values = make(map[string]bool, len(fs.Values))
		for k, v := range fs.Values {
			cp.Values[k] = v
		}
		out[name] = &cp
	}
	return out
}
