package facet

import (
	"net/url"
	"sort"
	"strings"

	"storefront/internal/domain"
)

const pageParam = "page"

// Controller owns the facet list of one result page: the parsed selection, the
// UI state and the query string it was built from. It is not safe for
// concurrent use; every toggle is applied in full before the next one.
type Controller struct {
	path     string
	content  bool
	query    url.Values
	facets   []domain.Facet
	selected Selected
	state    State
	opts     Options
}

func NewController(path string, query url.Values, content bool, facets []domain.Facet, opts Options) *Controller {
	q := cloneQuery(query)
	filtered := FilterFacets(facets)
	selected := ParseSelected(q, content)
	return &Controller{
		path:     path,
		content:  content,
		query:    q,
		facets:   filtered,
		selected: selected,
		state:    BuildState(filtered, selected, opts),
		opts:     opts,
	}
}

func (c *Controller) Facets() []domain.Facet { return c.facets }

func (c *Controller) Selected() Selected { return c.selected.Clone() }

func (c *Controller) State() State { return c.state.Clone() }

func (c *Controller) Query() url.Values { return cloneQuery(c.query) }

// Location is the navigation target for the current query.
func (c *Controller) Location() string {
	encoded := c.query.Encode()
	if encoded == "" {
		return c.path
	}
	return c.path + "?" + encoded
}

// Toggle applies a checkbox change and returns the updated query.
func (c *Controller) Toggle(facetName string, value string, checked bool) url.Values {
	if checked {
		return c.Check(facetName, value)
	}
	return c.Uncheck(facetName, value)
}

func (c *Controller) Check(facetName string, value string) url.Values {
	if !c.selected.Has(facetName, value) {
		c.selected[facetName] = append(c.selected[facetName], c.fieldFor(facetName, value))
	}
	c.facetState(facetName).Values[value] = true
	c.syncQuery(facetName, value, true)
	return c.Query()
}

func (c *Controller) Uncheck(facetName string, value string) url.Values {
	if values, ok := c.selected[facetName]; ok {
		kept := make([]domain.FacetField, 0, len(values))
		for _, v := range values {
			if v.Key != value {
				kept = append(kept, v)
			}
		}
		if len(kept) == 0 {
			delete(c.selected, facetName)
		} else {
			c.selected[facetName] = kept
		}
	}
	if fs, ok := c.state[facetName]; ok {
		fs.Values[value] = false
	}
	c.syncQuery(facetName, value, false)
	return c.Query()
}

func (c *Controller) syncQuery(facetName string, value string, add bool) {
	ResetPagination(c.query)

	param := ParamName(c.content)
	encoded := EncodeSelection(facetName, value)
	current := c.query[param]
	next := make([]string, 0, len(current)+1)
	present := false
	for _, entry := range current {
		// match on the decoded pair so unquoted entries like color:red are found too
		if name, v, ok := parseEntry(entry); ok && name == facetName && v == value {
			if add && !present {
				next = append(next, entry)
			}
			present = true
			continue
		}
		next = append(next, entry)
	}
	if add && !present {
		next = append(next, encoded)
	}
	if len(next) == 0 {
		c.query.Del(param)
		return
	}
	c.query[param] = next
}

// ResetPagination forces every page parameter ("page" or "<prefix>:page")
// back to 1, adding page=1 when none exists.
func ResetPagination(q url.Values) {
	found := false
	for key := range q {
		if key == pageParam || strings.HasSuffix(key, ":"+pageParam) {
			q[key] = []string{"1"}
			found = true
		}
	}
	if !found {
		q.Set(pageParam, "1")
	}
}

// ShowMore expands a facet to all of its values.
func (c *Controller) ShowMore(facetName string) {
	if fs, ok := c.state[facetName]; ok {
		fs.Shown = fs.Max
	}
}

// ShowLess collapses a facet back to the configured number of items.
func (c *Controller) ShowLess(facetName string) {
	if fs, ok := c.state[facetName]; ok {
		fs.Shown = min(c.opts.NumDisplayed, fs.Max)
	}
}

func (c *Controller) SetOpen(facetName string, open bool) {
	if fs, ok := c.state[facetName]; ok {
		fs.Open = open
	}
}

func (c *Controller) SetSorting(facetName string, sorting Sorting) {
	if fs, ok := c.state[facetName]; ok {
		fs.Sorting = sorting
	}
}

// SortedValues returns the values of a facet in display order. The facet's
// own slice is never reordered.
func (c *Controller) SortedValues(facetName string) []domain.FacetField {
	for _, f := range c.facets {
		if f.Name != facetName {
			continue
		}
		sorting := SortNone
		if fs, ok := c.state[facetName]; ok {
			sorting = fs.Sorting
		}
		return SortValues(f.Values, sorting)
	}
	return nil
}

// SortValues sorts a shallow clone of values case-insensitively by name.
func SortValues(values []domain.FacetField, sorting Sorting) []domain.FacetField {
	out := append([]domain.FacetField(nil), values...)
	switch sorting {
	case SortAscending:
		sort.SliceStable(out, func(i, j int) bool {
			return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
		})
	case SortDescending:
		sort.SliceStable(out, func(i, j int) bool {
			return strings.ToLower(out[i].Name) > strings.ToLower(out[j].Name)
		})
	}
	return out
}

func (c *Controller) facetState(facetName string) *FacetState {
	fs, ok := c.state[facetName]
	if !ok {
		fs = &FacetState{Sorting: c.opts.sortingFor(facetName), Open: true, Values: map[string]bool{}}
		c.state[facetName] = fs
	}
	return fs
}

func (c *Controller) fieldFor(facetName string, value string) domain.FacetField {
	for _, f := range c.facets {
		if f.Name != facetName {
			continue
		}
		for _, v := range f.Values {
			if v.Key == value {
				return domain.FacetField{Key: v.Key, Name: v.Name}
			}
		}
	}
	return domain.FacetField{Key: value, Name: value}
}

func cloneQuery(q url.Values) url.Values {
	out := make(url.Values, len(q))
	for k, v := range q {
		out[k] = append([]string(nil), v...)
	}
	return out
}
