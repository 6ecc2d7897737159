package facet

import (
	"storefront/internal/domain"
)

// FilterFacets prepares the server facet response for state building. Value
// keys are derived once here (category id when present, otherwise the name);
// values without a key and duplicate keys are dropped. Category values whose
// display names collide get their parent appended to the label. The input is
// left untouched.
func FilterFacets(raw []domain.Facet) []domain.Facet {
	filtered := make([]domain.Facet, 0, len(raw))
	for _, f := range raw {
		if f.Name == "" {
			continue
		}
		out := f
		out.Values = make([]domain.FacetField, 0, len(f.Values))
		seen := make(map[string]struct{}, len(f.Values))
		for _, v := range f.Values {
			v.Key = valueKey(v)
			if v.Key == "" {
				continue
			}
			if _, dup := seen[v.Key]; dup {
				continue
			}
			seen[v.Key] = struct{}{}
			if len(v.TreePath) > 0 {
				v.TreePath = append([]string(nil), v.TreePath...)
			}
			out.Values = append(out.Values, v)
		}
		disambiguate(out.Values)
		filtered = append(filtered, out)
	}
	return filtered
}

func valueKey(v domain.FacetField) string {
	if v.CatID != "" {
		return v.CatID
	}
	if v.Key != "" {
		return v.Key
	}
	return v.Name
}

func disambiguate(values []domain.FacetField) {
	names := make(map[string]int, len(values))
	for _, v := range values {
		if v.CatID != "" {
			names[v.Name]++
		}
	}
	for i := range values {
		v := &values[i]
		if v.CatID == "" || v.Parent == "" || names[v.Name] < 2 {
			continue
		}
		if v.CatName == "" {
			v.CatName = v.Name
		}
		v.Name = v.CatName + " (" + v.Parent + ")"
	}
}
