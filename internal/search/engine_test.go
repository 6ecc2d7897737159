package search

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
	"storefront/internal/metrics"
	"storefront/internal/store/memory"
)

type mapCache struct {
	items map[string][]byte
	sets  int
}

func (c *mapCache) Get(_ context.Context, key string, dest any) (bool, error) {
	raw, ok := c.items[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *mapCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.sets++
	c.items[key] = raw
	return nil
}

func catalog(t *testing.T) ([]domain.Product, []domain.Document) {
	t.Helper()
	repo := memory.NewSeeded()
	products, err := repo.ListProducts(context.Background())
	require.NoError(t, err)
	docs, err := repo.ListDocuments(context.Background())
	require.NoError(t, err)
	return products, docs
}

func facetByName(t *testing.T, facets []domain.Facet, name string) domain.Facet {
	t.Helper()
	for _, f := range facets {
		if f.Name == name {
			return f
		}
	}
	t.Fatalf("facet %q not found", name)
	return domain.Facet{}
}

func sel(pairs ...string) map[string][]domain.FacetField {
	out := map[string][]domain.FacetField{}
	for i := 0; i+1 < len(pairs); i += 2 {
		out[pairs[i]] = append(out[pairs[i]], domain.FacetField{Key: pairs[i+1], Name: pairs[i+1]})
	}
	return out
}

func TestProductsDisjunctiveCounts(t *testing.T) {
	products, _ := catalog(t)
	e := NewEngine(nil, time.Minute, Fields{})

	res := e.Products(context.Background(), domain.SearchRequest{Selected: sel("color", "red")}, products)

	assert.Equal(t, 2, res.Total)
	color := facetByName(t, res.Facets, FacetColor)
	require.Len(t, color.Values, 5)
	assert.Equal(t, "white", color.Values[0].Key)
	assert.Equal(t, 3, color.Values[0].Count)

	brand := facetByName(t, res.Facets, FacetBrand)
	assert.Len(t, brand.Values, 2)

	price := facetByName(t, res.Facets, "price")
	assert.Equal(t, domain.FacetTypeNumberStats, price.Type)
	require.NotNil(t, price.Min)
	assert.Equal(t, int64(4500), *price.Min)
	assert.Equal(t, int64(8900), *price.Max)
}

func TestProductsCategoryValuesCarryHierarchy(t *testing.T) {
	products, _ := catalog(t)
	e := NewEngine(nil, time.Minute, Fields{})

	res := e.Products(context.Background(), domain.SearchRequest{Selected: sel("color", "red")}, products)

	category := facetByName(t, res.Facets, FacetCategory)
	byID := map[string]domain.FacetField{}
	for _, v := range category.Values {
		byID[v.CatID] = v
	}
	require.Contains(t, byID, "cat-women-shirts")
	assert.Equal(t, "Women", byID["cat-women-shirts"].Parent)
	assert.Equal(t, []string{"Women", "Shirts"}, byID["cat-women-shirts"].TreePath)
	assert.Equal(t, "", byID["cat-men"].Parent)
}

func TestProductsPriceRangeAndCategory(t *testing.T) {
	products, _ := catalog(t)
	e := NewEngine(nil, time.Minute, Fields{})
	ctx := context.Background()

	res := e.Products(ctx, domain.SearchRequest{Selected: sel("price", "4000-6000")}, products)
	assert.Equal(t, 3, res.Total)

	res = e.Products(ctx, domain.SearchRequest{Selected: sel("price", "4000-6000", "color", "red")}, products)
	require.Equal(t, 1, res.Total)
	assert.Equal(t, "P-1003", res.Products[0].ID)

	res = e.Products(ctx, domain.SearchRequest{Selected: sel("price", "abc")}, products)
	assert.Equal(t, 0, res.Total)

	res = e.Products(ctx, domain.SearchRequest{Selected: sel("category", "cat-women-dresses")}, products)
	assert.Equal(t, 2, res.Total)
}

func TestProductsPrecisionMode(t *testing.T) {
	products, _ := catalog(t)
	e := NewEngine(nil, time.Minute, Fields{})
	ctx := context.Background()

	loose := e.Products(ctx, domain.SearchRequest{Text: "shoe"}, products)
	assert.Equal(t, 2, loose.Total)

	exact := e.Products(ctx, domain.SearchRequest{Text: "shoe", Selected: sel("precision", "exact")}, products)
	assert.Equal(t, 0, exact.Total)

	exact = e.Products(ctx, domain.SearchRequest{Text: "shoes", Selected: sel("precision", "exact")}, products)
	assert.Equal(t, 2, exact.Total)
}

func TestProductsPagination(t *testing.T) {
	products, _ := catalog(t)
	e := NewEngine(nil, time.Minute, Fields{})

	res := e.Products(context.Background(), domain.SearchRequest{Page: 2, PageSize: 4}, products)
	assert.Equal(t, 9, res.Total)
	require.Len(t, res.Products, 4)
	assert.Equal(t, "P-1005", res.Products[0].ID)

	res = e.Products(context.Background(), domain.SearchRequest{Page: 5, PageSize: 4}, products)
	assert.Empty(t, res.Products)
}

func TestContentFacets(t *testing.T) {
	_, docs := catalog(t)
	e := NewEngine(nil, time.Minute, Fields{})

	res := e.Content(context.Background(), domain.SearchRequest{Selected: sel("content_type", "article")}, docs)

	require.Equal(t, 3, res.Total)
	assert.Equal(t, "D-04", res.Documents[0].ID)
	tags := facetByName(t, res.Facets, FacetTag)
	assert.Equal(t, "style", tags.Values[0].Key)
	assert.Equal(t, 2, tags.Values[0].Count)

	types := facetByName(t, res.Facets, FacetContentType)
	assert.Len(t, types.Values, 3)
}

func TestResultsAreCached(t *testing.T) {
	products, _ := catalog(t)
	c := &mapCache{items: map[string][]byte{}}
	reg := metrics.NewRegistry()
	e := NewEngine(c, time.Minute, Fields{}, WithMetrics(reg))
	req := domain.SearchRequest{Text: "shirt", Selected: sel("size", "M")}

	first := e.Products(context.Background(), req, products)
	second := e.Products(context.Background(), req, products)

	assert.Equal(t, first.Total, second.Total)
	assert.Equal(t, 1, c.sets)
	assert.Equal(t, float64(1), testutil.ToFloat64(reg.SearchCacheHits))
}

func TestBuildCacheKeyIgnoresSelectionOrder(t *testing.T) {
	a := domain.SearchRequest{Selected: map[string][]domain.FacetField{
		"color": {{Key: "red"}, {Key: "blue"}},
		"size":  {{Key: "M"}},
	}}
	b := domain.SearchRequest{Selected: map[string][]domain.FacetField{
		"size":  {{Key: "M"}},
		"color": {{Key: "blue"}, {Key: "red"}},
	}}
	assert.Equal(t, buildCacheKey("products", a, "v1"), buildCacheKey("products", b, "v1"))
	assert.NotEqual(t, buildCacheKey("products", a, "v1"), buildCacheKey("content", a, "v1"))
}

func TestProductsHugePageIsEmpty(t *testing.T) {
	products, _ := catalog(t)
	e := NewEngine(nil, time.Minute, Fields{})

	res := e.Products(context.Background(), domain.SearchRequest{Page: 500000000000000000}, products)

	assert.Equal(t, 9, res.Total)
	assert.Empty(t, res.Products)

	_, docs := catalog(t)
	content := e.Content(context.Background(), domain.SearchRequest{Page: 1 << 62, PageSize: maxPageSize}, docs)
	assert.Empty(t, content.Documents)
}

func TestCatalogEditsMissTheCache(t *testing.T) {
	products, _ := catalog(t)
	c := &mapCache{items: map[string][]byte{}}
	e := NewEngine(c, time.Minute, Fields{})
	req := domain.SearchRequest{Selected: sel("price", "4000-6000")}

	before := e.Products(context.Background(), req, products)
	require.Equal(t, 3, before.Total)

	edited := append([]domain.Product(nil), products...)
	for i := range edited {
		if edited[i].ID == "P-1003" {
			edited[i].PriceCents = 9900
		}
	}
	after := e.Products(context.Background(), req, edited)

	assert.Equal(t, 2, after.Total)
	assert.Equal(t, 2, c.sets)
	assert.NotEqual(t, catalogVersion(products), catalogVersion(edited))
}
