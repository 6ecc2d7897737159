// Package search filters the catalog and CMS documents by free text and facet
// selections, and computes the facet counts shown next to the results.
package search

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"storefront/internal/cache"
	"storefront/internal/domain"
	"storefront/internal/metrics"
)

const (
	FacetBrand       = "brand"
	FacetColor       = "color"
	FacetSize        = "size"
	FacetCategory    = "category"
	FacetContentType = "content_type"
	FacetTag         = "tag"

	// PrecisionExact switches text matching to whole words.
	PrecisionExact = "exact"

	defaultPageSize = 24
	maxPageSize     = 100
)

// Fields names the synthetic facets understood by the engine.
type Fields struct {
	Price     string
	Precision string
}

type Engine struct {
	cache    cache.SearchCache
	cacheTTL time.Duration
	fields   Fields
	metrics  *metrics.Registry
	logger   *zap.Logger
}

type Option func(*Engine)

func WithMetrics(m *metrics.Registry) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func NewEngine(cacheStore cache.SearchCache, cacheTTL time.Duration, fields Fields, opts ...Option) *Engine {
	if cacheStore == nil {
		cacheStore = cache.NoopSearchCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	if fields.Price == "" {
		fields.Price = "price"
	}
	if fields.Precision == "" {
		fields.Precision = "precision"
	}

	e := &Engine{
		cache:    cacheStore,
		cacheTTL: cacheTTL,
		fields:   fields,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Products(ctx context.Context, req domain.SearchRequest, products []domain.Product) domain.ProductSearchResult {
	startedAt := time.Now()
	defer e.observe("products", startedAt)

	req = normalizeRequest(req)
	cacheKey := buildCacheKey("products", req, catalogVersion(products))
	var cached domain.ProductSearchResult
	if ok, err := e.cache.Get(ctx, cacheKey, &cached); err == nil && ok {
		e.hit()
		return cached
	}

	match := textMatcher(req.Text, e.exact(req))
	dims := []dimension[domain.Product]{
		termDimension(FacetBrand, func(p domain.Product) []string { return []string{p.Brand} }),
		termDimension(FacetColor, func(p domain.Product) []string { return []string{p.Color} }),
		termDimension(FacetSize, func(p domain.Product) []string { return []string{p.Size} }),
		categoryDimension(),
		priceDimension(e.fields.Price),
	}
	matched, facets := facetSearch(products, func(p domain.Product) bool {
		return match(p.Name, p.Brand, p.Color)
	}, dims, req.Selected)

	resp := domain.ProductSearchResult{
		Products: page(matched, req.Page, req.PageSize),
		Total:    len(matched),
		Page:     req.Page,
		PageSize: req.PageSize,
		Facets:   facets,
	}
	e.store(ctx, cacheKey, &resp)
	return resp
}

func (e *Engine) Content(ctx context.Context, req domain.SearchRequest, docs []domain.Document) domain.ContentSearchResult {
	startedAt := time.Now()
	defer e.observe("content", startedAt)

	req = normalizeRequest(req)
	cacheKey := buildCacheKey("content", req, catalogVersion(docs))
	var cached domain.ContentSearchResult
	if ok, err := e.cache.Get(ctx, cacheKey, &cached); err == nil && ok {
		e.hit()
		return cached
	}

	sorted := append([]domain.Document(nil), docs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PublishedAt.After(sorted[j].PublishedAt)
	})

	match := textMatcher(req.Text, e.exact(req))
	dims := []dimension[domain.Document]{
		termDimension(FacetContentType, func(d domain.Document) []string { return []string{d.ContentType} }),
		termDimension(FacetTag, func(d domain.Document) []string { return d.Tags }),
	}
	matched, facets := facetSearch(sorted, func(d domain.Document) bool {
		return match(d.Title, d.Summary)
	}, dims, req.Selected)

	resp := domain.ContentSearchResult{
		Documents: page(matched, req.Page, req.PageSize),
		Total:     len(matched),
		Page:      req.Page,
		PageSize:  req.PageSize,
		Facets:    facets,
	}
	e.store(ctx, cacheKey, &resp)
	return resp
}

func (e *Engine) exact(req domain.SearchRequest) bool {
	for _, v := range req.Selected[e.fields.Precision] {
		if strings.EqualFold(v.Key, PrecisionExact) {
			return true
		}
	}
	return false
}

func (e *Engine) store(ctx context.Context, key string, value any) {
	if err := e.cache.Set(ctx, key, value, e.cacheTTL); err != nil {
		e.logger.Warn("search cache set failed", zap.Error(err))
	}
}

func (e *Engine) observe(kind string, startedAt time.Time) {
	if e.metrics != nil {
		e.metrics.SearchLatencySec.WithLabelValues(kind).Observe(time.Since(startedAt).Seconds())
	}
}

func (e *Engine) hit() {
	if e.metrics != nil {
		e.metrics.SearchCacheHits.Inc()
	}
}

func normalizeRequest(req domain.SearchRequest) domain.SearchRequest {
	req.Text = strings.TrimSpace(req.Text)
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 {
		req.PageSize = defaultPageSize
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}
	return req
}

func page[T any](items []T, pageNum int, pageSize int) []T {
	// compare page counts before multiplying so huge page numbers cannot overflow
	if len(items) == 0 || pageNum-1 > (len(items)-1)/pageSize {
		return []T{}
	}
	start := (pageNum - 1) * pageSize
	end := min(start+pageSize, len(items))
	return append([]T(nil), items[start:end]...)
}

// catalogVersion fingerprints the catalog contents so edits to prices or
// attributes miss the cache instead of serving stale facets.
func catalogVersion[T any](items []T) string {
	h := sha1.New()
	if err := json.NewEncoder(h).Encode(items); err != nil {
		return fmt.Sprintf("n%d", len(items))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func buildCacheKey(kind string, req domain.SearchRequest, version string) string {
	names := make([]string, 0, len(req.Selected))
	for name := range req.Selected {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names)+4)
	parts = append(parts, kind, strings.ToLower(req.Text))
	for _, name := range names {
		keys := make([]string, 0, len(req.Selected[name]))
		for _, v := range req.Selected[name] {
			keys = append(keys, v.Key)
		}
		sort.Strings(keys)
		parts = append(parts, name+"="+strings.Join(keys, ","))
	}
	parts = append(parts, fmt.Sprintf("p:%d:%d", req.Page, req.PageSize), "v:"+version)

	hash := sha1.Sum([]byte(strings.Join(parts, "|")))
	return "storefront:search:" + hex.EncodeToString(hash[:])
}
