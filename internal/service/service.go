package service

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"storefront/internal/cart"
	"storefront/internal/checkout"
	"storefront/internal/domain"
	"storefront/internal/facet"
	"storefront/internal/metrics"
	"storefront/internal/search"
	"storefront/internal/store"
)

const (
	defaultSearchPath  = "/search"
	defaultContentPath = "/content"
	maxPageSize        = 100
	maxPage            = 10000
)

// ProductPage is one page of product results together with the facet list
// state the storefront renders next to it.
type ProductPage struct {
	Products []domain.Product `json:"products"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	Facets   []domain.Facet   `json:"facets"`
	Selected facet.Selected   `json:"selected"`
	State    facet.State      `json:"state"`
}

type ContentPage struct {
	Documents []domain.Document `json:"documents"`
	Total     int               `json:"total"`
	Page      int               `json:"page"`
	PageSize  int               `json:"page_size"`
	Facets    []domain.Facet    `json:"facets"`
	Selected  facet.Selected    `json:"selected"`
	State     facet.State       `json:"state"`
}

type ToggleResult struct {
	Query    string         `json:"query"`
	Location string         `json:"location"`
	Selected facet.Selected `json:"selected"`
	State    facet.State    `json:"state"`
}

type Service struct {
	repo      store.Repository
	engine    *search.Engine
	cart      *cart.Service
	checkout  *checkout.Controller
	metrics   *metrics.Registry
	logger    *zap.Logger

	mu        sync.RWMutex
	facetOpts facet.Options
}

type Deps struct {
	Repo      store.Repository
	Engine    *search.Engine
	Cart      *cart.Service
	Checkout  *checkout.Controller
	FacetOpts facet.Options
	Metrics   *metrics.Registry
	Logger    *zap.Logger
}

func New(deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	engine := deps.Engine
	if engine == nil {
		engine = search.NewEngine(nil, 0, search.Fields{
			Price:     deps.FacetOpts.PriceField,
			Precision: deps.FacetOpts.PrecisionField,
		})
	}

	return &Service{
		repo:      deps.Repo,
		engine:    engine,
		cart:      deps.Cart,
		checkout:  deps.Checkout,
		facetOpts: deps.FacetOpts,
		metrics:   deps.Metrics,
		logger:    logger,
	}
}

func (s *Service) SearchProducts(ctx context.Context, path string, query url.Values) (ProductPage, error) {
	if path == "" {
		path = defaultSearchPath
	}
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return ProductPage{}, fmt.Errorf("list products: %w", err)
	}

	res := s.engine.Products(ctx, s.searchRequest(query, false), products)
	ctrl := facet.NewController(path, query, false, res.Facets, s.options())
	return ProductPage{
		Products: res.Products,
		Total:    res.Total,
		Page:     res.Page,
		PageSize: res.PageSize,
		Facets:   ctrl.Facets(),
		Selected: ctrl.Selected(),
		State:    ctrl.State(),
	}, nil
}

func (s *Service) SearchContent(ctx context.Context, path string, query url.Values) (ContentPage, error) {
	if path == "" {
		path = defaultContentPath
	}
	docs, err := s.repo.ListDocuments(ctx)
	if err != nil {
		return ContentPage{}, fmt.Errorf("list documents: %w", err)
	}

	res := s.engine.Content(ctx, s.searchRequest(query, true), docs)
	ctrl := facet.NewController(path, query, true, res.Facets, s.options())
	return ContentPage{
		Documents: res.Documents,
		Total:     res.Total,
		Page:      res.Page,
		PageSize:  res.PageSize,
		Facets:    ctrl.Facets(),
		Selected:  ctrl.Selected(),
		State:     ctrl.State(),
	}, nil
}

// ToggleFacet applies one checkbox change to the given query. The facet list
// is taken from a search of the query as it was before the change.
func (s *Service) ToggleFacet(ctx context.Context, req domain.FacetToggleRequest) (ToggleResult, error) {
	req.Facet = strings.TrimSpace(req.Facet)
	req.Value = strings.TrimSpace(req.Value)
	if req.Facet == "" || req.Value == "" || strings.Contains(req.Facet, ":") || strings.Contains(req.Value, ":") {
		return ToggleResult{}, store.ErrInvalidInput
	}
	query, err := url.ParseQuery(strings.TrimPrefix(req.Query, "?"))
	if err != nil {
		return ToggleResult{}, fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
	}

	var facets []domain.Facet
	path := req.Path
	if req.Content {
		page, err := s.SearchContent(ctx, path, query)
		if err != nil {
			return ToggleResult{}, err
		}
		facets = page.Facets
		if path == "" {
			path = defaultContentPath
		}
	} else {
		page, err := s.SearchProducts(ctx, path, query)
		if err != nil {
			return ToggleResult{}, err
		}
		facets = page.Facets
		if path == "" {
			path = defaultSearchPath
		}
	}

	ctrl := facet.NewController(path, query, req.Content, facets, s.options())
	next := ctrl.Toggle(req.Facet, req.Value, req.Checked)
	if s.metrics != nil {
		action := "uncheck"
		if req.Checked {
			action = "check"
		}
		s.metrics.FacetToggles.WithLabelValues(action).Inc()
	}
	s.logger.Debug("facet toggled",
		zap.String("facet", req.Facet),
		zap.String("value", req.Value),
		zap.Bool("checked", req.Checked),
	)

	return ToggleResult{
		Query:    next.Encode(),
		Location: ctrl.Location(),
		Selected: ctrl.Selected(),
		State:    ctrl.State(),
	}, nil
}

// SetFacetSorting swaps the per-facet sort order used for new result pages.
func (s *Service) SetFacetSorting(sorting map[string]facet.Sorting) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.facetOpts.SortConfig = sorting
}

func (s *Service) options() facet.Options {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.facetOpts
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	p, err := s.repo.GetProduct(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Product{}, err
	}
	return *p, nil
}

func (s *Service) Cart(ctx context.Context, sessionID string) (domain.Cart, error) {
	return s.cart.Get(ctx, sessionID)
}

func (s *Service) AddToCart(ctx context.Context, sessionID string, req domain.CartAddRequest) (domain.Cart, error) {
	if req.Qty == 0 {
		req.Qty = 1
	}
	return s.cart.Add(ctx, sessionID, req)
}

func (s *Service) UpdateCartItem(ctx context.Context, sessionID string, productID string, req domain.CartUpdateRequest) (domain.Cart, error) {
	return s.cart.SetQty(ctx, sessionID, strings.TrimSpace(productID), req.Qty)
}

func (s *Service) RemoveCartItem(ctx context.Context, sessionID string, productID string) (domain.Cart, error) {
	return s.cart.Remove(ctx, sessionID, strings.TrimSpace(productID))
}

func (s *Service) ClearCart(ctx context.Context, sessionID string) error {
	return s.cart.Clear(ctx, sessionID)
}

func (s *Service) CheckoutView(ctx context.Context, sessionID string) (checkout.View, error) {
	return s.checkout.View(ctx, sessionID)
}

func (s *Service) ProceedToBilling(ctx context.Context, sessionID string) (checkout.View, error) {
	return s.checkout.Proceed(ctx, sessionID)
}

func (s *Service) SubmitBilling(ctx context.Context, sessionID string, req domain.BillingRequest) (checkout.View, error) {
	return s.checkout.SubmitBilling(ctx, sessionID, req)
}

func (s *Service) ConfirmOrder(ctx context.Context, sessionID string) (checkout.View, error) {
	return s.checkout.Confirm(ctx, sessionID)
}

func (s *Service) ListOrders(ctx context.Context, sessionID string, limit int) ([]domain.Order, error) {
	return s.checkout.Orders(ctx, sessionID, limit)
}

func (s *Service) searchRequest(query url.Values, content bool) domain.SearchRequest {
	return domain.SearchRequest{
		Text:     strings.TrimSpace(query.Get("q")),
		Selected: facet.ParseSelected(query, content).Map(),
		Page:     parsePositive(query.Get("page"), 1, maxPage),
		PageSize: parsePositive(query.Get("page_size"), 0, maxPageSize),
	}
}

func parsePositive(raw string, fallback int, max int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return fallback
	}
	if max > 0 && n > max {
		return max
	}
	return n
}
