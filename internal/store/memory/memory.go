package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"storefront/internal/domain"
	"storefront/internal/store"
)

type Store struct {
	mu              sync.RWMutex
	products        map[string]domain.Product
	productOrder    []string
	documents       []domain.Document
	ordersBySession map[string][]domain.Order
}

func New(products []domain.Product, documents []domain.Document) *Store {
	s := &Store{
		products:        make(map[string]domain.Product, len(products)),
		productOrder:    make([]string, 0, len(products)),
		documents:       append([]domain.Document(nil), documents...),
		ordersBySession: make(map[string][]domain.Order),
	}
	for _, p := range products {
		if _, exists := s.products[p.ID]; !exists {
			s.productOrder = append(s.productOrder, p.ID)
		}
		s.products[p.ID] = p
	}
	return s
}

func NewSeeded() *Store {
	men := domain.Category{ID: "cat-men", Name: "Men"}
	women := domain.Category{ID: "cat-women", Name: "Women"}
	menShirts := domain.Category{ID: "cat-men-shirts", Name: "Shirts", ParentID: men.ID}
	womenShirts := domain.Category{ID: "cat-women-shirts", Name: "Shirts", ParentID: women.ID}
	menShoes := domain.Category{ID: "cat-men-shoes", Name: "Shoes", ParentID: men.ID}
	womenDresses := domain.Category{ID: "cat-women-dresses", Name: "Dresses", ParentID: women.ID}

	products := []domain.Product{
		{ID: "P-1001", Name: "Oxford Cotton Shirt", Brand: "Northwind", Color: "blue", Size: "M", PriceCents: 4900, Categories: []domain.Category{men, menShirts}, Active: true},
		{ID: "P-1002", Name: "Linen Camp Shirt", Brand: "Umbra", Color: "white", Size: "L", PriceCents: 5900, Categories: []domain.Category{men, menShirts}, Active: true},
		{ID: "P-1003", Name: "Flannel Check Shirt", Brand: "Northwind", Color: "red", Size: "S", PriceCents: 4500, Categories: []domain.Category{men, menShirts}, Active: true},
		{ID: "P-1004", Name: "Silk Blouse Shirt", Brand: "Vela", Color: "red", Size: "S", PriceCents: 8900, Categories: []domain.Category{women, womenShirts}, Active: true},
		{ID: "P-1005", Name: "Poplin Shirt", Brand: "Acme", Color: "white", Size: "M", PriceCents: 3900, Categories: []domain.Category{women, womenShirts}, Active: true},
		{ID: "P-1006", Name: "Wrap Midi Dress", Brand: "Vela", Color: "green", Size: "M", PriceCents: 12900, Categories: []domain.Category{women, womenDresses}, Active: true},
		{ID: "P-1007", Name: "Slip Dress", Brand: "Umbra", Color: "black", Size: "S", PriceCents: 9900, Categories: []domain.Category{women, womenDresses}, Active: true},
		{ID: "P-1008", Name: "Leather Derby Shoes", Brand: "Acme", Color: "black", Size: "L", PriceCents: 15900, Categories: []domain.Category{men, menShoes}, Active: true},
		{ID: "P-1009", Name: "Canvas Sneaker Shoes", Brand: "Zephyr", Color: "white", Size: "M", PriceCents: 6900, Categories: []domain.Category{men, menShoes}, Active: true},
		{ID: "P-1010", Name: "Retired Denim Shirt", Brand: "Northwind", Color: "blue", Size: "L", PriceCents: 5500, Categories: []domain.Category{men, menShirts}, Active: false},
	}

	published := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	documents := []domain.Document{
		{ID: "D-01", Title: "How to Style a Linen Shirt", ContentType: "article", Summary: "Five summer looks built around linen.", Tags: []string{"style", "summer"}, PublishedAt: published},
		{ID: "D-02", Title: "Spring Dress Edit", ContentType: "article", Summary: "Wrap and slip dresses for the new season.", Tags: []string{"style", "spring"}, PublishedAt: published.AddDate(0, 0, 7)},
		{ID: "D-03", Title: "Free Shipping Weekend", ContentType: "banner", Summary: "Free standard shipping on every order.", Tags: []string{"promo"}, PublishedAt: published.AddDate(0, 0, 14)},
		{ID: "D-04", Title: "Shoe Care Guide", ContentType: "article", Summary: "Keep leather shoes in shape.", Tags: []string{"care"}, PublishedAt: published.AddDate(0, 1, 0)},
		{ID: "D-05", Title: "New Arrivals", ContentType: "menu", Summary: "Latest shirts and dresses.", Tags: []string{"spring", "promo"}, PublishedAt: published.AddDate(0, 1, 3)},
	}

	return New(products, documents)
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Product, 0, len(s.productOrder))
	for _, id := range s.productOrder {
		p := s.products[id]
		if !p.Active {
			continue
		}
		result = append(result, cloneProduct(p))
	}
	return result, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok || !p.Active {
		return nil, store.ErrNotFound
	}
	cp := cloneProduct(p)
	return &cp, nil
}

func (s *Store) ListDocuments(_ context.Context) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Document, 0, len(s.documents))
	for _, d := range s.documents {
		d.Tags = slices.Clone(d.Tags)
		result = append(result, d)
	}
	return result, nil
}

func (s *Store) CreateOrder(_ context.Context, sessionID string, order domain.Order) error {
	if sessionID == "" || order.ID == "" {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	order.Items = slices.Clone(order.Items)
	s.ordersBySession[sessionID] = append(s.ordersBySession[sessionID], order)
	return nil
}

func (s *Store) ListOrders(_ context.Context, sessionID string, limit int) ([]domain.Order, error) {
	if limit < 1 {
		limit = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := s.ordersBySession[sessionID]
	result := make([]domain.Order, 0, min(limit, len(orders)))
	for i := len(orders) - 1; i >= 0 && len(result) < limit; i-- {
		o := orders[i]
		o.Items = slices.Clone(o.Items)
		result = append(result, o)
	}
	return result, nil
}

func cloneProduct(p domain.Product) domain.Product {
	p.Categories = slices.Clone(p.Categories)
	return p
}
