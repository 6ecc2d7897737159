package memory

import (
	"context"
	"errors"
	"testing"

	"storefront/internal/domain"
	"storefront/internal/store"
)

func TestListProductsSkipsInactive(t *testing.T) {
	s := NewSeeded()

	products, err := s.ListProducts(context.Background())
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	for _, p := range products {
		if !p.Active {
			t.Fatalf("inactive product %s listed", p.ID)
		}
	}
	if len(products) != 9 {
		t.Fatalf("expected 9 active products, got %d", len(products))
	}
	if products[0].ID != "P-1001" {
		t.Fatalf("expected insertion order, first was %s", products[0].ID)
	}
}

func TestGetProduct(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	p, err := s.GetProduct(ctx, "P-1004")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	p.Categories[0].Name = "mutated"

	again, _ := s.GetProduct(ctx, "P-1004")
	if again.Categories[0].Name != "Women" {
		t.Fatalf("store leaked internal slice: %+v", again.Categories)
	}

	if _, err := s.GetProduct(ctx, "P-1010"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for inactive product, got %v", err)
	}
	if _, err := s.GetProduct(ctx, " "); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid input for blank id, got %v", err)
	}
}

func TestOrdersAreListedNewestFirst(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	for _, id := range []string{"ord-1", "ord-2", "ord-3"} {
		if err := s.CreateOrder(ctx, "sid-a", domain.Order{ID: id}); err != nil {
			t.Fatalf("create order: %v", err)
		}
	}
	if err := s.CreateOrder(ctx, "sid-a", domain.Order{}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid input for order without id, got %v", err)
	}

	orders, err := s.ListOrders(ctx, "sid-a", 2)
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(orders) != 2 || orders[0].ID != "ord-3" || orders[1].ID != "ord-2" {
		t.Fatalf("unexpected orders: %+v", orders)
	}

	other, _ := s.ListOrders(ctx, "sid-b", 10)
	if len(other) != 0 {
		t.Fatalf("expected no orders for other session, got %d", len(other))
	}
}
