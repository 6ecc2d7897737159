// Package cart keeps the visitor's cart in the session store.
package cart

import (
	"context"
	"fmt"
	"strings"
	"time"

	"storefront/internal/domain"
	"storefront/internal/session"
	"storefront/internal/store"
)

const maxLineQty = 99

type ProductLookup interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

type Service struct {
	sessions session.Store
	products ProductLookup
	now      func() time.Time
}

func New(sessions session.Store, products ProductLookup) *Service {
	return &Service{sessions: sessions, products: products, now: time.Now}
}

func (s *Service) Get(ctx context.Context, sessionID string) (domain.Cart, error) {
	var c domain.Cart
	if _, err := s.sessions.Get(ctx, sessionID, session.KeyCart, &c); err != nil {
		return domain.Cart{}, fmt.Errorf("load cart: %w", err)
	}
	if c.Items == nil {
		c.Items = []domain.CartItem{}
	}
	return c, nil
}

// Add puts qty units of a product in the cart, merging with an existing line.
func (s *Service) Add(ctx context.Context, sessionID string, req domain.CartAddRequest) (domain.Cart, error) {
	productID := strings.TrimSpace(req.ProductID)
	if productID == "" || req.Qty < 1 {
		return domain.Cart{}, store.ErrInvalidInput
	}
	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return domain.Cart{}, err
	}

	c, err := s.Get(ctx, sessionID)
	if err != nil {
		return domain.Cart{}, err
	}
	merged := false
	for i := range c.Items {
		if c.Items[i].ProductID == product.ID {
			c.Items[i].Qty = min(c.Items[i].Qty+req.Qty, maxLineQty)
			c.Items[i].PriceCents = product.PriceCents
			merged = true
			break
		}
	}
	if !merged {
		c.Items = append(c.Items, domain.CartItem{
			ProductID:  product.ID,
			Name:       product.Name,
			PriceCents: product.PriceCents,
			Qty:        min(req.Qty, maxLineQty),
		})
	}
	return s.save(ctx, sessionID, c)
}

// SetQty replaces the quantity of a line; zero removes it.
func (s *Service) SetQty(ctx context.Context, sessionID string, productID string, qty int) (domain.Cart, error) {
	if qty < 0 || qty > maxLineQty {
		return domain.Cart{}, store.ErrInvalidInput
	}
	c, err := s.Get(ctx, sessionID)
	if err != nil {
		return domain.Cart{}, err
	}
	found := false
	kept := c.Items[:0]
	for _, item := range c.Items {
		if item.ProductID == productID {
			found = true
			if qty == 0 {
				continue
			}
			item.Qty = qty
		}
		kept = append(kept, item)
	}
	if !found {
		return domain.Cart{}, store.ErrNotFound
	}
	c.Items = kept
	return s.save(ctx, sessionID, c)
}

func (s *Service) Remove(ctx context.Context, sessionID string, productID string) (domain.Cart, error) {
	return s.SetQty(ctx, sessionID, productID, 0)
}

func (s *Service) Clear(ctx context.Context, sessionID string) error {
	if err := s.sessions.Delete(ctx, sessionID, session.KeyCart); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func (s *Service) save(ctx context.Context, sessionID string, c domain.Cart) (domain.Cart, error) {
	c.UpdatedAt = s.now().UTC()
	if err := s.sessions.Set(ctx, sessionID, session.KeyCart, c); err != nil {
		return domain.Cart{}, fmt.Errorf("save cart: %w", err)
	}
	return c, nil
}
