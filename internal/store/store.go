package store

import (
	"context"
	"errors"

	"storefront/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	ListDocuments(ctx context.Context) ([]domain.Document, error)
	CreateOrder(ctx context.Context, sessionID string, order domain.Order) error
	ListOrders(ctx context.Context, sessionID string, limit int) ([]domain.Order, error)
}
