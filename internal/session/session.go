// Package session holds the per-visitor key/value storage that backs the cart
// and checkout flow. Values are stored JSON encoded. Writes are last-write-wins;
// two tabs sharing a session can overwrite each other.
package session

import (
	"context"
	"errors"
	"time"
)

const (
	KeyCart   = "cart"
	KeyOrder  = "order"
	KeyOrders = "orders"
)

var ErrInvalidSession = errors.New("invalid session id")

type Store interface {
	Get(ctx context.Context, sessionID string, key string, dest any) (bool, error)
	Set(ctx context.Context, sessionID string, key string, value any) error
	Delete(ctx context.Context, sessionID string, key string) error
}

func storageKey(sessionID string, key string) string {
	return "storefront:session:" + sessionID + ":" + key
}

func normalizeTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 12 * time.Hour
	}
	return ttl
}
