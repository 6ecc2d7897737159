package cache

import (
	"context"
	"time"
)

// SearchCache stores JSON-encodable search results. Get decodes into dest and
// reports whether the key was present.
type SearchCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

type NoopSearchCache struct{}

func (NoopSearchCache) Get(_ context.Context, _ string, _ any) (bool, error) {
	return false, nil
}

func (NoopSearchCache) Set(_ context.Context, _ string, _ any, _ time.Duration) error {
	return nil
}
