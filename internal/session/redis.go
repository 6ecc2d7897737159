package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedis(client redis.UniversalClient, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: normalizeTTL(ttl)}
}

func (r *Redis) Get(ctx context.Context, sessionID string, key string, dest any) (bool, error) {
	if sessionID == "" {
		return false, ErrInvalidSession
	}
	val, err := r.client.Get(ctx, storageKey(sessionID, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Redis) Set(ctx context.Context, sessionID string, key string, value any) error {
	if sessionID == "" {
		return ErrInvalidSession
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, storageKey(sessionID, key), payload, r.ttl).Err()
}

func (r *Redis) Delete(ctx context.Context, sessionID string, key string) error {
	if sessionID == "" {
		return ErrInvalidSession
	}
	return r.client.Del(ctx, storageKey(sessionID, key)).Err()
}
