package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cockroachdb/pebble"
)

// Pebble keeps sessions in a local PebbleDB directory. Expiry is stored next
// to the value and checked on read.
type Pebble struct {
	db  *pebble.DB
	ttl time.Duration
	now func() time.Time
}

type pebbleEnvelope struct {
	ExpiresAt time.Time       `json:"expires_at"`
	Value     json.RawMessage `json:"value"`
}

func NewPebble(dir string, ttl time.Duration) (*Pebble, error) {
	db, err := pebble.Open(filepath.Clean(dir), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &Pebble{db: db, ttl: normalizeTTL(ttl), now: time.Now}, nil
}

func (p *Pebble) Close() error { return p.db.Close() }

func (p *Pebble) Get(_ context.Context, sessionID string, key string, dest any) (bool, error) {
	if sessionID == "" {
		return false, ErrInvalidSession
	}
	k := []byte(storageKey(sessionID, key))
	val, closer, err := p.db.Get(k)
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	var env pebbleEnvelope
	decodeErr := json.Unmarshal(val, &env)
	_ = closer.Close()
	if decodeErr != nil {
		return false, decodeErr
	}

	if !p.now().Before(env.ExpiresAt) {
		if err := p.db.Delete(k, pebble.NoSync); err != nil {
			return false, err
		}
		return false, nil
	}
	if err := json.Unmarshal(env.Value, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Pebble) Set(_ context.Context, sessionID string, key string, value any) error {
	if sessionID == "" {
		return ErrInvalidSession
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(pebbleEnvelope{ExpiresAt: p.now().Add(p.ttl), Value: raw})
	if err != nil {
		return err
	}
	return p.db.Set([]byte(storageKey(sessionID, key)), payload, pebble.Sync)
}

func (p *Pebble) Delete(_ context.Context, sessionID string, key string) error {
	if sessionID == "" {
		return ErrInvalidSession
	}
	return p.db.Delete([]byte(storageKey(sessionID, key)), pebble.Sync)
}
