package main

import (
	"context"
	"testing"

	"storefront/internal/config"
)

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	cases := []string{
		"short",
		"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		"change-me-change-me-change-me-change-me",
	}
	for _, secret := range cases {
		if err := validateSecurityConfig(config.Config{SessionSecret: secret}); err == nil {
			t.Fatalf("expected weak secret %q to be rejected", secret)
		}
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{SessionSecret: "0123456789abcdef0123456789abcdef"})
	if err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}

func TestBuildSessionStore(t *testing.T) {
	mem, closer, err := buildSessionStore(config.Config{SessionBackend: "memory", SessionTTLMinutes: 5}, nil)
	if err != nil || mem == nil || closer != nil {
		t.Fatalf("expected memory store without closer, got %v %v", mem, err)
	}

	pebble, closer, err := buildSessionStore(config.Config{SessionBackend: "pebble", PebbleDir: t.TempDir(), SessionTTLMinutes: 5}, nil)
	if err != nil {
		t.Fatalf("pebble store failed: %v", err)
	}
	if err := pebble.Set(context.Background(), "sid", "cart", map[string]int{"n": 1}); err != nil {
		t.Fatalf("pebble set failed: %v", err)
	}
	if err := closer(); err != nil {
		t.Fatalf("pebble close failed: %v", err)
	}

	if _, _, err := buildSessionStore(config.Config{SessionBackend: "redis"}, nil); err == nil {
		t.Fatalf("expected redis backend without client to fail")
	}
	if _, _, err := buildSessionStore(config.Config{SessionBackend: "etcd"}, nil); err == nil {
		t.Fatalf("expected unknown backend to fail")
	}
}

func TestNewLoggerHonoursDebug(t *testing.T) {
	logger, err := newLogger("debug")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	if !logger.Core().Enabled(-1) {
		t.Fatalf("expected debug level enabled")
	}
}
