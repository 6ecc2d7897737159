package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	DatabaseURL           string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	SessionBackend        string
	PebbleDir             string
	SessionSecret         string
	SessionTTLMinutes     int
	SearchCacheTTLSeconds int
	KafkaBrokers          string
	KafkaOrderTopic       string
	FacetSortConfig       string
	FacetDisplayedItems   int
	FacetOpened           int
	FacetPriceRange       bool
	FacetPriceField       string
	FacetPrecisionMode    bool
	FacetPrecisionField   string
	LogLevel              string
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	cfg := Config{
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		SessionBackend:        strings.ToLower(getEnv("SESSION_BACKEND", "memory")),
		PebbleDir:             getEnv("PEBBLE_DIR", "./data/sessions"),
		SessionSecret:         strings.TrimSpace(os.Getenv("SESSION_SECRET")),
		SessionTTLMinutes:     getPositiveInt("SESSION_TTL_MINUTES", 720),
		SearchCacheTTLSeconds: getPositiveInt("SEARCH_CACHE_TTL_SECONDS", 30),
		KafkaBrokers:          os.Getenv("KAFKA_BROKERS"),
		KafkaOrderTopic:       getEnv("KAFKA_ORDER_TOPIC", "storefront.orders.completed"),
		FacetSortConfig:       os.Getenv("FACET_SORT_CONFIG"),
		FacetDisplayedItems:   getPositiveInt("FACET_DISPLAYED_ITEMS", 5),
		FacetOpened:           getNonNegativeInt("FACET_OPENED", 3),
		FacetPriceRange:       getBool("FACET_PRICE_RANGE", true),
		FacetPriceField:       getEnv("FACET_PRICE_FIELD", "price"),
		FacetPrecisionMode:    getBool("FACET_PRECISION_MODE", false),
		FacetPrecisionField:   getEnv("FACET_PRECISION_FIELD", "precision"),
		LogLevel:              strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getPositiveInt(key string, fallback int) int {
	val, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || val < 1 {
		return fallback
	}
	return val
}

func getNonNegativeInt(key string, fallback int) int {
	val, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || val < 0 {
		return fallback
	}
	return val
}

func getBool(key string, fallback bool) bool {
	val, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(fallback)))
	if err != nil {
		return fallback
	}
	return val
}
