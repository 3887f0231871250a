// Package config provides runtime configuration for all services.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds connection endpoints and tunables shared by the services.
type Config struct {
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string

	RabbitHost     string
	RabbitPort     int
	RabbitUser     string
	RabbitPassword string

	RedisHost string
	RedisPort int

	ConsulHost string
	ConsulPort int

	// OrderQueue is the well-known queue shared by the order publisher
	// and every stock consumer.
	OrderQueue string

	// ProductListKey is the cache key for the product listing.
	ProductListKey    string
	CacheTTL          time.Duration
	CacheFetchTimeout time.Duration

	ConsumerWorkers int
	ReplayInterval  time.Duration

	GatewayPort int
	ProductPort int
	OrderPort   int
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func durenvs(key string, defSec int) time.Duration {
	return time.Duration(atoienv(key, defSec)) * time.Second
}

// Load collects configuration from environment with defaults.
func Load() Config {
	return Config{
		DBHost:     getenv("DB_HOST", "localhost"),
		DBPort:     atoienv("DB_PORT", 5432),
		DBUser:     getenv("DB_USER", "minishop"),
		DBPassword: getenv("DB_PASSWORD", "minishop123"),
		DBName:     getenv("DB_NAME", "minishop"),

		RabbitHost:     getenv("RABBITMQ_HOST", "localhost"),
		RabbitPort:     atoienv("RABBITMQ_PORT", 5672),
		RabbitUser:     getenv("RABBITMQ_USER", "guest"),
		RabbitPassword: getenv("RABBITMQ_PASSWORD", "guest"),

		RedisHost: getenv("REDIS_HOST", "localhost"),
		RedisPort: atoienv("REDIS_PORT", 6379),

		ConsulHost: getenv("CONSUL_HOST", "localhost"),
		ConsulPort: atoienv("CONSUL_PORT", 8500),

		OrderQueue: getenv("ORDER_QUEUE", "order_queue"),

		ProductListKey:    getenv("PRODUCT_LIST_KEY", "all_products"),
		CacheTTL:          durenvs("CACHE_TTL", 3600),
		CacheFetchTimeout: durenvs("CACHE_FETCH_TIMEOUT", 5),

		ConsumerWorkers: atoienv("CONSUMER_WORKERS", 2),
		ReplayInterval:  durenvs("REPLAY_INTERVAL", 30),

		GatewayPort: atoienv("GATEWAY_PORT", 8080),
		ProductPort: atoienv("PRODUCT_PORT", 8081),
		OrderPort:   atoienv("ORDER_PORT", 8082),
	}
}
