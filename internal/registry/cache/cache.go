// Package cache provides the key/value cache used for dashboard aggregates.
package cache

import (
	"context"
	"time"

	"github.com/songzhibin97/mailregistry/pkg/registry"
)

// Cache is a byte-oriented key/value cache. A miss is reported as (nil, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	// IncrBy atomically increments a counter and returns its new value
	IncrBy(ctx context.Context, key string, value int64) (int64, error)

	Health(ctx context.Context) registry.HealthStatus
	Close() error
}

// Config represents the redis connection settings
type Config struct {
	Address   string
	Password  string
	Database  int
	KeyPrefix string
	Timeout   time.Duration
}

// DefaultConfig returns a local redis configuration
func DefaultConfig() *Config {
	return &Config{
		Address:   "localhost:6379",
		KeyPrefix: "mailregistry",
		Timeout:   5 * time.Second,
	}
}
