package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/songzhibin97/mailregistry/pkg/registry"
)

// RedisCache implements Cache on top of a redis server
type RedisCache struct {
	client    *redis.Client
	keyPrefix string
	config    *Config
}

// NewRedis connects to redis and verifies the connection with a ping
func NewRedis(ctx context.Context, config *Config) (*RedisCache, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	opts := &redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.Database,
	}
	if config.Timeout > 0 {
		opts.DialTimeout = config.Timeout
		opts.ReadTimeout = config.Timeout
		opts.WriteTimeout = config.Timeout
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{
		client:    client,
		keyPrefix: config.KeyPrefix,
		config:    config,
	}, nil
}

func (rc *RedisCache) key(key string) string {
	if rc.keyPrefix == "" {
		return key
	}
	return rc.keyPrefix + ":" + key
}

// Get retrieves a value by key
func (rc *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := rc.client.Get(ctx, rc.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return result, nil
}

// Set stores a value; a non-positive ttl keeps it until deleted
func (rc *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := rc.client.Set(ctx, rc.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// Delete removes a key
func (rc *RedisCache) Delete(ctx context.Context, key string) error {
	if err := rc.client.Del(ctx, rc.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// IncrBy atomically increments the value of a key by the given amount
func (rc *RedisCache) IncrBy(ctx context.Context, key string, value int64) (int64, error) {
	result, err := rc.client.IncrBy(ctx, rc.key(key), value).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment key %s: %w", key, err)
	}
	return result, nil
}

// Close closes the client connection
func (rc *RedisCache) Close() error {
	if rc.client != nil {
		return rc.client.Close()
	}
	return nil
}

// Health pings the server and reports a few INFO fields
func (rc *RedisCache) Health(ctx context.Context) registry.HealthStatus {
	health := registry.HealthStatus{
		Status:    "healthy",
		Message:   "Redis cache is operational",
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"type":     "redis",
			"address":  rc.config.Address,
			"database": rc.config.Database,
		},
	}

	if err := rc.client.Ping(ctx).Err(); err != nil {
		health.Status = "unhealthy"
		health.Message = fmt.Sprintf("Redis connection failed: %v", err)
		health.Details["error"] = err.Error()
		return health
	}

	if info, err := rc.client.Info(ctx, "server").Result(); err == nil {
		server := parseInfo(info)
		if v, ok := server["redis_version"]; ok {
			health.Details["version"] = v
		}
	}
	return health
}

// parseInfo parses the key:value lines of an INFO reply
func parseInfo(info string) map[string]string {
	result := make(map[string]string)
	for _, line := range strings.Split(info, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if k, v, ok := strings.Cut(line, ":"); ok {
			result[k] = v
		}
	}
	return result
}
