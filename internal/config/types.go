package config

import (
	"time"
)

// Config is the root configuration of the registry server
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Auth       AuthConfig       `yaml:"auth"`
	CORS       CORSConfig       `yaml:"cors"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Tracing    TracingConfig    `yaml:"tracing"`
	Cache      CacheConfig      `yaml:"cache"`
	Pagination PaginationConfig `yaml:"pagination"`
}

// ServerConfig represents the HTTP listener configuration
type ServerConfig struct {
	Address         string        `yaml:"address"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Mode is the gin mode: debug, release or test
	Mode string `yaml:"mode"`
}

// DatabaseConfig selects and configures the storage backend
type DatabaseConfig struct {
	// Type is memory or postgres
	Type     string         `yaml:"type"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig represents the PostgreSQL pool configuration
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
}

// AuthConfig configures session tokens and password hashing
type AuthConfig struct {
	JWT        JWTConfig        `yaml:"jwt"`
	BcryptCost int              `yaml:"bcrypt_cost"`
	LoginLimit LoginLimitConfig `yaml:"login_limit"`
}

// LoginLimitConfig throttles login attempts per client IP
type LoginLimitConfig struct {
	Enabled bool    `yaml:"enabled"`
	Rate    float64 `yaml:"rate"`
	Burst   int     `yaml:"burst"`
}

// JWTConfig represents JWT configuration
type JWTConfig struct {
	Secret    string        `yaml:"secret"`
	Algorithm string        `yaml:"algorithm"`
	ExpiresIn time.Duration `yaml:"expires_in"`
	Issuer    string        `yaml:"issuer"`
}

// CORSConfig represents CORS configuration
type CORSConfig struct {
	Enabled          bool     `yaml:"enabled"`
	AllowedOrigins   []string `yaml:"allowed_origins"`
	AllowedMethods   []string `yaml:"allowed_methods"`
	AllowedHeaders   []string `yaml:"allowed_headers"`
	AllowCredentials bool     `yaml:"allow_credentials"`
	MaxAge           int      `yaml:"max_age"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Development  bool   `yaml:"development"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// MetricsConfig represents Prometheus configuration
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
	Path      string `yaml:"path"`
}

// TracingConfig represents OpenTelemetry configuration
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	Endpoint    string  `yaml:"endpoint"`
	SampleRate  float64 `yaml:"sample_rate"`
}

// CacheConfig configures the optional dashboard cache
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Redis        RedisConfig   `yaml:"redis"`
	DashboardTTL time.Duration `yaml:"dashboard_ttl"`
}

// RedisConfig represents the redis client configuration
type RedisConfig struct {
	Address   string        `yaml:"address"`
	Password  string        `yaml:"password"`
	Database  int           `yaml:"database"`
	KeyPrefix string        `yaml:"key_prefix"`
	Timeout   time.Duration `yaml:"timeout"`
}

// PaginationConfig sets the default page size of list endpoints
type PaginationConfig struct {
	DefaultLimit int `yaml:"default_limit"`
}
