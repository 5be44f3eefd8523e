package config

import (
	"strings"
	"time"
)

// DBConfig contains PostgreSQL database configuration.
type DBConfig struct {
	Host     string `env:"HOST"                    envDefault:"localhost"`
	Port     int    `env:"PORT"                    envDefault:"5432"`
	User     string `env:"USER"                    envDefault:"imoveis"`
	Password string `env:"PASSWORD"                envDefault:"imoveis"`
	Name     string `env:"NAME"                    envDefault:"imoveis"`
	SSLMode  string `env:"SSL_MODE"                envDefault:"disable"` // Use 'disable' for local dev, 'require' for production
	// RunMigrationsOnStart controls whether the application automatically applies migrations during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
}

// RedisConfig contains Redis configuration.
type RedisConfig struct {
	URI      string `env:"URI"      envDefault:"localhost:6379"`
	Password string `env:"PASSWORD" envDefault:""`
	DB       int    `env:"DB"       envDefault:"0"`
}

// CacheBackend selects the result cache implementation.
type CacheBackend string

const (
	// CacheBackendLocal keeps results in process memory.
	CacheBackendLocal CacheBackend = "local"
	// CacheBackendRedis shares results through Redis.
	CacheBackendRedis CacheBackend = "redis"
)

// CacheConfig contains result cache configuration.
type CacheConfig struct {
	// Backend is either "local" (default, single instance) or "redis"
	// (multiple worker instances sharing one cache).
	Backend CacheBackend `env:"CACHE_BACKEND" envDefault:"local"`

	// ResultTTL is how long memoized job results stay valid.
	// Zero or negative means results never expire.
	ResultTTL time.Duration `env:"CACHE_RESULT_TTL" envDefault:"24h"`
}

// Sanitize applies guardrails to cache configuration values.
func (c *CacheConfig) Sanitize() {
	backend := CacheBackend(strings.ToLower(strings.TrimSpace(string(c.Backend))))
	if backend != CacheBackendRedis {
		backend = CacheBackendLocal
	}
	c.Backend = backend
}
