package config

import (
	"context"
	"fmt"
	"net/url"

	"github.com/sethvargo/go-envconfig"
)

// Token backend names accepted in SESSION_TOKEN_BACKEND.
const (
	TokenBackendCookie = "cookie"
	TokenBackendRedis  = "redis"
	TokenBackendMemory = "memory"
)

type Config struct {
	Server   ServerConfig   `env:",prefix=SERVER_"`
	Upstream UpstreamConfig `env:",prefix=UPSTREAM_"`
	Redis    RedisConfig    `env:",prefix=REDIS_"`
	Session  SessionConfig  `env:",prefix=SESSION_"`
	Cookie   CookieConfig   `env:",prefix=COOKIE_"`
	Security SecurityConfig `env:",prefix=SECURITY_"`
	Env      string         `env:"ENV,default=development"`
}

type ServerConfig struct {
	Port         string   `env:"PORT,default=8080"`
	Host         string   `env:"HOST,default=0.0.0.0"`
	ReadTimeout  Duration `env:"READ_TIMEOUT,default=15s"`
	WriteTimeout Duration `env:"WRITE_TIMEOUT,default=15s"`
}

// UpstreamConfig describes the TestFlow REST API this frontend talks to.
type UpstreamConfig struct {
	BaseURL string   `env:"BASE_URL,default=http://localhost:8000/api"`
	Timeout Duration `env:"TIMEOUT,default=10s"`
}

type RedisConfig struct {
	Host     string `env:"HOST,default=localhost"`
	Port     string `env:"PORT,default=6379"`
	Password string `env:"PASSWORD,default="`
	DB       int    `env:"DB,default=0"`
}

// SessionConfig selects where browser-session token pairs live.
type SessionConfig struct {
	TokenBackend string `env:"TOKEN_BACKEND,default=cookie"`
}

// CookieConfig controls the cookies written by the cookie token backend and
// the session-id cookie used by the redis backend.
type CookieConfig struct {
	AccessTTL  Duration `env:"ACCESS_TTL,default=7d"`
	RefreshTTL Duration `env:"REFRESH_TTL,default=30d"`
	Domain     string   `env:"DOMAIN,default="`
}

// SecurityConfig throttles credential forms. The limiter only runs when the
// redis token backend is configured.
type SecurityConfig struct {
	RateLimitRequests int      `env:"RATE_LIMIT_REQUESTS,default=10"`
	RateLimitWindow   Duration `env:"RATE_LIMIT_WINDOW,default=1m"`
}

// Address returns Redis connection address
func (r RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// SecureCookies reports whether cookies must carry the Secure flag.
func (c Config) SecureCookies() bool {
	return c.Env == "production"
}

// Load loads configuration from environment variables
func Load(ctx context.Context) (*Config, error) {
	var config Config

	if err := envconfig.Process(ctx, &config); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if _, err := url.ParseRequestURI(config.Upstream.BaseURL); err != nil {
		return nil, fmt.Errorf("UPSTREAM_BASE_URL is not a valid URL: %w", err)
	}

	switch config.Session.TokenBackend {
	case TokenBackendCookie, TokenBackendRedis, TokenBackendMemory:
	default:
		return nil, fmt.Errorf("unknown SESSION_TOKEN_BACKEND %q (want cookie, redis or memory)", config.Session.TokenBackend)
	}

	return &config, nil
}

// LoadWithDefaults loads configuration with default context
func LoadWithDefaults() (*Config, error) {
	return Load(context.Background())
}
