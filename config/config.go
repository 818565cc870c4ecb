// Package config loads the process-wide configuration once at startup.
// The resulting Config is passed by value to the components that need it
// and is never mutated afterwards.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"

	"github.com/learnify/learnify-gateway/env"
)

// Config holds application configuration
type Config struct {
	Port        int
	Environment string // development, staging, production
	AppVersion  string

	BackendURL             *url.URL
	BackendTimeout         time.Duration
	BackendMaxResponseSize datasize.ByteSize
	WrapServerErrors       bool

	Secret        []byte
	SessionMaxAge time.Duration
	TrustHost     bool
	Debug         bool
	SecureCookies bool
	CookieDomain  string

	LoginRate  float64
	LoginBurst int

	PublicRoutes      []string
	RouteRoot         string
	RouteUnauthorized string
	RouteRestricted   string
	GuardExclude      []string

	AllowedOrigins []string
}

// Defaults used for unset optional variables
var (
	DefaultPublicRoutes = []string{"/login", "/register", "/unauthorized"}
	DefaultGuardExclude = []string{"/api", "/static", "/favicon.ico", "/metrics", "/health"}
)

// Load reads the configuration from the environment and validates it
func Load() (Config, error) {
	var cfg Config
	var err error

	if cfg.Port, err = env.LookupIntEnv("server port", "PORT", 3000); err != nil {
		return Config{}, err
	}
	cfg.Environment = strings.TrimSpace(env.LookupEnv("ENVIRONMENT", "development"))
	cfg.AppVersion = env.LookupEnv("APP_VERSION", "dev")

	backendURL, err := env.GetEnv("backend API base URL", "BACKEND_API_URL")
	if err != nil {
		return Config{}, err
	}
	if cfg.BackendURL, err = url.Parse(strings.TrimSpace(backendURL)); err != nil {
		return Config{}, fmt.Errorf("BACKEND_API_URL is not a valid URL: %w", err)
	}
	if cfg.BackendTimeout, err = env.LookupDurationEnv("backend request timeout", "BACKEND_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.BackendMaxResponseSize, err = env.LookupBytesEnv("backend max response size", "BACKEND_MAX_RESPONSE_SIZE", datasize.MB); err != nil {
		return Config{}, err
	}
	cfg.WrapServerErrors = env.LookupBoolEnv("wrap backend server errors", "BACKEND_WRAP_SERVER_ERRORS", false)

	secret, err := env.GetEnv("session signing secret", "AUTH_SECRET")
	if err != nil {
		return Config{}, err
	}
	cfg.Secret = []byte(secret)
	if cfg.SessionMaxAge, err = env.LookupDurationEnv("session max age", "AUTH_SESSION_MAX_AGE", 30*24*time.Hour); err != nil {
		return Config{}, err
	}
	cfg.TrustHost = env.LookupBoolEnv("trust forwarded host", "AUTH_TRUST_HOST", true)
	cfg.Debug = env.LookupBoolEnv("auth debug", "AUTH_DEBUG", false)
	cfg.SecureCookies = env.LookupBoolEnv("secure session cookies", "AUTH_SECURE_COOKIES", false)
	cfg.CookieDomain = strings.TrimSpace(env.LookupEnv("SERVER_DOMAIN", ""))

	if cfg.LoginRate, err = env.LookupFloatEnv("login rate per second", "AUTH_LOGIN_RATE", 1); err != nil {
		return Config{}, err
	}
	if cfg.LoginBurst, err = env.LookupIntEnv("login burst", "AUTH_LOGIN_BURST", 5); err != nil {
		return Config{}, err
	}

	cfg.PublicRoutes = env.LookupListEnv("public routes", "PUBLIC_ROUTES", DefaultPublicRoutes)
	cfg.RouteRoot = strings.TrimSpace(env.LookupEnv("ROUTE_ROOT", "/login"))
	cfg.RouteUnauthorized = strings.TrimSpace(env.LookupEnv("ROUTE_UNAUTHORIZED", "/unauthorized"))
	cfg.RouteRestricted = strings.TrimSpace(env.LookupEnv("ROUTE_RESTRICTED", "/settings"))
	cfg.GuardExclude = env.LookupListEnv("guard exclusions", "GUARD_EXCLUDE", DefaultGuardExclude)

	cfg.AllowedOrigins = env.LookupListEnv("CORS allowed origins", "CORS_ALLOWED_ORIGINS", []string{"*"})

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks configuration for security and correctness
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535 (got %d)", c.Port)
	}

	if c.BackendURL == nil || !c.BackendURL.IsAbs() || c.BackendURL.Host == "" {
		return fmt.Errorf("BACKEND_API_URL must be an absolute URL")
	}
	if c.BackendTimeout < 0 {
		return fmt.Errorf("BACKEND_TIMEOUT cannot be negative")
	}
	if c.BackendMaxResponseSize == 0 {
		return fmt.Errorf("BACKEND_MAX_RESPONSE_SIZE must be greater than zero")
	}

	if len(c.Secret) == 0 {
		return fmt.Errorf("AUTH_SECRET must not be empty")
	}
	if c.SessionMaxAge <= 0 {
		return fmt.Errorf("AUTH_SESSION_MAX_AGE must be positive")
	}
	if c.LoginRate <= 0 || c.LoginBurst <= 0 {
		return fmt.Errorf("AUTH_LOGIN_RATE and AUTH_LOGIN_BURST must be positive")
	}

	if c.IsProduction() {
		if len(c.Secret) < 32 {
			return fmt.Errorf("AUTH_SECRET must be at least 32 bytes in production (got %d)", len(c.Secret))
		}
		if !c.SecureCookies {
			return fmt.Errorf("AUTH_SECURE_COOKIES must be enabled in production")
		}
	}

	for _, route := range append([]string{c.RouteRoot, c.RouteUnauthorized, c.RouteRestricted}, c.PublicRoutes...) {
		if !strings.HasPrefix(route, "/") {
			return fmt.Errorf("route '%s' must be an absolute path", route)
		}
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}
