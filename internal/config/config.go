/**
 * @description
 * Configuration loader for the Snap'n'Buy backend.
 * Responsible for reading environment variables, setting defaults, and performing strict validation.
 *
 * @dependencies
 * - github.com/joho/godotenv: For loading .env files
 * - standard "os": For reading env vars
 *
 * @notes
 * - Fails fast if critical variables (Database URL, auth secrets) are missing.
 */

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	DB       DBConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Services ServicesConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port string
	Env  string // "development", "test" or "production"
}

// DBConfig holds PostgreSQL settings
type DBConfig struct {
	URL string
}

// RedisConfig holds Redis settings
type RedisConfig struct {
	URL string
}

// AuthConfig holds everything the wallet auth bridge needs
type AuthConfig struct {
	// JWTSecret signs the access tokens the identity store issues.
	JWTSecret string
	// ServiceRoleSecret is the server-side key the synthetic wallet
	// credential is derived from. Never logged, never returned.
	ServiceRoleSecret string
	// Privy identity-token verification
	PrivyAppID   string
	PrivyJWKSURL string
	// Lifetimes for issued sessions
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// ServicesConfig holds external service settings (AI vision, quotes)
type ServicesConfig struct {
	VisionAPIKey   string
	VisionBaseURL  string
	VisionModel    string
	QuoteAPIURL    string
	QuoteStreamURL string
}

// Load reads .env file and populates the Config struct
func Load() (*Config, error) {
	// Attempt to load .env, but don't crash if it fails (prod might inject env vars directly)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Env:  getEnv("GO_ENV", "development"),
		},
		DB: DBConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Auth: AuthConfig{
			JWTSecret:         sanitizeCredential(getEnv("AUTH_JWT_SECRET", "")),
			ServiceRoleSecret: sanitizeCredential(getEnv("SERVICE_ROLE_SECRET", "")),
			PrivyAppID:        getEnv("PRIVY_APP_ID", ""),
			PrivyJWKSURL:      getEnv("PRIVY_JWKS_URL", ""),
			AccessTokenTTL:    getEnvAsDuration("ACCESS_TOKEN_TTL", time.Hour),
			RefreshTokenTTL:   getEnvAsDuration("REFRESH_TOKEN_TTL", 30*24*time.Hour),
		},
		Services: ServicesConfig{
			VisionAPIKey:   sanitizeCredential(getEnv("VISION_API_KEY", "")),
			VisionBaseURL:  getEnv("VISION_BASE_URL", "https://openrouter.ai/api/v1/chat/completions"),
			VisionModel:    getEnv("VISION_MODEL", "google/gemini-3-flash-preview"),
			QuoteAPIURL:    getEnv("QUOTE_API_URL", "https://query1.finance.yahoo.com/v8/finance/chart"),
			QuoteStreamURL: getEnv("QUOTE_STREAM_URL", ""),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks for required variables
func validate(cfg *Config) error {
	if cfg.DB.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET is required")
	}
	if cfg.Auth.ServiceRoleSecret == "" {
		return fmt.Errorf("SERVICE_ROLE_SECRET is required")
	}
	if cfg.Auth.PrivyJWKSURL == "" && cfg.Server.Env != "test" {
		// Token-mode auth will reject everything without it; signature mode still works.
		fmt.Println("Warning: PRIVY_JWKS_URL is missing. Privy token auth will fail.")
	}
	return nil
}

// Helper to get env var with default
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func sanitizeCredential(value string) string {
	trimmed := strings.TrimSpace(value)
	return strings.Trim(trimmed, "\"")
}

// Helper to get env var as duration
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return fallback
}
