// Package config provides fan hub configuration management with environment
// variable loading, validation, and sensible defaults. It supports .env files
// for local development and validates every setting on startup so that a
// misconfigured backend URL fails fast instead of on the first login.
//
// Configuration is loaded from environment variables with the Load() function,
// which returns a validated Config struct or an error if a variable is
// invalid. Nothing is strictly required: the defaults point at a backend
// running on localhost.
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal().Err(err).Msg("Failed to load configuration")
//	}
//
//	client := api.NewClient(cfg.API.BaseURL, cfg.API.Timeout)
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Token store backends accepted by TOKEN_STORE.
const (
	TokenStoreFile  = "file"
	TokenStoreRedis = "redis"
)

// Config holds all configuration for the fan hub client.
type Config struct {
	API      APIConfig
	Realtime RealtimeConfig
	Storage  StorageConfig
	Redis    RedisConfig
	Bridge   BridgeConfig
	CORS     CORSConfig
	Accrual  AccrualConfig
	Log      LogConfig
	Login    LoginConfig
}

// APIConfig holds the REST backend location and request timeout.
type APIConfig struct {
	BaseURL string
	Timeout time.Duration // Per-request timeout (default: 10 seconds)
}

// RealtimeConfig holds the chat socket endpoint and reconnect policy.
type RealtimeConfig struct {
	URL               string
	ReconnectMaxDelay time.Duration // Upper bound for reconnect backoff
}

// StorageConfig selects where the bearer token is persisted.
type StorageConfig struct {
	Backend   string // "file" or "redis"
	TokenFile string // Path used by the file backend
}

// RedisConfig holds Redis connection parameters for the redis token store.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	PoolSize int
}

// BridgeConfig holds the local bridge HTTP server settings.
type BridgeConfig struct {
	Port        string
	Environment string
}

// CORSConfig lists the view-layer origins allowed to call the bridge.
type CORSConfig struct {
	AllowedOrigins []string
}

// AccrualConfig controls passive view-time accrual.
//
// Every Interval one tick is counted; every Ticks ticks Points are awarded
// with the view_time activity type.
type AccrualConfig struct {
	Interval time.Duration
	Ticks    int
	Points   int
}

// LogConfig holds the zerolog level name.
type LogConfig struct {
	Level string
}

// LoginConfig carries optional credentials for unattended login at startup.
type LoginConfig struct {
	Email    string
	Password string
}

// Load reads and validates configuration from environment variables.
// It attempts to load a .env file if present (for local development) but
// doesn't fail if the file is missing.
//
// Optional environment variables and their defaults:
//   - API_URL: http://localhost:5000/api
//   - SOCKET_URL: ws://localhost:5000/ws
//   - API_TIMEOUT: 10s
//   - TOKEN_STORE: file (or redis)
//   - TOKEN_FILE: <user config dir>/furia-app/token
//   - BRIDGE_PORT: 4173
//   - ACCRUAL_INTERVAL / ACCRUAL_TICKS / ACCRUAL_POINTS: 1s / 300 / 5
//
// Returns an error if validation fails.
//
// Example:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal().Err(err).Msg("Configuration error")
//	}
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error when absent)
	_ = godotenv.Load()

	config := &Config{
		API: APIConfig{
			BaseURL: strings.TrimRight(getEnv("API_URL", "http://localhost:5000/api"), "/"),
			Timeout: getEnvAsDuration("API_TIMEOUT", 10*time.Second),
		},
		Realtime: RealtimeConfig{
			URL:               getEnv("SOCKET_URL", "ws://localhost:5000/ws"),
			ReconnectMaxDelay: getEnvAsDuration("RECONNECT_MAX_DELAY", 10*time.Second),
		},
		Storage: StorageConfig{
			Backend:   getEnv("TOKEN_STORE", TokenStoreFile),
			TokenFile: getEnv("TOKEN_FILE", defaultTokenFile()),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			PoolSize: getEnvAsInt("REDIS_POOL_SIZE", 10),
		},
		Bridge: BridgeConfig{
			Port:        getEnv("BRIDGE_PORT", "4173"),
			Environment: getEnv("ENV", "development"),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Accrual: AccrualConfig{
			Interval: getEnvAsDuration("ACCRUAL_INTERVAL", time.Second),
			Ticks:    getEnvAsInt("ACCRUAL_TICKS", 300),
			Points:   getEnvAsInt("ACCRUAL_POINTS", 5),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Login: LoginConfig{
			Email:    getEnv("FANHUB_EMAIL", ""),
			Password: getEnv("FANHUB_PASSWORD", ""),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate checks that every setting is well formed:
//   - API and socket URLs parse and use the expected schemes
//   - ports are valid integers
//   - the token store backend is known
//   - accrual settings are positive
//   - auto-login credentials are either both set or both empty
//
// Returns an error describing the first validation failure encountered,
// or nil if all configuration is valid.
func (c *Config) Validate() error {
	apiURL, err := url.ParseRequestURI(c.API.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid API URL: %w", err)
	}
	if apiURL.Scheme != "http" && apiURL.Scheme != "https" {
		return fmt.Errorf("API URL must use http or https, got %q", apiURL.Scheme)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("API timeout must be positive")
	}

	socketURL, err := url.ParseRequestURI(c.Realtime.URL)
	if err != nil {
		return fmt.Errorf("invalid socket URL: %w", err)
	}
	if socketURL.Scheme != "ws" && socketURL.Scheme != "wss" {
		return fmt.Errorf("socket URL must use ws or wss, got %q", socketURL.Scheme)
	}

	switch c.Storage.Backend {
	case TokenStoreFile:
		if c.Storage.TokenFile == "" {
			return fmt.Errorf("token file path is required for the file token store")
		}
	case TokenStoreRedis:
		if _, err := strconv.Atoi(c.Redis.Port); err != nil {
			return fmt.Errorf("redis port must be a valid integer: %w", err)
		}
	default:
		return fmt.Errorf("unknown token store %q", c.Storage.Backend)
	}

	if c.Bridge.Port == "" {
		return fmt.Errorf("bridge port is required")
	}
	if _, err := strconv.Atoi(c.Bridge.Port); err != nil {
		return fmt.Errorf("bridge port must be a valid integer: %w", err)
	}

	if c.Accrual.Interval <= 0 || c.Accrual.Ticks <= 0 || c.Accrual.Points <= 0 {
		return fmt.Errorf("accrual interval, ticks and points must be positive")
	}

	if (c.Login.Email == "") != (c.Login.Password == "") {
		return fmt.Errorf("FANHUB_EMAIL and FANHUB_PASSWORD must be set together")
	}

	return nil
}

// IsProduction reports whether ENV is "production".
func (c *BridgeConfig) IsProduction() bool {
	return c.Environment == "production"
}

// Address returns the Redis server address in "host:port" format.
//
// Example:
//
//	client := redis.NewClient(&redis.Options{
//	    Addr: cfg.Redis.Address(),
//	})
func (c *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// defaultTokenFile places the token under the per-user config directory,
// falling back to the working directory when none can be determined.
func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "token"
	}
	return filepath.Join(dir, "furia-app", "token")
}

// Helper functions for environment variable parsing

// getEnv retrieves an environment variable with a default fallback.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer with a default fallback.
// If the variable is not set or cannot be parsed as an integer, returns defaultValue.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration retrieves an environment variable as a time.Duration with a default fallback.
// Supports Go duration format: "300ms", "1.5h", "2h45m", etc.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsSlice retrieves a comma-separated environment variable as a slice.
//
// Example:
//
//	// ALLOWED_ORIGINS=http://localhost:3000,https://fans.example.com
//	origins := getEnvAsSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000"})
func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
