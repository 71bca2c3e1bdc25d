// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string
	JWTSecret   string

	SnapshotName string

	Challenge ChallengeConfig
	Assistant AssistantConfig
}

// ChallengeConfig controls one-time-code issuance and throttling.
type ChallengeConfig struct {
	CodeTTL       time.Duration
	MaxAttempts   int
	RateWindow    time.Duration
	RateBurst     int
	StaticCode    string // non-empty switches to the fixed demo code
	TokenLifetime time.Duration
}

// AssistantConfig controls the AI gateway.
type AssistantConfig struct {
	APIKey        string
	Model         string
	CallTimeout   time.Duration
	FallbackText  string
	FallbackDelay time.Duration
}

// DefaultFallbackText is returned by the assistant when no API key is
// configured for the backend.
const DefaultFallbackText = "I'm the Miktsoan AI (Demo Mode). Since there is no API Key configured, I can't analyze your request deeply, but I'd suggest checking out our top rated Plumbers or Electricians via the search tab!"

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		FrontendURL:  getEnv("FRONTEND_URL", ""),
		DBPath:       getEnv("DB_PATH", "./data/miktsoan.db"),
		JWTSecret:    getEnv("JWT_SECRET", ""),
		SnapshotName: getEnv("SNAPSHOT_NAME", "miktsoan-storage"),
		Challenge: ChallengeConfig{
			CodeTTL:       getEnvDuration("OTP_CODE_TTL", 5*time.Minute),
			MaxAttempts:   getEnvInt("OTP_MAX_ATTEMPTS", 3),
			RateWindow:    getEnvDuration("OTP_RATE_WINDOW", 10*time.Minute),
			RateBurst:     getEnvInt("OTP_RATE_BURST", 3),
			StaticCode:    getEnv("OTP_STATIC_CODE", ""),
			TokenLifetime: getEnvDuration("TOKEN_LIFETIME", 30*24*time.Hour),
		},
		Assistant: AssistantConfig{
			APIKey:        getEnv("GEMINI_API_KEY", ""),
			Model:         getEnv("GEMINI_MODEL", "gemini-2.5-flash-image"),
			CallTimeout:   getEnvDuration("AI_CALL_TIMEOUT", 30*time.Second),
			FallbackText:  getEnv("AI_FALLBACK_TEXT", DefaultFallbackText),
			FallbackDelay: getEnvDuration("AI_FALLBACK_DELAY", time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.SnapshotName == "" {
		return fmt.Errorf("SNAPSHOT_NAME cannot be empty")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET cannot be empty")
	}
	if c.Challenge.MaxAttempts <= 0 {
		return fmt.Errorf("OTP_MAX_ATTEMPTS must be > 0")
	}
	if c.Challenge.CodeTTL <= 0 {
		return fmt.Errorf("OTP_CODE_TTL must be > 0")
	}
	if c.Challenge.RateBurst <= 0 {
		return fmt.Errorf("OTP_RATE_BURST must be > 0")
	}
	if c.Assistant.CallTimeout <= 0 {
		return fmt.Errorf("AI_CALL_TIMEOUT must be > 0")
	}
	if c.Assistant.FallbackText == "" {
		return fmt.Errorf("AI_FALLBACK_TEXT cannot be empty")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
