package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	RedisURL    string

	CardinityConsumerKey    string
	CardinityConsumerSecret string
	CardinityBaseURL        string

	// PublicBaseURL is the externally reachable origin of this service,
	// used to build the TermUrl the ACS posts back to.
	PublicBaseURL string

	Currency        string
	MinChargeAmount int64 // minor units
	AuthStateTTL    time.Duration
	GatewayTimeout  time.Duration
	SuccessRedirect string
	FailureRedirect string
	ChallengePath   string
	CallbackRate    string

	CORSAllowedOrigins []string

	NotifyEmailEnabled bool
	EmailQueue         string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:      valueOrDefault(k.String("APP_ENV"), "development"),
		Port:        valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL: k.String("DATABASE_URL"),
		RedisURL:    k.String("REDIS_URL"),

		CardinityConsumerKey:    k.String("CARDINITY_CONSUMER_KEY"),
		CardinityConsumerSecret: k.String("CARDINITY_CONSUMER_SECRET"),
		CardinityBaseURL:        valueOrDefault(k.String("CARDINITY_BASE_URL"), "https://api.cardinity.com"),

		PublicBaseURL: strings.TrimRight(valueOrDefault(k.String("PUBLIC_BASE_URL"), "http://localhost:8080"), "/"),

		Currency:        valueOrDefault(k.String("STORE_CURRENCY"), "EUR"),
		MinChargeAmount: parseInt64(k.String("MIN_CHARGE_AMOUNT"), 50),
		AuthStateTTL:    parseDuration(k.String("AUTH_STATE_TTL"), "30m"),
		GatewayTimeout:  parseDuration(k.String("GATEWAY_TIMEOUT"), "30s"),
		SuccessRedirect: valueOrDefault(k.String("CHECKOUT_SUCCESS_URL"), "/checkout/success"),
		FailureRedirect: valueOrDefault(k.String("CHECKOUT_FAILURE_URL"), "/checkout/failure"),
		ChallengePath:   valueOrDefault(k.String("CHECKOUT_CHALLENGE_PATH"), "/v1/checkout/3ds"),
		CallbackRate:    valueOrDefault(k.String("CALLBACK_RATE_LIMIT"), "30-M"),

		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		NotifyEmailEnabled: parseBool(k.String("NOTIFY_EMAIL_ENABLED"), true),
		EmailQueue:         valueOrDefault(k.String("EMAIL_QUEUE"), "default"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.CardinityConsumerKey == "" || cfg.CardinityConsumerSecret == "" {
		return nil, errors.New("CARDINITY_CONSUMER_KEY and CARDINITY_CONSUMER_SECRET are required")
	}
	if cfg.MinChargeAmount <= 0 {
		return nil, errors.New("MIN_CHARGE_AMOUNT must be positive")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// CallbackURL returns the absolute TermUrl the ACS posts the shopper back to.
func (c *Config) CallbackURL() string {
	return c.PublicBaseURL + "/v1/checkout/callback/3ds"
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string, fallback bool) bool {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(trimmed)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseInt64(value string, fallback int64) int64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
