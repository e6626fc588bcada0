package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cardinity-gateway/internal/config"
)

func baseEnv() map[string]string {
	return map[string]string{
		"DATABASE_URL":              "postgres://localhost:5432/checkout?sslmode=disable",
		"REDIS_URL":                 "redis://localhost:6379/0",
		"CARDINITY_CONSUMER_KEY":    "ck_test",
		"CARDINITY_CONSUMER_SECRET": "cs_test",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.LoadForTests(baseEnv())
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, "EUR", cfg.Currency)
	require.Equal(t, int64(50), cfg.MinChargeAmount)
	require.Equal(t, 30*time.Minute, cfg.AuthStateTTL)
	require.Equal(t, "https://api.cardinity.com", cfg.CardinityBaseURL)
	require.Equal(t, "http://localhost:8080/v1/checkout/callback/3ds", cfg.CallbackURL())
}

func TestLoadRequiresGatewayCredentials(t *testing.T) {
	env := baseEnv()
	env["CARDINITY_CONSUMER_SECRET"] = ""
	_, err := config.LoadForTests(env)
	require.Error(t, err)
}

func TestLoadOverrides(t *testing.T) {
	env := baseEnv()
	env["PORT"] = "9090"
	env["STORE_CURRENCY"] = "USD"
	env["MIN_CHARGE_AMOUNT"] = "100"
	env["PUBLIC_BASE_URL"] = "https://shop.example.com/"

	cfg, err := config.LoadForTests(env)
	require.NoError(t, err)

	require.Equal(t, ":9090", cfg.HTTPAddr())
	require.Equal(t, "USD", cfg.Currency)
	require.Equal(t, int64(100), cfg.MinChargeAmount)
	require.Equal(t, "https://shop.example.com/v1/checkout/callback/3ds", cfg.CallbackURL())
}

func TestLoadRejectsNonPositiveMinimum(t *testing.T) {
	env := baseEnv()
	env["MIN_CHARGE_AMOUNT"] = "-1"
	_, err := config.LoadForTests(env)
	require.Error(t, err)
}
