package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApp(t *testing.T) {
	config1 := App()
	config2 := App()

	require.NotNil(t, config1)
	assert.Same(t, config1, config2, "App() should return singleton instance")
	assert.NotNil(t, config1.Validator)
}

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"APP_PORT", "APP_URL", "REFRESH_INTERVAL", "STORE_TIMEZONE", "DEFAULT_STORE_ID", "CUSTOMER_PHONE_ENABLED", "CORS_ALLOWED_ORIGINS", "RATE_LIMIT_PER_MINUTE"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Port)
	assert.Equal(t, ":9999", cfg.HTTPAddr())
	assert.Equal(t, "http://localhost:9999", cfg.AppURL)
	assert.Equal(t, 3600*time.Second, cfg.RefreshInterval)
	assert.Equal(t, int64(1), cfg.DefaultStoreID)
	assert.True(t, cfg.PhoneEnabled)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, 100, cfg.RateLimit)
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_PORT", ":8080")
	t.Setenv("APP_URL", "https://shop.example.com/")
	t.Setenv("REFRESH_INTERVAL", "15m")
	t.Setenv("STORE_TIMEZONE", "Australia/Sydney")
	t.Setenv("DEFAULT_STORE_ID", "7")
	t.Setenv("CUSTOMER_USERNAMES_ENABLED", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("ADMIN_API_KEY", "admin-key")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "30")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr())
	assert.Equal(t, "https://shop.example.com", cfg.AppURL)
	assert.Equal(t, 15*time.Minute, cfg.RefreshInterval)
	assert.Equal(t, "Australia/Sydney", cfg.Location().String())
	assert.Equal(t, int64(7), cfg.DefaultStoreID)
	assert.True(t, cfg.UsernamesEnabled)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSOrigins)
	assert.Equal(t, "admin-key", cfg.AdminAPIKey)
	assert.Equal(t, 30, cfg.RateLimit)
}

func TestLoad_InvalidTimezone(t *testing.T) {
	t.Setenv("STORE_TIMEZONE", "Mars/Olympus")

	_, err := Load()
	assert.Error(t, err)
}

func TestSettings_ActiveCredentials(t *testing.T) {
	s := DefaultSettings(1)
	s.Sandbox.AccountID = "sandbox-acc"
	s.Production.AccountID = "prod-acc"

	assert.Equal(t, "sandbox-acc", s.ActiveCredentials().AccountID)
	assert.Equal(t, "sandbox", s.Environment())

	s.IsSandbox = false
	assert.Equal(t, "prod-acc", s.ActiveCredentials().AccountID)
	assert.Equal(t, "production", s.Environment())
}

func TestSettings_Session(t *testing.T) {
	s := DefaultSettings(1)
	assert.True(t, s.RefundIncludesAmount)

	updated := s.WithSession("T1", "https://x.my.salesforce.com")
	assert.Equal(t, "T1", updated.AccessToken)
	assert.Equal(t, "https://x.my.salesforce.com", updated.InstanceURL)
	assert.Empty(t, s.AccessToken, "WithSession must not modify the receiver")
}
