package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Validator *validator.Validate
}

// AppConfig represents the application configuration
type AppConfig struct {
	Port             string
	AppURL           string
	Environment      string
	LogFormat        string
	LogLevel         string
	SQLitePath       string
	RedisURL         string
	SettingsCacheTTL time.Duration
	RefreshInterval  time.Duration
	StoreTimezone    string
	DefaultStoreID   int64
	UsernamesEnabled bool
	PhoneEnabled     bool
	OpenSearchURL    string
	OpenSearchUser   string
	OpenSearchPass   string
	EnableOpenSearch bool
	CORSOrigins      []string
	AdminAPIKey      string
	RateLimit        int
}

var instance *Config

func App() *Config {
	if instance == nil {
		instance = &Config{
			Validator: validator.New(),
		}
	}
	return instance
}

// Load reads the application configuration from the environment and an optional .env file.
func Load() (*AppConfig, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &AppConfig{
		Port:             valueOrDefault(k.String("APP_PORT"), "9999"),
		AppURL:           strings.TrimRight(valueOrDefault(k.String("APP_URL"), "http://localhost:9999"), "/"),
		Environment:      valueOrDefault(k.String("ENVIRONMENT"), "development"),
		LogFormat:        valueOrDefault(k.String("LOG_FORMAT"), "console"),
		LogLevel:         valueOrDefault(k.String("LOG_LEVEL"), "info"),
		SQLitePath:       valueOrDefault(k.String("SQLITE_PATH"), "./data/hummpay.db"),
		RedisURL:         k.String("REDIS_URL"),
		SettingsCacheTTL: parseDuration(k.String("SETTINGS_CACHE_TTL"), "10m"),
		RefreshInterval:  parseDuration(k.String("REFRESH_INTERVAL"), "3600s"),
		StoreTimezone:    valueOrDefault(k.String("STORE_TIMEZONE"), "UTC"),
		DefaultStoreID:   parseInt64(k.String("DEFAULT_STORE_ID"), 1),
		UsernamesEnabled: parseBool(k.String("CUSTOMER_USERNAMES_ENABLED"), false),
		PhoneEnabled:     parseBool(k.String("CUSTOMER_PHONE_ENABLED"), true),
		OpenSearchURL:    valueOrDefault(k.String("OPENSEARCH_URL"), "http://localhost:9200"),
		OpenSearchUser:   k.String("OPENSEARCH_USER"),
		OpenSearchPass:   k.String("OPENSEARCH_PASSWORD"),
		EnableOpenSearch: parseBool(k.String("ENABLE_OPENSEARCH_LOGGING"), false),
		CORSOrigins:      splitAndTrim(valueOrDefault(k.String("CORS_ALLOWED_ORIGINS"), "*")),
		AdminAPIKey:      k.String("ADMIN_API_KEY"),
		RateLimit:        int(parseInt64(k.String("RATE_LIMIT_PER_MINUTE"), 100)),
	}

	if _, err := time.LoadLocation(cfg.StoreTimezone); err != nil {
		return nil, fmt.Errorf("invalid STORE_TIMEZONE %q: %w", cfg.StoreTimezone, err)
	}
	if cfg.RefreshInterval < time.Second {
		return nil, fmt.Errorf("REFRESH_INTERVAL must be at least one second")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server binds to.
func (c *AppConfig) HTTPAddr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

// Location returns the store time zone, falling back to UTC.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.StoreTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
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
	if parsed, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
		return parsed
	}
	return fallback
}

func parseInt64(value string, fallback int64) int64 {
	if parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
		return parsed
	}
	return fallback
}

func splitAndTrim(value string) []string {
	var result []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
