// Package config loads server configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port          string
	AllowedOrigin string

	// DatabaseURL empty means the in-memory seeded store; RedisAddr empty
	// means the no-op cache.
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AuthSecret     string
	AccessTokenTTL time.Duration

	BaseCurrency        string
	AltCurrency         string
	DefaultExchangeRate string

	SheetsCredentialsPath   string
	SettlementSpreadsheetID string

	RuleSetCacheTTL time.Duration
	RateCacheTTL    time.Duration
}

func Load() Config {
	return Config{
		Port:          getEnv("PORT", "8080"),
		AllowedOrigin: getEnv("ALLOWED_ORIGIN", "*"),

		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		AuthSecret:     getEnv("AUTH_SECRET", "dev-secret-change-me"),
		AccessTokenTTL: time.Duration(getEnvInt("ACCESS_TOKEN_TTL_MINUTES", 12*60)) * time.Minute,

		BaseCurrency:        getEnv("BASE_CURRENCY", "UAH"),
		AltCurrency:         getEnv("ALT_CURRENCY", "USD"),
		DefaultExchangeRate: getEnv("DEFAULT_EXCHANGE_RATE", "0.0243"),

		SheetsCredentialsPath:   os.Getenv("SHEETS_CREDENTIALS_PATH"),
		SettlementSpreadsheetID: os.Getenv("SETTLEMENT_SPREADSHEET_ID"),

		RuleSetCacheTTL: time.Duration(getEnvInt("RULESET_CACHE_TTL_SECONDS", 300)) * time.Second,
		RateCacheTTL:    time.Duration(getEnvInt("RATE_CACHE_TTL_SECONDS", 600)) * time.Second,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
