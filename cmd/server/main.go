package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"roza/backend/internal/cache"
	"roza/backend/internal/config"
	"roza/backend/internal/httpapi"
	"roza/backend/internal/ledgersource"
	"roza/backend/internal/service"
	"roza/backend/internal/store"
	"roza/backend/internal/store/memory"
	"roza/backend/internal/store/postgres"
)

// validateSecurityConfig refuses to start a non-local deployment on the
// development auth secret or one too short to resist brute force.
func validateSecurityConfig(cfg config.Config) error {
	if cfg.DatabaseURL == "" {
		return nil
	}
	if cfg.AuthSecret == "dev-secret-change-me" {
		return errors.New("AUTH_SECRET is still the development default")
	}
	if len(cfg.AuthSecret) < 32 {
		return errors.New("AUTH_SECRET must be at least 32 bytes")
	}
	return nil
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[main] load .env: %v", err)
	}
	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("[main] security config: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var repo store.Repository
	var closers []func()
	if cfg.DatabaseURL != "" {
		pg, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("[main] postgres: %v", err)
		}
		closers = append(closers, pg.Close)
		repo = pg
		log.Println("[main] using postgres store")
	} else {
		repo = memory.NewSeeded()
		log.Println("[main] DATABASE_URL not set, using seeded in-memory store")
	}

	appCache := cache.NewNoop()
	if cfg.RedisAddr != "" {
		rc, err := cache.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatalf("[main] redis: %v", err)
		}
		closers = append(closers, func() { _ = rc.Close() })
		appCache = rc
		log.Println("[main] redis cache connected")
	}

	history := ledgersource.NewDisabled()
	if cfg.SheetsCredentialsPath != "" && cfg.SettlementSpreadsheetID != "" {
		src, err := ledgersource.NewSheets(ctx, cfg.SheetsCredentialsPath, cfg.SettlementSpreadsheetID)
		if err != nil {
			log.Fatalf("[main] sheets ledger source: %v", err)
		}
		history = src
		log.Println("[main] sheets ledger source configured")
	}

	defaultRate, err := decimal.NewFromString(cfg.DefaultExchangeRate)
	if err != nil {
		log.Fatalf("[main] invalid DEFAULT_EXCHANGE_RATE %q: %v", cfg.DefaultExchangeRate, err)
	}

	svc := service.New(repo, appCache, history, service.Options{
		BaseCurrency:    cfg.BaseCurrency,
		AltCurrency:     cfg.AltCurrency,
		DefaultRate:     defaultRate,
		RuleSetCacheTTL: cfg.RuleSetCacheTTL,
		RateCacheTTL:    cfg.RateCacheTTL,
	})
	auth := httpapi.NewAuthManager(repo, cfg.AuthSecret, cfg.AccessTokenTTL)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin, cfg.AuthSecret)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[main] listening on :%s", cfg.Port)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Println("[main] shutdown signal received")
	case err := <-errCh:
		log.Printf("[main] server stopped: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[main] shutdown: %v", err)
	}
	for _, closeFn := range closers {
		closeFn()
	}
	log.Println("[main] bye")
}
