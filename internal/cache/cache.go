// Package cache defines the read-through caches in front of the repository:
// per-client pricing rule sets and the exchange rate. Both have a Redis
// implementation and a no-op fallback so the server runs without Redis.
package cache

import (
	"context"
	"time"

	"roza/backend/internal/domain"
)

// Cache is a typed cache for the hot read paths. A (nil, nil) return from a
// getter means a miss; errors are reserved for transport failures.
type Cache interface {
	GetRuleSet(ctx context.Context, clientID string) (*domain.PricingRuleSet, error)
	SetRuleSet(ctx context.Context, ruleSet *domain.PricingRuleSet, ttl time.Duration) error
	InvalidateRuleSet(ctx context.Context, clientID string) error

	GetExchangeRate(ctx context.Context, base, quote string) (*domain.ExchangeRate, error)
	SetExchangeRate(ctx context.Context, rate *domain.ExchangeRate, ttl time.Duration) error
	InvalidateExchangeRate(ctx context.Context, base, quote string) error

	Ping(ctx context.Context) error
	Close() error
}

type noop struct{}

// NewNoop returns a cache that always misses.
func NewNoop() Cache { return noop{} }

func (noop) GetRuleSet(context.Context, string) (*domain.PricingRuleSet, error) { return nil, nil }
func (noop) SetRuleSet(context.Context, *domain.PricingRuleSet, time.Duration) error {
	return nil
}
func (noop) InvalidateRuleSet(context.Context, string) error { return nil }
func (noop) GetExchangeRate(context.Context, string, string) (*domain.ExchangeRate, error) {
	return nil, nil
}
func (noop) SetExchangeRate(context.Context, *domain.ExchangeRate, time.Duration) error { return nil }
func (noop) InvalidateExchangeRate(context.Context, string, string) error               { return nil }
func (noop) Ping(context.Context) error                                                 { return nil }
func (noop) Close() error                                                               { return nil }
