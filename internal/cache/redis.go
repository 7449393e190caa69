package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"roza/backend/internal/domain"
)

type redisCache struct {
	client *redis.Client
}

// NewRedis connects to Redis and verifies the connection before returning.
func NewRedis(ctx context.Context, addr, password string, db int) (Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &redisCache{client: client}, nil
}

func ruleSetKey(clientID string) string {
	return "roza:ruleset:" + clientID
}

func rateCacheKey(base, quote string) string {
	return "roza:rate:" + strings.ToUpper(base) + ":" + strings.ToUpper(quote)
}

func (c *redisCache) GetRuleSet(ctx context.Context, clientID string) (*domain.PricingRuleSet, error) {
	return getJSON[domain.PricingRuleSet](ctx, c.client, ruleSetKey(clientID))
}

func (c *redisCache) SetRuleSet(ctx context.Context, ruleSet *domain.PricingRuleSet, ttl time.Duration) error {
	return setJSON(ctx, c.client, ruleSetKey(ruleSet.ClientID), ruleSet, ttl)
}

func (c *redisCache) InvalidateRuleSet(ctx context.Context, clientID string) error {
	return c.client.Del(ctx, ruleSetKey(clientID)).Err()
}

func (c *redisCache) GetExchangeRate(ctx context.Context, base, quote string) (*domain.ExchangeRate, error) {
	return getJSON[domain.ExchangeRate](ctx, c.client, rateCacheKey(base, quote))
}

func (c *redisCache) SetExchangeRate(ctx context.Context, rate *domain.ExchangeRate, ttl time.Duration) error {
	return setJSON(ctx, c.client, rateCacheKey(rate.Base, rate.Quote), rate, ttl)
}

func (c *redisCache) InvalidateExchangeRate(ctx context.Context, base, quote string) error {
	return c.client.Del(ctx, rateCacheKey(base, quote)).Err()
}

func (c *redisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *redisCache) Close() error {
	return c.client.Close()
}

func getJSON[T any](ctx context.Context, client *redis.Client, key string) (*T, error) {
	raw, err := client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get %s: %w", key, err)
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		// A corrupt entry is treated as a miss rather than a hard failure.
		return nil, nil
	}
	return &v, nil
}

func setJSON(ctx context.Context, client *redis.Client, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if err := client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}
