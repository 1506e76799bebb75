package service

import (
	"context"
	"fmt"
	"time"

	"ledgerpay/config"

	"github.com/redis/go-redis/v9"
)

const (
	revenueTotalKey   = "revenue:total"
	revenueDayPrefix  = "revenue:day:"
	revenueProvPrefix = "revenue:provider:"
	revenueDayKeyTTL  = 400 * 24 * time.Hour
	revenueDateLayout = "2006-01-02"
)

// RevenueTracker keeps running revenue counters in Redis for the admin
// dashboard. The ledger stays the source of truth.
type RevenueTracker struct {
	rdb *redis.Client
}

// NewRevenueTracker returns nil when no Redis address is configured.
func NewRevenueTracker(cfg config.RedisConfig) *RevenueTracker {
	if cfg.Addr == "" {
		return nil
	}
	return NewRevenueTrackerWithClient(redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}))
}

func NewRevenueTrackerWithClient(rdb *redis.Client) *RevenueTracker {
	return &RevenueTracker{rdb: rdb}
}

func (t *RevenueTracker) Name() string { return "revenue" }

func (t *RevenueTracker) HandleSettled(ctx context.Context, ev SettledEvent) error {
	day := revenueDayPrefix + ev.SettledAt.UTC().Format(revenueDateLayout)
	pipe := t.rdb.TxPipeline()
	pipe.IncrBy(ctx, revenueTotalKey, ev.AmountCents)
	pipe.IncrBy(ctx, day, ev.AmountCents)
	pipe.Expire(ctx, day, revenueDayKeyTTL)
	pipe.IncrBy(ctx, revenueProvPrefix+string(ev.Provider), ev.AmountCents)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record revenue: %w", err)
	}
	return nil
}

type RevenueTotals struct {
	TotalCents      int64            `json:"total_cents"`
	TodayCents      int64            `json:"today_cents"`
	ByProviderCents map[string]int64 `json:"by_provider_cents"`
}

func (t *RevenueTracker) Totals(ctx context.Context, now time.Time, providers []string) (*RevenueTotals, error) {
	out := &RevenueTotals{ByProviderCents: make(map[string]int64, len(providers))}
	var err error
	if out.TotalCents, err = t.getInt(ctx, revenueTotalKey); err != nil {
		return nil, err
	}
	if out.TodayCents, err = t.getInt(ctx, revenueDayPrefix+now.UTC().Format(revenueDateLayout)); err != nil {
		return nil, err
	}
	for _, p := range providers {
		v, err := t.getInt(ctx, revenueProvPrefix+p)
		if err != nil {
			return nil, err
		}
		out.ByProviderCents[p] = v
	}
	return out, nil
}

func (t *RevenueTracker) Close() error {
	return t.rdb.Close()
}

func (t *RevenueTracker) getInt(ctx context.Context, key string) (int64, error) {
	v, err := t.rdb.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", key, err)
	}
	return v, nil
}
