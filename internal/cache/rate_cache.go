package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"wallet-tax-sol/pkg/logger"
)

const rateKeyPrefix = "wallet_tax:rate:"

// RateCache 按 (币对, 日期) 缓存历史汇率。
// TTL 与时钟均注入，测试可控制时间与隔离缓存状态；
// rdb 非 nil 时写穿到 Redis，进程重启后热数据不丢。
type RateCache struct {
	mu      sync.RWMutex
	entries map[string]rateEntry
	ttl     time.Duration
	clock   func() time.Time
	rdb     *redis.Client
}

type rateEntry struct {
	rate decimal.Decimal
	at   time.Time
}

func NewRateCache(ttl time.Duration, clock func() time.Time, rdb *redis.Client) *RateCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if clock == nil {
		clock = time.Now
	}
	return &RateCache{
		entries: make(map[string]rateEntry),
		ttl:     ttl,
		clock:   clock,
		rdb:     rdb,
	}
}

func rateKey(base, quote, date string) string {
	return fmt.Sprintf("%s%s/%s@%s", rateKeyPrefix, base, quote, date)
}

// Get 返回缓存汇率；过期条目视为未命中并惰性清除。
func (c *RateCache) Get(ctx context.Context, base, quote, date string) (decimal.Decimal, bool) {
	key := rateKey(base, quote, date)

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		if c.clock().Sub(e.at) <= c.ttl {
			return e.rate, true
		}
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
	}

	if c.rdb == nil {
		return decimal.Zero, false
	}
	raw, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		return decimal.Zero, false
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		logger.Warnf("[rate_cache] corrupt redis entry %s: %v", key, err)
		return decimal.Zero, false
	}
	c.mu.Lock()
	c.entries[key] = rateEntry{rate: rate, at: c.clock()}
	c.mu.Unlock()
	return rate, true
}

// Put 写入缓存（内存 + 可选 Redis 写穿）。
func (c *RateCache) Put(ctx context.Context, base, quote, date string, rate decimal.Decimal) {
	key := rateKey(base, quote, date)

	c.mu.Lock()
	c.entries[key] = rateEntry{rate: rate, at: c.clock()}
	c.mu.Unlock()

	if c.rdb != nil {
		if err := c.rdb.Set(ctx, key, rate.String(), c.ttl).Err(); err != nil {
			logger.Warnf("[rate_cache] redis set %s failed: %v", key, err)
		}
	}
}
