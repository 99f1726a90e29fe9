package cache

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRateCache_PutGet(t *testing.T) {
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	c := NewRateCache(time.Hour, func() time.Time { return now }, nil)
	ctx := context.Background()

	_, ok := c.Get(ctx, "SOL", "USD", "2024-01-15")
	assert.False(t, ok)

	c.Put(ctx, "SOL", "USD", "2024-01-15", decimal.RequireFromString("98.5"))
	rate, ok := c.Get(ctx, "SOL", "USD", "2024-01-15")
	assert.True(t, ok)
	assert.Equal(t, "98.5", rate.String())

	// 币对与日期都参与 key
	_, ok = c.Get(ctx, "SOL", "USD", "2024-01-16")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "SOL", "EUR", "2024-01-15")
	assert.False(t, ok)
}

func TestRateCache_TTLExpiry(t *testing.T) {
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	c := NewRateCache(time.Hour, func() time.Time { return now }, nil)
	ctx := context.Background()

	c.Put(ctx, "SOL", "USD", "2024-01-15", decimal.RequireFromString("98.5"))

	now = now.Add(time.Hour) // 恰好到期边界，仍命中
	_, ok := c.Get(ctx, "SOL", "USD", "2024-01-15")
	assert.True(t, ok)

	now = now.Add(time.Second) // 过期
	_, ok = c.Get(ctx, "SOL", "USD", "2024-01-15")
	assert.False(t, ok)
}
