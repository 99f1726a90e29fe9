package scan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"wallet-tax-sol/pkg/logger"
)

const cursorKeyPrefix = "wallet_tax:scan_cursor:"

// CursorStore 用 Redis 持久化各钱包的扫描游标，配额中断后跨进程续扫。
type CursorStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewCursorStore(rdb *redis.Client, ttl time.Duration) *CursorStore {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &CursorStore{rdb: rdb, ttl: ttl}
}

// Load 读取 owner 的游标；没有存过返回 (nil, nil)。
func (s *CursorStore) Load(ctx context.Context, owner string) (*Cursor, error) {
	raw, err := s.rdb.Get(ctx, cursorKeyPrefix+owner).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load scan cursor: %w", err)
	}
	var cur Cursor
	if err := json.Unmarshal([]byte(raw), &cur); err != nil {
		// 游标损坏按不存在处理，从头扫比报错更安全
		logger.Warnf("[scan] corrupt cursor for %s, resetting: %v", owner, err)
		return nil, nil
	}
	return &cur, nil
}

// Save 写入 owner 的游标。
func (s *CursorStore) Save(ctx context.Context, owner string, cur *Cursor) error {
	raw, err := json.Marshal(cur)
	if err != nil {
		return fmt.Errorf("marshal scan cursor: %w", err)
	}
	if err := s.rdb.Set(ctx, cursorKeyPrefix+owner, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save scan cursor: %w", err)
	}
	return nil
}

// Clear 删除 owner 的游标（完整扫描成功后调用）。
func (s *CursorStore) Clear(ctx context.Context, owner string) error {
	if err := s.rdb.Del(ctx, cursorKeyPrefix+owner).Err(); err != nil {
		return fmt.Errorf("clear scan cursor: %w", err)
	}
	return nil
}
