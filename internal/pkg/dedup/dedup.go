// Package dedup 基于 Redis SETNX 识别重复的写请求（Idempotency-Key）。
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "tasktracker:idempotency:"

// DefaultTTL 幂等键的保留时间。
const DefaultTTL = 24 * time.Hour

// Guard 在 TTL 窗口内记住 (用户, 幂等键)，重复出现时报告为重复请求。
type Guard struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewGuard 创建 Guard；ttl <= 0 时使用 DefaultTTL。
func NewGuard(rdb *redis.Client, ttl time.Duration) *Guard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Guard{
		rdb: rdb,
		ttl: ttl,
	}
}

// Claim 占用幂等键。键已被占用时返回 false。
func (g *Guard) Claim(ctx context.Context, userID uint, key string) (bool, error) {
	if g == nil || g.rdb == nil || key == "" {
		return true, nil
	}
	ok, err := g.rdb.SetNX(ctx, redisKey(userID, key), "1", g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup setnx: %w", err)
	}
	return ok, nil
}

// Release 释放幂等键，使失败的请求可以重试。
func (g *Guard) Release(ctx context.Context, userID uint, key string) error {
	if g == nil || g.rdb == nil || key == "" {
		return nil
	}
	if err := g.rdb.Del(ctx, redisKey(userID, key)).Err(); err != nil {
		return fmt.Errorf("dedup del: %w", err)
	}
	return nil
}

func redisKey(userID uint, key string) string {
	sum := sha256.Sum256([]byte(key))
	return keyPrefix + strconv.FormatUint(uint64(userID), 10) + ":" + hex.EncodeToString(sum[:])
}
