// Package cache keeps the latest household telemetry in Redis for fast reads.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ANIKETSHETTY47/household-energy-simulator/internal/domain"
)

// MessageLimit bounds the cached message list per household.
const MessageLimit = 10

// DefaultReadingTTL expires a latest reading nobody refreshed.
const DefaultReadingTTL = 5 * time.Minute

// Store is the subset of *redis.Client the cache uses.
type Store interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
}

type Cache struct {
	rdb Store
	ttl time.Duration
}

// Connect opens a client and pings it.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}

func New(rdb Store, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultReadingTTL
	}
	return &Cache{rdb: rdb, ttl: ttl}
}

func readingKey(household string) string { return fmt.Sprintf("household:%s:reading", household) }

func messagesKey(household string) string { return fmt.Sprintf("household:%s:messages", household) }

// SetLatestReading overwrites the household's latest reading.
func (c *Cache) SetLatestReading(ctx context.Context, household string, r domain.LiveReading) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal reading: %w", err)
	}
	if err := c.rdb.Set(ctx, readingKey(household), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache reading: %w", err)
	}
	return nil
}

// LatestReading returns false when nothing is cached.
func (c *Cache) LatestReading(ctx context.Context, household string) (domain.LiveReading, bool, error) {
	raw, err := c.rdb.Get(ctx, readingKey(household)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.LiveReading{}, false, nil
	}
	if err != nil {
		return domain.LiveReading{}, false, fmt.Errorf("get reading: %w", err)
	}
	var r domain.LiveReading
	if err := json.Unmarshal(raw, &r); err != nil {
		return domain.LiveReading{}, false, fmt.Errorf("unmarshal reading: %w", err)
	}
	return r, true, nil
}

// PushMessage prepends m and keeps the newest MessageLimit entries.
func (c *Cache) PushMessage(ctx context.Context, household string, m domain.Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	key := messagesKey(household)
	if err := c.rdb.LPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("push message: %w", err)
	}
	if err := c.rdb.LTrim(ctx, key, 0, MessageLimit-1).Err(); err != nil {
		return fmt.Errorf("trim messages: %w", err)
	}
	return nil
}

// RecentMessages returns up to limit messages, newest first.
func (c *Cache) RecentMessages(ctx context.Context, household string, limit int) ([]domain.Message, error) {
	if limit <= 0 || limit > MessageLimit {
		limit = MessageLimit
	}
	items, err := c.rdb.LRange(ctx, messagesKey(household), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	out := make([]domain.Message, 0, len(items))
	for _, item := range items {
		var m domain.Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}
