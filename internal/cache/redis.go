// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jason-s-yu/tabletop/internal/config"
	"github.com/redis/go-redis/v9"
)

// Connect creates a Redis client and pings it once.
func Connect(ctx context.Context, cfg config.Redis) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
		DB:   cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

// DelayQueue is a sorted set of members scored by the unix millisecond they
// become due.
type DelayQueue struct {
	rdb *redis.Client
	key string
}

func NewDelayQueue(rdb *redis.Client, key string) *DelayQueue {
	return &DelayQueue{rdb: rdb, key: key}
}

// Push schedules member for at. Pushing a queued member again reschedules it.
func (q *DelayQueue) Push(ctx context.Context, member string, at time.Time) error {
	err := q.rdb.ZAdd(ctx, q.key, redis.Z{
		Score:  float64(at.UnixMilli()),
		Member: member,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to ZADD to '%s': %w", q.key, err)
	}
	return nil
}

// Claim removes and returns up to limit members due at now. A member is
// returned to exactly one of several concurrent claimers.
func (q *DelayQueue) Claim(ctx context.Context, now time.Time, limit int64) ([]string, error) {
	due, err := q.rdb.ZRangeByScore(ctx, q.key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: limit,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to ZRANGEBYSCORE '%s': %w", q.key, err)
	}

	var claimed []string
	for _, member := range due {
		removed, err := q.rdb.ZRem(ctx, q.key, member).Result()
		if err != nil {
			return claimed, fmt.Errorf("failed to ZREM from '%s': %w", q.key, err)
		}
		if removed == 1 {
			claimed = append(claimed, member)
		}
	}
	return claimed, nil
}

// Len returns the number of queued members.
func (q *DelayQueue) Len(ctx context.Context) (int64, error) {
	return q.rdb.ZCard(ctx, q.key).Result()
}

// Bus relays JSON messages between processes over Redis pub/sub.
type Bus struct {
	rdb    *redis.Client
	prefix string
}

func NewBus(rdb *redis.Client, prefix string) *Bus {
	return &Bus{rdb: rdb, prefix: prefix}
}

// Publish serializes payload to JSON and publishes it on prefix+topic.
func (b *Bus) Publish(ctx context.Context, topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal bus message: %w", err)
	}
	if err := b.rdb.Publish(ctx, b.prefix+topic, data).Err(); err != nil {
		return fmt.Errorf("failed to PUBLISH to '%s': %w", b.prefix+topic, err)
	}
	return nil
}

// Subscribe calls handle for every message published on any topic until ctx
// is done. The topic is passed without the prefix.
func (b *Bus) Subscribe(ctx context.Context, handle func(topic string, data []byte)) error {
	sub := b.rdb.PSubscribe(ctx, b.prefix+"*")
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to PSUBSCRIBE '%s*': %w", b.prefix, err)
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			handle(msg.Channel[len(b.prefix):], []byte(msg.Payload))
		}
	}
}
