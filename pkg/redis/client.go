// Package redis provides a thin wrapper around go-redis/v9 with connection
// pooling and the sorted-set commands the watcher relies on: upsert by
// score, range query by score and range delete by score.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/heartbeat-watcher/pkg/config"
	"github.com/redis/go-redis/v9"
)

// Client wraps a go-redis client.
type Client struct {
	rdb *redis.Client
}

// NewClient parses the configured URL, creates a pooled client and verifies
// the connection with a PING.
func NewClient(cfg config.RedisConfig) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{rdb: rdb}, nil
}

// ZAdd sets member's score, inserting or overwriting.
func (c *Client) ZAdd(ctx context.Context, key string, score int64, member string) error {
	return c.rdb.ZAdd(ctx, key, redis.Z{Score: float64(score), Member: member}).Err()
}

// ZRangeByScoreUpTo returns members with score <= max, ascending by score.
func (c *Client) ZRangeByScoreUpTo(ctx context.Context, key string, max int64) ([]string, error) {
	return c.rdb.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(max, 10),
	}).Result()
}

// ZRemRangeByScoreUpTo deletes every member with score <= max and returns
// the number removed.
func (c *Client) ZRemRangeByScoreUpTo(ctx context.Context, key string, max int64) (int64, error) {
	return c.rdb.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(max, 10)).Result()
}

// ZScore returns member's score. The boolean is false when the member is
// absent.
func (c *Client) ZScore(ctx context.Context, key, member string) (int64, bool, error) {
	score, err := c.rdb.ZScore(ctx, key, member).Result()
	if IsNilError(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return int64(score), true, nil
}

// ZCard returns the number of members in the sorted set.
func (c *Client) ZCard(ctx context.Context, key string) (int64, error) {
	return c.rdb.ZCard(ctx, key).Result()
}

// IsNilError reports whether err is a Redis nil (key-not-found) error.
func IsNilError(err error) bool {
	return err == redis.Nil
}

// Close closes the underlying Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping sends a PING to Redis and returns any error.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
