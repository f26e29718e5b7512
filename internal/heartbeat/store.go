// Package heartbeat defines the timestamp store that holds the last-seen
// time of every pinging entity, and its Redis sorted-set implementation.
package heartbeat

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/heartbeat-watcher/pkg/errors"
	pkgredis "github.com/Adithya-Monish-Kumar-K/heartbeat-watcher/pkg/redis"
)

// Store holds at most one last-seen timestamp (unix seconds) per entity.
// Each operation is atomic on its own; no grouping is offered.
type Store interface {
	// RecordHeartbeat upserts the entity's timestamp.
	RecordHeartbeat(ctx context.Context, entityID string, ts int64) error
	// QueryStale returns entities with timestamp <= threshold, oldest first.
	QueryStale(ctx context.Context, threshold int64) ([]string, error)
	// EvictStale deletes every entity with timestamp <= threshold.
	EvictStale(ctx context.Context, threshold int64) (int64, error)
}

// RedisStore keeps heartbeats in a single sorted set: member = entity id,
// score = last-seen unix seconds.
type RedisStore struct {
	client *pkgredis.Client
	key    string
}

// NewRedisStore creates a store backed by the sorted set at key.
func NewRedisStore(client *pkgredis.Client, key string) *RedisStore {
	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) RecordHeartbeat(ctx context.Context, entityID string, ts int64) error {
	if err := s.client.ZAdd(ctx, s.key, ts, entityID); err != nil {
		return apperrors.Store("recording heartbeat", err)
	}
	return nil
}

func (s *RedisStore) QueryStale(ctx context.Context, threshold int64) ([]string, error) {
	ids, err := s.client.ZRangeByScoreUpTo(ctx, s.key, threshold)
	if err != nil {
		return nil, apperrors.Store("querying stale entities", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

func (s *RedisStore) EvictStale(ctx context.Context, threshold int64) (int64, error) {
	n, err := s.client.ZRemRangeByScoreUpTo(ctx, s.key, threshold)
	if err != nil {
		return 0, apperrors.Store("evicting stale entities", err)
	}
	return n, nil
}

// LastSeen returns the entity's recorded timestamp, or false if it has none.
func (s *RedisStore) LastSeen(ctx context.Context, entityID string) (time.Time, bool, error) {
	ts, ok, err := s.client.ZScore(ctx, s.key, entityID)
	if err != nil {
		return time.Time{}, false, apperrors.Store("reading last-seen", err)
	}
	if !ok {
		return time.Time{}, false, nil
	}
	return time.Unix(ts, 0).UTC(), true, nil
}

// Count returns the number of tracked entities.
func (s *RedisStore) Count(ctx context.Context) (int64, error) {
	n, err := s.client.ZCard(ctx, s.key)
	if err != nil {
		return 0, apperrors.Store("counting entities", err)
	}
	return n, nil
}

// Ping checks the store connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx); err != nil {
		return fmt.Errorf("pinging heartbeat store: %w", err)
	}
	return nil
}
