// Package benchmark contains Go benchmarks for the heartbeat write path and
// the stale scan, measuring throughput and allocation behaviour against an
// in-process Redis.
package benchmark

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/heartbeat-watcher/internal/heartbeat"
	"github.com/Adithya-Monish-Kumar-K/heartbeat-watcher/internal/scanner"
	"github.com/Adithya-Monish-Kumar-K/heartbeat-watcher/pkg/config"
	pkgredis "github.com/Adithya-Monish-Kumar-K/heartbeat-watcher/pkg/redis"
	"github.com/alicebob/miniredis/v2"
)

type nopReporter struct{}

func (nopReporter) Report(context.Context, []string) error { return nil }

func newStore(b *testing.B) *heartbeat.RedisStore {
	b.Helper()
	mr := miniredis.RunT(b)
	client, err := pkgredis.NewClient(config.RedisConfig{URL: "redis://" + mr.Addr(), PoolSize: 32})
	if err != nil {
		b.Fatalf("connecting to miniredis: %v", err)
	}
	b.Cleanup(func() { client.Close() })
	return heartbeat.NewRedisStore(client, config.DefaultHealthcheckKey)
}

// BenchmarkRecordHeartbeat measures single-connection upsert throughput over
// a working set of 1 000 entities.
func BenchmarkRecordHeartbeat(b *testing.B) {
	store := newStore(b)
	rec := heartbeat.NewRecorder(store, nil)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := rec.Record(ctx, fmt.Sprintf("entity-%d", i%1000)); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkRecordHeartbeatParallel measures concurrent upsert throughput.
func BenchmarkRecordHeartbeatParallel(b *testing.B) {
	store := newStore(b)
	rec := heartbeat.NewRecorder(store, nil)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			if _, err := rec.Record(ctx, fmt.Sprintf("entity-%d", i%1000)); err != nil {
				b.Error(err)
				return
			}
			i++
		}
	})
}

// BenchmarkScanCycle measures a full query/report/evict pass over 1 000
// stale entities.
func BenchmarkScanCycle(b *testing.B) {
	store := newStore(b)
	ctx := context.Background()
	s := scanner.New(store, nopReporter{}, scanner.Config{
		StaleThreshold: 30 * time.Second,
		Now:            func() time.Time { return time.Unix(10_000, 0) },
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		for j := 0; j < 1000; j++ {
			if err := store.RecordHeartbeat(ctx, fmt.Sprintf("entity-%d", j), 1000); err != nil {
				b.Fatal(err)
			}
		}
		b.StartTimer()
		if _, err := s.RunCycle(ctx); err != nil {
			b.Fatal(err)
		}
	}
}
