// Command pinger simulates a fleet of entities sending heartbeats to the
// watcher. A fraction of them go silent after a delay so the scanner has
// something to report.
//
// Usage:
//
//	go run ./cmd/pinger -url http://localhost:8080 -entities 50 -silent 0.2
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type Config struct {
	BaseURL     string
	Entities    int
	Interval    time.Duration
	Duration    time.Duration
	SilentRatio float64
	SilentAfter time.Duration
}

type Stats struct {
	totalRequests atomic.Int64
	successCount  atomic.Int64
	errorCount    atomic.Int64
	silenced      atomic.Int64
	latencies     []time.Duration
	latenciesMu   sync.Mutex
	statusCodes   map[int]*atomic.Int64
	statusCodesMu sync.Mutex
}

func NewStats() *Stats {
	return &Stats{
		latencies:   make([]time.Duration, 0, 10000),
		statusCodes: make(map[int]*atomic.Int64),
	}
}

func (s *Stats) RecordRequest(duration time.Duration, statusCode int, err error) {
	s.totalRequests.Add(1)

	if err != nil {
		s.errorCount.Add(1)
		return
	}

	if statusCode >= 200 && statusCode < 300 {
		s.successCount.Add(1)
	} else {
		s.errorCount.Add(1)
	}

	s.latenciesMu.Lock()
	s.latencies = append(s.latencies, duration)
	s.latenciesMu.Unlock()

	s.statusCodesMu.Lock()
	if _, ok := s.statusCodes[statusCode]; !ok {
		s.statusCodes[statusCode] = &atomic.Int64{}
	}
	s.statusCodes[statusCode].Add(1)
	s.statusCodesMu.Unlock()
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the watcher")
	entities := flag.Int("entities", 20, "number of simulated entities")
	interval := flag.Duration("interval", 5*time.Second, "heartbeat interval per entity")
	duration := flag.Duration("duration", time.Minute, "run duration")
	silent := flag.Float64("silent", 0.25, "fraction of entities that stop pinging")
	silentAfter := flag.Duration("silent-after", 15*time.Second, "when silent entities stop pinging")
	flag.Parse()

	cfg := Config{
		BaseURL:     *baseURL,
		Entities:    *entities,
		Interval:    *interval,
		Duration:    *duration,
		SilentRatio: math.Max(0, math.Min(1, *silent)),
		SilentAfter: *silentAfter,
	}

	fmt.Println("=== Heartbeat Pinger ===")
	fmt.Printf("Target:       %s\n", cfg.BaseURL)
	fmt.Printf("Entities:     %d\n", cfg.Entities)
	fmt.Printf("Interval:     %s\n", cfg.Interval)
	fmt.Printf("Duration:     %s\n", cfg.Duration)
	fmt.Printf("Going silent: %d after %s\n", silentCount(cfg), cfg.SilentAfter)
	fmt.Println()

	stats := run(cfg)
	printReport(stats, cfg.Duration)
}

func silentCount(cfg Config) int {
	return int(math.Round(float64(cfg.Entities) * cfg.SilentRatio))
}

func run(cfg Config) *Stats {
	stats := NewStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Entities,
			MaxIdleConnsPerHost: cfg.Entities,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	silentN := silentCount(cfg)
	var wg sync.WaitGroup
	fmt.Print("Running")

	for i := 0; i < cfg.Entities; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			entityID := fmt.Sprintf("sim-entity-%03d", idx)
			endpoint := fmt.Sprintf("%s/healthcheck/%s", cfg.BaseURL, url.PathEscape(entityID))

			entityCtx := ctx
			if idx < silentN {
				var stop context.CancelFunc
				entityCtx, stop = context.WithTimeout(ctx, cfg.SilentAfter)
				defer stop()
			}

			// Stagger the first ping across the interval.
			offset := time.Duration(int64(cfg.Interval) * int64(idx) / int64(max(cfg.Entities, 1)))
			timer := time.NewTimer(offset)
			defer timer.Stop()

			for {
				select {
				case <-entityCtx.Done():
					if ctx.Err() == nil {
						stats.silenced.Add(1)
					}
					return
				case <-timer.C:
				}

				start := time.Now()
				resp, err := client.Do(mustNewRequest(entityCtx, endpoint))
				elapsed := time.Since(start)
				if err != nil {
					if entityCtx.Err() == nil {
						stats.RecordRequest(elapsed, 0, err)
					}
				} else {
					io.Copy(io.Discard, resp.Body)
					resp.Body.Close()
					stats.RecordRequest(elapsed, resp.StatusCode, nil)
				}
				timer.Reset(cfg.Interval)
			}
		}(i)
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	wg.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return stats
}

func mustNewRequest(ctx context.Context, rawURL string) *http.Request {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, nil)
	if err != nil {
		panic(fmt.Sprintf("creating request: %v", err))
	}
	return req
}

func printReport(stats *Stats, duration time.Duration) {
	total := stats.totalRequests.Load()
	success := stats.successCount.Load()
	errors := stats.errorCount.Load()

	fmt.Println("=== Results ===")
	fmt.Printf("Heartbeats sent: %d\n", total)
	fmt.Printf("Accepted:        %d\n", success)
	fmt.Printf("Errors:          %d\n", errors)
	fmt.Printf("Went silent:     %d\n", stats.silenced.Load())

	if total > 0 {
		errorRate := float64(errors) / float64(total) * 100
		fmt.Printf("Error Rate:      %.2f%%\n", errorRate)
		rps := float64(total) / duration.Seconds()
		fmt.Printf("Heartbeats/sec:  %.2f\n", rps)
	}

	stats.latenciesMu.Lock()
	latencies := make([]time.Duration, len(stats.latencies))
	copy(latencies, stats.latencies)
	stats.latenciesMu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool {
			return latencies[i] < latencies[j]
		})

		fmt.Println()
		fmt.Println("=== Latency ===")
		fmt.Printf("Min:    %s\n", latencies[0])
		fmt.Printf("P50:    %s\n", percentile(latencies, 50))
		fmt.Printf("P95:    %s\n", percentile(latencies, 95))
		fmt.Printf("P99:    %s\n", percentile(latencies, 99))
		fmt.Printf("Max:    %s\n", latencies[len(latencies)-1])
	}

	fmt.Println()
	fmt.Println("=== Status Codes ===")
	stats.statusCodesMu.Lock()
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Printf("  %d: %d\n", code, stats.statusCodes[code].Load())
	}
	stats.statusCodesMu.Unlock()

	if total == 0 {
		fmt.Println()
		fmt.Println("WARNING: No heartbeats completed. Is the watcher running?")
		os.Exit(1)
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
