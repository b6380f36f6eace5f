// Package redis provides Redis operations for the round collection pipeline:
// replay deduplication, running counters, a recent-peak ring and service
// heartbeats.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps Redis operations for round collection
type Client struct {
	rdb *redis.Client
}

// Config holds Redis connection configuration
type Config struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns connection settings for the given URL
func DefaultConfig(url string) *Config {
	return &Config{
		URL:          url,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// NewClient creates a new Redis client from a redis:// URL
func NewClient(cfg *Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}

	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if cfg.MaxRetries > 0 {
		opts.MaxRetries = cfg.MaxRetries
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Health checks Redis connectivity
func (c *Client) Health(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Deduplication

// MarkRoundSeen records a game ID with SETNX semantics. Returns true when
// the round is new and false when it was already marked within the TTL, so
// replayed feed messages can be dropped before touching PostgreSQL.
func (c *Client) MarkRoundSeen(ctx context.Context, gameID string, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("round:seen:%s", gameID)
	fresh, err := c.rdb.SetNX(ctx, key, time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark round seen: %w", err)
	}
	return fresh, nil
}

// Counters

// IncrementCounter adds delta to a named running total. Collection counters
// carry no TTL: they track lifetime totals, not windows.
func (c *Client) IncrementCounter(ctx context.Context, name string, delta int64) (int64, error) {
	key := fmt.Sprintf("counter:%s", name)
	val, err := c.rdb.IncrBy(ctx, key, delta).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment counter: %w", err)
	}
	return val, nil
}

// GetCounter retrieves a counter value, zero when the counter does not exist
func (c *Client) GetCounter(ctx context.Context, name string) (int64, error) {
	key := fmt.Sprintf("counter:%s", name)
	val, err := c.rdb.Get(ctx, key).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get counter: %w", err)
	}
	return val, nil
}

// Recent peaks

const recentPeaksKey = "rounds:recent_peaks"

// PushRecentPeak prepends a peak multiplier to the recent-peak ring,
// trimming it to keep entries
func (c *Client) PushRecentPeak(ctx context.Context, peak float64, keep int) error {
	if keep <= 0 {
		return nil
	}

	pipe := c.rdb.Pipeline()
	pipe.LPush(ctx, recentPeaksKey, peak)
	pipe.LTrim(ctx, recentPeaksKey, 0, int64(keep-1))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to push recent peak: %w", err)
	}

	return nil
}

// RecentPeaks retrieves up to n recent peak multipliers, newest first
func (c *Client) RecentPeaks(ctx context.Context, n int) ([]float64, error) {
	values, err := c.rdb.LRange(ctx, recentPeaksKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get recent peaks: %w", err)
	}

	peaks := make([]float64, 0, len(values))
	for _, val := range values {
		if peak, err := strconv.ParseFloat(val, 64); err == nil {
			peaks = append(peaks, peak)
		}
	}

	return peaks, nil
}

// Heartbeats

// SetHeartbeat refreshes a service liveness key with the given TTL
func (c *Client) SetHeartbeat(ctx context.Context, service string, ttl time.Duration) error {
	key := fmt.Sprintf("heartbeat:%s", service)
	if err := c.rdb.Set(ctx, key, time.Now().Unix(), ttl).Err(); err != nil {
		return fmt.Errorf("failed to set heartbeat: %w", err)
	}
	return nil
}

// GetHeartbeat returns the last heartbeat time for a service and whether one
// is currently live
func (c *Client) GetHeartbeat(ctx context.Context, service string) (time.Time, bool, error) {
	key := fmt.Sprintf("heartbeat:%s", service)
	val, err := c.rdb.Get(ctx, key).Int64()
	if err != nil {
		if err == redis.Nil {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("failed to get heartbeat: %w", err)
	}
	return time.Unix(val, 0), true, nil
}
