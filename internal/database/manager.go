// Package database provides unified storage management for the round
// collection pipeline. It coordinates PostgreSQL (durable records), Redis
// (dedup, counters, heartbeats) and InfluxDB (time-series metrics).
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/seedprobe/seedprobe/internal/database/influx"
	"github.com/seedprobe/seedprobe/internal/database/postgres"
	"github.com/seedprobe/seedprobe/internal/database/redis"
	"github.com/seedprobe/seedprobe/pkg/circuit"
	"github.com/seedprobe/seedprobe/pkg/errors"
	"github.com/seedprobe/seedprobe/pkg/retry"
)

// Counter names tracked in Redis
const (
	CounterCollected  = "rounds:collected"
	CounterInstarug   = "rounds:instarug"
	CounterDuplicates = "rounds:duplicates"
	CounterRejected   = "rounds:rejected"
)

// HeartbeatService is the liveness key collectord refreshes while consuming
const HeartbeatService = "collectord"

// Manager coordinates all storage operations across PostgreSQL, Redis, and InfluxDB
type Manager struct {
	Postgres *postgres.Client
	Redis    *redis.Client
	Influx   *influx.Client

	// Repositories
	Records *postgres.RecordRepository
	Runs    *postgres.RunRepository

	peakCache int

	// Error handling
	circuitBreaker *circuit.Breaker
	retryConfig    *retry.Config
}

// Config holds configuration for all storage systems
type Config struct {
	Postgres *postgres.Config
	Redis    *redis.Config
	Influx   *influx.Config

	// PeakCache is the recent-peak ring size kept in Redis
	PeakCache int
}

// NewManager creates a new storage manager with all connections
func NewManager(cfg *Config) (*Manager, error) {
	// Initialize PostgreSQL
	pgClient, err := postgres.NewClient(cfg.Postgres)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeDatabase, "postgres_connection",
			"failed to connect to PostgreSQL database")
	}

	// Initialize Redis
	redisClient, err := redis.NewClient(cfg.Redis)
	if err != nil {
		if closeErr := pgClient.Close(); closeErr != nil {
			// Wrap both errors
			origErr := errors.Wrap(err, errors.ErrorTypeDatabase, "redis_connection",
				"failed to connect to Redis database")
			closeErr = errors.Wrap(closeErr, errors.ErrorTypeDatabase, "postgres_cleanup",
				"failed to close PostgreSQL connection during error cleanup")
			return nil, errors.New(errors.ErrorTypeDatabase, "connection_failure",
				"multiple database connection failures").
				WithContext("redis_error", origErr.Error()).
				WithContext("postgres_cleanup_error", closeErr.Error())
		}
		return nil, errors.Wrap(err, errors.ErrorTypeDatabase, "redis_connection",
			"failed to connect to Redis database")
	}

	// Initialize InfluxDB
	influxClient, err := influx.NewClient(cfg.Influx)
	if err != nil {
		var closeErrs []error
		if closeErr := pgClient.Close(); closeErr != nil {
			closeErrs = append(closeErrs, closeErr)
		}
		if closeErr := redisClient.Close(); closeErr != nil {
			closeErrs = append(closeErrs, closeErr)
		}

		origErr := errors.Wrap(err, errors.ErrorTypeDatabase, "influx_connection",
			"failed to connect to InfluxDB database")

		if len(closeErrs) > 0 {
			return nil, origErr.WithContext("cleanup_errors", fmt.Sprintf("%v", closeErrs))
		}
		return nil, origErr
	}

	// Configure error handling
	cbConfig := &circuit.Config{
		MaxFailures:     3,
		SuccessRequired: 2,
		Timeout:         30 * time.Second,
		ResetTimeout:    60 * time.Second,
	}

	peakCache := cfg.PeakCache
	if peakCache <= 0 {
		peakCache = 100
	}

	return &Manager{
		Postgres:       pgClient,
		Redis:          redisClient,
		Influx:         influxClient,
		Records:        postgres.NewRecordRepository(pgClient.DB()),
		Runs:           postgres.NewRunRepository(pgClient.DB()),
		peakCache:      peakCache,
		circuitBreaker: circuit.New(cbConfig),
		retryConfig:    retry.DatabaseConfig(),
	}, nil
}

// Close closes all database connections
func (m *Manager) Close() error {
	var errs []error

	if err := m.Postgres.Close(); err != nil {
		errs = append(errs, fmt.Errorf("PostgreSQL close error: %w", err))
	}

	if err := m.Redis.Close(); err != nil {
		errs = append(errs, fmt.Errorf("redis close error: %w", err))
	}

	m.Influx.Close()

	if len(errs) > 0 {
		return fmt.Errorf("database close errors: %v", errs)
	}

	return nil
}

// Health checks the health of all database connections
func (m *Manager) Health(ctx context.Context) error {
	if err := m.Postgres.Health(ctx); err != nil {
		return fmt.Errorf("PostgreSQL health check failed: %w", err)
	}

	if err := m.Redis.Health(ctx); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}

	if err := m.Influx.Health(ctx); err != nil {
		return fmt.Errorf("InfluxDB health check failed: %w", err)
	}

	return nil
}

// High-level operations that coordinate across multiple databases

// RecordRound persists one round across all storage systems. The PostgreSQL
// insert is the critical operation and is retried; Redis counters and the
// InfluxDB point are best effort. Returns false when the round was already
// stored under its game ID.
func (m *Manager) RecordRound(ctx context.Context, record *postgres.GameRecord) (bool, error) {
	return circuit.ExecuteWithResult(ctx, m.circuitBreaker, func() (bool, error) {
		return retry.DoWithResult(ctx, m.retryConfig, func() (bool, error) {
			// Store in PostgreSQL for persistence (critical operation)
			inserted, err := m.Records.InsertRecord(ctx, record)
			if err != nil {
				return false, errors.Wrap(err, errors.ErrorTypeDatabase, "record_round",
					"failed to store game record in PostgreSQL").
					WithContext("game_id", record.GameID).
					WithContext("peak_multiplier", record.PeakMultiplier)
			}
			if !inserted {
				return false, nil
			}

			// Update collection counters in Redis (best effort, don't fail the round)
			if _, err := m.Redis.IncrementCounter(ctx, CounterCollected, 1); err != nil {
				fmt.Printf("Warning: failed to increment collected counter: %v\n", err)
			}
			if record.Instarug {
				if _, err := m.Redis.IncrementCounter(ctx, CounterInstarug, 1); err != nil {
					fmt.Printf("Warning: failed to increment instarug counter: %v\n", err)
				}
			}
			if err := m.Redis.PushRecentPeak(ctx, record.PeakMultiplier, m.peakCache); err != nil {
				fmt.Printf("Warning: failed to push recent peak: %v\n", err)
			}

			// Record the round point in InfluxDB (best effort)
			if err := m.Influx.WriteRoundPoint(ctx, roundPoint(record)); err != nil {
				fmt.Printf("Warning: failed to write round point: %v\n", err)
			}

			return true, nil
		})
	})
}

// roundPoint maps a stored record to its time-series sample
func roundPoint(record *postgres.GameRecord) *influx.RoundPoint {
	point := &influx.RoundPoint{
		GameID:         record.GameID,
		Time:           record.StartTime,
		PeakMultiplier: record.PeakMultiplier,
		FinalTick:      record.FinalTick,
		Instarug:       record.Instarug,
		TotalTrades:    record.TotalTrades,
		UniquePlayers:  record.UniquePlayers,
	}
	if record.EndTime != nil {
		point.DurationSeconds = record.EndTime.Sub(record.StartTime).Seconds()
	}
	return point
}

// MarkRoundSeen delegates to the Redis dedup layer
func (m *Manager) MarkRoundSeen(ctx context.Context, gameID string, ttl time.Duration) (bool, error) {
	return m.Redis.MarkRoundSeen(ctx, gameID, ttl)
}

// CountEvent increments a collection counter, best effort
func (m *Manager) CountEvent(ctx context.Context, counter string) {
	if _, err := m.Redis.IncrementCounter(ctx, counter, 1); err != nil {
		fmt.Printf("Warning: failed to increment %s counter: %v\n", counter, err)
	}
}

// Heartbeat refreshes the collectord liveness key
func (m *Manager) Heartbeat(ctx context.Context, ttl time.Duration) error {
	return m.Redis.SetHeartbeat(ctx, HeartbeatService, ttl)
}

// CollectorStats aggregates collection health across storage systems
type CollectorStats struct {
	Collected    int64
	Instarugs    int64
	Duplicates   int64
	Rejected     int64
	StoredTotal  int64
	RecentPeaks  []float64
	InstarugRate *float64 // trailing hour, nil when no rounds in window
	LastUpdated  time.Time
}

// GetCollectorStats retrieves collection statistics for periodic status logs
func (m *Manager) GetCollectorStats(ctx context.Context) (*CollectorStats, error) {
	stats := &CollectorStats{LastUpdated: time.Now()}

	// Counters from Redis (default to zero when unavailable)
	stats.Collected, _ = m.Redis.GetCounter(ctx, CounterCollected)
	stats.Instarugs, _ = m.Redis.GetCounter(ctx, CounterInstarug)
	stats.Duplicates, _ = m.Redis.GetCounter(ctx, CounterDuplicates)
	stats.Rejected, _ = m.Redis.GetCounter(ctx, CounterRejected)

	// Durable row count from PostgreSQL
	total, err := m.Records.CountRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count stored records: %w", err)
	}
	stats.StoredTotal = total

	// Recent peaks from Redis (best effort)
	if peaks, err := m.Redis.RecentPeaks(ctx, m.peakCache); err == nil {
		stats.RecentPeaks = peaks
	}

	// Trailing instarug rate from InfluxDB (best effort)
	if rate, err := m.Influx.QueryInstarugRate(ctx, time.Hour); err == nil {
		stats.InstarugRate = rate
	}

	return stats, nil
}
