// Package feed ingests completed rounds from Kafka into durable storage.
// Each message is validated, deduplicated against Redis, and written through
// the storage manager; undecodable or invalid messages are dead-lettered for
// operator triage instead of being silently dropped.
package feed

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/seedprobe/seedprobe/internal/database"
	"github.com/seedprobe/seedprobe/internal/database/postgres"
	"github.com/seedprobe/seedprobe/internal/messaging"
	"github.com/seedprobe/seedprobe/pkg/errors"
	"github.com/seedprobe/seedprobe/pkg/log"
)

const (
	defaultHeartbeat  = 15 * time.Second
	defaultStatsEvery = time.Minute
	defaultDedupTTL   = 24 * time.Hour

	// maxDeadLetterPayload bounds how much of a bad message is carried into
	// its dead letter.
	maxDeadLetterPayload = 2048
)

// Store is the storage surface the collector writes through. It is satisfied
// by database.Manager.
type Store interface {
	MarkRoundSeen(ctx context.Context, gameID string, ttl time.Duration) (bool, error)
	RecordRound(ctx context.Context, record *postgres.GameRecord) (bool, error)
	CountEvent(ctx context.Context, counter string)
	Heartbeat(ctx context.Context, ttl time.Duration) error
	GetCollectorStats(ctx context.Context) (*database.CollectorStats, error)
}

// Publisher sends dead-letter messages.
type Publisher interface {
	PublishJSON(ctx context.Context, topic, key string, data []byte) error
}

// Consumer runs a blocking consume loop against a topic.
type Consumer interface {
	StartConsumer(ctx context.Context, topic, groupID string, handler messaging.MessageHandler) error
}

// Config tunes one collector instance.
type Config struct {
	Topic   string
	GroupID string
	// MaxRecords stops collection after this many stored rounds. Zero means
	// run until cancelled.
	MaxRecords int64
	// DedupTTL is how long a game ID is remembered for duplicate detection.
	DedupTTL   time.Duration
	Heartbeat  time.Duration
	StatsEvery time.Duration
}

// Collector consumes round announcements and lands them in storage.
type Collector struct {
	cfg      Config
	store    Store
	consumer Consumer
	producer Publisher
	logger   *log.Logger

	collected atomic.Int64
	done      chan struct{}
	stopOnce  sync.Once
}

// New validates the wiring and applies interval defaults.
func New(cfg Config, store Store, consumer Consumer, producer Publisher, logger *log.Logger) (*Collector, error) {
	if store == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "new_collector", "store is required")
	}
	if consumer == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "new_collector", "consumer is required")
	}
	if producer == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "new_collector", "producer is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "new_collector", "topic is required")
	}
	if cfg.GroupID == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "new_collector", "consumer group id is required")
	}
	if cfg.MaxRecords < 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "new_collector", "max records cannot be negative").
			WithContext("max_records", cfg.MaxRecords)
	}

	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = defaultDedupTTL
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = defaultHeartbeat
	}
	if cfg.StatsEvery <= 0 {
		cfg.StatsEvery = defaultStatsEvery
	}

	return &Collector{
		cfg:      cfg,
		store:    store,
		consumer: consumer,
		producer: producer,
		logger:   logger.WithComponent("collector"),
		done:     make(chan struct{}),
	}, nil
}

// Collected returns the number of rounds stored by this instance.
func (c *Collector) Collected() int64 {
	return c.collected.Load()
}

// Run consumes until the context is cancelled or the collection target is
// reached. Context cancellation is a clean exit; only consumer failures are
// returned as errors.
func (c *Collector) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.keepAlive(runCtx)
	}()
	go func() {
		defer wg.Done()
		select {
		case <-c.done:
			cancel()
		case <-runCtx.Done():
		}
	}()

	c.logger.Info("collector starting",
		"topic", c.cfg.Topic,
		"group_id", c.cfg.GroupID,
		"max_records", c.cfg.MaxRecords,
	)

	err := c.consumer.StartConsumer(runCtx, c.cfg.Topic, c.cfg.GroupID, c)
	clean := runCtx.Err() != nil
	cancel()
	wg.Wait()

	c.logger.Info("collector stopped", "collected", c.collected.Load())

	if err != nil && !clean {
		return err
	}
	return nil
}

// HandleMessage processes one round announcement. It always returns nil for
// bad messages (they are dead-lettered, not retried); only storage failures
// propagate so the consumer loop can log them.
func (c *Collector) HandleMessage(ctx context.Context, key string, value []byte) error {
	// Late messages fetched between reaching the collection target and the
	// consumer noticing the cancel are dropped, keeping the record cap exact.
	select {
	case <-c.done:
		return nil
	default:
	}

	var msg messaging.RoundCompletedMessage
	if err := json.Unmarshal(value, &msg); err != nil {
		c.reject(ctx, key, "", messaging.RejectReasonDecode, err.Error(), value)
		return nil
	}

	if err := validateRound(&msg); err != nil {
		c.reject(ctx, key, msg.GameID, messaging.RejectReasonValidation, err.Error(), value)
		return nil
	}

	fresh, err := c.store.MarkRoundSeen(ctx, msg.GameID, c.cfg.DedupTTL)
	if err != nil {
		// Dedup is advisory. The unique constraint on game_id is the backstop,
		// so a Redis failure must not stall collection.
		c.logger.Warn("dedup check failed, proceeding", "game_id", msg.GameID, "error", err)
	} else if !fresh {
		c.store.CountEvent(ctx, database.CounterDuplicates)
		c.logger.Debug("duplicate round skipped", "game_id", msg.GameID)
		return nil
	}

	inserted, err := c.store.RecordRound(ctx, toRecord(&msg))
	if err != nil {
		return err
	}
	if !inserted {
		c.store.CountEvent(ctx, database.CounterDuplicates)
		c.logger.Debug("round already stored", "game_id", msg.GameID)
		return nil
	}

	c.logger.LogRoundCollected(msg.GameID, msg.PeakMultiplier, msg.FinalTick, msg.Instarug)

	if n := c.collected.Add(1); c.cfg.MaxRecords > 0 && n >= c.cfg.MaxRecords {
		c.stopOnce.Do(func() {
			c.logger.Info("collection target reached",
				"collected", n,
				"max_records", c.cfg.MaxRecords,
			)
			close(c.done)
		})
	}
	return nil
}

// reject counts, logs, and dead-letters a message that cannot be stored.
func (c *Collector) reject(ctx context.Context, key, gameID, rejectReason, detail string, payload []byte) {
	c.store.CountEvent(ctx, database.CounterRejected)
	c.logger.LogRoundRejected(gameID, rejectReason)

	dead := messaging.RoundRejectedMessage{
		Key:        key,
		GameID:     gameID,
		Reason:     rejectReason,
		Error:      detail,
		Payload:    truncatePayload(payload),
		RejectedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(dead)
	if err != nil {
		c.logger.Error("failed to marshal dead letter", "key", key, "error", err)
		return
	}
	if err := c.producer.PublishJSON(ctx, messaging.TopicRoundsDead, key, data); err != nil {
		c.logger.Error("failed to publish dead letter",
			"key", key,
			"reason", rejectReason,
			"error", err,
		)
	}
}

// keepAlive refreshes the liveness key and emits periodic status logs until
// the run context ends.
func (c *Collector) keepAlive(ctx context.Context) {
	heartbeat := time.NewTicker(c.cfg.Heartbeat)
	defer heartbeat.Stop()
	stats := time.NewTicker(c.cfg.StatsEvery)
	defer stats.Stop()

	// Announce liveness immediately so health checks pass during a slow
	// first fetch.
	c.beat(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			c.beat(ctx)
		case <-stats.C:
			c.logStats(ctx)
		}
	}
}

func (c *Collector) beat(ctx context.Context) {
	if err := c.store.Heartbeat(ctx, 3*c.cfg.Heartbeat); err != nil {
		c.logger.Warn("heartbeat refresh failed", "error", err)
	}
}

func (c *Collector) logStats(ctx context.Context) {
	stats, err := c.store.GetCollectorStats(ctx)
	if err != nil {
		c.logger.Warn("failed to read collector stats", "error", err)
		return
	}

	fields := []any{
		"collected", stats.Collected,
		"instarugs", stats.Instarugs,
		"duplicates", stats.Duplicates,
		"rejected", stats.Rejected,
		"stored_total", stats.StoredTotal,
	}
	if stats.InstarugRate != nil {
		fields = append(fields, "instarug_rate_1h", *stats.InstarugRate)
	}
	c.logger.Info("collection status", fields...)
}

// validateRound rejects rounds that cannot be stored or would poison the
// analysis input.
func validateRound(msg *messaging.RoundCompletedMessage) error {
	switch {
	case msg.GameID == "":
		return errors.New(errors.ErrorTypeValidation, "validate_round", "game_id is required")
	case msg.StartTime.IsZero():
		return errors.New(errors.ErrorTypeValidation, "validate_round", "start_time is required").
			WithContext("game_id", msg.GameID)
	case msg.PeakMultiplier < 0:
		return errors.New(errors.ErrorTypeValidation, "validate_round", "peak_multiplier cannot be negative").
			WithContext("game_id", msg.GameID).
			WithContext("peak_multiplier", msg.PeakMultiplier)
	case msg.FinalTick < 0:
		return errors.New(errors.ErrorTypeValidation, "validate_round", "final_tick cannot be negative").
			WithContext("game_id", msg.GameID).
			WithContext("final_tick", msg.FinalTick)
	}
	return nil
}

// toRecord maps a round announcement to its storage row. Seeds are
// normalized to lowercase hex so lookups and analysis never case-fold.
func toRecord(msg *messaging.RoundCompletedMessage) *postgres.GameRecord {
	rec := &postgres.GameRecord{
		GameID:         msg.GameID,
		StartTime:      msg.StartTime,
		ServerSeed:     strings.ToLower(strings.TrimSpace(msg.ServerSeed)),
		PeakMultiplier: msg.PeakMultiplier,
		FinalTick:      msg.FinalTick,
		Instarug:       msg.Instarug,
		TotalTrades:    msg.TotalTrades,
		UniquePlayers:  msg.UniquePlayers,
	}
	if !msg.EndTime.IsZero() {
		end := msg.EndTime
		rec.EndTime = &end
	}
	return rec
}

func truncatePayload(payload []byte) string {
	if len(payload) > maxDeadLetterPayload {
		payload = payload[:maxDeadLetterPayload]
	}
	return string(payload)
}
