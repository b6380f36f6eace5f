// Package influx provides time-series storage for round metrics and
// analysis run summaries.
package influx

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Client wraps InfluxDB operations for round metrics. Writes use the
// blocking API: one point per round at feed pace, and a round must be
// durably recorded before the consumer advances to the next message.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	queryAPI api.QueryAPI
	bucket   string
	org      string
}

// Config holds InfluxDB connection configuration
type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// NewClient creates a new InfluxDB client
func NewClient(cfg *Config) (*Client, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	health, err := client.Health(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check InfluxDB health: %w", err)
	}

	if health.Status != "pass" {
		msg := ""
		if health.Message != nil {
			msg = *health.Message
		}
		return nil, fmt.Errorf("InfluxDB health check failed: %s", msg)
	}

	writeAPI := client.WriteAPIBlocking(cfg.Org, cfg.Bucket)
	queryAPI := client.QueryAPI(cfg.Org)

	return &Client{
		client:   client,
		writeAPI: writeAPI,
		queryAPI: queryAPI,
		bucket:   cfg.Bucket,
		org:      cfg.Org,
	}, nil
}

// Close closes the InfluxDB connection
func (c *Client) Close() {
	c.client.Close()
}

// Health checks InfluxDB connectivity
func (c *Client) Health(ctx context.Context) error {
	health, err := c.client.Health(ctx)
	if err != nil {
		return fmt.Errorf("failed to check health: %w", err)
	}

	if health.Status != "pass" {
		msg := ""
		if health.Message != nil {
			msg = *health.Message
		}
		return fmt.Errorf("health check failed: %s", msg)
	}

	return nil
}

// Round metrics

// RoundPoint is one completed round as a time-series sample
type RoundPoint struct {
	GameID          string
	Time            time.Time
	PeakMultiplier  float64
	FinalTick       int
	DurationSeconds float64
	Instarug        bool
	TotalTrades     int
	UniquePlayers   int
}

// WriteRoundPoint writes one round to the rounds measurement. Only the
// instarug flag is a tag; game IDs are unbounded and stay fields to keep
// series cardinality flat.
func (c *Client) WriteRoundPoint(ctx context.Context, p *RoundPoint) error {
	tags := map[string]string{
		"instarug": fmt.Sprintf("%t", p.Instarug),
	}

	fields := map[string]interface{}{
		"game_id":          p.GameID,
		"peak_multiplier":  p.PeakMultiplier,
		"final_tick":       p.FinalTick,
		"duration_seconds": p.DurationSeconds,
		"total_trades":     p.TotalTrades,
		"unique_players":   p.UniquePlayers,
		"count":            1,
	}

	ts := p.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	point := write.NewPoint("rounds", tags, fields, ts)
	if err := c.writeAPI.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("failed to write round point: %w", err)
	}

	return nil
}

// AnalysisSummary captures the headline numbers of one analysis run
type AnalysisSummary struct {
	RunID        string
	Records      int
	Eligible     int
	Hypotheses   int
	Supported    int
	Inconclusive int
	Rejected     int
	DurationMs   float64
}

// WriteAnalysisSummary writes one analysis run summary point
func (c *Client) WriteAnalysisSummary(ctx context.Context, s *AnalysisSummary) error {
	fields := map[string]interface{}{
		"run_id":       s.RunID,
		"records":      s.Records,
		"eligible":     s.Eligible,
		"hypotheses":   s.Hypotheses,
		"supported":    s.Supported,
		"inconclusive": s.Inconclusive,
		"rejected":     s.Rejected,
		"duration_ms":  s.DurationMs,
	}

	point := write.NewPoint("analysis_runs", map[string]string{}, fields, time.Now())
	if err := c.writeAPI.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("failed to write analysis summary: %w", err)
	}

	return nil
}

// Query methods

// QueryInstarugRate computes the fraction of instarug rounds over a trailing
// window. Returns nil when no rounds were recorded in the window, since a
// rate with a zero denominator is undefined rather than zero.
func (c *Client) QueryInstarugRate(ctx context.Context, window time.Duration) (*float64, error) {
	query := fmt.Sprintf(`
		from(bucket: "%s")
		|> range(start: -%s)
		|> filter(fn: (r) => r._measurement == "rounds")
		|> filter(fn: (r) => r._field == "count")
		|> group(columns: ["instarug"])
		|> sum()
	`, c.bucket, window.String())

	result, err := c.queryAPI.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query instarug rate: %w", err)
	}
	defer func() {
		if err := result.Close(); err != nil {
			_ = err // Ignore close errors for now
		}
	}()

	var instarugs, total int64
	for result.Next() {
		record := result.Record()
		count, ok := record.Value().(int64)
		if !ok {
			continue
		}
		total += count
		if record.ValueByKey("instarug") == "true" {
			instarugs += count
		}
	}

	if result.Err() != nil {
		return nil, fmt.Errorf("error reading query result: %w", result.Err())
	}

	if total == 0 {
		return nil, nil
	}

	rate := float64(instarugs) / float64(total)
	return &rate, nil
}
