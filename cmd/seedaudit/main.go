// Package main implements seedaudit, the batch analysis service. It loads
// collected game records from a file, stdin, or PostgreSQL, runs every
// enabled analysis phase, writes the JSON report document, and optionally
// records the run in the ledger and announces it on Kafka.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/seedprobe/seedprobe/internal/analysis"
	"github.com/seedprobe/seedprobe/internal/config"
	"github.com/seedprobe/seedprobe/internal/database"
	"github.com/seedprobe/seedprobe/internal/database/influx"
	"github.com/seedprobe/seedprobe/internal/database/postgres"
	"github.com/seedprobe/seedprobe/internal/database/redis"
	"github.com/seedprobe/seedprobe/internal/game"
	"github.com/seedprobe/seedprobe/internal/messaging"
	"github.com/seedprobe/seedprobe/internal/report"
	"github.com/seedprobe/seedprobe/pkg/errors"
	"github.com/seedprobe/seedprobe/pkg/log"
)

// loadBatchSize is the page size for PostgreSQL input loading.
const loadBatchSize = 5000

func main() {
	// Optional .env for local development
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := log.New("seedaudit", cfg.Version, cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting seedaudit",
		"version", cfg.Version,
		"input_source", cfg.InputSource,
		"report_dir", cfg.ReportDir,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// A batch run needs no shutdown dance: a signal aborts the analysis
	// context and the run fails cleanly.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("abort signal received", "signal", sig.String())
		cancel()
	}()

	audit, err := newAudit(cfg, logger)
	if err != nil {
		logger.WithError(err).Error("failed to initialize seedaudit")
		os.Exit(1)
	}

	if err := audit.Run(ctx); err != nil {
		logger.WithError(err).Error("analysis run failed")
		audit.Close()
		os.Exit(1)
	}

	audit.Close()
	logger.Info("seedaudit finished")
}

// audit bundles the pieces one analysis run needs. Database and Kafka
// clients are only dialed when the configuration actually uses them: file
// and stdin input without run storage needs neither.
type audit struct {
	cfg    *config.Config
	logger *log.Logger

	runner *analysis.Runner
	writer *report.Writer

	manager *database.Manager
	kafka   *messaging.KafkaClient
}

func newAudit(cfg *config.Config, logger *log.Logger) (*audit, error) {
	tables, err := config.LoadTables(cfg.TablesPath)
	if err != nil {
		return nil, err
	}
	logger.Info("enumeration tables loaded",
		"combinations_per_record", tables.Combinations(),
		"custom", cfg.TablesPath != "",
	)

	runner, err := analysis.NewRunner(cfg, tables, logger)
	if err != nil {
		return nil, err
	}

	writer, err := report.NewWriter(cfg.ReportDir, logger)
	if err != nil {
		return nil, err
	}

	a := &audit{
		cfg:    cfg,
		logger: logger.WithComponent("seedaudit"),
		runner: runner,
		writer: writer,
	}

	if cfg.InputSource == config.InputSourcePostgres || cfg.StoreRuns {
		manager, err := database.NewManager(&database.Config{
			Postgres: postgres.DefaultConfig(cfg.PostgresURL),
			Redis:    redis.DefaultConfig(cfg.RedisURL),
			Influx: &influx.Config{
				URL:    cfg.InfluxURL,
				Token:  cfg.InfluxToken,
				Org:    cfg.InfluxOrg,
				Bucket: cfg.InfluxBucket,
			},
			PeakCache: cfg.CollectorPeakCache,
		})
		if err != nil {
			return nil, err
		}
		a.manager = manager
	}

	if cfg.PublishResults {
		a.kafka = messaging.NewKafkaClient(cfg.KafkaBrokers, logger.Logger)
	}

	return a, nil
}

// Close releases whatever clients were dialed.
func (a *audit) Close() {
	if a.manager != nil {
		if err := a.manager.Close(); err != nil {
			a.logger.WithError(err).Error("failed to close storage connections")
		}
	}
	if a.kafka != nil {
		if err := a.kafka.Close(); err != nil {
			a.logger.WithError(err).Error("failed to close Kafka client")
		}
	}
}

// Run executes one full analysis: load input, run every enabled phase,
// write the report, then finish the ledger entry and announcement.
func (a *audit) Run(ctx context.Context) error {
	input, source, err := a.loadInput(ctx)
	if err != nil {
		return err
	}
	a.logger.Info("input loaded",
		"source", source,
		"records", len(input.Records),
		"skipped", input.Skipped,
	)

	a.checkCollectorLiveness(ctx)

	rep, err := a.runner.Run(ctx, input, source)
	if err != nil {
		return err
	}

	a.createRunRecord(ctx, rep)

	path, err := a.writer.Write(rep)
	if err != nil {
		a.failRunRecord(ctx, rep.RunID, err)
		return err
	}

	a.completeRunRecord(ctx, rep, path)
	a.announceRun(ctx, rep, path)

	supported, inconclusive, rejected := rep.VerdictCounts()
	a.logger.Info("analysis run complete",
		"run_id", rep.RunID,
		"report", path,
		"records", rep.Input.Records,
		"hypotheses", rep.HypothesisCount(),
		"supported", supported,
		"inconclusive", inconclusive,
		"rejected", rejected,
	)
	return nil
}

// loadInput decodes records from the configured source. The source name is
// recorded verbatim in the report's input section.
func (a *audit) loadInput(ctx context.Context) (*game.DecodeResult, string, error) {
	switch a.cfg.InputSource {
	case config.InputSourceFile:
		f, err := os.Open(a.cfg.InputPath)
		if err != nil {
			return nil, "", errors.Wrap(err, errors.ErrorTypeInternal, "load_input",
				"failed to open input file").
				WithContext("path", a.cfg.InputPath)
		}
		defer f.Close()
		result, err := game.Decode(f)
		if err != nil {
			return nil, "", err
		}
		return result, config.InputSourceFile, nil

	case config.InputSourceStdin:
		result, err := game.Decode(os.Stdin)
		if err != nil {
			return nil, "", err
		}
		return result, config.InputSourceStdin, nil

	case config.InputSourcePostgres:
		result, err := a.loadFromPostgres(ctx)
		if err != nil {
			return nil, "", err
		}
		return result, config.InputSourcePostgres, nil
	}

	// Unreachable: config validation restricts the source values.
	return nil, "", errors.New(errors.ErrorTypeConfig, "load_input", "unknown input source").
		WithContext("source", a.cfg.InputSource)
}

// loadFromPostgres pages through game_records in collection order.
func (a *audit) loadFromPostgres(ctx context.Context) (*game.DecodeResult, error) {
	var records []game.Record
	for offset := 0; ; offset += loadBatchSize {
		rows, err := a.manager.Records.ListRecords(ctx, loadBatchSize, offset)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			records = append(records, toGameRecord(row))
		}
		if len(rows) < loadBatchSize {
			break
		}
	}
	return &game.DecodeResult{Records: records}, nil
}

// toGameRecord maps a storage row to the analysis record type.
func toGameRecord(row *postgres.GameRecord) game.Record {
	rec := game.Record{
		GameID:         row.GameID,
		StartTime:      row.StartTime,
		ServerSeed:     row.ServerSeed,
		PeakMultiplier: row.PeakMultiplier,
		FinalTick:      row.FinalTick,
		Instarug:       row.Instarug,
		TotalTrades:    row.TotalTrades,
		UniquePlayers:  row.UniquePlayers,
	}
	if row.EndTime != nil {
		rec.EndTime = *row.EndTime
	}
	return rec
}

// checkCollectorLiveness warns when the collector heartbeat is missing and
// a PostgreSQL-sourced input may therefore be stale.
func (a *audit) checkCollectorLiveness(ctx context.Context) {
	if a.manager == nil {
		return
	}
	last, alive, err := a.manager.Redis.GetHeartbeat(ctx, database.HeartbeatService)
	if err != nil {
		a.logger.Warn("could not check collector heartbeat", "error", err)
		return
	}
	if !alive {
		a.logger.Warn("collector heartbeat missing, stored records may be stale",
			"last_seen", last,
		)
	}
}

// Run ledger writes are best effort: a ledger outage must not void a
// finished analysis whose report already exists on disk.

func (a *audit) createRunRecord(ctx context.Context, rep *report.Report) {
	if a.manager == nil || !a.cfg.StoreRuns {
		return
	}
	run := &postgres.AnalysisRun{
		RunID:       rep.RunID,
		InputSource: rep.Input.Source,
		Records:     rep.Input.Records,
		StartedAt:   rep.StartedAt,
	}
	if err := a.manager.Runs.CreateRun(ctx, run); err != nil {
		a.logger.WithError(err).Error("failed to create run ledger entry")
	}
}

func (a *audit) failRunRecord(ctx context.Context, runID string, cause error) {
	if a.manager == nil || !a.cfg.StoreRuns {
		return
	}
	if err := a.manager.Runs.FailRun(ctx, runID, cause.Error()); err != nil {
		a.logger.WithError(err).Error("failed to mark run ledger entry failed")
	}
}

func (a *audit) completeRunRecord(ctx context.Context, rep *report.Report, path string) {
	if a.manager == nil || !a.cfg.StoreRuns {
		return
	}

	supported, inconclusive, rejected := rep.VerdictCounts()
	if err := a.manager.Runs.CompleteRun(ctx, rep.RunID,
		rep.Input.Records, rep.HypothesisCount(), supported, path); err != nil {
		a.logger.WithError(err).Error("failed to complete run ledger entry")
	}

	summary := &influx.AnalysisSummary{
		RunID:        rep.RunID,
		Records:      rep.Input.Records,
		Eligible:     rep.Input.SearchEligible,
		Hypotheses:   rep.HypothesisCount(),
		Supported:    supported,
		Inconclusive: inconclusive,
		Rejected:     rejected,
		DurationMs:   float64(rep.Duration().Microseconds()) / 1000,
	}
	if err := a.manager.Influx.WriteAnalysisSummary(ctx, summary); err != nil {
		a.logger.WithError(err).Error("failed to write analysis summary point")
	}
}

// announceRun publishes the run-completed event for downstream consumers.
func (a *audit) announceRun(ctx context.Context, rep *report.Report, path string) {
	if a.kafka == nil {
		return
	}
	msg := analysis.CompletionMessage(rep, path)
	data, err := json.Marshal(msg)
	if err != nil {
		a.logger.WithError(err).Error("failed to marshal run announcement")
		return
	}
	if err := a.kafka.PublishJSON(ctx, messaging.TopicAnalysisRuns, rep.RunID, data); err != nil {
		a.logger.WithError(err).Error("failed to announce analysis run")
	}
}
