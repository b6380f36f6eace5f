package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RecordRepository handles game record database operations
type RecordRepository struct {
	db *sql.DB
}

// NewRecordRepository creates a new game record repository
func NewRecordRepository(db *sql.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// InsertRecord inserts a game record. The game_id column carries a unique
// constraint, so replayed messages are absorbed here as well as in the Redis
// dedup layer. Returns false when the round was already stored.
func (r *RecordRepository) InsertRecord(ctx context.Context, record *GameRecord) (bool, error) {
	query := `
		INSERT INTO game_records (game_id, start_time, end_time, server_seed, peak_multiplier,
		                          final_tick, instarug, total_trades, unique_players, collected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (game_id) DO NOTHING
		RETURNING id`

	if record.CollectedAt.IsZero() {
		record.CollectedAt = time.Now()
	}

	err := r.db.QueryRowContext(ctx, query,
		record.GameID, record.StartTime, record.EndTime, record.ServerSeed,
		record.PeakMultiplier, record.FinalTick, record.Instarug,
		record.TotalTrades, record.UniquePlayers, record.CollectedAt,
	).Scan(&record.ID)

	if err != nil {
		if err == sql.ErrNoRows {
			// Conflict: a row for this game_id already exists
			return false, nil
		}
		return false, fmt.Errorf("failed to insert game record: %w", err)
	}

	return true, nil
}

// ListRecords retrieves game records in collection order with pagination.
// A limit of 0 or less returns all records from the offset onward.
func (r *RecordRepository) ListRecords(ctx context.Context, limit, offset int) ([]*GameRecord, error) {
	query := `
		SELECT id, game_id, start_time, end_time, server_seed, peak_multiplier,
		       final_tick, instarug, total_trades, unique_players, collected_at
		FROM game_records
		ORDER BY id ASC
		OFFSET $1`

	args := []any{offset}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query game records: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			_ = err // Ignore close errors for now
		}
	}()

	var records []*GameRecord
	for rows.Next() {
		record := &GameRecord{}
		err := rows.Scan(
			&record.ID, &record.GameID, &record.StartTime, &record.EndTime,
			&record.ServerSeed, &record.PeakMultiplier, &record.FinalTick,
			&record.Instarug, &record.TotalTrades, &record.UniquePlayers,
			&record.CollectedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game record: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating game records: %w", err)
	}

	return records, nil
}

// LatestRecords retrieves the n most recently collected records, returned in
// collection order (oldest of the n first).
func (r *RecordRepository) LatestRecords(ctx context.Context, n int) ([]*GameRecord, error) {
	query := `
		SELECT id, game_id, start_time, end_time, server_seed, peak_multiplier,
		       final_tick, instarug, total_trades, unique_players, collected_at
		FROM game_records
		ORDER BY id DESC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest records: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			_ = err // Ignore close errors for now
		}
	}()

	var records []*GameRecord
	for rows.Next() {
		record := &GameRecord{}
		err := rows.Scan(
			&record.ID, &record.GameID, &record.StartTime, &record.EndTime,
			&record.ServerSeed, &record.PeakMultiplier, &record.FinalTick,
			&record.Instarug, &record.TotalTrades, &record.UniquePlayers,
			&record.CollectedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game record: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating latest records: %w", err)
	}

	// Reverse DESC rows back into collection order
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}

	return records, nil
}

// CountRecords returns the total number of stored game records
func (r *RecordRepository) CountRecords(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM game_records`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count game records: %w", err)
	}
	return count, nil
}

// RunRepository handles analysis run database operations
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new analysis run repository
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// CreateRun records the start of an analysis run
func (r *RunRepository) CreateRun(ctx context.Context, run *AnalysisRun) error {
	query := `
		INSERT INTO analysis_runs (run_id, input_source, records, status, started_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	run.Status = RunStatusRunning

	err := r.db.QueryRowContext(ctx, query,
		run.RunID, run.InputSource, run.Records, run.Status, run.StartedAt,
	).Scan(&run.ID)

	if err != nil {
		return fmt.Errorf("failed to create analysis run: %w", err)
	}

	return nil
}

// CompleteRun marks a run as finished and stores its headline numbers
func (r *RunRepository) CompleteRun(ctx context.Context, runID string, records, hypotheses, supported int, reportPath string) error {
	query := `
		UPDATE analysis_runs
		SET records = $1, hypotheses = $2, supported = $3, report_path = $4,
		    status = $5, completed_at = $6
		WHERE run_id = $7`

	_, err := r.db.ExecContext(ctx, query,
		records, hypotheses, supported, reportPath,
		RunStatusCompleted, time.Now(), runID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete analysis run: %w", err)
	}

	return nil
}

// FailRun marks a run as failed with a diagnostic message
func (r *RunRepository) FailRun(ctx context.Context, runID, message string) error {
	query := `
		UPDATE analysis_runs
		SET status = $1, error_message = $2, completed_at = $3
		WHERE run_id = $4`

	_, err := r.db.ExecContext(ctx, query, RunStatusFailed, message, time.Now(), runID)
	if err != nil {
		return fmt.Errorf("failed to mark analysis run failed: %w", err)
	}

	return nil
}

// RecentRuns retrieves the most recent analysis runs, newest first
func (r *RunRepository) RecentRuns(ctx context.Context, limit int) ([]*AnalysisRun, error) {
	query := `
		SELECT id, run_id, input_source, records, hypotheses, supported,
		       report_path, status, error_message, started_at, completed_at
		FROM analysis_runs
		ORDER BY started_at DESC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis runs: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			_ = err // Ignore close errors for now
		}
	}()

	var runs []*AnalysisRun
	for rows.Next() {
		run := &AnalysisRun{}
		err := rows.Scan(
			&run.ID, &run.RunID, &run.InputSource, &run.Records, &run.Hypotheses,
			&run.Supported, &run.ReportPath, &run.Status, &run.ErrorMessage,
			&run.StartedAt, &run.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analysis run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating analysis runs: %w", err)
	}

	return runs, nil
}
