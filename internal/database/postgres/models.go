package postgres

import (
	"time"
)

// GameRecord is the persisted form of one completed round. Rows are
// append-only: collectord inserts them as they arrive and seedaudit reads
// them back ordered by id, which preserves collection order.
type GameRecord struct {
	ID             int64      `db:"id"`
	GameID         string     `db:"game_id"`
	StartTime      time.Time  `db:"start_time"`
	EndTime        *time.Time `db:"end_time"`
	ServerSeed     string     `db:"server_seed"`
	PeakMultiplier float64    `db:"peak_multiplier"`
	FinalTick      int        `db:"final_tick"`
	Instarug       bool       `db:"instarug"`
	TotalTrades    int        `db:"total_trades"`
	UniquePlayers  int        `db:"unique_players"`
	CollectedAt    time.Time  `db:"collected_at"`
}

// Analysis run statuses
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// AnalysisRun tracks one seedaudit invocation and where its report ended up
type AnalysisRun struct {
	ID           int64      `db:"id"`
	RunID        string     `db:"run_id"`
	InputSource  string     `db:"input_source"`
	Records      int        `db:"records"`
	Hypotheses   int        `db:"hypotheses"`
	Supported    int        `db:"supported"`
	ReportPath   string     `db:"report_path"`
	Status       string     `db:"status"` // running, completed, failed
	ErrorMessage *string    `db:"error_message"`
	StartedAt    time.Time  `db:"started_at"`
	CompletedAt  *time.Time `db:"completed_at"`
}
