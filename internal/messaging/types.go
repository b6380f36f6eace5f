package messaging

import "time"

// RoundCompletedMessage is published by the feed gateway for every finished
// round and consumed by collectord. One message per game, keyed by game ID.
type RoundCompletedMessage struct {
	GameID         string    `json:"game_id"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	ServerSeed     string    `json:"server_seed"`
	PeakMultiplier float64   `json:"peak_multiplier"`
	FinalTick      int       `json:"final_tick"`
	Instarug       bool      `json:"instarug"`
	TotalTrades    int       `json:"total_trades"`
	UniquePlayers  int       `json:"unique_players"`
	PublishedAt    time.Time `json:"published_at"`
}

// Rejection reasons recorded on dead-lettered rounds.
const (
	RejectReasonDecode     = "decode_failed"
	RejectReasonValidation = "validation_failed"
)

// RoundRejectedMessage is published to the dead-letter topic when a consumed
// round cannot be decoded or fails field validation. The original payload is
// carried along truncated so rejected rounds can be triaged by hand.
type RoundRejectedMessage struct {
	Key        string    `json:"key"`
	GameID     string    `json:"game_id,omitempty"`
	Reason     string    `json:"reason"` // "decode_failed", "validation_failed"
	Error      string    `json:"error,omitempty"`
	Payload    string    `json:"payload,omitempty"`
	RejectedAt time.Time `json:"rejected_at"`
}

// AnalysisCompletedMessage announces a finished analysis run and where its
// report document was written.
type AnalysisCompletedMessage struct {
	RunID          string    `json:"run_id"`
	InputSource    string    `json:"input_source"`
	Records        int       `json:"records"`
	SearchEligible int       `json:"search_eligible"`
	Hypotheses     int       `json:"hypotheses"`
	Supported      int       `json:"supported"`
	Inconclusive   int       `json:"inconclusive"`
	Rejected       int       `json:"rejected"`
	ReportPath     string    `json:"report_path"`
	StartedAt      time.Time `json:"started_at"`
	CompletedAt    time.Time `json:"completed_at"`
	DurationMs     float64   `json:"duration_ms"`
}
