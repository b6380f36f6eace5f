// Package game defines the completed-round data model shared by the
// collector and the analysis pipeline, together with the NDJSON / JSON
// array codec used for file-based input.
package game

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Record represents one completed game round. Records are appended once and
// never mutated; the order of a record sequence is the collection order and
// approximates real-time order, which the lag-based analyses rely on.
type Record struct {
	GameID         string    `json:"gameId"`
	StartTime      time.Time `json:"startTime"`
	EndTime        time.Time `json:"endTime"`
	ServerSeed     string    `json:"serverSeed"`
	PeakMultiplier float64   `json:"peakMultiplier"`
	FinalTick      int       `json:"finalTick"`
	Instarug       bool      `json:"instarug"`
	TotalTrades    int       `json:"totalTrades,omitempty"`
	UniquePlayers  int       `json:"uniquePlayers,omitempty"`
}

// recordJSON mirrors Record with string timestamps so that decoding can
// accept both RFC3339 values (the collector's output) and zone-less
// ISO-8601 values with microsecond precision (older capture files).
type recordJSON struct {
	GameID         string  `json:"gameId"`
	StartTime      string  `json:"startTime"`
	EndTime        string  `json:"endTime"`
	ServerSeed     string  `json:"serverSeed"`
	PeakMultiplier float64 `json:"peakMultiplier"`
	FinalTick      int     `json:"finalTick"`
	Instarug       bool    `json:"instarug"`
	TotalTrades    int     `json:"totalTrades,omitempty"`
	UniquePlayers  int     `json:"uniquePlayers,omitempty"`
}

// timestampLayouts lists the accepted input layouts in match order.
// Zone-less values are interpreted as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp parses an ISO-8601 timestamp in any accepted layout.
// An empty string parses to the zero time without error: a missing
// timestamp drops the record from the hashing pool, it does not make the
// record malformed.
func ParseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// UnmarshalJSON decodes a record, normalizing the server seed to lowercase
// hex and accepting both RFC3339 and zone-less ISO-8601 timestamps. A
// present-but-unparsable field is a parse error; an absent field is not.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw recordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	start, err := ParseTimestamp(raw.StartTime)
	if err != nil {
		return fmt.Errorf("startTime: %w", err)
	}
	end, err := ParseTimestamp(raw.EndTime)
	if err != nil {
		return fmt.Errorf("endTime: %w", err)
	}

	if raw.PeakMultiplier < 0 {
		return fmt.Errorf("peakMultiplier %v is negative", raw.PeakMultiplier)
	}
	if raw.FinalTick < 0 {
		return fmt.Errorf("finalTick %d is negative", raw.FinalTick)
	}

	r.GameID = raw.GameID
	r.StartTime = start
	r.EndTime = end
	r.ServerSeed = strings.ToLower(strings.TrimSpace(raw.ServerSeed))
	r.PeakMultiplier = raw.PeakMultiplier
	r.FinalTick = raw.FinalTick
	r.Instarug = raw.Instarug
	r.TotalTrades = raw.TotalTrades
	r.UniquePlayers = raw.UniquePlayers
	return nil
}

// MarshalJSON encodes a record with RFC3339Nano UTC timestamps. Zero
// timestamps marshal as empty strings so a round-trip preserves absence.
func (r Record) MarshalJSON() ([]byte, error) {
	raw := recordJSON{
		GameID:         r.GameID,
		ServerSeed:     r.ServerSeed,
		PeakMultiplier: r.PeakMultiplier,
		FinalTick:      r.FinalTick,
		Instarug:       r.Instarug,
		TotalTrades:    r.TotalTrades,
		UniquePlayers:  r.UniquePlayers,
	}
	if !r.StartTime.IsZero() {
		raw.StartTime = r.StartTime.UTC().Format(time.RFC3339Nano)
	}
	if !r.EndTime.IsZero() {
		raw.EndTime = r.EndTime.UTC().Format(time.RFC3339Nano)
	}
	return json.Marshal(raw)
}

// HasSearchFields reports whether the record carries the three fields
// required to participate in the seed search: gameId, startTime and
// serverSeed. Records without them still count toward basic statistics.
func (r *Record) HasSearchFields() bool {
	return r.GameID != "" && !r.StartTime.IsZero() && r.ServerSeed != ""
}

// Duration returns the round duration, or zero when either timestamp is
// missing.
func (r *Record) Duration() time.Duration {
	if r.StartTime.IsZero() || r.EndTime.IsZero() {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}

// Timestamp returns the time fed to the search's time encodings.
func (r *Record) Timestamp() time.Time {
	return r.StartTime
}

// SearchEligible filters records to those usable by the seed search,
// preserving order.
func SearchEligible(records []Record) []Record {
	eligible := make([]Record, 0, len(records))
	for _, r := range records {
		if r.HasSearchFields() {
			eligible = append(eligible, r)
		}
	}
	return eligible
}

// Split partitions records into the ordered generation sample and the
// disjoint, later hold-out slice used for validation. Both are views over
// the input. When fewer records exist than requested, the slices shrink;
// they never overlap.
func Split(records []Record, sampleSize, holdoutSize int) (sample, holdout []Record) {
	if sampleSize < 0 {
		sampleSize = 0
	}
	if sampleSize > len(records) {
		sampleSize = len(records)
	}
	sample = records[:sampleSize]

	end := sampleSize + holdoutSize
	if holdoutSize < 0 || end > len(records) {
		end = len(records)
	}
	holdout = records[sampleSize:end]
	return sample, holdout
}
