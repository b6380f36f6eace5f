package game

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{
			name:  "rfc3339 with zone",
			input: "2025-06-14T12:30:45.123456Z",
			want:  time.Date(2025, 6, 14, 12, 30, 45, 123456000, time.UTC),
		},
		{
			name:  "zone-less microseconds",
			input: "2025-06-14T12:30:45.123456",
			want:  time.Date(2025, 6, 14, 12, 30, 45, 123456000, time.UTC),
		},
		{
			name:  "space separated",
			input: "2025-06-14 12:30:45.5",
			want:  time.Date(2025, 6, 14, 12, 30, 45, 500000000, time.UTC),
		},
		{
			name:  "empty is zero time",
			input: "",
			want:  time.Time{},
		},
		{
			name:    "garbage",
			input:   "not-a-timestamp",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTimestamp(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && !got.Equal(tt.want) {
				t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestRecordUnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		check   func(t *testing.T, r Record)
	}{
		{
			name:  "complete record",
			input: `{"gameId":"20250614-abc123","startTime":"2025-06-14T12:30:45.123456Z","endTime":"2025-06-14T12:31:15.654321Z","serverSeed":"AB12CD","peakMultiplier":3.5,"finalTick":187,"instarug":false,"totalTrades":42,"uniquePlayers":9}`,
			check: func(t *testing.T, r Record) {
				if r.GameID != "20250614-abc123" {
					t.Errorf("GameID = %q", r.GameID)
				}
				if r.ServerSeed != "ab12cd" {
					t.Errorf("ServerSeed should be lowercased, got %q", r.ServerSeed)
				}
				if r.PeakMultiplier != 3.5 || r.FinalTick != 187 {
					t.Errorf("numeric fields wrong: %+v", r)
				}
				if !r.HasSearchFields() {
					t.Error("expected search-eligible record")
				}
			},
		},
		{
			name:  "missing optional fields",
			input: `{"gameId":"20250614-abc123","peakMultiplier":1.0}`,
			check: func(t *testing.T, r Record) {
				if r.HasSearchFields() {
					t.Error("record without timestamp and seed must not be search-eligible")
				}
				if !r.StartTime.IsZero() {
					t.Errorf("expected zero StartTime, got %v", r.StartTime)
				}
			},
		},
		{
			name:    "unparsable timestamp is malformed",
			input:   `{"gameId":"x","startTime":"yesterday-ish","serverSeed":"ab"}`,
			wantErr: true,
		},
		{
			name:    "negative peak is malformed",
			input:   `{"gameId":"x","peakMultiplier":-2}`,
			wantErr: true,
		},
		{
			name:    "negative tick is malformed",
			input:   `{"gameId":"x","finalTick":-1}`,
			wantErr: true,
		},
		{
			name:    "wrong type is malformed",
			input:   `{"gameId":"x","peakMultiplier":"huge"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r Record
			err := json.Unmarshal([]byte(tt.input), &r)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && err == nil {
				tt.check(t, r)
			}
		})
	}
}

func TestRecordMarshalRoundTrip(t *testing.T) {
	original := Record{
		GameID:         "20250614-ff00aa",
		StartTime:      time.Date(2025, 6, 14, 12, 30, 45, 123456000, time.UTC),
		EndTime:        time.Date(2025, 6, 14, 12, 31, 0, 0, time.UTC),
		ServerSeed:     "deadbeef",
		PeakMultiplier: 12.75,
		FinalTick:      412,
		Instarug:       false,
		TotalTrades:    17,
	}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded Record
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if !decoded.StartTime.Equal(original.StartTime) || !decoded.EndTime.Equal(original.EndTime) {
		t.Errorf("timestamps did not round-trip: %+v", decoded)
	}
	if decoded.GameID != original.GameID || decoded.ServerSeed != original.ServerSeed {
		t.Errorf("identity fields did not round-trip: %+v", decoded)
	}
	if decoded.PeakMultiplier != original.PeakMultiplier || decoded.FinalTick != original.FinalTick {
		t.Errorf("outcome fields did not round-trip: %+v", decoded)
	}

	// A record without timestamps keeps them absent through a round trip.
	bare := Record{GameID: "20250615-01", ServerSeed: "aa"}
	data, err = json.Marshal(bare)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var bareDecoded Record
	if err := json.Unmarshal(data, &bareDecoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !bareDecoded.StartTime.IsZero() {
		t.Errorf("expected zero StartTime after round trip, got %v", bareDecoded.StartTime)
	}
}

func TestRecordDuration(t *testing.T) {
	start := time.Date(2025, 6, 14, 12, 30, 0, 0, time.UTC)

	r := Record{StartTime: start, EndTime: start.Add(42 * time.Second)}
	if got := r.Duration(); got != 42*time.Second {
		t.Errorf("Duration() = %v, want 42s", got)
	}

	missingEnd := Record{StartTime: start}
	if got := missingEnd.Duration(); got != 0 {
		t.Errorf("Duration() with missing end = %v, want 0", got)
	}

	missingStart := Record{EndTime: start}
	if got := missingStart.Duration(); got != 0 {
		t.Errorf("Duration() with missing start = %v, want 0", got)
	}
}

func TestSearchEligible(t *testing.T) {
	start := time.Date(2025, 6, 14, 12, 0, 0, 0, time.UTC)
	records := []Record{
		{GameID: "a", StartTime: start, ServerSeed: "11"},
		{GameID: "b", ServerSeed: "22"},                  // no timestamp
		{GameID: "", StartTime: start, ServerSeed: "33"}, // no id
		{GameID: "d", StartTime: start},                  // no seed
		{GameID: "e", StartTime: start, ServerSeed: "55"},
	}

	eligible := SearchEligible(records)
	if len(eligible) != 2 {
		t.Fatalf("expected 2 eligible records, got %d", len(eligible))
	}
	if eligible[0].GameID != "a" || eligible[1].GameID != "e" {
		t.Errorf("eligible order not preserved: %v, %v", eligible[0].GameID, eligible[1].GameID)
	}
}

func TestSplit(t *testing.T) {
	records := make([]Record, 25)
	for i := range records {
		records[i].GameID = string(rune('a' + i))
	}

	tests := []struct {
		name        string
		sampleSize  int
		holdoutSize int
		wantSample  int
		wantHoldout int
	}{
		{"normal", 10, 100, 10, 15},
		{"exact fit", 10, 15, 10, 15},
		{"holdout truncated", 20, 100, 20, 5},
		{"sample larger than input", 50, 10, 25, 0},
		{"zero holdout", 10, 0, 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sample, holdout := Split(records, tt.sampleSize, tt.holdoutSize)
			if len(sample) != tt.wantSample {
				t.Errorf("sample size = %d, want %d", len(sample), tt.wantSample)
			}
			if len(holdout) != tt.wantHoldout {
				t.Errorf("holdout size = %d, want %d", len(holdout), tt.wantHoldout)
			}

			// The two slices must never share a record.
			seen := make(map[string]bool)
			for _, r := range sample {
				seen[r.GameID] = true
			}
			for _, r := range holdout {
				if seen[r.GameID] {
					t.Fatalf("record %q appears in both slices", r.GameID)
				}
			}
		})
	}
}
