package gamestats

import (
	"math"
	"testing"
	"time"

	"github.com/seedprobe/seedprobe/internal/game"
)

func TestDescribe_Empty(t *testing.T) {
	a := newTestAnalyzer(t)

	desc := a.Describe(nil)
	if desc.Records != 0 {
		t.Errorf("Records = %d, want 0", desc.Records)
	}
	if desc.Peak != nil || desc.DurationSecs != nil || desc.FinalTick != nil {
		t.Error("empty input must not produce metric summaries")
	}
	if desc.InstarugRate != nil {
		t.Error("instarug rate must be undefined for an empty set")
	}
	if len(desc.PeakHistogram) != 0 {
		t.Errorf("PeakHistogram = %+v, want empty", desc.PeakHistogram)
	}
}

func TestDescribe_Profile(t *testing.T) {
	base := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	records := []game.Record{
		{
			GameID: "20240201-1", StartTime: base, EndTime: base.Add(10 * time.Second),
			PeakMultiplier: 1.5, FinalTick: 100, TotalTrades: 10, UniquePlayers: 5,
		},
		{
			GameID: "20240201-2", StartTime: base.Add(time.Minute), EndTime: base.Add(time.Minute + 20*time.Second),
			PeakMultiplier: 3.0, FinalTick: 200, UniquePlayers: 5,
		},
		{
			GameID: "20240201-3", StartTime: base.Add(2 * time.Minute), EndTime: base.Add(2*time.Minute + 30*time.Second),
			PeakMultiplier: 60.0, FinalTick: 300, TotalTrades: 20,
		},
		{
			GameID: "20240201-4", StartTime: base.Add(3 * time.Minute), EndTime: base.Add(3*time.Minute + 40*time.Second),
			PeakMultiplier: 0.5, FinalTick: 400, Instarug: true,
		},
	}

	a := newTestAnalyzer(t)
	desc := a.Describe(records)

	if desc.Records != 4 {
		t.Fatalf("Records = %d, want 4", desc.Records)
	}
	if desc.Instarugs != 1 {
		t.Errorf("Instarugs = %d, want 1", desc.Instarugs)
	}
	if desc.InstarugRate == nil || *desc.InstarugRate != 0.25 {
		t.Errorf("InstarugRate = %v, want 0.25", desc.InstarugRate)
	}

	if desc.Peak == nil {
		t.Fatal("peak summary missing")
	}
	if desc.Peak.Mean != 16.25 {
		t.Errorf("Peak.Mean = %v, want 16.25", desc.Peak.Mean)
	}
	if desc.Peak.Median != 2.25 {
		t.Errorf("Peak.Median = %v, want 2.25", desc.Peak.Median)
	}
	if desc.Peak.Min != 0.5 || desc.Peak.Max != 60 {
		t.Errorf("Peak Min/Max = %v/%v, want 0.5/60", desc.Peak.Min, desc.Peak.Max)
	}

	if desc.DurationSecs == nil || desc.DurationSecs.Mean != 25 {
		t.Errorf("DurationSecs = %+v, want mean 25", desc.DurationSecs)
	}
	if desc.FinalTick == nil || desc.FinalTick.Median != 250 {
		t.Errorf("FinalTick = %+v, want median 250", desc.FinalTick)
	}

	if desc.MeanTrades == nil || *desc.MeanTrades != 15 {
		t.Errorf("MeanTrades = %v, want 15 over the two reporting games", desc.MeanTrades)
	}
	if desc.MeanPlayers == nil || *desc.MeanPlayers != 5 {
		t.Errorf("MeanPlayers = %v, want 5", desc.MeanPlayers)
	}

	if desc.FirstStart == nil || !desc.FirstStart.Equal(base) {
		t.Errorf("FirstStart = %v, want %v", desc.FirstStart, base)
	}
	if desc.LastStart == nil || !desc.LastStart.Equal(base.Add(3*time.Minute)) {
		t.Errorf("LastStart = %v", desc.LastStart)
	}

	wantHist := map[string]int{"0-2x": 2, "2-5x": 1, "50x+": 1}
	if len(desc.PeakHistogram) != len(peakBuckets) {
		t.Fatalf("PeakHistogram has %d bins, want %d", len(desc.PeakHistogram), len(peakBuckets))
	}
	for _, bin := range desc.PeakHistogram {
		if bin.Games != wantHist[bin.Label] {
			t.Errorf("bin %q = %d games, want %d", bin.Label, bin.Games, wantHist[bin.Label])
		}
		if bin.Share == nil {
			t.Errorf("bin %q share missing", bin.Label)
			continue
		}
		if want := float64(wantHist[bin.Label]) / 4; math.Abs(*bin.Share-want) > 1e-12 {
			t.Errorf("bin %q share = %v, want %v", bin.Label, *bin.Share, want)
		}
	}
}

// Records missing timestamps or optional counters shrink the per-metric
// samples without failing the profile.
func TestDescribe_MissingFields(t *testing.T) {
	base := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	records := []game.Record{
		{GameID: "20240201-1", PeakMultiplier: 2, FinalTick: 100}, // no timestamps
		{GameID: "20240201-2", StartTime: base, PeakMultiplier: 4, FinalTick: 200}, // no end
		{GameID: "20240201-3", StartTime: base.Add(time.Minute), EndTime: base.Add(time.Minute + 12*time.Second), PeakMultiplier: 6, FinalTick: 300},
	}

	a := newTestAnalyzer(t)
	desc := a.Describe(records)

	if desc.Peak == nil || desc.Peak.Count != 3 {
		t.Errorf("Peak.Count = %+v, want 3", desc.Peak)
	}
	if desc.DurationSecs == nil || desc.DurationSecs.Count != 1 || desc.DurationSecs.Mean != 12 {
		t.Errorf("DurationSecs = %+v, want one 12s sample", desc.DurationSecs)
	}
	if desc.FirstStart == nil || !desc.FirstStart.Equal(base) {
		t.Errorf("FirstStart = %v, want %v", desc.FirstStart, base)
	}
	if desc.MeanTrades != nil {
		t.Errorf("MeanTrades = %v, want nil with no reporting games", desc.MeanTrades)
	}
}
