package gamestats

import (
	"time"

	"github.com/seedprobe/seedprobe/internal/game"
)

// HistogramBin is one peak-multiplier histogram cell
type HistogramBin struct {
	Label string   `json:"label"`
	Games int      `json:"games"`
	Share *float64 `json:"share,omitempty"`
}

// Descriptive summarizes outcome distributions over a record set
type Descriptive struct {
	Records       int            `json:"records"`
	FirstStart    *time.Time     `json:"firstStart,omitempty"`
	LastStart     *time.Time     `json:"lastStart,omitempty"`
	Peak          *SummaryStats  `json:"peakMultiplier,omitempty"`
	DurationSecs  *SummaryStats  `json:"durationSeconds,omitempty"`
	FinalTick     *SummaryStats  `json:"finalTick,omitempty"`
	PeakHistogram []HistogramBin `json:"peakHistogram,omitempty"`
	Instarugs     int            `json:"instarugs"`
	InstarugRate  *float64       `json:"instarugRate,omitempty"`
	MeanTrades    *float64       `json:"meanTotalTrades,omitempty"`
	MeanPlayers   *float64       `json:"meanUniquePlayers,omitempty"`
}

// Describe profiles a record set. It never fails: missing fields shrink the
// per-metric samples and empty input yields a zero profile with undefined
// rates.
func (a *Analyzer) Describe(records []game.Record) *Descriptive {
	desc := &Descriptive{Records: len(records)}

	peaks := make([]float64, 0, len(records))
	durations := make([]float64, 0, len(records))
	ticks := make([]float64, 0, len(records))
	histogram := make([]int, len(peakBuckets))

	trades, tradeGames := 0, 0
	players, playerGames := 0, 0

	for i := range records {
		rec := &records[i]

		peaks = append(peaks, rec.PeakMultiplier)
		ticks = append(ticks, float64(rec.FinalTick))
		histogram[peakBucketIndex(rec.PeakMultiplier)]++

		if !rec.StartTime.IsZero() {
			if desc.FirstStart == nil || rec.StartTime.Before(*desc.FirstStart) {
				t := rec.StartTime
				desc.FirstStart = &t
			}
			if desc.LastStart == nil || rec.StartTime.After(*desc.LastStart) {
				t := rec.StartTime
				desc.LastStart = &t
			}
		}

		if !rec.StartTime.IsZero() && !rec.EndTime.IsZero() {
			durations = append(durations, rec.Duration().Seconds())
		}

		if rec.Instarug {
			desc.Instarugs++
		}
		if rec.TotalTrades > 0 {
			trades += rec.TotalTrades
			tradeGames++
		}
		if rec.UniquePlayers > 0 {
			players += rec.UniquePlayers
			playerGames++
		}
	}

	desc.Peak = summarize(peaks)
	desc.DurationSecs = summarize(durations)
	desc.FinalTick = summarize(ticks)
	desc.InstarugRate = ratio(desc.Instarugs, len(records))
	desc.MeanTrades = ratio(trades, tradeGames)
	desc.MeanPlayers = ratio(players, playerGames)

	if len(records) > 0 {
		desc.PeakHistogram = make([]HistogramBin, len(peakBuckets))
		for i, b := range peakBuckets {
			desc.PeakHistogram[i] = HistogramBin{
				Label: b.Label,
				Games: histogram[i],
				Share: ratio(histogram[i], len(records)),
			}
		}
	}

	a.logger.Debug("descriptive statistics computed",
		"records", desc.Records,
		"instarugs", desc.Instarugs,
	)

	return desc
}
