// Package gamestats computes descriptive and pattern statistics over
// collected game rounds: outcome distributions, lagged cross-game effects
// and game-id counter structure. The phases are independent; each takes the
// full record slice in collection order and reports what the data supports.
package gamestats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/seedprobe/seedprobe/pkg/errors"
	"github.com/seedprobe/seedprobe/pkg/log"
)

// Sample-size floors below which a phase refuses to report
const (
	// MinCrossGamePairs is the fewest consecutive pairs for lag analysis.
	MinCrossGamePairs = 10
	// MinHourGames is the fewest games an hour needs to contribute a rate.
	MinHourGames = 5
	// MinParseableIDs is the fewest well-formed game ids for pattern analysis.
	MinParseableIDs = 3
)

// Analyzer computes the statistics phases with a shared significance level
type Analyzer struct {
	alpha  float64
	logger *log.Logger
}

// New creates an analyzer. The significance level applies to every test the
// phases run.
func New(alpha float64, logger *log.Logger) (*Analyzer, error) {
	if alpha <= 0 || alpha >= 1 {
		return nil, errors.New(errors.ErrorTypeConfig, "new_analyzer",
			"significance level must be in (0, 1)").
			WithContext("alpha", alpha)
	}

	return &Analyzer{
		alpha:  alpha,
		logger: logger.WithComponent("gamestats"),
	}, nil
}

// SummaryStats is the five-number profile of one metric
type SummaryStats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// summarize profiles a value slice. Empty input yields nil; a single value
// has zero spread.
func summarize(values []float64) *SummaryStats {
	if len(values) == 0 {
		return nil
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	median := sorted[mid]
	if len(sorted)%2 == 0 {
		median = (sorted[mid-1] + sorted[mid]) / 2
	}

	std := 0.0
	if len(values) > 1 {
		std = stat.StdDev(values, nil)
	}

	return &SummaryStats{
		Count:  len(values),
		Mean:   stat.Mean(values, nil),
		Median: median,
		Std:    std,
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
	}
}

// peakBuckets are the peak-multiplier bins shared by the histogram and the
// lag analysis. Each bin is [Lo, Hi).
var peakBuckets = []struct {
	Label string
	Lo    float64
	Hi    float64
}{
	{"0-2x", 0, 2},
	{"2-5x", 2, 5},
	{"5-10x", 5, 10},
	{"10-20x", 10, 20},
	{"20-50x", 20, 50},
	{"50x+", 50, math.Inf(1)},
}

// peakBucketIndex maps a peak multiplier onto its bin
func peakBucketIndex(peak float64) int {
	for i, b := range peakBuckets {
		if peak < b.Hi {
			return i
		}
	}
	return len(peakBuckets) - 1
}

// ratio returns numerator/denominator, or nil when the denominator is zero
func ratio(num, den int) *float64 {
	if den == 0 {
		return nil
	}
	r := float64(num) / float64(den)
	return &r
}
