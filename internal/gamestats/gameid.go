package gamestats

import (
	"math"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/seedprobe/seedprobe/internal/game"
	"github.com/seedprobe/seedprobe/pkg/errors"
)

// Delta histogram labels for consecutive counter differences
const (
	DeltaOne        = "1"
	DeltaSmall      = "2-10"
	DeltaMedium     = "11-100"
	DeltaLarge      = ">100"
	DeltaNonForward = "<=0"
)

// GameIDPatterns reports structure in the YYYYMMDD-hex game identifiers.
// A counter-like hex part undermines any claim that ids are unpredictable.
type GameIDPatterns struct {
	Total              int            `json:"total"`
	Parseable          int            `json:"parseable"`
	DateCounts         map[string]int `json:"dateCounts"`
	IDLengths          map[int]int    `json:"idLengths"`
	StrictlyIncreasing float64        `json:"strictlyIncreasingFraction"`
	SequentialCount    int            `json:"sequentialCount"`
	DeltaHistogram     map[string]int `json:"deltaHistogram"`
	TimeCorrelation    *float64       `json:"timeCorrelation,omitempty"`
	CorrelationPValue  *float64       `json:"correlationPValue,omitempty"`
}

// parsedID is one game id split into its date and counter components
type parsedID struct {
	date    string
	counter uint64
	start   time.Time
}

// GameIDPatterns analyzes the id scheme: per-date volume, whether the hex
// part behaves like a monotone counter, and how strongly the counter tracks
// wall-clock time.
func (a *Analyzer) GameIDPatterns(records []game.Record) (*GameIDPatterns, error) {
	result := &GameIDPatterns{
		Total:          len(records),
		DateCounts:     make(map[string]int),
		IDLengths:      make(map[int]int),
		DeltaHistogram: make(map[string]int),
	}

	var parsed []parsedID
	for i := range records {
		rec := &records[i]
		if rec.GameID == "" {
			continue
		}

		parts := strings.Split(rec.GameID, "-")
		if len(parts) != 2 {
			continue
		}
		result.IDLengths[len(parts[1])]++

		if !validDatePart(parts[0]) {
			continue
		}
		counter, ok := parseCounter(parts[1])
		if !ok {
			continue
		}

		result.DateCounts[parts[0]]++
		parsed = append(parsed, parsedID{date: parts[0], counter: counter, start: rec.StartTime})
	}

	result.Parseable = len(parsed)
	if result.Parseable < MinParseableIDs {
		return nil, errors.New(errors.ErrorTypeAnalysis, "game_id_patterns",
			"not enough parseable game ids for pattern analysis").
			WithContext("parseable", result.Parseable).
			WithContext("min_parseable", MinParseableIDs)
	}

	increasing := 0
	for i := 1; i < len(parsed); i++ {
		prev, curr := parsed[i-1].counter, parsed[i].counter
		if curr <= prev {
			result.DeltaHistogram[DeltaNonForward]++
			continue
		}
		increasing++

		switch delta := curr - prev; {
		case delta == 1:
			result.DeltaHistogram[DeltaOne]++
		case delta <= 10:
			result.DeltaHistogram[DeltaSmall]++
		case delta <= 100:
			result.DeltaHistogram[DeltaMedium]++
		default:
			result.DeltaHistogram[DeltaLarge]++
		}
	}
	result.StrictlyIncreasing = float64(increasing) / float64(len(parsed)-1)
	result.SequentialCount = result.DeltaHistogram[DeltaOne]

	a.correlateWithTime(result, parsed)

	a.logger.Debug("game id patterns computed",
		"total", result.Total,
		"parseable", result.Parseable,
		"sequential", result.SequentialCount,
	)

	return result, nil
}

// correlateWithTime computes the Pearson correlation between record
// timestamps and counter values, with a two-sided Student's-t p-value.
func (a *Analyzer) correlateWithTime(result *GameIDPatterns, parsed []parsedID) {
	var times, counters []float64
	for _, p := range parsed {
		if p.start.IsZero() {
			continue
		}
		times = append(times, float64(p.start.UnixNano())/1e9)
		counters = append(counters, float64(p.counter))
	}
	if len(times) < 3 {
		return
	}

	r := stat.Correlation(times, counters, nil)
	if math.IsNaN(r) {
		// Zero variance on either axis, nothing to correlate.
		return
	}
	result.TimeCorrelation = &r

	n := float64(len(times))
	var p float64
	if 1-r*r <= 0 {
		p = 0
	} else {
		t := r * math.Sqrt((n-2)/(1-r*r))
		dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: n - 2}
		p = 2 * dist.Survival(math.Abs(t))
	}
	result.CorrelationPValue = &p
}

// validDatePart accepts an 8-digit YYYYMMDD prefix with sane field ranges
func validDatePart(s string) bool {
	if len(s) != 8 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}

	year, _ := strconv.Atoi(s[:4])
	month, _ := strconv.Atoi(s[4:6])
	day, _ := strconv.Atoi(s[6:8])
	return year >= 2000 && year <= 2100 && month >= 1 && month <= 12 && day >= 1 && day <= 31
}

// parseCounter parses the hex part as an unsigned counter. Parts longer
// than 16 digits do not fit uint64 and are treated as unparseable.
func parseCounter(s string) (uint64, bool) {
	if s == "" || len(s) > 16 {
		return 0, false
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
