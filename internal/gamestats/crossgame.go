package gamestats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/seedprobe/seedprobe/internal/game"
	"github.com/seedprobe/seedprobe/pkg/errors"
)

// highPeakCutoff splits pairs for the contingency test. A common player
// superstition holds that a huge peak is "paid for" by rugging the next
// round; the test checks whether the data supports it.
const highPeakCutoff = 50.0

// PeakBucket is the next-game instarug rate following one peak range
type PeakBucket struct {
	Label     string   `json:"label"`
	Games     int      `json:"games"`
	Instarugs int      `json:"instarugs"`
	Rate      *float64 `json:"rate,omitempty"`
}

// ContingencyTest is a Yates-corrected 2x2 chi-square over
// high-peak-previous x instarug-next
type ContingencyTest struct {
	HighGames   int      `json:"highGames"`
	HighRate    *float64 `json:"highRate,omitempty"`
	OtherGames  int      `json:"otherGames"`
	OtherRate   *float64 `json:"otherRate,omitempty"`
	ChiSquare   float64  `json:"chiSquare"`
	PValue      float64  `json:"pValue"`
	Significant bool     `json:"significant"`
}

// HourlyRate is the instarug rate for one UTC hour of day
type HourlyRate struct {
	Hour      int     `json:"hour"`
	Games     int     `json:"games"`
	Instarugs int     `json:"instarugs"`
	Rate      float64 `json:"rate"`
}

// CrossGame reports lag effects between consecutive games
type CrossGame struct {
	Pairs           int              `json:"pairs"`
	OverallRate     *float64         `json:"overallNextInstarugRate,omitempty"`
	PeakBuckets     []PeakBucket     `json:"peakBuckets"`
	HighPeakTest    *ContingencyTest `json:"highPeakTest,omitempty"`
	HourlyRates     []HourlyRate     `json:"hourlyRates,omitempty"`
	HourlyRateRatio *float64         `json:"hourlyRateRatio,omitempty"`
	SuspiciousHours bool             `json:"suspiciousHours"`
}

// CrossGame analyzes consecutive-game effects: the instarug rate of the
// next game grouped by the previous game's peak bucket, a contingency test
// against the high-peak cutoff, and hour-of-day instarug rates. Collection
// order stands in for real-time order.
func (a *Analyzer) CrossGame(records []game.Record) (*CrossGame, error) {
	pairs := len(records) - 1
	if pairs < MinCrossGamePairs {
		return nil, errors.New(errors.ErrorTypeAnalysis, "cross_game",
			"not enough consecutive pairs for cross-game analysis").
			WithContext("pairs", pairs).
			WithContext("min_pairs", MinCrossGamePairs)
	}

	result := &CrossGame{Pairs: pairs}

	bucketGames := make([]int, len(peakBuckets))
	bucketInstarugs := make([]int, len(peakBuckets))
	nextInstarugs := 0

	// Contingency cells: previous peak >= cutoff x next game instarug.
	var highInsta, highOther, lowInsta, lowOther int

	for i := 0; i+1 < len(records); i++ {
		prev, next := &records[i], &records[i+1]

		bucket := peakBucketIndex(prev.PeakMultiplier)
		bucketGames[bucket]++
		if next.Instarug {
			bucketInstarugs[bucket]++
			nextInstarugs++
		}

		switch {
		case prev.PeakMultiplier >= highPeakCutoff && next.Instarug:
			highInsta++
		case prev.PeakMultiplier >= highPeakCutoff:
			highOther++
		case next.Instarug:
			lowInsta++
		default:
			lowOther++
		}
	}

	result.OverallRate = ratio(nextInstarugs, pairs)
	result.PeakBuckets = make([]PeakBucket, len(peakBuckets))
	for i, b := range peakBuckets {
		result.PeakBuckets[i] = PeakBucket{
			Label:     b.Label,
			Games:     bucketGames[i],
			Instarugs: bucketInstarugs[i],
			Rate:      ratio(bucketInstarugs[i], bucketGames[i]),
		}
	}

	result.HighPeakTest = a.contingencyTest(highInsta, highOther, lowInsta, lowOther)
	a.hourlyRates(result, records)

	a.logger.Debug("cross-game analysis computed",
		"pairs", pairs,
		"high_peak_pairs", highInsta+highOther,
		"suspicious_hours", result.SuspiciousHours,
	)

	return result, nil
}

// contingencyTest runs the Yates-corrected chi-square. A zero marginal
// makes the expected table degenerate; the test is omitted rather than
// reported with an invented p-value.
func (a *Analyzer) contingencyTest(highInsta, highOther, lowInsta, lowOther int) *ContingencyTest {
	high := highInsta + highOther
	low := lowInsta + lowOther
	insta := highInsta + lowInsta
	other := highOther + lowOther
	if high == 0 || low == 0 || insta == 0 || other == 0 {
		return nil
	}

	n := float64(high + low)
	observed := [4]float64{float64(highInsta), float64(highOther), float64(lowInsta), float64(lowOther)}
	expected := [4]float64{
		float64(high) * float64(insta) / n,
		float64(high) * float64(other) / n,
		float64(low) * float64(insta) / n,
		float64(low) * float64(other) / n,
	}

	chi2 := 0.0
	for i := range observed {
		adj := math.Abs(observed[i]-expected[i]) - 0.5
		if adj < 0 {
			adj = 0
		}
		chi2 += adj * adj / expected[i]
	}

	p := distuv.ChiSquared{K: 1}.Survival(chi2)
	return &ContingencyTest{
		HighGames:   high,
		HighRate:    ratio(highInsta, high),
		OtherGames:  low,
		OtherRate:   ratio(lowInsta, low),
		ChiSquare:   chi2,
		PValue:      p,
		Significant: p < a.alpha,
	}
}

// hourlyRates groups instarug rates by UTC hour of day. An honest generator
// has no clock: a wide spread between hours is worth a closer look.
func (a *Analyzer) hourlyRates(result *CrossGame, records []game.Record) {
	games := make(map[int]int)
	instarugs := make(map[int]int)
	for i := range records {
		if records[i].StartTime.IsZero() {
			continue
		}
		hour := records[i].StartTime.UTC().Hour()
		games[hour]++
		if records[i].Instarug {
			instarugs[hour]++
		}
	}

	hours := make([]int, 0, len(games))
	for hour, count := range games {
		if count >= MinHourGames {
			hours = append(hours, hour)
		}
	}
	sort.Ints(hours)

	if len(hours) == 0 {
		return
	}

	minRate, maxRate := math.Inf(1), math.Inf(-1)
	for _, hour := range hours {
		rate := float64(instarugs[hour]) / float64(games[hour])
		result.HourlyRates = append(result.HourlyRates, HourlyRate{
			Hour:      hour,
			Games:     games[hour],
			Instarugs: instarugs[hour],
			Rate:      rate,
		})
		minRate = math.Min(minRate, rate)
		maxRate = math.Max(maxRate, rate)
	}

	// The ratio is undefined when some hour never instarugged.
	if len(hours) >= 2 && minRate > 0 {
		r := maxRate / minRate
		result.HourlyRateRatio = &r
		result.SuspiciousHours = r > 3
	}
}
