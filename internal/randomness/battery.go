// Package randomness runs a battery of statistical tests over observed
// server seeds. A provably-fair seed stream should be indistinguishable
// from uniform random hex; each test probes one way a biased or structured
// generator would give itself away. Tests are independently skippable, so
// one degenerate input never silences the rest of the battery.
package randomness

import (
	"fmt"
	"strings"

	"github.com/seedprobe/seedprobe/pkg/errors"
	"github.com/seedprobe/seedprobe/pkg/log"
)

// Test names as they appear in reports and skip reasons.
const (
	TestBitPositions    = "bit_positions"
	TestNGrams          = "ngrams"
	TestAutocorrelation = "autocorrelation"
	TestRuns            = "runs"
	TestEntropy         = "entropy"
)

// Config holds battery tuning knobs
type Config struct {
	// Alpha is the per-test significance level.
	Alpha float64
	// MinSeeds is the minimum number of valid seeds to run the battery.
	MinSeeds int
	// MaxLag is the highest autocorrelation lag tested.
	MaxLag int
	// NGramSizes lists the n-gram widths tested, in bits.
	NGramSizes []int
	// LowEntropyThreshold flags seeds whose hex-character entropy falls
	// below this many bits per character (maximum 4).
	LowEntropyThreshold float64
}

// DefaultConfig returns the standard battery configuration
func DefaultConfig() Config {
	return Config{
		Alpha:               0.05,
		MinSeeds:            10,
		MaxLag:              20,
		NGramSizes:          []int{2, 3},
		LowEntropyThreshold: 3.5,
	}
}

// SkippedTest records a test that could not run and why
type SkippedTest struct {
	Test   string `json:"test"`
	Reason string `json:"reason"`
}

// BitPositionCell is one flagged bit position
type BitPositionCell struct {
	Position  int     `json:"position"`
	Ones      int     `json:"ones"`
	ChiSquare float64 `json:"chiSquare"`
	PValue    float64 `json:"pValue"`
}

// BitPositionResult summarizes the per-position frequency test. Some
// positions are expected to cross alpha by chance alone; the result is
// judged on whether the flagged fraction exceeds that false-positive
// budget, not on any single position.
type BitPositionResult struct {
	Positions         int               `json:"positions"`
	SeedsPerPosition  int               `json:"seedsPerPosition"`
	Flagged           []BitPositionCell `json:"flagged,omitempty"`
	FlaggedFraction   float64           `json:"flaggedFraction"`
	ExpectedFraction  float64           `json:"expectedFraction"`
	WithinExpectation bool              `json:"withinExpectation"`
}

// NGramResult is one pooled n-gram frequency test
type NGramResult struct {
	N           int     `json:"n"`
	Categories  int     `json:"categories"`
	Total       int     `json:"total"`
	ChiSquare   float64 `json:"chiSquare"`
	PValue      float64 `json:"pValue"`
	Significant bool    `json:"significant"`
}

// LagCorrelation is the normalized autocorrelation at one lag
type LagCorrelation struct {
	Lag     int     `json:"lag"`
	R       float64 `json:"r"`
	Flagged bool    `json:"flagged"`
}

// AutocorrelationResult summarizes serial correlation over the concatenated
// bit stream. Individual lags cross the two-standard-error threshold by
// chance, so the result is judged on the flagged count against that
// false-positive budget.
type AutocorrelationResult struct {
	Bits              int              `json:"bits"`
	Threshold         float64          `json:"threshold"`
	Lags              []LagCorrelation `json:"lags"`
	FlaggedLags       []int            `json:"flaggedLags,omitempty"`
	WithinExpectation bool             `json:"withinExpectation"`
}

// RunBucket is one run-length histogram cell. Tail buckets pool all runs of
// at least Length bits.
type RunBucket struct {
	Length   int     `json:"length"`
	Observed int     `json:"observed"`
	Expected float64 `json:"expected"`
	Tail     bool    `json:"tail,omitempty"`
}

// RunsResult summarizes the run-length distribution test and the
// Wald-Wolfowitz total-runs test
type RunsResult struct {
	TotalRuns        int         `json:"totalRuns"`
	Buckets          []RunBucket `json:"buckets"`
	ChiSquare        float64     `json:"chiSquare"`
	PValue           float64     `json:"pValue"`
	Significant      bool        `json:"significant"`
	RunCountZ        float64     `json:"runCountZ"`
	RunCountPValue   float64     `json:"runCountPValue"`
	RunCountExpected float64     `json:"runCountExpected"`
}

// EntropyResult summarizes per-seed hex character entropy
type EntropyResult struct {
	MeanBitsPerChar float64 `json:"meanBitsPerChar"`
	MinBitsPerChar  float64 `json:"minBitsPerChar"`
	LowEntropySeeds int     `json:"lowEntropySeeds"`
	Threshold       float64 `json:"threshold"`
}

// Report is the full battery output for one seed set
type Report struct {
	Seeds           int                    `json:"seeds"`
	InvalidSeeds    int                    `json:"invalidSeeds"`
	DuplicateSeeds  int                    `json:"duplicateSeeds"`
	BitsPerSeed     int                    `json:"bitsPerSeed"`
	TotalBits       int                    `json:"totalBits"`
	BitPositions    *BitPositionResult     `json:"bitPositions,omitempty"`
	NGrams          []NGramResult          `json:"ngrams,omitempty"`
	Autocorrelation *AutocorrelationResult `json:"autocorrelation,omitempty"`
	Runs            *RunsResult            `json:"runs,omitempty"`
	Entropy         *EntropyResult         `json:"entropy,omitempty"`
	Skipped         []SkippedTest          `json:"skipped,omitempty"`
	Suspicious      bool                   `json:"suspicious"`
}

// Battery runs the full test suite over a seed set
type Battery struct {
	cfg    Config
	logger *log.Logger
}

// New creates a battery. Zero-valued knobs fall back to their defaults.
func New(cfg Config, logger *log.Logger) (*Battery, error) {
	def := DefaultConfig()
	if cfg.Alpha == 0 {
		cfg.Alpha = def.Alpha
	}
	if cfg.MinSeeds == 0 {
		cfg.MinSeeds = def.MinSeeds
	}
	if cfg.MaxLag == 0 {
		cfg.MaxLag = def.MaxLag
	}
	if len(cfg.NGramSizes) == 0 {
		cfg.NGramSizes = def.NGramSizes
	}
	if cfg.LowEntropyThreshold == 0 {
		cfg.LowEntropyThreshold = def.LowEntropyThreshold
	}

	if cfg.Alpha <= 0 || cfg.Alpha >= 1 {
		return nil, errors.New(errors.ErrorTypeConfig, "new_battery",
			"significance level must be in (0, 1)").
			WithContext("alpha", cfg.Alpha)
	}
	if cfg.MinSeeds < 2 {
		return nil, errors.New(errors.ErrorTypeConfig, "new_battery",
			"minimum seed count must be at least 2").
			WithContext("min_seeds", cfg.MinSeeds)
	}
	for _, n := range cfg.NGramSizes {
		if n < 1 || n > 16 {
			return nil, errors.New(errors.ErrorTypeConfig, "new_battery",
				"n-gram sizes must be between 1 and 16 bits").
				WithContext("n", n)
		}
	}

	return &Battery{
		cfg:    cfg,
		logger: logger.WithComponent("randomness"),
	}, nil
}

// Run executes every test against the seed set. Non-hex seeds are dropped
// and counted; the battery itself fails only when fewer than MinSeeds valid
// seeds remain.
func (b *Battery) Run(seeds []string) (*Report, error) {
	report := &Report{}

	rows := make([][]uint8, 0, len(seeds))
	normalized := make([]string, 0, len(seeds))
	for _, seed := range seeds {
		s := strings.ToLower(strings.TrimSpace(seed))
		bits, ok := hexBits(s)
		if !ok {
			report.InvalidSeeds++
			continue
		}
		rows = append(rows, bits)
		normalized = append(normalized, s)
	}

	report.Seeds = len(rows)
	if report.Seeds < b.cfg.MinSeeds {
		return nil, errors.New(errors.ErrorTypeAnalysis, "randomness_battery",
			"not enough valid seeds for the randomness battery").
			WithContext("valid_seeds", report.Seeds).
			WithContext("min_seeds", b.cfg.MinSeeds).
			WithContext("invalid_seeds", report.InvalidSeeds)
	}

	report.DuplicateSeeds = countDuplicates(normalized)

	// Positional tests align on the longest prefix every seed shares
	commonBits := len(rows[0])
	for _, row := range rows[1:] {
		commonBits = min(commonBits, len(row))
	}
	report.BitsPerSeed = commonBits

	stream := concatBits(rows)
	report.TotalBits = len(stream)

	b.runBitPositions(report, rows, commonBits)
	b.runNGrams(report, rows)
	b.runAutocorrelation(report, stream)
	b.runRuns(report, stream)
	b.runEntropy(report, normalized)

	report.Suspicious = b.assess(report)

	b.logger.Debug("randomness battery completed",
		"seeds", report.Seeds,
		"invalid_seeds", report.InvalidSeeds,
		"total_bits", report.TotalBits,
		"skipped_tests", len(report.Skipped),
		"suspicious", report.Suspicious,
	)

	return report, nil
}

// skip records a skipped test and logs it
func (b *Battery) skip(report *Report, test, format string, args ...any) {
	reason := fmt.Sprintf(format, args...)
	report.Skipped = append(report.Skipped, SkippedTest{Test: test, Reason: reason})
	b.logger.LogAnalysisSkipped(test, reason)
}

// assess folds the per-test outcomes into one suspicion flag
func (b *Battery) assess(report *Report) bool {
	if report.BitPositions != nil && !report.BitPositions.WithinExpectation {
		return true
	}
	for _, ngram := range report.NGrams {
		if ngram.Significant {
			return true
		}
	}
	if report.Autocorrelation != nil && !report.Autocorrelation.WithinExpectation {
		return true
	}
	if report.Runs != nil && (report.Runs.Significant || report.Runs.RunCountPValue < b.cfg.Alpha) {
		return true
	}
	if report.Entropy != nil && report.Entropy.LowEntropySeeds > 0 {
		return true
	}
	return report.DuplicateSeeds > 0
}

func countDuplicates(seeds []string) int {
	seen := make(map[string]int, len(seeds))
	for _, s := range seeds {
		seen[s]++
	}

	dups := 0
	for _, n := range seen {
		if n > 1 {
			dups += n - 1
		}
	}
	return dups
}
