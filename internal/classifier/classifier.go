package classifier

import (
	"math/rand"
	"sort"

	"github.com/seedprobe/seedprobe/internal/game"
	"github.com/seedprobe/seedprobe/pkg/errors"
	"github.com/seedprobe/seedprobe/pkg/log"
)

// Config holds the sequence-model knobs
type Config struct {
	// WindowSize is how many preceding games feed one prediction.
	WindowSize int
	// Trees is the forest size.
	Trees int
	// TestFraction is the share of windows held out for scoring.
	TestFraction float64
	// Seed drives the shuffle and the per-tree randomness.
	Seed int64
	// MinRecords is the fewest records to attempt a fit.
	MinRecords int
	// MinWindows is the fewest windows to attempt a fit.
	MinWindows int
	// Margin is how far accuracy must beat the baseline to call the
	// sequence predictable.
	Margin float64
}

// DefaultConfig returns the standard classifier configuration
func DefaultConfig() Config {
	return Config{
		WindowSize:   5,
		Trees:        100,
		TestFraction: 0.2,
		Seed:         42,
		MinRecords:   100,
		MinWindows:   50,
		Margin:       0.10,
	}
}

// FeatureImportance is one feature's mean impurity decrease
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// Result reports how well the forest predicts upcoming instarugs
type Result struct {
	Windows       int                 `json:"windows"`
	TrainSize     int                 `json:"trainSize"`
	TestSize      int                 `json:"testSize"`
	TrainAccuracy float64             `json:"trainAccuracy"`
	Accuracy      float64             `json:"accuracy"`
	Baseline      float64             `json:"baseline"`
	Predictable   bool                `json:"predictable"`
	TopFeatures   []FeatureImportance `json:"topFeatures"`
}

// Classifier fits the sequence model over collected rounds
type Classifier struct {
	cfg    Config
	logger *log.Logger
}

// New creates a classifier. Zero-valued knobs fall back to their defaults.
func New(cfg Config, logger *log.Logger) (*Classifier, error) {
	def := DefaultConfig()
	if cfg.WindowSize == 0 {
		cfg.WindowSize = def.WindowSize
	}
	if cfg.Trees == 0 {
		cfg.Trees = def.Trees
	}
	if cfg.TestFraction == 0 {
		cfg.TestFraction = def.TestFraction
	}
	if cfg.Seed == 0 {
		cfg.Seed = def.Seed
	}
	if cfg.MinRecords == 0 {
		cfg.MinRecords = def.MinRecords
	}
	if cfg.MinWindows == 0 {
		cfg.MinWindows = def.MinWindows
	}
	if cfg.Margin == 0 {
		cfg.Margin = def.Margin
	}

	if cfg.WindowSize < 1 {
		return nil, errors.New(errors.ErrorTypeConfig, "new_classifier",
			"window size must be positive").
			WithContext("window_size", cfg.WindowSize)
	}
	if cfg.Trees < 1 {
		return nil, errors.New(errors.ErrorTypeConfig, "new_classifier",
			"tree count must be positive").
			WithContext("trees", cfg.Trees)
	}
	if cfg.TestFraction <= 0 || cfg.TestFraction >= 1 {
		return nil, errors.New(errors.ErrorTypeConfig, "new_classifier",
			"test fraction must be in (0, 1)").
			WithContext("test_fraction", cfg.TestFraction)
	}
	if cfg.MinRecords < 1 || cfg.MinWindows < 1 {
		return nil, errors.New(errors.ErrorTypeConfig, "new_classifier",
			"minimum record and window counts must be positive").
			WithContext("min_records", cfg.MinRecords).
			WithContext("min_windows", cfg.MinWindows)
	}

	return &Classifier{
		cfg:    cfg,
		logger: logger.WithComponent("classifier"),
	}, nil
}

// Fit builds windows, trains the forest on a seeded shuffle split and
// scores it against the hold-out windows.
func (c *Classifier) Fit(records []game.Record) (*Result, error) {
	if len(records) < c.cfg.MinRecords {
		return nil, errors.New(errors.ErrorTypeAnalysis, "classifier_fit",
			"not enough records for sequence modelling").
			WithContext("records", len(records)).
			WithContext("min_records", c.cfg.MinRecords)
	}

	features, labels := buildWindows(records, c.cfg.WindowSize)
	if len(features) < c.cfg.MinWindows {
		return nil, errors.New(errors.ErrorTypeAnalysis, "classifier_fit",
			"not enough windows for sequence modelling").
			WithContext("windows", len(features)).
			WithContext("min_windows", c.cfg.MinWindows)
	}

	// Baseline: always guess the majority class over every window.
	ones := 0
	for _, label := range labels {
		ones += label
	}
	p := float64(ones) / float64(len(labels))
	baseline := p
	if 1-p > baseline {
		baseline = 1 - p
	}

	rng := rand.New(rand.NewSource(c.cfg.Seed))
	perm := rng.Perm(len(features))

	testSize := int(float64(len(features)) * c.cfg.TestFraction)
	if testSize < 1 {
		testSize = 1
	}
	trainIdx := perm[:len(perm)-testSize]
	testIdx := perm[len(perm)-testSize:]

	trainFeatures := make([][]float64, len(trainIdx))
	trainLabels := make([]int, len(trainIdx))
	for i, idx := range trainIdx {
		trainFeatures[i] = features[idx]
		trainLabels[i] = labels[idx]
	}

	model := trainForest(trainFeatures, trainLabels,
		c.cfg.Trees, sqrtFeatures(len(features[0])), c.cfg.Seed)

	result := &Result{
		Windows:       len(features),
		TrainSize:     len(trainIdx),
		TestSize:      len(testIdx),
		TrainAccuracy: accuracy(model, trainFeatures, trainLabels),
		Accuracy:      scoreIndices(model, features, labels, testIdx),
		Baseline:      baseline,
		TopFeatures:   c.topFeatures(model.importances),
	}
	result.Predictable = result.Accuracy > baseline+c.cfg.Margin

	c.logger.Info("sequence classifier fitted",
		"windows", result.Windows,
		"accuracy", result.Accuracy,
		"baseline", result.Baseline,
		"predictable", result.Predictable,
	)

	return result, nil
}

// topFeatures ranks importances and keeps the five strongest. Ties resolve
// by feature order for reproducible reports.
func (c *Classifier) topFeatures(importances []float64) []FeatureImportance {
	names := featureNames(c.cfg.WindowSize)
	ranked := make([]FeatureImportance, len(importances))
	for i, imp := range importances {
		ranked[i] = FeatureImportance{Feature: names[i], Importance: imp}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Importance > ranked[j].Importance
	})

	if len(ranked) > 5 {
		ranked = ranked[:5]
	}
	return ranked
}

func accuracy(model *forest, features [][]float64, labels []int) float64 {
	correct := 0
	for i, x := range features {
		if model.predict(x) == labels[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(features))
}

func scoreIndices(model *forest, features [][]float64, labels []int, indices []int) float64 {
	correct := 0
	for _, idx := range indices {
		if model.predict(features[idx]) == labels[idx] {
			correct++
		}
	}
	return float64(correct) / float64(len(indices))
}
