// Package analysis orchestrates a full-analysis run. Every enabled phase
// executes independently over the same loaded records and lands in one
// report document: a phase aborting for its own reasons (insufficient
// sample, nothing parseable) voids only that phase, while context
// cancellation aborts the whole run.
package analysis

import (
	"context"
	"time"

	"github.com/seedprobe/seedprobe/internal/classifier"
	"github.com/seedprobe/seedprobe/internal/config"
	"github.com/seedprobe/seedprobe/internal/game"
	"github.com/seedprobe/seedprobe/internal/gamestats"
	"github.com/seedprobe/seedprobe/internal/messaging"
	"github.com/seedprobe/seedprobe/internal/randomness"
	"github.com/seedprobe/seedprobe/internal/report"
	"github.com/seedprobe/seedprobe/internal/seedsearch"
	"github.com/seedprobe/seedprobe/internal/validation"
	"github.com/seedprobe/seedprobe/pkg/errors"
	"github.com/seedprobe/seedprobe/pkg/log"
)

// Analysis phase names as they appear in report error entries.
const (
	PhaseDescriptive = "descriptive"
	PhaseCrossGame   = "cross_game"
	PhaseGameID      = "game_id_patterns"
	PhaseSeedSearch  = "seed_search"
	PhaseRandomness  = "randomness"
	PhaseClassifier  = "classifier"
)

// Runner executes the full analysis pipeline over loaded records.
type Runner struct {
	cfg       *config.Config
	generator *seedsearch.Generator
	validator *validation.Validator
	stats     *gamestats.Analyzer
	battery   *randomness.Battery
	model     *classifier.Classifier
	logger    *log.Logger
}

// NewRunner wires every analysis phase from configuration. The enumeration
// tables drive the seed search; the significance level is shared by every
// statistical phase.
func NewRunner(cfg *config.Config, tables *config.Tables, logger *log.Logger) (*Runner, error) {
	generator, err := seedsearch.NewGenerator(tables, cfg.AnalysisWorkers, logger)
	if err != nil {
		return nil, err
	}

	validator, err := validation.NewValidator(generator, cfg.Significance, logger)
	if err != nil {
		return nil, err
	}

	stats, err := gamestats.New(cfg.Significance, logger)
	if err != nil {
		return nil, err
	}

	battery, err := randomness.New(randomness.Config{
		Alpha:    cfg.Significance,
		MinSeeds: cfg.MinSeeds,
	}, logger)
	if err != nil {
		return nil, err
	}

	model, err := classifier.New(classifier.Config{
		MinRecords: cfg.MinRecords,
	}, logger)
	if err != nil {
		return nil, err
	}

	return &Runner{
		cfg:       cfg,
		generator: generator,
		validator: validator,
		stats:     stats,
		battery:   battery,
		model:     model,
		logger:    logger.WithComponent("analysis"),
	}, nil
}

// Run executes every enabled phase over the decoded input and assembles the
// report. The source name is recorded verbatim in the input section.
func (r *Runner) Run(ctx context.Context, input *game.DecodeResult, source string) (*report.Report, error) {
	rep := report.New(r.cfg.Version)
	records := input.Records
	eligible := game.SearchEligible(records)

	rep.Input = report.Input{
		Source:         source,
		Records:        len(records),
		Skipped:        input.Skipped,
		SearchEligible: len(eligible),
		Issues:         input.Issues,
	}

	logger := r.logger.WithRun(rep.RunID)
	logger.Info("analysis run starting",
		"source", source,
		"records", len(records),
		"skipped", input.Skipped,
		"search_eligible", len(eligible),
	)

	r.runDescriptive(rep, records)
	r.runCrossGame(rep, records)
	r.runGameID(rep, records)
	if err := r.runSeedSearch(ctx, rep, records); err != nil {
		return nil, err
	}
	r.runRandomness(rep, eligible)
	r.runClassifier(rep, records)

	rep.CompletedAt = time.Now().UTC()
	logger.LogAnalysisCompleted(rep.RunID, len(records), rep.HypothesisCount(),
		float64(rep.Duration().Microseconds())/1000)

	return rep, nil
}

// skip voids one phase: logged once, recorded once, never fatal.
func (r *Runner) skip(rep *report.Report, phase, reason string) {
	r.logger.LogAnalysisSkipped(phase, reason)
	rep.AddError(phase, reason)
}

// reason extracts the human-readable part of a phase error.
func reason(err error) string {
	if se, ok := err.(*errors.ServiceError); ok {
		return se.Message
	}
	return err.Error()
}

func (r *Runner) runDescriptive(rep *report.Report, records []game.Record) {
	if !r.cfg.EnableDescriptive {
		r.skip(rep, PhaseDescriptive, "disabled by configuration")
		return
	}
	rep.Descriptive = r.stats.Describe(records)
}

func (r *Runner) runCrossGame(rep *report.Report, records []game.Record) {
	if !r.cfg.EnableCrossGame {
		r.skip(rep, PhaseCrossGame, "disabled by configuration")
		return
	}
	result, err := r.stats.CrossGame(records)
	if err != nil {
		r.skip(rep, PhaseCrossGame, reason(err))
		return
	}
	rep.CrossGame = result
}

func (r *Runner) runGameID(rep *report.Report, records []game.Record) {
	if !r.cfg.EnableGameID {
		r.skip(rep, PhaseGameID, "disabled by configuration")
		return
	}
	result, err := r.stats.GameIDPatterns(records)
	if err != nil {
		r.skip(rep, PhaseGameID, reason(err))
		return
	}
	rep.GameIDPatterns = result
}

// runSeedSearch runs candidate generation over the ordered sample and
// hold-out validation over the disjoint later slice. Unlike the other
// phases its error return matters: generation and validation honour ctx,
// and a cancelled context aborts the whole run.
func (r *Runner) runSeedSearch(ctx context.Context, rep *report.Report, records []game.Record) error {
	if !r.cfg.EnableSeedSearch {
		r.skip(rep, PhaseSeedSearch, "disabled by configuration")
		return nil
	}

	sample, holdout := game.Split(records, r.cfg.SampleSize, r.cfg.HoldoutSize)
	if len(sample) == 0 {
		r.skip(rep, PhaseSeedSearch, "no records available for the generation sample")
		return nil
	}

	result, err := r.generator.Generate(ctx, sample)
	if err != nil {
		return err
	}

	for i := range result.Findings {
		f := &result.Findings[i]
		r.logger.LogHypothesisFound(f.Encoding, f.Secret, f.SaltTemplate,
			f.Ordering, f.Algorithm, f.Match, f.SampleMatches)
	}

	outcomes, err := r.validator.Validate(ctx, result.Findings, sample, holdout, result.CombinationsTested)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		r.skip(rep, PhaseSeedSearch, reason(err))
		return nil
	}

	rep.SeedSearch = &report.SeedSearch{
		SampleSize:          len(sample),
		HoldoutSize:         len(holdout),
		EligibleRecords:     result.EligibleRecords,
		CombinationsTested:  result.CombinationsTested,
		DigestComparisons:   result.DigestComparisons,
		SkippedCombinations: result.SkippedCombinations,
		Hypotheses:          outcomes,
	}
	return nil
}

func (r *Runner) runRandomness(rep *report.Report, eligible []game.Record) {
	if !r.cfg.EnableRandomness {
		r.skip(rep, PhaseRandomness, "disabled by configuration")
		return
	}

	seeds := make([]string, 0, len(eligible))
	for i := range eligible {
		seeds = append(seeds, eligible[i].ServerSeed)
	}

	result, err := r.battery.Run(seeds)
	if err != nil {
		r.skip(rep, PhaseRandomness, reason(err))
		return
	}
	rep.Randomness = result
}

func (r *Runner) runClassifier(rep *report.Report, records []game.Record) {
	if !r.cfg.EnableClassifier {
		r.skip(rep, PhaseClassifier, "disabled by configuration")
		return
	}

	result, err := r.model.Fit(records)
	if err != nil {
		r.skip(rep, PhaseClassifier, reason(err))
		return
	}
	rep.Classifier = result
}

// CompletionMessage builds the Kafka announcement for a finished run.
func CompletionMessage(rep *report.Report, reportPath string) *messaging.AnalysisCompletedMessage {
	supported, inconclusive, rejected := rep.VerdictCounts()
	return &messaging.AnalysisCompletedMessage{
		RunID:          rep.RunID,
		InputSource:    rep.Input.Source,
		Records:        rep.Input.Records,
		SearchEligible: rep.Input.SearchEligible,
		Hypotheses:     rep.HypothesisCount(),
		Supported:      supported,
		Inconclusive:   inconclusive,
		Rejected:       rejected,
		ReportPath:     reportPath,
		StartedAt:      rep.StartedAt,
		CompletedAt:    rep.CompletedAt,
		DurationMs:     float64(rep.Duration().Microseconds()) / 1000,
	}
}
