package validation

import (
	"context"
	"math"

	"github.com/seedprobe/seedprobe/internal/game"
	"github.com/seedprobe/seedprobe/internal/seedsearch"
	"github.com/seedprobe/seedprobe/pkg/errors"
	"github.com/seedprobe/seedprobe/pkg/log"
)

// Matcher recomputes one hypothesis against one record. It is satisfied by
// *seedsearch.Generator, which guarantees the hold-out check applies the
// exact generation-time condition: same encoding, salt, ordering, algorithm
// and match kind.
type Matcher interface {
	Matches(h seedsearch.Hypothesis, rec *game.Record) (matched, testable bool)
}

// Validator performs hold-out validation of generated findings
type Validator struct {
	matcher Matcher
	alpha   float64
	logger  *log.Logger
}

// NewValidator creates a hold-out validator. alpha is the uncorrected
// significance level; the Bonferroni divisor comes per run from the number
// of combinations the search actually tested.
func NewValidator(matcher Matcher, alpha float64, logger *log.Logger) (*Validator, error) {
	if matcher == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "new_validator", "matcher is required")
	}
	if alpha <= 0 || alpha >= 1 {
		return nil, errors.New(errors.ErrorTypeConfig, "new_validator",
			"significance level must be in (0, 1)").
			WithContext("alpha", alpha)
	}

	return &Validator{
		matcher: matcher,
		alpha:   alpha,
		logger:  logger.WithComponent("validation"),
	}, nil
}

// Validate performs staged validation of every finding:
//
//  1. Slice hygiene: the hold-out games must be disjoint from the
//     generation sample. Scoring a hypothesis on the games that produced it
//     proves nothing, so any overlap fails the whole validation.
//  2. Scoring: each hypothesis is recomputed against each hold-out record.
//  3. Assessment: the match count becomes a rate, a log10 binomial tail
//     p-value against chance, and a verdict under the corrected threshold.
func (v *Validator) Validate(ctx context.Context, findings []seedsearch.Finding, sample, holdout []game.Record, combinations int) ([]Outcome, error) {
	if err := v.checkDisjoint(sample, holdout); err != nil {
		return nil, err
	}

	if combinations < 1 {
		combinations = 1
	}

	outcomes := make([]Outcome, 0, len(findings))
	for i := range findings {
		select {
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), errors.ErrorTypeTimeout, "validate_holdout",
				"hold-out validation cancelled")
		default:
		}

		outcome := v.scoreFinding(&findings[i], holdout, combinations)
		v.logger.LogValidationOutcome(findings[i].Key(),
			outcome.Validation.Matches, outcome.Validation.Total, outcome.Validation.Verdict)
		outcomes = append(outcomes, outcome)
	}

	return outcomes, nil
}

// checkDisjoint rejects any game ID appearing in both slices. Records with
// an empty game ID cannot collide and are ignored.
func (v *Validator) checkDisjoint(sample, holdout []game.Record) error {
	seen := make(map[string]struct{}, len(sample))
	for i := range sample {
		if sample[i].GameID != "" {
			seen[sample[i].GameID] = struct{}{}
		}
	}

	for i := range holdout {
		if holdout[i].GameID == "" {
			continue
		}
		if _, dup := seen[holdout[i].GameID]; dup {
			return errors.New(errors.ErrorTypeValidation, "holdout_overlap",
				"hold-out slice shares games with the generation sample").
				WithContext("game_id", holdout[i].GameID)
		}
	}

	return nil
}

// scoreFinding recomputes one hypothesis over the hold-out records and
// assesses the outcome. Records missing the required fields do not count
// toward the denominator.
func (v *Validator) scoreFinding(finding *seedsearch.Finding, holdout []game.Record, combinations int) Outcome {
	matches, total := 0, 0
	seedLen := 0

	for i := range holdout {
		matched, testable := v.matcher.Matches(finding.Hypothesis, &holdout[i])
		if !testable {
			continue
		}
		total++
		if seedLen == 0 {
			seedLen = len(holdout[i].ServerSeed)
		}
		if matched {
			matches++
		}
	}

	result := Result{
		Matches:           matches,
		Total:             total,
		ChanceProbability: chanceProbability(finding.Match, seedLen),
		Log10Threshold:    math.Log10(v.alpha / float64(combinations)),
	}

	switch {
	case total == 0:
		// No testable hold-out records: the rate is undefined, not zero
		result.Verdict = VerdictInconclusive
	case matches == 0:
		rate := 0.0
		logP := 0.0 // P(X >= 0) = 1
		result.Rate = &rate
		result.Log10PValue = &logP
		result.Verdict = VerdictRejected
	default:
		rate := float64(matches) / float64(total)
		logP := log10BinomialTail(matches, total, result.ChanceProbability)
		result.Rate = &rate
		result.Log10PValue = &logP
		if logP < result.Log10Threshold {
			result.Verdict = VerdictSupported
		} else {
			result.Verdict = VerdictInconclusive
		}
	}

	return Outcome{Finding: *finding, Validation: result}
}
