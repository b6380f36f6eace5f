// Package report assembles the single JSON document produced by one
// full-analysis invocation and writes it to the report directory. Every
// analysis phase lands in its own section; a phase that produced nothing is
// serialized as null alongside an entry explaining why.
package report

import (
	"time"

	"github.com/google/uuid"

	"github.com/seedprobe/seedprobe/internal/classifier"
	"github.com/seedprobe/seedprobe/internal/game"
	"github.com/seedprobe/seedprobe/internal/gamestats"
	"github.com/seedprobe/seedprobe/internal/randomness"
	"github.com/seedprobe/seedprobe/internal/validation"
)

// ServiceName stamps every report document with the producing binary.
const ServiceName = "seedaudit"

// Input describes where the records came from and how decoding went.
type Input struct {
	Source         string            `json:"source"`
	Records        int               `json:"records"`
	Skipped        int               `json:"skipped"`
	SearchEligible int               `json:"searchEligible"`
	Issues         []game.ParseIssue `json:"issues,omitempty"`
}

// AnalysisError records one phase that produced no result, whether it was
// disabled or aborted for its own reasons. Phase failures are never fatal to
// the run.
type AnalysisError struct {
	Analysis string `json:"analysis"`
	Message  string `json:"message"`
}

// SeedSearch couples the generation accounting with the validated
// hypotheses. CombinationsTested is the multiple-comparisons universe the
// verdicts were corrected against.
type SeedSearch struct {
	SampleSize          int                  `json:"sampleSize"`
	HoldoutSize         int                  `json:"holdoutSize"`
	EligibleRecords     int                  `json:"eligibleRecords"`
	CombinationsTested  int                  `json:"combinationsTested"`
	DigestComparisons   int64                `json:"digestComparisons"`
	SkippedCombinations int64                `json:"skippedCombinations"`
	Hypotheses          []validation.Outcome `json:"hypotheses"`
}

// Report is the document written once per full-analysis run. Phase sections
// are pointers: a phase that ran fills its section, a phase that did not
// stays null.
type Report struct {
	RunID          string                    `json:"runId"`
	Service        string                    `json:"service"`
	Version        string                    `json:"version"`
	StartedAt      time.Time                 `json:"startedAt"`
	CompletedAt    time.Time                 `json:"completedAt"`
	Input          Input                     `json:"input"`
	Descriptive    *gamestats.Descriptive    `json:"descriptive"`
	CrossGame      *gamestats.CrossGame      `json:"crossGame"`
	GameIDPatterns *gamestats.GameIDPatterns `json:"gameIDPatterns"`
	SeedSearch     *SeedSearch               `json:"seedSearch"`
	Randomness     *randomness.Report        `json:"randomness"`
	Classifier     *classifier.Result        `json:"classifier"`
	AnalysisErrors []AnalysisError           `json:"analysisErrors"`
}

// New creates an empty report stamped with a fresh run ID.
func New(version string) *Report {
	return &Report{
		RunID:          uuid.NewString(),
		Service:        ServiceName,
		Version:        version,
		StartedAt:      time.Now().UTC(),
		AnalysisErrors: []AnalysisError{},
	}
}

// AddError records a phase that produced no result
func (r *Report) AddError(analysis, message string) {
	r.AnalysisErrors = append(r.AnalysisErrors, AnalysisError{
		Analysis: analysis,
		Message:  message,
	})
}

// Duration returns the wall-clock span of the run
func (r *Report) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.CompletedAt.IsZero() {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// HypothesisCount returns how many validated hypotheses the run produced
func (r *Report) HypothesisCount() int {
	if r.SeedSearch == nil {
		return 0
	}
	return len(r.SeedSearch.Hypotheses)
}

// VerdictCounts tallies hold-out verdicts across all hypotheses
func (r *Report) VerdictCounts() (supported, inconclusive, rejected int) {
	if r.SeedSearch == nil {
		return 0, 0, 0
	}
	for i := range r.SeedSearch.Hypotheses {
		switch r.SeedSearch.Hypotheses[i].Validation.Verdict {
		case validation.VerdictSupported:
			supported++
		case validation.VerdictInconclusive:
			inconclusive++
		case validation.VerdictRejected:
			rejected++
		}
	}
	return supported, inconclusive, rejected
}
