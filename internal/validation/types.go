// Package validation scores seed hypotheses against a hold-out slice of
// records that played no part in generating them. Each surviving hypothesis
// is recomputed per hold-out game, and the resulting match count is judged
// against chance under a Bonferroni correction sized to the full enumeration
// grid the search swept.
package validation

import (
	"github.com/seedprobe/seedprobe/internal/seedsearch"
)

// Hypothesis verdicts after hold-out scoring.
const (
	VerdictSupported    = "supported"
	VerdictInconclusive = "inconclusive"
	VerdictRejected     = "rejected"
)

// Result carries the hold-out evidence for one hypothesis. Rate and
// Log10PValue are pointers: with no testable hold-out records both are
// undefined and serialize as null rather than a misleading zero.
type Result struct {
	Matches           int      `json:"matches"`
	Total             int      `json:"total"`
	Rate              *float64 `json:"rate"`
	ChanceProbability float64  `json:"chanceProbability"`
	Log10PValue       *float64 `json:"log10PValue"`
	Log10Threshold    float64  `json:"log10Threshold"`
	Verdict           string   `json:"verdict"`
}

// Outcome pairs a generated finding with its hold-out result.
type Outcome struct {
	seedsearch.Finding
	Validation Result `json:"validation"`
}
