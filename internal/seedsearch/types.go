// Package seedsearch implements the seed hypothesis search: a brute-force
// enumeration of candidate hash constructions over observed server seeds.
// For a small ordered sample of game records it tests every
// (time-encoding, secret, salt-template, ordering, algorithm) combination
// and records the combinations that reproduced an observed seed exactly or
// by hex prefix.
package seedsearch

import (
	"fmt"
	"strings"
)

// Hash algorithm names accepted in the enumeration tables.
const (
	AlgorithmMD5    = "md5"
	AlgorithmSHA1   = "sha1"
	AlgorithmSHA256 = "sha256"
)

// Ordering names: how the encoded time and the salt combine into the
// candidate input string.
const (
	OrderingTimeSalt = "time_salt"
	OrderingSaltTime = "salt_time"
	OrderingTimeOnly = "time_only"
	OrderingSaltOnly = "salt_only"
)

// Match kinds. Exact equality of the full digest is a stronger signal than
// a prefix match; the two are distinct hypotheses and are never conflated.
const (
	MatchExact    = "exact"
	MatchPrefix16 = "prefix_16"
)

// PrefixLength is the number of leading hex characters compared for a
// prefix match.
const PrefixLength = 16

// Hypothesis identifies one candidate seed construction. It is an explicit
// record with named fields, not an ad-hoc tuple: hold-out validation must
// recompute the exact generation-time condition, which requires every axis
// including the ordering.
type Hypothesis struct {
	Encoding     string `json:"encoding"`
	Secret       string `json:"secret"`
	SaltTemplate string `json:"saltTemplate"`
	Ordering     string `json:"ordering"`
	Algorithm    string `json:"algorithm"`
	Match        string `json:"match"`
}

// Key returns a stable grouping key for the hypothesis. Findings are sorted
// by key so that reports are deterministic regardless of worker scheduling.
func (h Hypothesis) Key() string {
	return strings.Join([]string{h.Encoding, h.Secret, h.SaltTemplate, h.Ordering, h.Algorithm, h.Match}, "|")
}

func (h Hypothesis) String() string {
	return fmt.Sprintf("%s(%s) %s secret=%q template=%q [%s]",
		h.Algorithm, h.Encoding, h.Ordering, h.Secret, h.SaltTemplate, h.Match)
}

// Example preserves one concrete match for a finding: which game, what
// candidate input was hashed and what digest came out.
type Example struct {
	GameID    string `json:"gameId"`
	Candidate string `json:"candidate"`
	Digest    string `json:"digest"`
}

// Finding couples a surviving hypothesis with its generation-phase
// evidence.
type Finding struct {
	Hypothesis
	SampleMatches int      `json:"sampleMatches"`
	MatchedGames  []string `json:"matchedGames"`
	Example       Example  `json:"example"`
}

// Result is the outcome of one candidate-generation pass.
type Result struct {
	// Findings lists the surviving hypotheses sorted by key.
	Findings []Finding
	// SampleSize is the number of records given to the generator.
	SampleSize int
	// EligibleRecords is how many of them carried the required fields.
	EligibleRecords int
	// CombinationsTested is the number of distinct hypothesis cells tested
	// (enumeration grid cells with a usable encoding, times the two match
	// kinds). This is the multiple-comparisons universe for validation.
	CombinationsTested int
	// DigestComparisons counts every digest-to-seed comparison performed.
	DigestComparisons int64
	// SkippedCombinations counts comparisons not performed because a time
	// encoding produced an empty string for a record.
	SkippedCombinations int64
}
