package seedsearch

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/seedprobe/seedprobe/internal/config"
	"github.com/seedprobe/seedprobe/internal/game"
	"github.com/seedprobe/seedprobe/pkg/errors"
	"github.com/seedprobe/seedprobe/pkg/log"
)

// algorithm pairs an algorithm name with its hex digest function.
type algorithm struct {
	name string
	sum  func(string) string
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func sha1Hex(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// resolveAlgorithms maps configured algorithm names onto digest functions,
// preserving order.
func resolveAlgorithms(names []string) ([]algorithm, error) {
	known := map[string]func(string) string{
		AlgorithmMD5:    md5Hex,
		AlgorithmSHA1:   sha1Hex,
		AlgorithmSHA256: sha256Hex,
	}

	resolved := make([]algorithm, 0, len(names))
	for _, name := range names {
		fn, ok := known[name]
		if !ok {
			return nil, fmt.Errorf("unknown hash algorithm %q", name)
		}
		resolved = append(resolved, algorithm{name: name, sum: fn})
	}
	return resolved, nil
}

// resolveOrderings validates configured ordering names, preserving order.
func resolveOrderings(names []string) ([]string, error) {
	known := map[string]bool{
		OrderingTimeSalt: true,
		OrderingSaltTime: true,
		OrderingTimeOnly: true,
		OrderingSaltOnly: true,
	}

	resolved := make([]string, 0, len(names))
	for _, name := range names {
		if !known[name] {
			return nil, fmt.Errorf("unknown ordering %q", name)
		}
		resolved = append(resolved, name)
	}
	return resolved, nil
}

// candidateInput builds the string to hash for one ordering. The salt-only
// and time-only orderings ignore one axis on purpose: the original
// constructions under test may not involve the timestamp (or the salt) at
// all.
func candidateInput(ordering, timeStr, salt string) string {
	switch ordering {
	case OrderingTimeSalt:
		return timeStr + salt
	case OrderingSaltTime:
		return salt + timeStr
	case OrderingTimeOnly:
		return timeStr
	case OrderingSaltOnly:
		return salt
	default:
		return ""
	}
}

// Generator enumerates candidate seed constructions over a record sample.
// It is stateless across Generate calls and safe for concurrent use; the
// enumeration tables are injected configuration, never package constants.
type Generator struct {
	tables       *config.Tables
	encodings    []timeEncoding
	encodeByName map[string]EncodeFunc
	orderings    []string
	algorithms   []algorithm
	workers      int
	logger       *log.Logger
}

// NewGenerator builds a generator from enumeration tables. Unknown
// encoding, ordering or algorithm names are configuration errors.
func NewGenerator(tables *config.Tables, workers int, logger *log.Logger) (*Generator, error) {
	if tables == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "new_generator", "enumeration tables are required")
	}
	if err := tables.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "new_generator", "invalid enumeration tables")
	}

	encodings, err := resolveEncodings(tables.Encodings)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "new_generator", "invalid encodings")
	}

	orderings, err := resolveOrderings(tables.Orderings)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "new_generator", "invalid orderings")
	}

	algorithms, err := resolveAlgorithms(tables.Algorithms)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "new_generator", "invalid algorithms")
	}

	if workers <= 0 {
		workers = 1
	}

	byName := make(map[string]EncodeFunc, len(encodings))
	for _, enc := range encodings {
		byName[enc.name] = enc.encode
	}

	return &Generator{
		tables:       tables,
		encodings:    encodings,
		encodeByName: byName,
		orderings:    orderings,
		algorithms:   algorithms,
		workers:      workers,
		logger:       logger.WithComponent("seedsearch"),
	}, nil
}

// genJob is one unit of work: every combination for a single record and a
// single time encoding.
type genJob struct {
	rank     int // position in the eligible sample, for deterministic examples
	rec      *game.Record
	encoding string
	timeStr  string
	seed     string
}

// genMatch is a single digest hit produced by a worker.
type genMatch struct {
	hyp       Hypothesis
	rank      int
	gameID    string
	candidate string
	digest    string
}

// Generate enumerates every combination against the sample and returns the
// surviving hypotheses. The output is deterministic for a fixed sample and
// fixed tables: workers partition the grid but the merged findings are
// sorted and aggregated in sample order. Seeds are re-hashed on every
// comparison; nothing is cached between calls.
func (g *Generator) Generate(ctx context.Context, sample []game.Record) (*Result, error) {
	result := &Result{SampleSize: len(sample)}

	perCell := len(g.tables.Secrets) * len(g.tables.SaltTemplates) * len(g.orderings) * len(g.algorithms)

	// Resolve encodings for every eligible record up front. The hashing grid
	// is parallelized; this pass is trivially cheap and lets the combination
	// accounting stay exact.
	var jobs []genJob
	encodingUsed := make(map[string]bool, len(g.encodings))
	for i := range sample {
		rec := &sample[i]
		if !rec.HasSearchFields() {
			continue
		}
		rank := result.EligibleRecords
		result.EligibleRecords++
		seed := strings.ToLower(rec.ServerSeed)

		for _, enc := range g.encodings {
			timeStr := enc.encode(rec)
			if timeStr == "" {
				// Empty derived value: skip this combination only.
				result.SkippedCombinations += int64(perCell)
				continue
			}
			encodingUsed[enc.name] = true
			jobs = append(jobs, genJob{rank: rank, rec: rec, encoding: enc.name, timeStr: timeStr, seed: seed})
		}
	}

	result.CombinationsTested = len(encodingUsed) * perCell * 2 // two match kinds per cell

	if len(jobs) == 0 {
		result.Findings = []Finding{}
		return result, nil
	}

	jobCh := make(chan genJob, len(jobs))
	matchCh := make(chan []genMatch, g.workers)
	comparisons := make([]int64, g.workers)

	var wg sync.WaitGroup
	for w := 0; w < g.workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			var local []genMatch
			for job := range jobCh {
				select {
				case <-ctx.Done():
					return
				default:
				}
				local = append(local, g.runJob(job)...)
				comparisons[worker] += int64(perCell)
			}
			matchCh <- local
		}(w)
	}

	for _, job := range jobs {
		jobCh <- job
	}
	close(jobCh)

	wg.Wait()
	close(matchCh)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var matches []genMatch
	for local := range matchCh {
		matches = append(matches, local...)
	}
	for _, c := range comparisons {
		result.DigestComparisons += c
	}

	result.Findings = aggregate(matches)

	g.logger.Info("candidate generation finished",
		"sample_size", result.SampleSize,
		"eligible_records", result.EligibleRecords,
		"combinations_tested", result.CombinationsTested,
		"digest_comparisons", result.DigestComparisons,
		"findings", len(result.Findings),
	)

	return result, nil
}

// runJob tests every (secret, template, ordering, algorithm) combination
// for one record and one encoded time string.
func (g *Generator) runJob(job genJob) []genMatch {
	var hits []genMatch

	for _, secret := range g.tables.Secrets {
		for _, template := range g.tables.SaltTemplates {
			salt := g.tables.Salt(template, secret)

			for _, ordering := range g.orderings {
				candidate := candidateInput(ordering, job.timeStr, salt)

				for _, alg := range g.algorithms {
					digest := alg.sum(candidate)

					var match string
					switch {
					case digest == job.seed:
						match = MatchExact
					case len(job.seed) >= PrefixLength && digest[:PrefixLength] == job.seed[:PrefixLength]:
						match = MatchPrefix16
					default:
						continue
					}

					hits = append(hits, genMatch{
						hyp: Hypothesis{
							Encoding:     job.encoding,
							Secret:       secret,
							SaltTemplate: template,
							Ordering:     ordering,
							Algorithm:    alg.name,
							Match:        match,
						},
						rank:      job.rank,
						gameID:    job.rec.GameID,
						candidate: candidate,
						digest:    digest,
					})
				}
			}
		}
	}

	return hits
}

// aggregate groups raw matches into findings, one per distinct hypothesis,
// keeping the earliest sample match as the example.
func aggregate(matches []genMatch) []Finding {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].rank != matches[j].rank {
			return matches[i].rank < matches[j].rank
		}
		return matches[i].hyp.Key() < matches[j].hyp.Key()
	})

	byKey := make(map[Hypothesis]*Finding)
	order := make([]Hypothesis, 0)
	for _, m := range matches {
		f, ok := byKey[m.hyp]
		if !ok {
			f = &Finding{
				Hypothesis: m.hyp,
				Example: Example{
					GameID:    m.gameID,
					Candidate: m.candidate,
					Digest:    m.digest,
				},
			}
			byKey[m.hyp] = f
			order = append(order, m.hyp)
		}
		f.SampleMatches++
		f.MatchedGames = append(f.MatchedGames, m.gameID)
	}

	findings := make([]Finding, 0, len(order))
	for _, hyp := range order {
		findings = append(findings, *byKey[hyp])
	}
	sort.Slice(findings, func(i, j int) bool {
		return findings[i].Key() < findings[j].Key()
	})
	return findings
}

// Matches recomputes the hypothesis's match condition for a single record.
// The second return reports whether the record was testable at all: records
// missing a required field are not, while a record whose encoding derives
// an empty string is testable but cannot match (it still counts toward a
// validation total).
func (g *Generator) Matches(h Hypothesis, rec *game.Record) (matched, testable bool) {
	if rec == nil || !rec.HasSearchFields() {
		return false, false
	}

	encode, ok := g.encodeByName[h.Encoding]
	if !ok {
		return false, true
	}

	timeStr := encode(rec)
	if timeStr == "" && (h.Ordering == OrderingTimeSalt || h.Ordering == OrderingSaltTime || h.Ordering == OrderingTimeOnly) {
		return false, true
	}

	salt := g.tables.Salt(h.SaltTemplate, h.Secret)
	candidate := candidateInput(h.Ordering, timeStr, salt)

	var digest string
	switch h.Algorithm {
	case AlgorithmMD5:
		digest = md5Hex(candidate)
	case AlgorithmSHA1:
		digest = sha1Hex(candidate)
	case AlgorithmSHA256:
		digest = sha256Hex(candidate)
	default:
		return false, true
	}

	seed := strings.ToLower(rec.ServerSeed)
	switch h.Match {
	case MatchExact:
		return digest == seed, true
	case MatchPrefix16:
		return len(seed) >= PrefixLength && digest[:PrefixLength] == seed[:PrefixLength], true
	default:
		return false, true
	}
}

// Tables exposes the generator's enumeration tables.
func (g *Generator) Tables() *config.Tables {
	return g.tables
}
