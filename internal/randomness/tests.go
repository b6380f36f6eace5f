package randomness

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// runBitPositions tests each aligned bit position for a 50/50 split across
// seeds. Position i of every seed comes from the same generator step, so a
// bias here points at a weak or truncated entropy source.
func (b *Battery) runBitPositions(report *Report, rows [][]uint8, commonBits int) {
	if commonBits == 0 {
		b.skip(report, TestBitPositions, "seeds share no common bit positions")
		return
	}

	n := len(rows)
	chi2 := distuv.ChiSquared{K: 1}

	result := &BitPositionResult{
		Positions:        commonBits,
		SeedsPerPosition: n,
		ExpectedFraction: b.cfg.Alpha,
	}

	for pos := 0; pos < commonBits; pos++ {
		ones := 0
		for _, row := range rows {
			ones += int(row[pos])
		}

		// (2*ones - n)^2 / n is the 1-df chi-square against a fair coin
		diff := float64(2*ones - n)
		stat := diff * diff / float64(n)
		p := chi2.Survival(stat)

		if p < b.cfg.Alpha {
			result.Flagged = append(result.Flagged, BitPositionCell{
				Position:  pos,
				Ones:      ones,
				ChiSquare: stat,
				PValue:    p,
			})
		}
	}

	result.FlaggedFraction = float64(len(result.Flagged)) / float64(commonBits)

	// Under the null, alpha of all positions cross the threshold by chance.
	// Allow two standard deviations of binomial noise on top of that budget.
	budget := b.cfg.Alpha * float64(commonBits)
	slack := 2 * math.Sqrt(float64(commonBits)*b.cfg.Alpha*(1-b.cfg.Alpha))
	result.WithinExpectation = float64(len(result.Flagged)) <= budget+slack

	report.BitPositions = result
}

// runNGrams pools non-overlapping n-bit windows from every seed and tests
// the pooled counts against a uniform multinomial
func (b *Battery) runNGrams(report *Report, rows [][]uint8) {
	for _, n := range b.cfg.NGramSizes {
		categories := 1 << n
		counts := make([]int, categories)
		total := 0

		for _, row := range rows {
			for i := 0; i+n <= len(row); i += n {
				idx := 0
				for j := 0; j < n; j++ {
					idx = idx<<1 | int(row[i+j])
				}
				counts[idx]++
				total++
			}
		}

		// Chi-square needs roughly five expected observations per cell
		if total < 5*categories {
			b.skip(report, TestNGrams, "need at least %d %d-bit n-grams, have %d", 5*categories, n, total)
			continue
		}

		expected := float64(total) / float64(categories)
		stat := 0.0
		for _, count := range counts {
			diff := float64(count) - expected
			stat += diff * diff / expected
		}

		df := float64(categories - 1)
		p := distuv.ChiSquared{K: df}.Survival(stat)

		report.NGrams = append(report.NGrams, NGramResult{
			N:           n,
			Categories:  categories,
			Total:       total,
			ChiSquare:   stat,
			PValue:      p,
			Significant: p < b.cfg.Alpha,
		})
	}
}

// runAutocorrelation measures serial correlation over the concatenated bit
// stream. A lag with |r| beyond two standard errors suggests one seed leaks
// into the next, which is exactly what a counter or timestamp scheme does.
func (b *Battery) runAutocorrelation(report *Report, stream []uint8) {
	n := len(stream)
	if n <= b.cfg.MaxLag {
		b.skip(report, TestAutocorrelation, "stream of %d bits is shorter than the maximum lag %d", n, b.cfg.MaxLag)
		return
	}

	ones := countOnes(stream)
	p := float64(ones) / float64(n)
	if ones == 0 || ones == n {
		b.skip(report, TestAutocorrelation, "bit stream is constant")
		return
	}

	denom := float64(n) * p * (1 - p)
	threshold := 2 / math.Sqrt(float64(n))

	result := &AutocorrelationResult{
		Bits:      n,
		Threshold: threshold,
		Lags:      make([]LagCorrelation, 0, b.cfg.MaxLag),
	}

	for lag := 1; lag <= b.cfg.MaxLag; lag++ {
		sum := 0.0
		for i := 0; i+lag < n; i++ {
			sum += (float64(stream[i]) - p) * (float64(stream[i+lag]) - p)
		}
		r := sum / denom

		flagged := math.Abs(r) > threshold
		result.Lags = append(result.Lags, LagCorrelation{Lag: lag, R: r, Flagged: flagged})
		if flagged {
			result.FlaggedLags = append(result.FlaggedLags, lag)
		}
	}

	// Roughly alpha of the lags cross two standard errors under the null;
	// judge the count against that budget plus binomial noise.
	lags := float64(b.cfg.MaxLag)
	budget := b.cfg.Alpha*lags + 2*math.Sqrt(lags*b.cfg.Alpha*(1-b.cfg.Alpha))
	result.WithinExpectation = float64(len(result.FlaggedLags)) <= budget

	report.Autocorrelation = result
}

// runRuns tests run lengths against the geometric distribution and the run
// count against the Wald-Wolfowitz expectation
func (b *Battery) runRuns(report *Report, stream []uint8) {
	n := len(stream)
	ones := countOnes(stream)
	zeros := n - ones
	if ones == 0 || zeros == 0 {
		b.skip(report, TestRuns, "bit stream is constant")
		return
	}

	var lengths []int
	current := stream[0]
	length := 1
	for _, bit := range stream[1:] {
		if bit == current {
			length++
			continue
		}
		lengths = append(lengths, length)
		current = bit
		length = 1
	}
	lengths = append(lengths, length)

	totalRuns := len(lengths)
	if totalRuns < 10 {
		b.skip(report, TestRuns, "need at least 10 runs, have %d", totalRuns)
		return
	}

	// Bucket run lengths 1..K-1 exactly and pool >=K into a tail so every
	// expected count stays near five or above. P(L = k) = 2^-k.
	tail := int(math.Floor(math.Log2(float64(totalRuns)/5))) + 1
	if tail < 2 {
		tail = 2
	}
	if tail > 16 {
		tail = 16
	}

	observed := make([]int, tail)
	for _, l := range lengths {
		if l >= tail {
			observed[tail-1]++
		} else {
			observed[l-1]++
		}
	}

	result := &RunsResult{
		TotalRuns: totalRuns,
		Buckets:   make([]RunBucket, 0, tail),
	}

	stat := 0.0
	for k := 1; k <= tail; k++ {
		expected := float64(totalRuns) * math.Pow(0.5, float64(k))
		isTail := k == tail
		if isTail {
			// P(L >= K) = 2^-(K-1)
			expected = float64(totalRuns) * math.Pow(0.5, float64(tail-1))
		}

		obs := observed[k-1]
		diff := float64(obs) - expected
		stat += diff * diff / expected

		result.Buckets = append(result.Buckets, RunBucket{
			Length:   k,
			Observed: obs,
			Expected: expected,
			Tail:     isTail,
		})
	}

	result.ChiSquare = stat
	result.PValue = distuv.ChiSquared{K: float64(tail - 1)}.Survival(stat)
	result.Significant = result.PValue < b.cfg.Alpha

	// Wald-Wolfowitz: too few runs means clumping, too many means
	// alternation. Both are departures from independence.
	n1 := float64(ones)
	n0 := float64(zeros)
	nf := float64(n)
	expectedRuns := 2*n1*n0/nf + 1
	variance := 2 * n1 * n0 * (2*n1*n0 - nf) / (nf * nf * (nf - 1))

	result.RunCountExpected = expectedRuns
	if variance > 0 {
		z := (float64(totalRuns) - expectedRuns) / math.Sqrt(variance)
		result.RunCountZ = z
		result.RunCountPValue = 2 * distuv.UnitNormal.Survival(math.Abs(z))
	} else {
		result.RunCountPValue = 1
	}

	report.Runs = result
}

// runEntropy measures per-seed hex character entropy. Uniform hex approaches
// 4 bits per character; structured seeds with repeated or restricted digits
// fall well below.
func (b *Battery) runEntropy(report *Report, seeds []string) {
	result := &EntropyResult{
		MinBitsPerChar: math.Inf(1),
		Threshold:      b.cfg.LowEntropyThreshold,
	}

	sum := 0.0
	for _, seed := range seeds {
		h := hexCharEntropy(seed)
		sum += h
		if h < result.MinBitsPerChar {
			result.MinBitsPerChar = h
		}
		if h < b.cfg.LowEntropyThreshold {
			result.LowEntropySeeds++
		}
	}

	result.MeanBitsPerChar = sum / float64(len(seeds))
	report.Entropy = result
}

// hexCharEntropy returns the Shannon entropy of a hex string in bits per
// character. The seed is assumed lowercase hex.
func hexCharEntropy(seed string) float64 {
	var counts [16]int
	for _, r := range seed {
		switch {
		case r >= '0' && r <= '9':
			counts[r-'0']++
		case r >= 'a' && r <= 'f':
			counts[r-'a'+10]++
		}
	}

	total := float64(len(seed))
	if total == 0 {
		return 0
	}

	h := 0.0
	for _, count := range counts {
		if count == 0 {
			continue
		}
		p := float64(count) / total
		h -= p * math.Log2(p)
	}
	return h
}
