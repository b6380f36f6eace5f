package validation

import (
	"math"

	"github.com/seedprobe/seedprobe/internal/seedsearch"
)

// log10BinomialTail returns log10 of P(X >= k) for X ~ Binomial(n, p).
//
// The sum runs in the log domain. With per-trial probabilities as small as
// 16^-64 the individual terms underflow float64 long before they stop
// mattering, but their logarithms stay comfortably representable, so each
// term is assembled from Lgamma and combined by log-sum-exp.
func log10BinomialTail(k, n int, p float64) float64 {
	switch {
	case k <= 0:
		return 0 // P = 1
	case k > n, p <= 0:
		return math.Inf(-1) // P = 0
	case p >= 1:
		return 0
	}

	lp := math.Log(p)
	l1p := math.Log1p(-p)
	lgN, _ := math.Lgamma(float64(n) + 1)

	terms := make([]float64, 0, n-k+1)
	maxTerm := math.Inf(-1)
	for i := k; i <= n; i++ {
		lgI, _ := math.Lgamma(float64(i) + 1)
		lgNI, _ := math.Lgamma(float64(n-i) + 1)
		// log C(n,i) + i log p + (n-i) log(1-p)
		term := lgN - lgI - lgNI + float64(i)*lp + float64(n-i)*l1p
		terms = append(terms, term)
		if term > maxTerm {
			maxTerm = term
		}
	}

	var sum float64
	for _, term := range terms {
		sum += math.Exp(term - maxTerm)
	}

	return (maxTerm + math.Log(sum)) / math.Ln10
}

// chanceProbability returns the per-record probability that a hypothesis
// digest matches an independent uniform hex seed by chance: 16^-16 for
// prefix hypotheses, 16^-L for exact matches against seeds of length L.
func chanceProbability(match string, seedLen int) float64 {
	digits := seedLen
	if match == seedsearch.MatchPrefix16 || digits <= 0 {
		digits = seedsearch.PrefixLength
	}
	return math.Pow(16, -float64(digits))
}
