package classifier

import (
	"math"
	"math/rand"
	"sort"
)

// node is one decision-tree node. Leaves carry the majority class of their
// training subset; internal nodes route on feature < threshold.
type node struct {
	leaf      bool
	class     int
	feature   int
	threshold float64
	left      *node
	right     *node
}

// forest is a bagged ensemble of Gini-split decision trees
type forest struct {
	trees       []*node
	importances []float64
}

// trainForest grows the ensemble: each tree trains on a bootstrap resample
// and considers a random feature subset at every split. Tree seeds derive
// from the base seed, so a forest is reproducible for a given input order.
func trainForest(features [][]float64, labels []int, trees, maxFeatures int, seed int64) *forest {
	n := len(features)
	f := &forest{
		trees:       make([]*node, 0, trees),
		importances: make([]float64, len(features[0])),
	}

	for t := 0; t < trees; t++ {
		rng := rand.New(rand.NewSource(seed + int64(t)))

		indices := make([]int, n)
		for i := range indices {
			indices[i] = rng.Intn(n)
		}

		importances := make([]float64, len(features[0]))
		root := growTree(features, labels, indices, maxFeatures, importances, rng)
		f.trees = append(f.trees, root)

		// Normalize per tree before averaging, so every tree contributes
		// equally regardless of its depth.
		total := 0.0
		for _, imp := range importances {
			total += imp
		}
		if total > 0 {
			for i, imp := range importances {
				f.importances[i] += imp / total
			}
		}
	}

	for i := range f.importances {
		f.importances[i] /= float64(trees)
	}
	return f
}

// predict returns the majority vote across trees
func (f *forest) predict(x []float64) int {
	votes := 0
	for _, root := range f.trees {
		votes += classify(root, x)
	}
	if 2*votes > len(f.trees) {
		return 1
	}
	return 0
}

func classify(n *node, x []float64) int {
	for !n.leaf {
		if x[n.feature] < n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.class
}

// growTree builds a CART tree to purity. Impurity decreases are accumulated
// into importances weighted by the subset share, which yields the
// mean-decrease-impurity measure after normalization.
func growTree(features [][]float64, labels []int, indices []int, maxFeatures int, importances []float64, rng *rand.Rand) *node {
	total := len(indices)

	var grow func(subset []int) *node
	grow = func(subset []int) *node {
		ones := countClass(labels, subset)
		if ones == 0 || ones == len(subset) {
			return &node{leaf: true, class: majority(ones, len(subset))}
		}

		feature, threshold, gain := bestSplit(features, labels, subset, maxFeatures, rng)
		if gain <= 0 {
			return &node{leaf: true, class: majority(ones, len(subset))}
		}

		var left, right []int
		for _, idx := range subset {
			if features[idx][feature] < threshold {
				left = append(left, idx)
			} else {
				right = append(right, idx)
			}
		}

		importances[feature] += float64(len(subset)) / float64(total) * gain

		return &node{
			feature:   feature,
			threshold: threshold,
			left:      grow(left),
			right:     grow(right),
		}
	}

	return grow(indices)
}

// bestSplit scans a random feature subset for the split with the largest
// Gini impurity decrease. Returns a non-positive gain when nothing
// separates the subset.
func bestSplit(features [][]float64, labels []int, subset []int, maxFeatures int, rng *rand.Rand) (int, float64, float64) {
	numFeatures := len(features[0])
	candidates := rng.Perm(numFeatures)
	if maxFeatures < numFeatures {
		candidates = candidates[:maxFeatures]
	}

	n := len(subset)
	totalOnes := countClass(labels, subset)
	parentGini := giniImpurity(totalOnes, n)

	bestFeature, bestThreshold, bestGain := -1, 0.0, 0.0

	values := make([]float64, n)
	order := make([]int, n)
	for _, feature := range candidates {
		for i, idx := range subset {
			values[i] = features[idx][feature]
			order[i] = idx
		}
		sort.Sort(&byFeature{values: values, order: order})

		leftOnes := 0
		for k := 1; k < n; k++ {
			leftOnes += labels[order[k-1]]
			if values[k] == values[k-1] {
				continue
			}

			leftGini := giniImpurity(leftOnes, k)
			rightGini := giniImpurity(totalOnes-leftOnes, n-k)
			weighted := (float64(k)*leftGini + float64(n-k)*rightGini) / float64(n)

			if gain := parentGini - weighted; gain > bestGain {
				bestFeature = feature
				bestThreshold = (values[k-1] + values[k]) / 2
				bestGain = gain
			}
		}
	}

	return bestFeature, bestThreshold, bestGain
}

// byFeature sorts an index slice by its paired feature values
type byFeature struct {
	values []float64
	order  []int
}

func (s *byFeature) Len() int           { return len(s.values) }
func (s *byFeature) Less(i, j int) bool { return s.values[i] < s.values[j] }
func (s *byFeature) Swap(i, j int) {
	s.values[i], s.values[j] = s.values[j], s.values[i]
	s.order[i], s.order[j] = s.order[j], s.order[i]
}

func giniImpurity(ones, n int) float64 {
	if n == 0 {
		return 0
	}
	p := float64(ones) / float64(n)
	return 1 - p*p - (1-p)*(1-p)
}

func countClass(labels []int, subset []int) int {
	ones := 0
	for _, idx := range subset {
		ones += labels[idx]
	}
	return ones
}

func majority(ones, n int) int {
	if 2*ones > n {
		return 1
	}
	return 0
}

// sqrtFeatures is the per-split feature budget, matching the usual
// random-forest default of the square root of the feature count.
func sqrtFeatures(numFeatures int) int {
	s := int(math.Sqrt(float64(numFeatures)))
	if s < 1 {
		return 1
	}
	return s
}
