// Package classifier checks whether upcoming instarugs are predictable from
// recent game outcomes. A fair game gives a sequence model no edge over the
// majority-class guess; a model that beats that baseline by a clear margin
// is evidence of exploitable structure.
package classifier

import (
	"fmt"

	"github.com/seedprobe/seedprobe/internal/game"
)

// featuresPerGame is the per-game slice of a window vector: peak
// multiplier, final tick, instarug flag and duration in seconds.
const featuresPerGame = 4

// featureNames labels the flattened window vector positions
func featureNames(windowSize int) []string {
	names := make([]string, 0, windowSize*featuresPerGame)
	for i := 0; i < windowSize; i++ {
		names = append(names,
			fmt.Sprintf("game_%d_peak", i),
			fmt.Sprintf("game_%d_ticks", i),
			fmt.Sprintf("game_%d_instarug", i),
			fmt.Sprintf("game_%d_duration", i),
		)
	}
	return names
}

// buildWindows slides a window over the records in collection order. Each
// vector holds the window's games oldest first; the label is whether the
// game immediately after the window instarugged.
func buildWindows(records []game.Record, windowSize int) ([][]float64, []int) {
	if len(records) <= windowSize {
		return nil, nil
	}

	features := make([][]float64, 0, len(records)-windowSize)
	labels := make([]int, 0, len(records)-windowSize)

	for i := windowSize; i < len(records); i++ {
		vector := make([]float64, 0, windowSize*featuresPerGame)
		for j := i - windowSize; j < i; j++ {
			rec := &records[j]

			instarug := 0.0
			if rec.Instarug {
				instarug = 1
			}
			vector = append(vector,
				rec.PeakMultiplier,
				float64(rec.FinalTick),
				instarug,
				rec.Duration().Seconds(),
			)
		}

		features = append(features, vector)
		label := 0
		if records[i].Instarug {
			label = 1
		}
		labels = append(labels, label)
	}

	return features, labels
}
