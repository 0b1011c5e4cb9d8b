package engine

import (
	"math"
	"strings"

	"github.com/verte-zerg/typekaro/internal/model"
)

// minElapsedMinutes replaces a zero or negative elapsed time.
const minElapsedMinutes = 1.0 / 60.0

// charsPerMistypedWord is the divisor of the mistyped-word estimate.
const charsPerMistypedWord = 5

// MetricsInput holds everything Calculate needs.
type MetricsInput struct {
	ElapsedSeconds float64
	Reference      string
	Breakdown      model.Breakdown
	// Progress is len(typed)/len(reference).
	Progress float64
}

// Calculate derives the final result of an attempt.
func Calculate(in MetricsInput) model.ResultMetrics {
	elapsed := math.Max(0, in.ElapsedSeconds)
	minutes := elapsed / 60
	if minutes <= 0 {
		minutes = minElapsedMinutes
	}
	words := len(strings.Fields(in.Reference))

	accuracy := 100.0
	if attempted := in.Breakdown.Attempted(); attempted > 0 {
		accuracy = float64(in.Breakdown.Correct) / float64(attempted) * 100
	}
	accuracy = math.Max(0, math.Min(100, accuracy))

	indexes := make([]int, len(in.Breakdown.MistypedIndexes))
	copy(indexes, in.Breakdown.MistypedIndexes)

	return model.ResultMetrics{
		WPM:             int(math.Round(float64(words) * in.Progress / minutes)),
		CPM:             int(math.Round(float64(in.Breakdown.Correct) / minutes)),
		AccuracyPercent: accuracy,
		// Approximation: errors are not mapped to word boundaries.
		MistypedWordsApprox: (in.Breakdown.Errors + charsPerMistypedWord - 1) / charsPerMistypedWord,
		DurationSeconds:     int(math.Round(elapsed)),
		MistypedIndexes:     indexes,
	}
}
