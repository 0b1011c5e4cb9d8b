package stats

import (
	"context"

	"github.com/verte-zerg/typekaro/internal/model"
)

// Source loads tests and attempts.
type Source interface {
	ListTests(ctx context.Context) ([]model.Test, error)
	ListAttempts(ctx context.Context, cfg model.StatsConfig) ([]model.Attempt, error)
}

// Report contains precomputed data for stats rendering.
type Report struct {
	Attempts []model.Attempt
	Titles   map[string]string
	Best     map[string]model.Attempt
}

// BuildReport loads and prepares data for stats rendering.
func BuildReport(ctx context.Context, src Source, cfg model.StatsConfig) (Report, error) {
	attempts, err := src.ListAttempts(ctx, cfg)
	if err != nil {
		return Report{}, err
	}
	if cfg.Last > 0 && len(attempts) > cfg.Last {
		attempts = attempts[len(attempts)-cfg.Last:]
	}
	tests, err := src.ListTests(ctx)
	if err != nil {
		return Report{}, err
	}
	titles := make(map[string]string, len(tests))
	for _, t := range tests {
		titles[t.ID] = t.Title
	}
	return Report{
		Attempts: attempts,
		Titles:   titles,
		Best:     bestByTest(attempts),
	}, nil
}

func bestByTest(attempts []model.Attempt) map[string]model.Attempt {
	best := map[string]model.Attempt{}
	for _, a := range attempts {
		if cur, ok := best[a.TestID]; !ok || a.WPM > cur.WPM {
			best[a.TestID] = a
		}
	}
	return best
}
