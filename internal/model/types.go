// Package model defines shared data structures.
package model

import "time"

// Difficulty grades a test.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is a known difficulty.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Test is a timed reference passage.
type Test struct {
	ID              string
	Title           string
	Content         string
	Category        string
	Difficulty      Difficulty
	DurationSeconds int
	CreatedAt       time.Time
}

// Duration returns the configured countdown length.
func (t Test) Duration() time.Duration {
	return time.Duration(t.DurationSeconds) * time.Second
}

// Breakdown is the per-position comparison of typed input against a reference.
type Breakdown struct {
	Correct         int
	Errors          int
	MistypedIndexes []int
}

// Attempted returns the number of characters compared.
func (b Breakdown) Attempted() int {
	return b.Correct + b.Errors
}

// ResultMetrics captures the final scores of one attempt.
type ResultMetrics struct {
	WPM                 int
	CPM                 int
	AccuracyPercent     float64
	MistypedWordsApprox int
	DurationSeconds     int
	MistypedIndexes     []int
}

// Attempt is a stored result.
type Attempt struct {
	ID                  string
	UserID              string
	TestID              string
	WPM                 int
	CPM                 int
	AccuracyPercent     float64
	MistypedWordsApprox int
	DurationSeconds     int
	CompletedAt         time.Time
}

// Credentials identify the user an attempt is saved for.
type Credentials struct {
	UserID string
	Name   string
}

// Authenticated reports whether the credentials carry a user.
func (c Credentials) Authenticated() bool {
	return c.UserID != ""
}

// TakeConfig defines settings for running an attempt.
type TakeConfig struct {
	TickInterval time.Duration
	BurstLimit   int
}

// PracticeConfig defines settings for generated practice passages.
type PracticeConfig struct {
	Words           int
	CapsPct         float64
	PunctPct        float64
	PunctSet        string
	DurationSeconds int
	WordListPath    string
}

// StatsConfig defines filters and options for stats output.
type StatsConfig struct {
	UserID      string
	TestID      string
	Since       *time.Time
	Last        int
	CurveWindow int
}
