// Package catalog provides the built-in tests and test-pack import.
package catalog

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/verte-zerg/typekaro/internal/model"
)

// Upserter stores tests.
type Upserter interface {
	UpsertTest(ctx context.Context, t model.Test) error
	CountTests(ctx context.Context) (int, error)
}

// Seed returns the built-in tests.
func Seed() []model.Test {
	return []model.Test{
		{
			ID:              "1",
			Title:           "Basic SCI JCA Test - Regulations Summary",
			Content:         "The Financial Conduct Authority (FCA) regulates the financial services industry in the UK. Its role includes protecting consumers, keeping the industry stable, and promoting healthy competition between financial service providers. The FCA has the power to regulate conduct related to the marketing of financial products.",
			Category:        "Regulations",
			Difficulty:      model.DifficultyEasy,
			DurationSeconds: 180,
			CreatedAt:       time.Date(2023, 1, 15, 10, 30, 0, 0, time.UTC),
		},
		{
			ID:              "2",
			Title:           "Intermediate SCI JCA Test - Financial Concepts",
			Content:         "Investment products can be classified according to their risk profile and expected returns. Bonds typically offer lower risk and lower returns compared to equities. Investment funds can contain a mixture of different asset classes, providing diversification benefits to investors. The correlation between assets in a portfolio is an important consideration for risk management.",
			Category:        "Financial Concepts",
			Difficulty:      model.DifficultyMedium,
			DurationSeconds: 300,
			CreatedAt:       time.Date(2023, 2, 20, 14, 45, 0, 0, time.UTC),
		},
		{
			ID:              "3",
			Title:           "Advanced SCI JCA Test - Legal Documentation",
			Content:         "When preparing legal documentation for financial products, it is essential to ensure compliance with all relevant regulations and guidelines. The documentation should clearly disclose all material information that could influence an investor's decision. Risk factors must be prominently displayed and explained in plain language that can be understood by the target investor audience. The terms and conditions must not contain unfair or misleading clauses.",
			Category:        "Legal",
			Difficulty:      model.DifficultyHard,
			DurationSeconds: 600,
			CreatedAt:       time.Date(2023, 3, 10, 9, 15, 0, 0, time.UTC),
		},
	}
}

// EnsureSeeded stores the built-in tests when the catalog is empty. It
// returns the number of tests added.
func EnsureSeeded(ctx context.Context, st Upserter) (int, error) {
	n, err := st.CountTests(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count tests: %w", err)
	}
	if n > 0 {
		return 0, nil
	}
	seed := Seed()
	for _, t := range seed {
		if err := st.UpsertTest(ctx, t); err != nil {
			return 0, fmt.Errorf("failed to seed test %s: %w", t.ID, err)
		}
	}
	return len(seed), nil
}

// Pack is the YAML test-pack file format.
type Pack struct {
	Tests []PackTest `yaml:"tests"`
}

// PackTest is one test in a pack.
type PackTest struct {
	ID         string `yaml:"id"`
	Title      string `yaml:"title"`
	Content    string `yaml:"content"`
	Category   string `yaml:"category"`
	Difficulty string `yaml:"difficulty"`
	Duration   int    `yaml:"duration"`
}

// LoadPack reads and validates a YAML test pack.
func LoadPack(path string) ([]model.Test, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read test pack: %w", err)
	}
	return ParsePack(data)
}

// ParsePack decodes and validates YAML test-pack data.
func ParsePack(data []byte) ([]model.Test, error) {
	var pack Pack
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("failed to decode test pack: %w", err)
	}
	if len(pack.Tests) == 0 {
		return nil, fmt.Errorf("test pack has no tests")
	}
	seen := map[string]struct{}{}
	tests := make([]model.Test, 0, len(pack.Tests))
	for i, pt := range pack.Tests {
		t := model.Test{
			ID:              strings.TrimSpace(pt.ID),
			Title:           strings.TrimSpace(pt.Title),
			Content:         strings.TrimSpace(pt.Content),
			Category:        strings.TrimSpace(pt.Category),
			Difficulty:      model.Difficulty(strings.ToLower(strings.TrimSpace(pt.Difficulty))),
			DurationSeconds: pt.Duration,
		}
		if err := Validate(t); err != nil {
			return nil, fmt.Errorf("test %d: %w", i+1, err)
		}
		if _, ok := seen[t.ID]; ok {
			return nil, fmt.Errorf("test %d: duplicate id %q", i+1, t.ID)
		}
		seen[t.ID] = struct{}{}
		tests = append(tests, t)
	}
	return tests, nil
}

// Validate checks that a test can be attempted.
func Validate(t model.Test) error {
	if t.ID == "" {
		return fmt.Errorf("id must not be empty")
	}
	if t.Title == "" {
		return fmt.Errorf("title must not be empty")
	}
	if t.Content == "" {
		return fmt.Errorf("content must not be empty")
	}
	if !t.Difficulty.Valid() {
		return fmt.Errorf("difficulty must be easy, medium or hard (got %q)", t.Difficulty)
	}
	if t.DurationSeconds <= 0 {
		return fmt.Errorf("duration must be > 0")
	}
	return nil
}

// Import validates the pack at path and stores its tests.
func Import(ctx context.Context, st Upserter, path string) ([]model.Test, error) {
	tests, err := LoadPack(path)
	if err != nil {
		return nil, err
	}
	for _, t := range tests {
		if err := st.UpsertTest(ctx, t); err != nil {
			return nil, fmt.Errorf("failed to store test %s: %w", t.ID, err)
		}
	}
	return tests, nil
}
