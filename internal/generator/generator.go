// Package generator builds practice passages.
package generator

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
	"unicode"

	"github.com/verte-zerg/typekaro/internal/model"
)

// PracticeTestID is the test id attempts at generated passages are saved under.
const PracticeTestID = "practice"

// Generator produces randomized typing text.
type Generator struct {
	rnd *rand.Rand
	now func() time.Time
}

// New returns a Generator seeded with the current time.
func New() *Generator {
	return NewWithSeed(time.Now().UnixNano())
}

// NewWithSeed returns a deterministic Generator.
func NewWithSeed(seed int64) *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(seed)), now: time.Now}
}

// Generate selects words uniformly and applies caps/punctuation rules.
func (g *Generator) Generate(words []string, count int, capsPct, punctPct float64, punctSet []rune) []string {
	result := make([]string, 0, count)
	if len(words) == 0 {
		return result
	}
	for i := 0; i < count; i++ {
		word := words[g.rnd.Intn(len(words))]
		word = applyCaps(g.rnd, word, capsPct)
		word = applyPunct(g.rnd, word, punctPct, punctSet)
		result = append(result, word)
	}
	return result
}

// PracticeTest builds an ad-hoc test from a word list.
func (g *Generator) PracticeTest(words []string, cfg model.PracticeConfig) (model.Test, error) {
	if len(words) == 0 {
		return model.Test{}, fmt.Errorf("word list is empty")
	}
	if cfg.Words <= 0 {
		return model.Test{}, fmt.Errorf("word count must be > 0")
	}
	passage := g.Generate(words, cfg.Words, cfg.CapsPct, cfg.PunctPct, []rune(cfg.PunctSet))
	return model.Test{
		ID:              PracticeTestID,
		Title:           fmt.Sprintf("Practice - %d words", cfg.Words),
		Content:         strings.Join(passage, " "),
		Category:        "Practice",
		Difficulty:      difficultyFor(cfg),
		DurationSeconds: cfg.DurationSeconds,
		CreatedAt:       g.now(),
	}, nil
}

func difficultyFor(cfg model.PracticeConfig) model.Difficulty {
	switch mix := cfg.CapsPct + cfg.PunctPct; {
	case mix >= 1:
		return model.DifficultyHard
	case mix > 0:
		return model.DifficultyMedium
	default:
		return model.DifficultyEasy
	}
}

func applyCaps(rnd *rand.Rand, word string, capsPct float64) string {
	if capsPct <= 0 {
		return word
	}
	if rnd.Float64() > capsPct {
		return word
	}
	runes := []rune(word)
	if len(runes) == 0 {
		return word
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func applyPunct(rnd *rand.Rand, word string, punctPct float64, punctSet []rune) string {
	if punctPct <= 0 || len(punctSet) == 0 {
		return word
	}
	if rnd.Float64() > punctPct {
		return word
	}
	punct := punctSet[rnd.Intn(len(punctSet))]
	return word + string(punct)
}
