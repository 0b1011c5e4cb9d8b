package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/typekaro/internal/config"
	"github.com/verte-zerg/typekaro/internal/model"
)

func TestValidatePracticeConfig(t *testing.T) {
	valid := model.PracticeConfig{Words: 10, CapsPct: 0.5, PunctPct: 0.5, PunctSet: ".,", DurationSeconds: 60}
	if err := validatePracticeConfig(valid); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*model.PracticeConfig)
		want   string
	}{
		{"words", func(c *model.PracticeConfig) { c.Words = 0 }, "--words"},
		{"caps", func(c *model.PracticeConfig) { c.CapsPct = 1.5 }, "--caps"},
		{"punct", func(c *model.PracticeConfig) { c.PunctPct = -0.1 }, "--punct"},
		{"punct set", func(c *model.PracticeConfig) { c.PunctSet = "" }, "--punct-set"},
		{"duration", func(c *model.PracticeConfig) { c.DurationSeconds = 0 }, "--duration must be > 0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)
			err := validatePracticeConfig(cfg)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q error, got %v", tc.want, err)
			}
		})
	}
}

func TestValidateTakeConfig(t *testing.T) {
	if err := validateTakeConfig(model.TakeConfig{TickInterval: time.Second, BurstLimit: 1}); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
	if err := validateTakeConfig(model.TakeConfig{TickInterval: 0, BurstLimit: 1}); err == nil {
		t.Fatalf("expected tick error")
	}
	if err := validateTakeConfig(model.TakeConfig{TickInterval: time.Second}); err == nil {
		t.Fatalf("expected burst limit error")
	}
}

func TestApplyConfigRespectsFlags(t *testing.T) {
	var words int
	cmd := &cobra.Command{Use: "x"}
	cmd.Flags().IntVar(&words, "words", 5, "")
	fromFile := 40

	applyIntConfig(cmd, "words", &words, &fromFile)
	if words != 40 {
		t.Fatalf("expected config value, got %d", words)
	}

	if err := cmd.Flags().Set("words", "7"); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	applyIntConfig(cmd, "words", &words, &fromFile)
	if words != 7 {
		t.Fatalf("expected flag to win, got %d", words)
	}
	applyIntConfig(cmd, "words", &words, nil)
	if words != 7 {
		t.Fatalf("expected nil config to be ignored")
	}
}

func TestDefaultConfigTemplateDecodes(t *testing.T) {
	tmpl := defaultConfigTemplate()
	for _, want := range []string{"[user]", "[take]", "[practice]", "tick-ms", "duration"} {
		if !strings.Contains(tmpl, want) {
			t.Fatalf("template missing %q", want)
		}
	}
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(tmpl), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("expected template to decode, got %v", err)
	}
	if cfg.User.ID != nil || cfg.Take.TickMs != nil {
		t.Fatalf("expected commented template to set nothing, got %+v", cfg)
	}
}

func TestParseSince(t *testing.T) {
	got, err := parseSince("2026-01-02")
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	if want := time.Date(2026, 1, 2, 0, 0, 0, 0, time.Local); !got.Equal(want) {
		t.Fatalf("parseSince = %v, want %v", got, want)
	}

	rel, err := parseSince("3 days ago")
	if err != nil {
		t.Fatalf("parse relative: %v", err)
	}
	if !rel.Before(time.Now()) {
		t.Fatalf("expected a past time, got %v", rel)
	}
}
