// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	User     UserConfig     `toml:"user"`
	Take     TakeConfig     `toml:"take"`
	Practice PracticeConfig `toml:"practice"`
}

// UserConfig identifies who attempts are saved for.
type UserConfig struct {
	ID   *string `toml:"id"`
	Name *string `toml:"name"`
}

// TakeConfig maps attempt settings.
type TakeConfig struct {
	TickMs     *int `toml:"tick-ms"`
	BurstLimit *int `toml:"burst-limit"`
}

// PracticeConfig maps practice-related settings.
type PracticeConfig struct {
	Words    *int     `toml:"words"`
	CapsPct  *float64 `toml:"caps"`
	PunctPct *float64 `toml:"punct"`
	PunctSet *string  `toml:"punct-set"`
	Duration *int     `toml:"duration"`
	WordList *string  `toml:"wordlist"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}
