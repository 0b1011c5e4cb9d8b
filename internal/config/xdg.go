package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

const appName = "typekaro"

// DefaultWordListPath returns the default word list for practice passages.
func DefaultWordListPath() string {
	return filepath.Join(xdg.ConfigHome, appName, "wordlist.txt")
}

// DefaultDBPath returns the default path for the SQLite database.
func DefaultDBPath() string {
	return filepath.Join(xdg.DataHome, appName, appName+".db")
}

// DefaultConfigPath returns the default TOML config path.
func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, appName, "config.toml")
}
