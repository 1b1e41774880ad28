package config

import (
	"os"
	"path/filepath"
)

// RalphTUIPath returns the root directory for ralph-tui's own data
// (distinct from the per-working-directory .ralph-tui session directory).
// It uses $RALPH_TUI_PATH if set, otherwise defaults to ~/.ralph-tui-global.
func RalphTUIPath() string {
	if v := os.Getenv("RALPH_TUI_PATH"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".ralph-tui-global")
	}
	return filepath.Join(home, ".ralph-tui-global")
}

// ConfigPath returns the path to the ralph-tui config file.
func ConfigPath() string {
	return filepath.Join(RalphTUIPath(), "config.jsonc")
}

// DotenvPath returns the path to the ralph-tui .env file.
func DotenvPath() string {
	return filepath.Join(RalphTUIPath(), ".env")
}
