// Package config loads cq's environment-variable defaults, the way this
// file used to load MORFX_-prefixed settings: CLI flags always take
// precedence, these are just the fallback defaults when a flag isn't
// given.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds cq's environment-derived defaults.
type Config struct {
	BeforeContext int
	AfterContext  int
	HistoryDB     string
	ForceColor    bool
}

// Load reads a .env file in the working directory if one exists (errors
// loading it are ignored), then builds a Config from CQ_-prefixed
// environment variables, falling back to sane defaults.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		BeforeContext: 5,
		AfterContext:  5,
		HistoryDB:     defaultHistoryDB(),
		ForceColor:    false,
	}

	if v := os.Getenv("CQ_BEFORE_CONTEXT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.BeforeContext = n
		}
	}
	if v := os.Getenv("CQ_AFTER_CONTEXT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.AfterContext = n
		}
	}
	if v := os.Getenv("CQ_HISTORY_DB"); v != "" {
		cfg.HistoryDB = v
	}
	if v := os.Getenv("CQ_FORCE_COLOR"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.ForceColor = b
		}
	}

	return cfg
}

func defaultHistoryDB() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		return ".cq/history.db"
	}
	return dir + "/.cq/history.db"
}
