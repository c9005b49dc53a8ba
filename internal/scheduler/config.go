package scheduler

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config controls scheduler pacing. The zero value runs every job once
// a minute in modest batches.
type Config struct {
	RunInterval time.Duration
	BatchSize   int

	// EnabledJobs empty means every job runs (monolith mode). A
	// non-empty list restricts the loop to the named jobs.
	EnabledJobs []string

	// Disabled skips the embedded run loop, for deployments that run
	// the scheduler as its own process next to the API nodes.
	Disabled bool
}

func DefaultConfig() Config {
	return Config{
		RunInterval: time.Minute,
		BatchSize:   50,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	return c
}

// ProvideConfig reads scheduler settings from the environment. Bad
// values fall back to defaults rather than failing startup.
func ProvideConfig() Config {
	cfg := DefaultConfig()
	if raw := os.Getenv("SCHEDULER_RUN_INTERVAL"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			cfg.RunInterval = d
		}
	}
	if raw := os.Getenv("SCHEDULER_BATCH_SIZE"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			cfg.BatchSize = n
		}
	}
	if raw := os.Getenv("SCHEDULER_ENABLED_JOBS"); raw != "" {
		for _, job := range strings.Split(raw, ",") {
			if job = strings.TrimSpace(job); job != "" {
				cfg.EnabledJobs = append(cfg.EnabledJobs, job)
			}
		}
	}
	if raw := os.Getenv("SCHEDULER_DISABLED"); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			cfg.Disabled = v
		}
	}
	return cfg
}
