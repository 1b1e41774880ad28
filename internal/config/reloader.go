package config

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Reloader provides hot config reload. Current is a lock-free atomic read,
// so a reader polling it between iterations never waits on a reload;
// Reload itself is serialized so two concurrent reloads never interleave
// their .env + config.jsonc reads.
type Reloader struct {
	configPath string
	dotenvPath string
	current    atomic.Pointer[Config]
	mu         sync.Mutex // serializes Reload
	listeners  []func(*Config)
}

// NewReloader creates a Reloader seeded with initial, the Config built at
// process start by config.Load.
func NewReloader(configPath, dotenvPath string, initial *Config) *Reloader {
	r := &Reloader{
		configPath: configPath,
		dotenvPath: dotenvPath,
	}
	r.current.Store(initial)
	return r
}

// Current returns the live Config (lock-free atomic read), safe to call
// from the Engine's loop goroutine between iterations.
func (r *Reloader) Current() *Config {
	return r.current.Load()
}

// OnReload registers fn to run after every successful Reload, e.g. the
// gateway server restarting its listener when GatewayConfig's host or port
// changed.
func (r *Reloader) OnReload(fn func(*Config)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Reload re-reads the .env file in override mode (so an edited value takes
// effect immediately, unlike the first-load LoadDotenv semantics) and the
// config file, swaps Current atomically, and notifies listeners. A failed
// reload leaves the previous Config live: a bad edit to config.jsonc never
// interrupts an Engine mid-loop.
func (r *Reloader) Reload() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ReloadDotenv(r.dotenvPath); err != nil {
		return fmt.Errorf("reload dotenv: %w", err)
	}

	cfg, err := Load(r.configPath)
	if err != nil {
		return fmt.Errorf("reload config: %w", err)
	}

	r.current.Store(cfg)
	slog.Info("config reloaded",
		"max_iterations", cfg.Engine.MaxIterations,
		"retry_max_attempts", cfg.Engine.Retry.MaxAttempts,
		"lock_force", cfg.Lock.Force,
		"gateway_enabled", cfg.Gateway.Enabled,
	)

	for _, fn := range r.listeners {
		fn(cfg)
	}
	return nil
}
