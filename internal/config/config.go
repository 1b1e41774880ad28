// Package config loads the ralph-tui JSONC configuration file (spec §9):
// engine budgets and retry policy, interrupt debounce window, lock
// behavior, and the gateway's host/port, following the same
// load-defaults-apply shape as the teacher's internal/config package.
package config

// Config is the root configuration for a ralph-tui run.
type Config struct {
	Engine    EngineConfig    `json:"engine"`
	Interrupt InterruptConfig `json:"interrupt"`
	Lock      LockConfig      `json:"lock"`
	Gateway   GatewayConfig   `json:"gateway"`
	Schedule  ScheduleConfig  `json:"schedule"`
}

// RetryConfig mirrors spec §4.7's retry policy shape.
type RetryConfig struct {
	MaxAttempts    int   `json:"max_attempts"`
	InitialDelayMS int64 `json:"initial_delay_ms"`
	BackoffCapMS   int64 `json:"backoff_cap_ms"`
}

// EngineConfig holds the Execution Engine's budget and pacing parameters
// (spec §4.7).
type EngineConfig struct {
	MaxIterations    int         `json:"max_iterations"` // 0 = unbounded
	IterationDelayMS int64       `json:"iteration_delay_ms"`
	AgentTimeoutMS   int64       `json:"agent_timeout_ms"`
	GraceWindowMS    int64       `json:"grace_window_ms"`
	Retry            RetryConfig `json:"retry"`
}

// InterruptConfig holds the Interrupt Coordinator's debounce window
// (spec §4.4).
type InterruptConfig struct {
	DoublePressWindowMS int64 `json:"double_press_window_ms"`
	Interactive         *bool `json:"interactive,omitempty"` // default: true
}

// IsInteractive reports whether the confirm dialog is enabled (default
// true; headless runs set this false).
func (c InterruptConfig) IsInteractive() bool {
	if c.Interactive == nil {
		return true
	}
	return *c.Interactive
}

// LockConfig holds Lock Manager behavior overrides.
type LockConfig struct {
	Force          bool `json:"force"`
	NonInteractive bool `json:"non_interactive"`
}

// GatewayConfig configures the optional HTTP/WebSocket observer gateway
// (spec §10 domain stack).
type GatewayConfig struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
}

// ScheduleConfig configures the optional cron-driven run scheduler
// (spec §10 domain stack).
type ScheduleConfig struct {
	Enabled bool   `json:"enabled"`
	Cron    string `json:"cron"`
}

// applyDefaults fills in zero-value fields with sensible defaults, the same
// role the teacher's applyDefaults plays for its own Config.
func applyDefaults(cfg *Config) {
	if cfg.Engine.AgentTimeoutMS == 0 {
		cfg.Engine.AgentTimeoutMS = 10 * 60 * 1000
	}
	if cfg.Engine.GraceWindowMS == 0 {
		cfg.Engine.GraceWindowMS = 5000
	}
	if cfg.Engine.Retry.MaxAttempts == 0 {
		cfg.Engine.Retry.MaxAttempts = 3
	}
	if cfg.Engine.Retry.InitialDelayMS == 0 {
		cfg.Engine.Retry.InitialDelayMS = 1000
	}
	if cfg.Engine.Retry.BackoffCapMS == 0 {
		cfg.Engine.Retry.BackoffCapMS = 30_000
	}
	if cfg.Interrupt.DoublePressWindowMS == 0 {
		cfg.Interrupt.DoublePressWindowMS = 1000
	}
	if cfg.Gateway.Host == "" {
		cfg.Gateway.Host = "127.0.0.1"
	}
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = 18420
	}
}
