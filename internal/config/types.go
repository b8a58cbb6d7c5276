package config

import "time"

// Config is the orchestrator's own configuration. Task schedules live in
// the task directories, not here; this file only controls the process.
type Config struct {
	Orchestrator OrchestratorConfig `json:"orchestrator"`
	Logging      LoggingConfig      `json:"logging"`
	Telegram     *TelegramConfig    `json:"telegram,omitempty"`
	Storage      *StorageConfig     `json:"storage,omitempty"`
}

// OrchestratorConfig controls the scheduling loop.
//
// All durations are Go duration strings (e.g. "500ms", "5s").
//
// Defaults (when fields are omitted/zero):
//   - tick_interval: "1s"
//   - grace_period: "5s"
type OrchestratorConfig struct {
	// TasksRoot is the directory scanned for task subdirectories at startup.
	// The -tasks flag overrides it.
	TasksRoot string `json:"tasks_root,omitempty"`

	TickInterval string `json:"tick_interval,omitempty"`
	GracePeriod  string `json:"grace_period,omitempty"`
}

type LoggingConfig struct {
	Level   string       `json:"level"`
	Console bool         `json:"console"`
	File    LoggingFile  `json:"file"`
	Alert   LoggingAlert `json:"alert"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingAlert forwards warn+ log records to the notifier (when one is
// configured), rate limited.
type LoggingAlert struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// TelegramConfig configures the outbound alert notifier. There is no
// inbound command surface; the bot only pushes operational events.
type TelegramConfig struct {
	Token  string `json:"token"`
	ChatID int64  `json:"chat_id"`
}

// StorageConfig controls the optional run-history store.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./taskherd_store" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

const (
	DefaultTickInterval = time.Second
	DefaultGracePeriod  = 5 * time.Second
)

// TickInterval resolves the configured tick interval or the default.
func (o OrchestratorConfig) Tick() (time.Duration, error) {
	return ParseDurationOrDefault("orchestrator.tick_interval", o.TickInterval, DefaultTickInterval)
}

// Grace resolves the configured grace period or the default.
func (o OrchestratorConfig) Grace() (time.Duration, error) {
	return ParseDurationOrDefault("orchestrator.grace_period", o.GracePeriod, DefaultGracePeriod)
}
