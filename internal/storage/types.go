package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free file backend (jsonl)
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// RunRecord records one finished task run.
// Keep it compact and schema-stable.
type RunRecord struct {
	Task      string    `json:"task"`
	StartedAt time.Time `json:"started_at"`
	TookMS    int64     `json:"took_ms"`
	Outcome   string    `json:"outcome"`
	Reason    string    `json:"reason,omitempty"`
	Error     string    `json:"error,omitempty"`
}
