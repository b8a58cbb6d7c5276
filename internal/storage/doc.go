package storage

// Package storage persists the run history: one record per finished (or
// abandoned) task run. Scheduling never reads it back; it exists for
// operators and the debug tooling.
//
// It currently supports:
//   - "file": dependency-free JSON Lines backend
//   - "sqlite": SQLite database file (optional build tag)
