// Package task defines what a task is: a named unit of long-running work
// with a schedule descriptor, an opaque config record, and an entry point
// resolved from a static registration table at startup.
package task

import (
	"fmt"
	"sync"

	"taskherd/internal/trigger"
)

// Config is the task-specific configuration record, forwarded to the
// entry point verbatim. The orchestrator never interprets it.
type Config map[string]any

// OutcomeCode classifies how a run ended.
type OutcomeCode int

const (
	// OutcomeCompleted: the work finished on its own.
	OutcomeCompleted OutcomeCode = iota
	// OutcomeCancelled: the entry point observed the stop signal and
	// returned after cleanup.
	OutcomeCancelled
	// OutcomeFailed: the entry point reported an error (or panicked).
	OutcomeFailed
)

func (c OutcomeCode) String() string {
	switch c {
	case OutcomeCompleted:
		return "completed"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(c))
	}
}

// Outcome is the result of a single run.
type Outcome struct {
	Code OutcomeCode
	Err  error
}

func Completed() Outcome { return Outcome{Code: OutcomeCompleted} }
func Cancelled() Outcome { return Outcome{Code: OutcomeCancelled} }
func Failed(err error) Outcome {
	return Outcome{Code: OutcomeFailed, Err: err}
}
func Failf(format string, args ...any) Outcome {
	return Failed(fmt.Errorf(format, args...))
}

// Entrypoint is the one operation a task exposes.
//
// It runs until its work is done or until stop is set, which it must
// observe at bounded intervals (target: once per second) and honor after
// performing its own cleanup. The orchestrator treats it as opaque and
// possibly non-cooperative: it is never forcibly killed, only abandoned.
type Entrypoint func(stop *StopSignal, cfg Config) Outcome

// Entrypoints is the static registration table built in main. Directory
// names (or the descriptor's entry field) resolve against it at
// discovery; there is no runtime code loading.
type Entrypoints map[string]Entrypoint

// Definition binds a discovered task directory to its schedule, config
// and entry point. Built once at startup, never mutated.
type Definition struct {
	Name      string
	Dir       string
	Schedule  *trigger.Descriptor
	Config    Config
	EntryName string
	Entry     Entrypoint
}

// StopSignal is the single piece of state shared between the runtime
// wrapper and a running entry point: a set-once, idempotent stop flag.
// The wrapper writes it, the entry point reads it; no further locking is
// needed.
type StopSignal struct {
	once sync.Once
	ch   chan struct{}
}

func NewStopSignal() *StopSignal {
	return &StopSignal{ch: make(chan struct{})}
}

// Set requests a cooperative stop. Safe to call more than once.
func (s *StopSignal) Set() {
	s.once.Do(func() { close(s.ch) })
}

// IsSet reports whether a stop has been requested.
func (s *StopSignal) IsSet() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}

// Done returns a channel closed once a stop has been requested, for entry
// points that want to select on it.
func (s *StopSignal) Done() <-chan struct{} { return s.ch }
