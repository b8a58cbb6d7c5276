// Package orchestrator runs the scheduling loop: a fixed-cadence tick
// that scans termination markers, consults the trigger evaluator for
// idle tasks and advances the runtime state machine of active ones.
package orchestrator

import (
	"context"
	"time"

	"taskherd/internal/runner"
	"taskherd/internal/task"
	"taskherd/internal/trigger"
	logx "taskherd/pkg/logx"
)

// Orchestrator owns the registry of runners and the loop that drives
// them. Registry order is dispatch order and is fixed at startup.
type Orchestrator struct {
	root    string
	tick    time.Duration
	grace   time.Duration
	log     logx.Logger
	runners []*runner.Runner
	names   []string

	// now is swapped out by tests.
	now func() time.Time
}

func New(root string, tick, grace time.Duration, defs []*task.Definition, log logx.Logger) *Orchestrator {
	o := &Orchestrator{
		root:  root,
		tick:  tick,
		grace: grace,
		log:   log,
		now:   time.Now,
	}
	for _, def := range defs {
		o.runners = append(o.runners, runner.New(def, grace, log))
		o.names = append(o.names, def.Name)
	}
	return o
}

// Runners exposes the registry, in dispatch order.
func (o *Orchestrator) Runners() []*runner.Runner { return o.runners }

// ScanMarkers probes the termination markers once. The loop calls it
// every tick; the one-shot debug path calls it so markers keep working
// outside the loop as well.
func (o *Orchestrator) ScanMarkers() TermScan { return scanMarkers(o.root, o.names) }

// SetOnFinish installs the run-record sink on every runner.
func (o *Orchestrator) SetOnFinish(fn func(runner.Record)) {
	for _, r := range o.runners {
		r.OnFinish = fn
	}
}

// Run drives the loop until ctx is cancelled, then performs the
// cooperative shutdown: every active task gets the stop signal and one
// shared grace window to confirm.
func (o *Orchestrator) Run(ctx context.Context) error {
	AuditMarkers(o.root, o.log)
	o.log.Info("scheduling loop started",
		logx.Int("tasks", len(o.runners)), logx.Duration("tick", o.tick))

	ticker := time.NewTicker(o.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.shutdown()
			return ctx.Err()
		case <-ticker.C:
			o.Step(o.now())
		}
	}
}

// Step is one pass over the registry at instant now. Exported so tests
// (and the one-shot debug path) can drive the loop with a synthetic
// clock.
func (o *Orchestrator) Step(now time.Time) {
	scan := o.ScanMarkers()
	for _, r := range o.runners {
		def := r.Definition()
		switch {
		case r.Active():
			r.Tick(now, scan.Requested(def.Name))
		case r.Phase() == runner.PhaseIdle:
			if fire, reason := trigger.ShouldFire(def.Schedule, now, r.Memory()); fire {
				r.Start(now, reason)
			}
		}
	}
}

// shutdown requests a stop from every active task first, then waits for
// all of them against one shared deadline so total shutdown time stays
// bounded by a single grace period.
func (o *Orchestrator) shutdown() {
	now := o.now()
	active := 0
	for _, r := range o.runners {
		if r.Phase() == runner.PhaseRunning {
			r.RequestCancel(now, runner.CauseShutdown)
		}
		if r.Phase() == runner.PhaseCancelRequested {
			active++
		}
	}
	o.log.Info("scheduling loop stopping", logx.Int("active", active))

	deadline := now.Add(o.grace)
	for _, r := range o.runners {
		r.AwaitStop(deadline)
	}
	o.log.Info("scheduling loop stopped")
}
