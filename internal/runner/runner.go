// Package runner owns one task's runtime lifecycle: it launches the entry
// point in its own goroutine, polls it for completion, forwards external
// termination requests and the duration budget as a cooperative stop
// signal, and enforces a bounded graceful shutdown.
package runner

import (
	"runtime/debug"
	"time"

	"taskherd/internal/task"
	"taskherd/internal/trigger"
	logx "taskherd/pkg/logx"
)

// Phase of the per-task state machine.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRunning
	PhaseCancelRequested
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRunning:
		return "running"
	case PhaseCancelRequested:
		return "cancel-requested"
	case PhaseStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Cause of a cancellation request.
type Cause string

const (
	CauseMarker   Cause = "terminate-marker"
	CauseDeadline Cause = "max-duration"
	CauseShutdown Cause = "shutdown"
)

// Record summarizes one finished run. It feeds the run history store and
// failure notifications; scheduling never reads it back.
type Record struct {
	Task      string
	StartedAt time.Time
	Duration  time.Duration
	Outcome   string // completed | cancelled | failed | abandoned
	Reason    string // what fired the run (schedule/cron/repeat/continuous/manual)
	Err       error
}

// Runner drives one task. All methods are called from the scheduling
// loop's goroutine only; the entry point goroutine communicates back
// solely through the outcome channel.
type Runner struct {
	def   *task.Definition
	log   logx.Logger
	grace time.Duration

	// OnFinish, when set, is invoked for every finished (or abandoned)
	// run, from the loop goroutine.
	OnFinish func(Record)

	phase Phase
	mem   trigger.Memory

	runStartedAt time.Time
	startReason  trigger.Reason
	cancelAt     time.Time
	stop         *task.StopSignal
	done         chan task.Outcome
}

func New(def *task.Definition, grace time.Duration, log logx.Logger) *Runner {
	return &Runner{
		def:   def,
		grace: grace,
		log:   log.With(logx.String("task", def.Name)),
		phase: PhaseIdle,
	}
}

func (r *Runner) Definition() *task.Definition { return r.def }
func (r *Runner) Phase() Phase                 { return r.phase }

// Memory exposes the trigger-visible slice of runtime state.
func (r *Runner) Memory() trigger.Memory { return r.mem }

// Active reports whether an execution unit may be running (Running or
// CancelRequested). While active, the trigger evaluator is not consulted:
// at most one execution unit per task.
func (r *Runner) Active() bool {
	return r.phase == PhaseRunning || r.phase == PhaseCancelRequested
}

// Start launches a new run. Caller must ensure the phase is Idle.
func (r *Runner) Start(now time.Time, reason trigger.Reason) {
	if r.phase != PhaseIdle {
		return
	}
	// Fresh signal per run: the stop flag is single-use.
	r.stop = task.NewStopSignal()
	r.done = make(chan task.Outcome, 1)
	r.runStartedAt = now
	r.startReason = reason
	r.mem.EverRan = true
	r.mem.LastFired = now
	r.phase = PhaseRunning

	entry, cfg, stop, done := r.def.Entry, r.def.Config, r.stop, r.done
	log := r.log
	go func() {
		defer func() {
			if p := recover(); p != nil {
				log.Error("entry point panicked",
					logx.Any("panic", p), logx.Stack(string(debug.Stack())))
				done <- task.Failf("panic: %v", p)
			}
		}()
		done <- entry(stop, cfg)
	}()

	r.log.Info("task started",
		logx.String("reason", string(reason)),
		logx.Duration("max_duration", r.def.Schedule.MaxDuration))
}

// Tick advances the state machine by one non-blocking monitoring step
// (except for the bounded grace wait after a cancellation request).
// termRequested reports whether an external termination marker targets
// this task on this tick.
func (r *Runner) Tick(now time.Time, termRequested bool) {
	switch r.phase {
	case PhaseRunning:
		// 1. Completion?
		select {
		case out := <-r.done:
			r.finish(now, out)
			return
		default:
		}
		// 2. External termination request?
		if termRequested {
			r.RequestCancel(now, CauseMarker)
			r.AwaitStop(now.Add(r.grace))
			return
		}
		// 3. Duration budget?
		if max := r.def.Schedule.MaxDuration; max > 0 && now.Sub(r.runStartedAt) > max {
			r.RequestCancel(now, CauseDeadline)
			r.AwaitStop(now.Add(r.grace))
			return
		}
	case PhaseCancelRequested:
		// Normally resolved in the tick that requested it; this arm only
		// runs when a shutdown-style RequestCancel was left pending.
		r.AwaitStop(r.cancelAt.Add(r.grace))
	}
}

// RequestCancel sets the stop signal and moves to CancelRequested without
// waiting. Idempotent while active.
func (r *Runner) RequestCancel(now time.Time, cause Cause) {
	if r.phase != PhaseRunning {
		return
	}
	r.stop.Set()
	r.cancelAt = now
	r.phase = PhaseCancelRequested
	r.log.Info("cancel requested",
		logx.String("cause", string(cause)),
		logx.Duration("elapsed", now.Sub(r.runStartedAt)))
}

// AwaitStop waits for the execution unit to confirm it stopped, bounded
// by deadline. If the unit does not finish in time it is abandoned: the
// runner logs the ungraceful stop, frees the task for its next eligible
// run, and leaves the orphaned goroutine to finish (or not) on its own.
// It is never forcibly killed.
func (r *Runner) AwaitStop(deadline time.Time) {
	if r.phase != PhaseCancelRequested {
		return
	}

	wait := time.Until(deadline)
	if wait < 0 {
		wait = 0
	}
	t := time.NewTimer(wait)
	defer t.Stop()

	select {
	case out := <-r.done:
		r.finish(time.Now(), out)
	case <-t.C:
		r.abandon()
	}
}

func (r *Runner) finish(now time.Time, out task.Outcome) {
	rec := Record{
		Task:      r.def.Name,
		StartedAt: r.runStartedAt,
		Duration:  now.Sub(r.runStartedAt),
		Outcome:   out.Code.String(),
		Reason:    string(r.startReason),
		Err:       out.Err,
	}

	switch out.Code {
	case task.OutcomeFailed:
		// Failures are isolated: logged, recorded, and for scheduling
		// purposes treated exactly like a normal completion.
		r.log.Error("task failed", logx.Err(out.Err), logx.Duration("took", rec.Duration))
	default:
		r.log.Info("task stopped",
			logx.String("outcome", rec.Outcome), logx.Duration("took", rec.Duration))
	}

	r.settle(rec)
}

func (r *Runner) abandon() {
	rec := Record{
		Task:      r.def.Name,
		StartedAt: r.runStartedAt,
		Duration:  time.Since(r.runStartedAt),
		Outcome:   "abandoned",
		Reason:    string(r.startReason),
	}
	r.log.Warn("ungraceful stop: unit did not confirm within grace period",
		logx.Duration("grace", r.grace))

	// Observe the orphan's eventual completion so it at least leaves a
	// trace in the logs.
	done, log, started := r.done, r.log, r.runStartedAt
	go func() {
		out := <-done
		log.Warn("abandoned run finished late",
			logx.String("outcome", out.Code.String()),
			logx.Err(out.Err),
			logx.Duration("took", time.Since(started)))
	}()

	r.settle(rec)
}

// settle records the run and parks the task in its next resting phase.
func (r *Runner) settle(rec Record) {
	if r.OnFinish != nil {
		r.OnFinish(rec)
	}
	if r.terminal() {
		r.phase = PhaseStopped
		r.log.Info("task retired (continuous one-shot)")
	} else {
		r.phase = PhaseIdle
	}
}

// terminal reports whether the task runs once per process lifetime:
// continuous mode without repeat never becomes eligible again.
func (r *Runner) terminal() bool {
	s := r.def.Schedule
	return !s.ScheduleOn && !s.RepeatOn
}
