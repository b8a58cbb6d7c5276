package trigger

import "time"

// Reason records which gate made a task fire. It ends up in logs and the
// run history, nowhere else.
type Reason string

const (
	ReasonSchedule   Reason = "schedule"
	ReasonCron       Reason = "cron"
	ReasonRepeat     Reason = "repeat"
	ReasonContinuous Reason = "continuous"

	// ReasonManual marks runs started by the debug one-shot path, never
	// by the evaluator.
	ReasonManual Reason = "manual"
)

// Memory is the slice of a task's runtime state the evaluator may read.
// LastFired is the instant the previous run started (zero before the
// first run).
type Memory struct {
	EverRan   bool
	LastFired time.Time
}

// ShouldFire reports whether a task should start at instant now. It is a
// pure function: callable every tick, no side effects, no clock access.
//
// Scheduled gates match at whole-minute resolution and at most once per
// window (per calendar date for day/time gates, per minute for cron
// gates). A window that passes while the process is down is simply
// missed; there is no catch-up.
func ShouldFire(d *Descriptor, now time.Time, mem Memory) (bool, Reason) {
	if d == nil {
		return false, ""
	}

	if d.ScheduleOn {
		if d.Cron != nil {
			if cronMatches(d.Cron, now) && !sameMinute(mem.LastFired, now) {
				return true, ReasonCron
			}
		} else if d.Days[now.Weekday()] && now.Hour() == d.Hour && now.Minute() == d.Minute &&
			!sameDate(mem.LastFired, now) {
			return true, ReasonSchedule
		}
		// A scheduled task with repeat enabled keeps re-firing on the
		// interval once it has run (an alarm that fires at 07:00 and
		// then nags every N seconds until terminated).
		if d.RepeatOn && mem.EverRan && now.Sub(mem.LastFired) >= d.RepeatInterval {
			return true, ReasonRepeat
		}
		return false, ""
	}

	// Continuous mode.
	if !mem.EverRan {
		return true, ReasonContinuous
	}
	if d.RepeatOn && now.Sub(mem.LastFired) >= d.RepeatInterval {
		return true, ReasonRepeat
	}
	// Continuous without repeat runs exactly once per process lifetime;
	// the runner parks the task in Stopped after its first completion.
	return false, ""
}

// cronMatches reports whether now falls in a minute the cron schedule
// activates on. Activation instants sit on minute boundaries, so the
// minute matches iff the next activation strictly after (minute-1s) is
// the minute itself.
func cronMatches(s interface{ Next(time.Time) time.Time }, now time.Time) bool {
	window := now.Truncate(time.Minute)
	return s.Next(window.Add(-time.Second)).Equal(window)
}

func sameDate(a, b time.Time) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func sameMinute(a, b time.Time) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	return a.Truncate(time.Minute).Equal(b.Truncate(time.Minute))
}
