package trigger

import (
	"testing"
	"time"
)

// 2026-08-17 is a Monday.
func monday(hour, min int) time.Time {
	return time.Date(2026, 8, 17, hour, min, 0, 0, time.UTC)
}

func schedDesc(repeat bool, interval time.Duration) *Descriptor {
	return &Descriptor{
		ScheduleOn:     true,
		Days:           map[time.Weekday]bool{time.Monday: true},
		Hour:           7,
		Minute:         0,
		RepeatOn:       repeat,
		RepeatInterval: interval,
	}
}

func TestShouldFireScheduled(t *testing.T) {
	t.Parallel()
	d := schedDesc(false, 0)

	tests := []struct {
		name string
		now  time.Time
		mem  Memory
		want bool
	}{
		{"window match", monday(7, 0), Memory{}, true},
		{"mid-window second", monday(7, 0).Add(37 * time.Second), Memory{}, true},
		{"wrong minute", monday(7, 1), Memory{}, false},
		{"wrong hour", monday(8, 0), Memory{}, false},
		{"wrong day", monday(7, 0).AddDate(0, 0, 1), Memory{}, false},
		{"already fired today", monday(7, 0).Add(30 * time.Second),
			Memory{EverRan: true, LastFired: monday(7, 0)}, false},
		{"fired yesterday", monday(7, 0),
			Memory{EverRan: true, LastFired: monday(7, 0).AddDate(0, 0, -7)}, true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, _ := ShouldFire(d, tt.now, tt.mem)
			if got != tt.want {
				t.Fatalf("ShouldFire(%s) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}

func TestShouldFireScheduledRepeat(t *testing.T) {
	t.Parallel()
	d := schedDesc(true, 60*time.Second)

	// Before the first run only the window can fire.
	if fire, _ := ShouldFire(d, monday(9, 0), Memory{}); fire {
		t.Fatal("repeat fired before any run")
	}

	// After a run, the interval re-fires regardless of window.
	mem := Memory{EverRan: true, LastFired: monday(7, 0)}
	fire, reason := ShouldFire(d, monday(7, 0).Add(60*time.Second), mem)
	if !fire || reason != ReasonRepeat {
		t.Fatalf("got (%v, %s), want repeat fire", fire, reason)
	}
	if fire, _ := ShouldFire(d, monday(7, 0).Add(30*time.Second), mem); fire {
		t.Fatal("fired before the repeat interval elapsed")
	}
}

func TestShouldFireContinuous(t *testing.T) {
	t.Parallel()
	now := monday(12, 34)

	oneShot := &Descriptor{}
	fire, reason := ShouldFire(oneShot, now, Memory{})
	if !fire || reason != ReasonContinuous {
		t.Fatalf("got (%v, %s), want continuous fire", fire, reason)
	}
	if fire, _ := ShouldFire(oneShot, now.Add(time.Hour), Memory{EverRan: true, LastFired: now}); fire {
		t.Fatal("one-shot continuous fired twice")
	}

	repeating := &Descriptor{RepeatOn: true, RepeatInterval: 10 * time.Second}
	mem := Memory{EverRan: true, LastFired: now}
	if fire, _ := ShouldFire(repeating, now.Add(5*time.Second), mem); fire {
		t.Fatal("fired before the repeat interval elapsed")
	}
	fire, reason = ShouldFire(repeating, now.Add(10*time.Second), mem)
	if !fire || reason != ReasonRepeat {
		t.Fatalf("got (%v, %s), want repeat fire", fire, reason)
	}
}

func TestShouldFireCron(t *testing.T) {
	t.Parallel()
	d, err := Parse("trigger.json", []byte(`{"schedule_on": true, "cron": "*/15 * * * *", "timeout_on": false}`))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	at := monday(9, 15)
	fire, reason := ShouldFire(d, at.Add(12*time.Second), Memory{})
	if !fire || reason != ReasonCron {
		t.Fatalf("got (%v, %s), want cron fire", fire, reason)
	}
	if fire, _ := ShouldFire(d, monday(9, 16), Memory{}); fire {
		t.Fatal("fired outside a cron minute")
	}
	// Same minute fires once.
	if fire, _ := ShouldFire(d, at.Add(40*time.Second), Memory{EverRan: true, LastFired: at}); fire {
		t.Fatal("fired twice in the same cron minute")
	}
	// Next window is eligible again.
	if fire, _ := ShouldFire(d, monday(9, 30), Memory{EverRan: true, LastFired: at}); !fire {
		t.Fatal("next cron window did not fire")
	}
}

func TestShouldFireNilDescriptor(t *testing.T) {
	t.Parallel()
	if fire, _ := ShouldFire(nil, monday(7, 0), Memory{}); fire {
		t.Fatal("nil descriptor fired")
	}
}
