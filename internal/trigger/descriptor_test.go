package trigger

import (
	"testing"
	"time"
)

func TestParseDescriptorVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		path   string
		raw    string
		check  func(t *testing.T, d *Descriptor)
	}{
		{
			name: "scheduled json",
			path: "trigger.json",
			raw: `{"schedule_on": true, "days_of_week": ["Monday", "friday"],
			       "time_of_day": "07:30", "timeout_on": true, "timeout_interval": 90,
			       "max_duration": 3600}`,
			check: func(t *testing.T, d *Descriptor) {
				if !d.ScheduleOn || !d.RepeatOn {
					t.Fatalf("gates = %v/%v, want true/true", d.ScheduleOn, d.RepeatOn)
				}
				if !d.Days[time.Monday] || !d.Days[time.Friday] || d.Days[time.Tuesday] {
					t.Fatalf("days = %v", d.Days)
				}
				if d.Hour != 7 || d.Minute != 30 {
					t.Fatalf("time = %02d:%02d, want 07:30", d.Hour, d.Minute)
				}
				if d.RepeatInterval != 90*time.Second {
					t.Fatalf("RepeatInterval = %v", d.RepeatInterval)
				}
				if d.MaxDuration != time.Hour {
					t.Fatalf("MaxDuration = %v", d.MaxDuration)
				}
			},
		},
		{
			name: "continuous yaml",
			path: "trigger.yaml",
			raw: "schedule_on: false\ntimeout_on: false\nentry: beeper\n",
			check: func(t *testing.T, d *Descriptor) {
				if d.ScheduleOn || d.RepeatOn {
					t.Fatalf("gates = %v/%v, want false/false", d.ScheduleOn, d.RepeatOn)
				}
				if d.Entry != "beeper" {
					t.Fatalf("Entry = %q", d.Entry)
				}
			},
		},
		{
			name: "cron gate",
			path: "trigger.json",
			raw:  `{"schedule_on": true, "cron": "*/15 * * * *", "timeout_on": false}`,
			check: func(t *testing.T, d *Descriptor) {
				if d.Cron == nil {
					t.Fatal("Cron schedule not parsed")
				}
				if d.CronExpr != "*/15 * * * *" {
					t.Fatalf("CronExpr = %q", d.CronExpr)
				}
			},
		},
		{
			name: "fractional seconds",
			path: "trigger.json",
			raw:  `{"schedule_on": false, "timeout_on": true, "timeout_interval": 0.5}`,
			check: func(t *testing.T, d *Descriptor) {
				if d.RepeatInterval != 500*time.Millisecond {
					t.Fatalf("RepeatInterval = %v, want 500ms", d.RepeatInterval)
				}
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d, err := Parse(tt.path, []byte(tt.raw))
			if err != nil {
				t.Fatalf("Parse error: %v", err)
			}
			tt.check(t, d)
		})
	}
}

func TestParseDescriptorInvalid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
	}{
		{"unknown field", `{"schedule_on": false, "timeout_on": false, "bogus": 1}`},
		{"bad weekday", `{"schedule_on": true, "days_of_week": ["Funday"], "time_of_day": "07:00", "timeout_on": false}`},
		{"bad hour", `{"schedule_on": true, "days_of_week": ["monday"], "time_of_day": "24:00", "timeout_on": false}`},
		{"missing time format", `{"schedule_on": true, "days_of_week": ["monday"], "time_of_day": "0700", "timeout_on": false}`},
		{"scheduled without days", `{"schedule_on": true, "time_of_day": "07:00", "timeout_on": false}`},
		{"negative interval", `{"schedule_on": false, "timeout_on": true, "timeout_interval": -5}`},
		{"negative max duration", `{"schedule_on": false, "timeout_on": false, "max_duration": -1}`},
		{"bad cron", `{"schedule_on": true, "cron": "every tuesday", "timeout_on": false}`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := Parse("trigger.json", []byte(tt.raw)); err == nil {
				t.Fatalf("Parse(%s) accepted invalid descriptor", tt.raw)
			}
		})
	}
}

func TestParseHHMM(t *testing.T) {
	t.Parallel()
	h, m, err := parseHHMM("23:15")
	if err != nil {
		t.Fatalf("parseHHMM error: %v", err)
	}
	if h != 23 || m != 15 {
		t.Fatalf("unexpected result: %d:%d", h, m)
	}

	if _, _, err := parseHHMM("24:00"); err == nil {
		t.Fatal("expected error for invalid hour")
	}
}
