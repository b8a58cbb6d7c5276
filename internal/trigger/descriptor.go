// Package trigger holds the parsed schedule descriptor of a task and the
// pure evaluator that decides, each tick, whether an idle task should
// start. Descriptors are read once at discovery; editing one requires a
// process restart.
package trigger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"taskherd/internal/config"
)

// Filenames probed in a task directory, first hit wins.
var DescriptorFiles = []string{"trigger.yaml", "trigger.yml", "trigger.json"}

// Descriptor is the immutable, parsed timing contract of one task.
//
// Two gates exist:
//   - scheduled (ScheduleOn): fire when the day/time (or cron expression)
//     matches the current minute, at most once per window;
//   - continuous (!ScheduleOn): eligible whenever idle.
//
// RepeatOn additionally re-fires the task RepeatInterval after the start
// of its previous run, regardless of gate.
type Descriptor struct {
	ScheduleOn bool

	// Day/time gate (ScheduleOn, no cron expression).
	Days   map[time.Weekday]bool
	Hour   int
	Minute int

	// Cron gate (ScheduleOn with a cron expression); replaces day/time.
	CronExpr string
	Cron     cron.Schedule

	RepeatOn       bool
	RepeatInterval time.Duration

	// MaxDuration bounds a single run; 0 means unbounded (only external
	// termination can stop the run).
	MaxDuration time.Duration

	// Entry names the registered entry point; empty means the task
	// directory's name.
	Entry string
}

// record is the wire format of a descriptor file. Intervals are plain
// seconds, matching the historical trigger.json layout.
type record struct {
	ScheduleOn      bool     `json:"schedule_on"`
	DaysOfWeek      []string `json:"days_of_week,omitempty"`
	TimeOfDay       string   `json:"time_of_day,omitempty"`
	Cron            string   `json:"cron,omitempty"`
	TimeoutOn       bool     `json:"timeout_on"`
	TimeoutInterval float64  `json:"timeout_interval,omitempty"`
	MaxDuration     float64  `json:"max_duration,omitempty"`
	Entry           string   `json:"entry,omitempty"`
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseFile reads and parses a descriptor file (yaml or json).
func ParseFile(path string) (*Descriptor, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(path, b)
}

// Parse decodes a descriptor record strictly: unknown fields and trailing
// data are errors, so a typo in a task directory fails loudly at discovery
// instead of silently never firing.
func Parse(path string, data []byte) (*Descriptor, error) {
	jb, _, err := config.CoerceToJSONBytes(path, data)
	if err != nil {
		return nil, err
	}

	var rec record
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rec); err != nil {
		return nil, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("invalid descriptor: trailing data")
		}
		return nil, err
	}

	d := &Descriptor{
		ScheduleOn: rec.ScheduleOn,
		RepeatOn:   rec.TimeoutOn,
		Entry:      strings.TrimSpace(rec.Entry),
	}

	if d.RepeatInterval, err = config.ParseSecondsField("timeout_interval", rec.TimeoutInterval); err != nil {
		return nil, err
	}
	if d.MaxDuration, err = config.ParseSecondsField("max_duration", rec.MaxDuration); err != nil {
		return nil, err
	}

	if !rec.ScheduleOn {
		return d, nil
	}

	if expr := strings.TrimSpace(rec.Cron); expr != "" {
		sched, err := cronParser.Parse(expr)
		if err != nil {
			return nil, fmt.Errorf("cron: invalid expression %q: %w", expr, err)
		}
		d.CronExpr = expr
		d.Cron = sched
		return d, nil
	}

	if len(rec.DaysOfWeek) == 0 {
		return nil, fmt.Errorf("schedule_on requires days_of_week (or cron)")
	}
	d.Days = make(map[time.Weekday]bool, len(rec.DaysOfWeek))
	for _, name := range rec.DaysOfWeek {
		wd, err := parseWeekday(name)
		if err != nil {
			return nil, err
		}
		d.Days[wd] = true
	}

	h, m, err := parseHHMM(rec.TimeOfDay)
	if err != nil {
		return nil, err
	}
	d.Hour, d.Minute = h, m
	return d, nil
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func parseWeekday(s string) (time.Weekday, error) {
	wd, ok := weekdays[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("invalid weekday %q", s)
	}
	return wd, nil
}

func parseHHMM(s string) (hour int, minute int, err error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h, m, nil
}
