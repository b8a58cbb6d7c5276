package config

import (
	"fmt"
	"strings"
	"time"
)

func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// ParseSecondsField converts a bare-seconds wire value into a Duration.
// Schedule descriptors carry intervals this way (`timeout_interval`,
// `max_duration` are plain floats, fractional seconds allowed), unlike
// the orchestrator config's duration strings.
func ParseSecondsField(path string, secs float64) (time.Duration, error) {
	if secs < 0 {
		return 0, fmt.Errorf("%s: must be >= 0", path)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}
