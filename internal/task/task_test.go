package task

import (
	"testing"
	"time"
)

func TestStopSignalSetOnce(t *testing.T) {
	t.Parallel()
	s := NewStopSignal()
	if s.IsSet() {
		t.Fatal("fresh signal reports set")
	}

	s.Set()
	s.Set() // idempotent
	if !s.IsSet() {
		t.Fatal("signal not set after Set")
	}

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("Done channel not closed after Set")
	}
}

func TestDecodeConfig(t *testing.T) {
	t.Parallel()
	var out struct {
		Interval float64 `json:"interval"`
		Message  string  `json:"message"`
	}
	cfg := Config{"interval": 2.5, "message": "hi", "extra": true}
	if err := DecodeConfig(cfg, &out); err != nil {
		t.Fatalf("DecodeConfig error: %v", err)
	}
	if out.Interval != 2.5 || out.Message != "hi" {
		t.Fatalf("decoded = %+v", out)
	}

	if err := DecodeConfig(nil, &out); err != nil {
		t.Fatalf("nil config should decode to nothing: %v", err)
	}
}
