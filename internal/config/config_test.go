package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{"empty means zero", "", 0, false},
		{"seconds", "5s", 5 * time.Second, false},
		{"millis", "250ms", 250 * time.Millisecond, false},
		{"negative rejected", "-1s", 0, true},
		{"garbage rejected", "soon", 0, true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseDurationField("x", tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseSecondsField(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		secs    float64
		want    time.Duration
		wantErr bool
	}{
		{"zero", 0, 0, false},
		{"whole seconds", 90, 90 * time.Second, false},
		{"fractional", 0.5, 500 * time.Millisecond, false},
		{"negative rejected", -5, 0, true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseSecondsField("x", tt.secs)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOrchestratorConfigDefaults(t *testing.T) {
	t.Parallel()
	var o OrchestratorConfig

	tick, err := o.Tick()
	if err != nil || tick != DefaultTickInterval {
		t.Fatalf("Tick() = (%v, %v)", tick, err)
	}
	grace, err := o.Grace()
	if err != nil || grace != DefaultGracePeriod {
		t.Fatalf("Grace() = (%v, %v)", grace, err)
	}

	o.TickInterval = "500ms"
	o.GracePeriod = "10s"
	if tick, _ = o.Tick(); tick != 500*time.Millisecond {
		t.Fatalf("Tick() = %v", tick)
	}
	if grace, _ = o.Grace(); grace != 10*time.Second {
		t.Fatalf("Grace() = %v", grace)
	}
}

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestManagerParseStrict(t *testing.T) {
	t.Parallel()

	t.Run("json", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, "config.json", `{
			"orchestrator": {"tasks_root": "./tasks", "tick_interval": "1s"},
			"logging": {"level": "debug", "console": true,
			            "file": {"enabled": false, "path": ""},
			            "alert": {"enabled": false, "min_level": "", "rate_per_sec": 0}}
		}`)
		m := NewManager(path)
		cfg, err := m.Load()
		if err != nil {
			t.Fatalf("Load error: %v", err)
		}
		if cfg.Orchestrator.TasksRoot != "./tasks" || cfg.Logging.Level != "debug" {
			t.Fatalf("cfg = %+v", cfg)
		}
		if m.Get() != cfg {
			t.Fatal("Get() did not return the committed config")
		}
	})

	t.Run("yaml", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, "config.yaml", `
orchestrator:
  tick_interval: 500ms
  grace_period: 2s
logging:
  level: info
  console: true
  file: {enabled: false, path: ""}
  alert: {enabled: false, min_level: "", rate_per_sec: 0}
`)
		cfg, err := NewManager(path).Load()
		if err != nil {
			t.Fatalf("Load error: %v", err)
		}
		tick, err := cfg.Orchestrator.Tick()
		if err != nil || tick != 500*time.Millisecond {
			t.Fatalf("Tick() = (%v, %v)", tick, err)
		}
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, "config.json", `{"orchestrator": {}, "logging": {"level": "info", "console": true, "file": {"enabled": false, "path": ""}, "alert": {"enabled": false, "min_level": "", "rate_per_sec": 0}}, "surprise": 1}`)
		if _, err := NewManager(path).Load(); err == nil {
			t.Fatal("unknown top-level field accepted")
		}
	})

	t.Run("trailing data rejected", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, "config.json", `{"orchestrator": {}, "logging": {"level": "info", "console": true, "file": {"enabled": false, "path": ""}, "alert": {"enabled": false, "min_level": "", "rate_per_sec": 0}}}{}`)
		if _, err := NewManager(path).Load(); err == nil {
			t.Fatal("trailing data accepted")
		}
	})
}

func TestManagerSubscribePublish(t *testing.T) {
	t.Parallel()
	m := NewManager("unused")

	ch := m.Subscribe(1)
	cfg := &Config{}
	m.publish(cfg)

	select {
	case got := <-ch:
		if got != cfg {
			t.Fatal("subscriber received a different config")
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber never received the config")
	}

	// Full buffer: the newest config wins, the publisher never blocks.
	stale, fresh := &Config{}, &Config{}
	m.publish(stale)
	m.publish(fresh)
	if got := <-ch; got != fresh {
		t.Fatal("expected the freshest config after overflow")
	}

	m.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatal("channel still open after Unsubscribe")
	}
}
