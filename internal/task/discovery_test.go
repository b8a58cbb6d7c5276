package task

import (
	"os"
	"path/filepath"
	"testing"

	logx "taskherd/pkg/logx"
)

func writeTaskDir(t *testing.T, root, name, trigger, cfg string) {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if trigger != "" {
		if err := os.WriteFile(filepath.Join(dir, "trigger.json"), []byte(trigger), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if cfg != "" {
		if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(cfg), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestDiscoverSkipsInvalidDirectories(t *testing.T) {
	t.Parallel()
	root := t.TempDir()

	continuous := `{"schedule_on": false, "timeout_on": false}`
	writeTaskDir(t, root, "alpha", continuous, `{"volume": 3}`)
	writeTaskDir(t, root, "broken", `{"schedule_on": true, "timeout_on": false}`, "") // no days
	writeTaskDir(t, root, "no-descriptor", "", "")
	writeTaskDir(t, root, "unregistered", continuous, "")
	writeTaskDir(t, root, "named-entry", `{"schedule_on": false, "timeout_on": false, "entry": "alpha"}`, "")

	// Stray files in the root must not confuse discovery.
	if err := os.WriteFile(filepath.Join(root, "alpha.terminate"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	entries := Entrypoints{
		"alpha": func(stop *StopSignal, cfg Config) Outcome { return Completed() },
	}

	defs, err := Discover(root, entries, logx.Nop())
	if err != nil {
		t.Fatalf("Discover error: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("discovered %d tasks, want 2", len(defs))
	}
	if defs[0].Name != "alpha" || defs[1].Name != "named-entry" {
		t.Fatalf("tasks = %s, %s", defs[0].Name, defs[1].Name)
	}
	if defs[0].Config["volume"] != float64(3) {
		t.Fatalf("alpha config = %v", defs[0].Config)
	}
	if defs[1].EntryName != "alpha" {
		t.Fatalf("named-entry resolved to %q", defs[1].EntryName)
	}
}

func TestDiscoverUnreadableRootFatal(t *testing.T) {
	t.Parallel()
	if _, err := Discover(filepath.Join(t.TempDir(), "missing"), nil, logx.Nop()); err == nil {
		t.Fatal("expected error for unreadable root")
	}
}
