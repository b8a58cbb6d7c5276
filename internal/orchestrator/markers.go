package orchestrator

import (
	"os"
	"path/filepath"
	"time"

	logx "taskherd/pkg/logx"
)

// Marker filename that terminates every running task at once.
const allMarker = "all.terminate"

// TermScan is one tick's view of the termination markers in the tasks
// root. Markers are plain files dropped by an operator; the engine only
// ever reads them, it never deletes them, so a lingering marker keeps
// terminating the task on every eligible run until removed by hand.
type TermScan struct {
	All   bool
	Tasks map[string]bool
}

// Requested reports whether the named task is asked to terminate.
func (s TermScan) Requested(name string) bool {
	return s.All || s.Tasks[name]
}

// scanMarkers probes the markers for the given task names. Probing is a
// handful of stat calls per tick, cheap enough at a one second cadence.
func scanMarkers(root string, names []string) TermScan {
	scan := TermScan{}
	if _, err := os.Stat(filepath.Join(root, allMarker)); err == nil {
		scan.All = true
		return scan
	}
	for _, name := range names {
		if _, err := os.Stat(filepath.Join(root, name+".terminate")); err == nil {
			if scan.Tasks == nil {
				scan.Tasks = make(map[string]bool)
			}
			scan.Tasks[name] = true
		}
	}
	return scan
}

// AuditMarkers logs any marker files already present at startup. A
// leftover marker is almost always stale, but deleting an operator's
// file is not the engine's call; warn and keep honoring it.
func AuditMarkers(root string, log logx.Logger) {
	matches, err := filepath.Glob(filepath.Join(root, "*.terminate"))
	if err != nil || len(matches) == 0 {
		return
	}
	for _, m := range matches {
		fi, err := os.Stat(m)
		age := time.Duration(0)
		if err == nil {
			age = time.Since(fi.ModTime()).Round(time.Second)
		}
		log.Warn("termination marker present at startup; remove it if stale",
			logx.String("marker", m), logx.Duration("age", age))
	}
}
