package task

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"taskherd/internal/config"
	"taskherd/internal/trigger"
	logx "taskherd/pkg/logx"
)

// Config record filenames probed in a task directory, first hit wins.
var configFiles = []string{"config.yaml", "config.yml", "config.json"}

// Discover scans root once and builds the task set: one task per
// subdirectory that carries a valid schedule descriptor and resolves to a
// registered entry point. Invalid directories are skipped with a warning;
// only an unreadable root is fatal. Discovery is not re-run while the
// process is alive.
func Discover(root string, entries Entrypoints, log logx.Logger) ([]*Definition, error) {
	dirents, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("tasks root %s: %w", root, err)
	}

	var defs []*Definition
	for _, de := range dirents {
		if !de.IsDir() {
			continue
		}
		name := de.Name()
		dir := filepath.Join(root, name)

		desc, descPath, err := loadDescriptor(dir)
		if err != nil {
			log.Warn("skipping task: bad schedule descriptor",
				logx.String("task", name), logx.String("path", descPath), logx.Err(err))
			continue
		}
		if desc == nil {
			// Not a task directory (may hold caches or media); warned
			// once at startup, then ignored.
			log.Warn("skipping directory without descriptor", logx.String("dir", dir))
			continue
		}

		entryName := desc.Entry
		if entryName == "" {
			entryName = name
		}
		entry, ok := entries[entryName]
		if !ok {
			log.Warn("skipping task: no registered entry point",
				logx.String("task", name), logx.String("entry", entryName))
			continue
		}

		cfg, err := loadTaskConfig(dir)
		if err != nil {
			log.Warn("skipping task: bad config record",
				logx.String("task", name), logx.Err(err))
			continue
		}

		defs = append(defs, &Definition{
			Name:      name,
			Dir:       dir,
			Schedule:  desc,
			Config:    cfg,
			EntryName: entryName,
			Entry:     entry,
		})
		log.Info("task discovered",
			logx.String("task", name),
			logx.String("entry", entryName),
			logx.Bool("scheduled", desc.ScheduleOn),
			logx.Bool("repeat", desc.RepeatOn),
			logx.Duration("max_duration", desc.MaxDuration))
	}

	// ReadDir is sorted already; keep the ordering explicit anyway since
	// registry order is the dispatch order.
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs, nil
}

// loadDescriptor returns (nil, "", nil) when the directory has no
// descriptor file at all.
func loadDescriptor(dir string) (*trigger.Descriptor, string, error) {
	for _, fn := range trigger.DescriptorFiles {
		path := filepath.Join(dir, fn)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		d, err := trigger.ParseFile(path)
		return d, path, err
	}
	return nil, "", nil
}

func loadTaskConfig(dir string) (Config, error) {
	for _, fn := range configFiles {
		path := filepath.Join(dir, fn)
		b, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		jb, _, err := config.CoerceToJSONBytes(path, b)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		// Opaque record: decoded loosely, forwarded verbatim.
		var m map[string]any
		if err := json.Unmarshal(jb, &m); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return Config(m), nil
	}
	return nil, nil
}
