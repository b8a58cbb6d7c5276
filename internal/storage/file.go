package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "taskherd/pkg/logx"
)

// ringCap bounds how many records the file store keeps in memory for
// RecentRuns. The jsonl file itself is unbounded.
const ringCap = 512

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.runs.jsonl (append-only JSON Lines)
//
// Reads are served from an in-memory ring replayed from the file at
// open, so RecentRuns never rescans the log.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	runsFile *os.File
	ring     []RunRecord // oldest first, at most ringCap
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	runsPath := prefix + ".runs.jsonl"

	ring, err := replayRuns(runsPath)
	if err != nil {
		log.Warn("run history replay failed; starting empty",
			logx.String("path", runsPath), logx.Err(err))
		ring = nil
	}

	rf, err := os.OpenFile(runsPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}

	return &fileStore{log: log, runsFile: rf, ring: ring}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runsFile == nil {
		return nil
	}
	err := s.runsFile.Close()
	s.runsFile = nil
	return err
}

func (s *fileStore) AppendRun(ctx context.Context, r RunRecord) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runsFile == nil {
		return errors.New("run log closed")
	}
	if err := json.NewEncoder(s.runsFile).Encode(r); err != nil {
		return err
	}
	s.ring = append(s.ring, r)
	if len(s.ring) > ringCap {
		s.ring = s.ring[len(s.ring)-ringCap:]
	}
	return nil
}

// RecentRuns returns up to limit records, newest first. An empty task
// matches every task.
func (s *fileStore) RecentRuns(ctx context.Context, task string, limit int) ([]RunRecord, error) {
	_ = ctx
	if limit <= 0 {
		limit = 20
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []RunRecord
	for i := len(s.ring) - 1; i >= 0 && len(out) < limit; i-- {
		if task != "" && s.ring[i].Task != task {
			continue
		}
		out = append(out, s.ring[i])
	}
	return out, nil
}

func replayRuns(path string) ([]RunRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var ring []RunRecord
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r RunRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			continue
		}
		ring = append(ring, r)
		if len(ring) > ringCap {
			ring = ring[len(ring)-ringCap:]
		}
	}
	return ring, sc.Err()
}
