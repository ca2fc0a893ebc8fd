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

	"punchd/internal/punch"
	logx "punchd/pkg/logx"
)

// fileStore is the dependency-free persistence backend: one append-only
// JSON Lines file. Malformed lines (torn writes) are skipped on read.
type fileStore struct {
	log logx.Logger

	mu   sync.Mutex
	path string
	f    *os.File
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if !strings.HasSuffix(path, ".jsonl") {
		path += ".outcomes.jsonl"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	return &fileStore{log: log, path: path, f: f}, nil
}

func (s *fileStore) AppendOutcome(ctx context.Context, o punch.Outcome) error {
	if s == nil || s.f == nil {
		return ErrDisabled
	}
	b, err := json.Marshal(o)
	if err != nil {
		return err
	}
	b = append(b, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.f.Write(b)
	return err
}

func (s *fileStore) Recent(ctx context.Context, n int) ([]punch.Outcome, error) {
	if s == nil {
		return nil, ErrDisabled
	}
	if n <= 0 {
		n = 50
	}

	s.mu.Lock()
	path := s.path
	s.mu.Unlock()

	rf, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer rf.Close()

	var out []punch.Outcome
	sc := bufio.NewScanner(rf)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var o punch.Outcome
		if err := json.Unmarshal([]byte(line), &o); err != nil {
			continue
		}
		out = append(out, o)
		if len(out) > n {
			out = out[1:]
		}
	}
	if err := sc.Err(); err != nil {
		return out, err
	}
	return out, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}
