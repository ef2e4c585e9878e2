// Package jsonl implements the experience store port as an append-only
// newline-delimited JSON log, one record per line.
//
// The append path performs no locking or atomic rename: the design assumes
// a single writer process. A line corrupted by interleaved writers is
// tolerated on load (skip and warn), not prevented.
package jsonl

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Strob0t/PolicyForge/internal/domain/experience"
)

// Store appends experiences to a JSONL file.
type Store struct {
	path string
}

// New creates a Store backed by the given file path. The file and its
// parent directories are created lazily on first append.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Append writes one record as a single JSON line.
func (s *Store) Append(_ context.Context, e *experience.Experience) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create buffer dir: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open buffer: %w", err)
	}
	defer func() { _ = f.Close() }()

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode experience: %w", err)
	}

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append experience: %w", err)
	}
	return nil
}

// Load reads records in file order, applying the filter and stopping early
// once the limit is reached. Blank or malformed lines are skipped with a
// warning. A missing file is an empty result, not an error.
func (s *Store) Load(_ context.Context, filter experience.Filter) ([]experience.Experience, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open buffer: %w", err)
	}
	defer func() { _ = f.Close() }()

	var out []experience.Experience

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	line := 0
	for sc.Scan() {
		line++
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}

		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}

		var e experience.Experience
		if err := json.Unmarshal(raw, &e); err != nil {
			slog.Warn("skipping invalid experience", "path", s.path, "line", line, "error", err)
			continue
		}

		if !filter.Match(&e) {
			continue
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read buffer: %w", err)
	}

	return out, nil
}

// Clear deletes the backing file. Deleting an absent file is not an error.
func (s *Store) Clear(_ context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear buffer: %w", err)
	}
	return nil
}

// SizeBytes reports the buffer file size; zero when absent.
func (s *Store) SizeBytes(_ context.Context) (int64, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("stat buffer: %w", err)
	}
	return info.Size(), nil
}

// maxLineBytes bounds a single record line (1 MB).
const maxLineBytes = 1 << 20
