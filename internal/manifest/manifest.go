// Package manifest persists per-run progress so interrupted jobs resume
// where they stopped instead of repeating work.
package manifest

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

type state struct {
	Completed  []string `json:"completed"`
	InProgress *string  `json:"in_progress"`
	LastRun    string   `json:"last_run,omitempty"`
}

// Tracker records which work units a job has finished. Every mutation is
// flushed to disk immediately; a crash loses at most the in-flight unit.
type Tracker struct {
	path      string
	completed map[string]struct{}
	order     []string
	inFlight  string
}

// Load reads the manifest at path, starting fresh when it is missing or
// unreadable. A corrupt manifest is logged and discarded rather than
// aborting the run.
func Load(path string) (*Tracker, error) {
	t := &Tracker{path: path, completed: make(map[string]struct{})}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return t, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var s state
	if err := json.Unmarshal(data, &s); err != nil {
		slog.Warn("manifest corrupt, starting fresh",
			slog.String("path", path),
			slog.Any("error", err))
		return t, nil
	}
	for _, key := range s.Completed {
		if _, dup := t.completed[key]; dup {
			continue
		}
		t.completed[key] = struct{}{}
		t.order = append(t.order, key)
	}
	if s.InProgress != nil {
		t.inFlight = *s.InProgress
	}
	return t, nil
}

// IsCompleted reports whether a unit was already finished in a prior run.
func (t *Tracker) IsCompleted(key string) bool {
	_, ok := t.completed[key]
	return ok
}

// InProgress returns the unit saved as in-flight by a prior interrupted run,
// or "".
func (t *Tracker) InProgress() string { return t.inFlight }

// Completed returns completed unit keys in completion order.
func (t *Tracker) Completed() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// MarkInProgress records the unit about to be processed.
func (t *Tracker) MarkInProgress(key string) error {
	t.inFlight = key
	return t.flush()
}

// MarkCompleted records a finished unit. Idempotent.
func (t *Tracker) MarkCompleted(key string) error {
	if t.inFlight == key {
		t.inFlight = ""
	}
	if _, ok := t.completed[key]; !ok {
		t.completed[key] = struct{}{}
		t.order = append(t.order, key)
	}
	return t.flush()
}

// ClearInProgress drops the in-flight marker without completing it.
func (t *Tracker) ClearInProgress() error {
	t.inFlight = ""
	return t.flush()
}

// Reset discards all recorded progress.
func (t *Tracker) Reset() error {
	t.completed = make(map[string]struct{})
	t.order = nil
	t.inFlight = ""
	return t.flush()
}

func (t *Tracker) flush() error {
	s := state{
		Completed: t.order,
		LastRun:   time.Now().UTC().Format(time.RFC3339),
	}
	if s.Completed == nil {
		s.Completed = []string{}
	}
	if t.inFlight != "" {
		s.InProgress = &t.inFlight
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if dir := filepath.Dir(t.path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create manifest dir: %w", err)
		}
	}
	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := os.Rename(tmp, t.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
