package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFreshManifest(t *testing.T) {
	tr, err := Load(filepath.Join(t.TempDir(), "manifest.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tr.IsCompleted("a.json") {
		t.Error("fresh manifest reports completed")
	}
	if tr.InProgress() != "" {
		t.Error("fresh manifest has in-progress unit")
	}
}

func TestResumeAcrossLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")

	tr, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := tr.MarkInProgress("b.json"); err != nil {
		t.Fatalf("mark in progress: %v", err)
	}
	if err := tr.MarkCompleted("a.json"); err != nil {
		t.Fatalf("mark completed: %v", err)
	}

	// Simulate a crash mid-unit and a new process loading the file.
	tr2, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !tr2.IsCompleted("a.json") {
		t.Error("completed unit lost across reload")
	}
	if tr2.IsCompleted("b.json") {
		t.Error("in-flight unit must not be completed")
	}
	if tr2.InProgress() != "b.json" {
		t.Errorf("in progress = %q, want b.json", tr2.InProgress())
	}
}

func TestMarkCompletedIdempotent(t *testing.T) {
	tr, err := Load(filepath.Join(t.TempDir(), "manifest.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for range 3 {
		if err := tr.MarkCompleted("a.json"); err != nil {
			t.Fatalf("mark completed: %v", err)
		}
	}
	if got := tr.Completed(); len(got) != 1 {
		t.Errorf("completed = %v, want single entry", got)
	}
}

func TestCompletedClearsInProgress(t *testing.T) {
	tr, err := Load(filepath.Join(t.TempDir(), "manifest.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := tr.MarkInProgress("a.json"); err != nil {
		t.Fatalf("mark in progress: %v", err)
	}
	if err := tr.MarkCompleted("a.json"); err != nil {
		t.Fatalf("mark completed: %v", err)
	}
	if tr.InProgress() != "" {
		t.Error("in-progress marker survived completion")
	}
}

func TestCorruptManifestStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o640); err != nil {
		t.Fatalf("write: %v", err)
	}
	tr, err := Load(path)
	if err != nil {
		t.Fatalf("Load must tolerate corrupt file: %v", err)
	}
	if len(tr.Completed()) != 0 {
		t.Errorf("completed = %v, want empty", tr.Completed())
	}
}

func TestReset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	tr, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := tr.MarkCompleted("a.json"); err != nil {
		t.Fatalf("mark completed: %v", err)
	}
	if err := tr.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	tr2, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if tr2.IsCompleted("a.json") {
		t.Error("reset did not clear completed set")
	}
}
