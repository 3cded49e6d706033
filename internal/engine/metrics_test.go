package engine

import (
	"strings"
	"testing"
)

func TestCountAndSnapshot(t *testing.T) {
	before := GetMetrics()["pages_scraped"]
	Count(CountPages)
	Count(CountPages)
	after := GetMetrics()["pages_scraped"]
	if after != before+2 {
		t.Errorf("pages_scraped = %d, want %d", after, before+2)
	}
}

func TestFormatMetricsShape(t *testing.T) {
	out := FormatMetrics()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != len(GetMetrics()) {
		t.Fatalf("got %d lines, want %d", len(lines), len(GetMetrics()))
	}
	for i, line := range lines {
		if !strings.HasPrefix(line, "botgraph_") {
			t.Errorf("line %d missing prefix: %q", i, line)
		}
		if i > 0 && lines[i-1] > line {
			t.Errorf("output not sorted at line %d: %q after %q", i, line, lines[i-1])
		}
	}
}
