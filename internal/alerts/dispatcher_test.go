package alerts

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDispatcher_EmitAppendsJSONLine(t *testing.T) {
	dir := t.TempDir()
	d, err := New(dir, DefaultMaxFileSize)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	if err := d.Warning(CategoryLatency, "latency_too_high:800ms", map[string]any{"latency_ms": 800}); err != nil {
		t.Fatalf("emit failed: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "alerts.jsonl"))
	if err != nil {
		t.Fatalf("open alerts file: %v", err)
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	lines := 0
	for scanner.Scan() {
		if strings.Contains(scanner.Text(), "latency_too_high") {
			lines++
		}
	}
	if lines != 1 {
		t.Fatalf("expected one matching alert line, got %d", lines)
	}
}

func TestDispatcher_RotatesWhenOverSize(t *testing.T) {
	dir := t.TempDir()
	d, err := New(dir, 64)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := d.Info(CategorySystem, "filler message to exceed small rotation threshold", nil); err != nil {
			t.Fatalf("emit failed: %v", err)
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	rotated := false
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "alerts_") {
			rotated = true
		}
	}
	if !rotated {
		t.Fatal("expected at least one rotated sibling file")
	}
}
