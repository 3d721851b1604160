package audit

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLog_RecordsEventsInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "execution_audit.jsonl")
	l, err := New(path)
	if err != nil {
		t.Fatalf("new log: %v", err)
	}

	if err := l.OrderOK("corr-1", "EURUSD", 42, nil); err != nil {
		t.Fatalf("order ok: %v", err)
	}
	if err := l.OrderFail("corr-1", "EURUSD", "requote", 50, nil); err != nil {
		t.Fatalf("order fail: %v", err)
	}
	if err := l.Shutdown(nil); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], `"ORDER_OK"`) {
		t.Fatalf("expected first line to be ORDER_OK, got %s", lines[0])
	}
	if !strings.Contains(lines[2], `"SHUTDOWN"`) {
		t.Fatalf("expected last line to be SHUTDOWN, got %s", lines[2])
	}
}
