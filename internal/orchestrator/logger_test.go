package orchestrator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDebugLogger_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "heavy-debug.log")

	l, err := NewDebugLogger(path)
	if err != nil {
		t.Fatalf("NewDebugLogger: %v", err)
	}
	l.Log("run %s: %d agents", "abc", 4)
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	if !strings.Contains(content, "heavy debug log started") {
		t.Error("missing header line")
	}
	if !strings.Contains(content, "run abc: 4 agents") {
		t.Errorf("missing log line in %q", content)
	}
}

func TestDebugLogger_NoOp(t *testing.T) {
	var nilLogger *DebugLogger
	nilLogger.Log("ignored")
	if err := nilLogger.Close(); err != nil {
		t.Errorf("nil Close: %v", err)
	}

	l, err := NewDebugLogger("")
	if err != nil {
		t.Fatal(err)
	}
	l.Log("ignored")
	NopLogger().Log("ignored")
}

func TestDefaultDebugLogPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dir)

	want := filepath.Join(dir, "heavysql", "logs", "heavy-debug.log")
	if got := DefaultDebugLogPath(); got != want {
		t.Errorf("DefaultDebugLogPath = %q, want %q", got, want)
	}
}
