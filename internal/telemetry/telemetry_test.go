package telemetry

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestNewRunLogsWritesRunStartToTicksFile(t *testing.T) {
	dir := t.TempDir()
	rl, err := NewRunLogs(Config{BaseDir: dir})
	if err != nil {
		t.Fatalf("NewRunLogs: %v", err)
	}
	defer rl.Close()

	rl.Log.Info("tick", "tick_number", 1)
	rl.Sync()

	f, err := os.Open(filepath.Join(rl.RunDir, "ticks.jsonl"))
	if err != nil {
		t.Fatalf("open ticks.jsonl: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var lines int
	for scanner.Scan() {
		var rec map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("line %d not valid JSON: %v", lines, err)
		}
		lines++
	}
	if lines < 2 {
		t.Fatalf("expected run_start + tick record, got %d lines", lines)
	}
}

func TestWarnRecordsReachErrorsFile(t *testing.T) {
	dir := t.TempDir()
	rl, err := NewRunLogs(Config{BaseDir: dir})
	if err != nil {
		t.Fatalf("NewRunLogs: %v", err)
	}
	defer rl.Close()

	rl.Log.Warn("agent_error", "agent", "a1")
	rl.Sync()

	data, err := os.ReadFile(filepath.Join(rl.RunDir, "errors.jsonl"))
	if err != nil {
		t.Fatalf("read errors.jsonl: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected warn-level record in errors.jsonl")
	}
}

func TestMultiHandlerReportsEnabledIfAnyHandlerEnabled(t *testing.T) {
	dir := t.TempDir()
	rl, err := NewRunLogs(Config{BaseDir: dir, EnableDebugLog: true})
	if err != nil {
		t.Fatalf("NewRunLogs: %v", err)
	}
	defer rl.Close()

	rl.Log.Debug("debug_detail", "foo", "bar")
	rl.Sync()

	data, err := os.ReadFile(filepath.Join(rl.RunDir, "debug.jsonl"))
	if err != nil {
		t.Fatalf("read debug.jsonl: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected debug record when EnableDebugLog is set")
	}
}
