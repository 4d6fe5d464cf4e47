package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kagelight/tempocore/pkg/tempomap"
)

func TestLoadTempoMapFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tempo.json")

	content := `[
		{"time": 0, "bpm": 120, "curve": "linear"},
		{"time": 2, "bpm": 180}
	]`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}

	events, err := loadTempoMapFile(path)
	if err != nil {
		t.Fatalf("loadTempoMapFile failed: %v", err)
	}

	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}
	if events[0].Curve != tempomap.CurveLinear {
		t.Errorf("Expected linear first event, got %v", events[0].Curve)
	}
	if events[1].BPM != 180 {
		t.Errorf("Expected 180 BPM second event, got %v", events[1].BPM)
	}
}

func TestEffectiveLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	if got := effectiveLogLevel("info", false); got != "info" {
		t.Errorf("Expected flag default without LOG_LEVEL set, got %q", got)
	}

	t.Setenv("LOG_LEVEL", "DEBUG")
	if got := effectiveLogLevel("info", false); got != "debug" {
		t.Errorf("Expected lowercased LOG_LEVEL fallback, got %q", got)
	}
	if got := effectiveLogLevel("warn", true); got != "warn" {
		t.Errorf("Expected explicit flag to win over LOG_LEVEL, got %q", got)
	}
}

func TestLoadTempoMapFile_Errors(t *testing.T) {
	if _, err := loadTempoMapFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("Expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}
	if _, err := loadTempoMapFile(path); err == nil {
		t.Error("Expected error for malformed JSON")
	}
}
