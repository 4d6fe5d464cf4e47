package logger

import "testing"

func TestInit_ValidLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		if err := Init(level); err != nil {
			t.Errorf("Init(%q) failed: %v", level, err)
		}
		if Get() == nil {
			t.Errorf("Get() returned nil after Init(%q)", level)
		}
	}
}

func TestInit_InvalidLevel(t *testing.T) {
	if err := Init("verbose"); err == nil {
		t.Error("Expected error for unknown log level")
	}
}

func TestGet_BeforeInit(t *testing.T) {
	if Get() == nil {
		t.Error("Get() must fall back to the default logger")
	}
}
