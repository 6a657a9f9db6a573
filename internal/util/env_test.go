package util

import (
	"testing"
	"time"
)

func TestParseBoolEnv(t *testing.T) {
	tests := []struct {
		value    string
		def      bool
		expected bool
	}{
		{"", true, true},
		{"true", false, true},
		{"1", false, true},
		{"YES", false, true},
		{"on", false, true},
		{"false", true, false},
		{"0", true, false},
		{"off", true, false},
		{"garbage", true, true},
		{"garbage", false, false},
	}
	for _, tt := range tests {
		t.Setenv("TEST_BOOL", tt.value)
		if got := ParseBoolEnv("TEST_BOOL", tt.def); got != tt.expected {
			t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tt.value, tt.def, got, tt.expected)
		}
	}
}

func TestParseIntEnv(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	if got := ParseIntEnv("TEST_INT", 7); got != 42 {
		t.Errorf("expected 42, got %d", got)
	}
	t.Setenv("TEST_INT", "not a number")
	if got := ParseIntEnv("TEST_INT", 7); got != 7 {
		t.Errorf("expected default 7, got %d", got)
	}
	t.Setenv("TEST_INT", "")
	if got := ParseIntEnv("TEST_INT", 7); got != 7 {
		t.Errorf("expected default 7 for unset, got %d", got)
	}
}

func TestParseFloatEnv(t *testing.T) {
	t.Setenv("TEST_FLOAT", "0.65")
	if got := ParseFloatEnv("TEST_FLOAT", 0.4); got != 0.65 {
		t.Errorf("expected 0.65, got %v", got)
	}
	t.Setenv("TEST_FLOAT", "bogus")
	if got := ParseFloatEnv("TEST_FLOAT", 0.4); got != 0.4 {
		t.Errorf("expected default 0.4, got %v", got)
	}
}

func TestParseDurationEnv(t *testing.T) {
	t.Setenv("TEST_DURATION", "5m")
	if got := ParseDurationEnv("TEST_DURATION", time.Minute); got != 5*time.Minute {
		t.Errorf("expected 5m, got %v", got)
	}
	t.Setenv("TEST_DURATION", "eventually")
	if got := ParseDurationEnv("TEST_DURATION", time.Minute); got != time.Minute {
		t.Errorf("expected default 1m, got %v", got)
	}
}
