package logging

import "testing"

func TestLogLevelString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level LogLevel
		want  string
	}{
		{LevelDebug, "debug"},
		{LevelInfo, "info"},
		{LevelWarn, "warn"},
		{LevelError, "error"},
		{LogLevel(99), "unknown(99)"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("LogLevel(%d).String() = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestGetLevelDefaultsToInfo(t *testing.T) {
	// Not parallel: reads process-wide level state.
	if lvl := GetLevel(); lvl > LevelError {
		t.Fatalf("GetLevel() = %v, out of range", lvl)
	}
}
