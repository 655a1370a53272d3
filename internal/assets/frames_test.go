package assets

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"media-ingest/internal/config"
)

func intPtr(n int) *int { return &n }

func TestExtractFrameTimeoutKillsSlowBinary(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script mock requires a POSIX shell")
	}
	t.Parallel()

	tmpDir := t.TempDir()
	mock := filepath.Join(tmpDir, "ffmpeg")
	script := `#!/bin/sh
exec sleep 5
`
	if err := os.WriteFile(mock, []byte(script), 0o755); err != nil {
		t.Fatalf("Failed to create mock ffmpeg: %v", err)
	}

	e := NewExtractor(mock, 200*time.Millisecond)
	start := time.Now()
	_, err := e.ExtractFrame(context.Background(), filepath.Join(tmpDir, "video.mp4"), 1.0, 320)
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected an error from a stalled extraction")
	}
	if elapsed > 2*time.Second {
		t.Errorf("ExtractFrame took %s, deadline did not kill the child", elapsed)
	}
}

func TestDecideWidth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		src    *int
		target int
		policy config.UpscalePolicy
		want   int
	}{
		{"unknown source uses target", nil, 960, config.UpscaleNever, 960},
		{"wider source scales down", intPtr(1920), 960, config.UpscaleNever, 960},
		{"equal source uses target", intPtr(960), 960, config.UpscaleNever, 960},
		{"narrow source kept under never", intPtr(640), 960, config.UpscaleNever, 640},
		{"narrow source stretched under if_smaller_than", intPtr(640), 960, config.UpscaleIfSmaller, 960},
		{"narrow source stretched under always", intPtr(640), 960, config.UpscaleAlways, 960},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := decideWidth(tc.src, tc.target, tc.policy); got != tc.want {
				t.Errorf("decideWidth(%v, %d, %s) = %d, want %d", tc.src, tc.target, tc.policy, got, tc.want)
			}
		})
	}
}

func TestTimeFromFraction(t *testing.T) {
	t.Parallel()

	dur := 100
	if got := timeFromFraction(0.10, &dur); got != 10 {
		t.Errorf("10%% of 100s = %v, want 10", got)
	}
	if got := timeFromFraction(0.90, &dur); got != 90 {
		t.Errorf("90%% of 100s = %v, want 90", got)
	}

	// No duration: a fixed 10-second span stands in.
	if got := timeFromFraction(0.10, nil); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("fallback = %v, want 1.0", got)
	}
	zero := 0
	if got := timeFromFraction(0.5, &zero); got != 5 {
		t.Errorf("zero duration fallback = %v, want 5", got)
	}
}

func TestNormalizeFractions(t *testing.T) {
	t.Parallel()

	// Percentages, duplicates, out-of-range values, unsorted input.
	got := normalizeFractions([]float64{90, 10, 0.2, 20, 0.001, 1.5})
	want := []float64{0.01, 0.015, 0.1, 0.2, 0.9}
	if len(got) != len(want) {
		t.Fatalf("normalizeFractions = %v, want %v", got, want)
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("fractions[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
