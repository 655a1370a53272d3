package probe

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

const fullProbeJSON = `{
	"streams": [
		{
			"codec_type": "video",
			"codec_name": "h264",
			"width": 1920,
			"height": 1080,
			"avg_frame_rate": "30000/1001",
			"r_frame_rate": "30000/1001",
			"display_aspect_ratio": "16:9",
			"disposition": {"default": 1},
			"tags": {"language": "eng"}
		},
		{
			"codec_type": "audio",
			"codec_name": "aac",
			"bit_rate": "128000",
			"tags": {"language": "jpn"}
		},
		{
			"codec_type": "subtitle",
			"codec_name": "subrip"
		}
	],
	"format": {
		"format_name": "mov,mp4,m4a,3gp,3g2,mj2",
		"duration": "3671.500000",
		"bit_rate": "4500000",
		"tags": {"language": "und"}
	}
}`

func TestParseFullOutput(t *testing.T) {
	t.Parallel()

	info, err := Parse([]byte(fullProbeJSON))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if info.DurationSec == nil || *info.DurationSec != 3671 {
		t.Errorf("DurationSec = %v, want 3671", info.DurationSec)
	}
	if info.Width == nil || *info.Width != 1920 {
		t.Errorf("Width = %v, want 1920", info.Width)
	}
	if info.Height == nil || *info.Height != 1080 {
		t.Errorf("Height = %v, want 1080", info.Height)
	}
	if info.FPS == nil || math.Abs(*info.FPS-29.97) > 0.01 {
		t.Errorf("FPS = %v, want ~29.97", info.FPS)
	}
	if info.Bitrate == nil || *info.Bitrate != 4500000 {
		t.Errorf("Bitrate = %v, want 4500000", info.Bitrate)
	}
	if info.CodecVideo != "h264" {
		t.Errorf("CodecVideo = %q, want h264", info.CodecVideo)
	}
	if info.CodecAudio != "aac" {
		t.Errorf("CodecAudio = %q, want aac", info.CodecAudio)
	}
	if info.Container != "mov,mp4,m4a,3gp,3g2,mj2" {
		t.Errorf("Container = %q", info.Container)
	}
	if info.AspectRatio != "16:9" {
		t.Errorf("AspectRatio = %q, want 16:9", info.AspectRatio)
	}
	if info.Language != "eng" {
		t.Errorf("Language = %q, want eng (video stream tag preferred)", info.Language)
	}
	if !info.HasSubtitles {
		t.Error("HasSubtitles = false, want true")
	}
}

func TestParseFallbacks(t *testing.T) {
	t.Parallel()

	// No format-level duration or bitrate; both come from streams.
	raw := `{
		"streams": [
			{"codec_type": "video", "codec_name": "vp9", "width": 640, "height": 360,
			 "duration": "12.5", "bit_rate": "900000", "r_frame_rate": "25/1"},
			{"codec_type": "audio", "codec_name": "opus", "duration": "12.9", "bit_rate": "64000"}
		],
		"format": {"format_name": "webm", "tags": {"language": "fra"}}
	}`
	info, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if info.DurationSec == nil || *info.DurationSec != 12 {
		t.Errorf("DurationSec = %v, want 12 (max stream duration)", info.DurationSec)
	}
	if info.Bitrate == nil || *info.Bitrate != 964000 {
		t.Errorf("Bitrate = %v, want 964000 (stream sum)", info.Bitrate)
	}
	if info.FPS == nil || *info.FPS != 25 {
		t.Errorf("FPS = %v, want 25 (r_frame_rate fallback)", info.FPS)
	}
	if info.Language != "fra" {
		t.Errorf("Language = %q, want fra (format tag fallback)", info.Language)
	}
	if info.HasSubtitles {
		t.Error("HasSubtitles = true, want false")
	}
}

func TestParsePicksLargestVideoStream(t *testing.T) {
	t.Parallel()

	// No default disposition; the higher-resolution stream wins. Cover art
	// streams with a 0/0 frame rate must not produce an FPS.
	raw := `{
		"streams": [
			{"codec_type": "video", "codec_name": "mjpeg", "width": 600, "height": 600, "r_frame_rate": "0/0"},
			{"codec_type": "video", "codec_name": "h264", "width": 1280, "height": 720, "avg_frame_rate": "24/1"}
		],
		"format": {"format_name": "matroska", "duration": "60"}
	}`
	info, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if info.CodecVideo != "h264" {
		t.Errorf("CodecVideo = %q, want h264", info.CodecVideo)
	}
	if info.Width == nil || *info.Width != 1280 {
		t.Errorf("Width = %v, want 1280", info.Width)
	}
	if info.FPS == nil || *info.FPS != 24 {
		t.Errorf("FPS = %v, want 24", info.FPS)
	}
}

func TestParseEmptyAndInvalid(t *testing.T) {
	t.Parallel()

	info, err := Parse([]byte(`{}`))
	if err != nil {
		t.Fatalf("Parse empty object: %v", err)
	}
	if info.DurationSec != nil || info.Width != nil || info.CodecVideo != "" {
		t.Errorf("expected zero TechInfo, got %+v", info)
	}

	if _, err := Parse([]byte(`not json`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestProbeMissingFile(t *testing.T) {
	t.Parallel()

	p := New("ffprobe", time.Second)
	_, err := p.Probe(context.Background(), "/nonexistent/file.mp4")
	var probeErr *Error
	if !errors.As(err, &probeErr) {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if probeErr.Class != ErrNotFound {
		t.Errorf("Class = %q, want %q", probeErr.Class, ErrNotFound)
	}
}

func TestProbeWithMockBinary(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script mock requires a POSIX shell")
	}
	t.Parallel()

	tmpDir := t.TempDir()
	mock := filepath.Join(tmpDir, "ffprobe")
	script := `#!/bin/sh
echo '{"streams":[{"codec_type":"video","codec_name":"h264","width":320,"height":240,"avg_frame_rate":"30/1"}],"format":{"format_name":"mp4","duration":"5.0"}}'
`
	if err := os.WriteFile(mock, []byte(script), 0o755); err != nil {
		t.Fatalf("Failed to create mock ffprobe: %v", err)
	}
	target := filepath.Join(tmpDir, "video.mp4")
	if err := os.WriteFile(target, []byte("fake"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := New(mock, 5*time.Second)
	info, err := p.Probe(context.Background(), target)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if info.Width == nil || *info.Width != 320 {
		t.Errorf("Width = %v, want 320", info.Width)
	}
	if info.DurationSec == nil || *info.DurationSec != 5 {
		t.Errorf("DurationSec = %v, want 5", info.DurationSec)
	}
}

func TestProbeTimeoutKillsSlowBinary(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script mock requires a POSIX shell")
	}
	t.Parallel()

	tmpDir := t.TempDir()
	mock := filepath.Join(tmpDir, "ffprobe")
	script := `#!/bin/sh
exec sleep 5
`
	if err := os.WriteFile(mock, []byte(script), 0o755); err != nil {
		t.Fatalf("Failed to create mock ffprobe: %v", err)
	}
	target := filepath.Join(tmpDir, "video.mp4")
	if err := os.WriteFile(target, []byte("fake"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := New(mock, 200*time.Millisecond)
	start := time.Now()
	_, err := p.Probe(context.Background(), target)
	elapsed := time.Since(start)

	var probeErr *Error
	if !errors.As(err, &probeErr) {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if probeErr.Class != ErrTimeout {
		t.Errorf("Class = %q, want %q", probeErr.Class, ErrTimeout)
	}
	if elapsed > 2*time.Second {
		t.Errorf("Probe took %s, deadline did not kill the child", elapsed)
	}
}

func TestProbeNonZeroExit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script mock requires a POSIX shell")
	}
	t.Parallel()

	tmpDir := t.TempDir()
	mock := filepath.Join(tmpDir, "ffprobe")
	script := `#!/bin/sh
echo "corrupt input" >&2
exit 1
`
	if err := os.WriteFile(mock, []byte(script), 0o755); err != nil {
		t.Fatalf("Failed to create mock ffprobe: %v", err)
	}
	target := filepath.Join(tmpDir, "video.mp4")
	if err := os.WriteFile(target, []byte("fake"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := New(mock, 5*time.Second)
	_, err := p.Probe(context.Background(), target)
	var probeErr *Error
	if !errors.As(err, &probeErr) {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if probeErr.Class != ErrNonZeroExit {
		t.Errorf("Class = %q, want %q", probeErr.Class, ErrNonZeroExit)
	}
}
