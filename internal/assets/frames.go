// Package assets derives auxiliary images (thumbnails, contact sheets) from
// ingested videos: ffmpeg pulls still frames at proportional timestamps,
// imaging composes them, and the results are upserted as asset records.
package assets

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os/exec"
	"sort"
	"time"

	_ "image/png" // ffmpeg frame output

	"media-ingest/internal/config"
	"media-ingest/internal/metrics"
)

// Extractor pulls single decoded frames out of a video via ffmpeg.
type Extractor struct {
	bin     string
	timeout time.Duration
}

// NewExtractor creates an Extractor using the given ffmpeg binary and
// per-invocation timeout.
func NewExtractor(bin string, timeout time.Duration) *Extractor {
	if bin == "" {
		bin = "ffmpeg"
	}
	return &Extractor{bin: bin, timeout: timeout}
}

// ExtractFrame decodes one frame at atSec, scaled to the given width with
// preserved aspect ratio. The frame travels as PNG over a pipe; nothing is
// written to disk.
func (e *Extractor) ExtractFrame(ctx context.Context, videoPath string, atSec float64, width int) (image.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, e.bin,
		"-hide_banner",
		"-loglevel", "error",
		"-ss", fmt.Sprintf("%.3f", atSec),
		"-i", videoPath,
		"-frames:v", "1",
		"-an",
		"-vf", fmt.Sprintf("scale=%d:-1:flags=lanczos,setsar=1", width),
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	metrics.FrameExtractDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("ffmpeg frame at %.3fs: %w - %s", atSec, err, bytes.TrimSpace(stderr.Bytes()))
	}

	img, _, err := image.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("decode extracted frame: %w", err)
	}
	return img, nil
}

// decideWidth applies the upscale policy: sources at or above the target are
// always scaled down to it, narrower sources keep their width only under
// the never policy. An unknown source width uses the target.
func decideWidth(srcWidth *int, targetWidth int, policy config.UpscalePolicy) int {
	if srcWidth == nil {
		return targetWidth
	}
	if *srcWidth >= targetWidth {
		return targetWidth
	}
	if policy == config.UpscaleNever {
		return *srcWidth
	}
	return targetWidth
}

// timeFromFraction maps a 0..1 fraction of the duration to a timestamp in
// seconds. With no usable duration, a fixed 10-second span stands in so a
// thumbnail near the start is still possible.
func timeFromFraction(fraction float64, durationSec *int) float64 {
	if durationSec != nil && *durationSec > 0 {
		d := float64(*durationSec)
		t := d * fraction
		if t < 0 {
			return 0
		}
		if t > d {
			return d
		}
		return t
	}
	t := 10.0 * fraction
	if t < 0 {
		return 0
	}
	return t
}

// normalizeFractions accepts fractions in 0..1 or percentages in 0..100,
// clamps them to 0.01..0.99, and returns them sorted with duplicates
// removed.
func normalizeFractions(raw []float64) []float64 {
	seen := make(map[float64]bool, len(raw))
	out := make([]float64, 0, len(raw))
	for _, p := range raw {
		if p > 1.0 {
			p /= 100.0
		}
		if p < 0.01 {
			p = 0.01
		}
		if p > 0.99 {
			p = 0.99
		}
		p = float64(int(p*10000+0.5)) / 10000
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	sort.Float64s(out)
	return out
}
