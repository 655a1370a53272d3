// Package probe extracts technical metadata from media files by running
// ffprobe as a subprocess and parsing its JSON output.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"media-ingest/internal/logging"
	"media-ingest/internal/metrics"
)

// ErrorClass categorizes probe failures so callers can decide whether a file
// should be skipped or retried.
type ErrorClass string

const (
	ErrNotFound    ErrorClass = "not_found"
	ErrExec        ErrorClass = "exec"
	ErrTimeout     ErrorClass = "timeout"
	ErrNonZeroExit ErrorClass = "exit"
	ErrBadOutput   ErrorClass = "bad_output"
)

// Error is the adapter-level error for probe failures.
type Error struct {
	Class  ErrorClass
	Path   string
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("probe %s: %s", e.Path, e.Class)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Stderr != "" {
		msg += " - " + strings.TrimSpace(e.Stderr)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// TechInfo holds the technical metadata extracted from a media file. Pointer
// fields are nil when ffprobe did not report the value.
type TechInfo struct {
	DurationSec  *int     `json:"durationSec,omitempty"`
	Width        *int     `json:"width,omitempty"`
	Height       *int     `json:"height,omitempty"`
	FPS          *float64 `json:"fps,omitempty"`
	Bitrate      *int64   `json:"bitrate,omitempty"`
	CodecVideo   string   `json:"codecVideo,omitempty"`
	CodecAudio   string   `json:"codecAudio,omitempty"`
	Container    string   `json:"container,omitempty"`
	AspectRatio  string   `json:"aspectRatio,omitempty"`
	Language     string   `json:"language,omitempty"`
	HasSubtitles bool     `json:"hasSubtitles"`
}

// Prober runs ffprobe against media files.
type Prober struct {
	bin     string
	timeout time.Duration
}

// New creates a Prober using the given ffprobe binary and per-file timeout.
func New(bin string, timeout time.Duration) *Prober {
	if bin == "" {
		bin = "ffprobe"
	}
	return &Prober{bin: bin, timeout: timeout}
}

// Probe runs ffprobe on the file at path and returns its technical metadata.
func (p *Prober) Probe(ctx context.Context, path string) (*TechInfo, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &Error{Class: ErrNotFound, Path: path, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, p.bin,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	metrics.ProbeDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &Error{Class: ErrTimeout, Path: path, Stderr: stderr.String(), Err: ctx.Err()}
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &Error{Class: ErrNonZeroExit, Path: path, Stderr: stderr.String(), Err: err}
		}
		return nil, &Error{Class: ErrExec, Path: path, Stderr: stderr.String(), Err: err}
	}

	info, err := Parse(stdout.Bytes())
	if err != nil {
		return nil, &Error{Class: ErrBadOutput, Path: path, Err: err}
	}

	logging.Debug("Probed %s: duration=%v %vx%v codec=%s", path,
		derefInt(info.DurationSec), derefInt(info.Width), derefInt(info.Height), info.CodecVideo)
	return info, nil
}

// ffprobe JSON shapes. Numeric fields arrive as strings in format sections
// and as numbers in stream sections, so the types below mirror that.
type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	FormatName string            `json:"format_name"`
	Duration   string            `json:"duration"`
	BitRate    string            `json:"bit_rate"`
	Tags       map[string]string `json:"tags"`
}

type ffprobeStream struct {
	CodecType          string            `json:"codec_type"`
	CodecName          string            `json:"codec_name"`
	Width              int               `json:"width"`
	Height             int               `json:"height"`
	Duration           string            `json:"duration"`
	BitRate            string            `json:"bit_rate"`
	AvgFrameRate       string            `json:"avg_frame_rate"`
	RFrameRate         string            `json:"r_frame_rate"`
	DisplayAspectRatio string            `json:"display_aspect_ratio"`
	Disposition        map[string]int    `json:"disposition"`
	Tags               map[string]string `json:"tags"`
}

// Parse extracts a TechInfo from raw ffprobe JSON output. Exported separately
// from Probe so fixture JSON can exercise it without ffmpeg installed.
func Parse(raw []byte) (*TechInfo, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("invalid ffprobe JSON: %w", err)
	}

	var videos, audios, subs []*ffprobeStream
	for i := range out.Streams {
		s := &out.Streams[i]
		switch s.CodecType {
		case "video":
			videos = append(videos, s)
		case "audio":
			audios = append(audios, s)
		case "subtitle":
			subs = append(subs, s)
		}
	}

	// Prefer the default-disposition video stream, else the largest one.
	var vstream *ffprobeStream
	for _, s := range videos {
		if s.Disposition["default"] == 1 {
			vstream = s
			break
		}
	}
	if vstream == nil {
		for _, s := range videos {
			if vstream == nil || s.Width*s.Height > vstream.Width*vstream.Height {
				vstream = s
			}
		}
	}
	var astream *ffprobeStream
	if len(audios) > 0 {
		astream = audios[0]
	}

	info := &TechInfo{
		Container:    out.Format.FormatName,
		HasSubtitles: len(subs) > 0,
	}

	// Duration: prefer the container-level value, fall back to the longest
	// stream duration.
	if d, ok := parseFloat(out.Format.Duration); ok {
		sec := int(d)
		info.DurationSec = &sec
	} else {
		var best float64
		var found bool
		for i := range out.Streams {
			if d, ok := parseFloat(out.Streams[i].Duration); ok && (!found || d > best) {
				best = d
				found = true
			}
		}
		if found {
			sec := int(best)
			info.DurationSec = &sec
		}
	}

	if vstream != nil {
		if vstream.Width > 0 {
			w := vstream.Width
			info.Width = &w
		}
		if vstream.Height > 0 {
			h := vstream.Height
			info.Height = &h
		}
		info.CodecVideo = vstream.CodecName
		info.AspectRatio = vstream.DisplayAspectRatio
		if fps, ok := parseRate(vstream.AvgFrameRate); ok {
			info.FPS = &fps
		} else if fps, ok := parseRate(vstream.RFrameRate); ok {
			info.FPS = &fps
		}
	}
	if astream != nil {
		info.CodecAudio = astream.CodecName
	}

	// Bitrate: container-level, else the sum of stream bitrates.
	if b, ok := parseFloat(out.Format.BitRate); ok {
		br := int64(b)
		info.Bitrate = &br
	} else {
		var sum int64
		var found bool
		for i := range out.Streams {
			if b, ok := parseFloat(out.Streams[i].BitRate); ok {
				sum += int64(b)
				found = true
			}
		}
		if found {
			info.Bitrate = &sum
		}
	}

	// Language: video stream tags first, then container tags, then audio.
	info.Language = firstTag("language", vstreamTags(vstream), out.Format.Tags, vstreamTags(astream))

	return info, nil
}

func vstreamTags(s *ffprobeStream) map[string]string {
	if s == nil {
		return nil
	}
	return s.Tags
}

func firstTag(key string, maps ...map[string]string) string {
	for _, m := range maps {
		if v, ok := m[key]; ok && v != "" {
			return v
		}
	}
	return ""
}

func parseFloat(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// parseRate converts an ffprobe frame-rate fraction like "30000/1001" to a
// float. A zero denominator ("0/0" is common on cover-art streams) is
// rejected.
func parseRate(s string) (float64, bool) {
	num, den, found := strings.Cut(s, "/")
	if !found {
		return 0, false
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0, false
	}
	return n / d, true
}

func derefInt(p *int) interface{} {
	if p == nil {
		return nil
	}
	return *p
}
