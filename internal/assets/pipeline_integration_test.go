package assets

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"media-ingest/internal/config"
	"media-ingest/internal/database"
	"media-ingest/internal/probe"
)

type fakeProber struct {
	info probe.TechInfo
	err  error
}

func (f *fakeProber) Probe(context.Context, string) (*probe.TechInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	info := f.info
	return &info, nil
}

// fakeFrames returns solid frames at the requested width; failWidth makes
// extraction fail for exactly that width, which separates thumbnail calls
// from contact-sheet calls in tests.
type fakeFrames struct {
	failWidth int
}

func (f *fakeFrames) ExtractFrame(_ context.Context, _ string, _ float64, width int) (image.Image, error) {
	if f.failWidth != 0 && width == f.failWidth {
		return nil, errors.New("extract failed")
	}
	return imaging.New(width, width*9/16, color.NRGBA{R: 200, A: 255}), nil
}

func pipelineConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		MediaRoot:       filepath.Join(t.TempDir(), "media"),
		ThumbFormat:     "jpg",
		CollageFormat:   "png",
		ThumbWidth:      960,
		CollageTileWide: 400,
		Upscale:         config.UpscaleIfSmaller,
		MaxAssetWorkers: 4,
		QueueMax:        8,
	}
}

func pipelineStore(t *testing.T) *database.Store {
	t.Helper()
	s, err := database.New(context.Background(), filepath.Join(t.TempDir(), "media.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// seedVideo inserts a video row and, when withFile is set, its media file.
func seedVideo(t *testing.T, s *database.Store, cfg *config.Config, bucket, item string, withFile bool) string {
	t.Helper()
	ctx := context.Background()
	rec := &database.MediaItem{
		ID:     uuid.NewString(),
		Bucket: bucket,
		Item:   item,
		Ext:    "mp4",
		Kind:   database.MediaKindVideo,
	}
	tx, err := s.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.CreateItem(ctx, tx, rec); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	if withFile {
		dir := filepath.Join(cfg.MediaRoot, bucket, item)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, item+".mp4"), []byte("fake video"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return rec.ID
}

func videoInfo(durationSec, width int) probe.TechInfo {
	return probe.TechInfo{DurationSec: &durationSec, Width: &width}
}

func TestPipelineGeneratesBothAssets(t *testing.T) {
	t.Parallel()

	cfg := pipelineConfig(t)
	s := pipelineStore(t)
	id := seedVideo(t, s, cfg, "000", "aaaaaaaaaaaa", true)

	p := NewPipeline(cfg, s, &fakeProber{info: videoInfo(100, 1920)}, &fakeFrames{})
	report, err := p.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Candidates != 1 || report.Thumbs != 1 || report.Sheets != 1 || report.ErrorCount() != 0 {
		t.Fatalf("report = %+v", report)
	}

	for _, name := range []string{"thumb.jpg", "contact_sheet.png"} {
		path := filepath.Join(cfg.MediaRoot, "000", "aaaaaaaaaaaa", "assets", name)
		if _, err := os.Stat(path); err != nil {
			t.Errorf("asset file missing: %v", err)
		}
	}

	assets, err := s.GetAssets(context.Background(), id)
	if err != nil {
		t.Fatalf("GetAssets: %v", err)
	}
	if len(assets) != 2 {
		t.Fatalf("asset rows = %d, want 2", len(assets))
	}
	for _, a := range assets {
		switch a.Kind {
		case database.AssetKindThumb:
			if a.RelPath != "000/aaaaaaaaaaaa/assets/thumb.jpg" || a.Width != 960 {
				t.Errorf("thumb row = %+v", a)
			}
		case database.AssetKindContactSheet:
			if a.RelPath != "000/aaaaaaaaaaaa/assets/contact_sheet.png" || a.Width != 1218 {
				t.Errorf("sheet row = %+v", a)
			}
		}
	}
}

func TestPipelineSkipsMissingSource(t *testing.T) {
	t.Parallel()

	cfg := pipelineConfig(t)
	s := pipelineStore(t)
	seedVideo(t, s, cfg, "000", "bbbbbbbbbbbb", false)

	p := NewPipeline(cfg, s, &fakeProber{info: videoInfo(100, 1920)}, &fakeFrames{})
	report, err := p.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Skipped != 1 || report.ErrorCount() != 0 {
		t.Errorf("report = %+v, want 1 skip and no errors", report)
	}

	// With include-missing the same condition is a recorded failure.
	report, err = p.Run(context.Background(), Options{IncludeMissing: true, Regenerate: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.ErrorCount() != 1 {
		t.Errorf("include-missing report = %+v, want 1 error", report)
	}
}

func TestPipelineSkipsSheetWithoutDuration(t *testing.T) {
	t.Parallel()

	cfg := pipelineConfig(t)
	s := pipelineStore(t)
	id := seedVideo(t, s, cfg, "000", "cccccccccccc", true)

	p := NewPipeline(cfg, s, &fakeProber{info: probe.TechInfo{}}, &fakeFrames{})
	report, err := p.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Thumbs != 1 {
		t.Errorf("thumbs = %d, want 1 (fallback timestamp)", report.Thumbs)
	}
	if report.Sheets != 0 || report.Skipped != 1 || report.ErrorCount() != 0 {
		t.Errorf("report = %+v, want sheet skipped without error", report)
	}

	assets, _ := s.GetAssets(context.Background(), id)
	if len(assets) != 1 || assets[0].Kind != database.AssetKindThumb {
		t.Errorf("assets = %+v, want thumb only", assets)
	}
}

func TestPipelineThumbFailureStillAttemptsSheet(t *testing.T) {
	t.Parallel()

	cfg := pipelineConfig(t)
	s := pipelineStore(t)
	id := seedVideo(t, s, cfg, "000", "dddddddddddd", true)

	// Thumbnail extraction runs at 960, sheet tiles at 400; failing only
	// the former must not shortcut the latter.
	p := NewPipeline(cfg, s, &fakeProber{info: videoInfo(100, 1920)}, &fakeFrames{failWidth: 960})
	report, err := p.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Thumbs != 0 || report.ErrorCount() != 1 {
		t.Errorf("report = %+v, want failed thumb", report)
	}
	if report.Sheets != 1 {
		t.Errorf("sheets = %d, want 1 despite thumb failure", report.Sheets)
	}

	assets, _ := s.GetAssets(context.Background(), id)
	if len(assets) != 1 || assets[0].Kind != database.AssetKindContactSheet {
		t.Errorf("assets = %+v, want contact sheet only", assets)
	}
}

func TestPipelineRegenerateIsIdempotent(t *testing.T) {
	t.Parallel()

	cfg := pipelineConfig(t)
	s := pipelineStore(t)
	id := seedVideo(t, s, cfg, "000", "eeeeeeeeeeee", true)

	p := NewPipeline(cfg, s, &fakeProber{info: videoInfo(100, 1920)}, &fakeFrames{})
	if _, err := p.Run(context.Background(), Options{}); err != nil {
		t.Fatal(err)
	}

	// Second run with nothing missing finds no candidates.
	report, err := p.Run(context.Background(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if report.Candidates != 0 {
		t.Errorf("candidates = %d, want 0 once assets exist", report.Candidates)
	}

	// Regenerate revisits the item but upserts in place.
	report, err = p.Run(context.Background(), Options{Regenerate: true})
	if err != nil {
		t.Fatal(err)
	}
	if report.Candidates != 1 || report.Thumbs != 1 || report.Sheets != 1 {
		t.Errorf("regenerate report = %+v", report)
	}
	assets, _ := s.GetAssets(context.Background(), id)
	if len(assets) != 2 {
		t.Errorf("asset rows = %d after regenerate, want 2", len(assets))
	}
}

func TestPipelineFansOutManyItems(t *testing.T) {
	t.Parallel()

	cfg := pipelineConfig(t)
	s := pipelineStore(t)
	items := []string{"aaaaaaaaaa01", "aaaaaaaaaa02", "aaaaaaaaaa03", "aaaaaaaaaa04", "aaaaaaaaaa05", "aaaaaaaaaa06"}
	for _, item := range items {
		seedVideo(t, s, cfg, "000", item, true)
	}

	p := NewPipeline(cfg, s, &fakeProber{info: videoInfo(60, 1280)}, &fakeFrames{})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	report, err := p.Run(ctx, Options{Workers: 3})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Thumbs != len(items) || report.Sheets != len(items) || report.ErrorCount() != 0 {
		t.Errorf("report = %+v, want all %d items processed", report, len(items))
	}
}
