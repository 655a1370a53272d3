package assets

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"media-ingest/internal/config"
	"media-ingest/internal/database"
	"media-ingest/internal/filesystem"
	"media-ingest/internal/logging"
	"media-ingest/internal/metrics"
	"media-ingest/internal/probe"
	"media-ingest/internal/workerpool"
)

// Store is the metadata-store surface the pipeline needs.
type Store interface {
	FindVideosNeedingAssets(ctx context.Context, limit int, regenerate bool) ([]database.AssetCandidate, error)
	UpsertAsset(ctx context.Context, itemID string, kind database.AssetKind, relPath string, width, height int) error
}

// Prober supplies duration and source width for timestamp and scaling
// decisions.
type Prober interface {
	Probe(ctx context.Context, path string) (*probe.TechInfo, error)
}

// FrameSource extracts single scaled frames from a video.
type FrameSource interface {
	ExtractFrame(ctx context.Context, videoPath string, atSec float64, width int) (image.Image, error)
}

// Options bound one pipeline run. Zero values fall back to configuration.
type Options struct {
	Workers        int
	Limit          int
	Regenerate     bool
	IncludeMissing bool
	ThumbFormat    string
	CollageFormat  string
	ThumbWidth     int
	// Fractions overrides the sample points; values may be 0..1 fractions
	// or 0..100 percentages.
	Fractions []float64
}

// Pipeline fans derivative-asset generation out over a bounded worker pool
// and upserts one asset record per (item, kind).
type Pipeline struct {
	cfg    *config.Config
	store  Store
	prober Prober
	frames FrameSource
}

// NewPipeline wires a Pipeline from its collaborators.
func NewPipeline(cfg *config.Config, store Store, prober Prober, frames FrameSource) *Pipeline {
	return &Pipeline{cfg: cfg, store: store, prober: prober, frames: frames}
}

// Run generates thumbnails and contact sheets for videos missing them (or
// all videos when regenerating). Per-item failures accumulate in the
// report; the error is non-nil only when the candidate query itself fails.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Report, error) {
	report := NewReport()
	defer report.Finish()
	metrics.AssetRunsTotal.Inc()

	candidates, err := p.store.FindVideosNeedingAssets(ctx, opts.Limit, opts.Regenerate)
	if err != nil {
		return report, fmt.Errorf("find candidates: %w", err)
	}
	report.Candidates = len(candidates)
	if len(candidates) == 0 {
		return report, nil
	}

	workers := opts.Workers
	if workers <= 0 || workers > p.cfg.MaxAssetWorkers {
		workers = p.cfg.MaxAssetWorkers
	}
	ceiling := p.cfg.QueueMax
	if ceiling <= 0 {
		ceiling = workers * 2
	}

	pool := workerpool.New[*Report]("assets", workers, ceiling)
	defer pool.Shutdown(true, false)

	jobs := make(chan workerpool.Job[*Report])
	go func() {
		defer close(jobs)
		for _, cand := range candidates {
			cand := cand
			select {
			case jobs <- func(jobCtx context.Context) (*Report, error) {
				return p.processItem(jobCtx, cand, opts), nil
			}:
			case <-ctx.Done():
				return
			}
		}
	}()

	for res := range pool.MapUnordered(jobs, workers) {
		if res.Err != nil {
			report.AddError("pool", res.Err.Error())
			continue
		}
		report.Merge(res.Value)
	}

	logging.Info("Asset run: candidates=%d thumbs=%d sheets=%d skipped=%d errors=%d",
		report.Candidates, report.Thumbs, report.Sheets, report.Skipped, report.ErrorCount())
	return report, nil
}

// processItem attempts both derivatives for one video. The two are
// independent: a thumbnail failure still leaves the contact sheet worth
// trying.
func (p *Pipeline) processItem(ctx context.Context, cand database.AssetCandidate, opts Options) *Report {
	r := &Report{}

	src := filepath.Join(p.cfg.MediaRoot, filepath.FromSlash(cand.RelDir), cand.FileName)
	if _, err := os.Stat(src); err != nil {
		if opts.IncludeMissing {
			r.AddError(cand.ID, fmt.Sprintf("source missing: %v", err))
			metrics.AssetErrorsTotal.Inc()
		} else {
			r.Skipped++
		}
		return r
	}

	assetsDir := filepath.Join(p.cfg.MediaRoot, filepath.FromSlash(cand.RelDir), "assets")
	if err := filesystem.EnsureDir(assetsDir); err != nil {
		r.AddError(cand.ID, fmt.Sprintf("assets dir: %v", err))
		metrics.AssetErrorsTotal.Inc()
		return r
	}

	// Best-effort probe: without it the thumbnail falls back to a
	// near-start timestamp and the sheet is skipped for lack of duration.
	info, err := p.prober.Probe(ctx, src)
	if err != nil {
		logging.Warn("Probe failed for %s, proceeding without duration: %v", src, err)
		info = &probe.TechInfo{}
	}

	p.makeThumb(ctx, cand, src, assetsDir, info, opts, r)
	p.makeSheet(ctx, cand, src, assetsDir, info, opts, r)
	return r
}

func (p *Pipeline) makeThumb(ctx context.Context, cand database.AssetCandidate, src, assetsDir string, info *probe.TechInfo, opts Options, r *Report) {
	format := opts.ThumbFormat
	if format == "" {
		format = p.cfg.ThumbFormat
	}
	target := opts.ThumbWidth
	if target <= 0 {
		target = p.cfg.ThumbWidth
	}

	width := decideWidth(info.Width, target, p.cfg.Upscale)
	at := timeFromFraction(0.10, info.DurationSec)

	img, err := p.frames.ExtractFrame(ctx, src, at, width)
	if err != nil {
		r.AddError(cand.ID, fmt.Sprintf("thumb: %v", err))
		metrics.AssetErrorsTotal.Inc()
		return
	}

	name := "thumb." + format
	if err := p.saveAsset(ctx, cand, img, assetsDir, name, format, database.AssetKindThumb); err != nil {
		r.AddError(cand.ID, fmt.Sprintf("thumb: %v", err))
		metrics.AssetErrorsTotal.Inc()
		return
	}
	r.Thumbs++
	r.Updated++
	metrics.AssetsGeneratedTotal.WithLabelValues(string(database.AssetKindThumb)).Inc()
}

func (p *Pipeline) makeSheet(ctx context.Context, cand database.AssetCandidate, src, assetsDir string, info *probe.TechInfo, opts Options, r *Report) {
	if info.DurationSec == nil || *info.DurationSec <= 0 {
		logging.Warn("No duration for %s, skipping contact sheet", src)
		r.Skipped++
		return
	}

	format := opts.CollageFormat
	if format == "" {
		format = p.cfg.CollageFormat
	}
	fractions := DefaultFractions
	if len(opts.Fractions) > 0 {
		fractions = normalizeFractions(opts.Fractions)
	}
	tileWidth := decideWidth(info.Width, p.cfg.CollageTileWide, p.cfg.Upscale)

	frames := make([]image.Image, 0, len(fractions))
	for _, f := range fractions {
		img, err := p.frames.ExtractFrame(ctx, src, timeFromFraction(f, info.DurationSec), tileWidth)
		if err != nil {
			r.AddError(cand.ID, fmt.Sprintf("sheet frame at %.0f%%: %v", f*100, err))
			metrics.AssetErrorsTotal.Inc()
			return
		}
		frames = append(frames, img)
	}

	sheet := ComposeCollage(frames, tileWidth, DefaultLayout, color.Black)
	name := "contact_sheet." + format
	if err := p.saveAsset(ctx, cand, sheet, assetsDir, name, format, database.AssetKindContactSheet); err != nil {
		r.AddError(cand.ID, fmt.Sprintf("sheet: %v", err))
		metrics.AssetErrorsTotal.Inc()
		return
	}
	r.Sheets++
	r.Updated++
	metrics.AssetsGeneratedTotal.WithLabelValues(string(database.AssetKindContactSheet)).Inc()
}

// saveAsset encodes, measures, and records one derivative.
func (p *Pipeline) saveAsset(ctx context.Context, cand database.AssetCandidate, img image.Image, assetsDir, name, format string, kind database.AssetKind) error {
	path := filepath.Join(assetsDir, name)
	if err := EncodeToFile(img, path, format); err != nil {
		return err
	}
	w, h, err := MeasureImageFile(path)
	if err != nil {
		return err
	}
	relPath := cand.RelDir + "/assets/" + name
	if err := p.store.UpsertAsset(ctx, cand.ID, kind, relPath, w, h); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	logging.Debug("Wrote %s (%dx%d) for %s", relPath, w, h, cand.ID)
	return nil
}
