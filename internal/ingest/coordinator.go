package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"media-ingest/internal/config"
	"media-ingest/internal/database"
	"media-ingest/internal/logging"
	"media-ingest/internal/metrics"
	"media-ingest/internal/probe"
)

// Options bound one ingest run.
type Options struct {
	// DryRun plans only: no probing, hashing, store writes, or moves.
	DryRun bool
	// Limit caps how many sources are considered; zero or less means the
	// configured default.
	Limit int
}

// Coordinator turns plan items into durable placements: for each supported
// file exactly one of {store row + moved file} or {neither} survives.
type Coordinator struct {
	cfg     *config.Config
	planner *Planner
	query   MetadataQuery
	mut     MetadataMutation
	prober  Prober
	hasher  Hasher
	fileOps FileOps
}

// NewCoordinator wires a Coordinator from its collaborators. query may be
// nil (the planner then seeds zero counts and digest dedupe is skipped).
func NewCoordinator(cfg *config.Config, query MetadataQuery, mut MetadataMutation, prober Prober, hasher Hasher, fileOps FileOps) *Coordinator {
	return &Coordinator{
		cfg:     cfg,
		planner: NewPlanner(cfg, query),
		query:   query,
		mut:     mut,
		prober:  prober,
		hasher:  hasher,
		fileOps: fileOps,
	}
}

// Run ingests the given sources. When sources is empty the incoming
// directory is scanned. A report is always returned; the error is non-nil
// only for planning or configuration failures, never for per-item ones.
func (c *Coordinator) Run(ctx context.Context, sources []string, opts Options) (*Report, error) {
	report := NewReport()
	defer func() {
		report.Finish()
		metrics.IngestLastRunDuration.Set(report.Duration().Seconds())
	}()
	metrics.IngestRunsTotal.Inc()

	if len(sources) == 0 {
		var err error
		sources, err = ScanIncoming(c.cfg.IncomingRoot)
		if err != nil {
			return report, fmt.Errorf("scan incoming: %w", err)
		}
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = c.cfg.IngestLimit
	}
	if limit > 0 && len(sources) > limit {
		sources = sources[:limit]
	}

	plan, err := c.planner.Plan(ctx, sources)
	if err != nil {
		return report, err
	}
	report.Planned = len(plan)

	if opts.DryRun {
		report.Plan = plan
		return report, nil
	}

	for i := range plan {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		c.ingestOne(ctx, &plan[i], report)
	}

	logging.Info("Ingest run: planned=%d created=%d moved=%d duplicates=%d skipped=%d errors=%d",
		report.Planned, report.Created, report.Moved, report.Duplicates, report.Skipped, report.ErrorCount())
	return report, nil
}

// ingestOne places a single plan item. Failures are recorded on the report
// and never propagate; the source file stays in the incoming area unless
// the item fully commits.
func (c *Coordinator) ingestOne(ctx context.Context, item *PlanItem, report *Report) {
	if !item.Supported {
		report.Skipped++
		metrics.IngestItemsTotal.WithLabelValues("skipped").Inc()
		return
	}

	fail := func(msg string, err error) {
		report.AddError(item.Source, fmt.Sprintf("%s: %v", msg, err))
		metrics.IngestItemsTotal.WithLabelValues("error").Inc()
	}

	// Probe and hash the source in place, before anything mutates. Sidecars
	// are probed like everything else; ffprobe reports their container.
	tech, err := c.prober.Probe(ctx, item.Source)
	if err != nil {
		fail("probe", err)
		return
	}
	report.Probed++

	digest, size, err := c.hasher.DigestFile(item.Source)
	if err != nil {
		fail("hash", err)
		return
	}
	report.Hashed++

	if c.cfg.DedupeByHash && c.query != nil {
		exists, err := c.query.ExistsByDigest(ctx, digest)
		if err != nil {
			fail("dedupe lookup", err)
			return
		}
		if exists {
			logging.Info("Duplicate content, leaving %s in incoming", item.Source)
			report.Duplicates++
			metrics.IngestItemsTotal.WithLabelValues("duplicate").Inc()
			return
		}
	}

	uow, err := begin(ctx, c.mut)
	if err != nil {
		fail("transaction", err)
		return
	}

	record := c.buildRecord(item, tech, digest, size)
	if err := c.mut.CreateItem(ctx, uow.tx, record); err != nil {
		_ = uow.rollback()
		if errors.Is(err, database.ErrConflict) {
			fail("conflict", err)
		} else {
			fail("insert", err)
		}
		return
	}

	destDir := filepath.Join(c.cfg.MediaRoot, filepath.FromSlash(item.RelDir))
	dest := filepath.Join(destDir, item.FileName)
	if err := c.fileOps.EnsureDir(destDir); err != nil {
		_ = uow.rollback()
		fail("ensure dir", err)
		return
	}
	if err := c.fileOps.MoveReplacing(item.Source, dest); err != nil {
		_ = uow.rollback()
		fail("move", err)
		return
	}
	uow.onRollback(func() error { return c.fileOps.MoveReplacing(dest, item.Source) })

	if err := uow.commit(); err != nil {
		fail("commit", err)
		return
	}

	report.Created++
	report.Moved++
	metrics.IngestItemsTotal.WithLabelValues("created").Inc()
	logging.Debug("Ingested %s -> %s", item.Source, dest)
}

func (c *Coordinator) buildRecord(item *PlanItem, tech *probe.TechInfo, digest string, size int64) *database.MediaItem {
	return &database.MediaItem{
		ID:           uuid.NewString(),
		Bucket:       item.Identity.Bucket,
		Item:         item.Identity.Item,
		Ext:          item.Identity.Ext,
		Kind:         database.MediaKind(item.Kind),
		SizeBytes:    size,
		HashSHA256:   digest,
		DurationSec:  tech.DurationSec,
		Width:        tech.Width,
		Height:       tech.Height,
		FPS:          tech.FPS,
		Bitrate:      tech.Bitrate,
		CodecVideo:   tech.CodecVideo,
		CodecAudio:   tech.CodecAudio,
		Container:    tech.Container,
		AspectRatio:  tech.AspectRatio,
		Language:     tech.Language,
		HasSubtitles: tech.HasSubtitles,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
}
