package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"media-ingest/internal/config"
	"media-ingest/internal/identity"
	"media-ingest/internal/logging"
)

// PlanItem is the placement decision for one source file. Immutable once
// produced; the coordinator consumes each item exactly once.
type PlanItem struct {
	Source    string            `json:"source"`
	Identity  identity.Identity `json:"identity"`
	Kind      string            `json:"kind"` // video|image|sidecar|unknown
	Supported bool              `json:"supported"`
	RelDir    string            `json:"relDir"`
	FileName  string            `json:"fileName"`
}

// Planner assigns each candidate file a bucket and a fresh identity, keeping
// buckets balanced up to the configured capacity.
type Planner struct {
	cfg   *config.Config
	query MetadataQuery // nil when no store is available
}

// NewPlanner creates a Planner. query may be nil, in which case bucket
// counts are seeded all-zero over BUCKET_SEED keys.
func NewPlanner(cfg *config.Config, query MetadataQuery) *Planner {
	return &Planner{cfg: cfg, query: query}
}

// Plan produces one PlanItem per source, in input order. It reads bucket
// counts once and tracks increments in memory so files within the batch see
// each other's placements. No side effects on disk or store.
func (p *Planner) Plan(ctx context.Context, sources []string) ([]PlanItem, error) {
	counts, err := p.bucketCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("derive bucket counts: %w", err)
	}

	plan := make([]PlanItem, 0, len(sources))
	taken := make(map[string]bool, len(sources))

	for _, src := range sources {
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(src)), ".")
		kind := p.cfg.Kind(ext)

		bucket, err := selectBucket(counts, p.cfg.BucketCapacity)
		if err != nil {
			return nil, err
		}
		counts[bucket]++

		// The store's uniqueness constraint is the authoritative guard;
		// within one plan we additionally never reuse a triplet.
		var id identity.Identity
		for {
			id = identity.Identity{Bucket: bucket, Item: identity.NewItemToken(), Ext: ext}
			if !taken[id.Key()] {
				taken[id.Key()] = true
				break
			}
		}

		plan = append(plan, PlanItem{
			Source:    src,
			Identity:  id,
			Kind:      kind,
			Supported: kind != "unknown",
			RelDir:    id.RelDir(),
			FileName:  id.FileName(),
		})
	}
	return plan, nil
}

// bucketCounts builds the planner's view of current per-bucket load. The
// direct count query is authoritative; folder iteration is a lower-fidelity
// fallback; with no store at all, an all-zero seed over BUCKET_SEED keys.
func (p *Planner) bucketCounts(ctx context.Context) (map[string]int, error) {
	if p.query == nil {
		counts := make(map[string]int, p.cfg.BucketSeed)
		for i := 0; i < p.cfg.BucketSeed; i++ {
			counts[identity.FormatBucket(uint64(i))] = 0
		}
		return counts, nil
	}

	raw, err := p.query.CountItemsByBucket(ctx)
	if err == nil {
		return normalizeCounts(raw), nil
	}
	logging.Warn("count-by-bucket failed, falling back to folder iteration: %v", err)

	folders, err := p.query.IterateFolders(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, f := range folders {
		bucket, _, _ := strings.Cut(f, "/")
		key, err := identity.NormalizeBucket(bucket)
		if err != nil {
			logging.Warn("skipping folder %q: %v", f, err)
			continue
		}
		counts[key]++
	}
	return counts, nil
}

// normalizeCounts canonicalizes heterogeneous bucket keys, merging counts
// that normalize to the same key. Unparseable keys are dropped with a
// warning.
func normalizeCounts(raw map[string]int) map[string]int {
	counts := make(map[string]int, len(raw))
	for k, n := range raw {
		key, err := identity.NormalizeBucket(k)
		if err != nil {
			logging.Warn("ignoring bucket count key %q: %v", k, err)
			continue
		}
		counts[key] += n
	}
	return counts
}

// selectBucket picks the least-loaded bucket strictly below capacity, ties
// broken by the lexicographically smallest key. When every known bucket is
// full it mints the key after the current maximum, failing past "zzz".
func selectBucket(counts map[string]int, capacity int) (string, error) {
	best := ""
	bestCount := 0
	maxKey := ""
	for key, n := range counts {
		if key > maxKey {
			maxKey = key
		}
		if n >= capacity {
			continue
		}
		if best == "" || n < bestCount || (n == bestCount && key < best) {
			best = key
			bestCount = n
		}
	}
	if best != "" {
		return best, nil
	}
	if maxKey == "" {
		return identity.FormatBucket(0), nil
	}
	next, err := identity.NextBucket(maxKey)
	if err != nil {
		return "", err
	}
	return next, nil
}

// SortedBucketKeys returns the known bucket keys in order. Handlers use it
// to render a stable occupancy view.
func SortedBucketKeys(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
