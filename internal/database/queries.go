package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// CountItemsByBucket returns the number of stored items per bucket key.
// Buckets with no items are absent from the map.
func (s *Store) CountItemsByBucket(ctx context.Context) (map[string]int, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("count_items_by_bucket", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, "SELECT bucket, COUNT(*) FROM media_items GROUP BY bucket")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int)
	for rows.Next() {
		var bucket string
		var n int
		if err = rows.Scan(&bucket, &n); err != nil {
			return nil, err
		}
		counts[bucket] = n
	}
	err = rows.Err()
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// IterateFolders returns every stored item folder as a "bucket/item" string.
// Slower than CountItemsByBucket; the planner uses it as a fallback.
func (s *Store) IterateFolders(ctx context.Context) ([]string, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("iterate_folders", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, "SELECT bucket, item FROM media_items ORDER BY bucket, item")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var folders []string
	for rows.Next() {
		var bucket, item string
		if err = rows.Scan(&bucket, &item); err != nil {
			return nil, err
		}
		folders = append(folders, bucket+"/"+item)
	}
	err = rows.Err()
	if err != nil {
		return nil, err
	}
	return folders, nil
}

// ExistsByDigest reports whether any stored item already carries the given
// SHA-256 content digest.
func (s *Store) ExistsByDigest(ctx context.Context, digest string) (bool, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("exists_by_digest", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var one int
	err = s.db.QueryRowContext(ctx,
		"SELECT 1 FROM media_items WHERE hash_sha256 = ? LIMIT 1", digest,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// FindVideosNeedingAssets returns video items missing a thumbnail or contact
// sheet, oldest first. With regenerate set, every video qualifies. A limit
// of zero or less means no limit.
func (s *Store) FindVideosNeedingAssets(ctx context.Context, limit int, regenerate bool) ([]AssetCandidate, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("find_videos_needing_assets", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if limit <= 0 {
		limit = -1 // SQLite treats a negative LIMIT as unlimited
	}

	query := `
	SELECT m.id, m.bucket, m.item, m.ext
	FROM media_items m
	WHERE m.kind = 'video'
	  AND (
		? = 1
		OR NOT EXISTS (SELECT 1 FROM media_assets a WHERE a.media_item_id = m.id AND a.kind = 'thumb')
		OR NOT EXISTS (SELECT 1 FROM media_assets a WHERE a.media_item_id = m.id AND a.kind = 'contact_sheet')
	  )
	ORDER BY m.created_at, m.id
	LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, boolToInt(regenerate), limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var candidates []AssetCandidate
	for rows.Next() {
		var id, bucket, item, ext string
		if err = rows.Scan(&id, &bucket, &item, &ext); err != nil {
			return nil, err
		}
		name := item
		if ext != "" {
			name += "." + ext
		}
		candidates = append(candidates, AssetCandidate{
			ID:       id,
			RelDir:   bucket + "/" + item,
			FileName: name,
		})
	}
	err = rows.Err()
	if err != nil {
		return nil, err
	}
	return candidates, nil
}

const itemColumns = `
	id, bucket, item, ext, kind, size_bytes, COALESCE(hash_sha256, ''),
	duration_sec, width, height, fps, bitrate,
	codec_video, codec_audio, container, aspect_ratio, language, has_subtitles,
	favorite, rating, created_at, updated_at
`

func scanItem(row interface{ Scan(...any) error }) (*MediaItem, error) {
	var m MediaItem
	var hasSubs, favorite int
	var createdAt, updatedAt int64

	err := row.Scan(
		&m.ID, &m.Bucket, &m.Item, &m.Ext, &m.Kind, &m.SizeBytes, &m.HashSHA256,
		&m.DurationSec, &m.Width, &m.Height, &m.FPS, &m.Bitrate,
		&m.CodecVideo, &m.CodecAudio, &m.Container, &m.AspectRatio, &m.Language, &hasSubs,
		&favorite, &m.Rating, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.HasSubtitles = hasSubs != 0
	m.Favorite = favorite != 0
	m.CreatedAt = time.Unix(createdAt, 0)
	m.UpdatedAt = time.Unix(updatedAt, 0)
	return &m, nil
}

// GetItem retrieves a single media item by id.
func (s *Store) GetItem(ctx context.Context, id string) (*MediaItem, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_item", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+itemColumns+" FROM media_items WHERE id = ?", id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return nil, fmt.Errorf("media item %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// ListItems returns a page of media items, newest first.
func (s *Store) ListItems(ctx context.Context, page, pageSize int) (*ItemListing, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_items", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 500 {
		pageSize = 100
	}

	var total int
	if err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM media_items").Scan(&total); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+itemColumns+" FROM media_items ORDER BY created_at DESC, id LIMIT ? OFFSET ?",
		pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := []MediaItem{}
	for rows.Next() {
		var item *MediaItem
		if item, err = scanItem(rows); err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	err = rows.Err()
	if err != nil {
		return nil, err
	}

	totalPages := (total + pageSize - 1) / pageSize
	return &ItemListing{
		Items:      items,
		TotalItems: total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

// GetAssets returns the derivative assets recorded for a media item.
func (s *Store) GetAssets(ctx context.Context, itemID string) ([]MediaAsset, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_assets", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, media_item_id, kind, rel_path, width, height, created_at, updated_at
		FROM media_assets WHERE media_item_id = ? ORDER BY kind`, itemID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var assets []MediaAsset
	for rows.Next() {
		var a MediaAsset
		var createdAt, updatedAt int64
		if err = rows.Scan(&a.ID, &a.MediaItemID, &a.Kind, &a.RelPath, &a.Width, &a.Height, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		a.CreatedAt = time.Unix(createdAt, 0)
		a.UpdatedAt = time.Unix(updatedAt, 0)
		assets = append(assets, a)
	}
	err = rows.Err()
	if err != nil {
		return nil, err
	}
	return assets, nil
}
