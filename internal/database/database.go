package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"media-ingest/internal/logging"
	"media-ingest/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// ErrConflict is returned when an insert collides with an existing row's
// identity, before the enclosing transaction is committed.
var ErrConflict = errors.New("identity already exists")

// Store manages all database operations for the ingest service.
type Store struct {
	db     *sql.DB
	dbPath string
}

// New creates a new Store instance.
// dbPath is the full path to the database file; the parent directory must
// already exist and be writable (config.Load ensures this).
func New(ctx context.Context, dbPath string) (*Store, error) {
	logging.Info("Database path: %s", dbPath)

	// WAL mode and busy_timeout keep concurrent ingest and asset runs from
	// tripping over "database is locked" errors.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{
		db:     db,
		dbPath: dbPath,
	}

	if err := s.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Database initialized successfully at %s", dbPath)
	return s, nil
}

func (s *Store) initialize(ctx context.Context) error {
	schema := `
	-- Ingested media items; (bucket, item, ext) mirrors the on-disk layout
	CREATE TABLE IF NOT EXISTS media_items (
		id TEXT PRIMARY KEY,
		bucket TEXT NOT NULL,
		item TEXT NOT NULL,
		ext TEXT NOT NULL,
		kind TEXT NOT NULL DEFAULT 'video',
		size_bytes INTEGER NOT NULL DEFAULT 0,
		hash_sha256 TEXT,
		duration_sec INTEGER,
		width INTEGER,
		height INTEGER,
		fps REAL,
		bitrate INTEGER,
		codec_video TEXT NOT NULL DEFAULT '',
		codec_audio TEXT NOT NULL DEFAULT '',
		container TEXT NOT NULL DEFAULT '',
		aspect_ratio TEXT NOT NULL DEFAULT '',
		language TEXT NOT NULL DEFAULT '',
		has_subtitles INTEGER NOT NULL DEFAULT 0,
		favorite INTEGER NOT NULL DEFAULT 0,
		rating INTEGER,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		UNIQUE(bucket, item, ext)
	);

	CREATE INDEX IF NOT EXISTS idx_media_items_bucket ON media_items(bucket);
	CREATE INDEX IF NOT EXISTS idx_media_items_hash ON media_items(hash_sha256);
	CREATE INDEX IF NOT EXISTS idx_media_items_kind ON media_items(kind);

	-- Derivative assets; one row per (item, kind)
	CREATE TABLE IF NOT EXISTS media_assets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		media_item_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		rel_path TEXT NOT NULL,
		width INTEGER NOT NULL DEFAULT 0,
		height INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		FOREIGN KEY (media_item_id) REFERENCES media_items(id) ON DELETE CASCADE,
		UNIQUE(media_item_id, kind)
	);

	CREATE INDEX IF NOT EXISTS idx_media_assets_item ON media_assets(media_item_id);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Begin starts a transaction for a single-item ingest. The caller commits or
// rolls back; the transaction's lifetime is managed by the caller, not a
// timeout.
func (s *Store) Begin(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, nil)
}

// CreateItem inserts a media item inside tx. A collision on the identity
// triplet surfaces as ErrConflict at exec time, while the transaction is
// still open, so the caller can roll back without touching disk.
func (s *Store) CreateItem(ctx context.Context, tx *sql.Tx, item *MediaItem) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("create_item", start, err) }()

	query := `
	INSERT INTO media_items (
		id, bucket, item, ext, kind, size_bytes, hash_sha256,
		duration_sec, width, height, fps, bitrate,
		codec_video, codec_audio, container, aspect_ratio, language, has_subtitles
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = tx.ExecContext(ctx, query,
		item.ID,
		item.Bucket,
		item.Item,
		item.Ext,
		item.Kind,
		item.SizeBytes,
		item.HashSHA256,
		item.DurationSec,
		item.Width,
		item.Height,
		item.FPS,
		item.Bitrate,
		item.CodecVideo,
		item.CodecAudio,
		item.Container,
		item.AspectRatio,
		item.Language,
		boolToInt(item.HasSubtitles),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			err = fmt.Errorf("%s/%s.%s: %w", item.Bucket, item.Item, item.Ext, ErrConflict)
		}
		return err
	}
	return nil
}

// UpsertAsset records a derivative asset for a media item, replacing any
// existing row of the same kind.
func (s *Store) UpsertAsset(ctx context.Context, itemID string, kind AssetKind, relPath string, width, height int) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("upsert_asset", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := `
	INSERT INTO media_assets (media_item_id, kind, rel_path, width, height)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(media_item_id, kind) DO UPDATE SET
		rel_path = excluded.rel_path,
		width = excluded.width,
		height = excluded.height,
		updated_at = strftime('%s', 'now')
	`

	_, err = s.db.ExecContext(ctx, query, itemID, kind, relPath, width, height)
	return err
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
