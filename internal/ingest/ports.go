// Package ingest plans and executes the placement of incoming media files
// into the sharded media tree, one transactional unit of work per file.
package ingest

import (
	"context"
	"database/sql"

	"media-ingest/internal/database"
	"media-ingest/internal/filesystem"
	"media-ingest/internal/hashing"
	"media-ingest/internal/probe"
)

// MetadataQuery is the read side of the metadata store as the planner and
// coordinator need it.
type MetadataQuery interface {
	CountItemsByBucket(ctx context.Context) (map[string]int, error)
	IterateFolders(ctx context.Context) ([]string, error)
	ExistsByDigest(ctx context.Context, digest string) (bool, error)
}

// MetadataMutation is the write side. CreateItem must surface an identity
// collision as database.ErrConflict at exec time, inside the open
// transaction.
type MetadataMutation interface {
	Begin(ctx context.Context) (*sql.Tx, error)
	CreateItem(ctx context.Context, tx *sql.Tx, item *database.MediaItem) error
}

// Prober extracts technical metadata from a media file.
type Prober interface {
	Probe(ctx context.Context, path string) (*probe.TechInfo, error)
}

// Hasher digests a file's content.
type Hasher interface {
	DigestFile(path string) (digest string, size int64, err error)
}

// FileOps covers the filesystem effects of an ingest.
type FileOps interface {
	EnsureDir(path string) error
	MoveReplacing(src, dst string) error
}

type diskFileOps struct{}

func (diskFileOps) EnsureDir(path string) error          { return filesystem.EnsureDir(path) }
func (diskFileOps) MoveReplacing(src, dst string) error  { return filesystem.MoveReplacing(src, dst) }

// DiskFileOps returns the real-filesystem FileOps implementation.
func DiskFileOps() FileOps { return diskFileOps{} }

type sha256Hasher struct{}

func (sha256Hasher) DigestFile(path string) (string, int64, error) {
	return hashing.DigestFile(path)
}

// SHA256Hasher returns the streaming SHA-256 Hasher implementation.
func SHA256Hasher() Hasher { return sha256Hasher{} }
