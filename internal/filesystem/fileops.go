// Package filesystem implements the local file operations behind ingest
// placement: directory creation and idempotent, replace-on-collision moves.
package filesystem

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// MoveError wraps a failed move with both endpoints attached for reports.
type MoveError struct {
	Src string
	Dst string
	Err error
}

func (e *MoveError) Error() string {
	return fmt.Sprintf("move %s -> %s: %v", e.Src, e.Dst, e.Err)
}

func (e *MoveError) Unwrap() error {
	return e.Err
}

// EnsureDir creates path (and parents) when absent.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("ensure dir %s: %w", path, err)
	}
	return nil
}

// MoveReplacing moves src to dst, replacing an existing destination file.
// The replace makes re-runs idempotent. Rename is attempted first; when
// the endpoints sit on different filesystems it falls back to copy+unlink.
func MoveReplacing(src, dst string) error {
	if _, err := os.Stat(src); err != nil {
		return &MoveError{Src: src, Dst: dst, Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return &MoveError{Src: src, Dst: dst, Err: err}
	}

	// os.Rename replaces an existing destination atomically on the same
	// filesystem.
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	if err := copyFile(src, dst); err != nil {
		return &MoveError{Src: src, Dst: dst, Err: err}
	}
	if err := os.Remove(src); err != nil {
		return &MoveError{Src: src, Dst: dst, Err: fmt.Errorf("remove source after copy: %w", err)}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	// Stage beside the destination so the final rename stays atomic.
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".move-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, dst)
}
