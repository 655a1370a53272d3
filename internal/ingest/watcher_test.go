package ingest

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestWatcherTriggersAfterQuietPeriod(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	var runs atomic.Int64
	w, err := NewWatcher(root, 50*time.Millisecond, func(context.Context) {
		runs.Add(1)
	})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer func() { _ = w.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = w.Start(ctx)
		close(done)
	}()

	// Give the watch registration a moment before writing.
	time.Sleep(50 * time.Millisecond)

	// A burst of writes should coalesce into a single run.
	for i := 0; i < 3; i++ {
		name := filepath.Join(root, "clip.mp4")
		if err := os.WriteFile(name, []byte("data"), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	deadline := time.After(2 * time.Second)
	for runs.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("watcher never triggered")
		case <-time.After(10 * time.Millisecond):
		}
	}

	// Quiet period with no events: no further runs.
	time.Sleep(200 * time.Millisecond)
	if n := runs.Load(); n != 1 {
		t.Errorf("runs = %d, want 1", n)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop on cancel")
	}
}

func TestWatcherCoversSubdirectories(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	pre := filepath.Join(root, "batch1")
	if err := os.MkdirAll(pre, 0o755); err != nil {
		t.Fatal(err)
	}

	var runs atomic.Int64
	w, err := NewWatcher(root, 50*time.Millisecond, func(context.Context) {
		runs.Add(1)
	})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer func() { _ = w.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Start(ctx) }()
	time.Sleep(50 * time.Millisecond)

	// A file in a directory that existed before the watch started.
	if err := os.WriteFile(filepath.Join(pre, "clip.mp4"), []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for runs.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("file in pre-existing subdirectory never triggered a run")
		case <-time.After(10 * time.Millisecond):
		}
	}

	// A directory created after the watch started is picked up too.
	post := filepath.Join(root, "batch2")
	if err := os.MkdirAll(post, 0o755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	before := runs.Load()
	if err := os.WriteFile(filepath.Join(post, "clip.mp4"), []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline = time.After(2 * time.Second)
	for runs.Load() == before {
		select {
		case <-deadline:
			t.Fatal("file in new subdirectory never triggered a run")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestWatcherIgnoresHiddenFiles(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	var runs atomic.Int64
	w, err := NewWatcher(root, 50*time.Millisecond, func(context.Context) {
		runs.Add(1)
	})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer func() { _ = w.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Start(ctx) }()
	time.Sleep(50 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(root, ".upload.partial"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	time.Sleep(300 * time.Millisecond)
	if n := runs.Load(); n != 0 {
		t.Errorf("runs = %d, want 0 for hidden file", n)
	}
}
