package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestWatcherDebouncesRebuilds(t *testing.T) {
	dir := t.TempDir()
	var rebuilds atomic.Int32
	done := make(chan struct{}, 4)
	w, err := New(dir, []string{".txt"}, 100*time.Millisecond, func(context.Context) error {
		rebuilds.Add(1)
		done <- struct{}{}
		return nil
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	for i := 0; i < 3; i++ {
		if err := os.WriteFile(filepath.Join(dir, "ders_plani.txt"), []byte("CSE3063"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.md"), []byte("ignored"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("expected a rebuild")
	}
	time.Sleep(300 * time.Millisecond)
	if n := rebuilds.Load(); n != 1 {
		t.Fatalf("expected one debounced rebuild, got %d", n)
	}
}

func TestWatcherIgnoresOtherExtensions(t *testing.T) {
	dir := t.TempDir()
	var rebuilds atomic.Int32
	w, err := New(dir, []string{".txt"}, 50*time.Millisecond, func(context.Context) error {
		rebuilds.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	if err := os.WriteFile(filepath.Join(dir, "draft.md"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	time.Sleep(300 * time.Millisecond)
	if n := rebuilds.Load(); n != 0 {
		t.Fatalf("expected no rebuild, got %d", n)
	}
}

func TestNewRequiresRebuild(t *testing.T) {
	if _, err := New(t.TempDir(), nil, 0, nil); err == nil {
		t.Fatalf("expected error for nil rebuild func")
	}
}

func TestWatcherRebuildsWhenDirectoryMovedIn(t *testing.T) {
	root := t.TempDir()
	corpus := filepath.Join(root, "corpus")
	staging := filepath.Join(root, "staging")
	for _, dir := range []string{corpus, staging} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(staging, "yonetmelik.txt"), []byte("MADDE 1"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	done := make(chan struct{}, 4)
	w, err := New(corpus, []string{".txt"}, 50*time.Millisecond, func(context.Context) error {
		done <- struct{}{}
		return nil
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	if err := os.Rename(staging, filepath.Join(corpus, "yeni")); err != nil {
		t.Fatalf("rename: %v", err)
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("expected a rebuild after a directory of corpus files moved in")
	}
}

func TestAddTreeReportsAcceptedFiles(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, []string{".txt"}, 0, func(context.Context) error { return nil })
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer w.watcher.Close()

	notes := filepath.Join(dir, "notes")
	if err := os.MkdirAll(notes, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(notes, "a.md"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if found, err := w.addTree(notes); err != nil || found {
		t.Fatalf("addTree(notes) = %v, %v; want false", found, err)
	}
	if err := os.WriteFile(filepath.Join(notes, "b.TXT"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if found, err := w.addTree(notes); err != nil || !found {
		t.Fatalf("addTree(notes) = %v, %v; want true", found, err)
	}
}
