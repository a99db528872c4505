package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherCoalescesBurst(t *testing.T) {
	root := t.TempDir()
	w, err := New(root, &Options{Debounce: 100 * time.Millisecond})
	require.NoError(t, err)

	batches := make(chan []string, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(_ context.Context, changed []string) error {
			batches <- changed
			return nil
		})
	}()

	// Give the watcher a moment to register the root.
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.py"), []byte("x = 1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.py"), []byte("y = 2\n"), 0o644))

	select {
	case changed := <-batches:
		assert.GreaterOrEqual(t, len(changed), 2)
	case <-time.After(5 * time.Second):
		t.Fatal("no batch delivered")
	}

	// Quiet period must not trigger again.
	select {
	case changed := <-batches:
		t.Fatalf("unexpected extra batch: %v", changed)
	case <-time.After(300 * time.Millisecond):
	}

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestWatcherIgnoresPatterns(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))

	w, err := New(root, &Options{Debounce: 100 * time.Millisecond})
	require.NoError(t, err)

	batches := make(chan []string, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(_ context.Context, changed []string) error {
			batches <- changed
			return nil
		})
	}()

	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(root, ".git", "index"), []byte("ref"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "keep.swp"), []byte("swap"), 0o644))

	select {
	case changed := <-batches:
		t.Fatalf("ignored files triggered a batch: %v", changed)
	case <-time.After(400 * time.Millisecond):
	}

	require.NoError(t, os.WriteFile(filepath.Join(root, "real.py"), []byte("z = 3\n"), 0o644))
	select {
	case changed := <-batches:
		require.Len(t, changed, 1)
		assert.Equal(t, filepath.Join(root, "real.py"), changed[0])
	case <-time.After(5 * time.Second):
		t.Fatal("real change not delivered")
	}

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestWatcherPicksUpNewDirectories(t *testing.T) {
	root := t.TempDir()
	w, err := New(root, &Options{Debounce: 100 * time.Millisecond})
	require.NoError(t, err)

	batches := make(chan []string, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(_ context.Context, changed []string) error {
			batches <- changed
			return nil
		})
	}()

	time.Sleep(50 * time.Millisecond)

	sub := filepath.Join(root, "pkg")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	select {
	case <-batches:
	case <-time.After(5 * time.Second):
		t.Fatal("directory creation not delivered")
	}

	require.NoError(t, os.WriteFile(filepath.Join(sub, "mod.py"), []byte("w = 4\n"), 0o644))
	select {
	case changed := <-batches:
		assert.Contains(t, changed, filepath.Join(sub, "mod.py"))
	case <-time.After(5 * time.Second):
		t.Fatal("file in new directory not delivered")
	}

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestNewRejectsMissingRoot(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "absent"), nil)
	require.Error(t, err)
}
