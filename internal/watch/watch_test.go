package watch

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fsnotify goroutines on Windows are not tracked reliably by goleak")
	}
}

func TestWatcher_RunsHandlerAfterWrite(t *testing.T) {
	skipOnWindows(t)
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "rules.nero")
	require.NoError(t, os.WriteFile(path, []byte("A(1);\n"), 0644))

	var mu sync.Mutex
	var seen []string
	done := make(chan struct{}, 1)
	handler := func(_ context.Context, p string) error {
		mu.Lock()
		seen = append(seen, p)
		mu.Unlock()
		select {
		case done <- struct{}{}:
		default:
		}
		return nil
	}

	w, err := New([]string{path}, 20*time.Millisecond, handler, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("A(2);\n"), 0644))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("handler was not called")
	}

	mu.Lock()
	defer mu.Unlock()
	want, err := filepath.Abs(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Clean(want), seen[0])
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	skipOnWindows(t)
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "rules.nero")
	require.NoError(t, os.WriteFile(path, []byte("A(1);\n"), 0644))

	calls := 0
	var mu sync.Mutex
	w, err := New([]string{path}, 10*time.Millisecond, func(context.Context, string) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil
	}, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0644))
	time.Sleep(200 * time.Millisecond)
	w.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, calls)
	assert.Zero(t, w.Stats().Events)
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	skipOnWindows(t)
	defer goleak.VerifyNone(t)

	path := filepath.Join(t.TempDir(), "rules.nero")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	w, err := New([]string{path}, time.Millisecond, func(context.Context, string) error { return nil }, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Start(context.Background()))
	w.Stop()
	w.Stop()
}

func TestWatcher_ContextCancelEndsLoop(t *testing.T) {
	skipOnWindows(t)
	defer goleak.VerifyNone(t)

	path := filepath.Join(t.TempDir(), "rules.nero")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	ctx, cancel := context.WithCancel(context.Background())
	w, err := New([]string{path}, time.Millisecond, func(context.Context, string) error { return nil }, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(ctx))
	cancel()
	w.Stop()
}
