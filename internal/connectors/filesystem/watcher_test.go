package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) add(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func startWatch(t *testing.T, root string) (*recorder, context.CancelFunc, <-chan error) {
	t.Helper()
	w := NewWatcher(NewScanner(markdownOnly, nil, nil), 50*time.Millisecond)
	rec := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx, root, rec.add) }()
	// Give fsnotify time to register the tree.
	time.Sleep(100 * time.Millisecond)
	return rec, cancel, done
}

func TestWatcher_DebouncesWrites(t *testing.T) {
	root := t.TempDir()
	rec, cancel, done := startWatch(t, root)
	defer cancel()

	path := filepath.Join(root, "paper.md")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte{byte('a' + i)}, 0o600))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "ignored.txt"), []byte("x"), 0o600))

	assert.Eventually(t, func() bool { return len(rec.snapshot()) > 0 }, 2*time.Second, 20*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, []Event{{Path: path}}, rec.snapshot())

	cancel()
	assert.NoError(t, <-done)
}

func TestWatcher_NewDirectoryAndRemoval(t *testing.T) {
	root := t.TempDir()
	existing := filepath.Join(root, "old.md")
	require.NoError(t, os.WriteFile(existing, []byte("x"), 0o600))

	rec, cancel, done := startWatch(t, root)
	defer cancel()

	sub := filepath.Join(root, "batch")
	require.NoError(t, os.Mkdir(sub, 0o755))
	time.Sleep(100 * time.Millisecond)
	created := filepath.Join(sub, "new.md")
	require.NoError(t, os.WriteFile(created, []byte("x"), 0o600))
	require.NoError(t, os.Remove(existing))

	assert.Eventually(t, func() bool {
		var sawNew, sawRemoved bool
		for _, ev := range rec.snapshot() {
			sawNew = sawNew || (ev.Path == created && !ev.Removed)
			sawRemoved = sawRemoved || (ev.Path == existing && ev.Removed)
		}
		return sawNew && sawRemoved
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestWatcher_Errors(t *testing.T) {
	w := NewWatcher(NewScanner(nil, nil, nil), 0)
	err := w.Watch(context.Background(), "/non/existent/path", func(Event) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "root path error")

	w.Close()
	assert.ErrorIs(t, w.Watch(context.Background(), t.TempDir(), func(Event) {}), ErrWatcherClosed)
}
