package internal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tt "github.com/gnoswap-labs/borrowck/internal/types"
)

type watchResult struct {
	filename string
	issues   []tt.Issue
	err      error
}

func TestWatcher(t *testing.T) {
	t.Parallel()
	tempDir := createTempDir(t, "watch_test")

	w := NewWatcher(newTestEngine(t), nil, tempDir)
	w.SetSettleDelay(50 * time.Millisecond)
	results := make(chan watchResult, 8)
	w.OnReport(func(filename string, issues []tt.Issue, err error) {
		results <- watchResult{filename, issues, err}
	})

	require.NoError(t, w.Start())
	assert.ErrorIs(t, w.Start(), ErrAlreadyWatching)
	t.Cleanup(func() { assert.NoError(t, w.Stop()) })

	writeTrace(t, tempDir, "notes.txt", "not a trace\n")
	path := writeTrace(t, tempDir, "moved.own", "let a\nmove a -> b\nuse a\n")

	select {
	case got := <-results:
		require.NoError(t, got.err)
		assert.Equal(t, path, got.filename)
		assert.Equal(t, []string{"use-after-move"}, ruleNames(got.issues))
	case <-time.After(5 * time.Second):
		t.Fatal("no report for the written trace")
	}
}

func TestWatcher_IgnoresOtherEvents(t *testing.T) {
	t.Parallel()

	w := NewWatcher(newTestEngine(t), nil)
	w.watching = true

	w.handleFileEvent(fsnotify.Event{Name: "a.txt", Op: fsnotify.Write})
	w.handleFileEvent(fsnotify.Event{Name: "a.own", Op: fsnotify.Remove})
	w.handleFileEvent(fsnotify.Event{Name: "a.own", Op: fsnotify.Chmod})
	assert.Empty(t, w.pending)
}

func TestWatcher_StopWithoutStart(t *testing.T) {
	t.Parallel()

	w := NewWatcher(newTestEngine(t), nil)
	assert.NoError(t, w.Stop())
}

func TestWatcher_MissingDirectory(t *testing.T) {
	t.Parallel()
	tempDir := createTempDir(t, "watch_missing_test")

	w := NewWatcher(newTestEngine(t), nil, filepath.Join(tempDir, "absent"))
	assert.Error(t, w.Start())
	assert.NoError(t, w.Stop())
}
