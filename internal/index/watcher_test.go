package index

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_RebuildsOnChange(t *testing.T) {
	repo := newIndexRepo(t)
	idx, err := New(Config{Root: repo.Root}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, idx.Rebuild(context.Background()))
	require.Empty(t, idx.SearchByKeyword("greet"))

	w, err := NewWatcher(idx, nil)
	require.NoError(t, err)
	w.debounce = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	repo.WriteFile(t, "src/greet.ts", "export const greet = () => 'hi'\n")
	repo.Commit(t, "add greet")

	assert.Eventually(t, func() bool {
		return len(idx.SearchByKeyword("greet")) > 0
	}, 5*time.Second, 50*time.Millisecond)
}

func TestWatcher_StopIsClean(t *testing.T) {
	repo := newIndexRepo(t)
	idx, err := New(Config{Root: repo.Root}, nil, nil)
	require.NoError(t, err)

	w, err := NewWatcher(idx, nil)
	require.NoError(t, err)
	w.Start(context.Background())
	require.NoError(t, w.Stop())
	// Stopping again must not panic.
	require.NoError(t, w.Stop())
}

func TestWatcher_Ignored(t *testing.T) {
	repo := newIndexRepo(t)
	idx, err := New(Config{Root: repo.Root, SnapshotPath: repo.Root + "/.crew/index.json"}, nil, nil)
	require.NoError(t, err)

	w, err := NewWatcher(idx, nil)
	require.NoError(t, err)
	w.Start(context.Background())
	defer w.Stop()

	assert.True(t, w.ignored(repo.Root+"/.git/index.lock"))
	assert.True(t, w.ignored(repo.Root+"/.crew/index.json"))
	assert.True(t, w.ignored(repo.Root+"/.crew/index.json.tmp"))
	assert.False(t, w.ignored(repo.Root+"/src/feature.ts"))
}
