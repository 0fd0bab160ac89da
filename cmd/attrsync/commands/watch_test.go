package commands

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchFile(t *testing.T) {
	path := writeFile(t, "catalog.yaml", "resources: []\n")
	other := path + ".bak"

	ctx, cancel := context.WithCancel(context.Background())
	changed := make(chan struct{}, 4)
	done := make(chan error, 1)
	go func() {
		done <- watchFile(ctx, path, func() { changed <- struct{}{} })
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(other, []byte("ignored\n"), 0600))
	select {
	case <-changed:
		t.Fatal("unrelated file triggered a change")
	case <-time.After(2 * watchDebounce):
	}

	require.NoError(t, os.WriteFile(path, []byte("resources: [{key: extra}]\n"), 0600))
	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("catalog change not observed")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}
