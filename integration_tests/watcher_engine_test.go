//go:build integration
// +build integration

package integration_tests

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/reportsmith/internal/types"
	"github.com/conneroisu/reportsmith/internal/watcher"
)

func startWatcher(t *testing.T, ctx context.Context, dir string, handler watcher.ChangeHandler) {
	t.Helper()
	fw, err := watcher.NewFileWatcher(50*time.Millisecond, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = fw.Stop() })

	fw.AddFilter(watcher.TemplateFilter)
	fw.AddFilter(watcher.NoHiddenFilter)
	fw.AddHandler(handler)
	require.NoError(t, fw.AddPath(dir))
	require.NoError(t, fw.Start(ctx))
}

func TestIntegration_WatcherEngine_DroppedFiles(t *testing.T) {
	dir, e := newPipeline(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	events := e.Registry().Watch()
	defer e.Registry().UnWatch(events)
	startWatcher(t, ctx, dir, e.FileChangeHandler(ctx))

	badPath := writeTemplate(t, dir, "exfiltrate.jsx", dangerousTemplate)
	require.Eventually(t, func() bool {
		_, err := os.Stat(badPath)
		return os.IsNotExist(err)
	}, 5*time.Second, 50*time.Millisecond, "rejected template was not deleted")

	writeTemplate(t, dir, "box-table.jsx", cleanTemplate)
	require.Eventually(t, func() bool {
		_, ok := e.Registry().Get("box-table")
		return ok
	}, 5*time.Second, 50*time.Millisecond, "accepted template was not registered")

	var sawRejected bool
	for !sawRejected {
		select {
		case ev := <-events:
			if ev.Type == types.EventTypeRejected && ev.Name == "exfiltrate" {
				sawRejected = true
				require.NotEmpty(t, ev.Findings)
				assert.Equal(t, "Sensitive Module Require", ev.Findings[0].Category)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("no rejected event for exfiltrate")
		}
	}

	require.NoError(t, os.Remove(writeTemplate(t, dir, "box-table.jsx", cleanTemplate)))
	require.Eventually(t, func() bool {
		_, ok := e.Registry().Get("box-table")
		return !ok
	}, 5*time.Second, 50*time.Millisecond, "deleted template stayed registered")
}

func TestIntegration_WatcherEngine_StartupRevalidation(t *testing.T) {
	dir, e := newPipeline(t)
	writeTemplate(t, dir, "box-table.jsx", cleanTemplate)
	badPath := writeTemplate(t, dir, "exfiltrate.jsx", dangerousTemplate)

	rejected, err := e.RevalidateAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"exfiltrate"}, rejected)
	assert.Equal(t, []string{"box-table"}, e.Registry().Names())

	_, err = os.Stat(badPath)
	assert.True(t, os.IsNotExist(err))
}
