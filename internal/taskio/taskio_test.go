package taskio

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "prompt.json"), `{"prompt": "build a fifo", "target_file": "rtl/fifo.v"}`)
	writeFile(t, filepath.Join(dir, "docs", "spec.md"), "depth 16")
	writeFile(t, filepath.Join(dir, "rtl", "existing.v"), "module existing(); endmodule")

	task, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "build a fifo", task.Description)
	assert.Equal(t, filepath.Join(dir, "rtl/fifo.v"), task.TargetFile)
	assert.Equal(t, "depth 16", task.ContextFiles["docs/spec.md"])
	assert.Contains(t, task.ContextFiles, "rtl/existing.v")
}

func TestLoadDefaultsTarget(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "prompt.json"), `{"prompt": "counter"}`)

	task, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "generated.v"), task.TargetFile)
	assert.Nil(t, task.ContextFiles)
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing prompt.json", func(t *testing.T) {
		_, err := Load(t.TempDir())
		assert.Error(t, err)
	})

	t.Run("malformed json", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "prompt.json"), "{not json")
		_, err := Load(dir)
		assert.Error(t, err)
	})

	t.Run("empty prompt", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "prompt.json"), `{"prompt": "  "}`)
		_, err := Load(dir)
		assert.Error(t, err)
	})
}

func TestScanContextSkipsOversized(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "docs", "big.md"), string(make([]byte, maxContextFileSize+1)))
	writeFile(t, filepath.Join(dir, "docs", "small.md"), "ok")

	files := ScanContext(dir)
	assert.NotContains(t, files, "docs/big.md")
	assert.Contains(t, files, "docs/small.md")
}

func TestWatchTriggersOnPromptChange(t *testing.T) {
	dir := t.TempDir()
	promptPath := filepath.Join(dir, "prompt.json")
	writeFile(t, promptPath, `{"prompt": "v1"}`)

	var fired atomic.Int32
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, dir, func() {
			fired.Add(1)
			cancel()
		})
	}()

	// Give the watcher time to register before writing.
	time.Sleep(200 * time.Millisecond)
	writeFile(t, promptPath, `{"prompt": "v2"}`)

	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), fired.Load())
}

func TestWatchIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "prompt.json"), `{"prompt": "v1"}`)

	var fired atomic.Int32
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, dir, func() { fired.Add(1) })
	}()

	time.Sleep(200 * time.Millisecond)
	writeFile(t, filepath.Join(dir, "notes.txt"), "irrelevant")

	err := <-done
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(0), fired.Load())
}
