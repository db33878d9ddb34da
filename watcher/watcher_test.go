package watcher

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/relex/gotils/logger"
	"github.com/relex/slog-shipper/base"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileWatcherEnumerate(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.log", "b.log", "c.log.gz", "d.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x\n"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.log"), 0755))

	w, err := NewFileWatcher(logger.Root(), []string{"**/b.log"})
	require.NoError(t, err)

	paths, err := w.Enumerate(filepath.Join(dir, "*.log*"))
	assert.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.log"),
		filepath.Join(dir, "c.log.gz"),
	}, paths)

	_, err = w.Enumerate(filepath.Join(dir, "[z-"))
	assert.ErrorIs(t, err, base.ErrFileAccess)
}

func TestFileWatcherBadExclude(t *testing.T) {
	_, err := NewFileWatcher(logger.Root(), []string{"[a-"})
	assert.Error(t, err)
}

func TestFileWatcherOpenAllCollectsFailures(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.log")
	missing := filepath.Join(dir, "missing.log")
	require.NoError(t, os.WriteFile(good, []byte("x\n"), 0644))

	w, err := NewFileWatcher(logger.Root(), nil)
	require.NoError(t, err)

	files, err := w.OpenAll([]string{missing, good})
	if assert.Error(t, err) {
		assert.ErrorIs(t, err, base.ErrFileAccess)
		assert.Contains(t, err.Error(), missing)
	}
	if assert.Len(t, files, 1) {
		assert.Equal(t, good, files[0].Path)
		assert.NotZero(t, files[0].Inode)
		assert.NotNil(t, files[0].File)
	}

	// rename keeps identity
	moved := filepath.Join(dir, "moved.log")
	require.NoError(t, os.Rename(good, moved))
	movedFiles, err := w.OpenAll([]string{moved})
	assert.NoError(t, err)
	if assert.Len(t, movedFiles, 1) {
		assert.Equal(t, files[0].Inode, movedFiles[0].Inode)
	}

	assert.NoError(t, files[0].Close())
	w.CloseAll()
	assert.Nil(t, files[0].File)
	assert.Nil(t, movedFiles[0].File)
	w.CloseAll()
}
