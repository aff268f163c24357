package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveAndOpen(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	rel, err := store.Save("job-1/directory-export.csv", []byte("id,title\n"))
	require.NoError(t, err)
	assert.Equal(t, "job-1/directory-export.csv", rel)

	file, err := store.Open(rel)
	require.NoError(t, err)
	defer file.Close()
}

func TestLocalStorageRejectsEscapingPaths(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"/etc/passwd", "../outside.csv", "..", "job/../../outside.csv"} {
		_, err := store.Save(name, []byte("x"))
		assert.Error(t, err, name)
	}
}

func TestLocalStorageCleanupOlderThan(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir)
	require.NoError(t, err)

	_, err = store.Save("job-old/export.csv", []byte("old"))
	require.NoError(t, err)
	_, err = store.Save("job-new/export.csv", []byte("new"))
	require.NoError(t, err)

	stale := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "job-old", "export.csv"), stale, stale))

	deleted, err := store.CleanupOlderThan(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join("job-old", "export.csv")}, deleted)

	_, err = store.Open("job-old/export.csv")
	assert.Error(t, err)
	kept, err := store.Open("job-new/export.csv")
	require.NoError(t, err)
	kept.Close()
}
