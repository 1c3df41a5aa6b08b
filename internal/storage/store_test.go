package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskStoreSaveAndExists(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	path, err := store.Save("abc", []byte("payload"))
	require.NoError(t, err)
	assert.Equal(t, ".dcm", filepath.Ext(path))
	assert.True(t, store.Exists(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
}

func TestDiskStoreExistsOnMissing(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	assert.False(t, store.Exists(""))
	assert.False(t, store.Exists(filepath.Join(store.Dir(), "nope.dcm")))
}

func TestNewDiskStoreCreatesNestedDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	store, err := NewDiskStore(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, store.Dir())
}
