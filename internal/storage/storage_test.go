package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileReadWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "memory.txt")
	f := File{Path: path}

	_, err := f.Read()
	assert.True(t, IsNotExist(err))

	require.NoError(t, f.Write([]byte("a\nb")))
	data, err := f.Read()
	require.NoError(t, err)
	assert.Equal(t, "a\nb", string(data))

	require.NoError(t, f.Write([]byte("c")))
	data, err = f.Read()
	require.NoError(t, err)
	assert.Equal(t, "c", string(data))

	// no temp files left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestMemBlob(t *testing.T) {
	b := &MemBlob{}
	_, err := b.Read()
	assert.True(t, IsNotExist(err))

	require.NoError(t, b.Write([]byte("x")))
	data, err := b.Read()
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
	assert.Equal(t, 1, b.Writes)
}

func TestArchiveLatestIndex(t *testing.T) {
	dir := t.TempDir()
	a, err := NewArchive(dir, time.Minute)
	require.NoError(t, err)

	n, err := a.LatestIndex()
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, a.SaveFrame(2, []byte("png")))
	require.NoError(t, a.SaveFrame(11, []byte("png")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "screenshot_x.png"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "screenshot_40.txt"), nil, 0644))

	n, err = a.LatestIndex()
	require.NoError(t, err)
	assert.Equal(t, 11, n)
}

func TestArchiveDescriptions(t *testing.T) {
	dir := t.TempDir()
	a, err := NewArchive(dir, time.Minute)
	require.NoError(t, err)

	_, ok, err := a.Description(3)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, a.SaveDescription(3, "title screen"))
	text, ok, err := a.Description(3)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "title screen", text)

	// a fresh archive reads from disk
	b, err := NewArchive(dir, time.Minute)
	require.NoError(t, err)
	text, ok, err = b.Description(3)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "title screen", text)
	assert.FileExists(t, filepath.Join(dir, "screenshot_3.txt"))
}
