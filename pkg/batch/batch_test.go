package batch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("payload "+name), 0o644))
	}
}

func TestListFiles_Directory(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "dog.jpg", "cat.jpg", "bird.jpg")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	files, err := ListFiles(dir)
	require.NoError(t, err)

	// Sorted lexicographically, sub-directories excluded.
	assert.Equal(t, []string{
		filepath.Join(dir, "bird.jpg"),
		filepath.Join(dir, "cat.jpg"),
		filepath.Join(dir, "dog.jpg"),
	}, files)
}

func TestListFiles_SingleFile(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "cat.jpg")

	files, err := ListFiles(filepath.Join(dir, "cat.jpg"))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "cat.jpg")}, files)
}

func TestListFiles_Missing(t *testing.T) {
	_, err := ListFiles(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestListFiles_EmptyDirectory(t *testing.T) {
	_, err := ListFiles(t.TempDir())
	assert.Error(t, err)
}

func TestBuild_WithinCapacity(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "cat.jpg", "dog.jpg")

	files, err := ListFiles(dir)
	require.NoError(t, err)

	core, logs := observer.New(zap.DebugLevel)
	records, err := Build(zap.New(core), files, 8)
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, filepath.Join(dir, "cat.jpg"), records[0].Path)
	assert.Equal(t, []byte("payload cat.jpg"), records[0].Content)
	assert.Equal(t, []byte("payload dog.jpg"), records[1].Content)
	assert.Zero(t, logs.FilterLevelExact(zap.WarnLevel).Len())
}

func TestBuild_TruncatesToCapacity(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a.jpg", "b.jpg", "c.jpg", "d.jpg")

	files, err := ListFiles(dir)
	require.NoError(t, err)

	core, logs := observer.New(zap.DebugLevel)
	records, err := Build(zap.New(core), files, 2)
	require.NoError(t, err)

	// The first capacity names in sorted order survive.
	require.Len(t, records, 2)
	assert.Equal(t, filepath.Join(dir, "a.jpg"), records[0].Path)
	assert.Equal(t, filepath.Join(dir, "b.jpg"), records[1].Path)
	assert.Equal(t, 1, logs.FilterLevelExact(zap.WarnLevel).Len())
}

func TestBuild_UnreadableFileAborts(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a.jpg")

	_, err := Build(zap.NewNop(), []string{filepath.Join(dir, "a.jpg"), filepath.Join(dir, "gone.jpg")}, 8)
	assert.Error(t, err)
}
