package album

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeImage(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("img"), 0o644))
	return path
}

func TestWorkspace_MetadataRoundtrip(t *testing.T) {
	root := t.TempDir()

	store := NewStore(root)
	ws, err := store.Open("1000")
	require.NoError(t, err)

	ws.SetAlbumInfo("Some Album", "Someone", []string{"a", "b"}, 2)
	dir, err := ws.ChapterDir("001_first")
	require.NoError(t, err)
	writeImage(t, dir, "p0001.jpg")
	writeImage(t, dir, "p0002.jpg")
	ws.RecordImage(ImageRef{Chapter: "001_first", Page: 1, URL: "http://x/1.jpg", Path: "001_first/p0001.jpg"})
	ws.RecordImage(ImageRef{Chapter: "001_first", Page: 2, URL: "http://x/2.jpg", Path: "001_first/p0002.jpg"})
	require.NoError(t, ws.MarkComplete())

	// A fresh store reading the same directory sees the persisted state.
	reopened, err := NewStore(root).Open("1000")
	require.NoError(t, err)
	meta := reopened.Metadata()
	assert.Equal(t, "1000", meta.AlbumID)
	assert.Equal(t, "Some Album", meta.Title)
	assert.Equal(t, "Someone", meta.Author)
	assert.Equal(t, []string{"a", "b"}, meta.Tags)
	assert.Equal(t, 2, meta.PageCount)
	assert.Equal(t, 2, meta.TotalImages)
	assert.Len(t, meta.Images, 2)
	assert.True(t, reopened.Complete())
}

func TestWorkspace_Complete(t *testing.T) {
	t.Run("false before MarkComplete", func(t *testing.T) {
		ws, err := NewStore(t.TempDir()).Open("1000")
		require.NoError(t, err)
		dir, err := ws.ChapterDir("001")
		require.NoError(t, err)
		writeImage(t, dir, "p0001.jpg")
		assert.False(t, ws.Complete())
	})

	t.Run("MarkComplete with no images fails", func(t *testing.T) {
		ws, err := NewStore(t.TempDir()).Open("1000")
		require.NoError(t, err)
		assert.Error(t, ws.MarkComplete())
		assert.False(t, ws.Complete())
	})

	t.Run("deleting images demotes a complete workspace", func(t *testing.T) {
		ws, err := NewStore(t.TempDir()).Open("1000")
		require.NoError(t, err)
		ws.SetAlbumInfo("", "", nil, 2)
		dir, err := ws.ChapterDir("001")
		require.NoError(t, err)
		first := writeImage(t, dir, "p0001.jpg")
		writeImage(t, dir, "p0002.jpg")
		require.NoError(t, ws.MarkComplete())
		require.True(t, ws.Complete())

		require.NoError(t, os.Remove(first))
		assert.False(t, ws.Complete())
	})

	t.Run("unknown page count falls back to the disk count", func(t *testing.T) {
		ws, err := NewStore(t.TempDir()).Open("1000")
		require.NoError(t, err)
		dir, err := ws.ChapterDir("001")
		require.NoError(t, err)
		writeImage(t, dir, "p0001.jpg")
		require.NoError(t, ws.MarkComplete())
		assert.Equal(t, 1, ws.Metadata().PageCount)
		assert.True(t, ws.Complete())
	})
}

func TestWorkspace_CollectImages(t *testing.T) {
	ws, err := NewStore(t.TempDir()).Open("1000")
	require.NoError(t, err)

	dir2, err := ws.ChapterDir("002_second")
	require.NoError(t, err)
	dir1, err := ws.ChapterDir("001_first")
	require.NoError(t, err)
	writeImage(t, dir2, "p0001.png")
	writeImage(t, dir1, "p0002.jpg")
	writeImage(t, dir1, "p0001.webp")
	require.NoError(t, os.WriteFile(filepath.Join(dir1, "notes.txt"), []byte("x"), 0o644))

	images, err := ws.CollectImages()
	require.NoError(t, err)
	require.Len(t, images, 3)
	// Chapter order first, filename order within a chapter.
	assert.Equal(t, filepath.Join(dir1, "p0001.webp"), images[0])
	assert.Equal(t, filepath.Join(dir1, "p0002.jpg"), images[1])
	assert.Equal(t, filepath.Join(dir2, "p0001.png"), images[2])
}

func TestStore_SharesInstances(t *testing.T) {
	store := NewStore(t.TempDir())
	a, err := store.Open("1000")
	require.NoError(t, err)
	b, err := store.Open("1000")
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "a_b_c", sanitizeName("a/b\\c"))
	assert.Equal(t, "_", sanitizeName(".."))
	assert.Equal(t, "_", sanitizeName(""))
}
