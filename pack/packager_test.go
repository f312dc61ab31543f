package pack

import (
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/MiaowFISH/jmcomic-crawler/album"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeka/zip"
)

const testCacheKey = "a3f1c9d2e5b7a3f1c9d2e5b7a3f1c9d2e5b7a3f1c9d2e5b7a3f1c9d2e5b7a3f1"

func encodeImage(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 24))
	for y := 0; y < 24; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 16), G: uint8(y * 10), B: 128, A: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	switch filepath.Ext(path) {
	case ".png":
		require.NoError(t, png.Encode(f, img))
	default:
		require.NoError(t, jpeg.Encode(f, img, nil))
	}
}

func packTestWorkspace(t *testing.T) *album.Workspace {
	t.Helper()
	ws, err := album.NewStore(t.TempDir()).Open("1000")
	require.NoError(t, err)
	dir, err := ws.ChapterDir("001_chapter")
	require.NoError(t, err)
	encodeImage(t, filepath.Join(dir, "p0001.jpg"))
	encodeImage(t, filepath.Join(dir, "p0002.png"))
	require.NoError(t, ws.MarkComplete())
	return ws
}

func testPackager(t *testing.T) *Packager {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(t.TempDir(), Naming{Rule: "short_hash", HashLength: 8}, logger)
}

func TestPackager_Zip(t *testing.T) {
	ws := packTestWorkspace(t)
	p := testPackager(t)

	filename, err := p.Package(context.Background(), ws, Params{Format: FormatZip, Compression: 6}, testCacheKey)
	require.NoError(t, err)
	assert.Equal(t, "a3f1c9d2.zip", filename)

	rc, err := zip.OpenReader(filepath.Join(p.artifactsRoot, "1000", filename))
	require.NoError(t, err)
	defer rc.Close()

	names := make(map[string]bool)
	for _, f := range rc.File {
		assert.False(t, f.IsEncrypted())
		names[f.Name] = true
		r, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(r)
		r.Close()
		require.NoError(t, err)
		assert.NotEmpty(t, data)
	}
	assert.True(t, names["001_chapter/p0001.jpg"])
	assert.True(t, names["001_chapter/p0002.png"])
}

func TestPackager_EncryptedZip(t *testing.T) {
	ws := packTestWorkspace(t)
	p := testPackager(t)

	filename, err := p.Package(context.Background(), ws, Params{
		Format:      FormatZip,
		Encrypt:     true,
		Password:    "s3cretpass",
		Compression: 6,
	}, testCacheKey)
	require.NoError(t, err)

	rc, err := zip.OpenReader(filepath.Join(p.artifactsRoot, "1000", filename))
	require.NoError(t, err)
	defer rc.Close()

	require.NotEmpty(t, rc.File)
	for _, f := range rc.File {
		require.True(t, f.IsEncrypted())
		f.SetPassword("s3cretpass")
		r, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(r)
		r.Close()
		require.NoError(t, err)
		assert.NotEmpty(t, data)
	}
}

func TestPackager_PDF(t *testing.T) {
	t.Run("original images", func(t *testing.T) {
		ws := packTestWorkspace(t)
		p := testPackager(t)

		filename, err := p.Package(context.Background(), ws, Params{Format: FormatPDF}, testCacheKey)
		require.NoError(t, err)
		assert.Equal(t, "a3f1c9d2.pdf", filename)
		assertPDF(t, filepath.Join(p.artifactsRoot, "1000", filename))
	})

	t.Run("quality re-encode", func(t *testing.T) {
		ws := packTestWorkspace(t)
		p := testPackager(t)

		filename, err := p.Package(context.Background(), ws, Params{Format: FormatPDF, Quality: 70}, testCacheKey)
		require.NoError(t, err)
		assertPDF(t, filepath.Join(p.artifactsRoot, "1000", filename))
	})

	t.Run("encrypted", func(t *testing.T) {
		ws := packTestWorkspace(t)
		p := testPackager(t)

		filename, err := p.Package(context.Background(), ws, Params{
			Format:   FormatPDF,
			Encrypt:  true,
			Password: "s3cretpass",
		}, testCacheKey)
		require.NoError(t, err)
		assertPDF(t, filepath.Join(p.artifactsRoot, "1000", filename))
	})
}

func assertPDF(t *testing.T, path string) {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(raw), 4)
	assert.Equal(t, "%PDF", string(raw[:4]))
}

func TestPackager_EmptyWorkspaceFails(t *testing.T) {
	ws, err := album.NewStore(t.TempDir()).Open("1000")
	require.NoError(t, err)
	p := testPackager(t)

	_, err = p.Package(context.Background(), ws, Params{Format: FormatZip}, testCacheKey)
	assert.Error(t, err)

	// No partial artifact is left behind.
	entries, err := os.ReadDir(filepath.Join(p.artifactsRoot, "1000"))
	if err == nil {
		assert.Empty(t, entries)
	}
}

func TestPackager_UnsupportedFormat(t *testing.T) {
	ws := packTestWorkspace(t)
	p := testPackager(t)

	_, err := p.Package(context.Background(), ws, Params{Format: "rar"}, testCacheKey)
	assert.ErrorContains(t, err, "unsupported output format")
}
