// Package pack turns a complete album workspace into a ZIP or PDF artifact.
package pack

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/MiaowFISH/jmcomic-crawler/album"
)

const (
	FormatZip = "zip"
	FormatPDF = "pdf"
)

// Params are the packaging knobs of one request.
type Params struct {
	Format      string // "zip" or "pdf"
	Quality     int    // 1..100 JPEG re-encode for PDF; 0 keeps originals
	Encrypt     bool
	Password    string
	Compression int // 0..9 deflate level for ZIP; 0 stores entries
}

type Packager struct {
	artifactsRoot string
	naming        Naming
	logger        *slog.Logger
}

func New(artifactsRoot string, naming Naming, logger *slog.Logger) *Packager {
	return &Packager{
		artifactsRoot: artifactsRoot,
		naming:        naming,
		logger:        logger,
	}
}

// Package writes the artifact for a complete workspace and returns its
// filename within the album's artifact directory. The artifact is built
// under a temporary name and renamed into place only on success, so a
// failed run never leaves a partial file the cache index could point at.
func (p *Packager) Package(ctx context.Context, ws *album.Workspace, params Params, cacheKey string) (string, error) {
	images, err := ws.CollectImages()
	if err != nil {
		return "", err
	}
	if len(images) == 0 {
		return "", fmt.Errorf("album %s: no images found for packaging", ws.AlbumID())
	}

	dir := filepath.Join(p.artifactsRoot, ws.AlbumID())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}

	filename := p.naming.Base(ws.AlbumID(), cacheKey) + "." + params.Format
	final := filepath.Join(dir, filename)
	tmp := final + ".part"

	switch params.Format {
	case FormatZip:
		err = writeZip(tmp, ws.Dir(), images, params)
	case FormatPDF:
		err = writePDF(ctx, tmp, images, params)
	default:
		err = fmt.Errorf("unsupported output format %q", params.Format)
	}
	if err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("package album %s as %s: %w", ws.AlbumID(), params.Format, err)
	}

	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("publish artifact: %w", err)
	}

	p.logger.Info("artifact written",
		"albumId", ws.AlbumID(),
		"filename", filename,
		"images", len(images),
		"encrypted", params.Encrypt,
	)
	return filename, nil
}
