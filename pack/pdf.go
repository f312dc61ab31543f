package pack

import (
	"context"
	"fmt"
	"image"
	"os"

	"github.com/signintech/gopdf"
)

// writePDF merges the images into a single document, one page per image,
// each page sized to its image. Protection is applied in the same pass as
// writing, so no unencrypted intermediate ever reaches disk.
func writePDF(ctx context.Context, dst string, images []string, params Params) error {
	pages, cleanup, err := preparePDFImages(images, params.Quality)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg := gopdf.Config{PageSize: *gopdf.PageSizeA4}
	if params.Encrypt {
		cfg.Protection = gopdf.PDFProtectionConfig{
			UseProtection: true,
			Permissions:   gopdf.PermissionsPrint | gopdf.PermissionsCopy,
			UserPass:      []byte(params.Password),
			OwnerPass:     []byte(params.Password),
		}
	}

	pdf := gopdf.GoPdf{}
	pdf.Start(cfg)

	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		w, h, err := imageSize(page)
		if err != nil {
			return fmt.Errorf("read image %s: %w", page, err)
		}
		rect := gopdf.Rect{W: float64(w), H: float64(h)}
		pdf.AddPageWithOption(gopdf.PageOption{PageSize: &rect})
		if err := pdf.Image(page, 0, 0, &rect); err != nil {
			return fmt.Errorf("place image %s: %w", page, err)
		}
	}

	return pdf.WritePdf(dst)
}

func imageSize(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}
