package pack

import (
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"

	_ "image/png"

	_ "golang.org/x/image/webp"
)

const defaultJPEGQuality = 90

// preparePDFImages returns the page images for the PDF pass. Images are
// re-encoded to JPEG when a quality was requested, and always when the
// source format is not embeddable (gopdf understands JPEG and PNG only).
// The returned cleanup removes the staging directory, if one was needed.
func preparePDFImages(images []string, quality int) ([]string, func(), error) {
	staging := ""
	cleanup := func() {
		if staging != "" {
			os.RemoveAll(staging)
		}
	}

	pages := make([]string, 0, len(images))
	for i, src := range images {
		ext := strings.ToLower(filepath.Ext(src))
		embeddable := ext == ".jpg" || ext == ".jpeg" || ext == ".png"
		if quality == 0 && embeddable {
			pages = append(pages, src)
			continue
		}

		if staging == "" {
			dir, err := os.MkdirTemp("", "jmcrawler_pdf_")
			if err != nil {
				return nil, cleanup, err
			}
			staging = dir
		}
		q := quality
		if q == 0 {
			q = defaultJPEGQuality
		}
		dst := filepath.Join(staging, fmt.Sprintf("%05d.jpg", i+1))
		if err := reencodeJPEG(src, dst, q); err != nil {
			return nil, cleanup, fmt.Errorf("re-encode %s: %w", src, err)
		}
		pages = append(pages, dst)
	}
	return pages, cleanup, nil
}

func reencodeJPEG(src, dst string, quality int) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	img, _, err := image.Decode(in)
	in.Close()
	if err != nil {
		return err
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if err := jpeg.Encode(out, img, &jpeg.Options{Quality: quality}); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
