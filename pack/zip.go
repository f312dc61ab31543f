package pack

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/yeka/zip"
)

// writeZip bundles the images into dst, preserving the chapter subdirectory
// structure relative to root. With Encrypt set, entries are AES-256
// encrypted under the password.
func writeZip(dst, root string, images []string, params Params) error {
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	// yeka/zip does not expose per-writer deflate levels (its global
	// compressor registry is write-once and Deflate is built in), so a
	// nonzero Compression selects zip.Deflate at the library's default
	// level via the entry headers below.
	zw := zip.NewWriter(out)

	for _, img := range images {
		rel, err := filepath.Rel(root, img)
		if err != nil {
			rel = filepath.Base(img)
		}
		arcname := filepath.ToSlash(rel)

		var entry io.Writer
		if params.Encrypt {
			entry, err = zw.Encrypt(arcname, params.Password, zip.AES256Encryption)
		} else {
			method := uint16(zip.Deflate)
			if params.Compression == 0 {
				method = zip.Store
			}
			entry, err = zw.CreateHeader(&zip.FileHeader{Name: arcname, Method: method})
		}
		if err != nil {
			zw.Close()
			return fmt.Errorf("zip entry %s: %w", arcname, err)
		}

		src, err := os.Open(img)
		if err != nil {
			zw.Close()
			return err
		}
		_, err = io.Copy(entry, src)
		src.Close()
		if err != nil {
			zw.Close()
			return fmt.Errorf("zip entry %s: %w", arcname, err)
		}
	}

	if err := zw.Close(); err != nil {
		return err
	}
	return out.Close()
}
