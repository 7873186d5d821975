// Package pdf bundles processed images into a PDF with one page per image.
package pdf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrNoImages is returned by Bundle when the image list is empty.
var ErrNoImages = errors.New("no images to bundle")

var bundleExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".tif":  true,
	".tiff": true,
}

// CanBundle reports whether pdfcpu can import the image at path.
func CanBundle(path string) bool {
	return bundleExtensions[strings.ToLower(filepath.Ext(path))]
}

// Bundle writes a fresh PDF to out containing one page per image, in order.
// Any existing file at out is replaced.
func Bundle(images []string, out string) error {
	if len(images) == 0 {
		return ErrNoImages
	}
	for _, img := range images {
		if !CanBundle(img) {
			return fmt.Errorf("cannot bundle %s: unsupported image type", img)
		}
	}

	if err := os.MkdirAll(filepath.Dir(out), 0o750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", out, err)
	}
	// pdfcpu appends to an existing output file
	if err := os.Remove(out); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to replace %s: %w", out, err)
	}

	conf := model.NewDefaultConfiguration()
	if err := api.ImportImagesFile(images, out, pdfcpu.DefaultImportConfig(), conf); err != nil {
		return fmt.Errorf("failed to bundle images into %s: %w", out, err)
	}
	return nil
}

// PageCount returns the number of pages in the PDF at path.
func PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read page count of %s: %w", path, err)
	}
	return n, nil
}
