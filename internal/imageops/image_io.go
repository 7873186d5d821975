package imageops

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// SupportedImageExtensions lists file extensions that can be decoded.
var SupportedImageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tif", ".tiff", ".webp"}

// IsSupportedImage reports whether the path has a supported image extension.
func IsSupportedImage(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedImageExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// NormalizeExtension lowercases ext and makes sure it starts with a dot.
// An empty string stays empty.
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" || strings.HasPrefix(ext, ".") {
		return ext
	}
	return "." + ext
}

// ImageMetadata captures lightweight file and pixel information.
type ImageMetadata struct {
	Path        string  `json:"path"`
	Format      string  `json:"format"`
	SizeBytes   int64   `json:"size_bytes"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	AspectRatio float64 `json:"aspect_ratio"`
}

// LoadImage opens and decodes an image file, returning the image and metadata.
func LoadImage(path string) (image.Image, ImageMetadata, error) {
	if path == "" {
		err := &ImageProcessingError{Operation: "load", Err: errors.New("empty path")}
		return nil, ImageMetadata{}, err
	}

	f, err := os.Open(path) //nolint:gosec // G304: reading user-provided image path is expected
	if err != nil {
		return nil, ImageMetadata{}, &ImageProcessingError{Operation: "load", Err: err}
	}
	defer func() { _ = f.Close() }()

	fi, err := f.Stat()
	if err != nil {
		return nil, ImageMetadata{}, &ImageProcessingError{Operation: "load", Err: err}
	}

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, ImageMetadata{}, &ImageProcessingError{Operation: "decode", Err: fmt.Errorf("%s: %w", path, err)}
	}

	b := img.Bounds()
	meta := ImageMetadata{
		Path:      path,
		Format:    format,
		SizeBytes: fi.Size(),
		Width:     b.Dx(),
		Height:    b.Dy(),
	}
	if b.Dy() > 0 {
		meta.AspectRatio = float64(b.Dx()) / float64(b.Dy())
	}

	return img, meta, nil
}

// DecodeImage decodes an image from r and reports the registered format name.
func DecodeImage(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", &ImageProcessingError{Operation: "decode", Err: err}
	}
	return img, format, nil
}

// FormatFromName resolves an encoder format from a name such as "png",
// "JPEG" or ".jpg".
func FormatFromName(name string) (imaging.Format, error) {
	f, err := imaging.FormatFromExtension(strings.TrimPrefix(strings.ToLower(name), "."))
	if err != nil {
		return -1, &ImageProcessingError{Operation: "format", Err: fmt.Errorf("unsupported output format %q", name)}
	}
	return f, nil
}

// ExtensionFor returns the canonical file extension (with dot) for a format.
func ExtensionFor(f imaging.Format) string {
	switch f {
	case imaging.JPEG:
		return ".jpg"
	case imaging.PNG:
		return ".png"
	case imaging.GIF:
		return ".gif"
	case imaging.TIFF:
		return ".tif"
	case imaging.BMP:
		return ".bmp"
	default:
		return ""
	}
}

// ContentTypeFor returns the MIME type of a format.
func ContentTypeFor(f imaging.Format) string {
	switch f {
	case imaging.JPEG:
		return "image/jpeg"
	case imaging.PNG:
		return "image/png"
	case imaging.GIF:
		return "image/gif"
	case imaging.TIFF:
		return "image/tiff"
	case imaging.BMP:
		return "image/bmp"
	default:
		return "application/octet-stream"
	}
}

// ReplaceExtension swaps the extension of the base name of path for ext.
func ReplaceExtension(path, ext string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ext
}

// SaveImage encodes img into path using the given format. The parent
// directory must exist.
func SaveImage(img image.Image, path string, format imaging.Format) error {
	f, err := os.Create(path) //nolint:gosec // G304: output path is provided by the caller
	if err != nil {
		return &ImageProcessingError{Operation: "save", Err: err}
	}
	if err := imaging.Encode(f, img, format); err != nil {
		_ = f.Close()
		return &ImageProcessingError{Operation: "encode", Err: err}
	}
	if err := f.Close(); err != nil {
		return &ImageProcessingError{Operation: "save", Err: err}
	}
	return nil
}
