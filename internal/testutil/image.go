package testutil

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ImageSize represents common image dimensions.
type ImageSize struct {
	Width  int
	Height int
}

var (
	// Common test image sizes.
	SmallSize  = ImageSize{320, 240}
	MediumSize = ImageSize{640, 480}
	LargeSize  = ImageSize{1024, 768}
)

// TestImageConfig holds configuration for generating test images.
type TestImageConfig struct {
	Text       string
	Size       ImageSize
	Background color.Color
	Foreground color.Color
	FontFace   font.Face
}

// DefaultTestImageConfig returns a default configuration for test images.
func DefaultTestImageConfig() TestImageConfig {
	return TestImageConfig{
		Text:       "Sample",
		Size:       SmallSize,
		Background: color.RGBA{40, 90, 160, 255},
		Foreground: color.White,
		FontFace:   basicfont.Face7x13,
	}
}

// GenerateTextImage creates a solid image with centered text.
func GenerateTextImage(config TestImageConfig) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, config.Size.Width, config.Size.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{config.Background}, image.Point{}, draw.Src)

	if config.Text != "" && config.FontFace != nil {
		textWidth := font.MeasureString(config.FontFace, config.Text).Ceil()
		textHeight := config.FontFace.Metrics().Height.Ceil()
		d := &font.Drawer{
			Dst:  img,
			Src:  &image.Uniform{config.Foreground},
			Face: config.FontFace,
			Dot:  fixed.P((config.Size.Width-textWidth)/2, (config.Size.Height+textHeight)/2),
		}
		d.DrawString(config.Text)
	}
	return img
}

// CreateTestImage creates a solid image with the specified dimensions and color.
func CreateTestImage(width, height int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{c}, image.Point{}, draw.Src)
	return img
}

// CreateGradientImage creates an opaque image whose red channel grows with x
// and green channel grows with y, so every crop or resize is distinguishable.
func CreateGradientImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / max(width-1, 1)),  //nolint:gosec // G115: bounded to 0..255
				G: uint8(y * 255 / max(height-1, 1)), //nolint:gosec // G115: bounded to 0..255
				B: 128,
				A: 255,
			})
		}
	}
	return img
}

// SaveImage encodes img to path, choosing the format from the extension.
// Parent directories are created as needed.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()

	require.NoError(t, EnsureDir(filepath.Dir(path)), "Failed to create directory for %s", path)
	require.NoError(t, imaging.Save(img, path), "Failed to save image %s", path)
}

// LoadImage loads an image from the specified path.
func LoadImage(t *testing.T, path string) image.Image {
	t.Helper()

	file, err := os.Open(path) //nolint:gosec // G304: Test file reading with controlled path
	require.NoError(t, err, "Failed to open image file %s", path)
	defer func() { _ = file.Close() }()

	img, _, err := image.Decode(file)
	require.NoError(t, err, "Failed to decode image %s", path)
	return img
}

// WriteSampleImages writes one small generated image per name into dir and
// returns the full paths. Non-image names are written as plain text files.
func WriteSampleImages(t *testing.T, dir string, names ...string) []string {
	t.Helper()

	paths := make([]string, 0, len(names))
	for i, name := range names {
		path := filepath.Join(dir, name)
		if _, err := imaging.FormatFromFilename(name); err != nil {
			require.NoError(t, EnsureDir(filepath.Dir(path)))
			require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o600))
		} else {
			cfg := DefaultTestImageConfig()
			cfg.Text = fmt.Sprintf("#%d", i+1)
			cfg.Size = ImageSize{Width: 64 + 8*i, Height: 48 + 4*i}
			SaveImage(t, GenerateTextImage(cfg), path)
		}
		paths = append(paths, path)
	}
	return paths
}

// CompareImages reports whether two images have the same bounds and an
// average per-pixel difference no larger than tolerance (0..1).
func CompareImages(img1, img2 image.Image, tolerance float64) bool {
	b1, b2 := img1.Bounds(), img2.Bounds()
	if b1.Dx() != b2.Dx() || b1.Dy() != b2.Dy() {
		return false
	}

	var totalDiff, pixelCount float64
	for y := range b1.Dy() {
		for x := range b1.Dx() {
			r1, g1, bl1, a1 := img1.At(b1.Min.X+x, b1.Min.Y+y).RGBA()
			r2, g2, bl2, a2 := img2.At(b2.Min.X+x, b2.Min.Y+y).RGBA()

			dr := float64(r1) - float64(r2)
			dg := float64(g1) - float64(g2)
			db := float64(bl1) - float64(bl2)
			da := float64(a1) - float64(a2)
			totalDiff += math.Sqrt(dr*dr + dg*dg + db*db + da*da)
			pixelCount++
		}
	}
	if pixelCount == 0 {
		return true
	}

	maxDiff := math.Sqrt(4 * 65535 * 65535)
	return (totalDiff/pixelCount)/maxDiff <= tolerance
}

// CountChangedPixels returns how many pixels inside rect differ between a and b.
func CountChangedPixels(a, b image.Image, rect image.Rectangle) int {
	n := 0
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			if a.At(x, y) != b.At(x, y) {
				n++
			}
		}
	}
	return n
}
