package imageops

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/MeKo-Tech/pixkit/internal/fonts"
	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
)

// Watermark defaults used when the corresponding option is nil.
const (
	DefaultWatermarkMargin  = 5
	DefaultWatermarkOpacity = 255
)

// WatermarkOptions configures Watermark.
type WatermarkOptions struct {
	Text string
	// SizeDivisor sets the font size to image height / SizeDivisor.
	SizeDivisor float64
	FontPath    string
	// Margin is the gap to the bottom and right edges. Nil means
	// DefaultWatermarkMargin; a pointer to 0 draws flush against the corner.
	Margin *int
	// Opacity is the alpha (0-255) of the text. Nil means fully opaque.
	Opacity *uint8
	// Color of the text; its own alpha is replaced by Opacity. Nil means white.
	Color color.Color
}

// TextSize derives a font size from an image height: height / divisor,
// truncated, never below 1.
func TextSize(imgHeight int, divisor float64) (int, error) {
	if !(divisor > 0) || math.IsInf(divisor, 1) {
		return 0, fmt.Errorf("size divisor must be a positive finite number, got %v", divisor)
	}
	size := int(float64(imgHeight) / divisor)
	if size < 1 {
		size = 1
	}
	return size, nil
}

// WatermarkAnchor returns the top-left corner of a textW x textH box placed
// margin pixels away from the bottom-right corner of an imgW x imgH image.
func WatermarkAnchor(imgW, imgH, textW, textH, margin int) image.Point {
	return image.Pt(imgW-textW-margin, imgH-textH-margin)
}

// Watermark composites semi-transparent text near the bottom-right corner
// of img. The result is an RGBA image with the same dimensions as img.
func Watermark(img image.Image, opts WatermarkOptions) (image.Image, error) {
	if img == nil {
		return nil, &ImageProcessingError{Operation: "watermark", Err: errNilImage}
	}
	if opts.Text == "" {
		return nil, &ImageProcessingError{Operation: "watermark", Err: errors.New("empty watermark text")}
	}

	base := ToNRGBA(img)
	h := base.Bounds().Dy()

	size, err := TextSize(h, opts.SizeDivisor)
	if err != nil {
		return nil, &ImageProcessingError{Operation: "watermark", Err: err}
	}
	face, err := fonts.Face(opts.FontPath, float64(size))
	if err != nil {
		return nil, &ImageProcessingError{Operation: "watermark", Err: err}
	}
	defer func() { _ = face.Close() }()

	return watermarkWithFace(base, face, opts), nil
}

func watermarkWithFace(base *image.NRGBA, face font.Face, opts WatermarkOptions) image.Image {
	text := fonts.NormalizeText(opts.Text)
	textW, textH := TextBox(face, text)
	b := base.Bounds()
	margin := DefaultWatermarkMargin
	if opts.Margin != nil {
		margin = *opts.Margin
	}
	anchor := WatermarkAnchor(b.Dx(), b.Dy(), textW, textH, margin)

	layer := imaging.New(b.Dx(), b.Dy(), color.NRGBA{})
	drawString(layer, face, text, anchor, watermarkColor(opts.Color, opts.Opacity))

	return imaging.Overlay(base, layer, image.Point{}, 1.0)
}

func watermarkColor(c color.Color, opacity *uint8) color.NRGBA {
	alpha := uint8(DefaultWatermarkOpacity)
	if opacity != nil {
		alpha = *opacity
	}
	if c == nil {
		return color.NRGBA{R: 255, G: 255, B: 255, A: alpha}
	}
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	n.A = alpha
	return n
}

// Opacity is a helper for building WatermarkOptions literals.
func Opacity(a uint8) *uint8 {
	return &a
}

// Margin is the WatermarkOptions counterpart of Opacity.
func Margin(px int) *int {
	return &px
}
