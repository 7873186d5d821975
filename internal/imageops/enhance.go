package imageops

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// DefaultEnhanceFactor is the factor used when callers do not pick one.
const DefaultEnhanceFactor = 0.5

// Brightness scales every color channel by factor. A factor of 1 keeps the
// image unchanged and 0 produces black; alpha is preserved.
func Brightness(img image.Image, factor float64) (image.Image, error) {
	if img == nil {
		return nil, &ImageProcessingError{Operation: "brightness", Err: errNilImage}
	}
	if err := checkFactor(factor); err != nil {
		return nil, &ImageProcessingError{Operation: "brightness", Err: err}
	}
	if factor == 1 {
		return imaging.Clone(img), nil
	}
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{
			R: blendChannel(0, float64(c.R), factor),
			G: blendChannel(0, float64(c.G), factor),
			B: blendChannel(0, float64(c.B), factor),
			A: c.A,
		}
	}), nil
}

// Saturation interpolates between the grayscale version of img (factor 0)
// and img itself (factor 1). Factors above 1 boost colors.
func Saturation(img image.Image, factor float64) (image.Image, error) {
	if img == nil {
		return nil, &ImageProcessingError{Operation: "saturation", Err: errNilImage}
	}
	if err := checkFactor(factor); err != nil {
		return nil, &ImageProcessingError{Operation: "saturation", Err: err}
	}
	if factor == 1 {
		return imaging.Clone(img), nil
	}
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		l := luma(c)
		return color.NRGBA{
			R: blendChannel(l, float64(c.R), factor),
			G: blendChannel(l, float64(c.G), factor),
			B: blendChannel(l, float64(c.B), factor),
			A: c.A,
		}
	}), nil
}

func checkFactor(factor float64) error {
	if math.IsNaN(factor) || math.IsInf(factor, 0) {
		return fmt.Errorf("enhance factor must be finite, got %v", factor)
	}
	return nil
}

// luma uses the ITU-R 601-2 weights.
func luma(c color.NRGBA) float64 {
	return math.Floor((float64(c.R)*299 + float64(c.G)*587 + float64(c.B)*114) / 1000)
}

func blendChannel(base, value, factor float64) uint8 {
	v := base + factor*(value-base)
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v + 0.5)
	}
}
