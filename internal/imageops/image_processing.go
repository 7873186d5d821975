// Package imageops provides the image helper routines shared by the batch
// drivers and the HTTP server: sizing, cropping, compositing, text drawing,
// enhancement and in-memory encoding.
package imageops

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// ImageProcessingError represents errors that can occur during image processing.
type ImageProcessingError struct {
	Operation string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	return fmt.Sprintf("image processing error in %s: %v", e.Operation, e.Err)
}

func (e *ImageProcessingError) Unwrap() error {
	return e.Err
}

var errNilImage = errors.New("input image is nil")

// DefaultSize is the target size used when a Service is created without one.
var DefaultSize = Size{Width: 1200, Height: 1200}

// Size is a width/height pair in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// IsZero reports whether both dimensions are unset.
func (s Size) IsZero() bool {
	return s.Width == 0 && s.Height == 0
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// SizeOf returns the pixel dimensions of img.
func SizeOf(img image.Image) Size {
	b := img.Bounds()
	return Size{Width: b.Dx(), Height: b.Dy()}
}

// Service holds the target size used by the sizing helpers.
type Service struct {
	size Size
}

// NewService returns a Service targeting size, or DefaultSize when size is zero.
func NewService(size Size) *Service {
	if size.IsZero() {
		size = DefaultSize
	}
	return &Service{size: size}
}

// Size returns the target size of the service.
func (s *Service) Size() Size {
	return s.size
}

// ResizeSizeForHeight returns the dimensions img would have when scaled to
// baseHeight with its aspect ratio preserved.
func ResizeSizeForHeight(img image.Image, baseHeight int) Size {
	b := img.Bounds()
	if b.Dy() == 0 {
		return Size{Height: baseHeight}
	}
	ratio := float64(baseHeight) / float64(b.Dy())
	return Size{Width: int(float64(b.Dx()) * ratio), Height: baseHeight}
}

// ResizeSize returns the size Resize uses when called without an explicit size.
func (s *Service) ResizeSize(img image.Image) Size {
	return ResizeSizeForHeight(img, s.size.Height)
}

// Resize scales img to size using Lanczos resampling. A zero size scales the
// image to the service height, keeping its aspect ratio.
func (s *Service) Resize(img image.Image, size Size) (image.Image, error) {
	if img == nil {
		return nil, &ImageProcessingError{Operation: "resize", Err: errNilImage}
	}
	if size.IsZero() {
		size = s.ResizeSize(img)
	}
	if size.Width <= 0 || size.Height <= 0 {
		return nil, &ImageProcessingError{Operation: "resize", Err: fmt.Errorf("invalid target size %s", size)}
	}
	return imaging.Resize(img, size.Width, size.Height, imaging.Lanczos), nil
}

// CropBox returns a rectangle of the service size centered on img. The
// rectangle may extend past the image bounds.
func (s *Service) CropBox(img image.Image) image.Rectangle {
	return CenterBox(img.Bounds(), s.size)
}

// CenterBox returns a rectangle of size centered within bounds.
func CenterBox(bounds image.Rectangle, size Size) image.Rectangle {
	w, h := bounds.Dx(), bounds.Dy()
	left := bounds.Min.X + (w-size.Width)/2
	top := bounds.Min.Y + (h-size.Height)/2
	return image.Rect(left, top, left+size.Width, top+size.Height)
}

// Crop cuts the service-sized center box out of img. Parts of the box that
// fall outside the source are transparent black, so the result always has
// exactly the service size.
func (s *Service) Crop(img image.Image) (image.Image, error) {
	if img == nil {
		return nil, &ImageProcessingError{Operation: "crop", Err: errNilImage}
	}
	return CropRect(img, s.CropBox(img))
}

// CropRect cuts rect out of img, padding with transparent black where rect
// extends past the image bounds.
func CropRect(img image.Image, rect image.Rectangle) (image.Image, error) {
	if img == nil {
		return nil, &ImageProcessingError{Operation: "crop", Err: errNilImage}
	}
	if rect.Dx() <= 0 || rect.Dy() <= 0 {
		return nil, &ImageProcessingError{Operation: "crop", Err: fmt.Errorf("invalid crop box %v", rect)}
	}

	bounds := img.Bounds()
	if rect.In(bounds) {
		return imaging.Crop(img, rect), nil
	}

	canvas := imaging.New(rect.Dx(), rect.Dy(), color.NRGBA{})
	visible := rect.Intersect(bounds)
	if visible.Empty() {
		return canvas, nil
	}
	part := imaging.Crop(img, visible)
	return imaging.Paste(canvas, part, visible.Min.Sub(rect.Min)), nil
}

// Fit scales img to the service height and center-crops it to the service
// size. It reports false and returns img untouched when it already has the
// service size.
func (s *Service) Fit(img image.Image) (image.Image, bool, error) {
	if img == nil {
		return nil, false, &ImageProcessingError{Operation: "fit", Err: errNilImage}
	}
	if SizeOf(img) == s.size {
		return img, false, nil
	}
	resized, err := s.Resize(img, Size{})
	if err != nil {
		return nil, false, err
	}
	cropped, err := s.Crop(resized)
	if err != nil {
		return nil, false, err
	}
	return cropped, true, nil
}

// FitFile runs Fit on the image stored at path and rewrites the file in its
// original format. Nothing is written when the image already fits.
func (s *Service) FitFile(path string) (bool, error) {
	img, _, err := LoadImage(path)
	if err != nil {
		return false, err
	}
	out, changed, err := s.Fit(img)
	if err != nil || !changed {
		return false, err
	}
	format, err := imaging.FormatFromFilename(path)
	if err != nil {
		return false, &ImageProcessingError{Operation: "fit", Err: err}
	}
	if err := SaveImage(out, path, format); err != nil {
		return false, err
	}
	return true, nil
}

// ToNRGBA converts img to a non-premultiplied RGBA copy.
func ToNRGBA(img image.Image) *image.NRGBA {
	return imaging.Clone(img)
}

// Overlay pastes overlay onto background at offset using the overlay's own
// alpha channel as the mask.
func Overlay(background, overlay image.Image, offset image.Point) (image.Image, error) {
	if background == nil || overlay == nil {
		return nil, &ImageProcessingError{Operation: "overlay", Err: errNilImage}
	}
	return imaging.Overlay(background, overlay, background.Bounds().Min.Add(offset), 1.0), nil
}
