package webp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/disintegration/imaging"
	gowebp "github.com/gen2brain/webp"

	"github.com/MeKo-Tech/pixkit/internal/imageops"
)

// DefaultQuality matches the libwebp default.
const DefaultQuality = 75

// ErrEncoderUnavailable is returned when the selected encoder cannot run,
// for example because the cwebp binary is not installed.
var ErrEncoderUnavailable = errors.New("webp encoder unavailable")

// Options controls a single encode.
type Options struct {
	// Quality is 0-100; 0 is a valid setting. Out-of-range values fall
	// back to DefaultQuality.
	Quality  int
	Lossless bool
}

func (o Options) quality() int {
	if o.Quality < 0 || o.Quality > 100 {
		return DefaultQuality
	}
	return o.Quality
}

// Encoder encodes an image as WebP.
type Encoder interface {
	// Format returns the encoder name as used in configuration.
	Format() string
	// Extension returns the output file extension including the dot.
	Extension() string
	// Available reports whether the encoder can be used on this machine.
	Available() bool
	Encode(ctx context.Context, w io.Writer, img image.Image, opts Options) error
}

// NewEncoder returns the encoder for name ("native" or "cwebp").
func NewEncoder(name, cwebpPath string) (Encoder, error) {
	switch name {
	case "", "native":
		return NativeEncoder{}, nil
	case "cwebp":
		return &CWebPEncoder{Path: cwebpPath}, nil
	default:
		return nil, fmt.Errorf("unknown webp encoder %q", name)
	}
}

// NativeEncoder encodes in-process.
type NativeEncoder struct{}

func (NativeEncoder) Format() string    { return "native" }
func (NativeEncoder) Extension() string { return ".webp" }
func (NativeEncoder) Available() bool   { return true }

// Encode writes img as WebP to w.
func (NativeEncoder) Encode(ctx context.Context, w io.Writer, img image.Image, opts Options) error {
	if img == nil {
		return &imageops.ImageProcessingError{Operation: "encode", Err: errors.New("input image is nil")}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	err := gowebp.Encode(w, img, gowebp.Options{
		Quality:  nativeQuality(opts.quality()),
		Lossless: opts.Lossless,
		Method:   4,
	})
	if err != nil {
		return &imageops.ImageProcessingError{Operation: "encode", Err: err}
	}
	return nil
}

// nativeQuality maps 0 to 1; gowebp replaces a zero quality with its default.
func nativeQuality(q int) int {
	if q == 0 {
		return 1
	}
	return q
}

// CWebPEncoder shells out to the cwebp command line tool.
type CWebPEncoder struct {
	// Path to the binary. Empty means "cwebp" looked up on PATH.
	Path string
}

func (e *CWebPEncoder) Format() string    { return "cwebp" }
func (e *CWebPEncoder) Extension() string { return ".webp" }

func (e *CWebPEncoder) binary() string {
	if e.Path == "" {
		return "cwebp"
	}
	return e.Path
}

// Available reports whether the cwebp binary can be found.
func (e *CWebPEncoder) Available() bool {
	_, err := exec.LookPath(e.binary())
	return err == nil
}

// Encode writes img to a temporary PNG, runs cwebp on it and copies the
// result to w.
func (e *CWebPEncoder) Encode(ctx context.Context, w io.Writer, img image.Image, opts Options) error {
	if img == nil {
		return &imageops.ImageProcessingError{Operation: "encode", Err: errors.New("input image is nil")}
	}
	bin, err := exec.LookPath(e.binary())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEncoderUnavailable, err)
	}

	tmpDir, err := os.MkdirTemp("", "pixkit-cwebp-")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	in := filepath.Join(tmpDir, "in.png")
	out := filepath.Join(tmpDir, "out.webp")
	if err := imageops.SaveImage(img, in, imaging.PNG); err != nil {
		return err
	}

	args := []string{"-quiet", "-q", strconv.Itoa(opts.quality())}
	if opts.Lossless {
		args = append(args, "-lossless")
	}
	args = append(args, in, "-o", out)

	cmd := exec.CommandContext(ctx, bin, args...) //nolint:gosec // G204: binary path comes from configuration
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return &imageops.ImageProcessingError{
			Operation: "encode",
			Err:       fmt.Errorf("cwebp: %w: %s", err, bytes.TrimSpace(stderr.Bytes())),
		}
	}

	f, err := os.Open(out) //nolint:gosec // G304: path inside our own temp dir
	if err != nil {
		return fmt.Errorf("failed to open cwebp output: %w", err)
	}
	defer func() { _ = f.Close() }()
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to copy cwebp output: %w", err)
	}
	return nil
}
