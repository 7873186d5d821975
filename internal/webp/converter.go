package webp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/pixkit/internal/batch"
	"github.com/MeKo-Tech/pixkit/internal/config"
	"github.com/MeKo-Tech/pixkit/internal/imageops"
	"github.com/MeKo-Tech/pixkit/internal/storage"
)

// Config controls a conversion run.
type Config struct {
	Dir          string
	ReplaceFiles bool
	// ConvertImageTypes lists the extensions to convert. Empty converts
	// every file.
	ConvertImageTypes []string
	Quality           int
	Lossless          bool
	Workers           int
}

// ConfigFromApp maps the application config onto a converter Config.
func ConfigFromApp(c config.WebPConfig, workers int) Config {
	return Config{
		Dir:               c.Dir,
		ReplaceFiles:      c.ReplaceFiles,
		ConvertImageTypes: c.ConvertImageTypes,
		Quality:           c.Quality,
		Lossless:          c.Lossless,
		Workers:           workers,
	}
}

// Converter rewrites the images below a directory as WebP.
type Converter struct {
	cfg      Config
	encoder  Encoder
	logger   *slog.Logger
	progress batch.ProgressCallback
	types    map[string]bool
}

// NewConverter creates a converter. A nil encoder selects the native one.
func NewConverter(cfg Config, enc Encoder, logger *slog.Logger) (*Converter, error) {
	if enc == nil {
		enc = NativeEncoder{}
	}
	if !enc.Available() {
		return nil, fmt.Errorf("%w: %s", ErrEncoderUnavailable, enc.Format())
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Dir == "" {
		cfg.Dir = "."
	}

	types := make(map[string]bool, len(cfg.ConvertImageTypes))
	for _, t := range cfg.ConvertImageTypes {
		if t = normalizeType(t); t != "" {
			types[t] = true
		}
	}

	return &Converter{cfg: cfg, encoder: enc, logger: logger, types: types}, nil
}

// WithProgress sets a progress reporter for Run.
func (c *Converter) WithProgress(p batch.ProgressCallback) *Converter {
	c.progress = p
	return c
}

func normalizeType(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	return strings.TrimPrefix(ext, ".")
}

// ShouldConvert reports whether files with extension ext are converted.
func (c *Converter) ShouldConvert(ext string) bool {
	if len(c.types) == 0 {
		return true
	}
	return c.types[normalizeType(ext)]
}

// Run converts every matching file below the configured directory. A
// failing file is logged and the walk continues; the returned error is
// only set when nothing could be processed or ctx was canceled.
func (c *Converter) Run(ctx context.Context) (*batch.Result, error) {
	files, err := batch.Discover([]string{c.cfg.Dir}, batch.Options{Recursive: true})
	if err != nil {
		return nil, err
	}
	return batch.Run(ctx, files, batch.RunOptions{
		Workers:         c.cfg.Workers,
		ContinueOnError: true,
		Progress:        c.progress,
		Logger:          c.logger,
	}, c.ConvertFile)
}

// ConvertFile converts one file and writes <dir>/<name>.webp next to it.
// The original is removed when ReplaceFiles is set.
func (c *Converter) ConvertFile(ctx context.Context, path string) (string, error) {
	c.logger.Info("Processing file", "file", filepath.Base(path))

	ext := filepath.Ext(path)
	if !c.ShouldConvert(ext) {
		return "", batch.Skip("extension not selected")
	}
	if strings.EqualFold(ext, c.encoder.Extension()) {
		return "", batch.Skip("already webp")
	}

	img, _, err := imageops.LoadImage(path)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := c.ConvertImage(ctx, img, &buf); err != nil {
		return "", fmt.Errorf("failed to convert %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	store, err := storage.NewLocalStore(dir)
	if err != nil {
		return "", err
	}
	key := imageops.ReplaceExtension(path, c.encoder.Extension())
	out, err := store.Put(ctx, key, "image/webp", &buf)
	if err != nil {
		return "", err
	}

	c.logger.Info("Converted image", "source", path, "target", out)

	if c.cfg.ReplaceFiles && out != path {
		c.logger.Info("Removing file", "file", path)
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return out, fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	return out, nil
}

// ConvertImage encodes a single image as WebP using the converter's
// quality settings.
func (c *Converter) ConvertImage(ctx context.Context, img image.Image, w io.Writer) error {
	return c.encoder.Encode(ctx, w, img, Options{Quality: c.cfg.Quality, Lossless: c.cfg.Lossless})
}

// ConvertImage encodes img with the native encoder.
func ConvertImage(ctx context.Context, img image.Image, w io.Writer, opts Options) error {
	return NativeEncoder{}.Encode(ctx, w, img, opts)
}
