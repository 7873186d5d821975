// Package watermark stamps a text watermark onto every image of a source
// directory and stores the results in a destination.
package watermark

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/pixkit/internal/batch"
	"github.com/MeKo-Tech/pixkit/internal/config"
	"github.com/MeKo-Tech/pixkit/internal/imageops"
	"github.com/MeKo-Tech/pixkit/internal/pdf"
	"github.com/MeKo-Tech/pixkit/internal/storage"
)

// ErrInvalidConfig wraps configuration problems detected by New.
var ErrInvalidConfig = errors.New("invalid watermark configuration")

// Processor applies the configured watermark to files.
type Processor struct {
	cfg      config.WatermarkConfig
	opts     imageops.WatermarkOptions
	format   imaging.Format
	store    storage.Store
	logger   *slog.Logger
	workers  int
	progress batch.ProgressCallback
}

// New validates cfg and returns a processor writing to store. A nil store
// writes to cfg.DestDir on the local filesystem.
func New(cfg config.WatermarkConfig, store storage.Store, logger *slog.Logger) (*Processor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if cfg.Text == "" {
		return nil, fmt.Errorf("%w: empty watermark text", ErrInvalidConfig)
	}

	format, err := imageops.FormatFromName(cfg.OutputFormat)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	col, err := imageops.ParseColor(cfg.Color)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if store == nil {
		store, err = storage.NewLocalStore(cfg.DestDir)
		if err != nil {
			return nil, err
		}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Processor{
		cfg: cfg,
		opts: imageops.WatermarkOptions{
			Text:        cfg.Text,
			SizeDivisor: cfg.SizeDivisor,
			FontPath:    cfg.FontPath,
			Margin:      imageops.Margin(cfg.Margin),
			Opacity:     imageops.Opacity(uint8(cfg.Opacity)), //nolint:gosec // G115: range checked by Validate
			Color:       col,
		},
		format:  format,
		store:   store,
		logger:  logger,
		workers: 1,
	}, nil
}

// NewFromConfig builds a processor from the application config, opening the
// destination named by watermark.dest_dir (a path or storage URI).
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*Processor, error) {
	store, err := storage.Open(cfg.Watermark.DestDir, storage.S3Options{
		Region:         cfg.Storage.Region,
		Endpoint:       cfg.Storage.Endpoint,
		ForcePathStyle: cfg.Storage.ForcePathStyle,
	})
	if err != nil {
		return nil, err
	}
	p, err := New(cfg.Watermark, store, logger)
	if err != nil {
		return nil, err
	}
	return p.WithWorkers(cfg.Batch.Workers), nil
}

// WithWorkers sets the number of files processed concurrently by ProcessDir.
func (p *Processor) WithWorkers(n int) *Processor {
	p.workers = max(n, 1)
	return p
}

// WithProgress sets the progress reporter used by ProcessDir.
func (p *Processor) WithProgress(cb batch.ProgressCallback) *Processor {
	p.progress = cb
	return p
}

// Store returns the destination store.
func (p *Processor) Store() storage.Store {
	return p.store
}

// Accepts reports whether path has one of the configured extensions.
func (p *Processor) Accepts(path string) bool {
	return batch.MatchesExtension(path, p.cfg.Extensions)
}

// ProcessImage returns a watermarked copy of img.
func (p *Processor) ProcessImage(img image.Image) (image.Image, error) {
	return imageops.Watermark(img, p.opts)
}

// ProcessFile watermarks the image at path and stores it under its base
// name with the output format's extension. It returns the stored location.
func (p *Processor) ProcessFile(ctx context.Context, path string) (string, error) {
	return p.processFile(ctx, path, imageops.ReplaceExtension(path, imageops.ExtensionFor(p.format)))
}

func (p *Processor) processFile(ctx context.Context, path, key string) (string, error) {
	if !p.Accepts(path) {
		return "", batch.Skip("extension not in watermark list")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	img, _, err := imageops.LoadImage(path)
	if err != nil {
		return "", err
	}
	marked, err := p.ProcessImage(img)
	if err != nil {
		return "", fmt.Errorf("failed to watermark %s: %w", path, err)
	}

	file, err := imageops.EncodeFile(marked, key, p.format)
	if err != nil {
		return "", err
	}
	loc, err := p.store.Put(ctx, file.Name, file.ContentType, file.Reader())
	if err != nil {
		return "", fmt.Errorf("failed to store %s: %w", key, err)
	}

	p.logger.Info("Watermarked image", "source", path, "target", loc)
	return loc, nil
}

// ProcessDir watermarks every matching file of the source directory. With
// ContinueOnError disabled the first failure ends the batch.
func (p *Processor) ProcessDir(ctx context.Context) (*batch.Result, error) {
	files, err := batch.Discover([]string{p.cfg.SourceDir}, batch.Options{
		Recursive:  p.cfg.Recursive,
		Extensions: p.cfg.Extensions,
	})
	if err != nil {
		return nil, err
	}

	res, err := batch.Run(ctx, files, batch.RunOptions{
		Workers:         p.workers,
		ContinueOnError: p.cfg.ContinueOnError,
		Progress:        p.progress,
		Logger:          p.logger,
	}, p.dirFunc())
	if err != nil {
		return res, err
	}

	if p.cfg.PDFBundle != "" {
		if err := p.bundle(res.Outputs()); err != nil {
			return res, err
		}
	}
	return res, nil
}

// dirFunc keys outputs by their path relative to the source directory so
// recursive runs do not collide on equal base names.
func (p *Processor) dirFunc() batch.Func {
	ext := imageops.ExtensionFor(p.format)
	return func(ctx context.Context, path string) (string, error) {
		key := imageops.ReplaceExtension(path, ext)
		if rel, err := filepath.Rel(p.cfg.SourceDir, path); err == nil {
			key = filepath.ToSlash(filepath.Join(filepath.Dir(rel), key))
		}
		return p.processFile(ctx, path, key)
	}
}

func (p *Processor) bundle(outputs []string) error {
	if _, ok := p.store.(*storage.LocalStore); !ok {
		p.logger.Warn("PDF bundle needs a local destination, skipping", "pdf", p.cfg.PDFBundle)
		return nil
	}

	var pages []string
	for _, o := range outputs {
		if pdf.CanBundle(o) {
			pages = append(pages, o)
		}
	}
	if len(pages) == 0 {
		p.logger.Warn("No outputs can be bundled into a PDF", "format", p.cfg.OutputFormat)
		return nil
	}

	if err := pdf.Bundle(pages, p.cfg.PDFBundle); err != nil {
		return err
	}
	p.logger.Info("Bundled outputs into PDF", "pdf", p.cfg.PDFBundle, "pages", len(pages))
	return nil
}
