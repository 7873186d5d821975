package config

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/MeKo-Tech/pixkit/internal/imageops"
)

// Config represents the complete configuration for pixkit. It covers every
// command (watermark, webp, image, serve) and is loaded from configuration
// files, environment variables and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Watermark WatermarkConfig `mapstructure:"watermark" yaml:"watermark" json:"watermark"`
	WebP      WebPConfig      `mapstructure:"webp" yaml:"webp" json:"webp"`
	Image     ImageConfig     `mapstructure:"image" yaml:"image" json:"image"`
	Batch     BatchConfig     `mapstructure:"batch" yaml:"batch" json:"batch"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server" json:"server"`
	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage" json:"storage"`
}

// WatermarkConfig contains settings for the watermark batch driver.
type WatermarkConfig struct {
	SourceDir       string   `mapstructure:"source_dir" yaml:"source_dir" json:"source_dir"`
	DestDir         string   `mapstructure:"dest_dir" yaml:"dest_dir" json:"dest_dir"`
	FontPath        string   `mapstructure:"font_path" yaml:"font_path" json:"font_path"`
	Text            string   `mapstructure:"text" yaml:"text" json:"text"`
	Opacity         int      `mapstructure:"opacity" yaml:"opacity" json:"opacity"`
	Color           string   `mapstructure:"color" yaml:"color" json:"color"`
	Extensions      []string `mapstructure:"extensions" yaml:"extensions" json:"extensions"`
	OutputFormat    string   `mapstructure:"output_format" yaml:"output_format" json:"output_format"`
	Margin          int      `mapstructure:"margin" yaml:"margin" json:"margin"`
	SizeDivisor     float64  `mapstructure:"size_divisor" yaml:"size_divisor" json:"size_divisor"`
	Recursive       bool     `mapstructure:"recursive" yaml:"recursive" json:"recursive"`
	ContinueOnError bool     `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
	PDFBundle       string   `mapstructure:"pdf_bundle" yaml:"pdf_bundle" json:"pdf_bundle"`
	WatchDebounceMS int      `mapstructure:"watch_debounce_ms" yaml:"watch_debounce_ms" json:"watch_debounce_ms"`
}

// WebPConfig contains settings for the WebP batch converter.
type WebPConfig struct {
	Dir               string   `mapstructure:"dir" yaml:"dir" json:"dir"`
	ReplaceFiles      bool     `mapstructure:"replace_files" yaml:"replace_files" json:"replace_files"`
	ConvertImageTypes []string `mapstructure:"convert_image_types" yaml:"convert_image_types" json:"convert_image_types"`
	Quality           int      `mapstructure:"quality" yaml:"quality" json:"quality"`
	Lossless          bool     `mapstructure:"lossless" yaml:"lossless" json:"lossless"`
	Encoder           string   `mapstructure:"encoder" yaml:"encoder" json:"encoder"`
	CWebPPath         string   `mapstructure:"cwebp_path" yaml:"cwebp_path" json:"cwebp_path"`
}

// ImageConfig contains defaults for the single-image helpers.
type ImageConfig struct {
	Width         int     `mapstructure:"width" yaml:"width" json:"width"`
	Height        int     `mapstructure:"height" yaml:"height" json:"height"`
	EnhanceFactor float64 `mapstructure:"enhance_factor" yaml:"enhance_factor" json:"enhance_factor"`
	FontPath      string  `mapstructure:"font_path" yaml:"font_path" json:"font_path"`
}

// BatchConfig contains settings shared by the batch drivers.
type BatchConfig struct {
	Workers    int    `mapstructure:"workers" yaml:"workers" json:"workers"`
	Format     string `mapstructure:"format" yaml:"format" json:"format"`
	ReportFile string `mapstructure:"report_file" yaml:"report_file" json:"report_file"`
	Progress   string `mapstructure:"progress" yaml:"progress" json:"progress"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`

	// Rate limiting, per client address. Zero limits are not enforced.
	RateLimitEnabled  bool  `mapstructure:"rate_limit_enabled" yaml:"rate_limit_enabled" json:"rate_limit_enabled"`
	RequestsPerMinute int   `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int   `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	MaxRequestsPerDay int   `mapstructure:"max_requests_per_day" yaml:"max_requests_per_day" json:"max_requests_per_day"`
	MaxDataPerDay     int64 `mapstructure:"max_data_per_day" yaml:"max_data_per_day" json:"max_data_per_day"`
}

// StorageConfig contains settings for remote output destinations.
type StorageConfig struct {
	Region         string `mapstructure:"region" yaml:"region" json:"region"`
	Endpoint       string `mapstructure:"endpoint" yaml:"endpoint" json:"endpoint"`
	ForcePathStyle bool   `mapstructure:"force_path_style" yaml:"force_path_style" json:"force_path_style"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Verbose:  false,
		Watermark: WatermarkConfig{
			SourceDir:       "../batch_images",
			DestDir:         "../batch_post_processed_images",
			FontPath:        "builtin:italic",
			Text:            "@ruddra",
			Opacity:         50,
			Color:           "white",
			Extensions:      []string{".jpg", ".gif", ".png", ".jpeg"},
			OutputFormat:    "png",
			Margin:          20,
			SizeDivisor:     20,
			WatchDebounceMS: 500,
		},
		WebP: WebPConfig{
			Dir:               ".",
			ReplaceFiles:      true,
			ConvertImageTypes: []string{},
			Quality:           75,
			Encoder:           "native",
			CWebPPath:         "cwebp",
		},
		Image: ImageConfig{
			Width:         imageops.DefaultSize.Width,
			Height:        imageops.DefaultSize.Height,
			EnhanceFactor: imageops.DefaultEnhanceFactor,
		},
		Batch: BatchConfig{
			Workers:  1,
			Format:   "text",
			Progress: "none",
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      30,
			ShutdownTimeout: 10,

			RequestsPerMinute: 60,
			RequestsPerHour:   1000,
			MaxRequestsPerDay: 5000,
			MaxDataPerDay:     100 * 1024 * 1024,
		},
		Storage: StorageConfig{
			Region: "us-east-1",
		},
	}
}

// Validate validates the configuration and returns the first problem found.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if err := c.Watermark.Validate(); err != nil {
		return err
	}
	if err := c.WebP.Validate(); err != nil {
		return err
	}

	if c.Image.Width <= 0 || c.Image.Height <= 0 {
		return fmt.Errorf("invalid image size: %dx%d (must be positive)", c.Image.Width, c.Image.Height)
	}
	if c.Image.EnhanceFactor < 0 {
		return fmt.Errorf("invalid enhance factor: %.2f (must not be negative)", c.Image.EnhanceFactor)
	}

	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}
	validFormats := []string{"text", "json", "csv"}
	if c.Batch.Format != "" && !slices.Contains(validFormats, c.Batch.Format) {
		return fmt.Errorf("invalid batch report format: %s (must be one of: %s)", c.Batch.Format, strings.Join(validFormats, ", "))
	}
	validProgress := []string{"", "none", "bar", "log"}
	for _, mode := range strings.Split(c.Batch.Progress, ",") {
		if !slices.Contains(validProgress, strings.TrimSpace(mode)) {
			return fmt.Errorf("invalid progress mode: %s (must be none, bar, log or a comma-separated combination)", c.Batch.Progress)
		}
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.RequestsPerMinute < 0 || c.Server.RequestsPerHour < 0 || c.Server.MaxRequestsPerDay < 0 || c.Server.MaxDataPerDay < 0 {
		return errors.New("invalid rate limit: limits must not be negative")
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}

	return nil
}

// Validate checks the watermark section.
func (w *WatermarkConfig) Validate() error {
	if w.Opacity < 0 || w.Opacity > 255 {
		return fmt.Errorf("invalid watermark opacity: %d (must be between 0 and 255)", w.Opacity)
	}
	if !(w.SizeDivisor > 0) || math.IsInf(w.SizeDivisor, 1) {
		return fmt.Errorf("invalid watermark size divisor: %.2f (must be positive)", w.SizeDivisor)
	}
	if w.Margin < 0 {
		return fmt.Errorf("invalid watermark margin: %d (must not be negative)", w.Margin)
	}
	if _, err := imageops.FormatFromName(w.OutputFormat); err != nil {
		return fmt.Errorf("invalid watermark output format: %s", w.OutputFormat)
	}
	if _, err := imageops.ParseColor(w.Color); err != nil {
		return fmt.Errorf("invalid watermark color: %w", err)
	}
	return nil
}

// Validate checks the webp section.
func (w *WebPConfig) Validate() error {
	if w.Quality < 0 || w.Quality > 100 {
		return fmt.Errorf("invalid webp quality: %d (must be between 0 and 100)", w.Quality)
	}
	validEncoders := []string{"native", "cwebp"}
	if !slices.Contains(validEncoders, w.Encoder) {
		return fmt.Errorf("invalid webp encoder: %s (must be one of: %s)", w.Encoder, strings.Join(validEncoders, ", "))
	}
	return nil
}
