package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "pixkit"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "PIXKIT"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader on the global viper instance so that flags
// bound by the root command are visible.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWithViper creates a loader on an isolated viper instance.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// Load loads configuration from the search paths, environment variables and
// defaults, then validates it. A missing config file is not an error.
func (l *Loader) Load() (*Config, error) {
	cfg, err := l.LoadWithoutValidation()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadWithoutValidation is Load without the final Validate call.
func (l *Loader) LoadWithoutValidation() (*Config, error) {
	l.v.SetConfigName(ConfigFileName)
	l.v.SetConfigType("yaml")
	l.addConfigPaths()
	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return l.unmarshal()
}

// LoadWithFile loads configuration from a specific file path. An empty path
// falls back to Load.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	cfg, err := l.LoadWithFileWithoutValidation(configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadWithFileWithoutValidation is LoadWithFile without the final Validate call.
func (l *Loader) LoadWithFileWithoutValidation(configFile string) (*Config, error) {
	if configFile == "" {
		return l.LoadWithoutValidation()
	}
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configFile)
	}

	l.v.SetConfigFile(configFile)
	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}
	return l.unmarshal()
}

func (l *Loader) unmarshal() (*Config, error) {
	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &config, nil
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

func (l *Loader) addConfigPaths() {
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
}

func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	// PIXKIT_WATERMARK_SOURCE_DIR maps to watermark.source_dir
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults registers every key so AutomaticEnv can resolve nested
// values during Unmarshal.
func (l *Loader) setDefaults() {
	d := DefaultConfig()

	l.v.SetDefault("log_level", d.LogLevel)
	l.v.SetDefault("verbose", d.Verbose)

	l.v.SetDefault("watermark.source_dir", d.Watermark.SourceDir)
	l.v.SetDefault("watermark.dest_dir", d.Watermark.DestDir)
	l.v.SetDefault("watermark.font_path", d.Watermark.FontPath)
	l.v.SetDefault("watermark.text", d.Watermark.Text)
	l.v.SetDefault("watermark.opacity", d.Watermark.Opacity)
	l.v.SetDefault("watermark.color", d.Watermark.Color)
	l.v.SetDefault("watermark.extensions", d.Watermark.Extensions)
	l.v.SetDefault("watermark.output_format", d.Watermark.OutputFormat)
	l.v.SetDefault("watermark.margin", d.Watermark.Margin)
	l.v.SetDefault("watermark.size_divisor", d.Watermark.SizeDivisor)
	l.v.SetDefault("watermark.recursive", d.Watermark.Recursive)
	l.v.SetDefault("watermark.continue_on_error", d.Watermark.ContinueOnError)
	l.v.SetDefault("watermark.pdf_bundle", d.Watermark.PDFBundle)
	l.v.SetDefault("watermark.watch_debounce_ms", d.Watermark.WatchDebounceMS)

	l.v.SetDefault("webp.dir", d.WebP.Dir)
	l.v.SetDefault("webp.replace_files", d.WebP.ReplaceFiles)
	l.v.SetDefault("webp.convert_image_types", d.WebP.ConvertImageTypes)
	l.v.SetDefault("webp.quality", d.WebP.Quality)
	l.v.SetDefault("webp.lossless", d.WebP.Lossless)
	l.v.SetDefault("webp.encoder", d.WebP.Encoder)
	l.v.SetDefault("webp.cwebp_path", d.WebP.CWebPPath)

	l.v.SetDefault("image.width", d.Image.Width)
	l.v.SetDefault("image.height", d.Image.Height)
	l.v.SetDefault("image.enhance_factor", d.Image.EnhanceFactor)
	l.v.SetDefault("image.font_path", d.Image.FontPath)

	l.v.SetDefault("batch.workers", d.Batch.Workers)
	l.v.SetDefault("batch.format", d.Batch.Format)
	l.v.SetDefault("batch.report_file", d.Batch.ReportFile)
	l.v.SetDefault("batch.progress", d.Batch.Progress)

	l.v.SetDefault("server.host", d.Server.Host)
	l.v.SetDefault("server.port", d.Server.Port)
	l.v.SetDefault("server.cors_origin", d.Server.CORSOrigin)
	l.v.SetDefault("server.max_upload_mb", d.Server.MaxUploadMB)
	l.v.SetDefault("server.timeout_sec", d.Server.TimeoutSec)
	l.v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	l.v.SetDefault("server.rate_limit_enabled", d.Server.RateLimitEnabled)
	l.v.SetDefault("server.requests_per_minute", d.Server.RequestsPerMinute)
	l.v.SetDefault("server.requests_per_hour", d.Server.RequestsPerHour)
	l.v.SetDefault("server.max_requests_per_day", d.Server.MaxRequestsPerDay)
	l.v.SetDefault("server.max_data_per_day", d.Server.MaxDataPerDay)

	l.v.SetDefault("storage.region", d.Storage.Region)
	l.v.SetDefault("storage.endpoint", d.Storage.Endpoint)
	l.v.SetDefault("storage.force_path_style", d.Storage.ForcePathStyle)
}

// WriteConfigToFile writes the current configuration to a file.
func (l *Loader) WriteConfigToFile(filename string) error {
	return l.v.WriteConfigAs(filename)
}

// GenerateDefaultConfigFile writes the defaults to filename (pixkit.yaml
// when empty). An existing file is never overwritten.
func GenerateDefaultConfigFile(filename string) error {
	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}
	loader := NewLoaderWithViper(viper.New())
	loader.setDefaults()
	return loader.v.SafeWriteConfigAs(filename)
}

// GetConfigSearchPaths returns the paths where configuration files are searched.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
	}
	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		paths = append(paths, filepath.Join(configDir, "pixkit"))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "pixkit"))
	}
	paths = append(paths, "/etc/pixkit")

	return paths
}
