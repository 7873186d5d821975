package server

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MeKo-Tech/pixkit/internal/config"
	"github.com/MeKo-Tech/pixkit/internal/imageops"
	"github.com/MeKo-Tech/pixkit/internal/webp"
)

// Server holds the HTTP server state and the defaults applied to requests
// that do not override them.
type Server struct {
	corsOrigin    string
	maxUploadMB   int64
	timeoutSec    int
	watermark     config.WatermarkConfig
	size          imageops.Size
	enhanceFactor float64
	webpOptions   webp.Options
	rateLimiter   *RateLimiter
}

// Config holds server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigin  string
	MaxUploadMB int64
	TimeoutSec  int
	// Watermark provides the text, font and placement defaults for
	// /watermark. Source and destination directories are ignored.
	Watermark     config.WatermarkConfig
	ImageSize     imageops.Size
	EnhanceFactor float64
	WebP          webp.Options
	RateLimit     RateLimitConfig
}

// RateLimitConfig enables per-client request limits and daily quotas.
// Zero limits are not enforced.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	RequestsPerHour   int
	MaxRequestsPerDay int
	MaxDataPerDay     int64
}

// ConfigFromApp builds a server Config from the application config.
func ConfigFromApp(c *config.Config) Config {
	return Config{
		Host:          c.Server.Host,
		Port:          c.Server.Port,
		CORSOrigin:    c.Server.CORSOrigin,
		MaxUploadMB:   int64(c.Server.MaxUploadMB),
		TimeoutSec:    c.Server.TimeoutSec,
		Watermark:     c.Watermark,
		ImageSize:     imageops.Size{Width: c.Image.Width, Height: c.Image.Height},
		EnhanceFactor: c.Image.EnhanceFactor,
		WebP:          webp.Options{Quality: c.WebP.Quality, Lossless: c.WebP.Lossless},
		RateLimit: RateLimitConfig{
			Enabled:           c.Server.RateLimitEnabled,
			RequestsPerMinute: c.Server.RequestsPerMinute,
			RequestsPerHour:   c.Server.RequestsPerHour,
			MaxRequestsPerDay: c.Server.MaxRequestsPerDay,
			MaxDataPerDay:     c.Server.MaxDataPerDay,
		},
	}
}

// Response types for API endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

type VersionResponse struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// NewServer creates a new image processing server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.MaxUploadMB <= 0 {
		return nil, fmt.Errorf("invalid max upload size: %d MB", cfg.MaxUploadMB)
	}
	if err := cfg.Watermark.Validate(); err != nil {
		return nil, fmt.Errorf("invalid watermark defaults: %w", err)
	}

	size := cfg.ImageSize
	if size.IsZero() {
		size = imageops.DefaultSize
	}
	factor := cfg.EnhanceFactor
	if factor == 0 {
		factor = imageops.DefaultEnhanceFactor
	}

	s := &Server{
		corsOrigin:    cfg.CORSOrigin,
		maxUploadMB:   cfg.MaxUploadMB,
		timeoutSec:    cfg.TimeoutSec,
		watermark:     cfg.Watermark,
		size:          size,
		enhanceFactor: factor,
		webpOptions:   cfg.WebP,
	}
	if cfg.RateLimit.Enabled {
		s.rateLimiter = NewRateLimiter(
			cfg.RateLimit.RequestsPerMinute,
			cfg.RateLimit.RequestsPerHour,
			cfg.RateLimit.MaxRequestsPerDay,
			cfg.RateLimit.MaxDataPerDay,
		)
	}
	return s, nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/version", s.corsMiddleware(s.versionHandler))
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/watermark", s.corsMiddleware(s.rateLimitMiddleware(s.watermarkHandler)))
	mux.HandleFunc("/convert/webp", s.corsMiddleware(s.rateLimitMiddleware(s.convertWebPHandler)))
	mux.HandleFunc("/fit", s.corsMiddleware(s.rateLimitMiddleware(s.fitHandler)))
	mux.HandleFunc("/enhance", s.corsMiddleware(s.rateLimitMiddleware(s.enhanceHandler)))
	mux.HandleFunc("/batch", s.corsMiddleware(s.rateLimitMiddleware(s.batchHandler)))
	mux.HandleFunc("/pdf", s.corsMiddleware(s.rateLimitMiddleware(s.pdfHandler)))
	mux.HandleFunc("/ws", s.rateLimitMiddleware(s.webSocketHandler))
}

// Handler returns a mux with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}
