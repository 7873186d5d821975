package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/pixkit/internal/config"
	"github.com/MeKo-Tech/pixkit/internal/server"
	"github.com/MeKo-Tech/pixkit/internal/version"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for the image API",
	Long: `Start an HTTP server that exposes the image operations.

The server provides the following endpoints:
  POST /watermark    - Watermark an uploaded image (PNG response)
  POST /convert/webp - Convert an uploaded image to WebP
  POST /fit          - Resize and center-crop an uploaded image
  POST /enhance      - Adjust brightness and saturation
  POST /batch        - Apply one operation to several base64 images (JSON)
  POST /pdf          - Bundle uploaded images into a PDF
  GET  /ws           - WebSocket API for the same operations
  GET  /health       - Health check endpoint
  GET  /version      - Build information
  GET  /metrics      - Prometheus metrics

Examples:
  pixkit serve
  pixkit serve --port 8080
  pixkit serve --host 0.0.0.0 --port 3000 --rate-limit-enabled`,
	RunE: runServeCommand,
}

// configToServerConfig applies changed flags to the server section of cfg.
func configToServerConfig(cfg *config.Config, cmd *cobra.Command) {
	s := &cfg.Server
	f := cmd.Flags()

	if f.Changed("host") {
		s.Host, _ = f.GetString("host")
	}
	if f.Changed("port") {
		s.Port, _ = f.GetInt("port")
	}
	if f.Changed("cors-origin") {
		s.CORSOrigin, _ = f.GetString("cors-origin")
	}
	if f.Changed("max-upload-size") {
		s.MaxUploadMB, _ = f.GetInt("max-upload-size")
	}
	if f.Changed("timeout") {
		s.TimeoutSec, _ = f.GetInt("timeout")
	}
	if f.Changed("shutdown-timeout") {
		s.ShutdownTimeout, _ = f.GetInt("shutdown-timeout")
	}
	if f.Changed("rate-limit-enabled") {
		s.RateLimitEnabled, _ = f.GetBool("rate-limit-enabled")
	}
	if f.Changed("requests-per-minute") {
		s.RequestsPerMinute, _ = f.GetInt("requests-per-minute")
	}
	if f.Changed("requests-per-hour") {
		s.RequestsPerHour, _ = f.GetInt("requests-per-hour")
	}
	if f.Changed("max-requests-per-day") {
		s.MaxRequestsPerDay, _ = f.GetInt("max-requests-per-day")
	}
	if f.Changed("max-data-per-day") {
		s.MaxDataPerDay, _ = f.GetInt64("max-data-per-day")
	}
}

func runServeCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	configToServerConfig(cfg, cmd)

	host, port := cfg.Server.Host, cfg.Server.Port
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", port)
	}

	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	imageServer, err := server.NewServer(server.ConfigFromApp(cfg))
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	timeout := time.Duration(cfg.Server.TimeoutSec) * time.Second
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", host, port),
		Handler:           imageServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout,
	}

	go func() {
		slog.Info("Starting image server", "host", host, "port", port, "version", version.String())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		slog.Info("Context cancelled, initiating shutdown")
	}

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	slog.Info("Starting graceful shutdown", "timeout", shutdownTimeout.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
		return err
	}
	slog.Info("Graceful shutdown completed")
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)

	d := config.DefaultConfig().Server
	serveCmd.Flags().StringP("host", "H", d.Host, "server host")
	serveCmd.Flags().IntP("port", "p", d.Port, "server port")
	serveCmd.Flags().String("cors-origin", d.CORSOrigin, "CORS allowed origin")
	serveCmd.Flags().Int("max-upload-size", d.MaxUploadMB, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", d.TimeoutSec, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", d.ShutdownTimeout, "shutdown timeout in seconds")
	// Rate limiting flags
	serveCmd.Flags().Bool("rate-limit-enabled", d.RateLimitEnabled, "enable rate limiting")
	serveCmd.Flags().Int("requests-per-minute", d.RequestsPerMinute, "maximum requests per minute per client")
	serveCmd.Flags().Int("requests-per-hour", d.RequestsPerHour, "maximum requests per hour per client")
	serveCmd.Flags().Int("max-requests-per-day", d.MaxRequestsPerDay, "maximum requests per day per client")
	serveCmd.Flags().Int64("max-data-per-day", d.MaxDataPerDay, "maximum data processed per day per client (bytes)")
}
