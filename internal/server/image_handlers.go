package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

// watermarkHandler stamps text onto an uploaded image and returns a PNG.
// Form fields: text, opacity, margin, divisor, color.
func (s *Server) watermarkHandler(w http.ResponseWriter, r *http.Request) {
	s.imageOperationHandler(w, r, opWatermark)
}

// convertWebPHandler re-encodes an uploaded image as WebP.
// Form fields: quality, lossless.
func (s *Server) convertWebPHandler(w http.ResponseWriter, r *http.Request) {
	s.imageOperationHandler(w, r, opWebP)
}

// fitHandler resizes and center-crops an uploaded image to width x height.
func (s *Server) fitHandler(w http.ResponseWriter, r *http.Request) {
	s.imageOperationHandler(w, r, opFit)
}

// enhanceHandler adjusts brightness and/or saturation.
func (s *Server) enhanceHandler(w http.ResponseWriter, r *http.Request) {
	s.imageOperationHandler(w, r, opEnhance)
}

func (s *Server) imageOperationHandler(w http.ResponseWriter, r *http.Request, op string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	img, err := s.parseImageRequest(w, r)
	if err != nil {
		imageOperationsTotal.WithLabelValues(op, "error").Inc()
		return // error already written
	}

	out, err := s.process(r.Context(), op, img, r.Form)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case isParamError(err):
			status = http.StatusBadRequest
		case errors.Is(err, context.DeadlineExceeded):
			status = http.StatusGatewayTimeout
		}
		slog.Debug("Image operation failed", "operation", op, "error", err)
		s.writeErrorResponse(w, fmt.Sprintf("%s failed: %v", op, err), status)
		return
	}

	s.writeOutput(w, out)
}
