package server

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// corsMiddleware adds CORS headers to responses and records request metrics.
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := s.corsOrigin
		if origin == "" {
			origin = "*"
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		start := time.Now()
		next(rw, r)
		duration := time.Since(start)

		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rw.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration.Seconds())
	}
}

// RateLimitResponse is the body of a 429 response.
type RateLimitResponse struct {
	Error      string  `json:"error"`
	Type       string  `json:"type"`
	Limit      int64   `json:"limit"`
	Used       int64   `json:"used,omitempty"`
	RetryAfter float64 `json:"retry_after,omitempty"`
	Resets     string  `json:"resets,omitempty"`
	Message    string  `json:"message"`
}

// rateLimitMiddleware enforces per-client rate limits and daily quotas.
func (s *Server) rateLimitMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.rateLimiter == nil || r.Method == http.MethodOptions {
			next(w, r)
			return
		}

		var dataSize int64
		if r.ContentLength > 0 {
			dataSize = r.ContentLength
		}

		if err := s.rateLimiter.CheckRateLimit(getClientIP(r), dataSize); err != nil {
			s.handleRateLimitError(w, err)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleRateLimitError(w http.ResponseWriter, err error) {
	var rl *RateLimitError
	var quota *QuotaExceededError

	switch {
	case errors.As(err, &rl):
		rateLimitHits.WithLabelValues(rl.Type).Inc()
		w.Header().Set("X-RateLimit-Type", rl.Type)
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.Limit))
		w.Header().Set("Retry-After", fmt.Sprintf("%.0f", rl.RetryAfter.Seconds()))
		s.writeJSON(w, http.StatusTooManyRequests, RateLimitResponse{
			Error:      "rate_limit_exceeded",
			Type:       rl.Type,
			Limit:      int64(rl.Limit),
			RetryAfter: rl.RetryAfter.Seconds(),
			Message:    rl.Error(),
		})
	case errors.As(err, &quota):
		rateLimitHits.WithLabelValues(quota.Type).Inc()
		w.Header().Set("X-Quota-Type", quota.Type)
		w.Header().Set("X-Quota-Limit", strconv.FormatInt(quota.Limit, 10))
		w.Header().Set("X-Quota-Used", strconv.FormatInt(quota.Used, 10))
		w.Header().Set("X-Quota-Resets", quota.Resets.UTC().Format(http.TimeFormat))
		s.writeJSON(w, http.StatusTooManyRequests, RateLimitResponse{
			Error:   "quota_exceeded",
			Type:    quota.Type,
			Limit:   quota.Limit,
			Used:    quota.Used,
			Resets:  quota.Resets.Format(time.RFC3339),
			Message: quota.Error(),
		})
	default:
		s.writeErrorResponse(w, "Rate limiting check failed", http.StatusInternalServerError)
	}
}

// getClientIP extracts the client IP address from the request.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
