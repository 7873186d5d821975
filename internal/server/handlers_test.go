package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/pixkit/internal/config"
	"github.com/MeKo-Tech/pixkit/internal/version"
)

func TestServer_HealthHandler(t *testing.T) {
	server := &Server{}

	tests := []struct {
		name           string
		method         string
		expectedStatus int
		checkResponse  bool
	}{
		{name: "GET request success", method: "GET", expectedStatus: http.StatusOK, checkResponse: true},
		{name: "POST request not allowed", method: "POST", expectedStatus: http.StatusMethodNotAllowed},
		{name: "PUT request not allowed", method: "PUT", expectedStatus: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/health", nil)
			w := httptest.NewRecorder()

			server.healthHandler(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)

			if tt.checkResponse {
				var response HealthResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))

				assert.Equal(t, "healthy", response.Status)
				assert.NotEmpty(t, response.Time)
				assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			}
		})
	}
}

func TestServer_VersionHandler(t *testing.T) {
	server := &Server{}

	w := httptest.NewRecorder()
	server.versionHandler(w, httptest.NewRequest(http.MethodGet, "/version", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var response VersionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, version.Version, response.Version)
	assert.Equal(t, version.GitCommit, response.GitCommit)

	w = httptest.NewRecorder()
	server.versionHandler(w, httptest.NewRequest(http.MethodPost, "/version", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestNewServer_Validation(t *testing.T) {
	_, err := NewServer(Config{MaxUploadMB: 0, Watermark: config.DefaultConfig().Watermark})
	require.Error(t, err)

	wm := config.DefaultConfig().Watermark
	wm.Color = "nope"
	_, err = NewServer(Config{MaxUploadMB: 1, Watermark: wm})
	require.Error(t, err)

	s, err := NewServer(Config{MaxUploadMB: 1, Watermark: config.DefaultConfig().Watermark})
	require.NoError(t, err)
	assert.Nil(t, s.rateLimiter)
	assert.Equal(t, 1200, s.size.Width)
}

func TestConfigFromApp(t *testing.T) {
	app := config.DefaultConfig()
	app.Server.RateLimitEnabled = true
	app.WebP.Quality = 60

	cfg := ConfigFromApp(&app)
	assert.Equal(t, app.Server.Port, cfg.Port)
	assert.Equal(t, int64(app.Server.MaxUploadMB), cfg.MaxUploadMB)
	assert.Equal(t, 60, cfg.WebP.Quality)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, app.Server.RequestsPerMinute, cfg.RateLimit.RequestsPerMinute)
}

func TestServer_Routes(t *testing.T) {
	s := newTestServer(t)
	handler := s.Handler()

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "pixkit_http_requests_total"))
}
