package server

import (
	"bytes"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	xwebp "golang.org/x/image/webp"
)

func TestWatermarkHandler(t *testing.T) {
	s := newTestServer(t)
	src := createTestImage(80, 60)
	data := encodeImageToPNG(t, src)

	req := createMultipartFormRequest(t, "/watermark", data, map[string]string{"text": "MARK", "color": "#ff0000"})
	w := httptest.NewRecorder()
	s.watermarkHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "watermark.png")

	out := decodePNG(t, w.Body.Bytes())
	assert.Equal(t, src.Bounds().Size(), out.Bounds().Size())

	// The text is anchored bottom-right, so some pixel there must differ.
	changed := false
	b := out.Bounds()
	for y := b.Max.Y / 2; y < b.Max.Y && !changed; y++ {
		for x := b.Max.X / 2; x < b.Max.X; x++ {
			r1, g1, b1, _ := src.At(x, y).RGBA()
			r2, g2, b2, _ := out.At(x, y).RGBA()
			if r1 != r2 || g1 != g2 || b1 != b2 {
				changed = true
				break
			}
		}
	}
	assert.True(t, changed, "expected watermark pixels in the lower right quadrant")
}

func TestImageOperationHandler_Errors(t *testing.T) {
	s := newTestServer(t)
	data := encodeImageToPNG(t, createTestImage(20, 20))

	tests := []struct {
		name     string
		handler  http.HandlerFunc
		req      func() *http.Request
		status   int
		contains string
	}{
		{
			name:    "method not allowed",
			handler: s.fitHandler,
			req: func() *http.Request {
				return httptest.NewRequest(http.MethodGet, "/fit", nil)
			},
			status: http.StatusMethodNotAllowed,
		},
		{
			name:    "not multipart",
			handler: s.fitHandler,
			req: func() *http.Request {
				return httptest.NewRequest(http.MethodPost, "/fit", strings.NewReader("plain"))
			},
			status:   http.StatusBadRequest,
			contains: "Failed to parse form data",
		},
		{
			name:    "missing image",
			handler: s.watermarkHandler,
			req: func() *http.Request {
				return createMultipartFormRequest(t, "/watermark", nil, map[string]string{"text": "x"})
			},
			status:   http.StatusBadRequest,
			contains: "No image file provided",
		},
		{
			name:    "invalid image",
			handler: s.watermarkHandler,
			req: func() *http.Request {
				return createMultipartFormRequest(t, "/watermark", []byte("not an image"), nil)
			},
			status:   http.StatusBadRequest,
			contains: "Invalid image format",
		},
		{
			name:    "bad opacity",
			handler: s.watermarkHandler,
			req: func() *http.Request {
				return createMultipartFormRequest(t, "/watermark", data, map[string]string{"opacity": "300"})
			},
			status:   http.StatusBadRequest,
			contains: "opacity",
		},
		{
			name:    "bad color",
			handler: s.watermarkHandler,
			req: func() *http.Request {
				return createMultipartFormRequest(t, "/watermark", data, map[string]string{"color": "plaid"})
			},
			status:   http.StatusBadRequest,
			contains: "color",
		},
		{
			name:    "zero divisor",
			handler: s.watermarkHandler,
			req: func() *http.Request {
				return createMultipartFormRequest(t, "/watermark", data, map[string]string{"divisor": "0"})
			},
			status:   http.StatusBadRequest,
			contains: "divisor",
		},
		{
			name:    "bad quality",
			handler: s.convertWebPHandler,
			req: func() *http.Request {
				return createMultipartFormRequest(t, "/convert/webp", data, map[string]string{"quality": "101"})
			},
			status:   http.StatusBadRequest,
			contains: "quality",
		},
		{
			name:    "bad width",
			handler: s.fitHandler,
			req: func() *http.Request {
				return createMultipartFormRequest(t, "/fit", data, map[string]string{"width": "abc"})
			},
			status:   http.StatusBadRequest,
			contains: "width",
		},
		{
			name:    "negative brightness",
			handler: s.enhanceHandler,
			req: func() *http.Request {
				return createMultipartFormRequest(t, "/enhance", data, map[string]string{"brightness": "-1"})
			},
			status:   http.StatusBadRequest,
			contains: "brightness",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.handler(w, tt.req())

			assert.Equal(t, tt.status, w.Code)
			if tt.contains != "" {
				var resp ErrorResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.False(t, resp.Success)
				assert.Contains(t, resp.Error, tt.contains)
			}
		})
	}
}

func TestImageOperationHandler_TooLarge(t *testing.T) {
	s := newTestServer(t)
	s.maxUploadMB = 1

	big := bytes.Repeat([]byte{0xAB}, 2*1024*1024)
	req := createMultipartFormRequest(t, "/fit", big, nil)
	w := httptest.NewRecorder()
	s.fitHandler(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), "File too large")
}

func TestConvertWebPHandler(t *testing.T) {
	s := newTestServer(t)
	data := encodeImageToPNG(t, createTestImage(40, 30))

	req := createMultipartFormRequest(t, "/convert/webp", data, map[string]string{"quality": "80"})
	w := httptest.NewRecorder()
	s.convertWebPHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "image/webp", w.Header().Get("Content-Type"))
	body := w.Body.Bytes()
	require.Greater(t, len(body), 12)
	assert.Equal(t, "RIFF", string(body[0:4]))
	assert.Equal(t, "WEBP", string(body[8:12]))

	cfg, err := xwebp.DecodeConfig(bytes.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, 40, cfg.Width)
	assert.Equal(t, 30, cfg.Height)
}

func TestFitHandler(t *testing.T) {
	s := newTestServer(t)
	data := encodeImageToPNG(t, createTestImage(100, 50))

	tests := []struct {
		name   string
		fields map[string]string
		want   image.Point
	}{
		{name: "server default size", want: image.Pt(32, 32)},
		{name: "explicit size", fields: map[string]string{"width": "20", "height": "10"}, want: image.Pt(20, 10)},
		{name: "width only", fields: map[string]string{"width": "16"}, want: image.Pt(16, 32)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			s.fitHandler(w, createMultipartFormRequest(t, "/fit", data, tt.fields))

			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			out := decodePNG(t, w.Body.Bytes())
			assert.Equal(t, tt.want, out.Bounds().Size())
		})
	}
}

func TestEnhanceHandler(t *testing.T) {
	s := newTestServer(t)
	src := createTestImage(16, 16)
	data := encodeImageToPNG(t, src)

	t.Run("defaults apply both adjustments", func(t *testing.T) {
		w := httptest.NewRecorder()
		s.enhanceHandler(w, createMultipartFormRequest(t, "/enhance", data, nil))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		out := decodePNG(t, w.Body.Bytes())
		assert.Equal(t, src.Bounds().Size(), out.Bounds().Size())
		assert.NotEqual(t, src.At(8, 8), out.At(8, 8))
	})

	t.Run("factor one is identity", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := createMultipartFormRequest(t, "/enhance", data, map[string]string{"brightness": "1", "saturation": "1"})
		s.enhanceHandler(w, req)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		out := decodePNG(t, w.Body.Bytes())
		r1, g1, b1, _ := src.At(5, 9).RGBA()
		r2, g2, b2, _ := out.At(5, 9).RGBA()
		assert.InDelta(t, r1>>8, r2>>8, 1)
		assert.InDelta(t, g1>>8, g2>>8, 1)
		assert.InDelta(t, b1>>8, b2>>8, 1)
	})
}
