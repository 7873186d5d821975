package server

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/pixkit/internal/config"
	"github.com/MeKo-Tech/pixkit/internal/imageops"
)

// newTestServer returns a server with small defaults suitable for tests.
func newTestServer(t *testing.T) *Server {
	t.Helper()

	wm := config.DefaultConfig().Watermark
	wm.Text = "TEST"
	wm.Opacity = 255
	wm.Margin = 2
	wm.SizeDivisor = 4

	s, err := NewServer(Config{
		CORSOrigin:  "*",
		MaxUploadMB: 5,
		TimeoutSec:  10,
		Watermark:   wm,
		ImageSize:   imageops.Size{Width: 32, Height: 32},
	})
	require.NoError(t, err)
	return s
}

// createTestImage creates a simple gradient image for testing.
func createTestImage(width, height int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			img.SetNRGBA(x, y, color.NRGBA{R: byte(x % 256), G: byte(y % 256), B: 90, A: 255})
		}
	}
	return img
}

// encodeImageToPNG encodes an image to PNG bytes.
func encodeImageToPNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// createMultipartFormRequest creates a multipart form request with an image.
func createMultipartFormRequest(t *testing.T, target string, imageData []byte, fields map[string]string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if imageData != nil {
		part, err := writer.CreateFormFile("image", "upload.png")
		require.NoError(t, err)
		_, err = part.Write(imageData)
		require.NoError(t, err)
	}
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decodePNG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}
