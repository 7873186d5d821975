package server

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/pixkit/internal/pdf"
)

func createPDFRequest(t *testing.T, images [][]byte, fields map[string]string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for i, data := range images {
		part, err := writer.CreateFormFile("images", filepath.Base(t.Name())+string(rune('a'+i))+".png")
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/pdf", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestPDFHandler(t *testing.T) {
	s := newTestServer(t)
	images := [][]byte{
		encodeImageToPNG(t, createTestImage(30, 20)),
		encodeImageToPNG(t, createTestImage(20, 30)),
	}

	for _, mark := range []string{"false", "true"} {
		t.Run("watermark="+mark, func(t *testing.T) {
			w := httptest.NewRecorder()
			s.pdfHandler(w, createPDFRequest(t, images, map[string]string{"watermark": mark}))

			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
			assert.Contains(t, w.Header().Get("Content-Disposition"), "bundle.pdf")
			assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))

			out := filepath.Join(t.TempDir(), "out.pdf")
			require.NoError(t, os.WriteFile(out, w.Body.Bytes(), 0o600))
			pages, err := pdf.PageCount(out)
			require.NoError(t, err)
			assert.Equal(t, 2, pages)
		})
	}
}

func TestPDFHandler_Errors(t *testing.T) {
	s := newTestServer(t)
	good := encodeImageToPNG(t, createTestImage(10, 10))

	tests := []struct {
		name     string
		req      *http.Request
		status   int
		contains string
	}{
		{name: "method", req: httptest.NewRequest(http.MethodGet, "/pdf", nil), status: http.StatusMethodNotAllowed},
		{name: "no images", req: createPDFRequest(t, nil, nil), status: http.StatusBadRequest, contains: "No images provided"},
		{name: "bad image", req: createPDFRequest(t, [][]byte{good, []byte("xx")}, nil), status: http.StatusBadRequest, contains: "Invalid image"},
		{name: "bad flag", req: createPDFRequest(t, [][]byte{good}, map[string]string{"watermark": "maybe"}), status: http.StatusBadRequest, contains: "watermark"},
		{name: "bad watermark option", req: createPDFRequest(t, [][]byte{good}, map[string]string{"watermark": "true", "opacity": "-1"}), status: http.StatusBadRequest, contains: "opacity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			s.pdfHandler(w, tt.req)
			assert.Equal(t, tt.status, w.Code)
			if tt.contains != "" {
				assert.Contains(t, w.Body.String(), tt.contains)
			}
		})
	}
}
