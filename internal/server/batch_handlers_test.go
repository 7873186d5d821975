package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postBatch(t *testing.T, s *Server, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/batch", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.batchHandler(w, req)
	return w
}

func TestBatchHandler_Success(t *testing.T) {
	s := newTestServer(t)

	req := BatchRequest{
		Operation: opFit,
		Options:   map[string]any{"width": 12.0, "height": 12.0},
		Images: []BatchImageRequest{
			{Name: "one.png", Data: encodeImageToPNG(t, createTestImage(30, 20))},
			{Data: encodeImageToPNG(t, createTestImage(20, 30)), Options: map[string]any{"width": 6.0}},
		},
	}

	w := postBatch(t, s, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp BatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.Summary.TotalItems)
	assert.Equal(t, 2, resp.Summary.Successful)
	assert.Zero(t, resp.Summary.Failed)
	require.Len(t, resp.Results, 2)

	assert.Equal(t, "one.png", resp.Results[0].Name)
	assert.Equal(t, "image-2", resp.Results[1].Name)

	first := decodePNG(t, resp.Results[0].Data)
	assert.Equal(t, 12, first.Bounds().Dx())
	// Per-image options override the batch options.
	second := decodePNG(t, resp.Results[1].Data)
	assert.Equal(t, 6, second.Bounds().Dx())
	assert.Equal(t, 12, second.Bounds().Dy())
}

func TestBatchHandler_PartialFailure(t *testing.T) {
	s := newTestServer(t)

	w := postBatch(t, s, BatchRequest{
		Operation: opWatermark,
		Images: []BatchImageRequest{
			{Name: "good", Data: encodeImageToPNG(t, createTestImage(30, 30))},
			{Name: "bad", Data: []byte("garbage")},
			{Name: "empty"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp BatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, 1, resp.Summary.Successful)
	assert.Equal(t, 2, resp.Summary.Failed)

	assert.True(t, resp.Results[0].Success)
	assert.False(t, resp.Results[1].Success)
	assert.NotEmpty(t, resp.Results[1].Error)
	assert.Equal(t, "no image data", resp.Results[2].Error)
}

func TestBatchHandler_Validation(t *testing.T) {
	s := newTestServer(t)
	img := encodeImageToPNG(t, createTestImage(4, 4))

	tooMany := make([]BatchImageRequest, maxBatchItems+1)
	for i := range tooMany {
		tooMany[i] = BatchImageRequest{Name: fmt.Sprintf("%d", i), Data: img}
	}

	tests := []struct {
		name     string
		body     any
		contains string
	}{
		{name: "unknown operation", body: BatchRequest{Operation: "sharpen", Images: []BatchImageRequest{{Data: img}}}, contains: "Unsupported operation: sharpen"},
		{name: "no images", body: BatchRequest{Operation: opFit}, contains: "No images provided"},
		{name: "too many", body: BatchRequest{Operation: opFit, Images: tooMany}, contains: "Batch size too large"},
		{name: "not json", body: "just a string", contains: "Failed to parse JSON request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postBatch(t, s, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Contains(t, resp.Error, tt.contains)
		})
	}

	w := httptest.NewRecorder()
	s.batchHandler(w, httptest.NewRequest(http.MethodGet, "/batch", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
