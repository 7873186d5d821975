package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"time"

	"github.com/MeKo-Tech/pixkit/internal/imageops"
)

// maxBatchItems bounds the work done by a single /batch request.
const maxBatchItems = 20

// BatchRequest applies one operation to several images.
type BatchRequest struct {
	Operation string              `json:"operation"`
	Options   map[string]any      `json:"options,omitempty"`
	Images    []BatchImageRequest `json:"images"`
}

// BatchImageRequest is a single image of a batch. Options override the
// batch-wide options for this image.
type BatchImageRequest struct {
	Name    string         `json:"name"`
	Data    []byte         `json:"data"`
	Options map[string]any `json:"options,omitempty"`
}

// BatchResponse is the response of /batch.
type BatchResponse struct {
	Success bool          `json:"success"`
	Results []BatchResult `json:"results,omitempty"`
	Error   string        `json:"error,omitempty"`
	Summary BatchSummary  `json:"summary"`
}

// BatchResult is the outcome for one image.
type BatchResult struct {
	Name        string  `json:"name"`
	Success     bool    `json:"success"`
	ContentType string  `json:"content_type,omitempty"`
	Data        []byte  `json:"data,omitempty"`
	Error       string  `json:"error,omitempty"`
	Duration    float64 `json:"duration_seconds"`
}

// BatchSummary provides summary statistics for a batch.
type BatchSummary struct {
	TotalItems    int     `json:"total_items"`
	Successful    int     `json:"successful"`
	Failed        int     `json:"failed"`
	TotalDuration float64 `json:"total_duration_seconds"`
	AvgItemTime   float64 `json:"avg_item_time_seconds"`
}

// batchHandler processes a JSON batch of images. A failing image does not
// stop the batch.
func (s *Server) batchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB*1024*1024*2)
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if isBodyTooLarge(err) {
			s.writeErrorResponse(w, "Request too large", http.StatusRequestEntityTooLarge)
			return
		}
		s.writeErrorResponse(w, fmt.Sprintf("Failed to parse JSON request: %v", err), http.StatusBadRequest)
		return
	}

	switch req.Operation {
	case opWatermark, opWebP, opFit, opEnhance:
	default:
		s.writeErrorResponse(w, "Unsupported operation: "+req.Operation, http.StatusBadRequest)
		return
	}
	if len(req.Images) == 0 {
		s.writeErrorResponse(w, "No images provided in batch request", http.StatusBadRequest)
		return
	}
	if len(req.Images) > maxBatchItems {
		s.writeErrorResponse(w, fmt.Sprintf("Batch size too large (maximum %d items)", maxBatchItems), http.StatusBadRequest)
		return
	}

	start := time.Now()
	results, summary := s.processBatchRequest(r.Context(), req)
	summary.TotalDuration = time.Since(start).Seconds()
	if summary.TotalItems > 0 {
		summary.AvgItemTime = summary.TotalDuration / float64(summary.TotalItems)
	}

	s.writeJSON(w, http.StatusOK, BatchResponse{
		Success: summary.Failed == 0,
		Results: results,
		Summary: summary,
	})
}

func (s *Server) processBatchRequest(ctx context.Context, req BatchRequest) ([]BatchResult, BatchSummary) {
	results := make([]BatchResult, 0, len(req.Images))
	summary := BatchSummary{TotalItems: len(req.Images)}

	for i, item := range req.Images {
		name := item.Name
		if name == "" {
			name = fmt.Sprintf("image-%d", i+1)
		}

		start := time.Now()
		res := BatchResult{Name: name}
		out, err := s.processBatchItem(ctx, req, item)
		res.Duration = time.Since(start).Seconds()

		if err != nil {
			res.Error = err.Error()
			summary.Failed++
			batchItemsTotal.WithLabelValues("error").Inc()
		} else {
			res.Success = true
			res.ContentType = out.ContentType
			res.Data = out.Data
			summary.Successful++
			batchItemsTotal.WithLabelValues("success").Inc()
		}
		results = append(results, res)
	}
	return results, summary
}

func (s *Server) processBatchItem(ctx context.Context, req BatchRequest, item BatchImageRequest) (*output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(item.Data) == 0 {
		return nil, errors.New("no image data")
	}
	img, _, err := imageops.DecodeImage(bytes.NewReader(item.Data))
	if err != nil {
		return nil, err
	}

	opts := make(map[string]any, len(req.Options)+len(item.Options))
	maps.Copy(opts, req.Options)
	maps.Copy(opts, item.Options)
	return s.process(ctx, req.Operation, img, optionsToParams(opts))
}
