package server

import (
	"fmt"
	"image"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/pixkit/internal/imageops"
	"github.com/MeKo-Tech/pixkit/internal/pdf"
)

const opPDF = "pdf"

// pdfHandler bundles the uploaded "images" into a PDF, one page per image
// in upload order. With watermark=true every page is watermarked first
// using the same fields as /watermark.
func (s *Server) pdfHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		if isBodyTooLarge(err) {
			s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		} else {
			s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
		}
		return
	}

	headers := r.MultipartForm.File["images"]
	if len(headers) == 0 {
		s.writeErrorResponse(w, "No images provided", http.StatusBadRequest)
		return
	}

	mark, err := boolParam(r.Form, "watermark", false)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	var markOpts imageops.WatermarkOptions
	if mark {
		if markOpts, err = s.watermarkOptions(r.Form); err != nil {
			s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	tmpDir, err := os.MkdirTemp("", "pixkit-pdf-")
	if err != nil {
		s.writeErrorResponse(w, "Failed to prepare bundle", http.StatusInternalServerError)
		return
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	start := time.Now()
	pages := make([]string, 0, len(headers))
	for i, fh := range headers {
		img, err := decodeUpload(fh)
		if err != nil {
			imageOperationsTotal.WithLabelValues(opPDF, "error").Inc()
			s.writeErrorResponse(w, fmt.Sprintf("Invalid image %s: %v", fh.Filename, err), http.StatusBadRequest)
			return
		}
		uploadSizeBytes.Observe(float64(fh.Size))

		if mark {
			if img, err = imageops.Watermark(img, markOpts); err != nil {
				imageOperationsTotal.WithLabelValues(opPDF, "error").Inc()
				s.writeErrorResponse(w, fmt.Sprintf("watermark failed: %v", err), http.StatusInternalServerError)
				return
			}
		}

		page := filepath.Join(tmpDir, "page-"+strconv.Itoa(i+1)+".png")
		if err := imageops.SaveImage(img, page, imaging.PNG); err != nil {
			s.writeErrorResponse(w, "Failed to prepare bundle", http.StatusInternalServerError)
			return
		}
		pages = append(pages, page)
	}

	out := filepath.Join(tmpDir, "bundle.pdf")
	if err := pdf.Bundle(pages, out); err != nil {
		imageOperationsTotal.WithLabelValues(opPDF, "error").Inc()
		s.writeErrorResponse(w, fmt.Sprintf("pdf failed: %v", err), http.StatusInternalServerError)
		return
	}
	data, err := os.ReadFile(out) //nolint:gosec // G304: path inside our own temp dir
	if err != nil {
		s.writeErrorResponse(w, "Failed to read bundle", http.StatusInternalServerError)
		return
	}

	imageOperationsTotal.WithLabelValues(opPDF, "success").Inc()
	imageProcessingDuration.WithLabelValues(opPDF).Observe(time.Since(start).Seconds())
	outputSizeBytes.WithLabelValues(opPDF).Observe(float64(len(data)))
	slog.Debug("Bundled PDF", "pages", len(pages), "bytes", len(data))

	s.writeOutput(w, &output{Name: "bundle.pdf", ContentType: "application/pdf", Data: data})
}

func decodeUpload(fh *multipart.FileHeader) (image.Image, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	img, _, err := imageops.DecodeImage(f)
	return img, err
}
