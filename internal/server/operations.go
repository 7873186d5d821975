package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"strconv"
	"time"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/pixkit/internal/imageops"
	"github.com/MeKo-Tech/pixkit/internal/webp"
)

// Operation names shared by the HTTP and WebSocket APIs.
const (
	opWatermark = "watermark"
	opWebP      = "webp"
	opFit       = "fit"
	opEnhance   = "enhance"
)

// params is satisfied by url.Values.
type params interface {
	Get(key string) string
}

// output is an encoded operation result.
type output struct {
	Name        string
	ContentType string
	Data        []byte
	Width       int
	Height      int
}

// paramError reports an invalid request parameter. It maps to 400.
type paramError struct {
	Name  string
	Value string
	Err   error
}

func (e *paramError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s %q: %v", e.Name, e.Value, e.Err)
	}
	return fmt.Sprintf("invalid %s %q", e.Name, e.Value)
}

func (e *paramError) Unwrap() error { return e.Err }

func isParamError(err error) bool {
	var pe *paramError
	return errors.As(err, &pe)
}

func intParam(p params, name string, def, lo, hi int) (int, error) {
	raw := p.Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &paramError{Name: name, Value: raw, Err: err}
	}
	if v < lo || v > hi {
		return 0, &paramError{Name: name, Value: raw, Err: fmt.Errorf("must be between %d and %d", lo, hi)}
	}
	return v, nil
}

func floatParam(p params, name string, def float64) (float64, bool, error) {
	raw := p.Get(name)
	if raw == "" {
		return def, false, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, &paramError{Name: name, Value: raw, Err: err}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, &paramError{Name: name, Value: raw, Err: errors.New("must be a finite number")}
	}
	return v, true, nil
}

func boolParam(p params, name string, def bool) (bool, error) {
	raw := p.Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, &paramError{Name: name, Value: raw, Err: err}
	}
	return v, nil
}

// process runs op on img and records operation metrics.
func (s *Server) process(ctx context.Context, op string, img image.Image, p params) (*output, error) {
	start := time.Now()
	if s.timeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.timeoutSec)*time.Second)
		defer cancel()
	}

	out, err := runWithContext(ctx, op, func() (*output, error) {
		return s.dispatch(ctx, op, img, p)
	})
	if err != nil {
		imageOperationsTotal.WithLabelValues(op, "error").Inc()
		return nil, err
	}
	imageOperationsTotal.WithLabelValues(op, "success").Inc()
	imageProcessingDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	outputSizeBytes.WithLabelValues(op).Observe(float64(len(out.Data)))
	return out, nil
}

// runWithContext returns when fn finishes or ctx is done, whichever comes
// first. An abandoned fn runs to completion and its result is dropped.
func runWithContext(ctx context.Context, op string, fn func() (*output, error)) (*output, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s aborted: %w", op, err)
	}

	type result struct {
		out *output
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := fn()
		done <- result{out: out, err: err}
	}()

	select {
	case r := <-done:
		return r.out, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%s timed out: %w", op, ctx.Err())
	}
}

func (s *Server) dispatch(ctx context.Context, op string, img image.Image, p params) (*output, error) {
	switch op {
	case opWatermark:
		return s.watermarkImage(img, p)
	case opWebP:
		return s.convertWebP(ctx, img, p)
	case opFit:
		return s.fitImage(img, p)
	case opEnhance:
		return s.enhanceImage(img, p)
	default:
		return nil, &paramError{Name: "operation", Value: op}
	}
}

func (s *Server) watermarkImage(img image.Image, p params) (*output, error) {
	opts, err := s.watermarkOptions(p)
	if err != nil {
		return nil, err
	}
	marked, err := imageops.Watermark(img, opts)
	if err != nil {
		return nil, err
	}
	return encodePNG(marked, "watermark.png")
}

func (s *Server) watermarkOptions(p params) (imageops.WatermarkOptions, error) {
	d := s.watermark
	opts := imageops.WatermarkOptions{
		Text:        d.Text,
		SizeDivisor: d.SizeDivisor,
		FontPath:    d.FontPath,
	}
	if text := p.Get("text"); text != "" {
		opts.Text = text
	}

	opacity, err := intParam(p, "opacity", d.Opacity, 0, 255)
	if err != nil {
		return opts, err
	}
	opts.Opacity = imageops.Opacity(uint8(opacity)) //nolint:gosec // G115: bounded above

	margin, err := intParam(p, "margin", d.Margin, 0, 1<<16)
	if err != nil {
		return opts, err
	}
	opts.Margin = imageops.Margin(margin)

	divisor, _, err := floatParam(p, "divisor", d.SizeDivisor)
	if err != nil {
		return opts, err
	}
	if divisor <= 0 {
		return opts, &paramError{Name: "divisor", Value: p.Get("divisor"), Err: errors.New("must be positive")}
	}
	opts.SizeDivisor = divisor

	colorName := d.Color
	if c := p.Get("color"); c != "" {
		colorName = c
	}
	col, err := imageops.ParseColor(colorName)
	if err != nil {
		return opts, &paramError{Name: "color", Value: colorName, Err: err}
	}
	opts.Color = col
	return opts, nil
}

func (s *Server) convertWebP(ctx context.Context, img image.Image, p params) (*output, error) {
	opts := s.webpOptions
	var err error
	if opts.Quality, err = intParam(p, "quality", opts.Quality, 0, 100); err != nil {
		return nil, err
	}
	if opts.Lossless, err = boolParam(p, "lossless", opts.Lossless); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := webp.ConvertImage(ctx, img, &buf, opts); err != nil {
		return nil, err
	}
	b := img.Bounds()
	return &output{
		Name:        "image.webp",
		ContentType: "image/webp",
		Data:        buf.Bytes(),
		Width:       b.Dx(),
		Height:      b.Dy(),
	}, nil
}

func (s *Server) fitImage(img image.Image, p params) (*output, error) {
	width, err := intParam(p, "width", s.size.Width, 1, 1<<15)
	if err != nil {
		return nil, err
	}
	height, err := intParam(p, "height", s.size.Height, 1, 1<<15)
	if err != nil {
		return nil, err
	}

	fitted, _, err := imageops.NewService(imageops.Size{Width: width, Height: height}).Fit(img)
	if err != nil {
		return nil, err
	}
	return encodePNG(fitted, "fit.png")
}

func (s *Server) enhanceImage(img image.Image, p params) (*output, error) {
	brightness, hasBrightness, err := floatParam(p, "brightness", s.enhanceFactor)
	if err != nil {
		return nil, err
	}
	saturation, hasSaturation, err := floatParam(p, "saturation", s.enhanceFactor)
	if err != nil {
		return nil, err
	}
	if brightness < 0 {
		return nil, &paramError{Name: "brightness", Value: p.Get("brightness"), Err: errors.New("must not be negative")}
	}
	if saturation < 0 {
		return nil, &paramError{Name: "saturation", Value: p.Get("saturation"), Err: errors.New("must not be negative")}
	}

	// Without parameters both adjustments use the configured factor.
	out := img
	if hasBrightness || !hasSaturation {
		if out, err = imageops.Brightness(out, brightness); err != nil {
			return nil, err
		}
	}
	if hasSaturation || !hasBrightness {
		if out, err = imageops.Saturation(out, saturation); err != nil {
			return nil, err
		}
	}
	return encodePNG(out, "enhanced.png")
}

func encodePNG(img image.Image, name string) (*output, error) {
	f, err := imageops.EncodeFile(img, name, imaging.PNG)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	return &output{Name: f.Name, ContentType: f.ContentType, Data: f.Data, Width: b.Dx(), Height: b.Dy()}, nil
}
