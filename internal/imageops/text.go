package imageops

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/pixkit/internal/fonts"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// Direction selects how list items advance from one to the next.
type Direction int

const (
	// Vertical stacks items downwards, adding the gap to y.
	Vertical Direction = iota
	// Horizontal lays items out left to right, adding the gap to x.
	Horizontal
)

// ParseDirection maps "vertical"/"horizontal" (or "v"/"h") to a Direction.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "v", "vertical":
		return Vertical, nil
	case "h", "horizontal":
		return Horizontal, nil
	default:
		return Vertical, fmt.Errorf("unknown direction %q", s)
	}
}

// TextOptions configures WriteText.
type TextOptions struct {
	Text     string
	Position image.Point
	Color    color.Color
	Size     float64
	FontPath string
	// Face overrides FontPath/Size when set.
	Face font.Face
	// CenterHorizontally ignores Position.X and centers the text on the
	// image width, keeping Position.Y.
	CenterHorizontally bool
}

// ListOptions configures WriteList.
type ListOptions struct {
	Start     image.Point
	Gap       int
	Direction Direction
	Color     color.Color
	Size      float64
	FontPath  string
	Face      font.Face
}

// TextBox returns the pixel width and height of text drawn with face. The
// height spans the face ascent plus descent.
func TextBox(face font.Face, text string) (int, int) {
	m := face.Metrics()
	return font.MeasureString(face, text).Ceil(), (m.Ascent + m.Descent).Ceil()
}

// WriteText draws a single line of text onto a copy of img. Position is the
// top-left corner of the text box.
func WriteText(img image.Image, opts TextOptions) (image.Image, error) {
	if img == nil {
		return nil, &ImageProcessingError{Operation: "text", Err: errNilImage}
	}
	face, err := resolveFace(opts.Face, opts.FontPath, opts.Size)
	if err != nil {
		return nil, &ImageProcessingError{Operation: "text", Err: err}
	}

	text := fonts.NormalizeText(opts.Text)
	pos := opts.Position
	if opts.CenterHorizontally {
		w, _ := TextBox(face, text)
		pos.X = (img.Bounds().Dx() - w) / 2
	}

	dst := ToNRGBA(img)
	drawString(dst, face, text, pos, colorOrDefault(opts.Color))
	return dst, nil
}

// WriteList draws items onto a copy of img, one per position returned by
// ListPositions.
func WriteList(img image.Image, items []string, opts ListOptions) (image.Image, error) {
	if img == nil {
		return nil, &ImageProcessingError{Operation: "list", Err: errNilImage}
	}
	face, err := resolveFace(opts.Face, opts.FontPath, opts.Size)
	if err != nil {
		return nil, &ImageProcessingError{Operation: "list", Err: err}
	}

	dst := ToNRGBA(img)
	col := colorOrDefault(opts.Color)
	for i, pos := range ListPositions(opts.Start, len(items), opts.Gap, opts.Direction) {
		drawString(dst, face, fonts.NormalizeText(items[i]), pos, col)
	}
	return dst, nil
}

// ListPositions returns n positions starting at start, each gap pixels
// further along dir than the previous one.
func ListPositions(start image.Point, n, gap int, dir Direction) []image.Point {
	if n <= 0 {
		return nil
	}
	step := image.Pt(0, gap)
	if dir == Horizontal {
		step = image.Pt(gap, 0)
	}
	out := make([]image.Point, n)
	p := start
	for i := range out {
		out[i] = p
		p = p.Add(step)
	}
	return out
}

// drawString renders text with its box's top-left corner at pos.
func drawString(dst draw.Image, face font.Face, text string, pos image.Point, col color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(pos.X, pos.Y+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(text)
}

func resolveFace(face font.Face, path string, size float64) (font.Face, error) {
	if face != nil {
		return face, nil
	}
	return fonts.Face(path, size)
}

func colorOrDefault(c color.Color) color.Color {
	if c == nil {
		return color.White
	}
	return c
}

var namedColors = map[string]color.NRGBA{
	"white":       {255, 255, 255, 255},
	"black":       {0, 0, 0, 255},
	"red":         {255, 0, 0, 255},
	"green":       {0, 128, 0, 255},
	"lime":        {0, 255, 0, 255},
	"blue":        {0, 0, 255, 255},
	"yellow":      {255, 255, 0, 255},
	"gray":        {128, 128, 128, 255},
	"grey":        {128, 128, 128, 255},
	"transparent": {0, 0, 0, 0},
}

// ParseColor parses a color name ("white", "black", ...) or a hex value in
// the forms "#RGB", "#RRGGBB" or "#RRGGBBAA" (the leading '#' is optional).
func ParseColor(s string) (color.NRGBA, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := namedColors[s]; ok {
		return c, nil
	}

	hex := strings.TrimPrefix(s, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", s, errors.Unwrap(err))
	}
	return color.NRGBA{
		R: uint8(v >> 24), //nolint:gosec // G115: masked to a byte
		G: uint8(v >> 16), //nolint:gosec // G115: masked to a byte
		B: uint8(v >> 8),  //nolint:gosec // G115: masked to a byte
		A: uint8(v),       //nolint:gosec // G115: masked to a byte
	}, nil
}
