// Package fonts loads and caches TrueType/OpenType faces for text drawing.
//
// An empty path or one of the Builtin* names resolves to the Go font family
// bundled with golang.org/x/image, so drawing works without any font files
// installed.
package fonts

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/text/unicode/norm"
)

// Names of the bundled faces accepted in place of a font path.
const (
	BuiltinRegular = "builtin:regular"
	BuiltinItalic  = "builtin:italic"
	BuiltinBold    = "builtin:bold"
)

// DefaultDPI matches the point-to-pixel mapping used by most imaging tools,
// so a size of N yields text roughly N pixels tall.
const DefaultDPI = 72

// ErrInvalidSize is returned for non-positive face sizes.
var ErrInvalidSize = errors.New("font size must be positive")

var builtin = map[string][]byte{
	"":             goregular.TTF,
	BuiltinRegular: goregular.TTF,
	BuiltinItalic:  goitalic.TTF,
	BuiltinBold:    gobold.TTF,
}

// Loader parses font files once and hands out sized faces.
type Loader struct {
	mu    sync.Mutex
	fonts map[string]*opentype.Font
}

// NewLoader creates an empty loader.
func NewLoader() *Loader {
	return &Loader{fonts: make(map[string]*opentype.Font)}
}

var defaultLoader = NewLoader()

// Face returns a face of the given size from the shared loader.
func Face(path string, size float64) (font.Face, error) {
	return defaultLoader.Face(path, size)
}

// Face returns a new face for the font at path scaled to size. Parsed fonts
// are cached per path. A face holds glyph buffers and must not be shared
// between goroutines, which is why faces themselves are not cached.
func (l *Loader) Face(path string, size float64) (font.Face, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSize, size)
	}

	l.mu.Lock()
	f, err := l.parse(path)
	l.mu.Unlock()
	if err != nil {
		return nil, err
	}

	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     DefaultDPI,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create face for %q: %w", path, err)
	}
	return face, nil
}

// parse must be called with l.mu held.
func (l *Loader) parse(path string) (*opentype.Font, error) {
	if f, ok := l.fonts[path]; ok {
		return f, nil
	}

	data, ok := builtin[path]
	if !ok {
		var err error
		data, err = os.ReadFile(path) //nolint:gosec // G304: font path comes from configuration
		if err != nil {
			return nil, fmt.Errorf("failed to read font %q: %w", path, err)
		}
	}

	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font %q: %w", path, err)
	}
	l.fonts[path] = f
	return f, nil
}

// NormalizeText returns s in Unicode normalization form C so combining
// sequences are drawn as single glyphs where the font has them.
func NormalizeText(s string) string {
	return norm.NFC.String(s)
}
