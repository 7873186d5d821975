package webp

import (
	"context"
	"errors"
	"image"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/pixkit/internal/batch"
	"github.com/MeKo-Tech/pixkit/internal/config"
	"github.com/MeKo-Tech/pixkit/internal/testutil"
)

// fakeEncoder writes a fixed payload so tests do not depend on a real codec.
type fakeEncoder struct {
	available bool
	fail      bool
	calls     int
	last      Options
}

func (f *fakeEncoder) Format() string    { return "fake" }
func (f *fakeEncoder) Extension() string { return ".webp" }
func (f *fakeEncoder) Available() bool   { return f.available }

func (f *fakeEncoder) Encode(_ context.Context, w io.Writer, img image.Image, opts Options) error {
	f.calls++
	f.last = opts
	if f.fail {
		return errors.New("encode failed")
	}
	_, err := w.Write([]byte("RIFF-fake-" + img.Bounds().String()))
	return err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestShouldConvert(t *testing.T) {
	tests := []struct {
		name  string
		types []string
		ext   string
		want  bool
	}{
		{"empty list converts everything", nil, ".png", true},
		{"empty list converts unknown", nil, ".xyz", true},
		{"member", []string{".png", ".jpg"}, ".jpg", true},
		{"not member", []string{".png"}, ".jpg", false},
		{"case insensitive", []string{".PNG"}, ".png", true},
		{"dot insensitive", []string{"png"}, ".png", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewConverter(Config{ConvertImageTypes: tt.types}, &fakeEncoder{available: true}, quietLogger())
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.ShouldConvert(tt.ext))
		})
	}
}

func TestNewConverter_UnavailableEncoder(t *testing.T) {
	_, err := NewConverter(Config{}, &fakeEncoder{available: false}, nil)
	require.ErrorIs(t, err, ErrEncoderUnavailable)
}

func TestRun_ConvertsAndReplaces(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteSampleImages(t, dir, "a.png", "nested/b.jpg", "notes.txt")

	enc := &fakeEncoder{available: true}
	c, err := NewConverter(Config{Dir: dir, ReplaceFiles: true, Quality: 80}, enc, quietLogger())
	require.NoError(t, err)

	res, err := c.Run(context.Background())
	require.NoError(t, err)

	stats := res.Stats()
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Processed)
	// notes.txt is not an image: logged as failure, the walk continues.
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 80, enc.last.Quality)

	assert.True(t, testutil.FileExists(filepath.Join(dir, "a.webp")))
	assert.True(t, testutil.FileExists(filepath.Join(dir, "nested", "b.webp")))
	assert.False(t, testutil.FileExists(filepath.Join(dir, "a.png")))
	assert.False(t, testutil.FileExists(filepath.Join(dir, "nested", "b.jpg")))
	assert.True(t, testutil.FileExists(filepath.Join(dir, "notes.txt")))
}

func TestRun_KeepsOriginalsAndFilters(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteSampleImages(t, dir, "a.png", "b.jpg", "c.webp")

	enc := &fakeEncoder{available: true}
	c, err := NewConverter(Config{Dir: dir, ConvertImageTypes: []string{".png", ".webp"}}, enc, quietLogger())
	require.NoError(t, err)

	res, err := c.Run(context.Background())
	require.NoError(t, err)

	byPath := map[string]batch.FileStatus{}
	for _, f := range res.Files {
		byPath[filepath.Base(f.Path)] = f.Status
	}
	assert.Equal(t, batch.StatusProcessed, byPath["a.png"])
	assert.Equal(t, batch.StatusSkipped, byPath["b.jpg"])
	assert.Equal(t, batch.StatusSkipped, byPath["c.webp"])
	assert.Equal(t, 1, enc.calls)

	assert.True(t, testutil.FileExists(filepath.Join(dir, "a.png")))
	assert.True(t, testutil.FileExists(filepath.Join(dir, "a.webp")))
	assert.False(t, testutil.FileExists(filepath.Join(dir, "b.webp")))
}

func TestRun_EncoderFailureContinues(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteSampleImages(t, dir, "a.png", "b.png")

	c, err := NewConverter(Config{Dir: dir, ReplaceFiles: true}, &fakeEncoder{available: true, fail: true}, quietLogger())
	require.NoError(t, err)

	res, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Stats().Failed)
	// Originals survive a failed conversion.
	assert.True(t, testutil.FileExists(filepath.Join(dir, "a.png")))
	assert.True(t, testutil.FileExists(filepath.Join(dir, "b.png")))
}

func TestRun_EmptyDirectory(t *testing.T) {
	c, err := NewConverter(Config{Dir: t.TempDir()}, &fakeEncoder{available: true}, quietLogger())
	require.NoError(t, err)

	_, err = c.Run(context.Background())
	require.ErrorIs(t, err, batch.ErrNoFiles)
}

func TestConfigFromApp(t *testing.T) {
	app := config.DefaultConfig().WebP
	cfg := ConfigFromApp(app, 3)
	assert.Equal(t, app.Dir, cfg.Dir)
	assert.Equal(t, app.ReplaceFiles, cfg.ReplaceFiles)
	assert.Equal(t, app.Quality, cfg.Quality)
	assert.Equal(t, 3, cfg.Workers)
}
