package testutil

import (
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetProjectRoot(t *testing.T) {
	root, err := GetProjectRoot()
	require.NoError(t, err)
	assert.True(t, FileExists(filepath.Join(root, "go.mod")))
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(CreateTempDir(t), "a", "b")
	require.NoError(t, EnsureDir(dir))
	assert.True(t, DirExists(dir))
	assert.False(t, DirExists(filepath.Join(dir, "missing")))
}

func TestWriteSampleImages(t *testing.T) {
	dir := CreateTempDir(t)
	paths := WriteSampleImages(t, dir, "one.png", "two.jpg", "notes.txt", "nested/three.gif")
	require.Len(t, paths, 4)

	for _, p := range paths {
		assert.True(t, FileExists(p), p)
	}
	img := LoadImage(t, paths[0])
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, []string{"notes.txt", "one.png", "two.jpg"}, ListFiles(t, dir))
}

func TestCompareImages(t *testing.T) {
	a := CreateTestImage(10, 10, color.White)
	b := CreateTestImage(10, 10, color.White)
	c := CreateTestImage(10, 10, color.Black)

	assert.True(t, CompareImages(a, b, 0))
	assert.False(t, CompareImages(a, c, 0.1))
	assert.False(t, CompareImages(a, CreateTestImage(5, 10, color.White), 1))
	assert.Equal(t, 100, CountChangedPixels(a, c, a.Bounds()))
	assert.Zero(t, CountChangedPixels(a, b, a.Bounds()))
}

func TestCreateGradientImage(t *testing.T) {
	img := CreateGradientImage(11, 5)
	assert.Equal(t, color.NRGBA{R: 0, G: 0, B: 128, A: 255}, img.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 128, A: 255}, img.NRGBAAt(10, 4))
}
