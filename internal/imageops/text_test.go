package imageops

import (
	"image"
	"image/color"
	"testing"

	"github.com/MeKo-Tech/pixkit/internal/fonts"
	"github.com/MeKo-Tech/pixkit/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var black = color.NRGBA{A: 255}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection("")
	require.NoError(t, err)
	assert.Equal(t, Vertical, d)

	d, err = ParseDirection("Horizontal")
	require.NoError(t, err)
	assert.Equal(t, Horizontal, d)

	_, err = ParseDirection("diagonal")
	require.Error(t, err)
}

func TestListPositions(t *testing.T) {
	assert.Equal(t,
		[]image.Point{{10, 10}, {10, 40}, {10, 70}},
		ListPositions(image.Pt(10, 10), 3, 30, Vertical))
	assert.Equal(t,
		[]image.Point{{0, 5}, {25, 5}},
		ListPositions(image.Pt(0, 5), 2, 25, Horizontal))
	assert.Nil(t, ListPositions(image.Point{}, 0, 10, Vertical))
}

func TestWriteText_DrawsInsideBox(t *testing.T) {
	img := testutil.CreateTestImage(200, 60, black)
	out, err := WriteText(img, TextOptions{Text: "Hello", Position: image.Pt(10, 10), Size: 20})
	require.NoError(t, err)

	face, err := fonts.Face("", 20)
	require.NoError(t, err)
	w, h := TextBox(face, "Hello")
	box := image.Rect(10, 10, 10+w, 10+h)

	assert.Positive(t, testutil.CountChangedPixels(img, out, box))
	assert.Zero(t, testutil.CountChangedPixels(img, out, image.Rect(0, 0, 10, 60)))
	assert.Zero(t, testutil.CountChangedPixels(img, out, image.Rect(10+w+1, 0, 200, 60)))
	// source untouched
	assert.Equal(t, black, img.NRGBAAt(15, 20))
}

func TestWriteText_CenterHorizontally(t *testing.T) {
	img := testutil.CreateTestImage(300, 40, black)
	face, err := fonts.Face("", 16)
	require.NoError(t, err)
	w, _ := TextBox(face, "centered")
	left := (300 - w) / 2

	out, err := WriteText(img, TextOptions{
		Text:               "centered",
		Position:           image.Pt(0, 5),
		Face:               face,
		CenterHorizontally: true,
	})
	require.NoError(t, err)
	assert.Zero(t, testutil.CountChangedPixels(img, out, image.Rect(0, 0, left, 40)))
	assert.Zero(t, testutil.CountChangedPixels(img, out, image.Rect(left+w+1, 0, 300, 40)))
	assert.Positive(t, testutil.CountChangedPixels(img, out, image.Rect(left, 0, left+w+1, 40)))
}

func TestWriteList(t *testing.T) {
	img := testutil.CreateTestImage(120, 120, black)
	out, err := WriteList(img, []string{"one", "two"}, ListOptions{
		Start: image.Pt(5, 5),
		Gap:   60,
		Size:  14,
		Color: color.NRGBA{R: 255, A: 255},
	})
	require.NoError(t, err)

	assert.Positive(t, testutil.CountChangedPixels(img, out, image.Rect(0, 0, 120, 60)))
	assert.Positive(t, testutil.CountChangedPixels(img, out, image.Rect(0, 60, 120, 120)))

	_, err = WriteList(nil, []string{"x"}, ListOptions{Size: 10})
	require.Error(t, err)
}

func TestWriteText_BadFont(t *testing.T) {
	img := testutil.CreateTestImage(10, 10, black)
	_, err := WriteText(img, TextOptions{Text: "x", Size: 10, FontPath: "/does/not/exist.ttf"})
	require.Error(t, err)

	_, err = WriteText(img, TextOptions{Text: "x", Size: 0})
	require.ErrorIs(t, err, fonts.ErrInvalidSize)
}

func TestParseColor(t *testing.T) {
	cases := map[string]color.NRGBA{
		"white":     {255, 255, 255, 255},
		"BLACK":     {0, 0, 0, 255},
		"#f00":      {255, 0, 0, 255},
		"00ff00":    {0, 255, 0, 255},
		"#11223344": {0x11, 0x22, 0x33, 0x44},
	}
	for in, want := range cases {
		got, err := ParseColor(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "#12", "#gggggg", "chartreuse-ish"} {
		_, err := ParseColor(in)
		assert.Error(t, err, in)
	}
}
