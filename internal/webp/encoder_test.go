package webp

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	xwebp "golang.org/x/image/webp"

	"github.com/MeKo-Tech/pixkit/internal/testutil"
)

func TestNewEncoder(t *testing.T) {
	enc, err := NewEncoder("", "")
	require.NoError(t, err)
	assert.Equal(t, "native", enc.Format())

	enc, err = NewEncoder("cwebp", "/opt/bin/cwebp")
	require.NoError(t, err)
	assert.Equal(t, "cwebp", enc.Format())
	assert.Equal(t, ".webp", enc.Extension())

	_, err = NewEncoder("avif", "")
	assert.Error(t, err)
}

func TestOptionsQuality(t *testing.T) {
	assert.Equal(t, 0, Options{}.quality())
	assert.Equal(t, DefaultQuality, Options{Quality: -1}.quality())
	assert.Equal(t, DefaultQuality, Options{Quality: 101}.quality())
	assert.Equal(t, 40, Options{Quality: 40}.quality())

	assert.Equal(t, 1, nativeQuality(0))
	assert.Equal(t, 40, nativeQuality(40))
}

func TestNativeEncoder_RoundTrip(t *testing.T) {
	img := testutil.CreateGradientImage(40, 30)

	var buf bytes.Buffer
	require.NoError(t, ConvertImage(context.Background(), img, &buf, Options{Quality: 90}))
	require.Greater(t, buf.Len(), 12)
	assert.Equal(t, "RIFF", buf.String()[:4])
	assert.Equal(t, "WEBP", buf.String()[8:12])

	decoded, err := xwebp.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds().Size(), decoded.Bounds().Size())
}

func TestNativeEncoder_QualityZero(t *testing.T) {
	img := testutil.CreateGradientImage(128, 96)

	var low, def bytes.Buffer
	require.NoError(t, ConvertImage(context.Background(), img, &low, Options{Quality: 0}))
	require.NoError(t, ConvertImage(context.Background(), img, &def, Options{Quality: DefaultQuality}))
	assert.Less(t, low.Len(), def.Len())
}

func TestNativeEncoder_NilImage(t *testing.T) {
	var buf bytes.Buffer
	err := NativeEncoder{}.Encode(context.Background(), &buf, nil, Options{})
	assert.Error(t, err)
}

func TestCWebPEncoder_Missing(t *testing.T) {
	enc := &CWebPEncoder{Path: "/nonexistent/cwebp"}
	assert.False(t, enc.Available())

	var buf bytes.Buffer
	err := enc.Encode(context.Background(), &buf, testutil.CreateGradientImage(4, 4), Options{})
	require.ErrorIs(t, err, ErrEncoderUnavailable)
}

func TestCWebPEncoder_Installed(t *testing.T) {
	enc := &CWebPEncoder{}
	if !enc.Available() {
		t.Skip("cwebp not installed")
	}

	var buf bytes.Buffer
	require.NoError(t, enc.Encode(context.Background(), &buf, testutil.CreateGradientImage(16, 16), Options{Lossless: true}))
	decoded, err := xwebp.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 16, decoded.Bounds().Dx())
}
