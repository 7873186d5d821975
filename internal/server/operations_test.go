package server

import (
	"context"
	"errors"
	"math"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcess_Dispatch(t *testing.T) {
	s := newTestServer(t)
	img := createTestImage(40, 20)

	for _, op := range []string{opWatermark, opWebP, opFit, opEnhance} {
		t.Run(op, func(t *testing.T) {
			out, err := s.process(context.Background(), op, img, url.Values{})
			require.NoError(t, err)
			assert.NotEmpty(t, out.Data)
			assert.NotEmpty(t, out.ContentType)
		})
	}

	_, err := s.process(context.Background(), "sharpen", img, url.Values{})
	assert.True(t, isParamError(err))
}

func TestProcess_CancelledContext(t *testing.T) {
	s := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.process(ctx, opFit, createTestImage(40, 20), url.Values{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRunWithContext_ReturnsAtDeadline(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := runWithContext(ctx, opFit, func() (*output, error) {
		<-release
		return &output{Data: []byte("late")}, nil
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), time.Second)
}

func TestRunWithContext_Result(t *testing.T) {
	out, err := runWithContext(context.Background(), opFit, func() (*output, error) {
		return &output{Data: []byte("ok")}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", string(out.Data))

	boom := errors.New("boom")
	_, err = runWithContext(context.Background(), opFit, func() (*output, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
}

func TestFloatParam_RejectsNonFinite(t *testing.T) {
	for _, raw := range []string{"NaN", "nan", "Inf", "+Inf", "-Inf", "infinity"} {
		_, _, err := floatParam(url.Values{"brightness": {raw}}, "brightness", 1)
		require.Error(t, err, raw)
		assert.True(t, isParamError(err), raw)
	}

	v, set, err := floatParam(url.Values{"brightness": {"1.5"}}, "brightness", 1)
	require.NoError(t, err)
	assert.True(t, set)
	assert.InDelta(t, 1.5, v, 1e-9)

	v, set, err = floatParam(url.Values{}, "brightness", math.Pi)
	require.NoError(t, err)
	assert.False(t, set)
	assert.InDelta(t, math.Pi, v, 1e-9)
}

func TestProcess_NonFiniteParams(t *testing.T) {
	s := newTestServer(t)
	img := createTestImage(40, 20)

	_, err := s.process(context.Background(), opEnhance, img, url.Values{"saturation": {"NaN"}})
	assert.True(t, isParamError(err))

	_, err = s.process(context.Background(), opWatermark, img, url.Values{"divisor": {"Inf"}})
	assert.True(t, isParamError(err))
}
