package batch

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoOpProgressCallback(t *testing.T) {
	cb := NoOpProgressCallback{}
	cb.OnStart(10)
	cb.OnProgress(5, 10)
	cb.OnComplete()
	cb.OnError(3, assert.AnError)
}

func TestConsoleProgressCallback(t *testing.T) {
	var buf bytes.Buffer
	cb := NewConsoleProgressCallback(&buf, "Test: ").WithWidth(10)

	cb.OnStart(10)
	assert.Contains(t, buf.String(), "Test: 0/10 (0.0%)")

	buf.Reset()
	cb.OnProgress(5, 10)
	assert.Contains(t, buf.String(), "5/10")
	assert.Contains(t, buf.String(), "50.0%")

	buf.Reset()
	cb.OnError(3, assert.AnError)
	assert.Contains(t, buf.String(), "Test: Error at file 3")

	buf.Reset()
	cb.OnComplete()
	assert.Contains(t, buf.String(), "Test: Completed")
}

func TestConsoleProgressCallback_UpdateThrottling(t *testing.T) {
	var buf bytes.Buffer
	cb := NewConsoleProgressCallback(&buf, "").WithUpdateInterval(time.Hour)
	cb.OnStart(10)

	buf.Reset()
	cb.OnProgress(1, 10)
	assert.NotEmpty(t, buf.String())

	buf.Reset()
	cb.OnProgress(2, 10)
	assert.Empty(t, buf.String())

	// the final update always draws
	cb.OnProgress(10, 10)
	assert.NotEmpty(t, buf.String())
}

func TestLogProgressCallback(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	cb := NewLogProgressCallback(logger, slog.LevelInfo, "wm: ").WithInterval(2)

	cb.OnStart(4)
	assert.Contains(t, buf.String(), "wm: Starting batch")
	assert.Contains(t, buf.String(), "total=4")

	buf.Reset()
	cb.OnProgress(1, 4)
	assert.Empty(t, buf.String())

	cb.OnProgress(2, 4)
	assert.Contains(t, buf.String(), "current=2")

	buf.Reset()
	cb.OnError(2, assert.AnError)
	assert.Contains(t, buf.String(), "level=ERROR")

	buf.Reset()
	cb.OnComplete()
	assert.Contains(t, buf.String(), "wm: Batch completed")
}

func TestMultiProgressCallback(t *testing.T) {
	a, b := &recordingProgress{}, &recordingProgress{}
	m := NewMultiProgressCallback(a, b)
	m.OnStart(2)
	m.OnProgress(1, 2)
	m.OnError(0, assert.AnError)
	m.OnComplete()

	for _, r := range []*recordingProgress{a, b} {
		assert.Equal(t, 2, r.started)
		assert.Equal(t, []int{1}, r.progress)
		assert.Equal(t, []int{0}, r.errors)
		assert.True(t, r.complete)
	}
}

func TestNewProgress(t *testing.T) {
	assert.IsType(t, &ConsoleProgressCallback{}, NewProgress("bar", nil, ""))
	assert.IsType(t, &LogProgressCallback{}, NewProgress("log", nil, ""))
	assert.IsType(t, NoOpProgressCallback{}, NewProgress("none", nil, ""))
	assert.IsType(t, NoOpProgressCallback{}, NewProgress("", nil, ""))

	both := NewProgress("bar, log", nil, "")
	require.IsType(t, &MultiProgressCallback{}, both)
	assert.Len(t, both.(*MultiProgressCallback).callbacks, 2)
}
