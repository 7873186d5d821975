package batch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProgress struct {
	started  int
	progress []int
	errors   []int
	complete bool
}

func (r *recordingProgress) OnStart(total int)          { r.started = total }
func (r *recordingProgress) OnProgress(current, _ int)  { r.progress = append(r.progress, current) }
func (r *recordingProgress) OnComplete()                { r.complete = true }
func (r *recordingProgress) OnError(index int, _ error) { r.errors = append(r.errors, index) }

func TestRun_NoFiles(t *testing.T) {
	_, err := Run(context.Background(), nil, RunOptions{}, nil)
	require.ErrorIs(t, err, ErrNoFiles)
}

func TestRun_SequentialOrderAndStatuses(t *testing.T) {
	files := []string{"a.png", "b.txt", "c.png"}
	var order []string
	prog := &recordingProgress{}

	res, err := Run(context.Background(), files, RunOptions{Progress: prog}, func(_ context.Context, p string) (string, error) {
		order = append(order, p)
		if p == "b.txt" {
			return "", Skip("unsupported extension")
		}
		return "out/" + p, nil
	})
	require.NoError(t, err)

	assert.Equal(t, files, order)
	require.Len(t, res.Files, 3)
	assert.Equal(t, StatusProcessed, res.Files[0].Status)
	assert.Equal(t, "out/a.png", res.Files[0].Output)
	assert.Equal(t, StatusSkipped, res.Files[1].Status)
	assert.Contains(t, res.Files[1].Error, "unsupported extension")
	assert.Equal(t, []string{"out/a.png", "out/c.png"}, res.Outputs())
	assert.Equal(t, Stats{Total: 3, Processed: 2, Skipped: 1, Workers: 1, Duration: res.Duration}, res.Stats())

	assert.Equal(t, 3, prog.started)
	assert.Equal(t, []int{1, 2, 3}, prog.progress)
	assert.True(t, prog.complete)
}

func TestRun_StopsOnFirstFailure(t *testing.T) {
	files := []string{"1", "2", "3", "4"}
	boom := errors.New("boom")
	var calls int

	res, err := Run(context.Background(), files, RunOptions{}, func(_ context.Context, p string) (string, error) {
		calls++
		if p == "2" {
			return "", boom
		}
		return p, nil
	})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "processing 2")
	assert.Equal(t, 2, calls)

	assert.Equal(t, StatusProcessed, res.Files[0].Status)
	assert.Equal(t, StatusFailed, res.Files[1].Status)
	assert.Equal(t, StatusSkipped, res.Files[2].Status)
	assert.Equal(t, StatusSkipped, res.Files[3].Status)
	assert.Equal(t, &res.Files[1], res.FirstFailure())
}

func TestRun_ContinueOnError(t *testing.T) {
	files := []string{"1", "2", "3"}
	prog := &recordingProgress{}

	res, err := Run(context.Background(), files, RunOptions{ContinueOnError: true, Progress: prog},
		func(_ context.Context, p string) (string, error) {
			if p != "3" {
				return "", fmt.Errorf("bad %s", p)
			}
			return p, nil
		})
	require.NoError(t, err)

	s := res.Stats()
	assert.Equal(t, 2, s.Failed)
	assert.Equal(t, 1, s.Processed)
	assert.Equal(t, []int{0, 1}, prog.errors)
}

func TestRun_WorkerPool(t *testing.T) {
	files := make([]string, 20)
	for i := range files {
		files[i] = fmt.Sprintf("f%02d", i)
	}

	var inFlight, peak atomic.Int32
	res, err := Run(context.Background(), files, RunOptions{Workers: 4}, func(_ context.Context, p string) (string, error) {
		n := inFlight.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return p + ".out", nil
	})
	require.NoError(t, err)

	assert.Equal(t, 4, res.Workers)
	assert.LessOrEqual(t, peak.Load(), int32(4))
	for i, f := range res.Files {
		assert.Equal(t, files[i], f.Path)
		assert.Equal(t, files[i]+".out", f.Output)
	}
}

func TestRun_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	res, err := Run(ctx, []string{"a", "b", "c"}, RunOptions{}, func(_ context.Context, p string) (string, error) {
		if p == "a" {
			cancel()
		}
		return p, nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StatusProcessed, res.Files[0].Status)
	assert.Equal(t, StatusSkipped, res.Files[1].Status)
	assert.Equal(t, "canceled", res.Files[2].Error)
}
