// Package batch discovers input files and runs a per-file function over
// them, sequentially or with a bounded worker pool, collecting one result
// per file.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ErrNoFiles is returned by Run when there is nothing to process.
var ErrNoFiles = errors.New("no files to process")

// ErrSkipped marks a file that was deliberately not processed. Wrap it
// (see Skip) to record a reason.
var ErrSkipped = errors.New("skipped")

// Skip returns an error that makes Run record the file as skipped.
func Skip(reason string) error {
	return fmt.Errorf("%w: %s", ErrSkipped, reason)
}

// Func processes a single file and returns the location of what it
// produced, if anything.
type Func func(ctx context.Context, path string) (output string, err error)

// RunOptions controls Run.
type RunOptions struct {
	// Workers is the number of files processed concurrently. Values below
	// 1 mean sequential processing.
	Workers int
	// ContinueOnError keeps scheduling files after a failure. When false,
	// files not yet started are reported as skipped.
	ContinueOnError bool
	Progress        ProgressCallback
	Logger          *slog.Logger
}

// Run applies fn to every file. Results are returned in input order. The
// error is non-nil when the context was canceled or, with ContinueOnError
// disabled, when a file failed; the partial Result is returned either way.
func Run(ctx context.Context, files []string, opts RunOptions, fn Func) (*Result, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	workers := max(opts.Workers, 1)
	workers = min(workers, len(files))
	progress := opts.Progress
	if progress == nil {
		progress = NoOpProgressCallback{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	results := make([]FileResult, len(files))
	var (
		stopped atomic.Bool
		mu      sync.Mutex
		done    int
		wg      sync.WaitGroup
	)

	jobs := make(chan int)
	start := time.Now()
	progress.OnStart(len(files))

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				var res FileResult
				switch {
				case ctx.Err() != nil:
					res = FileResult{Path: files[i], Status: StatusSkipped, Error: "canceled"}
				case stopped.Load():
					res = FileResult{Path: files[i], Status: StatusSkipped, Error: "batch stopped after a failure"}
				default:
					res = runOne(ctx, files[i], fn, logger)
					if res.Status == StatusFailed && !opts.ContinueOnError {
						stopped.Store(true)
					}
				}
				results[i] = res

				mu.Lock()
				done++
				if res.Status == StatusFailed {
					progress.OnError(i, res.Err)
				}
				progress.OnProgress(done, len(files))
				mu.Unlock()
			}
		}()
	}

	for i := range files {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	progress.OnComplete()

	result := &Result{Files: results, Duration: time.Since(start), Workers: workers}

	if err := ctx.Err(); err != nil {
		return result, err
	}
	if !opts.ContinueOnError {
		if f := result.FirstFailure(); f != nil {
			return result, fmt.Errorf("processing %s: %w", f.Path, f.Err)
		}
	}
	return result, nil
}

func runOne(ctx context.Context, path string, fn Func, logger *slog.Logger) FileResult {
	start := time.Now()
	output, err := fn(ctx, path)
	res := FileResult{Path: path, Output: output, Duration: time.Since(start)}

	switch {
	case err == nil:
		res.Status = StatusProcessed
		logger.Debug("Processed file", "source", path, "target", output, "duration", res.Duration)
	case errors.Is(err, ErrSkipped):
		res.Status = StatusSkipped
		res.Error = err.Error()
		logger.Debug("Skipped file", "source", path, "reason", err)
	default:
		res.Status = StatusFailed
		res.Err = err
		res.Error = err.Error()
		logger.Error("Failed to process file", "source", path, "error", err)
	}
	return res
}
