package batch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressCallback receives progress events from Run. Run serializes calls,
// so implementations need no locking of their own for Run's sake.
type ProgressCallback interface {
	// OnStart is called once with the number of files in the batch.
	OnStart(total int)
	// OnProgress is called after each file finishes.
	OnProgress(current, total int)
	// OnComplete is called once after the last file.
	OnComplete()
	// OnError is called for each failed file with its index.
	OnError(index int, err error)
}

// NewProgress builds the callback for a comma-separated list of modes:
// "bar" draws a console bar on w, "log" reports through slog. "none", an
// empty list or unknown modes are silent. "bar,log" reports to both.
func NewProgress(mode string, w io.Writer, prefix string) ProgressCallback {
	var cbs []ProgressCallback
	for _, m := range strings.Split(mode, ",") {
		switch strings.TrimSpace(m) {
		case "bar":
			cbs = append(cbs, NewConsoleProgressCallback(w, prefix))
		case "log":
			cbs = append(cbs, NewLogProgressCallback(slog.Default(), slog.LevelInfo, prefix))
		}
	}
	switch len(cbs) {
	case 0:
		return NoOpProgressCallback{}
	case 1:
		return cbs[0]
	default:
		return NewMultiProgressCallback(cbs...)
	}
}

// NoOpProgressCallback ignores every event.
type NoOpProgressCallback struct{}

func (NoOpProgressCallback) OnStart(int)         {}
func (NoOpProgressCallback) OnProgress(_, _ int) {}
func (NoOpProgressCallback) OnComplete()         {}
func (NoOpProgressCallback) OnError(int, error)  {}

// ConsoleProgressCallback draws a progress bar with rate and ETA.
type ConsoleProgressCallback struct {
	writer         io.Writer
	prefix         string
	width          int
	updateInterval time.Duration
	lastUpdate     time.Time
	startTime      time.Time
	mutex          sync.Mutex
}

// NewConsoleProgressCallback creates a console progress bar on writer
// (stderr when nil).
func NewConsoleProgressCallback(writer io.Writer, prefix string) *ConsoleProgressCallback {
	if writer == nil {
		writer = os.Stderr
	}
	return &ConsoleProgressCallback{
		writer:         writer,
		prefix:         prefix,
		width:          40,
		updateInterval: 100 * time.Millisecond,
	}
}

// WithWidth sets the bar width in characters.
func (c *ConsoleProgressCallback) WithWidth(width int) *ConsoleProgressCallback {
	c.width = width
	return c
}

// WithUpdateInterval sets the minimum time between redraws.
func (c *ConsoleProgressCallback) WithUpdateInterval(interval time.Duration) *ConsoleProgressCallback {
	c.updateInterval = interval
	return c
}

func (c *ConsoleProgressCallback) OnStart(total int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.startTime = time.Now()
	c.lastUpdate = time.Time{}
	_, _ = fmt.Fprintf(c.writer, "%s0/%d (0.0%%)\n", c.prefix, total)
}

func (c *ConsoleProgressCallback) OnProgress(current, total int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now()
	if now.Sub(c.lastUpdate) < c.updateInterval && current < total {
		return
	}
	c.lastUpdate = now
	c.draw(current, total, now)
}

func (c *ConsoleProgressCallback) OnComplete() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, _ = fmt.Fprintf(c.writer, "\n%sCompleted in %v\n", c.prefix, time.Since(c.startTime).Round(time.Millisecond))
}

func (c *ConsoleProgressCallback) OnError(index int, err error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, _ = fmt.Fprintf(c.writer, "\n%sError at file %d: %v\n", c.prefix, index, err)
}

func (c *ConsoleProgressCallback) draw(current, total int, now time.Time) {
	if total == 0 {
		return
	}

	percent := float64(current) / float64(total) * 100.0
	filled := c.width * current / total
	bar := strings.Repeat("█", filled) + strings.Repeat("░", c.width-filled)
	status := fmt.Sprintf("\r%s[%s] %d/%d (%.1f%%)", c.prefix, bar, current, total, percent)

	elapsed := now.Sub(c.startTime)
	if elapsed > 0 && current > 0 {
		status += fmt.Sprintf(" %.1f/s", float64(current)/elapsed.Seconds())
		if current < total {
			eta := time.Duration(float64(elapsed) * float64(total-current) / float64(current))
			status += fmt.Sprintf(" ETA: %v", eta.Round(time.Second))
		}
	}
	_, _ = fmt.Fprint(c.writer, status)
}

// LogProgressCallback reports progress through slog every interval files.
type LogProgressCallback struct {
	logger    *slog.Logger
	level     slog.Level
	prefix    string
	interval  int
	lastLog   int
	startTime time.Time
}

// NewLogProgressCallback creates a log-based progress reporter.
func NewLogProgressCallback(logger *slog.Logger, level slog.Level, prefix string) *LogProgressCallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogProgressCallback{logger: logger, level: level, prefix: prefix, interval: 10}
}

// WithInterval sets how many files pass between two log lines.
func (l *LogProgressCallback) WithInterval(interval int) *LogProgressCallback {
	l.interval = interval
	return l
}

func (l *LogProgressCallback) OnStart(total int) {
	l.startTime = time.Now()
	l.lastLog = 0
	l.logger.Log(context.Background(), l.level, l.prefix+"Starting batch", "total", total)
}

func (l *LogProgressCallback) OnProgress(current, total int) {
	if current-l.lastLog < l.interval && current != total {
		return
	}
	l.lastLog = current
	l.logger.Log(context.Background(), l.level, l.prefix+"Progress update",
		"current", current,
		"total", total,
		"percent", fmt.Sprintf("%.1f", float64(current)/float64(total)*100.0),
		"elapsed", time.Since(l.startTime).Round(time.Millisecond),
	)
}

func (l *LogProgressCallback) OnComplete() {
	l.logger.Log(context.Background(), l.level, l.prefix+"Batch completed",
		"elapsed", time.Since(l.startTime).Round(time.Millisecond))
}

func (l *LogProgressCallback) OnError(index int, err error) {
	l.logger.Log(context.Background(), slog.LevelError, l.prefix+"File failed", "index", index, "error", err)
}

// MultiProgressCallback fans events out to several callbacks.
type MultiProgressCallback struct {
	callbacks []ProgressCallback
}

// NewMultiProgressCallback combines callbacks.
func NewMultiProgressCallback(callbacks ...ProgressCallback) *MultiProgressCallback {
	return &MultiProgressCallback{callbacks: callbacks}
}

func (m *MultiProgressCallback) OnStart(total int) {
	for _, cb := range m.callbacks {
		cb.OnStart(total)
	}
}

func (m *MultiProgressCallback) OnProgress(current, total int) {
	for _, cb := range m.callbacks {
		cb.OnProgress(current, total)
	}
}

func (m *MultiProgressCallback) OnComplete() {
	for _, cb := range m.callbacks {
		cb.OnComplete()
	}
}

func (m *MultiProgressCallback) OnError(index int, err error) {
	for _, cb := range m.callbacks {
		cb.OnError(index, err)
	}
}
