// Package common holds small helpers shared by the commands: wall-clock
// timing of a run and the memory figures printed with --stats.
package common

import (
	"fmt"
	"log/slog"
	"time"
)

// Timer measures one named run together with the bytes allocated during it.
type Timer struct {
	start    time.Time
	name     string
	duration time.Duration
	before   MemoryStats
	after    MemoryStats
	stopped  bool
}

// NewTimer creates a new unnamed timer.
func NewTimer() *Timer {
	return NewNamedTimer("")
}

// NewNamedTimer creates a new timer with the given name.
func NewNamedTimer(name string) *Timer {
	return &Timer{
		name:   name,
		before: GetMemoryStats(),
		start:  time.Now(),
	}
}

// Stop stops the timer and returns the elapsed duration. Later calls return
// the first measurement.
func (t *Timer) Stop() time.Duration {
	if t.stopped {
		return t.duration
	}
	t.duration = time.Since(t.start)
	t.after = GetMemoryStats()
	t.stopped = true
	return t.duration
}

// Duration returns the recorded duration (zero before Stop).
func (t *Timer) Duration() time.Duration {
	return t.duration
}

// Name returns the timer name (empty string if unnamed).
func (t *Timer) Name() string {
	return t.name
}

// Memory returns the statistics captured by Stop.
func (t *Timer) Memory() MemoryStats {
	return t.after
}

// AllocatedBytes is the heap allocated between start and Stop.
func (t *Timer) AllocatedBytes() uint64 {
	if !t.stopped || t.after.TotalAlloc < t.before.TotalAlloc {
		return 0
	}
	return t.after.TotalAlloc - t.before.TotalAlloc
}

// String returns a formatted string representation of the timer.
func (t *Timer) String() string {
	d := t.duration.Round(time.Millisecond)
	if t.name != "" {
		return fmt.Sprintf("%s: %v", t.name, d)
	}
	return d.String()
}

// LogValue implements slog.LogValuer.
func (t *Timer) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("name", t.name),
		slog.Duration("duration", t.duration),
		slog.Uint64("allocated_bytes", t.AllocatedBytes()),
	)
}
