package common

import (
	"fmt"
	"runtime"
)

// MemoryStats is the subset of runtime.MemStats printed with --stats.
type MemoryStats struct {
	HeapAlloc  uint64
	TotalAlloc uint64
	Sys        uint64
	NumGC      uint32
}

// GetMemoryStats reads the current runtime statistics.
func GetMemoryStats() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemoryStats{
		HeapAlloc:  m.HeapAlloc,
		TotalAlloc: m.TotalAlloc,
		Sys:        m.Sys,
		NumGC:      m.NumGC,
	}
}

func (m MemoryStats) String() string {
	return fmt.Sprintf("heap %s, allocated %s, sys %s, %d GC cycles",
		FormatBytes(m.HeapAlloc), FormatBytes(m.TotalAlloc), FormatBytes(m.Sys), m.NumGC)
}

// FormatBytes renders n with a binary unit, e.g. 1536 -> "1.5 KiB".
func FormatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
