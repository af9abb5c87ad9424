package internal

import (
	"sync/atomic"
	"time"
)

// RunStats atomic counters for totals
type RunStats struct {
	start         time.Time
	FilesScanned  atomic.Int64
	Findings      atomic.Int64
	ScannerErrors atomic.Int64
}

func (s *RunStats) Start() {
	s.start = time.Now()
}

func (s *RunStats) Elapsed() time.Duration {
	return time.Since(s.start)
}
