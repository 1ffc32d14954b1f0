package transfer

import (
	"sync"
	"time"
)

// Stats tracks part submission metrics for reporting.
type Stats struct {
	sum            time.Duration
	paced          time.Duration
	bytes          int64
	finishedChunks int64
	mu             sync.Mutex
}

// NewStats creates a new Stats instance.
func NewStats() *Stats {
	return &Stats{}
}

// Update records a confirmed part: its submission duration, its length and the pacing delay that followed it.
func (s *Stats) Update(d time.Duration, bytes int64, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sum += d
	s.paced += delay
	s.bytes += bytes
	s.finishedChunks++
}

// Average returns the average submission duration of confirmed parts.
func (s *Stats) Average() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finishedChunks == 0 {
		return 0
	}
	return s.sum / time.Duration(s.finishedChunks)
}

// Throughput returns the effective rate in bytes per second, pacing delays included.
func (s *Stats) Throughput() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := s.sum + s.paced
	if total <= 0 {
		return 0
	}
	return float64(s.bytes) / total.Seconds()
}
