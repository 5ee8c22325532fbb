package types

import (
	"sync"
	"sync/atomic"
	"time"
)

// ProgressState is shared between the scheduler and whatever renders progress.
// Counters are atomics; writers never contend on the same segment.
type ProgressState struct {
	ID        string
	Total     atomic.Int64 // Segments walked (after the fragment limit)
	Fetched   atomic.Int64
	Skipped   atomic.Int64
	Bytes     atomic.Int64
	Done      atomic.Bool
	StartTime time.Time

	mu  sync.Mutex
	err error
}

// NewProgressState creates a progress state for a run
func NewProgressState(id string, total int) *ProgressState {
	ps := &ProgressState{ID: id, StartTime: time.Now()}
	ps.Total.Store(int64(total))
	return ps
}

// Completed returns fetched plus skipped segments
func (ps *ProgressState) Completed() int64 {
	return ps.Fetched.Load() + ps.Skipped.Load()
}

// Fraction returns completion in [0, 1]
func (ps *ProgressState) Fraction() float64 {
	total := ps.Total.Load()
	if total <= 0 {
		return 0
	}
	f := float64(ps.Completed()) / float64(total)
	if f > 1 {
		f = 1
	}
	return f
}

func (ps *ProgressState) SetError(err error) {
	ps.mu.Lock()
	ps.err = err
	ps.mu.Unlock()
}

func (ps *ProgressState) GetError() error {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.err
}
