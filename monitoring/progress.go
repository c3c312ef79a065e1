package monitoring

import (
	"sync"
	"time"
)

// A ProgressBar tracks how far a model run has advanced.
type ProgressBar struct {
	sync.Mutex
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
	Total     uint64    `json:"total"`
	Finished  uint64    `json:"finished"`
}

// SetFinished sets how many steps the run has produced.
func (b *ProgressBar) SetFinished(finished uint64) {
	b.Lock()
	defer b.Unlock()

	b.Finished = finished
}

// Restart sets the bar back to zero, as when a run rewinds.
func (b *ProgressBar) Restart(now time.Time) {
	b.Lock()
	defer b.Unlock()

	b.Finished = 0
	b.StartTime = now
}

// Reset sets a new total and restarts the bar, as when a run gets a new
// scenario.
func (b *ProgressBar) Reset(total uint64, now time.Time) {
	b.Lock()
	defer b.Unlock()

	b.Total = total
	b.Finished = 0
	b.StartTime = now
}

func (b *ProgressBar) snapshot() progressBarRsp {
	b.Lock()
	defer b.Unlock()

	return progressBarRsp{
		ID:        b.ID,
		Name:      b.Name,
		StartTime: b.StartTime,
		Total:     b.Total,
		Finished:  b.Finished,
	}
}

type progressBarRsp struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
	Total     uint64    `json:"total"`
	Finished  uint64    `json:"finished"`
}
