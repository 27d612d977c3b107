package notify

import "sync/atomic"

// FinishType distinguishes how a tracked operation ended.
type FinishType int32

const (
	// FinishNone: still running.
	FinishNone FinishType = iota
	// FinishFast: completed without doing the slow work (cache hit).
	FinishFast
	// FinishSlow: completed after doing the full transfer.
	FinishSlow
)

// ProgressTracker reports byte-level progress of one operation. Counter
// updates are atomic so the worker goroutine can update while the
// control path reads.
type ProgressTracker struct {
	title    string
	sender   *Sender
	current  atomic.Int64
	total    atomic.Int64
	finished atomic.Int32
	failed   atomic.Bool
}

// NewProgressTracker creates a tracker that notifies through sender.
func NewProgressTracker(title string, sender *Sender) *ProgressTracker {
	return &ProgressTracker{title: title, sender: sender}
}

// Title returns the display title of the tracked operation.
func (p *ProgressTracker) Title() string { return p.title }

// SetTotal sets the expected total count.
func (p *ProgressTracker) SetTotal(total int64) { p.total.Store(total) }

// SetCurrent sets the progress counter.
func (p *ProgressTracker) SetCurrent(current int64) { p.current.Store(current) }

// Add increments the progress counter.
func (p *ProgressTracker) Add(delta int64) { p.current.Add(delta) }

// Current returns the progress counter.
func (p *ProgressTracker) Current() int64 { return p.current.Load() }

// Total returns the expected total count.
func (p *ProgressTracker) Total() int64 { return p.total.Load() }

// Finish marks the operation terminal.
func (p *ProgressTracker) Finish(how FinishType) { p.finished.Store(int32(how)) }

// Finished returns how the operation ended, FinishNone while running.
func (p *ProgressTracker) Finished() FinishType { return FinishType(p.finished.Load()) }

// Fail sets the error flag.
func (p *ProgressTracker) Fail() { p.failed.Store(true) }

// Failed reports whether the error flag is set.
func (p *ProgressTracker) Failed() bool { return p.failed.Load() }

// Notify publishes a snapshot of the counters.
func (p *ProgressTracker) Notify() {
	if p.sender == nil {
		return
	}
	p.sender.Send(Progress{
		Title:    p.title,
		Current:  p.current.Load(),
		Total:    p.total.Load(),
		Finished: p.Finished(),
		Failed:   p.failed.Load(),
	})
}
