package practice

import (
	"fmt"
	"sync"
	"time"
)

// Timer measures elapsed time across start/pause cycles.
type Timer struct {
	now func() time.Time

	mu        sync.Mutex
	running   bool
	startedAt time.Time
	elapsed   time.Duration
}

// NewTimer returns a stopped timer at zero. now may be nil.
func NewTimer(now func() time.Time) *Timer {
	if now == nil {
		now = time.Now
	}
	return &Timer{now: now}
}

func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return
	}
	t.running = true
	t.startedAt = t.now()
}

func (t *Timer) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return
	}
	t.elapsed += t.now().Sub(t.startedAt)
	t.running = false
}

// Reset stops the timer and sets it back to zero.
func (t *Timer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.running = false
	t.elapsed = 0
}

func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.running
}

func (t *Timer) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return t.elapsed + t.now().Sub(t.startedAt)
	}
	return t.elapsed
}

// Seconds returns the elapsed whole seconds.
func (t *Timer) Seconds() int {
	return int(t.Elapsed() / time.Second)
}

// String formats the elapsed time as MM:SS.
func (t *Timer) String() string {
	return FormatClock(t.Elapsed())
}

// FormatClock renders d as MM:SS, minutes growing past 59 as needed.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
