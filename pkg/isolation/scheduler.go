package isolation

import (
	"sync"
	"time"
)

// DefaultGateInterval is one display frame at 60 Hz.
const DefaultGateInterval = time.Second / 60

// Scheduler runs a repeating task. Start begins calling fn and returns a
// stop function; once stop returns, fn is never called again.
type Scheduler interface {
	Start(fn func()) (stop func())
}

// Ticker is a Scheduler backed by a goroutine and a time.Ticker.
type Ticker struct {
	interval time.Duration
}

// NewTicker returns a Ticker firing every interval. A non-positive interval
// selects DefaultGateInterval.
func NewTicker(interval time.Duration) *Ticker {
	if interval <= 0 {
		interval = DefaultGateInterval
	}
	return &Ticker{interval: interval}
}

// Interval returns the tick period.
func (t *Ticker) Interval() time.Duration {
	return t.interval
}

// Start implements Scheduler.
func (t *Ticker) Start(fn func()) func() {
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		tk := time.NewTicker(t.interval)
		defer tk.Stop()
		for {
			select {
			case <-done:
				return
			case <-tk.C:
			}
			// A tick and a stop can be ready together.
			select {
			case <-done:
				return
			default:
			}
			fn()
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			<-exited
		})
	}
}

// Manual is a Scheduler that runs its tasks only when Tick is called.
// Hosts that own a frame loop call Tick from it; tests use it to step the
// gate deterministically.
type Manual struct {
	mu    sync.Mutex
	next  int
	tasks map[int]func()
}

// Start implements Scheduler.
func (m *Manual) Start(fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tasks == nil {
		m.tasks = make(map[int]func())
	}
	id := m.next
	m.next++
	m.tasks[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.tasks, id)
	}
}

// Tick runs every started task once, in start order. Tasks must not start
// or stop tasks on the same Manual.
func (m *Manual) Tick() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := 0; id < m.next; id++ {
		if fn, ok := m.tasks[id]; ok {
			fn()
		}
	}
}

// Tasks returns the number of running tasks.
func (m *Manual) Tasks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

var (
	_ Scheduler = (*Ticker)(nil)
	_ Scheduler = (*Manual)(nil)
)
