package loop

import (
	"sync"
	"time"
)

// Scheduler runs a callback on the next display frame.
// The returned cancel stops the callback from running if it has not yet.
type Scheduler interface {
	Schedule(fn func()) (cancel func())
}

// Ticker is a Scheduler paced by a fixed frame rate.
// At most one callback is pending; scheduling replaces it.
type Ticker struct {
	mu   sync.Mutex
	next func()
	gen  uint64

	stop chan struct{}
	once sync.Once
}

// NewTicker starts a ticker at fps frames per second
func NewTicker(fps int) *Ticker {
	if fps <= 0 {
		fps = 60
	}
	t := &Ticker{stop: make(chan struct{})}
	go t.run(time.Second / time.Duration(fps))
	return t
}

func (t *Ticker) run(interval time.Duration) {
	tk := time.NewTicker(interval)
	defer tk.Stop()
	for {
		select {
		case <-t.stop:
			return
		case <-tk.C:
			t.mu.Lock()
			fn := t.next
			t.next = nil
			t.mu.Unlock()
			if fn != nil {
				fn()
			}
		}
	}
}

func (t *Ticker) Schedule(fn func()) func() {
	t.mu.Lock()
	t.gen++
	gen := t.gen
	t.next = fn
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.gen == gen {
			t.next = nil
		}
	}
}

// Stop ends the ticker goroutine
func (t *Ticker) Stop() {
	t.once.Do(func() { close(t.stop) })
}

// Manual is a Scheduler that runs callbacks only when Fire is called
type Manual struct {
	mu    sync.Mutex
	queue []*pending
}

type pending struct {
	fn        func()
	cancelled bool
}

// NewManual returns an empty manual scheduler
func NewManual() *Manual {
	return &Manual{}
}

func (m *Manual) Schedule(fn func()) func() {
	p := &pending{fn: fn}
	m.mu.Lock()
	m.queue = append(m.queue, p)
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		p.cancelled = true
		m.mu.Unlock()
	}
}

// Fire runs the callbacks queued so far and returns how many ran.
// Callbacks scheduled while firing wait for the next Fire.
func (m *Manual) Fire() int {
	m.mu.Lock()
	queue := m.queue
	m.queue = nil
	m.mu.Unlock()

	ran := 0
	for _, p := range queue {
		m.mu.Lock()
		cancelled := p.cancelled
		m.mu.Unlock()
		if cancelled {
			continue
		}
		p.fn()
		ran++
	}
	return ran
}

// Pending returns the number of queued, uncancelled callbacks
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.queue {
		if !p.cancelled {
			n++
		}
	}
	return n
}
