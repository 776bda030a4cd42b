package clock

import (
	"sync"
	"time"
)

// Fake is a manually advanced clock. Tickers created from it fire during Advance,
// dropping ticks the receiver has not consumed, like time.Ticker does.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

// NewFake returns a fake clock set to now.
func NewFake(now time.Time) *Fake {
	return &Fake{now: now}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) Location() *time.Location {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now.Location()
}

// Set moves the clock to t without firing tickers.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	f.now = t
	f.mu.Unlock()
}

// Advance moves the clock forward by d and fires every ticker whose deadline passed.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	now := f.now
	active := f.tickers[:0]
	for _, t := range f.tickers {
		if !t.stopped() {
			active = append(active, t)
		}
	}
	f.tickers = active
	tickers := append([]*fakeTicker(nil), active...)
	f.mu.Unlock()

	for _, t := range tickers {
		t.fire(now)
	}
}

// Tickers returns the number of live tickers.
func (f *Fake) Tickers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.tickers {
		if !t.stopped() {
			n++
		}
	}
	return n
}

func (f *Fake) NewTicker(d time.Duration) Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTicker{
		c:      make(chan time.Time, 1),
		period: d,
		next:   f.now.Add(d),
	}
	f.tickers = append(f.tickers, t)
	return t
}

type fakeTicker struct {
	mu     sync.Mutex
	c      chan time.Time
	period time.Duration
	next   time.Time
	done   bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.c }

func (t *fakeTicker) Stop() {
	t.mu.Lock()
	t.done = true
	t.mu.Unlock()
}

func (t *fakeTicker) stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

func (t *fakeTicker) fire(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done || now.Before(t.next) {
		return
	}
	for !now.Before(t.next) {
		t.next = t.next.Add(t.period)
	}
	select {
	case t.c <- now:
	default:
	}
}

var _ Clock = (*Fake)(nil)
