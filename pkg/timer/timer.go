// Package timer measures outdoor sessions: an in-process ticking timer and a
// persisted session for start/stop across separate invocations.
package timer

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrRunning    = errors.New("timer is already running")
	ErrNotRunning = errors.New("timer is not running")
)

// DefaultInterval is the tick period of the elapsed-time display.
const DefaultInterval = time.Second

// TickFunc receives the elapsed time on every tick.
type TickFunc func(elapsed time.Duration)

// Timer ticks while running. Start and Stop are guarded so a second Start
// cannot schedule a second ticker and Stop reports the elapsed time once.
type Timer struct {
	onTick   TickFunc
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	running bool
	started time.Time
	ticker  *time.Ticker
	done    chan struct{}
	wg      sync.WaitGroup
}

type Option func(*Timer)

func WithInterval(d time.Duration) Option {
	return func(t *Timer) { t.interval = d }
}

func WithClock(now func() time.Time) Option {
	return func(t *Timer) { t.now = now }
}

func New(onTick TickFunc, opts ...Option) *Timer {
	t := &Timer{
		onTick:   onTick,
		interval: DefaultInterval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Timer) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return ErrRunning
	}
	t.running = true
	t.started = t.now()
	t.ticker = time.NewTicker(t.interval)
	t.done = make(chan struct{})

	t.wg.Add(1)
	go t.loop(t.ticker, t.done, t.started)
	return nil
}

func (t *Timer) loop(ticker *time.Ticker, done <-chan struct{}, started time.Time) {
	defer t.wg.Done()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if t.onTick != nil {
				t.onTick(t.now().Sub(started))
			}
		}
	}
}

// Stop halts the ticker and returns the elapsed whole seconds.
// No tick is delivered after Stop returns.
func (t *Timer) Stop() (int64, error) {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return 0, ErrNotRunning
	}
	t.running = false
	t.ticker.Stop()
	close(t.done)
	elapsed := t.now().Sub(t.started)
	t.mu.Unlock()

	t.wg.Wait()
	return WholeSeconds(elapsed), nil
}

func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Elapsed is zero when the timer is not running.
func (t *Timer) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return 0
	}
	return t.now().Sub(t.started)
}

// WholeSeconds truncates d; negative durations count as zero.
func WholeSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64(d / time.Second)
}

// Hours converts elapsed seconds to ledger hours.
func Hours(seconds int64) float64 {
	return float64(seconds) / 3600
}
