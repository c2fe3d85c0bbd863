package app

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Countdown delivers one tick per interval to a callback until stopped.
// Every Start is tagged with a generation so the receiver can drop ticks
// that were already in flight when the countdown was superseded.
type Countdown struct {
	clock    clockwork.Clock
	interval time.Duration
	onTick   func(generation uint64)

	mu     sync.Mutex
	ticker clockwork.Ticker
	done   chan struct{}
}

func newCountdown(clock clockwork.Clock, interval time.Duration, onTick func(uint64)) *Countdown {
	return &Countdown{clock: clock, interval: interval, onTick: onTick}
}

// Start replaces any running countdown with a fresh one.
// The ticker is registered before Start returns.
func (c *Countdown) Start(generation uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()

	ticker := c.clock.NewTicker(c.interval)
	done := make(chan struct{})
	c.ticker = ticker
	c.done = done

	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.Chan():
				c.onTick(generation)
			}
		}
	}()
}

// Stop halts the ticker. It never waits for the tick goroutine, so it is safe
// to call while the receiver holds its own lock.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Countdown) stopLocked() {
	if c.ticker == nil {
		return
	}
	c.ticker.Stop()
	close(c.done)
	c.ticker = nil
	c.done = nil
}
