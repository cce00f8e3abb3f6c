// Package timer provides the restartable countdown that drives a timed
// exam attempt: one tick per second, a single expiry notification at zero,
// and explicit arm/disarm so a countdown never outlives its owner.
package timer

import (
	"sync"
	"time"
)

// Countdown counts down from a whole-second value, emitting the remaining
// seconds on Ticks after every interval. When the value reaches zero it
// emits a final 0, calls the expiry callback exactly once for that arming,
// and stops ticking. It never emits a negative value and never restarts on
// its own; Reset rearms it from a new value.
type Countdown struct {
	mu       sync.Mutex
	interval time.Duration
	onExpire func()

	remaining int64
	ticks     chan int64
	stop      chan struct{} // closed to cancel the current run
	running   bool
	expired   bool // expiry fired for the current arming
}

// New creates a countdown of the given number of seconds with a one-second
// tick interval. The countdown is created disarmed; call Start.
func New(seconds int64, onExpire func()) *Countdown {
	return NewWithInterval(seconds, time.Second, onExpire)
}

// NewWithInterval is New with a custom tick interval, for tests.
func NewWithInterval(seconds int64, interval time.Duration, onExpire func()) *Countdown {
	if seconds < 0 {
		seconds = 0
	}
	return &Countdown{
		interval:  interval,
		onExpire:  onExpire,
		remaining: seconds,
		ticks:     make(chan int64, 1),
	}
}

// Ticks returns the channel on which remaining seconds are emitted.
// The channel is not closed; consumers stop reading after a 0.
func (c *Countdown) Ticks() <-chan int64 {
	return c.ticks
}

// Remaining reports the current remaining seconds.
func (c *Countdown) Remaining() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Start arms the countdown. Starting an already-running countdown is a
// no-op. Starting at zero fires expiry immediately.
func (c *Countdown) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	if c.remaining <= 0 {
		c.mu.Unlock()
		c.fireExpiry()
		return
	}
	c.running = true
	stop := make(chan struct{})
	c.stop = stop
	c.mu.Unlock()

	go c.run(stop)
}

// Reset disarms the current run, loads a new starting value, and restarts.
// Used when the underlying session data is refreshed.
func (c *Countdown) Reset(seconds int64) {
	c.Stop()
	c.mu.Lock()
	if seconds < 0 {
		seconds = 0
	}
	c.remaining = seconds
	c.expired = false
	c.mu.Unlock()
	c.Start()
}

// Stop disarms the countdown without firing expiry. Safe to call twice.
func (c *Countdown) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stop)
	c.mu.Unlock()
}

func (c *Countdown) run(stop chan struct{}) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !c.step(stop) {
				return
			}
		}
	}
}

// step applies one elapsed interval. A tick already in flight when its run
// was stopped must not touch state a Reset has since reloaded, so the run's
// own stop channel is re-checked under the lock rather than the shared
// running flag.
func (c *Countdown) step(stop chan struct{}) bool {
	c.mu.Lock()
	select {
	case <-stop:
		c.mu.Unlock()
		return false
	default:
	}
	c.remaining--
	if c.remaining < 0 {
		c.remaining = 0
	}
	rem := c.remaining
	done := rem == 0
	if done {
		c.running = false
	}
	c.mu.Unlock()

	c.emit(rem)
	if done {
		c.fireExpiry()
		return false
	}
	return true
}

// emit delivers a tick without blocking a slow consumer: a stale unread
// tick is replaced by the newer one.
func (c *Countdown) emit(rem int64) {
	select {
	case c.ticks <- rem:
	default:
		select {
		case <-c.ticks:
		default:
		}
		select {
		case c.ticks <- rem:
		default:
		}
	}
}

func (c *Countdown) fireExpiry() {
	c.mu.Lock()
	if c.expired {
		c.mu.Unlock()
		return
	}
	c.expired = true
	fn := c.onExpire
	c.mu.Unlock()

	if fn != nil {
		fn()
	}
}
