package timer

import (
	"sync/atomic"
	"testing"
	"time"
)

const testInterval = 2 * time.Millisecond

// drain collects ticks until a zero arrives or the deadline passes.
func drain(t *testing.T, c *Countdown, deadline time.Duration) []int64 {
	t.Helper()
	var got []int64
	timeout := time.After(deadline)
	for {
		select {
		case v := <-c.Ticks():
			got = append(got, v)
			if v == 0 {
				return got
			}
		case <-timeout:
			t.Fatalf("no zero tick before deadline, got %v", got)
		}
	}
}

func TestCountdownReachesZeroOnceAndExpires(t *testing.T) {
	var expirations int32
	c := NewWithInterval(5, testInterval, func() {
		atomic.AddInt32(&expirations, 1)
	})
	c.Start()

	got := drain(t, c, time.Second)

	zeros := 0
	prev := int64(6)
	for _, v := range got {
		if v < 0 {
			t.Fatalf("negative tick %d", v)
		}
		if v > prev {
			t.Fatalf("tick sequence not decreasing: %v", got)
		}
		prev = v
		if v == 0 {
			zeros++
		}
	}
	if zeros != 1 {
		t.Fatalf("expected exactly one zero tick, got %d in %v", zeros, got)
	}

	// No further ticks after zero and exactly one expiry.
	select {
	case v := <-c.Ticks():
		t.Fatalf("tick %d after expiry", v)
	case <-time.After(10 * testInterval):
	}
	if n := atomic.LoadInt32(&expirations); n != 1 {
		t.Fatalf("expected 1 expiry, got %d", n)
	}
}

func TestCountdownStopPreventsExpiry(t *testing.T) {
	var expirations int32
	c := NewWithInterval(3, testInterval, func() {
		atomic.AddInt32(&expirations, 1)
	})
	c.Start()
	c.Stop()
	c.Stop() // stopping twice is safe

	time.Sleep(10 * testInterval)
	if n := atomic.LoadInt32(&expirations); n != 0 {
		t.Fatalf("expiry fired %d times after Stop", n)
	}
}

func TestCountdownResetRearms(t *testing.T) {
	var expirations int32
	c := NewWithInterval(2, testInterval, func() {
		atomic.AddInt32(&expirations, 1)
	})
	c.Start()
	drain(t, c, time.Second)

	// Rearm from a fresh value; it must tick down and expire again.
	c.Reset(3)
	if got := c.Remaining(); got < 0 || got > 3 {
		t.Fatalf("remaining after reset = %d, want within [0,3]", got)
	}
	drain(t, c, time.Second)

	if n := atomic.LoadInt32(&expirations); n != 2 {
		t.Fatalf("expected 2 expirations across rearm, got %d", n)
	}
}

func TestCountdownStaleTickAfterResetIsDiscarded(t *testing.T) {
	// An hour-long interval keeps the real run goroutines idle; the ticks
	// are driven by hand through step.
	c := NewWithInterval(5, time.Hour, nil)
	c.Start()

	c.mu.Lock()
	staleStop := c.stop
	c.mu.Unlock()

	c.Reset(10)
	defer c.Stop()

	// A tick the old run had already received when Reset disarmed it must
	// not decrement the freshly loaded value.
	if c.step(staleStop) {
		t.Error("stale run tick was applied after Reset")
	}
	if got := c.Remaining(); got != 10 {
		t.Fatalf("remaining = %d, want 10 untouched by the stale tick", got)
	}

	// The rearmed run's own ticks still count down.
	c.mu.Lock()
	liveStop := c.stop
	c.mu.Unlock()
	if !c.step(liveStop) {
		t.Fatal("live run tick was rejected")
	}
	if got := c.Remaining(); got != 9 {
		t.Fatalf("remaining after live tick = %d, want 9", got)
	}
}

func TestCountdownStartAtZeroExpiresImmediately(t *testing.T) {
	var expirations int32
	c := NewWithInterval(0, testInterval, func() {
		atomic.AddInt32(&expirations, 1)
	})
	c.Start()
	if n := atomic.LoadInt32(&expirations); n != 1 {
		t.Fatalf("expected immediate expiry, got %d", n)
	}
	if got := c.Remaining(); got != 0 {
		t.Fatalf("remaining = %d, want 0", got)
	}
}
