package handler

import (
	"testing"
	"time"

	"github.com/Dauka12/olympiad-backend/internal/timer"
)

func TestForwardTicksReleasedOnStop(t *testing.T) {
	// A long countdown whose ticker never fires within the test: the
	// forwarder sees no ticks and must exit through the stop channel, as
	// it does on submit or client disconnect.
	countdown := timer.NewWithInterval(600, time.Hour, nil)
	countdown.Start()
	defer countdown.Stop()

	stop := make(chan struct{})
	returned := make(chan struct{})
	go func() {
		defer close(returned)
		forwardTicks(countdown.Ticks(), stop, func(int64) {})
	}()

	countdown.Stop()
	close(stop)

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("tick forwarder still blocked after the stream closed")
	}
}

func TestForwardTicksStopsAfterZeroTick(t *testing.T) {
	ticks := make(chan int64, 3)
	ticks <- 2
	ticks <- 1
	ticks <- 0

	var got []int64
	returned := make(chan struct{})
	go func() {
		defer close(returned)
		forwardTicks(ticks, nil, func(rem int64) { got = append(got, rem) })
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("tick forwarder did not return after the zero tick")
	}
	if len(got) != 3 || got[0] != 2 || got[2] != 0 {
		t.Fatalf("forwarded ticks = %v, want [2 1 0]", got)
	}
}
