// Time source: a 1 kHz monotonic millisecond counter driven by a background
// goroutine standing in for the timer-compare-match ISR, plus the
// interruptible idle-until-wake primitive the scheduler calls between
// dispatch decisions.
package rtosexec

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

var clockLog = NewCompLogger("clock")

// Clock is the hosted equivalent of the AVR Timer1 compare-match ISR plus
// the `now()` accessor: a monotonically increasing millisecond counter
// updated once a millisecond, readable without blocking.
type Clock struct {
	ms     atomic.Int64
	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup

	wakeMu sync.Mutex
	wakeCh chan struct{}
}

// NewClock constructs a stopped Clock; call Start to begin ticking.
func NewClock() *Clock {
	return &Clock{
		wakeCh: make(chan struct{}, 1),
	}
}

// Start launches the goroutine that increments the millisecond counter once
// a millisecond, analogous to enabling the timer compare-match interrupt.
func (c *Clock) Start() {
	c.ticker = time.NewTicker(time.Millisecond)
	c.stopCh = make(chan struct{})
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-c.stopCh:
				return
			case <-c.ticker.C:
				c.ms.Add(1)
				c.wake()
			}
		}
	}()
}

// Stop halts the ticking goroutine.
func (c *Clock) Stop() {
	if c.ticker == nil {
		return
	}
	c.ticker.Stop()
	close(c.stopCh)
	c.wg.Wait()
}

// Now returns the current time in milliseconds. The original reads a
// shared counter under an interrupt-disabled guard; atomic.Int64.Load is
// the host-side equivalent single-instruction-safe read.
func (c *Clock) Now() int64 {
	return c.ms.Load()
}

// wake interrupts a pending Idle call, analogous to any interrupt waking
// the CPU from its low-power sleep state.
func (c *Clock) wake() {
	select {
	case c.wakeCh <- struct{}{}:
	default:
	}
}

// idleOnce blocks the calling goroutine for up to d, returning early if wake
// fires. It uses unix.Nanosleep-free select on a timer to stay interruptible
// without spinning; a short unix.Nanosleep(0) is issued first as the
// closest syscall-level analogue of the AVR's sleep_mode() intrinsic
// yielding the core for one instant before re-arming the wait.
func (c *Clock) idleOnce(d time.Duration) {
	_ = unix.Nanosleep(&unix.Timespec{Sec: 0, Nsec: 0}, nil)

	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-c.wakeCh:
	}
}
