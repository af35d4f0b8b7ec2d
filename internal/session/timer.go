package session

import (
	"sync"
	"time"
)

// countdown is a cancellable 1 Hz ticker. Start cancels any previous run
// before spawning a new one, so at most one goroutine is ever live. Callbacks
// run outside the countdown's own lock; callers guard against stale
// invocations with a generation token, same as the one-shot delays below.
type countdown struct {
	mu   sync.Mutex
	stop chan struct{}
}

// Start begins ticking down from seconds. tick receives every intermediate
// value down to 1; done fires once when the count reaches zero.
func (c *countdown) Start(seconds int, tick func(remaining int), done func()) {
	c.mu.Lock()
	if c.stop != nil {
		close(c.stop)
	}
	stop := make(chan struct{})
	c.stop = stop
	c.mu.Unlock()

	go func() {
		t := time.NewTicker(time.Second)
		defer t.Stop()

		remaining := seconds
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				remaining--
				if remaining <= 0 {
					done()
					return
				}
				tick(remaining)
			}
		}
	}()
}

// Stop cancels the active run, if any. Safe to call repeatedly and from
// inside tick/done callbacks.
func (c *countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}

// delayer schedules one-shot callbacks that are invalidated wholesale by
// CancelAll: a fired callback whose generation is stale does nothing. Used
// for the fixed phase delays (role reveal, clue display, results grace).
type delayer struct {
	mu  sync.Mutex
	gen int64
}

func (d *delayer) After(dur time.Duration, fn func()) {
	d.mu.Lock()
	gen := d.gen
	d.mu.Unlock()

	time.AfterFunc(dur, func() {
		d.mu.Lock()
		stale := gen != d.gen
		d.mu.Unlock()
		if !stale {
			fn()
		}
	})
}

func (d *delayer) CancelAll() {
	d.mu.Lock()
	d.gen++
	d.mu.Unlock()
}
