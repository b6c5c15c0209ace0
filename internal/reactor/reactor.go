// Package reactor provides a single-goroutine executor that serializes callbacks and timers.
//
// Components that own state which is not safe for concurrent use (backoff counters, connection
// lifecycle state, polling schedules) mutate it only from callbacks running on a Reactor. Blocking
// work runs on separate goroutines, which hand their results back with Post.
package reactor

import (
	"sync"
	"sync/atomic"
	"time"
)

// Reactor runs posted callbacks one at a time, in the order they were posted, on a single goroutine.
//
// Post never blocks, so a goroutine that is being waited on by a reactor callback can always
// deliver its final message.
type Reactor struct {
	lock   sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
	done   chan struct{}
}

// New creates a Reactor and starts its goroutine.
func New() *Reactor {
	r := &Reactor{done: make(chan struct{})}
	r.cond = sync.NewCond(&r.lock)
	go r.run()
	return r
}

// Post schedules fn to run on the reactor goroutine. It returns false, without scheduling anything,
// if the reactor has been closed.
func (r *Reactor) Post(fn func()) bool {
	r.lock.Lock()
	if r.closed {
		r.lock.Unlock()
		return false
	}
	r.queue = append(r.queue, fn)
	r.lock.Unlock()
	r.cond.Signal()
	return true
}

// AfterFunc schedules fn to be posted to the reactor once d has elapsed. The returned Timer can
// cancel it; a cancelled timer's callback never runs, even if it was already queued.
func (r *Reactor) AfterFunc(d time.Duration, fn func()) *Timer {
	t := &Timer{}
	t.timer = time.AfterFunc(d, func() {
		r.Post(func() {
			if !t.cancelled.Load() {
				fn()
			}
		})
	})
	return t
}

// Close stops accepting new callbacks. Callbacks that were already queued still run. Close does not
// wait for them; use Done for that.
func (r *Reactor) Close() {
	r.lock.Lock()
	r.closed = true
	r.lock.Unlock()
	r.cond.Broadcast()
}

// Done returns a channel that is closed once the reactor goroutine has exited.
func (r *Reactor) Done() <-chan struct{} {
	return r.done
}

// Sync posts fn and waits for it to run. It returns false if the reactor was already closed. It
// must not be called from the reactor goroutine.
func (r *Reactor) Sync(fn func()) bool {
	ch := make(chan struct{})
	if !r.Post(func() {
		defer close(ch)
		fn()
	}) {
		return false
	}
	<-ch
	return true
}

func (r *Reactor) run() {
	defer close(r.done)
	for {
		r.lock.Lock()
		for len(r.queue) == 0 && !r.closed {
			r.cond.Wait()
		}
		if len(r.queue) == 0 {
			r.lock.Unlock()
			return
		}
		fn := r.queue[0]
		r.queue[0] = nil
		r.queue = r.queue[1:]
		r.lock.Unlock()
		fn()
	}
}

// Timer is a cancellable delayed callback created by Reactor.AfterFunc.
type Timer struct {
	timer     *time.Timer
	cancelled atomic.Bool
}

// Cancel prevents the timer's callback from running. It is safe to call more than once, and safe to
// call on a nil Timer.
func (t *Timer) Cancel() {
	if t == nil {
		return
	}
	t.cancelled.Store(true)
	t.timer.Stop()
}
