package datastore

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"

	"golang.org/x/exp/slices"
)

// listener is a single registered callback. Its deliveryLock is held for the whole of each delivery,
// so once Disconnect has returned no delivery is in progress and none will start. The one exception is
// a handler disconnecting its own listener: that call returns without waiting for the delivery it is
// part of.
type listener[E any] struct {
	handler      func(E)
	owner        *listenerSet[E]
	deliveryLock sync.Mutex
	stateLock    sync.Mutex
	disconnected bool
	deliveringIn atomic.Uint64 // goroutine ID of the delivery in progress, or 0
}

func (l *listener[E]) deliver(event E) {
	l.deliveryLock.Lock()
	defer l.deliveryLock.Unlock()
	l.stateLock.Lock()
	disconnected := l.disconnected
	l.stateLock.Unlock()
	if disconnected {
		return
	}
	l.deliveringIn.Store(goroutineID())
	defer l.deliveringIn.Store(0)
	l.handler(event)
}

// Disconnect implements interfaces.Connection.
func (l *listener[E]) Disconnect() {
	l.stateLock.Lock()
	wasDisconnected := l.disconnected
	l.disconnected = true
	l.stateLock.Unlock()
	if l.deliveringIn.Load() != goroutineID() {
		l.deliveryLock.Lock()
		l.deliveryLock.Unlock() //nolint:staticcheck // waits for an in-flight delivery
	}
	if !wasDisconnected {
		l.owner.remove(l)
	}
}

var goroutinePrefix = []byte("goroutine ")

// goroutineID parses the current goroutine's ID out of the "goroutine 4707 [" stack header.
func goroutineID() uint64 {
	b := make([]byte, 64)
	b = bytes.TrimPrefix(b[:runtime.Stack(b, false)], goroutinePrefix)
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, _ := strconv.ParseUint(string(b), 10, 64)
	return id
}

// listenerSet is an ordered set of listeners for one event type.
type listenerSet[E any] struct {
	listeners []*listener[E]
	onEmpty   func()
	lock      sync.Mutex
}

func (s *listenerSet[E]) add(handler func(E)) *listener[E] {
	l := &listener[E]{handler: handler, owner: s}
	s.lock.Lock()
	s.listeners = append(s.listeners, l)
	s.lock.Unlock()
	return l
}

func (s *listenerSet[E]) remove(l *listener[E]) {
	s.lock.Lock()
	if i := slices.Index(s.listeners, l); i >= 0 {
		s.listeners = slices.Delete(s.listeners, i, i+1)
	}
	empty := len(s.listeners) == 0
	s.lock.Unlock()
	if empty && s.onEmpty != nil {
		s.onEmpty()
	}
}

func (s *listenerSet[E]) isEmpty() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.listeners) == 0
}

func (s *listenerSet[E]) broadcast(event E) {
	s.lock.Lock()
	ls := slices.Clone(s.listeners)
	s.lock.Unlock()
	for _, l := range ls {
		l.deliver(event)
	}
}
