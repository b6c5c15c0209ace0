package internal

import (
	"sync"

	"golang.org/x/exp/slices"
)

// This file defines the publish-subscribe model used for status and flag change events that are
// delivered through channels.
//
// AddListener returns a new receive-only channel; RemoveListener unsubscribes that channel and closes
// the sending end of it; Broadcast sends a value to all of the subscribed channels (if any); and Close
// unsubscribes and closes all existing channels.

// Arbitrary buffer size to make it less likely that we'll block when broadcasting to channels. It is still
// the consumer's responsibility to make sure they're reading the channel.
const subscriberChannelBufferLength = 10

// Broadcaster is our generalized implementation of broadcasters.
type Broadcaster[V any] struct {
	subscribers []*subscriber[V]
	lock        sync.Mutex
}

// A subscriber's sendCh is only closed while holding sendLock, and done is closed first so that a
// Broadcast blocked on a full channel gives up instead of holding sendLock forever.
type subscriber[V any] struct {
	sendCh    chan V
	receiveCh <-chan V
	done      chan struct{}
	sendLock  sync.Mutex
	closed    bool
}

// NewBroadcaster creates a Broadcaster that operates on the specified value type.
func NewBroadcaster[V any]() *Broadcaster[V] {
	return &Broadcaster[V]{}
}

// AddListener adds a subscriber and returns a channel for it to receive values.
func (b *Broadcaster[V]) AddListener() <-chan V {
	ch := make(chan V, subscriberChannelBufferLength)
	s := &subscriber[V]{sendCh: ch, receiveCh: ch, done: make(chan struct{})}
	b.lock.Lock()
	b.subscribers = append(b.subscribers, s)
	b.lock.Unlock()
	return s.receiveCh
}

// RemoveListener removes a subscriber. The parameter is the same channel that was returned by
// AddListener.
func (b *Broadcaster[V]) RemoveListener(ch <-chan V) {
	var removed *subscriber[V]
	b.lock.Lock()
	for i, s := range b.subscribers {
		if s.receiveCh == ch {
			removed = s
			b.subscribers = slices.Delete(b.subscribers, i, i+1)
			break
		}
	}
	b.lock.Unlock()
	if removed != nil {
		removed.close()
	}
}

// HasListeners returns true if there are any current subscribers.
func (b *Broadcaster[V]) HasListeners() bool {
	b.lock.Lock()
	defer b.lock.Unlock()
	return len(b.subscribers) > 0
}

// Broadcast broadcasts a value to all current subscribers.
func (b *Broadcaster[V]) Broadcast(value V) {
	b.lock.Lock()
	ss := slices.Clone(b.subscribers)
	b.lock.Unlock()
	for _, s := range ss {
		s.send(value)
	}
}

// Close closes all current subscriber channels.
func (b *Broadcaster[V]) Close() {
	b.lock.Lock()
	ss := b.subscribers
	b.subscribers = nil
	b.lock.Unlock()
	for _, s := range ss {
		s.close()
	}
}

func (s *subscriber[V]) send(value V) {
	s.sendLock.Lock()
	defer s.sendLock.Unlock()
	if s.closed {
		return
	}
	select {
	case s.sendCh <- value:
	case <-s.done:
	}
}

// Called at most once, by whichever of RemoveListener or Close took s out of the list.
func (s *subscriber[V]) close() {
	close(s.done)
	s.sendLock.Lock()
	s.closed = true
	close(s.sendCh)
	s.sendLock.Unlock()
}
