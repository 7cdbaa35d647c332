// Package broadcast fans out state-change frames to subscribed
// observers. Delivery is decoupled per subscriber: a bounded queue and
// a writer goroutine per connection, so one slow dashboard can never
// stall the publisher or its neighbours. When a queue overflows the
// oldest frame is dropped and a refresh signal is guaranteed to reach
// the subscriber before anything newer: lossy, but always recoverable
// by re-fetching the authoritative snapshot.
package broadcast

import (
	"sync"
)

// RefreshFrame is the sentinel frame instructing a subscriber to
// discard incremental state and re-fetch the full snapshot.
var RefreshFrame = []byte(`{"type":"refresh"}`)

// Broadcaster owns the per-channel subscriber registries. One instance
// is constructed at startup and passed to every producer.
type Broadcaster struct {
	mu       sync.RWMutex
	channels map[string]*channelHub
	closed   bool
}

// channelHub holds the subscribers of a single channel behind its own
// lock, so traffic on one channel does not serialize the others.
type channelHub struct {
	mu   sync.Mutex
	subs map[*Subscriber]struct{}
}

// New creates an empty broadcaster.
func New() *Broadcaster {
	return &Broadcaster{
		channels: make(map[string]*channelHub),
	}
}

func (b *Broadcaster) hub(channel string, create bool) *channelHub {
	b.mu.RLock()
	hub, ok := b.channels[channel]
	b.mu.RUnlock()
	if ok || !create {
		return hub
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	if hub, ok = b.channels[channel]; ok {
		return hub
	}
	hub = &channelHub{subs: make(map[*Subscriber]struct{})}
	b.channels[channel] = hub
	return hub
}

// Subscribe registers a subscriber on a channel. Subscribing the same
// handle twice is a no-op and never duplicates delivery.
func (b *Broadcaster) Subscribe(channel string, sub *Subscriber) {
	hub := b.hub(channel, true)
	if hub == nil || sub.isClosed() {
		return
	}
	hub.mu.Lock()
	hub.subs[sub] = struct{}{}
	hub.mu.Unlock()
}

// Unsubscribe removes a subscriber from every channel and stops its
// writer. Unknown handles are a no-op.
func (b *Broadcaster) Unsubscribe(sub *Subscriber) {
	b.mu.RLock()
	hubs := make([]*channelHub, 0, len(b.channels))
	for _, hub := range b.channels {
		hubs = append(hubs, hub)
	}
	b.mu.RUnlock()

	for _, hub := range hubs {
		hub.mu.Lock()
		delete(hub.subs, sub)
		hub.mu.Unlock()
	}

	sub.close()
}

// Publish delivers one frame to every current subscriber of the
// channel. The call never blocks on subscriber I/O.
func (b *Broadcaster) Publish(channel string, frame []byte) {
	b.PublishBatch(channel, [][]byte{frame})
}

// PublishBatch delivers a frame sequence, preserving its order for
// each subscriber. For any single subscriber the result is
// indistinguishable from the same frames published one by one.
func (b *Broadcaster) PublishBatch(channel string, frames [][]byte) {
	if len(frames) == 0 {
		return
	}
	for _, sub := range b.snapshot(channel) {
		sub.enqueue(frames)
	}
}

// PublishRefresh tells every subscriber of the channel to re-fetch
// full state out of band.
func (b *Broadcaster) PublishRefresh(channel string) {
	for _, sub := range b.snapshot(channel) {
		sub.enqueueRefresh()
	}
}

// snapshot copies the current subscriber set of a channel so delivery
// does not hold the hub lock.
func (b *Broadcaster) snapshot(channel string) []*Subscriber {
	hub := b.hub(channel, false)
	if hub == nil {
		return nil
	}
	hub.mu.Lock()
	subs := make([]*Subscriber, 0, len(hub.subs))
	for sub := range hub.subs {
		subs = append(subs, sub)
	}
	hub.mu.Unlock()
	return subs
}

// Close tears down the broadcaster: every subscriber is stopped and
// further subscriptions are rejected.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	channels := b.channels
	b.channels = make(map[string]*channelHub)
	b.closed = true
	b.mu.Unlock()

	for _, hub := range channels {
		hub.mu.Lock()
		for sub := range hub.subs {
			sub.close()
		}
		hub.mu.Unlock()
	}
}
