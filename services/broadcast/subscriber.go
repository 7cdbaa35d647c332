package broadcast

import (
	"log"
	"sync"
)

// Sink is the transport half of a subscriber: it serializes frames
// onto the wire. A Send error means the connection is gone.
type Sink interface {
	Send(frame []byte) error
	Close() error
}

// Subscriber is a registered observer. It owns a bounded frame queue
// drained by a dedicated writer goroutine; the broadcaster side only
// ever appends.
type Subscriber struct {
	b        *Broadcaster
	sink     Sink
	capacity int

	mu         sync.Mutex
	queue      [][]byte
	refreshDue bool
	closed     bool

	wake chan struct{}
	done chan struct{}
}

// NewSubscriber wraps a sink in a subscriber with the given queue
// capacity and starts its writer. Register it with Subscribe.
func (b *Broadcaster) NewSubscriber(sink Sink, capacity int) *Subscriber {
	if capacity <= 0 {
		capacity = 1
	}
	sub := &Subscriber{
		b:        b,
		sink:     sink,
		capacity: capacity,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	go sub.run()
	return sub
}

// enqueue appends frames under one lock acquisition, so a batch for
// this subscriber can never interleave with another publisher's batch.
func (s *Subscriber) enqueue(frames [][]byte) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	for _, frame := range frames {
		if len(s.queue) >= s.capacity {
			// Queue full: the oldest pending frame is sacrificed and a
			// refresh is owed before anything currently queued.
			s.queue = s.queue[1:]
			s.refreshDue = true
		}
		s.queue = append(s.queue, frame)
	}
	s.mu.Unlock()
	s.signal()
}

// Refresh queues a refresh signal for this subscriber alone, e.g. so
// a just-attached observer starts from a snapshot fetch.
func (s *Subscriber) Refresh() {
	s.enqueueRefresh()
}

func (s *Subscriber) enqueueRefresh() {
	s.mu.Lock()
	if !s.closed {
		s.refreshDue = true
	}
	s.mu.Unlock()
	s.signal()
}

func (s *Subscriber) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscriber) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// close stops the writer and closes the sink. Safe to call more than
// once; the broadcaster calls it from Unsubscribe.
func (s *Subscriber) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.queue = nil
	s.mu.Unlock()

	close(s.done)
	if err := s.sink.Close(); err != nil {
		log.Printf("Subscriber sink close: %v", err)
	}
}

// run drains the queue onto the sink. A pending refresh always goes
// out before the queue head: the gap it reports precedes whatever is
// still queued.
func (s *Subscriber) run() {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		var frame []byte
		switch {
		case s.refreshDue:
			s.refreshDue = false
			frame = RefreshFrame
		case len(s.queue) > 0:
			frame = s.queue[0]
			s.queue = s.queue[1:]
		default:
			s.mu.Unlock()
			select {
			case <-s.wake:
			case <-s.done:
				return
			}
			continue
		}
		s.mu.Unlock()

		if err := s.sink.Send(frame); err != nil {
			// Delivery failure is subscriber-local: evict this handle,
			// never surface to the publisher.
			log.Printf("Subscriber delivery failed, evicting: %v", err)
			s.b.Unsubscribe(s)
			return
		}
	}
}
