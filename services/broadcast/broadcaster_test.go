package broadcast

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordSink collects delivered frames. An optional gate blocks Send
// until released, simulating a stalled connection.
type recordSink struct {
	mu      sync.Mutex
	frames  [][]byte
	closed  bool
	gate    chan struct{}
	entered chan struct{}
	delay   time.Duration
}

func (s *recordSink) Send(frame []byte) error {
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.gate != nil {
		<-s.gate
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, frame)
	return nil
}

func (s *recordSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *recordSink) delivered() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.frames))
	copy(out, s.frames)
	return out
}

func (s *recordSink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// failSink errors on every Send.
type failSink struct {
	recordSink
}

func (s *failSink) Send(frame []byte) error {
	return errors.New("connection reset")
}

func frame(i int) []byte {
	return []byte(fmt.Sprintf(`{"seq":%d}`, i))
}

func TestPublishDeliversInOrder(t *testing.T) {
	b := New()
	defer b.Close()

	sink := &recordSink{delay: time.Millisecond}
	sub := b.NewSubscriber(sink, 16)
	b.Subscribe("presence", sub)

	for i := 0; i < 5; i++ {
		b.Publish("presence", frame(i))
	}

	require.Eventually(t, func() bool {
		return len(sink.delivered()) == 5
	}, 2*time.Second, 10*time.Millisecond)

	got := sink.delivered()
	for i := 0; i < 5; i++ {
		assert.Equal(t, frame(i), got[i])
	}
}

func TestPublishBatchPreservesOrder(t *testing.T) {
	b := New()
	defer b.Close()

	sink := &recordSink{delay: time.Millisecond}
	sub := b.NewSubscriber(sink, 16)
	b.Subscribe("presence", sub)

	b.PublishBatch("presence", [][]byte{frame(1), frame(2), frame(3)})

	require.Eventually(t, func() bool {
		return len(sink.delivered()) == 3
	}, 2*time.Second, 10*time.Millisecond)

	got := sink.delivered()
	assert.Equal(t, [][]byte{frame(1), frame(2), frame(3)}, got)
}

func TestOverflowDropsOldestAndOwesOneRefresh(t *testing.T) {
	b := New()
	defer b.Close()

	gate := make(chan struct{})
	sink := &recordSink{gate: gate, entered: make(chan struct{}, 1)}
	sub := b.NewSubscriber(sink, 10)
	b.Subscribe("presence", sub)

	// Park the writer on the gate holding the first frame, so the
	// overflow below happens in a known state.
	b.Publish("presence", frame(0))
	<-sink.entered
	sink.entered = nil

	start := time.Now()
	for i := 1; i < 1000; i++ {
		b.Publish("presence", frame(i))
	}
	elapsed := time.Since(start)

	// Publisher is never blocked by the stalled subscriber.
	assert.Less(t, elapsed, 2*time.Second)

	// Inspect the pending state: at most capacity real frames plus one
	// owed refresh.
	sub.mu.Lock()
	queued := len(sub.queue)
	refreshDue := sub.refreshDue
	newest := sub.queue[queued-1]
	sub.mu.Unlock()

	assert.LessOrEqual(t, queued, 10)
	assert.True(t, refreshDue)
	assert.Equal(t, frame(999), newest)

	// Drain: the refresh goes out before the surviving frames.
	close(gate)
	require.Eventually(t, func() bool {
		return len(sink.delivered()) == queued+2 // in-flight + refresh + survivors
	}, 2*time.Second, 10*time.Millisecond)

	got := sink.delivered()
	refreshIdx := -1
	for i, f := range got {
		if bytes.Equal(f, RefreshFrame) {
			require.Equal(t, -1, refreshIdx, "more than one refresh delivered")
			refreshIdx = i
		}
	}
	require.NotEqual(t, -1, refreshIdx, "no refresh delivered")
	// Only the frame already in flight when the overflow happened may
	// precede the refresh; every surviving queued frame follows it.
	assert.LessOrEqual(t, refreshIdx, 1)
	assert.Equal(t, frame(999), got[len(got)-1])
}

func TestSubscribeIdempotent(t *testing.T) {
	b := New()
	defer b.Close()

	sink := &recordSink{}
	sub := b.NewSubscriber(sink, 8)
	b.Subscribe("presence", sub)
	b.Subscribe("presence", sub)

	b.Publish("presence", frame(1))

	require.Eventually(t, func() bool {
		return len(sink.delivered()) >= 1
	}, time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	assert.Len(t, sink.delivered(), 1)
}

func TestUnsubscribeUnknownHandleIsNoop(t *testing.T) {
	b := New()
	defer b.Close()

	sink := &recordSink{}
	sub := b.NewSubscriber(sink, 8)

	b.Unsubscribe(sub) // never subscribed
	b.Unsubscribe(sub) // and again

	assert.True(t, sink.isClosed())
}

func TestDeliveryErrorEvictsOnlyFailingSubscriber(t *testing.T) {
	b := New()
	defer b.Close()

	bad := &failSink{}
	good := &recordSink{}
	badSub := b.NewSubscriber(bad, 8)
	goodSub := b.NewSubscriber(good, 8)
	b.Subscribe("moderation", badSub)
	b.Subscribe("moderation", goodSub)

	b.Publish("moderation", frame(1))

	require.Eventually(t, func() bool {
		return len(good.delivered()) == 1 && bad.isClosed()
	}, 2*time.Second, 10*time.Millisecond)

	b.Publish("moderation", frame(2))
	require.Eventually(t, func() bool {
		return len(good.delivered()) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSlowSubscriberDoesNotDelayOthers(t *testing.T) {
	b := New()
	defer b.Close()

	gate := make(chan struct{})
	defer close(gate)
	slow := &recordSink{gate: gate}
	fast := &recordSink{}
	b.Subscribe("presence", b.NewSubscriber(slow, 4))
	b.Subscribe("presence", b.NewSubscriber(fast, 4))

	b.Publish("presence", frame(1))

	require.Eventually(t, func() bool {
		return len(fast.delivered()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestLateSubscriberSeesOnlyLaterEvents(t *testing.T) {
	b := New()
	defer b.Close()

	first := &recordSink{}
	b.Subscribe("presence", b.NewSubscriber(first, 8))
	b.Publish("presence", frame(1))

	require.Eventually(t, func() bool {
		return len(first.delivered()) == 1
	}, time.Second, 10*time.Millisecond)

	late := &recordSink{}
	b.Subscribe("presence", b.NewSubscriber(late, 8))
	b.Publish("presence", frame(2))

	require.Eventually(t, func() bool {
		return len(late.delivered()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, frame(2), late.delivered()[0])
}

func TestPublishRefreshReachesSubscribers(t *testing.T) {
	b := New()
	defer b.Close()

	sink := &recordSink{}
	b.Subscribe("presence", b.NewSubscriber(sink, 8))

	b.PublishRefresh("presence")

	require.Eventually(t, func() bool {
		return len(sink.delivered()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, RefreshFrame, sink.delivered()[0])
}

func TestCloseStopsAllSubscribers(t *testing.T) {
	b := New()
	sink := &recordSink{}
	sub := b.NewSubscriber(sink, 8)
	b.Subscribe("presence", sub)

	b.Close()

	assert.True(t, sink.isClosed())
	// Publishing after close is a harmless no-op.
	b.Publish("presence", frame(1))
}
