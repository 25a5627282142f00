package store

import (
	"context"
	"sync"
	"time"

	"tableflip.dev/jot/pkg/entry"
)

// EventType describes the nature of a persistence change notification.
type EventType int

const (
	// EventEntriesChanged indicates entry rows or relation edges changed.
	EventEntriesChanged EventType = iota

	// EventCollectionsChanged signals that the collection catalog itself
	// changed and callers should refresh their full view.
	EventCollectionsChanged
)

// Event is emitted by Store.Watch when storage changes. Module is empty when
// the change could span modules (bulk deletes, edge rewrites).
type Event struct {
	Type   EventType
	Module entry.Module
}

// Watch streams change events until ctx is cancelled. The stream starts at
// the subscription point; changes recorded earlier, even ones still waiting
// on the coalescing timer, are not replayed. Callers should drain the
// returned channel; events are dropped, not queued, when a consumer lags,
// since any later refresh picks up the same state.
func (s *Store) Watch(ctx context.Context) <-chan Event {
	ch := s.watch.subscribe()
	go func() {
		<-ctx.Done()
		s.watch.unsubscribe(ch)
	}()
	return ch
}

// notifier fans change events out to subscribers, coalescing rapid bursts so
// observers recompile once per burst instead of once per row write. The
// audience for an event is fixed when the event is recorded; a subscriber
// arriving later never sees it.
type notifier struct {
	mu      sync.Mutex
	subs    map[chan Event]struct{}
	pending []pendingEvent
	timer   *time.Timer
	delay   time.Duration
	closed  bool
}

type pendingEvent struct {
	ev   Event
	subs []chan Event
}

func newNotifier(delay time.Duration) *notifier {
	return &notifier{
		subs:  make(map[chan Event]struct{}),
		delay: delay,
	}
}

func (n *notifier) subscribe() chan Event {
	ch := make(chan Event, 16)
	n.mu.Lock()
	if !n.closed {
		n.subs[ch] = struct{}{}
	} else {
		close(ch)
	}
	n.mu.Unlock()
	return ch
}

func (n *notifier) unsubscribe(ch chan Event) {
	n.mu.Lock()
	if _, ok := n.subs[ch]; ok {
		delete(n.subs, ch)
		close(ch)
	}
	n.mu.Unlock()
}

func (n *notifier) notify(ev Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	for i := range n.pending {
		if n.pending[i].ev == ev {
			return // coalesced into the already queued event
		}
	}
	subs := make([]chan Event, 0, len(n.subs))
	for ch := range n.subs {
		subs = append(subs, ch)
	}
	n.pending = append(n.pending, pendingEvent{ev: ev, subs: subs})
	if n.timer == nil {
		n.timer = time.AfterFunc(n.delay, n.flush)
	}
}

// flush delivers under the lock: sends are non-blocking and unsubscribe
// closes channels, so sending outside the lock could hit a closed channel.
func (n *notifier) flush() {
	n.mu.Lock()
	defer n.mu.Unlock()
	pending := n.pending
	n.pending = nil
	n.timer = nil

	for _, p := range pending {
		for _, ch := range p.subs {
			if _, ok := n.subs[ch]; !ok {
				continue // unsubscribed since the event was recorded
			}
			select {
			case ch <- p.ev:
			default:
				// Drop when the consumer is not ready; a subsequent
				// refresh picks up the change.
			}
		}
	}
}

func (n *notifier) close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	for ch := range n.subs {
		close(ch)
		delete(n.subs, ch)
	}
	n.mu.Unlock()
}
