package engine

import (
	"context"
	"fmt"
	"os"
	"sync"

	"tableflip.dev/jot/pkg/filter"
	"tableflip.dev/jot/pkg/query"
	"tableflip.dev/jot/pkg/store"
)

// Subscription is a restartable result stream for one view. Every store
// change recompiles the active spec and publishes a fresh result; a lagging
// consumer only ever misses intermediate states, never the latest one.
type Subscription struct {
	g      *Engine
	ctx    context.Context
	cancel context.CancelFunc
	kick   chan struct{}

	mu      sync.Mutex
	spec    filter.Spec
	out     chan *query.Result
	retired []chan *query.Result
}

// Subscribe starts a result stream for the given spec. The first result is
// published as soon as the initial query completes.
func (g *Engine) Subscribe(ctx context.Context, spec filter.Spec) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		g:      g,
		ctx:    ctx,
		cancel: cancel,
		kick:   make(chan struct{}, 1),
		spec:   spec,
		out:    make(chan *query.Result, 1),
	}
	events := g.st.Watch(ctx)
	go s.loop(events)
	return s
}

// Results returns the current stream. After SetSpec the previous channel is
// closed and this returns the superseding one.
func (s *Subscription) Results() <-chan *query.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out
}

// SetSpec replaces the active spec. The previous stream is superseded, not
// mutated: it is closed, and a new stream carries results compiled from the
// new spec.
func (s *Subscription) SetSpec(spec filter.Spec) <-chan *query.Result {
	if s.ctx.Err() != nil {
		return s.Results() // cancelled; the stream is already closed
	}
	s.mu.Lock()
	s.spec = spec
	s.retired = append(s.retired, s.out)
	s.out = make(chan *query.Result, 1)
	out := s.out
	s.mu.Unlock()

	select {
	case s.kick <- struct{}{}:
	default:
	}
	return out
}

// Cancel stops the subscription and closes its stream.
func (s *Subscription) Cancel() {
	s.cancel()
}

func (s *Subscription) loop(events <-chan store.Event) {
	defer s.closeAll()

	s.publish()
	for {
		select {
		case <-s.ctx.Done():
			return
		case _, ok := <-events:
			if !ok {
				return
			}
			s.publish()
		case <-s.kick:
			s.publish()
		}
	}
}

// publish recompiles the active spec and replaces whatever result the
// consumer has not yet read. Only this goroutine sends on or closes result
// channels, so a spec swap can never race a send.
func (s *Subscription) publish() {
	s.mu.Lock()
	spec := s.spec
	out := s.out
	retired := s.retired
	s.retired = nil
	s.mu.Unlock()

	for _, ch := range retired {
		close(ch)
	}

	res, err := query.Run(s.ctx, s.g.st.DB(), spec, s.g.now())
	if err != nil {
		if s.ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "engine: recompile view: %v\n", err)
		}
		return
	}

	select {
	case out <- res:
	default:
		// Replace the unread result with the fresher one.
		select {
		case <-out:
		default:
		}
		select {
		case out <- res:
		default:
		}
	}
}

func (s *Subscription) closeAll() {
	s.mu.Lock()
	retired := append(s.retired, s.out)
	s.retired = nil
	s.mu.Unlock()

	for _, ch := range retired {
		close(ch)
	}
}
