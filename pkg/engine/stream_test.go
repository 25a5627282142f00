package engine

import (
	"context"
	"testing"
	"time"

	"tableflip.dev/jot/pkg/entry"
	"tableflip.dev/jot/pkg/filter"
	"tableflip.dev/jot/pkg/query"
)

func nextResult(t *testing.T, ch <-chan *query.Result) *query.Result {
	t.Helper()
	select {
	case res, ok := <-ch:
		if !ok {
			t.Fatalf("result stream closed unexpectedly")
		}
		return res
	case <-time.After(5 * time.Second):
		t.Fatalf("no result published")
	}
	return nil
}

func TestSubscribePublishesOnChange(t *testing.T) {
	g := testEngine(t)
	cid := testCollection(t, g, "inbox", true)

	sub := g.Subscribe(context.Background(), filter.New(entry.ModuleTodo))
	defer sub.Cancel()

	res := nextResult(t, sub.Results())
	if len(res.Rows) != 0 {
		t.Fatalf("initial rows = %d", len(res.Rows))
	}

	insertTask(t, g, cid, "new work")

	// The change event republishes; a slow reader only ever misses
	// intermediate states, so poll until the row shows up.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case res, ok := <-sub.Results():
			if !ok {
				t.Fatalf("stream closed before the change arrived")
			}
			if len(res.Rows) == 1 && res.Rows[0].Summary == "new work" {
				return
			}
		case <-deadline:
			t.Fatalf("change never published")
		}
	}
}

func TestSetSpecSupersedesStream(t *testing.T) {
	g := testEngine(t)
	cid := testCollection(t, g, "inbox", true)
	insertTask(t, g, cid, "task")

	n := entry.New(entry.ModuleNote)
	n.CollectionID = cid
	n.Summary = "note"
	if err := g.Insert(context.Background(), n); err != nil {
		t.Fatalf("insert note: %v", err)
	}

	sub := g.Subscribe(context.Background(), filter.New(entry.ModuleTodo))
	defer sub.Cancel()

	old := sub.Results()
	res := nextResult(t, old)
	if len(res.Rows) != 1 || res.Rows[0].Module != entry.ModuleTodo {
		t.Fatalf("initial rows = %+v", res.Rows)
	}

	fresh := sub.SetSpec(filter.New(entry.ModuleNote))
	res = nextResult(t, fresh)
	if len(res.Rows) != 1 || res.Rows[0].Module != entry.ModuleNote {
		t.Fatalf("superseding stream rows = %+v", res.Rows)
	}

	// The superseded channel ends up closed once the new spec publishes.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-old:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("superseded stream never closed")
		}
	}
}

func TestCancelClosesStream(t *testing.T) {
	g := testEngine(t)
	testCollection(t, g, "inbox", true)

	sub := g.Subscribe(context.Background(), filter.New(entry.ModuleTodo))
	nextResult(t, sub.Results())
	sub.Cancel()

	select {
	case _, ok := <-sub.Results():
		if ok {
			// Drain a result that raced the cancel; the close follows.
			if _, ok := <-sub.Results(); ok {
				t.Fatalf("stream still open after cancel")
			}
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("stream never closed after cancel")
	}
}
