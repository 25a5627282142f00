// Package engine coordinates every mutation against the store, preserving
// the recurrence-exception, cascade, and sync-dirty invariants. All writes
// funnel through one serialized worker; reads stay on the caller's
// goroutine.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tableflip.dev/jot/pkg/collection"
	"tableflip.dev/jot/pkg/entry"
	"tableflip.dev/jot/pkg/store"
)

var (
	// ErrReadOnly is returned when a mutation targets a read-only entry.
	ErrReadOnly = errors.New("engine: entry is read-only")

	errClosed = errors.New("engine: closed")
)

// Engine owns the single mutation queue. Only one mutation is in flight
// against the store at a time; that is sufficient because the engine's own
// invariants are the only cross-row constraints and there is no external
// writer.
type Engine struct {
	st       *store.Store
	requests chan task
	quit     chan struct{}
	wg       sync.WaitGroup

	// closed gates new requests; senders tracks callers between the gate
	// and their enqueue, so Close never strands an accepted task.
	mu        sync.Mutex
	closed    bool
	senders   sync.WaitGroup
	closeOnce sync.Once

	// now is a seam for tests; everything date-relative flows through it.
	now func() time.Time
}

type task struct {
	fn   func() (any, error)
	resp chan taskResult
}

type taskResult struct {
	v   any
	err error
}

// New starts the engine's worker over the given store.
func New(st *store.Store) *Engine {
	g := &Engine{
		st:       st,
		requests: make(chan task, 64),
		quit:     make(chan struct{}),
		now:      time.Now,
	}
	g.wg.Add(1)
	go g.work()
	return g
}

// Store exposes the underlying store for read paths.
func (g *Engine) Store() *store.Store {
	return g.st
}

// Close drains the worker. Requests already enqueued still run; anything
// submitted afterwards is rejected. Safe to call more than once.
func (g *Engine) Close() {
	g.closeOnce.Do(func() {
		g.mu.Lock()
		g.closed = true
		g.mu.Unlock()
		g.senders.Wait()
		close(g.quit)
		g.wg.Wait()
	})
}

func (g *Engine) work() {
	defer g.wg.Done()
	for {
		select {
		case t := <-g.requests:
			t.resp <- runTask(t.fn)
		case <-g.quit:
			// No new senders once quit closes; serve what is already
			// queued, then stop.
			for {
				select {
				case t := <-g.requests:
					t.resp <- runTask(t.fn)
				default:
					return
				}
			}
		}
	}
}

// runTask converts every failure, including a panic, into an error value at
// the operation boundary. Nothing propagates as an uncaught fault into the
// presentation layer.
func runTask(fn func() (any, error)) (res taskResult) {
	defer func() {
		if r := recover(); r != nil {
			res = taskResult{err: fmt.Errorf("engine: operation aborted: %v", r)}
		}
	}()
	v, err := fn()
	return taskResult{v: v, err: err}
}

func (g *Engine) exec(ctx context.Context, fn func() (any, error)) (any, error) {
	t := task{fn: fn, resp: make(chan taskResult, 1)}

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil, errClosed
	}
	g.senders.Add(1)
	g.mu.Unlock()

	select {
	case g.requests <- t:
		g.senders.Done()
	case <-ctx.Done():
		g.senders.Done()
		return nil, ctx.Err()
	}

	// An enqueued task is always answered: the worker drains the queue on
	// shutdown, and resp is buffered so the answer never blocks.
	select {
	case r := <-t.resp:
		return r.v, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Insert persists a new entry, expanding its occurrences when it defines a
// recurring series.
func (g *Engine) Insert(ctx context.Context, e *entry.Entry) error {
	_, err := g.exec(ctx, func() (any, error) {
		if _, err := entry.ParseModule(string(e.Module)); err != nil {
			return nil, err
		}
		if e.UID == "" {
			e.UID = uuid.NewString()
		}
		now := entry.Timestamp{Time: g.now()}
		if e.Created.IsZero() {
			e.Created = now
		}
		e.LastModified = now
		e.Dirty = true
		e.UploadPending = true
		if err := g.st.Insert(e); err != nil {
			return nil, err
		}
		if e.IsSeries() {
			if err := g.regenerateInstances(e); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

// InsertQuickEntry builds an entry from one line of text. Leading or
// trailing #category tokens become categories; the rest is the summary.
func (g *Engine) InsertQuickEntry(ctx context.Context, m entry.Module, collectionID int64, text string) (*entry.Entry, error) {
	e := entry.New(m)
	e.CollectionID = collectionID

	var words []string
	for _, w := range strings.Fields(text) {
		if strings.HasPrefix(w, "#") && len(w) > 1 {
			e.AddCategory(strings.TrimPrefix(w, "#"))
			continue
		}
		words = append(words, w)
	}
	e.Summary = strings.Join(words, " ")

	if err := g.Insert(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// LinkChild adds a hierarchy edge from parent to child.
func (g *Engine) LinkChild(ctx context.Context, parentID, childID int64) error {
	_, err := g.exec(ctx, func() (any, error) {
		child, err := g.st.Get(childID)
		if err != nil {
			return nil, err
		}
		return nil, g.st.Link(parentID, childID, entry.RelChild, child.UID)
	})
	return err
}

// UpdateStatus sets the status of an entry, materializing an exception
// first when the target is a live occurrence of a recurring series. The id
// of the row actually mutated is returned; it differs from the requested id
// exactly when an exception was created.
func (g *Engine) UpdateStatus(ctx context.Context, id int64, status entry.Status) (int64, error) {
	return g.mutate(ctx, id, func(e *entry.Entry) {
		e.ApplyStatus(status)
	})
}

// UpdateProgress sets percent-complete, deriving the implied status when
// the caller supplies none. Same exception semantics as UpdateStatus.
func (g *Engine) UpdateProgress(ctx context.Context, id int64, percent int) (int64, error) {
	return g.mutate(ctx, id, func(e *entry.Entry) {
		e.ApplyProgress(percent, entry.StatusNone)
	})
}

func (g *Engine) mutate(ctx context.Context, id int64, apply func(*entry.Entry)) (int64, error) {
	v, err := g.exec(ctx, func() (any, error) {
		target, err := g.mutableTarget(id)
		if err != nil {
			return nil, err
		}
		apply(target)
		if err := g.commit(target); err != nil {
			return nil, err
		}
		return target.ID, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

// mutableTarget resolves the row a mutation may touch. A generated, never
// edited occurrence is swapped for a freshly materialized exception; the
// series row itself is never the target of a per-occurrence mutation.
func (g *Engine) mutableTarget(id int64) (*entry.Entry, error) {
	e, err := g.st.Get(id)
	if err != nil {
		return nil, err
	}
	if e.ReadOnly {
		return nil, fmt.Errorf("%w: id %d", ErrReadOnly, id)
	}
	if !e.IsUnexceptional() {
		return e, nil
	}
	series, err := g.st.SeriesByUID(e.UID)
	if err != nil {
		return nil, fmt.Errorf("engine: occurrence %d has no series: %w", id, err)
	}
	return g.makeException(series, e)
}

// makeException replaces a generated occurrence with a clone of the series
// row carrying the occurrence start as its recurrence id. The series row's
// rule and sequence are left untouched. The swap is a single store
// transaction, so a failure leaves the occurrence in place.
func (g *Engine) makeException(series, occurrence *entry.Entry) (*entry.Entry, error) {
	clone := *series
	clone.ID = 0
	clone.RecurrenceRule = ""
	rid := *occurrence.RecurrenceID
	clone.RecurrenceID = &rid
	clone.DTStart = occurrence.DTStart
	clone.DTStartTZ = occurrence.DTStartTZ
	clone.Due = occurrence.Due
	clone.DueTZ = occurrence.DueTZ
	clone.Sequence = 0
	clone.Dirty = true
	clone.UploadPending = false

	if err := g.st.ReplaceOccurrence(occurrence.ID, series.ID, &clone); err != nil {
		return nil, err
	}
	return &clone, nil
}

// MakeException materializes the occurrence of a series starting at
// occurrenceStart and returns the new row id, without applying any further
// mutation.
func (g *Engine) MakeException(ctx context.Context, seriesID int64, occurrenceStart time.Time) (int64, error) {
	v, err := g.exec(ctx, func() (any, error) {
		series, err := g.st.Get(seriesID)
		if err != nil {
			return nil, err
		}
		if !series.IsSeries() {
			return nil, fmt.Errorf("engine: entry %d is not a recurring series", seriesID)
		}
		instances, err := g.st.InstancesByUID(series.UID)
		if err != nil {
			return nil, err
		}
		for _, inst := range instances {
			if inst.RecurrenceID.Millis() != occurrenceStart.UnixMilli() {
				continue
			}
			if inst.Sequence > 0 {
				return inst.ID, nil // already an exception
			}
			clone, err := g.makeException(series, inst)
			if err != nil {
				return nil, err
			}
			if err := g.commit(clone); err != nil {
				return nil, err
			}
			return clone.ID, nil
		}
		return nil, fmt.Errorf("engine: series %d has no occurrence at %v", seriesID, occurrenceStart)
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

// commit stamps an edit: sequence bump, dirty, fresh modification time.
func (g *Engine) commit(e *entry.Entry) error {
	e.Sequence++
	e.Dirty = true
	e.LastModified = entry.Timestamp{Time: g.now()}
	return g.st.Update(e)
}

// DeleteWithChildren removes an entry and its cascade set. Rows from local
// collections are removed outright; rows from remote collections are marked
// deleted and dirty, retained until the sync adapter confirms server-side
// removal. The cascade set is resolved, and the whole operation aborted on
// any inconsistency, before the first destructive step.
func (g *Engine) DeleteWithChildren(ctx context.Context, rootID int64) error {
	_, err := g.exec(ctx, func() (any, error) {
		ids, err := g.st.CascadeSet(rootID)
		if err != nil {
			return nil, err
		}

		var local, remote []int64
		colls := make(map[int64]*collection.Collection)
		for _, id := range ids {
			e, err := g.st.Get(id)
			if err != nil {
				return nil, err
			}
			c, ok := colls[e.CollectionID]
			if !ok {
				if c, err = g.st.GetCollection(e.CollectionID); err != nil {
					return nil, err
				}
				colls[e.CollectionID] = c
			}
			if c.Remote() {
				remote = append(remote, id)
			} else {
				local = append(local, id)
			}
		}

		// Soft flags first; the hard delete (which also rewrites edges)
		// goes last so an abort leaves the graph consistent.
		if err := g.st.MarkDeleted(remote); err != nil {
			return nil, err
		}
		return nil, g.st.DeleteRows(local)
	})
	return err
}

// MoveCollection moves an entry and its cascade set to another collection
// and returns the id of the root in the destination. A purely local move
// rewrites collection ids in place, preserving ids. As soon as any remote
// origin or destination is involved, the subtree is copied with fresh ids
// and uids, edges re-linked among the copies, and every original row marked
// deleted and dirty for the adapter to reconcile.
func (g *Engine) MoveCollection(ctx context.Context, rootID, targetCollectionID int64) (int64, error) {
	v, err := g.exec(ctx, func() (any, error) {
		ids, err := g.st.CascadeSet(rootID)
		if err != nil {
			return nil, err
		}
		target, err := g.st.GetCollection(targetCollectionID)
		if err != nil {
			return nil, err
		}

		entries := make(map[int64]*entry.Entry, len(ids))
		colls := make(map[int64]*collection.Collection)
		pureLocal := !target.Remote()
		for _, id := range ids {
			e, err := g.st.Get(id)
			if err != nil {
				return nil, err
			}
			entries[id] = e
			c, ok := colls[e.CollectionID]
			if !ok {
				if c, err = g.st.GetCollection(e.CollectionID); err != nil {
					return nil, err
				}
				colls[e.CollectionID] = c
			}
			if c.Remote() {
				pureLocal = false
			}
		}

		if pureLocal {
			if err := g.st.UpdateCollectionIDs(ids, targetCollectionID); err != nil {
				return nil, err
			}
			return rootID, nil
		}

		// Copy the subtree into the destination with fresh identities.
		newIDs := make(map[int64]int64, len(ids))
		newUIDs := make(map[string]string)
		for _, id := range ids {
			e := entries[id]
			nu, ok := newUIDs[e.UID]
			if !ok {
				nu = uuid.NewString()
				newUIDs[e.UID] = nu
			}
			clone := *e
			clone.ID = 0
			clone.UID = nu
			clone.CollectionID = targetCollectionID
			clone.Dirty = true
			clone.UploadPending = true
			clone.Deleted = false
			// A copied exception keeps its sequence; at zero it would read
			// as a generated occurrence and the next edit would replace it
			// with a fresh clone of the series.
			if !e.IsInstance() {
				clone.Sequence = 0
			}
			if err := g.st.Insert(&clone); err != nil {
				return nil, err
			}
			newIDs[id] = clone.ID
		}

		// Re-link edges among the copies; edge rewiring goes last so an
		// abort above leaves the original graph untouched.
		for _, id := range ids {
			rels, err := g.st.Relations(id)
			if err != nil {
				return nil, err
			}
			for _, r := range rels {
				if r.ParentID != id {
					continue
				}
				childNew, ok := newIDs[r.ChildID]
				if !ok {
					continue // edge leaves the moved subtree
				}
				childUID := newUIDs[entries[r.ChildID].UID]
				if err := g.st.Link(newIDs[id], childNew, r.Type, childUID); err != nil {
					return nil, err
				}
			}
		}

		if err := g.st.MarkDeleted(ids); err != nil {
			return nil, err
		}
		return newIDs[rootID], nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}
