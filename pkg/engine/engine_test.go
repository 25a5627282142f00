package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"tableflip.dev/jot/pkg/collection"
	"tableflip.dev/jot/pkg/entry"
	"tableflip.dev/jot/pkg/store"
)

var testNow = time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	g := New(st)
	g.now = func() time.Time { return testNow }
	t.Cleanup(func() {
		g.Close()
		_ = st.Close()
	})
	return g
}

func testCollection(t *testing.T, g *Engine, name string, local bool) int64 {
	t.Helper()
	c := collection.NewLocal(name)
	if !local {
		c.Local = false
		c.AccountName = "user@example.com"
	}
	if err := g.Store().InsertCollection(&c); err != nil {
		t.Fatalf("insert collection: %v", err)
	}
	return c.ID
}

func insertTask(t *testing.T, g *Engine, cid int64, summary string) *entry.Entry {
	t.Helper()
	e := entry.New(entry.ModuleTodo)
	e.CollectionID = cid
	e.Summary = summary
	if err := g.Insert(context.Background(), e); err != nil {
		t.Fatalf("insert %q: %v", summary, err)
	}
	return e
}

func link(t *testing.T, g *Engine, parentID, childID int64) {
	t.Helper()
	if err := g.LinkChild(context.Background(), parentID, childID); err != nil {
		t.Fatalf("link %d -> %d: %v", parentID, childID, err)
	}
}

func TestInsertStampsIdentityAndSyncFlags(t *testing.T) {
	g := testEngine(t)
	cid := testCollection(t, g, "inbox", true)
	e := insertTask(t, g, cid, "first")

	if e.ID == 0 || e.UID == "" {
		t.Fatalf("identity not assigned: id=%d uid=%q", e.ID, e.UID)
	}
	got, err := g.Store().Get(e.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Dirty || !got.UploadPending {
		t.Fatalf("new entries must be staged for sync, dirty=%v pending=%v", got.Dirty, got.UploadPending)
	}
}

func TestInsertQuickEntryParsesCategories(t *testing.T) {
	g := testEngine(t)
	cid := testCollection(t, g, "inbox", true)

	e, err := g.InsertQuickEntry(context.Background(), entry.ModuleNote, cid, "buy milk #groceries #errands")
	if err != nil {
		t.Fatalf("quick entry: %v", err)
	}
	if e.Summary != "buy milk" {
		t.Fatalf("summary = %q", e.Summary)
	}
	if len(e.Categories) != 2 || e.Categories[0] != "groceries" || e.Categories[1] != "errands" {
		t.Fatalf("categories = %v", e.Categories)
	}
}

func TestInsertSeriesMaterializesOccurrences(t *testing.T) {
	g := testEngine(t)
	cid := testCollection(t, g, "inbox", true)

	series := entry.New(entry.ModuleTodo)
	series.CollectionID = cid
	series.Summary = "water the plants"
	due := entry.Timestamp{Time: time.Date(2026, time.July, 1, 9, 0, 0, 0, time.UTC)}
	series.Due = &due
	series.RecurrenceRule = "FREQ=DAILY;COUNT=5"
	if err := g.Insert(context.Background(), series); err != nil {
		t.Fatalf("insert series: %v", err)
	}

	// The series row stands in for the first occurrence; the other four are
	// materialized as linked instance rows.
	insts, err := g.Store().InstancesByUID(series.UID)
	if err != nil {
		t.Fatalf("instances: %v", err)
	}
	if len(insts) != 4 {
		t.Fatalf("instances = %d, want 4", len(insts))
	}
	for i, inst := range insts {
		want := due.Time.AddDate(0, 0, i+1)
		if !inst.RecurrenceID.Time.Equal(want) {
			t.Fatalf("instance %d occurrence = %v, want %v", i, inst.RecurrenceID.Time, want)
		}
		if inst.RecurrenceRule != "" {
			t.Fatalf("instance rows carry no rule")
		}
		if inst.Dirty {
			t.Fatalf("generated instances are derived state, never dirty")
		}
	}

	set, err := g.Store().CascadeSet(series.ID)
	if err != nil {
		t.Fatalf("cascade: %v", err)
	}
	if len(set) != 5 {
		t.Fatalf("series cascade = %d rows, want series plus 4 instances", len(set))
	}
}

func TestUpdateStatusOnOccurrenceMaterializesException(t *testing.T) {
	g := testEngine(t)
	cid := testCollection(t, g, "inbox", true)

	series := entry.New(entry.ModuleTodo)
	series.CollectionID = cid
	series.Summary = "standup"
	due := entry.Timestamp{Time: time.Date(2026, time.July, 1, 9, 0, 0, 0, time.UTC)}
	series.Due = &due
	series.RecurrenceRule = "FREQ=DAILY;COUNT=5"
	if err := g.Insert(context.Background(), series); err != nil {
		t.Fatalf("insert series: %v", err)
	}
	seriesSeq := mustGet(t, g, series.ID).Sequence

	insts, err := g.Store().InstancesByUID(series.UID)
	if err != nil {
		t.Fatalf("instances: %v", err)
	}
	second := insts[0]

	newID, err := g.UpdateStatus(context.Background(), second.ID, entry.StatusCompleted)
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if newID == second.ID {
		t.Fatalf("mutating a generated occurrence must produce a fresh exception row")
	}
	if _, err := g.Store().Get(second.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("placeholder occurrence should be replaced, got %v", err)
	}

	exc := mustGet(t, g, newID)
	if exc.Status != entry.StatusCompleted || exc.PercentComplete != 100 {
		t.Fatalf("exception state = %s at %d%%", exc.Status, exc.PercentComplete)
	}
	if exc.RecurrenceID == nil || !exc.RecurrenceID.Time.Equal(second.RecurrenceID.Time) {
		t.Fatalf("exception must keep the occurrence identity, got %v", exc.RecurrenceID)
	}
	if exc.RecurrenceRule != "" || exc.Sequence == 0 || !exc.Dirty {
		t.Fatalf("exception row malformed: rule=%q seq=%d dirty=%v", exc.RecurrenceRule, exc.Sequence, exc.Dirty)
	}

	after := mustGet(t, g, series.ID)
	if after.RecurrenceRule != series.RecurrenceRule || after.Sequence != seriesSeq {
		t.Fatalf("series must be untouched by a per-occurrence edit")
	}

	// Total occurrence count is unchanged: the placeholder became an exception.
	insts, err = g.Store().InstancesByUID(series.UID)
	if err != nil {
		t.Fatalf("instances: %v", err)
	}
	if len(insts) != 4 {
		t.Fatalf("instances = %d, want 4", len(insts))
	}
}

func TestUpdateStatusOnPlainEntryEditsInPlace(t *testing.T) {
	g := testEngine(t)
	cid := testCollection(t, g, "inbox", true)
	e := insertTask(t, g, cid, "plain")

	id, err := g.UpdateStatus(context.Background(), e.ID, entry.StatusCompleted)
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if id != e.ID {
		t.Fatalf("plain entries mutate in place, got new id %d", id)
	}
	got := mustGet(t, g, e.ID)
	if got.Sequence != e.Sequence+1 || !got.Dirty {
		t.Fatalf("edit stamp missing: seq=%d dirty=%v", got.Sequence, got.Dirty)
	}
}

func TestUpdateProgressImpliesStatus(t *testing.T) {
	g := testEngine(t)
	cid := testCollection(t, g, "inbox", true)
	e := insertTask(t, g, cid, "long job")

	if _, err := g.UpdateProgress(context.Background(), e.ID, 40); err != nil {
		t.Fatalf("update progress: %v", err)
	}
	got := mustGet(t, g, e.ID)
	if got.Status != entry.StatusInProcess || got.PercentComplete != 40 {
		t.Fatalf("got %s at %d%%", got.Status, got.PercentComplete)
	}
}

func TestMutationRejectsReadOnly(t *testing.T) {
	g := testEngine(t)
	cid := testCollection(t, g, "inbox", true)

	e := entry.New(entry.ModuleTodo)
	e.CollectionID = cid
	e.ReadOnly = true
	if err := g.Insert(context.Background(), e); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if _, err := g.UpdateStatus(context.Background(), e.ID, entry.StatusCompleted); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
}

func TestDeleteWithChildrenLocalRemovesRows(t *testing.T) {
	g := testEngine(t)
	cid := testCollection(t, g, "inbox", true)
	root := insertTask(t, g, cid, "root")
	child := insertTask(t, g, cid, "child")
	grand := insertTask(t, g, cid, "grand")
	link(t, g, root.ID, child.ID)
	link(t, g, child.ID, grand.ID)

	if err := g.DeleteWithChildren(context.Background(), root.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	for _, id := range []int64{root.ID, child.ID, grand.ID} {
		if _, err := g.Store().Get(id); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("row %d should be gone, got %v", id, err)
		}
	}
}

func TestDeleteWithChildrenRemoteStagesForSync(t *testing.T) {
	g := testEngine(t)
	cid := testCollection(t, g, "calendar", false)
	root := insertTask(t, g, cid, "root")
	child := insertTask(t, g, cid, "child")
	link(t, g, root.ID, child.ID)

	if err := g.DeleteWithChildren(context.Background(), root.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	for _, id := range []int64{root.ID, child.ID} {
		got := mustGet(t, g, id)
		if !got.Deleted || !got.Dirty {
			t.Fatalf("row %d must be staged: deleted=%v dirty=%v", id, got.Deleted, got.Dirty)
		}
	}
}

func TestDeleteWithChildrenMissingRootFailsBeforeMutating(t *testing.T) {
	g := testEngine(t)
	testCollection(t, g, "inbox", true)

	if err := g.DeleteWithChildren(context.Background(), 999); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMoveCollectionLocalPreservesIDs(t *testing.T) {
	g := testEngine(t)
	from := testCollection(t, g, "inbox", true)
	to := testCollection(t, g, "projects", true)
	root := insertTask(t, g, from, "root")
	child := insertTask(t, g, from, "child")
	link(t, g, root.ID, child.ID)

	newID, err := g.MoveCollection(context.Background(), root.ID, to)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if newID != root.ID {
		t.Fatalf("local move must preserve ids, got %d", newID)
	}
	for _, id := range []int64{root.ID, child.ID} {
		got := mustGet(t, g, id)
		if got.CollectionID != to {
			t.Fatalf("row %d collection = %d, want %d", id, got.CollectionID, to)
		}
	}
}

func TestMoveCollectionToRemoteCopiesSubtree(t *testing.T) {
	g := testEngine(t)
	from := testCollection(t, g, "inbox", true)
	to := testCollection(t, g, "calendar", false)
	root := insertTask(t, g, from, "root")
	child := insertTask(t, g, from, "child")
	link(t, g, root.ID, child.ID)

	newID, err := g.MoveCollection(context.Background(), root.ID, to)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if newID == root.ID {
		t.Fatalf("remote move must copy with fresh ids")
	}

	moved := mustGet(t, g, newID)
	if moved.CollectionID != to || moved.UID == root.UID {
		t.Fatalf("copy malformed: collection=%d uid=%q", moved.CollectionID, moved.UID)
	}
	if !moved.Dirty || !moved.UploadPending {
		t.Fatalf("copies must be staged for upload")
	}

	// The copied subtree keeps its shape.
	set, err := g.Store().CascadeSet(newID)
	if err != nil {
		t.Fatalf("cascade: %v", err)
	}
	if len(set) != 2 {
		t.Fatalf("copied cascade = %d rows, want 2", len(set))
	}

	// Originals stay behind, staged for removal.
	for _, id := range []int64{root.ID, child.ID} {
		got := mustGet(t, g, id)
		if !got.Deleted || !got.Dirty {
			t.Fatalf("original %d must be staged for removal", id)
		}
	}
}

func TestMoveCollectionKeepsExceptionsEditableInPlace(t *testing.T) {
	g := testEngine(t)
	from := testCollection(t, g, "inbox", true)
	to := testCollection(t, g, "calendar", false)

	series := entry.New(entry.ModuleTodo)
	series.CollectionID = from
	series.Summary = "standup"
	due := entry.Timestamp{Time: time.Date(2026, time.July, 1, 9, 0, 0, 0, time.UTC)}
	series.Due = &due
	series.RecurrenceRule = "FREQ=DAILY;COUNT=5"
	if err := g.Insert(context.Background(), series); err != nil {
		t.Fatalf("insert series: %v", err)
	}

	insts, err := g.Store().InstancesByUID(series.UID)
	if err != nil {
		t.Fatalf("instances: %v", err)
	}
	excID, err := g.UpdateStatus(context.Background(), insts[0].ID, entry.StatusCompleted)
	if err != nil {
		t.Fatalf("update status: %v", err)
	}

	newRoot, err := g.MoveCollection(context.Background(), series.ID, to)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if newRoot == series.ID {
		t.Fatalf("remote move must copy with fresh ids")
	}

	movedSeries := mustGet(t, g, newRoot)
	moved, err := g.Store().InstancesByUID(movedSeries.UID)
	if err != nil {
		t.Fatalf("moved instances: %v", err)
	}
	var exc *entry.Entry
	for _, inst := range moved {
		if inst.Status == entry.StatusCompleted {
			exc = inst
		}
	}
	if exc == nil {
		t.Fatalf("exception lost in move: %+v", moved)
	}
	if exc.Sequence == 0 {
		t.Fatalf("copied exception reads as a generated occurrence")
	}
	if orig := mustGet(t, g, excID); !orig.Deleted {
		t.Fatalf("original exception must be staged for removal")
	}

	// An edit to the copied exception must land on that same row, not
	// replace it with a fresh clone of the series.
	id, err := g.UpdateProgress(context.Background(), exc.ID, 50)
	if err != nil {
		t.Fatalf("update progress: %v", err)
	}
	if id != exc.ID {
		t.Fatalf("edit replaced the copied exception: %d -> %d", exc.ID, id)
	}
	got := mustGet(t, g, id)
	if got.PercentComplete != 50 {
		t.Fatalf("percent = %d", got.PercentComplete)
	}
	if got.RecurrenceID == nil || !got.RecurrenceID.Time.Equal(exc.RecurrenceID.Time) {
		t.Fatalf("occurrence identity lost: %v", got.RecurrenceID)
	}
}

func TestMakeExceptionIsIdempotentPerOccurrence(t *testing.T) {
	g := testEngine(t)
	cid := testCollection(t, g, "inbox", true)

	series := entry.New(entry.ModuleTodo)
	series.CollectionID = cid
	due := entry.Timestamp{Time: time.Date(2026, time.July, 1, 9, 0, 0, 0, time.UTC)}
	series.Due = &due
	series.RecurrenceRule = "FREQ=WEEKLY;COUNT=3"
	if err := g.Insert(context.Background(), series); err != nil {
		t.Fatalf("insert series: %v", err)
	}

	occ := due.Time.AddDate(0, 0, 7)
	first, err := g.MakeException(context.Background(), series.ID, occ)
	if err != nil {
		t.Fatalf("make exception: %v", err)
	}
	second, err := g.MakeException(context.Background(), series.ID, occ)
	if err != nil {
		t.Fatalf("make exception again: %v", err)
	}
	if first != second {
		t.Fatalf("repeated materialization returned %d then %d", first, second)
	}
}

func TestSyncRoundTrip(t *testing.T) {
	g := testEngine(t)
	cid := testCollection(t, g, "calendar", false)
	e := insertTask(t, g, cid, "syncable")

	pending, err := g.Sync().PendingUpload(context.Background())
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != e.ID {
		t.Fatalf("pending = %+v", pending)
	}

	if err := g.Sync().ConfirmTransfer(context.Background(), []int64{e.ID}); err != nil {
		t.Fatalf("confirm transfer: %v", err)
	}
	pending, err = g.Sync().PendingUpload(context.Background())
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending after confirm = %+v", pending)
	}

	if err := g.DeleteWithChildren(context.Background(), e.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := g.Sync().ConfirmRemoteDelete(context.Background(), []int64{e.ID}); err != nil {
		t.Fatalf("confirm remote delete: %v", err)
	}
	if _, err := g.Store().Get(e.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("confirmed delete should purge the row, got %v", err)
	}
}

func TestCloseRunsEnqueuedTasks(t *testing.T) {
	g := testEngine(t)

	// Hold the worker on the first task so the rest pile up in the queue
	// when Close arrives.
	release := make(chan struct{})
	first := task{fn: func() (any, error) { <-release; return nil, nil }, resp: make(chan taskResult, 1)}
	g.requests <- first

	var queued []task
	for i := 0; i < 30; i++ {
		tk := task{fn: func() (any, error) { return nil, nil }, resp: make(chan taskResult, 1)}
		g.requests <- tk
		queued = append(queued, tk)
	}

	done := make(chan struct{})
	go func() {
		g.Close()
		g.Close() // a second close is a no-op, not a panic
		close(done)
	}()
	close(release)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("close did not return")
	}

	for i, tk := range append([]task{first}, queued...) {
		select {
		case r := <-tk.resp:
			if r.err != nil {
				t.Fatalf("task %d failed: %v", i, r.err)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("task %d was dropped on close", i)
		}
	}

	if _, err := g.exec(context.Background(), func() (any, error) { return nil, nil }); !errors.Is(err, errClosed) {
		t.Fatalf("closed engine accepted work, err = %v", err)
	}
}

func mustGet(t *testing.T, g *Engine, id int64) *entry.Entry {
	t.Helper()
	e, err := g.Store().Get(id)
	if err != nil {
		t.Fatalf("get %d: %v", id, err)
	}
	return e
}
