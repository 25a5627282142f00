package query

import (
	"context"
	"testing"
	"time"

	"tableflip.dev/jot/pkg/collection"
	"tableflip.dev/jot/pkg/entry"
	"tableflip.dev/jot/pkg/filter"
	"tableflip.dev/jot/pkg/store"
)

var testNow = time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)

func testStore(t *testing.T) (*store.Store, int64) {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	c := collection.NewLocal("inbox")
	if err := s.InsertCollection(&c); err != nil {
		t.Fatalf("insert collection: %v", err)
	}
	return s, c.ID
}

func insertTask(t *testing.T, s *store.Store, cid int64, summary string, due *time.Time) *entry.Entry {
	t.Helper()
	e := entry.New(entry.ModuleTodo)
	e.CollectionID = cid
	e.Summary = summary
	if due != nil {
		d := entry.Timestamp{Time: *due}
		e.Due = &d
	}
	if err := s.Insert(e); err != nil {
		t.Fatalf("insert %q: %v", summary, err)
	}
	return e
}

func run(t *testing.T, s *store.Store, spec filter.Spec) *Result {
	t.Helper()
	res, err := Run(context.Background(), s.DB(), spec, testNow)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	return res
}

func day(d int) *time.Time {
	t := time.Date(2026, time.June, d, 9, 0, 0, 0, time.UTC)
	return &t
}

func TestRunDefaultSpecReturnsAllOfModule(t *testing.T) {
	s, cid := testStore(t)
	insertTask(t, s, cid, "due late", day(20))
	insertTask(t, s, cid, "due soon", day(16))
	insertTask(t, s, cid, "undated", nil)

	n := entry.New(entry.ModuleNote)
	n.CollectionID = cid
	n.Summary = "a note"
	if err := s.Insert(n); err != nil {
		t.Fatalf("insert note: %v", err)
	}

	res := run(t, s, filter.New(entry.ModuleTodo))
	if len(res.Rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(res.Rows))
	}
	// Default task order is due ascending with undated rows last.
	if res.Rows[0].Summary != "due soon" || res.Rows[2].Summary != "undated" {
		t.Fatalf("order = %q, %q, %q", res.Rows[0].Summary, res.Rows[1].Summary, res.Rows[2].Summary)
	}
	if res.Groups != nil {
		t.Fatalf("ungrouped spec should not partition")
	}
}

func TestRunExcludesDeletedRows(t *testing.T) {
	s, cid := testStore(t)
	keep := insertTask(t, s, cid, "keep", nil)
	gone := insertTask(t, s, cid, "gone", nil)
	if err := s.MarkDeleted([]int64{gone.ID}); err != nil {
		t.Fatalf("mark deleted: %v", err)
	}

	res := run(t, s, filter.New(entry.ModuleTodo))
	if len(res.Rows) != 1 || res.Rows[0].ID != keep.ID {
		t.Fatalf("rows = %+v", res.Rows)
	}
}

func TestRunDateBucketsWiden(t *testing.T) {
	s, cid := testStore(t)
	insertTask(t, s, cid, "overdue", day(10))
	// Later today, so it sits in the today bucket without also being overdue.
	laterToday := testNow.Add(6 * time.Hour)
	insertTask(t, s, cid, "today", &laterToday)
	insertTask(t, s, cid, "next week", day(25))

	overdue := filter.New(entry.ModuleTodo)
	overdue.Overdue = true
	res := run(t, s, overdue)
	if len(res.Rows) != 1 || res.Rows[0].Summary != "overdue" {
		t.Fatalf("overdue rows = %+v", res.Rows)
	}

	// Enabling a second bucket must only ever widen the result.
	wider := overdue
	wider.DueToday = true
	res2 := run(t, s, wider)
	if len(res2.Rows) != 2 {
		t.Fatalf("overdue+today rows = %d, want 2", len(res2.Rows))
	}
	seen := map[int64]bool{}
	for _, r := range res2.Rows {
		seen[r.ID] = true
	}
	for _, r := range res.Rows {
		if !seen[r.ID] {
			t.Fatalf("widening the date filter dropped row %d", r.ID)
		}
	}
}

func TestRunNoDatesBucket(t *testing.T) {
	s, cid := testStore(t)
	insertTask(t, s, cid, "dated", day(16))
	undated := insertTask(t, s, cid, "undated", nil)

	spec := filter.New(entry.ModuleTodo)
	spec.NoDatesSet = true
	res := run(t, s, spec)
	if len(res.Rows) != 1 || res.Rows[0].ID != undated.ID {
		t.Fatalf("rows = %+v", res.Rows)
	}
}

func TestRunSearchMatchesSummaryAndCategories(t *testing.T) {
	s, cid := testStore(t)
	insertTask(t, s, cid, "buy groceries", nil)
	tagged := entry.New(entry.ModuleTodo)
	tagged.CollectionID = cid
	tagged.Summary = "errand"
	tagged.Categories = []string{"groceries"}
	if err := s.Insert(tagged); err != nil {
		t.Fatalf("insert: %v", err)
	}
	insertTask(t, s, cid, "unrelated", nil)

	spec := filter.New(entry.ModuleTodo)
	spec.SearchText = "groceries"
	res := run(t, s, spec)
	if len(res.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(res.Rows))
	}
}

func TestRunStatusFilterAndGrouping(t *testing.T) {
	s, cid := testStore(t)

	done := insertTask(t, s, cid, "done", nil)
	done.ApplyStatus(entry.StatusCompleted)
	if err := s.Update(done); err != nil {
		t.Fatalf("update: %v", err)
	}
	insertTask(t, s, cid, "open one", nil)
	insertTask(t, s, cid, "open two", nil)

	spec := filter.New(entry.ModuleTodo)
	spec.SetGroupBy(filter.GroupStatus)
	res := run(t, s, spec)
	if len(res.Groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(res.Groups))
	}
	// Status declaration order puts needs-action before completed.
	if res.Groups[0].Label != string(entry.StatusNeedsAction) {
		t.Fatalf("first group = %q", res.Groups[0].Label)
	}
	if len(res.Groups[0].Rows) != 2 || len(res.Groups[1].Rows) != 1 {
		t.Fatalf("group sizes = %d, %d", len(res.Groups[0].Rows), len(res.Groups[1].Rows))
	}

	only := filter.New(entry.ModuleTodo)
	only.Statuses = []entry.Status{entry.StatusCompleted}
	res2 := run(t, s, only)
	if len(res2.Rows) != 1 || res2.Rows[0].ID != done.ID {
		t.Fatalf("status filter rows = %+v", res2.Rows)
	}
}

func TestCollapsePicksEarliestFutureOccurrence(t *testing.T) {
	mkRow := func(id int64, uid string, due time.Time) Row {
		d := entry.Timestamp{Time: due}
		return Row{ID: id, UID: uid, Recurring: true, Due: &d}
	}

	rows := []Row{
		mkRow(1, "s1", testNow.AddDate(0, 0, -2)),
		mkRow(2, "s1", testNow.AddDate(0, 0, 1)),
		mkRow(3, "s1", testNow.AddDate(0, 0, 2)),
		{ID: 4, UID: "plain", Summary: "not recurring"},
	}

	out := Collapse(rows, testNow)
	if len(out) != 2 {
		t.Fatalf("collapsed rows = %d, want 2", len(out))
	}
	if out[0].ID != 2 {
		t.Fatalf("representative = %d, want the earliest future occurrence", out[0].ID)
	}
	if out[1].ID != 4 {
		t.Fatalf("non-recurring row must pass through")
	}
}

func TestCollapseFallsBackToLatestPast(t *testing.T) {
	mkRow := func(id int64, due time.Time) Row {
		d := entry.Timestamp{Time: due}
		return Row{ID: id, UID: "s1", Recurring: true, Due: &d}
	}

	rows := []Row{
		mkRow(1, testNow.AddDate(0, 0, -10)),
		mkRow(2, testNow.AddDate(0, 0, -1)),
	}
	out := Collapse(rows, testNow)
	if len(out) != 1 || out[0].ID != 2 {
		t.Fatalf("collapsed = %+v, want only the latest past occurrence", out)
	}
}

func TestCollapseEndToEnd(t *testing.T) {
	s, cid := testStore(t)

	uid := "series-uid"
	for i, d := range []int{10, 13, 16, 19, 22} {
		e := entry.New(entry.ModuleTodo)
		e.UID = uid
		e.CollectionID = cid
		e.Summary = "standup"
		due := entry.Timestamp{Time: *day(d)}
		e.Due = &due
		if i == 0 {
			e.RecurrenceRule = "FREQ=DAILY;INTERVAL=3;COUNT=5"
		} else {
			rid := due
			e.RecurrenceID = &rid
		}
		if err := s.Insert(e); err != nil {
			t.Fatalf("insert occurrence: %v", err)
		}
	}

	spec := filter.New(entry.ModuleTodo)
	spec.CollapseRecurring = true
	res := run(t, s, spec)
	if len(res.Rows) != 1 {
		t.Fatalf("rows = %d, want a single representative", len(res.Rows))
	}
	if res.Rows[0].Due == nil || !res.Rows[0].Due.Time.Equal(*day(16)) {
		t.Fatalf("representative due = %v, want the earliest future occurrence", res.Rows[0].Due)
	}
}

func TestPartitionLabels(t *testing.T) {
	d := entry.Timestamp{Time: *day(16)}
	rows := []Row{
		{ID: 1, Priority: 1, Due: &d},
		{ID: 2, Priority: 1},
		{ID: 3},
	}

	byPriority := Partition(rows, filter.GroupPriority)
	if len(byPriority) != 2 || byPriority[0].Label != "Priority 1" || byPriority[1].Label != "No priority" {
		t.Fatalf("priority groups = %+v", byPriority)
	}

	byDue := Partition(rows, filter.GroupDue)
	if len(byDue) != 2 || byDue[1].Label != "None" {
		t.Fatalf("due groups = %+v", byDue)
	}
}
