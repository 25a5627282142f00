package views

import (
	"testing"

	"tableflip.dev/jot/pkg/entry"
	"tableflip.dev/jot/pkg/filter"
)

func testViews(t *testing.T) *Views {
	t.Helper()
	v, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open views: %v", err)
	}
	return v
}

func TestSaveLoadRoundTrip(t *testing.T) {
	v := testViews(t)

	spec := filter.New(entry.ModuleTodo)
	spec.Overdue = true
	spec.SetGroupBy(filter.GroupStatus)
	spec.SearchText = "release"

	if err := v.Save(entry.ModuleTodo, "triage", spec); err != nil {
		t.Fatalf("save: %v", err)
	}

	got := v.Load(entry.ModuleTodo, "triage")
	if !got.Overdue || got.GroupBy != filter.GroupStatus || got.SearchText != "release" {
		t.Fatalf("round trip lost criteria: %+v", got)
	}
	if got.OrderBy != filter.OrderStatus {
		t.Fatalf("grouped view should keep its forced ordering, got %s", got.OrderBy)
	}
}

func TestLoadMissingFallsBackToDefaults(t *testing.T) {
	v := testViews(t)

	got := v.Load(entry.ModuleNote, "nope")
	def := filter.New(entry.ModuleNote)
	if got.OrderBy != def.OrderBy || got.HasDateFilter() {
		t.Fatalf("missing view should yield defaults, got %+v", got)
	}
}

func TestListIsScopedPerModule(t *testing.T) {
	v := testViews(t)

	if err := v.Save(entry.ModuleTodo, "triage", filter.New(entry.ModuleTodo)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := v.Save(entry.ModuleTodo, "all", filter.New(entry.ModuleTodo)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := v.Save(entry.ModuleNote, "scratch", filter.New(entry.ModuleNote)); err != nil {
		t.Fatalf("save: %v", err)
	}

	names := v.List(entry.ModuleTodo)
	if len(names) != 2 || names[0] != "all" || names[1] != "triage" {
		t.Fatalf("task views = %v", names)
	}
	if got := v.List(entry.ModuleNote); len(got) != 1 || got[0] != "scratch" {
		t.Fatalf("note views = %v", got)
	}
}

func TestDeleteRemovesView(t *testing.T) {
	v := testViews(t)

	if err := v.Save(entry.ModuleTodo, "triage", filter.New(entry.ModuleTodo)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := v.Delete(entry.ModuleTodo, "triage"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if names := v.List(entry.ModuleTodo); len(names) != 0 {
		t.Fatalf("views after delete = %v", names)
	}
}
