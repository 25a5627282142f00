// Package query compiles a filter spec into a parameterized, deterministically
// ordered result set, with in-memory post-passes for grouping and recurrence
// collapsing.
package query

import (
	"strconv"
	"strings"
	"time"

	"tableflip.dev/jot/pkg/entry"
	"tableflip.dev/jot/pkg/filter"
	"tableflip.dev/jot/pkg/timeutil"
)

// Compile builds the WHERE body for a spec: a conjunction of independently
// optional clauses, one per filter dimension. A dimension with an empty
// selection contributes nothing, so absence of a filter never narrows
// results. Values within one dimension combine with OR. Every bound value is
// a placeholder argument; nothing from the spec is interpolated into SQL
// text.
func Compile(spec filter.Spec, now time.Time) (string, []any) {
	clauses := []string{"e.module = ?", "e.deleted = 0"}
	args := []any{string(spec.Module)}

	if len(spec.Categories) > 0 {
		ors := make([]string, len(spec.Categories))
		for i, c := range spec.Categories {
			ors[i] = "e.categories LIKE ?"
			args = append(args, "%"+c+"%")
		}
		clauses = append(clauses, "("+strings.Join(ors, " OR ")+")")
	}

	if len(spec.CollectionIDs) > 0 {
		clauses = append(clauses, "e.collection_id IN ("+placeholders(len(spec.CollectionIDs))+")")
		for _, id := range spec.CollectionIDs {
			args = append(args, id)
		}
	}

	if len(spec.Accounts) > 0 {
		clauses = append(clauses, "c.account_name IN ("+placeholders(len(spec.Accounts))+")")
		for _, a := range spec.Accounts {
			args = append(args, a)
		}
	}

	if len(spec.Statuses) > 0 {
		clauses = append(clauses, "e.status IN ("+placeholders(len(spec.Statuses))+")")
		for _, st := range spec.Statuses {
			args = append(args, string(st))
		}
	}

	if len(spec.Classifications) > 0 {
		clauses = append(clauses, "e.classification IN ("+placeholders(len(spec.Classifications))+")")
		for _, c := range spec.Classifications {
			args = append(args, string(c))
		}
	}

	if spec.HasDateFilter() {
		dates, dateArgs := dateClause(spec, now)
		clauses = append(clauses, dates)
		args = append(args, dateArgs...)
	}

	if spec.SearchText != "" {
		clauses = append(clauses, "(e.summary LIKE ? OR e.description LIKE ? OR e.categories LIKE ?)")
		pattern := "%" + spec.SearchText + "%"
		args = append(args, pattern, pattern, pattern)
	}

	return strings.Join(clauses, " AND "), args
}

// dateClause ORs the active quick date buckets into one dimension. Buckets
// are computed against the caller-supplied now, never the wall clock, so
// recompilations within one render agree with each other.
func dateClause(spec filter.Spec, now time.Time) (string, []any) {
	var ors []string
	var args []any

	nowMs := now.UnixMilli()
	dayStart := timeutil.DayStart(now).UnixMilli()
	nextDay := timeutil.NextDayStart(now).UnixMilli()
	dayAfterNext := timeutil.DayAfterNextStart(now).UnixMilli()
	weekAhead := timeutil.WeekAheadStart(now).UnixMilli()

	rng := func(column string, lo, hi int64) {
		ors = append(ors, "(e."+column+" IS NOT NULL AND e."+column+" >= ? AND e."+column+" < ?)")
		args = append(args, lo, hi)
	}

	if spec.Overdue {
		ors = append(ors, "(e.due IS NOT NULL AND e.due < ?)")
		args = append(args, nowMs)
	}
	if spec.DueToday {
		rng("due", dayStart, nextDay)
	}
	if spec.DueTomorrow {
		rng("due", nextDay, dayAfterNext)
	}
	if spec.DueWithin7Days {
		rng("due", dayStart, weekAhead)
	}
	if spec.DueFuture {
		ors = append(ors, "(e.due IS NOT NULL AND e.due >= ?)")
		args = append(args, weekAhead)
	}

	if spec.StartInPast {
		ors = append(ors, "(e.dtstart IS NOT NULL AND e.dtstart < ?)")
		args = append(args, nowMs)
	}
	if spec.StartToday {
		rng("dtstart", dayStart, nextDay)
	}
	if spec.StartTomorrow {
		rng("dtstart", nextDay, dayAfterNext)
	}
	if spec.StartWithin7Days {
		rng("dtstart", dayStart, weekAhead)
	}
	if spec.StartFuture {
		ors = append(ors, "(e.dtstart IS NOT NULL AND e.dtstart >= ?)")
		args = append(args, weekAhead)
	}

	if spec.NoDatesSet {
		ors = append(ors, "(e.due IS NULL AND e.dtstart IS NULL)")
	}

	return "(" + strings.Join(ors, " OR ") + ")", args
}

// orderClause builds the ORDER BY terms for the primary and secondary keys
// plus the stable identity tie-break that keeps pagination deterministic
// across recompilations. Column expressions come from a fixed table; only
// enum rank values are bound.
func orderClause(spec filter.Spec) (string, []any) {
	var terms []string
	var args []any

	appendKey := func(key filter.OrderKey, dir filter.Direction) {
		if key == "" {
			return
		}
		exprs, keyArgs := orderTerms(spec.Module, key)
		for i, expr := range exprs {
			// The null-sink term keeps unset dates at the end regardless
			// of direction; only the final term takes the direction.
			if i == len(exprs)-1 {
				terms = append(terms, expr+" "+string(dir))
			} else {
				terms = append(terms, expr)
			}
		}
		args = append(args, keyArgs...)
	}

	appendKey(spec.OrderBy, spec.SortOrder)
	appendKey(spec.OrderBy2, spec.SortOrder2)
	terms = append(terms, "e.id ASC")
	return strings.Join(terms, ", "), args
}

func orderTerms(m entry.Module, key filter.OrderKey) ([]string, []any) {
	switch key {
	case filter.OrderStart:
		return []string{"(e.dtstart IS NULL)", "e.dtstart"}, nil
	case filter.OrderDue:
		return []string{"(e.due IS NULL)", "e.due"}, nil
	case filter.OrderCompleted:
		return []string{"(e.completed IS NULL)", "e.completed"}, nil
	case filter.OrderCreated:
		return []string{"e.created"}, nil
	case filter.OrderModified:
		return []string{"e.last_modified"}, nil
	case filter.OrderSummary:
		return []string{"e.summary COLLATE NOCASE"}, nil
	case filter.OrderPriority:
		// Priority 0 means undefined and sorts after 1..9.
		return []string{"(e.priority = 0)", "e.priority"}, nil
	case filter.OrderPercent:
		return []string{"e.percent"}, nil
	case filter.OrderCollection:
		return []string{"c.name COLLATE NOCASE"}, nil
	case filter.OrderAccount:
		return []string{"c.account_name COLLATE NOCASE"}, nil
	case filter.OrderStatus:
		return rankCase("e.status", statusNames(m))
	case filter.OrderClassification:
		return rankCase("e.classification", classificationNames())
	}
	return []string{"e.created"}, nil
}

// rankCase orders an enum column by declaration order rather than by its
// textual value. The names are bound, not interpolated.
func rankCase(column string, names []string) ([]string, []any) {
	var b strings.Builder
	b.WriteString("CASE " + column)
	args := make([]any, 0, len(names))
	for i, name := range names {
		b.WriteString(" WHEN ? THEN " + strconv.Itoa(i))
		args = append(args, name)
	}
	b.WriteString(" ELSE " + strconv.Itoa(len(names)) + " END")
	return []string{b.String()}, args
}

func statusNames(m entry.Module) []string {
	statuses := entry.StatusesFor(m)
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	return names
}

func classificationNames() []string {
	classes := entry.Classifications()
	names := make([]string, len(classes))
	for i, c := range classes {
		names[i] = string(c)
	}
	return names
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
