package query

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"tableflip.dev/jot/pkg/entry"
	"tableflip.dev/jot/pkg/filter"
)

// Querier is the read-only database surface Run needs.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Row is a read-only projection of one entry for presentation.
type Row struct {
	ID             int64
	UID            string
	Module         entry.Module
	Summary        string
	DTStart        *entry.Timestamp
	Due            *entry.Timestamp
	Completed      *entry.Timestamp
	Status         entry.Status
	Classification entry.Classification
	Priority       int
	Percent        int
	Recurring      bool
	RecurrenceID   *entry.Timestamp
	CollectionID   int64
	Collection     string
	Account        string
	Local          bool
	ChildCount     int
	Categories     []string
}

// Group is one partition of an ordered result.
type Group struct {
	Label string
	Rows  []Row
}

// Result is an ordered, optionally grouped projection for one spec. When
// Groups is non-nil it partitions Rows without reordering them.
type Result struct {
	Spec   filter.Spec
	Rows   []Row
	Groups []Group
}

const selectColumns = `e.id, e.uid, e.module, e.summary,
	e.dtstart, e.due, e.completed,
	e.status, e.classification, e.priority, e.percent,
	e.rrule, e.recurrence_id, e.collection_id, e.categories,
	c.name, c.account_name, c.local,
	(SELECT COUNT(*) FROM relations r WHERE r.parent_id = e.id AND r.reltype = 'CHILD')`

// Run compiles and executes the spec, then applies the ordering-dependent
// post-passes: the recurrence collapse and the group partition.
func Run(ctx context.Context, q Querier, spec filter.Spec, now time.Time) (*Result, error) {
	where, args := Compile(spec, now)
	order, orderArgs := orderClause(spec)

	sqlText := "SELECT " + selectColumns +
		" FROM entries e JOIN collections c ON c.id = e.collection_id" +
		" WHERE " + where +
		" ORDER BY " + order
	args = append(args, orderArgs...)

	rows, err := q.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("query: run: %w", err)
	}
	defer rows.Close()

	res := &Result{Spec: spec}
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("query: scan row: %w", err)
		}
		res.Rows = append(res.Rows, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query: rows: %w", err)
	}

	if spec.CollapseRecurring {
		res.Rows = Collapse(res.Rows, now)
	}
	if spec.GroupBy != filter.GroupNone {
		res.Groups = Partition(res.Rows, spec.GroupBy)
	}
	return res, nil
}

func scanRow(rows *sql.Rows) (Row, error) {
	var r Row
	var module, status, class, rrule, categories string
	var dtstart, due, completed sql.NullInt64
	var recurrenceID int64

	err := rows.Scan(
		&r.ID, &r.UID, &module, &r.Summary,
		&dtstart, &due, &completed,
		&status, &class, &r.Priority, &r.Percent,
		&rrule, &recurrenceID, &r.CollectionID, &categories,
		&r.Collection, &r.Account, &r.Local,
		&r.ChildCount,
	)
	if err != nil {
		return Row{}, err
	}
	r.Module = entry.Module(module)
	r.Status = entry.Status(status)
	r.Classification = entry.Classification(class)
	if dtstart.Valid {
		t := entry.FromMillis(dtstart.Int64)
		r.DTStart = &t
	}
	if due.Valid {
		t := entry.FromMillis(due.Int64)
		r.Due = &t
	}
	if completed.Valid {
		t := entry.FromMillis(completed.Int64)
		r.Completed = &t
	}
	if recurrenceID != 0 {
		t := entry.FromMillis(recurrenceID)
		r.RecurrenceID = &t
	}
	r.Recurring = rrule != "" || r.RecurrenceID != nil
	if categories != "" {
		r.Categories = strings.Split(categories, ",")
	}
	return r, nil
}
