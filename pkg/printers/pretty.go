// Package printers renders query results for the terminal.
package printers

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"

	"tableflip.dev/jot/pkg/entry"
	"tableflip.dev/jot/pkg/query"
)

const (
	escape    = "\x1b"
	resetCode = 0
	boldCode  = 1
	underCode = 4
)

func Bold(in string) string {
	return fmt.Sprintf("%s[%dm%s%s[%dm", escape, boldCode, in, escape, resetCode)
}

func Underline(in string) string {
	return fmt.Sprintf("%s[%dm%s%s[%dm", escape, underCode, in, escape, resetCode)
}

// PrettyPrint renders ordered and grouped results.
type PrettyPrint struct {
	ShowID bool
}

// Title prints a section heading.
func (pp PrettyPrint) Title(title string) {
	fmt.Println(Underline(Bold(title)))
}

// Result prints a compiled result, one table per group when grouped.
func (pp PrettyPrint) Result(res *query.Result) {
	if res == nil || len(res.Rows) == 0 {
		fmt.Println("  (empty)")
		return
	}
	if res.Groups == nil {
		pp.rows(res.Rows)
		return
	}
	for _, g := range res.Groups {
		pp.Title(g.Label)
		pp.rows(g.Rows)
		fmt.Println("")
	}
}

func (pp PrettyPrint) rows(rows []query.Row) {
	tbl := uitable.New()
	tbl.Separator = "  "
	for _, r := range rows {
		cells := []interface{}{symbol(r), r.Summary, dateCell(r)}
		if pp.ShowID {
			cells = append(cells, fmt.Sprintf("(%d)", r.ID))
		}
		tbl.AddRow(cells...)
	}
	_, _ = fmt.Fprintln(color.Output, tbl)
}

// symbol picks the bullet for a row: tasks show completion, recurring rows
// show the repeat mark.
func symbol(r query.Row) string {
	switch {
	case r.Module == entry.ModuleTodo && r.Status == entry.StatusCompleted:
		return "✘"
	case r.Module == entry.ModuleTodo:
		return "●"
	case r.Module == entry.ModuleNote:
		return "⁃"
	case r.Recurring:
		return "↻"
	default:
		return "○"
	}
}

func dateCell(r query.Row) string {
	return dateCellAt(r, time.Now())
}

func dateCellAt(r query.Row, now time.Time) string {
	switch {
	case r.Due != nil:
		if r.Due.SameDay(now) {
			return "due today"
		}
		return "due " + r.Due.Local().Format("2006-01-02")
	case r.DTStart != nil:
		if r.DTStart.SameDay(now) {
			return "today"
		}
		return r.DTStart.Local().Format("2006-01-02")
	}
	return ""
}
