package query

import "time"

// Collapse keeps a single representative row per recurring series: the
// earliest occurrence starting at or after now, or the most recent past
// occurrence when none remains. Non-recurring rows pass through untouched,
// and surviving rows keep their compiled order.
//
// This runs in memory because it needs a per-uid arg-min over the already
// filtered set, which no per-row predicate can express.
func Collapse(rows []Row, now time.Time) []Row {
	type pick struct {
		idx    int
		when   time.Time
		future bool
	}
	best := make(map[string]pick)

	rowStart := func(r Row) (time.Time, bool) {
		switch {
		case r.DTStart != nil:
			return r.DTStart.Time, true
		case r.Due != nil:
			return r.Due.Time, true
		}
		return time.Time{}, false
	}

	for i, r := range rows {
		if !r.Recurring {
			continue
		}
		when, ok := rowStart(r)
		if !ok {
			when = time.Time{}
		}
		future := !when.Before(now)

		cur, seen := best[r.UID]
		keep := false
		switch {
		case !seen:
			keep = true
		case future && !cur.future:
			keep = true
		case future && cur.future && when.Before(cur.when):
			keep = true
		case !future && !cur.future && when.After(cur.when):
			keep = true
		}
		if keep {
			best[r.UID] = pick{idx: i, when: when, future: future}
		}
	}

	out := make([]Row, 0, len(rows))
	for i, r := range rows {
		if !r.Recurring {
			out = append(out, r)
			continue
		}
		if best[r.UID].idx == i {
			out = append(out, r)
		}
	}
	return out
}
