package engine

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"tableflip.dev/jot/pkg/entry"
)

// maxGeneratedInstances caps occurrence materialization for rules without a
// COUNT or UNTIL, so an unbounded daily rule does not flood the store.
const maxGeneratedInstances = 60

// expandRule enumerates occurrence start times for a recurrence rule of the
// form "FREQ=DAILY;INTERVAL=2;COUNT=5" or with an UNTIL bound. The first
// element is always start itself. Only the frequency/interval/count/until
// subset is supported; full calendar-standard semantics stay with the sync
// server.
func expandRule(rule string, start time.Time, max int) ([]time.Time, error) {
	freq := ""
	interval := 1
	count := 0
	var until time.Time

	for _, part := range strings.Split(rule, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("engine: malformed recurrence part %q", part)
		}
		key := strings.ToUpper(kv[0])
		val := strings.TrimSpace(kv[1])
		switch key {
		case "FREQ":
			freq = strings.ToUpper(val)
		case "INTERVAL":
			n, err := strconv.Atoi(val)
			if err != nil || n < 1 {
				return nil, fmt.Errorf("engine: bad recurrence interval %q", val)
			}
			interval = n
		case "COUNT":
			n, err := strconv.Atoi(val)
			if err != nil || n < 1 {
				return nil, fmt.Errorf("engine: bad recurrence count %q", val)
			}
			count = n
		case "UNTIL":
			t, err := parseUntil(val)
			if err != nil {
				return nil, err
			}
			until = t
		default:
			// BYDAY and friends are preserved in the rule text for the
			// sync server but ignored for local materialization.
		}
	}

	var step func(time.Time, int) time.Time
	switch freq {
	case "DAILY":
		step = func(t time.Time, n int) time.Time { return t.AddDate(0, 0, n) }
	case "WEEKLY":
		step = func(t time.Time, n int) time.Time { return t.AddDate(0, 0, 7*n) }
	case "MONTHLY":
		step = func(t time.Time, n int) time.Time { return t.AddDate(0, n, 0) }
	case "YEARLY":
		step = func(t time.Time, n int) time.Time { return t.AddDate(n, 0, 0) }
	default:
		return nil, fmt.Errorf("engine: unsupported recurrence frequency %q", freq)
	}

	limit := max
	if count > 0 && count < limit {
		limit = count
	}

	var out []time.Time
	for i := 0; i < limit; i++ {
		occ := step(start, i*interval)
		if !until.IsZero() && occ.After(until) {
			break
		}
		out = append(out, occ)
	}
	return out, nil
}

func parseUntil(val string) (time.Time, error) {
	for _, layout := range []string{"20060102T150405Z", "20060102"} {
		if t, err := time.Parse(layout, val); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("engine: bad recurrence until %q", val)
}

// regenerateInstances rebuilds the materialized occurrence rows of a series
// after the series definition changes. Generated rows that were never edited
// are replaced; exception instances are preserved.
func (g *Engine) regenerateInstances(series *entry.Entry) error {
	instances, err := g.st.InstancesByUID(series.UID)
	if err != nil {
		return err
	}

	var stale []int64
	exceptions := make(map[int64]bool)
	for _, inst := range instances {
		if inst.Sequence == 0 {
			stale = append(stale, inst.ID)
		} else {
			exceptions[inst.RecurrenceID.Millis()] = true
		}
	}
	if err := g.st.DeleteRows(stale); err != nil {
		return err
	}

	anchor := series.DTStart
	if anchor == nil {
		anchor = series.Due
	}
	if anchor == nil {
		return nil // nothing to anchor occurrences on
	}

	occs, err := expandRule(series.RecurrenceRule, anchor.Time, maxGeneratedInstances)
	if err != nil {
		return fmt.Errorf("engine: expand series %d: %w", series.ID, err)
	}

	var dueDelta time.Duration
	if series.DTStart != nil && series.Due != nil {
		dueDelta = series.Due.Time.Sub(series.DTStart.Time)
	}

	for _, occ := range occs {
		if occ.Equal(anchor.Time) {
			continue // the series row itself stands in for the first occurrence
		}
		if exceptions[occ.UnixMilli()] {
			continue
		}

		inst := *series
		inst.ID = 0
		inst.RecurrenceRule = ""
		rid := entry.Timestamp{Time: occ}
		inst.RecurrenceID = &rid
		if series.DTStart != nil {
			start := entry.Timestamp{Time: occ}
			inst.DTStart = &start
			if series.Due != nil {
				due := entry.Timestamp{Time: occ.Add(dueDelta)}
				inst.Due = &due
			}
		} else {
			due := entry.Timestamp{Time: occ}
			inst.Due = &due
		}
		inst.Sequence = 0
		inst.Dirty = false
		inst.UploadPending = false

		if err := g.st.Insert(&inst); err != nil {
			return err
		}
		if err := g.st.Link(series.ID, inst.ID, entry.RelChild, series.UID); err != nil {
			return err
		}
	}
	return nil
}
