package query

import (
	"strconv"

	"tableflip.dev/jot/pkg/filter"
)

const noneLabel = "None"

// Partition splits ordered rows into a list of labeled groups. Rows keep
// their order inside each group, and group order follows the natural order
// of the grouping key: because SetGroupBy forces the primary sort to the
// grouping column, first appearance order is the key's natural order
// (status declaration order, ascending date, collation order).
func Partition(rows []Row, by filter.GroupKey) []Group {
	var groups []Group
	index := make(map[string]int)

	for _, r := range rows {
		label := groupLabel(r, by)
		i, ok := index[label]
		if !ok {
			i = len(groups)
			index[label] = i
			groups = append(groups, Group{Label: label})
		}
		groups[i].Rows = append(groups[i].Rows, r)
	}
	return groups
}

func groupLabel(r Row, by filter.GroupKey) string {
	switch by {
	case filter.GroupStatus:
		if r.Status == "" {
			return noneLabel
		}
		return string(r.Status)
	case filter.GroupClassification:
		if r.Classification == "" {
			return noneLabel
		}
		return string(r.Classification)
	case filter.GroupPriority:
		if r.Priority == 0 {
			return "No priority"
		}
		return "Priority " + strconv.Itoa(r.Priority)
	case filter.GroupStart:
		if r.DTStart == nil {
			return noneLabel
		}
		return r.DTStart.Local().Format("2006-01-02")
	case filter.GroupDue:
		if r.Due == nil {
			return noneLabel
		}
		return r.Due.Local().Format("2006-01-02")
	case filter.GroupCollection:
		return r.Collection
	case filter.GroupAccount:
		return r.Account
	}
	return noneLabel
}
