package filter

import (
	"strconv"
	"strings"

	"tableflip.dev/jot/pkg/entry"
)

// Flat key/value persistence for specs. One record per module/view; enum
// values are serialized by name and multi-select sets as delimited string
// sets. Unknown or obsolete names decode to the documented defaults instead
// of failing, so a spec saved by a newer build still loads.

const setSep = "\x1f" // unit separator; never appears in user text

const (
	keyCategories      = "categories"
	keyAccounts        = "accounts"
	keyCollections     = "collections"
	keyStatuses        = "status"
	keyClassifications = "classification"
	keyOverdue         = "overdue"
	keyDueToday        = "dueToday"
	keyDueTomorrow     = "dueTomorrow"
	keyDueWithin7      = "dueWithin7Days"
	keyDueFuture       = "dueFuture"
	keyStartPast       = "startInPast"
	keyStartToday      = "startToday"
	keyStartTomorrow   = "startTomorrow"
	keyStartWithin7    = "startWithin7Days"
	keyStartFuture     = "startFuture"
	keyNoDates         = "noDatesSet"
	keySearch          = "search"
	keyFlat            = "flatView"
	keyCollapse        = "oneRecurringFuture"
	keyOrderBy         = "orderBy"
	keySortOrder       = "sortOrder"
	keyOrderBy2        = "orderBy2"
	keySortOrder2      = "sortOrder2"
	keyGroupBy         = "groupBy"
)

// Encode flattens the spec to a key/value map. Only non-default values are
// written.
func (s Spec) Encode() map[string]string {
	kv := make(map[string]string)

	putSet := func(key string, values []string) {
		if len(values) > 0 {
			kv[key] = strings.Join(values, setSep)
		}
	}
	putBool := func(key string, v bool) {
		if v {
			kv[key] = "true"
		}
	}

	putSet(keyCategories, s.Categories)
	putSet(keyAccounts, s.Accounts)
	if len(s.CollectionIDs) > 0 {
		ids := make([]string, len(s.CollectionIDs))
		for i, id := range s.CollectionIDs {
			ids[i] = strconv.FormatInt(id, 10)
		}
		kv[keyCollections] = strings.Join(ids, setSep)
	}
	if len(s.Statuses) > 0 {
		names := make([]string, len(s.Statuses))
		for i, st := range s.Statuses {
			names[i] = string(st)
		}
		kv[keyStatuses] = strings.Join(names, setSep)
	}
	if len(s.Classifications) > 0 {
		names := make([]string, len(s.Classifications))
		for i, c := range s.Classifications {
			names[i] = string(c)
		}
		kv[keyClassifications] = strings.Join(names, setSep)
	}

	putBool(keyOverdue, s.Overdue)
	putBool(keyDueToday, s.DueToday)
	putBool(keyDueTomorrow, s.DueTomorrow)
	putBool(keyDueWithin7, s.DueWithin7Days)
	putBool(keyDueFuture, s.DueFuture)
	putBool(keyStartPast, s.StartInPast)
	putBool(keyStartToday, s.StartToday)
	putBool(keyStartTomorrow, s.StartTomorrow)
	putBool(keyStartWithin7, s.StartWithin7Days)
	putBool(keyStartFuture, s.StartFuture)
	putBool(keyNoDates, s.NoDatesSet)
	putBool(keyFlat, s.FlatView)
	putBool(keyCollapse, s.CollapseRecurring)

	if s.SearchText != "" {
		kv[keySearch] = s.SearchText
	}
	kv[keyOrderBy] = string(s.OrderBy)
	kv[keySortOrder] = string(s.SortOrder)
	if s.OrderBy2 != "" {
		kv[keyOrderBy2] = string(s.OrderBy2)
		kv[keySortOrder2] = string(s.SortOrder2)
	}
	if s.GroupBy != GroupNone {
		kv[keyGroupBy] = string(s.GroupBy)
	}
	return kv
}

// Decode rebuilds a spec for module m from a flat key/value map. Missing
// keys keep defaults; unrecognized enum names fall back to defaults.
func Decode(m entry.Module, kv map[string]string) Spec {
	s := New(m)

	split := func(key string) []string {
		raw, ok := kv[key]
		if !ok || raw == "" {
			return nil
		}
		return strings.Split(raw, setSep)
	}
	boolAt := func(key string) bool {
		return kv[key] == "true"
	}

	s.Categories = split(keyCategories)
	s.Accounts = split(keyAccounts)
	for _, raw := range split(keyCollections) {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			s.CollectionIDs = append(s.CollectionIDs, id)
		}
	}
	for _, raw := range split(keyStatuses) {
		s.Statuses = append(s.Statuses, entry.ParseStatus(m, raw))
	}
	for _, raw := range split(keyClassifications) {
		s.Classifications = append(s.Classifications, entry.ParseClassification(raw))
	}

	s.Overdue = boolAt(keyOverdue)
	s.DueToday = boolAt(keyDueToday)
	s.DueTomorrow = boolAt(keyDueTomorrow)
	s.DueWithin7Days = boolAt(keyDueWithin7)
	s.DueFuture = boolAt(keyDueFuture)
	s.StartInPast = boolAt(keyStartPast)
	s.StartToday = boolAt(keyStartToday)
	s.StartTomorrow = boolAt(keyStartTomorrow)
	s.StartWithin7Days = boolAt(keyStartWithin7)
	s.StartFuture = boolAt(keyStartFuture)
	s.NoDatesSet = boolAt(keyNoDates)
	s.FlatView = boolAt(keyFlat)
	s.CollapseRecurring = boolAt(keyCollapse)

	s.SearchText = kv[keySearch]

	if raw, ok := kv[keyOrderBy]; ok {
		s.OrderBy = ParseOrderKey(m, raw)
	}
	if raw, ok := kv[keySortOrder]; ok {
		s.SortOrder = ParseDirection(raw)
	}
	if raw, ok := kv[keyOrderBy2]; ok {
		s.OrderBy2 = ParseOrderKey(m, raw)
	}
	if raw, ok := kv[keySortOrder2]; ok {
		s.SortOrder2 = ParseDirection(raw)
	}
	if raw, ok := kv[keyGroupBy]; ok {
		g := GroupKey(strings.ToUpper(strings.TrimSpace(raw)))
		if !AllowedGroupKey(m, g) {
			g = GroupNone
		}
		s.SetGroupBy(g)
	}
	return s
}
