// Package filter defines the per-view specification of active filter, sort,
// and group criteria. A Spec is an explicit value passed into the query
// compiler; views never share ambient filter state.
package filter

import (
	"strings"

	"tableflip.dev/jot/pkg/entry"
)

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// ParseDirection maps raw text to a direction, defaulting to ascending.
func ParseDirection(raw string) Direction {
	if strings.EqualFold(strings.TrimSpace(raw), string(Desc)) {
		return Desc
	}
	return Asc
}

// OrderKey names a sortable column.
type OrderKey string

const (
	OrderStart          OrderKey = "DTSTART"
	OrderDue            OrderKey = "DUE"
	OrderCompleted      OrderKey = "COMPLETED"
	OrderCreated        OrderKey = "CREATED"
	OrderModified       OrderKey = "LAST_MODIFIED"
	OrderSummary        OrderKey = "SUMMARY"
	OrderPriority       OrderKey = "PRIORITY"
	OrderStatus         OrderKey = "STATUS"
	OrderClassification OrderKey = "CLASSIFICATION"
	OrderPercent        OrderKey = "PERCENT"
	OrderCollection     OrderKey = "COLLECTION"
	OrderAccount        OrderKey = "ACCOUNT"
)

// orderKeysByModule is the static table of order keys each module supports.
// Looked up once per compile instead of scattering per-call conditionals.
var orderKeysByModule = map[entry.Module][]OrderKey{
	entry.ModuleJournal: {
		OrderStart, OrderCreated, OrderModified, OrderSummary,
		OrderStatus, OrderClassification, OrderCollection, OrderAccount,
	},
	entry.ModuleNote: {
		OrderCreated, OrderModified, OrderSummary,
		OrderStatus, OrderClassification, OrderCollection, OrderAccount,
	},
	entry.ModuleTodo: {
		OrderStart, OrderDue, OrderCompleted, OrderCreated, OrderModified,
		OrderSummary, OrderPriority, OrderStatus, OrderClassification,
		OrderPercent, OrderCollection, OrderAccount,
	},
}

// OrderKeysFor returns the order keys valid for a module.
func OrderKeysFor(m entry.Module) []OrderKey {
	return orderKeysByModule[m]
}

// AllowedOrderKey reports whether k is valid for module m.
func AllowedOrderKey(m entry.Module, k OrderKey) bool {
	for _, candidate := range orderKeysByModule[m] {
		if candidate == k {
			return true
		}
	}
	return false
}

// DefaultOrderKey returns the factory ordering for a module: journals by
// start date descending, notes by creation descending, tasks by due date
// ascending.
func DefaultOrderKey(m entry.Module) (OrderKey, Direction) {
	switch m {
	case entry.ModuleJournal:
		return OrderStart, Desc
	case entry.ModuleTodo:
		return OrderDue, Asc
	default:
		return OrderCreated, Desc
	}
}

// ParseOrderKey maps raw persisted text to an order key valid for the
// module, falling back to the module default for unknown names.
func ParseOrderKey(m entry.Module, raw string) OrderKey {
	k := OrderKey(strings.ToUpper(strings.TrimSpace(raw)))
	if AllowedOrderKey(m, k) {
		return k
	}
	key, _ := DefaultOrderKey(m)
	return key
}

// GroupKey names a grouping dimension. The zero value means no grouping.
type GroupKey string

const (
	GroupNone           GroupKey = ""
	GroupStatus         GroupKey = "STATUS"
	GroupClassification GroupKey = "CLASSIFICATION"
	GroupPriority       GroupKey = "PRIORITY"
	GroupStart          GroupKey = "DTSTART"
	GroupDue            GroupKey = "DUE"
	GroupCollection     GroupKey = "COLLECTION"
	GroupAccount        GroupKey = "ACCOUNT"
)

// groupKeysByModule mirrors orderKeysByModule for grouping dimensions.
var groupKeysByModule = map[entry.Module][]GroupKey{
	entry.ModuleJournal: {GroupStatus, GroupClassification, GroupStart, GroupCollection, GroupAccount},
	entry.ModuleNote:    {GroupStatus, GroupClassification, GroupCollection, GroupAccount},
	entry.ModuleTodo:    {GroupStatus, GroupClassification, GroupPriority, GroupStart, GroupDue, GroupCollection, GroupAccount},
}

// GroupKeysFor returns the group keys valid for a module.
func GroupKeysFor(m entry.Module) []GroupKey {
	return groupKeysByModule[m]
}

// AllowedGroupKey reports whether g is valid for module m.
func AllowedGroupKey(m entry.Module, g GroupKey) bool {
	if g == GroupNone {
		return true
	}
	for _, candidate := range groupKeysByModule[m] {
		if candidate == g {
			return true
		}
	}
	return false
}

// OrderKey returns the sort column that matches the grouping dimension.
func (g GroupKey) OrderKey() OrderKey {
	switch g {
	case GroupStatus:
		return OrderStatus
	case GroupClassification:
		return OrderClassification
	case GroupPriority:
		return OrderPriority
	case GroupStart:
		return OrderStart
	case GroupDue:
		return OrderDue
	case GroupCollection:
		return OrderCollection
	case GroupAccount:
		return OrderAccount
	}
	return ""
}

// Spec holds every active criterion for one view of one module. Empty sets
// and false toggles contribute nothing to the compiled query; absence of a
// filter never narrows results.
type Spec struct {
	Module entry.Module

	Categories      []string
	Accounts        []string
	CollectionIDs   []int64
	Statuses        []entry.Status
	Classifications []entry.Classification

	Overdue          bool
	DueToday         bool
	DueTomorrow      bool
	DueWithin7Days   bool
	DueFuture        bool
	StartInPast      bool
	StartToday       bool
	StartTomorrow    bool
	StartWithin7Days bool
	StartFuture      bool
	NoDatesSet       bool

	SearchText string

	// FlatView renders without hierarchy nesting. It does not affect the
	// compiled predicate, only presentation.
	FlatView bool

	// CollapseRecurring keeps a single representative occurrence per
	// recurring series: the earliest future one, or the latest past one
	// when no future occurrence remains.
	CollapseRecurring bool

	OrderBy    OrderKey
	SortOrder  Direction
	OrderBy2   OrderKey
	SortOrder2 Direction

	GroupBy GroupKey
}

// New builds the default spec for a module: nothing filtered, module
// default ordering, no grouping.
func New(m entry.Module) Spec {
	key, dir := DefaultOrderKey(m)
	return Spec{
		Module:     m,
		OrderBy:    key,
		SortOrder:  dir,
		OrderBy2:   OrderCreated,
		SortOrder2: Desc,
	}
}

// SetGroupBy sets the grouping dimension and forces the primary order to the
// matching column. The coupling is a deliberate usability rule: grouped
// output is only coherent when rows arrive sorted by the grouping key.
func (s *Spec) SetGroupBy(g GroupKey) {
	if !AllowedGroupKey(s.Module, g) {
		g = GroupNone
	}
	s.GroupBy = g
	if g == GroupNone {
		return
	}
	if key := g.OrderKey(); key != "" && AllowedOrderKey(s.Module, key) {
		s.OrderBy = key
	}
}

// HasDateFilter reports whether any quick date toggle is active.
func (s Spec) HasDateFilter() bool {
	return s.Overdue || s.DueToday || s.DueTomorrow || s.DueWithin7Days ||
		s.DueFuture || s.StartInPast || s.StartToday || s.StartTomorrow ||
		s.StartWithin7Days || s.StartFuture || s.NoDatesSet
}
