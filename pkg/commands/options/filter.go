package options

import (
	"strings"

	"github.com/spf13/cobra"

	"tableflip.dev/jot/pkg/entry"
	"tableflip.dev/jot/pkg/filter"
)

// FilterOptions collects the flags that shape one query. Spec turns them into
// a filter spec for the chosen module.
type FilterOptions struct {
	Categories      []string
	Accounts        []string
	Statuses        []string
	Classifications []string

	Overdue  bool
	Today    bool
	Tomorrow bool
	Week     bool
	Future   bool
	Started  bool
	NoDates  bool

	Search string

	OrderBy  string
	Order    string
	GroupBy  string
	Flat     bool
	Collapse bool
}

func AddFilterArgs(cmd *cobra.Command, fo *FilterOptions) {
	cmd.Flags().StringSliceVar(&fo.Categories, "category", nil,
		"Only entries carrying this category. Repeatable.")
	cmd.Flags().StringSliceVar(&fo.Accounts, "account", nil,
		"Only entries from this account. Repeatable.")
	cmd.Flags().StringSliceVar(&fo.Statuses, "status", nil,
		"Only entries with this status. Repeatable.")
	cmd.Flags().StringSliceVar(&fo.Classifications, "class", nil,
		"Only entries with this classification. Repeatable.")

	cmd.Flags().BoolVar(&fo.Overdue, "overdue", false, "Only overdue tasks.")
	cmd.Flags().BoolVar(&fo.Today, "today", false, "Only entries due today.")
	cmd.Flags().BoolVar(&fo.Tomorrow, "tomorrow", false, "Only entries due tomorrow.")
	cmd.Flags().BoolVar(&fo.Week, "week", false, "Only entries due within 7 days.")
	cmd.Flags().BoolVar(&fo.Future, "future", false, "Only entries due further out.")
	cmd.Flags().BoolVar(&fo.Started, "started", false, "Only entries already started.")
	cmd.Flags().BoolVar(&fo.NoDates, "no-dates", false, "Only entries without dates.")

	cmd.Flags().StringVar(&fo.Search, "search", "", "Free text match on summary, description and categories.")

	cmd.Flags().StringVar(&fo.OrderBy, "order-by", "", "Sort column.")
	cmd.Flags().StringVar(&fo.Order, "order", "", "Sort direction, asc or desc.")
	cmd.Flags().StringVar(&fo.GroupBy, "group-by", "", "Group dimension.")
	cmd.Flags().BoolVar(&fo.Flat, "flat", false, "Flat list, no hierarchy nesting.")
	cmd.Flags().BoolVar(&fo.Collapse, "collapse", false, "One representative row per recurring series.")
}

// Spec builds the filter spec for module m from the active flags.
func (fo *FilterOptions) Spec(m entry.Module) filter.Spec {
	s := filter.New(m)

	s.Categories = cleaned(fo.Categories)
	s.Accounts = cleaned(fo.Accounts)
	for _, raw := range fo.Statuses {
		s.Statuses = append(s.Statuses, entry.ParseStatus(m, raw))
	}
	for _, raw := range fo.Classifications {
		s.Classifications = append(s.Classifications, entry.ParseClassification(raw))
	}

	s.Overdue = fo.Overdue
	s.DueToday = fo.Today
	s.DueTomorrow = fo.Tomorrow
	s.DueWithin7Days = fo.Week
	s.DueFuture = fo.Future
	s.StartInPast = fo.Started
	s.NoDatesSet = fo.NoDates

	s.SearchText = strings.TrimSpace(fo.Search)
	s.FlatView = fo.Flat
	s.CollapseRecurring = fo.Collapse

	if fo.OrderBy != "" {
		s.OrderBy = filter.ParseOrderKey(m, fo.OrderBy)
	}
	if fo.Order != "" {
		s.SortOrder = filter.ParseDirection(fo.Order)
	}
	if fo.GroupBy != "" {
		s.SetGroupBy(filter.GroupKey(strings.ToUpper(strings.TrimSpace(fo.GroupBy))))
	}
	return s
}

func cleaned(raw []string) []string {
	var out []string
	for _, v := range raw {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
