// Package entry defines the unified record model shared by journals, notes,
// and tasks.
package entry

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Module identifies which of the three record kinds an entry belongs to.
type Module string

const (
	ModuleJournal Module = "JOURNAL"
	ModuleNote    Module = "NOTE"
	ModuleTodo    Module = "TODO"
)

// Modules returns the supported modules in declaration order.
func Modules() []Module {
	return []Module{ModuleJournal, ModuleNote, ModuleTodo}
}

// ParseModule converts a string to a Module or returns an error for unknown
// values.
func ParseModule(raw string) (Module, error) {
	m := Module(strings.ToUpper(strings.TrimSpace(raw)))
	for _, candidate := range Modules() {
		if candidate == m {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("entry: unknown module %q", raw)
}

// Status is the calendar-standard status of an entry. Journals and notes use
// the draft/final family, tasks use the needs-action family.
type Status string

const (
	StatusNone        Status = ""
	StatusNeedsAction Status = "NEEDS-ACTION"
	StatusInProcess   Status = "IN-PROCESS"
	StatusCompleted   Status = "COMPLETED"
	StatusCancelled   Status = "CANCELLED"
	StatusDraft       Status = "DRAFT"
	StatusFinal       Status = "FINAL"
)

// StatusesFor returns the statuses valid for a module, in declaration order.
// The order is load-bearing: grouped results follow it.
func StatusesFor(m Module) []Status {
	if m == ModuleTodo {
		return []Status{StatusNeedsAction, StatusInProcess, StatusCompleted, StatusCancelled}
	}
	return []Status{StatusDraft, StatusFinal, StatusCancelled}
}

// ParseStatus maps raw persisted text to a status valid for the module,
// falling back to the module default for unknown or obsolete names.
func ParseStatus(m Module, raw string) Status {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	for _, candidate := range StatusesFor(m) {
		if candidate == s {
			return candidate
		}
	}
	return DefaultStatus(m)
}

// DefaultStatus returns the factory status for a module.
func DefaultStatus(m Module) Status {
	if m == ModuleTodo {
		return StatusNeedsAction
	}
	return StatusFinal
}

// Rank returns the declaration-order index of s within its module, for
// deterministic status ordering and grouping. Unknown statuses sort last.
func (s Status) Rank(m Module) int {
	for i, candidate := range StatusesFor(m) {
		if candidate == s {
			return i
		}
	}
	return len(StatusesFor(m))
}

// Classification is the calendar-standard access classification.
type Classification string

const (
	ClassPublic       Classification = "PUBLIC"
	ClassPrivate      Classification = "PRIVATE"
	ClassConfidential Classification = "CONFIDENTIAL"
)

// Classifications returns all classifications in declaration order.
func Classifications() []Classification {
	return []Classification{ClassPublic, ClassPrivate, ClassConfidential}
}

// ParseClassification maps raw text to a classification, defaulting to
// PUBLIC for unknown names.
func ParseClassification(raw string) Classification {
	c := Classification(strings.ToUpper(strings.TrimSpace(raw)))
	for _, candidate := range Classifications() {
		if candidate == c {
			return candidate
		}
	}
	return ClassPublic
}

// Rank returns the declaration-order index of c, for grouping.
func (c Classification) Rank() int {
	for i, candidate := range Classifications() {
		if candidate == c {
			return i
		}
	}
	return len(Classifications())
}

// TZAllDay marks a date field as an all-day value; the time portion is
// midnight in the producing device's zone and must not be shifted.
const TZAllDay = "ALLDAY"

// Entry is the persisted record. ID is the local storage key; UID is the
// cross-device identifier shared by a recurring series and its exception
// instances. Entries are mutated through the engine, never by presentation
// code poking fields.
type Entry struct {
	ID  int64  `json:"id"`
	UID string `json:"uid"`

	Module      Module `json:"module"`
	Summary     string `json:"summary,omitempty"`
	Description string `json:"description,omitempty"`

	DTStart     *Timestamp `json:"dtstart,omitempty"`
	DTStartTZ   string     `json:"dtstartTZ,omitempty"`
	Due         *Timestamp `json:"due,omitempty"`
	DueTZ       string     `json:"dueTZ,omitempty"`
	Completed   *Timestamp `json:"completed,omitempty"`
	CompletedTZ string     `json:"completedTZ,omitempty"`

	Status          Status         `json:"status,omitempty"`
	Classification  Classification `json:"classification,omitempty"`
	Priority        int            `json:"priority,omitempty"`
	PercentComplete int            `json:"percentComplete,omitempty"`

	// RecurrenceRule is set only on a series row. RecurrenceID is set only
	// on a materialized occurrence and holds the original occurrence start.
	RecurrenceRule string     `json:"recurrenceRule,omitempty"`
	RecurrenceID   *Timestamp `json:"recurrenceID,omitempty"`
	Sequence       int64      `json:"sequence"`

	CollectionID int64    `json:"collectionID"`
	Categories   []string `json:"categories,omitempty"`

	Dirty         bool `json:"dirty"`
	Deleted       bool `json:"deleted"`
	UploadPending bool `json:"uploadPending"`
	ReadOnly      bool `json:"readOnly"`

	Created      Timestamp `json:"created"`
	LastModified Timestamp `json:"lastModified"`
}

// New builds an entry with module-appropriate defaults. Journals start with
// a start date of now; tasks start needing action with no dates set.
func New(m Module) *Entry {
	now := Timestamp{Time: time.Now()}
	e := &Entry{
		UID:            uuid.NewString(),
		Module:         m,
		Status:         DefaultStatus(m),
		Classification: ClassPublic,
		Created:        now,
		LastModified:   now,
	}
	if m == ModuleJournal {
		start := now
		e.DTStart = &start
	}
	return e
}

// IsSeries reports whether e is the defining row of a recurring series.
func (e *Entry) IsSeries() bool {
	return e.RecurrenceRule != "" && e.RecurrenceID == nil
}

// IsInstance reports whether e is a materialized occurrence of a series.
func (e *Entry) IsInstance() bool {
	return e.RecurrenceID != nil
}

// IsUnexceptional reports whether e is a generated occurrence that has never
// been edited. Mutating such a row promotes it to an exception instance.
func (e *Entry) IsUnexceptional() bool {
	return e.IsInstance() && e.Sequence == 0
}

// AllDay reports whether the start date carries the all-day marker.
func (e *Entry) AllDay() bool {
	return e.DTStartTZ == TZAllDay
}

// StatusForPercent derives the task status implied by a percent-complete
// value. Only meaningful for the TODO module.
func StatusForPercent(p int) Status {
	switch {
	case p <= 0:
		return StatusNeedsAction
	case p >= 100:
		return StatusCompleted
	default:
		return StatusInProcess
	}
}

// ApplyProgress sets the percent and, when no explicit status accompanies
// the change, the implied status. An explicit status always wins over the
// implied one.
func (e *Entry) ApplyProgress(percent int, explicit Status) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	e.PercentComplete = percent
	if explicit != StatusNone {
		e.ApplyStatus(explicit)
		return
	}
	if e.Module == ModuleTodo {
		e.ApplyStatus(StatusForPercent(percent))
	}
}

// ApplyStatus sets the status and keeps the completion fields in agreement
// at the endpoints.
func (e *Entry) ApplyStatus(s Status) {
	e.Status = s
	if e.Module != ModuleTodo {
		return
	}
	switch s {
	case StatusCompleted:
		e.PercentComplete = 100
		if e.Completed == nil {
			now := Timestamp{Time: time.Now()}
			e.Completed = &now
		}
	case StatusNeedsAction:
		e.PercentComplete = 0
		e.Completed = nil
	}
}

// AddCategory appends a category if not already present.
func (e *Entry) AddCategory(c string) {
	c = strings.TrimSpace(c)
	if c == "" {
		return
	}
	for _, have := range e.Categories {
		if have == c {
			return
		}
	}
	e.Categories = append(e.Categories, c)
}
