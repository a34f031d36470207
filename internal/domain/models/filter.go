package models

import "time"

// SourceSelector narrows the visible view to one feed.
type SourceSelector string

const (
	SourceAll        SourceSelector = "all"
	SourceRaw        SourceSelector = "raw"
	SourceExecutions SourceSelector = "executions"
)

// StatusFilter is the UI-level status selector, mapped per feed.
type StatusFilter string

const (
	FilterStatusAll     StatusFilter = "all"
	FilterStatusSuccess StatusFilter = "success"
	FilterStatusFailed  StatusFilter = "failed"
	FilterStatusPending StatusFilter = "pending"
)

// DateRange is an inclusive interval over signal timestamps. A nil
// boundary is open. To is treated as end-of-day.
type DateRange struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}

// FilterCriteria is a pure value object; replaced wholesale on each
// filter interaction, never mutated in place.
type FilterCriteria struct {
	SearchText  string         `json:"searchText,omitempty"`
	Source      SourceSelector `json:"source,omitempty"`
	Status      StatusFilter   `json:"status,omitempty"`
	Dates       DateRange      `json:"dates,omitempty"`
	OwnerUserID string         `json:"ownerUserId,omitempty"`
}

// IsZero reports whether every predicate is at its match-all default.
func (c FilterCriteria) IsZero() bool {
	return c.SearchText == "" &&
		(c.Source == "" || c.Source == SourceAll) &&
		(c.Status == "" || c.Status == FilterStatusAll) &&
		c.Dates.From == nil && c.Dates.To == nil &&
		c.OwnerUserID == ""
}

// FilteredView is the visible subset of both cached feeds after the
// merge/filter pipeline has run.
type FilteredView struct {
	Raw        []RawSignal       `json:"raw"`
	Executions []ExecutionSignal `json:"executions"`
}
