package pipeline

import (
	"strings"
	"time"

	"TradeDash/internal/domain/models"
)

// Apply filters both cached feeds against the same criteria and returns
// the visible subset. Pure and synchronous: same snapshot plus same
// criteria always yields the same view.
func Apply(raw []models.RawSignal, execs []models.ExecutionSignal, c models.FilterCriteria) models.FilteredView {
	view := models.FilteredView{
		Raw:        []models.RawSignal{},
		Executions: []models.ExecutionSignal{},
	}

	if c.Source != models.SourceExecutions {
		for _, s := range raw {
			if rawMatches(&s, c) {
				view.Raw = append(view.Raw, s)
			}
		}
	}
	if c.Source != models.SourceRaw {
		for _, e := range execs {
			if execMatches(&e, c) {
				view.Executions = append(view.Executions, e)
			}
		}
	}
	return view
}

func rawMatches(s *models.RawSignal, c models.FilterCriteria) bool {
	if !matchesSearch(c.SearchText, s.ID, s.Instrument, string(s.Action)) {
		return false
	}
	if !rawStatusMatches(s, c.Status) {
		return false
	}
	return inDateRange(s.Timestamp, c.Dates)
}

func execMatches(e *models.ExecutionSignal, c models.FilterCriteria) bool {
	if !matchesSearch(c.SearchText, e.ID, e.Instrument, string(e.Action), e.SignalID) {
		return false
	}
	if !execStatusMatches(e, c.Status) {
		return false
	}
	if !inDateRange(e.Timestamp, c.Dates) {
		return false
	}
	if c.OwnerUserID != "" && !e.OwnedBy(c.OwnerUserID) {
		return false
	}
	return true
}

// matchesSearch is a case-insensitive substring match over the
// feed-specific field set; empty search matches everything.
func matchesSearch(search string, fields ...string) bool {
	if search == "" {
		return true
	}
	needle := strings.ToLower(search)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

func rawStatusMatches(s *models.RawSignal, f models.StatusFilter) bool {
	switch f {
	case models.FilterStatusSuccess:
		return s.Status == models.StatusSuccess
	case models.FilterStatusFailed:
		return s.Status == models.StatusFailed
	case models.FilterStatusPending:
		return s.Status == models.StatusPending
	default:
		return true
	}
}

func execStatusMatches(e *models.ExecutionSignal, f models.StatusFilter) bool {
	switch f {
	case models.FilterStatusSuccess:
		return e.Succeeded()
	case models.FilterStatusFailed:
		return e.Failed()
	case models.FilterStatusPending:
		return e.Pending()
	default:
		return true
	}
}

// inDateRange checks the inclusive interval. An open boundary always
// matches. To is end-of-day: add one day and compare with <, so a
// record stamped exactly at the To midnight is included and the next
// day is not.
func inDateRange(ts time.Time, r models.DateRange) bool {
	if r.From != nil && ts.Before(*r.From) {
		return false
	}
	if r.To != nil {
		end := r.To.AddDate(0, 0, 1)
		if !ts.Before(end) {
			return false
		}
	}
	return true
}
