package pipeline

import (
	"testing"
	"time"

	"TradeDash/internal/domain/models"
)

func ts(day, hour int) time.Time {
	return time.Date(2026, 3, day, hour, 0, 0, 0, time.UTC)
}

func sampleRaw() []models.RawSignal {
	return []models.RawSignal{
		{ID: "r1", Instrument: "EURUSD", Action: models.ActionEnterLong, Status: models.StatusSuccess, Timestamp: ts(10, 9)},
		{ID: "r2", Instrument: "GBPUSD", Action: models.ActionExitLong, Status: models.StatusFailed, Timestamp: ts(11, 12)},
		{ID: "r3", Instrument: "EURUSD", Action: models.ActionEnterShort, Status: models.StatusPending, Timestamp: ts(12, 15)},
	}
}

func sampleExecs() []models.ExecutionSignal {
	return []models.ExecutionSignal{
		{ID: "e1", SignalID: "r1", Instrument: "EURUSD", Action: models.ActionEnterLong, Status: "filled", Timestamp: ts(10, 10),
			Outcomes: []models.AccountOutcome{{OwnerUserID: "u1", AccountID: "a1", Success: true}}},
		{ID: "e2", SignalID: "r2", Instrument: "GBPUSD", Action: models.ActionExitLong, Status: "rejected", Timestamp: ts(11, 13),
			Outcomes: []models.AccountOutcome{
				{OwnerUserID: "u1", AccountID: "a1", Success: true},
				{OwnerUserID: "u2", AccountID: "a2", Success: false, ErrorMessage: "margin"},
			}},
		{ID: "e3", SignalID: "r3", Instrument: "EURUSD", Action: models.ActionEnterShort, Status: "Pending broker ack", Timestamp: ts(12, 16)},
	}
}

func TestEmptyCriteriaPassesEverything(t *testing.T) {
	v := Apply(sampleRaw(), sampleExecs(), models.FilterCriteria{})
	if len(v.Raw) != 3 || len(v.Executions) != 3 {
		t.Fatalf("expected full view, got %d raw %d execs", len(v.Raw), len(v.Executions))
	}
}

func TestApplyIsPure(t *testing.T) {
	raw, execs := sampleRaw(), sampleExecs()
	c := models.FilterCriteria{SearchText: "eurusd"}
	a := Apply(raw, execs, c)
	b := Apply(raw, execs, c)
	if len(a.Raw) != len(b.Raw) || len(a.Executions) != len(b.Executions) {
		t.Fatalf("repeated apply diverged")
	}
	if len(raw) != 3 || len(execs) != 3 {
		t.Fatalf("apply must not mutate its input")
	}
}

func TestSourceSelector(t *testing.T) {
	v := Apply(sampleRaw(), sampleExecs(), models.FilterCriteria{Source: models.SourceRaw})
	if len(v.Raw) != 3 || len(v.Executions) != 0 {
		t.Fatalf("raw selector: got %d raw %d execs", len(v.Raw), len(v.Executions))
	}

	v = Apply(sampleRaw(), sampleExecs(), models.FilterCriteria{Source: models.SourceExecutions})
	if len(v.Raw) != 0 || len(v.Executions) != 3 {
		t.Fatalf("executions selector: got %d raw %d execs", len(v.Raw), len(v.Executions))
	}
}

func TestSearchIsCaseInsensitiveSubstring(t *testing.T) {
	v := Apply(sampleRaw(), sampleExecs(), models.FilterCriteria{SearchText: "GBP"})
	if len(v.Raw) != 1 || v.Raw[0].ID != "r2" {
		t.Fatalf("expected r2, got %v", v.Raw)
	}
	if len(v.Executions) != 1 || v.Executions[0].ID != "e2" {
		t.Fatalf("expected e2, got %v", v.Executions)
	}

	// executions also match on the originating signal id
	v = Apply(nil, sampleExecs(), models.FilterCriteria{SearchText: "R3"})
	if len(v.Executions) != 1 || v.Executions[0].ID != "e3" {
		t.Fatalf("expected e3 via signal id, got %v", v.Executions)
	}
}

func TestRawStatusIsLiteral(t *testing.T) {
	v := Apply(sampleRaw(), nil, models.FilterCriteria{Status: models.FilterStatusFailed})
	if len(v.Raw) != 1 || v.Raw[0].ID != "r2" {
		t.Fatalf("expected r2, got %v", v.Raw)
	}
}

// The execution success/failure view is derived from per-account
// outcomes; one failed account marks the whole execution failed even
// when other accounts succeeded.
func TestExecStatusIsDerivedFromOutcomes(t *testing.T) {
	execs := sampleExecs()

	v := Apply(nil, execs, models.FilterCriteria{Status: models.FilterStatusSuccess})
	if len(v.Executions) != 1 || v.Executions[0].ID != "e1" {
		t.Fatalf("success: expected e1 only, got %v", v.Executions)
	}

	v = Apply(nil, execs, models.FilterCriteria{Status: models.FilterStatusFailed})
	if len(v.Executions) != 1 || v.Executions[0].ID != "e2" {
		t.Fatalf("failed: expected e2, got %v", v.Executions)
	}

	v = Apply(nil, execs, models.FilterCriteria{Status: models.FilterStatusPending})
	if len(v.Executions) != 1 || v.Executions[0].ID != "e3" {
		t.Fatalf("pending: expected e3 via status text, got %v", v.Executions)
	}
}

func TestNoOutcomesIsNeitherSuccessNorFailed(t *testing.T) {
	execs := []models.ExecutionSignal{{ID: "e", Status: "queued", Timestamp: ts(10, 0)}}
	if v := Apply(nil, execs, models.FilterCriteria{Status: models.FilterStatusSuccess}); len(v.Executions) != 0 {
		t.Fatalf("no outcomes must not count as success")
	}
	if v := Apply(nil, execs, models.FilterCriteria{Status: models.FilterStatusFailed}); len(v.Executions) != 0 {
		t.Fatalf("no outcomes must not count as failed")
	}
}

func TestDateRangeToIsEndOfDay(t *testing.T) {
	from := ts(10, 0)
	to := ts(11, 0) // To day is March 11

	c := models.FilterCriteria{Dates: models.DateRange{From: &from, To: &to}}

	// to-evening is the last second of the To day; next-day is the
	// midnight right after it.
	raw := []models.RawSignal{
		{ID: "start", Timestamp: ts(10, 0)},
		{ID: "to-midnight", Timestamp: ts(11, 0)},
		{ID: "to-evening", Timestamp: time.Date(2026, 3, 11, 23, 59, 59, 0, time.UTC)},
		{ID: "next-day", Timestamp: ts(12, 0)},
		{ID: "before", Timestamp: ts(9, 23)},
	}

	v := Apply(raw, nil, c)
	got := map[string]bool{}
	for _, s := range v.Raw {
		got[s.ID] = true
	}
	for _, want := range []string{"start", "to-midnight", "to-evening"} {
		if !got[want] {
			t.Fatalf("expected %s inside range, got %v", want, got)
		}
	}
	for _, reject := range []string{"next-day", "before"} {
		if got[reject] {
			t.Fatalf("expected %s outside range, got %v", reject, got)
		}
	}
}

func TestOwnerFilterAppliesToExecutionsOnly(t *testing.T) {
	v := Apply(sampleRaw(), sampleExecs(), models.FilterCriteria{OwnerUserID: "u2"})
	if len(v.Raw) != 3 {
		t.Fatalf("owner filter must not narrow the raw feed, got %d", len(v.Raw))
	}
	if len(v.Executions) != 1 || v.Executions[0].ID != "e2" {
		t.Fatalf("expected only e2 for u2, got %v", v.Executions)
	}
}

func TestPredicatesComposeWithAND(t *testing.T) {
	from := ts(11, 0)
	c := models.FilterCriteria{
		SearchText: "eurusd",
		Status:     models.FilterStatusPending,
		Dates:      models.DateRange{From: &from},
	}
	v := Apply(sampleRaw(), sampleExecs(), c)
	if len(v.Raw) != 1 || v.Raw[0].ID != "r3" {
		t.Fatalf("expected r3 only, got %v", v.Raw)
	}
	if len(v.Executions) != 1 || v.Executions[0].ID != "e3" {
		t.Fatalf("expected e3 only, got %v", v.Executions)
	}
}

func TestViewSlicesNeverNil(t *testing.T) {
	v := Apply(nil, nil, models.FilterCriteria{})
	if v.Raw == nil || v.Executions == nil {
		t.Fatalf("view slices must not be nil")
	}
}
