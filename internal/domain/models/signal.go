package models

import (
	"strings"
	"time"
)

// SignalAction is the trade instruction a signal carries.
type SignalAction string

const (
	ActionEnterLong  SignalAction = "enter-long"
	ActionExitLong   SignalAction = "exit-long"
	ActionEnterShort SignalAction = "enter-short"
	ActionExitShort  SignalAction = "exit-short"
)

// SignalStatus is the normalized processing state of a raw signal.
type SignalStatus string

const (
	StatusSuccess SignalStatus = "success"
	StatusPending SignalStatus = "pending"
	StatusFailed  SignalStatus = "failed"
)

// Feed identifiers used as cache-store dimensions and metrics labels.
const (
	FeedRaw        = "raw"
	FeedExecutions = "executions"
)

// RawSignal is a broker-side signal as received from the raw feed.
// Immutable once cached; a newer fetch supersedes it, never mutates it.
type RawSignal struct {
	ID           string       `json:"id"`
	BotID        string       `json:"botId"`
	Timestamp    time.Time    `json:"timestamp"`
	Instrument   string       `json:"instrument"`
	Action       SignalAction `json:"action"`
	Status       SignalStatus `json:"status"`
	OwnerUserID  string       `json:"ownerUserId,omitempty"`
	ErrorMessage string       `json:"errorMessage,omitempty"`
}

// AccountOutcome is the per-trading-account result of a processed signal.
type AccountOutcome struct {
	OwnerUserID  string `json:"ownerUserId"`
	AccountID    string `json:"accountId"`
	Success      bool   `json:"success"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// ExecutionSignal is a downstream processed signal from the execution feed.
// Status is the broker's free-form status text; the success/failure view
// is derived from the per-account outcomes.
type ExecutionSignal struct {
	ID           string           `json:"id"`
	SignalID     string           `json:"signalId"` // originating raw signal
	BotID        string           `json:"botId"`
	Timestamp    time.Time        `json:"timestamp"`
	Instrument   string           `json:"instrument"`
	Action       SignalAction     `json:"action"`
	Status       string           `json:"status"`
	OwnerUserID  string           `json:"ownerUserId,omitempty"`
	ErrorMessage string           `json:"errorMessage,omitempty"`
	Outcomes     []AccountOutcome `json:"outcomes,omitempty"`
}

// Succeeded reports whether the execution has at least one successful
// outcome and no failed outcome.
func (e *ExecutionSignal) Succeeded() bool {
	ok := false
	for _, o := range e.Outcomes {
		if !o.Success {
			return false
		}
		ok = true
	}
	return ok
}

// Failed reports whether any per-account outcome failed.
func (e *ExecutionSignal) Failed() bool {
	for _, o := range e.Outcomes {
		if !o.Success {
			return true
		}
	}
	return false
}

// Pending reports whether the broker status text marks the execution
// as still in progress.
func (e *ExecutionSignal) Pending() bool {
	return strings.Contains(strings.ToLower(e.Status), "pending")
}

// OwnedBy reports whether any outcome belongs to the given user.
func (e *ExecutionSignal) OwnedBy(userID string) bool {
	for _, o := range e.Outcomes {
		if o.OwnerUserID == userID {
			return true
		}
	}
	return false
}

// FetchParams scopes a feed fetch. OwnerScope is empty when AdminView
// is set, which broadens the fetch to every owner of the bot.
type FetchParams struct {
	BotID      string
	OwnerScope string
	AdminView  bool
}

// Key returns the cache key for this scope.
func (p FetchParams) Key() string {
	if p.AdminView {
		return p.BotID + "|"
	}
	return p.BotID + "|" + p.OwnerScope
}

// OwnerRef identifies a user in the owner filter dropdown.
type OwnerRef struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}
