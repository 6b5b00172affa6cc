package history

import "time"

// Outcome is the terminal state of one item in a cycle.
type Outcome string

const (
	OutcomeSucceeded    Outcome = "succeeded"
	OutcomeNoCandidates Outcome = "no_candidates"
	OutcomeExhausted    Outcome = "exhausted"
	OutcomeInvalid      Outcome = "invalid"
)

// Entry is one recorded item outcome.
type Entry struct {
	ID          int64     `json:"id"`
	CycleID     string    `json:"cycleId"`
	ItemKey     string    `json:"itemKey"`
	MediaKind   string    `json:"mediaKind"`
	Title       string    `json:"title"`
	Outcome     Outcome   `json:"outcome"`
	Reason      string    `json:"reason,omitempty"`
	StreamLabel string    `json:"streamLabel,omitempty"`
	Quality     string    `json:"quality,omitempty"`
	Attempts    int       `json:"attempts"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ListOptions filters List results.
type ListOptions struct {
	Outcome   Outcome
	MediaKind string
	Limit     int
}

// ListResponse is a page of history entries.
type ListResponse struct {
	Items      []*Entry `json:"items"`
	TotalCount int64    `json:"totalCount"`
}
