package bridge

import (
	"time"

	"github.com/aiodarr/aiodarr/internal/media"
	"github.com/aiodarr/aiodarr/internal/processed"
)

// MaxAttempts caps how many candidates are tried per item per cycle.
const MaxAttempts = 3

// State is where an item ended up in a cycle.
type State string

const (
	StateSkip         State = "skip"
	StateInvalid      State = "invalid"
	StateNoCandidates State = "no_candidates"
	StateAttempting   State = "attempting"
	StateSucceeded    State = "succeeded"
	StateExhausted    State = "exhausted"
	// StateCancelled means the cycle ended before the item was decided. Nothing
	// is recorded, so the item is processed again next cycle.
	StateCancelled State = "cancelled"
)

// Terminal reports whether the state is reported and recorded.
func (s State) Terminal() bool {
	switch s {
	case StateInvalid, StateNoCandidates, StateSucceeded, StateExhausted:
		return true
	default:
		return false
	}
}

// Failure reasons reported to the notifier and history.
const (
	ReasonMissingID     = "No IMDB ID found"
	ReasonNoStreams     = "No cached streams available"
	ReasonSearchFailed  = "Stream search failed"
	reasonExhaustedTmpl = "all %d stream attempts failed"
)

// ItemResult is the outcome for one wanted item.
type ItemResult struct {
	Key        string        `json:"key"`
	Kind       media.Kind    `json:"kind"`
	Title      string        `json:"title"`
	State      State         `json:"state"`
	Reason     string        `json:"reason,omitempty"`
	Candidates int           `json:"candidates"`
	Attempts   int           `json:"attempts"`
	Stream     string        `json:"stream,omitempty"`
	Quality    media.Quality `json:"quality,omitempty"`
}

// LibraryError records a wanted-list fetch that failed.
type LibraryError struct {
	Library string `json:"library"`
	Error   string `json:"error"`
}

// CycleResult summarizes one poll cycle.
type CycleResult struct {
	ID            string          `json:"id"`
	Started       time.Time       `json:"started"`
	Duration      time.Duration   `json:"duration"`
	Items         []ItemResult    `json:"items"`
	LibraryErrors []LibraryError  `json:"libraryErrors,omitempty"`
	Stats         processed.Stats `json:"stats"`
}

// Count returns how many items ended in state.
func (r CycleResult) Count(state State) int {
	n := 0
	for _, item := range r.Items {
		if item.State == state {
			n++
		}
	}
	return n
}
