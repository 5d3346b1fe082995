package recorder

import "time"

// Refresh outcomes.
const (
	OutcomeRefreshed = "REFRESHED" // new series stored
	OutcomeStale     = "STALE"     // every provider failed, previous series served
	OutcomeEmpty     = "EMPTY"     // every provider failed and nothing was cached
)

// RefreshEvent records one cache refresh attempt for an instrument.
type RefreshEvent struct {
	At         time.Time
	Instrument string
	Source     string // fetcher that produced the data, empty on failure
	Outcome    string
	Points     int
	Duration   time.Duration
	Error      string
}

// Recorder persists refresh history for later inspection.
type Recorder interface {
	RecordRefresh(evt *RefreshEvent) error
	// Recent returns up to limit events for instrument, newest first.
	// An empty instrument matches all.
	Recent(instrument string, limit int) ([]RefreshEvent, error)
	// Prune deletes events older than before and reports how many went.
	Prune(before time.Time) (int64, error)
	Close() error
}
