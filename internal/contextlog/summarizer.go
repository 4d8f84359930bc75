package contextlog

import (
	"context"
	"fmt"
	"strings"

	"github.com/arshiii08/windbot/internal/storage"
)

// EmptySummary is the fixed sentinel used when a turbine has no recorded
// errors for the day. Downstream prompts rely on it never being empty.
const EmptySummary = "No operational errors were recorded on this day for this turbine."

// maxEntries caps how many events make it into the narration context.
const maxEntries = 5

// LogStore is the interface for fetching recorded operational error events.
type LogStore interface {
	ErrorLogs(ctx context.Context, turbineID, logDate string, limit int) ([]storage.ErrorLog, error)
}

// Summarizer renders a turbine-day's error events as a plain-text digest for
// the explanation prompt.
type Summarizer struct {
	store LogStore
}

// NewSummarizer creates a Summarizer over the given log store.
func NewSummarizer(store LogStore) *Summarizer {
	return &Summarizer{store: store}
}

// Summarize returns a bullet list of up to five error events for the turbine
// on the given date, ordered by event time ascending. An empty result yields
// EmptySummary, never an empty string; only a store failure is an error.
func (s *Summarizer) Summarize(ctx context.Context, turbineID, logDate string) (string, error) {
	logs, err := s.store.ErrorLogs(ctx, turbineID, logDate, maxEntries)
	if err != nil {
		return "", fmt.Errorf("fetching error logs for %s on %s: %w", turbineID, logDate, err)
	}

	if len(logs) == 0 {
		return EmptySummary, nil
	}

	lines := make([]string, len(logs))
	for i, l := range logs {
		lines[i] = fmt.Sprintf("• %s (Duration: %s)", l.ShortDescription, l.Duration)
	}
	return strings.Join(lines, "\n"), nil
}
