package slots

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const extractionTimeout = 30 * time.Second

// Completer is the interface for chat completion against the language model.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Slot holds the structured extraction result from a user question.
// LogDate is empty when the question names no date, meaning "most recent".
type Slot struct {
	Intent    string `json:"intent"`
	TurbineID string `json:"turbine_id"`
	LogDate   string `json:"log_date,omitempty"`
}

// ParseError reports a model reply that could not be turned into a valid
// Slot. Raw carries the reply text for diagnostics.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing slot reply: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Extractor turns free-text questions into Slots via one language-model call.
type Extractor struct {
	client Completer
}

// NewExtractor creates an Extractor backed by the given completion client.
func NewExtractor(client Completer) *Extractor {
	return &Extractor{client: client}
}

// Extract issues one slot-filling call and parses the reply. The reply must
// be a JSON object with keys intent, turbine_id, and optionally log_date;
// a surrounding markdown code fence is tolerated and stripped. Malformed or
// empty replies and schema violations yield a *ParseError; transport
// failures pass through from the client unchanged.
func (e *Extractor) Extract(ctx context.Context, question string) (Slot, error) {
	ctx, cancel := context.WithTimeout(ctx, extractionTimeout)
	defer cancel()

	raw, err := e.client.Complete(ctx, systemPrompt, question)
	if err != nil {
		return Slot{}, err
	}

	body := StripFence(raw)
	if strings.TrimSpace(body) == "" {
		return Slot{}, &ParseError{Raw: raw, Err: fmt.Errorf("reply empty after stripping fences")}
	}

	var slot Slot
	if err := json.Unmarshal([]byte(body), &slot); err != nil {
		return Slot{}, &ParseError{Raw: raw, Err: fmt.Errorf("invalid JSON: %w", err)}
	}

	if err := slot.validate(); err != nil {
		return Slot{}, &ParseError{Raw: raw, Err: err}
	}
	return slot, nil
}

func (s Slot) validate() error {
	if strings.TrimSpace(s.TurbineID) == "" {
		return fmt.Errorf("turbine_id is empty")
	}
	if s.LogDate != "" {
		if _, err := time.Parse("2006-01-02", s.LogDate); err != nil {
			return fmt.Errorf("log_date %q is not an ISO date", s.LogDate)
		}
	}
	return nil
}

var fenceRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

// StripFence removes a surrounding markdown code fence (optionally tagged
// json) from a model reply. Unfenced text is returned trimmed but otherwise
// unchanged, so stripping is idempotent.
func StripFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if m := fenceRe.FindStringSubmatch(trimmed); m != nil {
		return m[1]
	}
	return trimmed
}
