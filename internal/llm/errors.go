package llm

import (
	"errors"
	"fmt"
)

// ErrEmptyReply is returned by callers that require a non-blank model
// answer when the upstream reply contains only whitespace.
var ErrEmptyReply = errors.New("model returned an empty reply")

// UpstreamError reports a language-model transport failure: a non-2xx
// response or a network error, after the retry budget is spent for the
// transient class. Status is zero when the request never reached the server.
type UpstreamError struct {
	Status   int
	Attempts int
	Err      error

	retryable bool
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("language model upstream failed (HTTP %d, %d attempts): %v", e.Status, e.Attempts, e.Err)
	}
	return fmt.Sprintf("language model unreachable (%d attempts): %v", e.Attempts, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// IsUpstream reports whether err is an *UpstreamError anywhere in its chain.
func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}
