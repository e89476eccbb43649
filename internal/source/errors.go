package source

import (
	"github.com/rotisserie/eris"
)

// Fetch error taxonomy. Callers branch with eris.Is; the pipeline treats
// transient and rate-limited failures as retryable on a later run, while
// not-found and parse failures are recorded and not retried automatically.
var (
	ErrNotFound     = eris.New("source: not found")
	ErrRateLimited  = eris.New("source: rate limited")
	ErrTransient    = eris.New("source: transient failure")
	ErrMalformed    = eris.New("source: malformed response")
	ErrParseFailure = eris.New("source: parse failure")
)

// Retryable reports whether the error should leave the work item pending
// for a future run rather than marking it operator-visible failed.
func Retryable(err error) bool {
	return eris.Is(err, ErrTransient) || eris.Is(err, ErrRateLimited)
}

func statusError(code int) error {
	switch {
	case code == 404:
		return ErrNotFound
	case code == 429:
		return ErrRateLimited
	case code >= 500:
		return ErrTransient
	default:
		return eris.Wrapf(ErrTransient, "unexpected status %d", code)
	}
}
