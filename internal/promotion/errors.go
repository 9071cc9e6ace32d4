package promotion

import "errors"

var (
	// ErrOfferNotFound is returned when no open offer exists for the entry,
	// either because none was made or because it already expired.
	ErrOfferNotFound = errors.New("no open offer for waitlist entry")
)
