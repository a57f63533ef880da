package prices

import "errors"

var (
	// ErrInvalidRegion marks a region code outside the fixed NO1-NO5 set.
	// It is the only pricing error that surfaces to callers as a hard
	// failure.
	ErrInvalidRegion = errors.New("invalid price region")

	// ErrPriceUnavailable marks an upstream fetch that failed, timed out
	// or returned a malformed payload. Callers fall back to degraded
	// pricing instead of propagating it.
	ErrPriceUnavailable = errors.New("spot prices unavailable")
)
