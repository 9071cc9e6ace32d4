package payments

import "errors"

var (
	// ErrUnknownMethod is returned when no strategy is registered for the
	// requested payment method.
	ErrUnknownMethod = errors.New("unknown payment method")

	// ErrGatewayUnavailable is returned when the settlement authority could
	// not be reached at all, as opposed to declining the charge.
	ErrGatewayUnavailable = errors.New("settlement gateway unavailable")
)
