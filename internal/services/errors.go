package services

import "errors"

// Service-level error values. Handlers translate these into HTTP status codes;
// none of them carry user-facing text.
var (
	// ErrMissingServerKey means the gateway server key is not configured.
	// Construction fails outright rather than letting unsigned webhooks through.
	ErrMissingServerKey = errors.New("midtrans server key not configured")

	// ErrInvalidSignature is returned when a webhook signature does not match
	// the recomputed digest. No state is touched when this is returned.
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrUnknownOrder indicates no transaction exists for the given order ID.
	ErrUnknownOrder = errors.New("unknown order id")

	// ErrNotOwner is returned when a user polls an order that belongs to
	// someone else.
	ErrNotOwner = errors.New("order does not belong to user")

	// ErrNotSettled signals that the gateway still reports the payment as
	// pending. It is an expected outcome, not a failure.
	ErrNotSettled = errors.New("payment not yet settled")

	// ErrGatewayUnavailable wraps a failed call to the payment gateway. The
	// transaction is left in its prior state so a later poll can retry.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	// ErrUnrecognizedStatus is returned when the gateway reports a status
	// outside the known vocabulary. It is never mapped to success and the
	// transaction is left untouched.
	ErrUnrecognizedStatus = errors.New("unrecognized gateway transaction status")

	// ErrUserNotFound indicates the authenticated principal has no profile row.
	ErrUserNotFound = errors.New("user profile not found")
)
