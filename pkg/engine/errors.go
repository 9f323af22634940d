package engine

import "errors"

var (
	// ErrProductUnavailable is returned when a line item references a product
	// that does not exist in the catalog.
	ErrProductUnavailable = errors.New("product unavailable")

	// ErrInsufficientStock is returned when the requested quantity, including
	// the combined quantity of duplicate line items, exceeds available stock.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrOrderNotFound is returned by status updates against an unknown order.
	ErrOrderNotFound = errors.New("order not found")

	// ErrValidation is returned for malformed input: empty line items or a
	// non-positive quantity.
	ErrValidation = errors.New("validation failed")

	// ErrTransientStore wraps store failures (timeout, connectivity loss).
	// The whole placement aborted with no partial decrement committed, so the
	// caller may safely retry the entire operation.
	ErrTransientStore = errors.New("transient store error")
)
