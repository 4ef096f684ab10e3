package services

import "errors"

// Validation failures. Each is raised before anything is written for the
// operation that produced it and is wrapped with details via fmt.Errorf("%w: ...").
var (
	ErrCycle                = errors.New("category cannot be its own ancestor")
	ErrHierarchyType        = errors.New("category hierarchy type mismatch")
	ErrDuplicateKey         = errors.New("duplicate key")
	ErrInvalidQuantity      = errors.New("invalid quantity")
	ErrEmptyBasket          = errors.New("basket is empty")
	ErrFulfillmentMethod    = errors.New("choose exactly one fulfillment method")
	ErrInsufficientStock    = errors.New("insufficient item stock")
	ErrImmutableItem        = errors.New("item of an order line cannot be changed")
	ErrOrderFinished        = errors.New("order is already finished")
	ErrOrderCancelled       = errors.New("order is cancelled")
	ErrStatusTransition     = errors.New("order status transition not allowed")
	ErrInvalidPropertyValue = errors.New("value does not belong to the item category filter")
	ErrInvalidPaymentType   = errors.New("unknown payment type")
	ErrInvalidCredentials   = errors.New("invalid credentials")
)
