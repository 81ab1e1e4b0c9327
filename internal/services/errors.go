// Package services holds the order and user use cases shared by the bot and
// the operator API. This file centralizes service-level error values so that
// callers can check them with errors.Is and map them to user notices or HTTP
// statuses at their own layer.
package services

import (
	"errors"

	"github.com/tbourn/go-delivery-bot/internal/cart"
)

// Order errors.
var (
	// ErrEmptyCart is returned by Submit for a cart without items.
	ErrEmptyCart = cart.ErrEmptyCart

	// ErrIncompleteCheckout is returned by Submit when the delivery or
	// payment type has not been chosen.
	ErrIncompleteCheckout = errors.New("delivery and payment type are required")

	// ErrOrderNotFound indicates that the order id does not exist.
	ErrOrderNotFound = errors.New("order not found")

	// ErrOrderAlreadyFinalized is returned when an order that is already
	// confirmed or cancelled is finalized again.
	ErrOrderAlreadyFinalized = errors.New("order already finalized")

	// ErrInvalidStatus is returned for a finalize target other than
	// confirmed or cancelled.
	ErrInvalidStatus = errors.New("status must be confirmed or cancelled")

	// ErrPersistence wraps storage failures. The underlying gorm error stays
	// reachable through errors.Is / errors.As.
	ErrPersistence = errors.New("persistence failure")
)

// User errors.
var (
	// ErrUserNotFound indicates that no user with the id is registered.
	ErrUserNotFound = errors.New("user not found")

	// ErrFieldNotEditable is returned by UpdateField for columns outside the
	// profile whitelist.
	ErrFieldNotEditable = errors.New("field is not editable")
)
