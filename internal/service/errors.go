package service

import (
	"errors"
	"fmt"
)

// Error kinds raised by the allocator and the sale workflow. Callers match
// them with errors.Is; the handler layer maps them to HTTP status codes.
var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidQuantity      = errors.New("invalid quantity")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrInsufficientReserved = errors.New("insufficient reserved stock")
	ErrInvalidState         = errors.New("invalid state")
	ErrRegisterNotOpen      = errors.New("register session is not open")
	ErrPaymentIncomplete    = errors.New("payment incomplete")
	// ErrPaymentFailed means the payment ledger refused or could not record
	// a tender.
	ErrPaymentFailed = errors.New("payment failed")
	// ErrInvalidInput covers malformed identifiers and similar request
	// problems that the transport layer did not catch.
	ErrInvalidInput = errors.New("invalid input")
)

// NotFoundError names the missing entity. It matches ErrNotFound.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func notFound(entity string, id fmt.Stringer) error {
	return &NotFoundError{Entity: entity, ID: id.String()}
}

// ReleaseShortfallError is returned when a release asks for more than the
// product has reserved. The reservable part has already been released.
type ReleaseShortfallError struct {
	ProductID string
	Requested int
	Released  int
}

func (e *ReleaseShortfallError) Error() string {
	return fmt.Sprintf("release of %d units for product %s exceeded reservations; released %d",
		e.Requested, e.ProductID, e.Released)
}

func (e *ReleaseShortfallError) Is(target error) bool {
	return target == ErrInvalidState || target == ErrInsufficientReserved
}
