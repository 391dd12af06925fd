package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrAccountNotFound      = errors.New("account not found")
	ErrAccountAlreadyExists = errors.New("account already exists")
	ErrAccountNotActive     = errors.New("account is not active")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrStorageFailure       = errors.New("storage failure")

	// ErrIDCollision reports that a generated identifier is already taken.
	// Callers generate a fresh one and try again.
	ErrIDCollision = errors.New("generated id already in use")

	ErrCustomerNotFound = errors.New("customer not found")
	ErrInvalidTransfer  = errors.New("invalid transfer")
	ErrInvalidEntryKind = errors.New("invalid ledger entry kind")

	ErrCardNotFound      = errors.New("card not found")
	ErrCardAlreadyExists = errors.New("account already has a card")
	ErrInvalidPIN        = errors.New("invalid pin")
	ErrCardNotActive     = errors.New("card is not active")
	ErrInvalidCardAction = errors.New("invalid card action")
	ErrInvalidCardLimit  = errors.New("invalid card transaction limit")
)

// StorageError wraps a failure of the persistent store. It matches
// ErrStorageFailure with errors.Is and unwraps to the driver error.
type StorageError struct {
	Op  string
	Err error
}

func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorageFailure }
