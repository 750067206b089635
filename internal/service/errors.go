package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/coffee-order/api/internal/database"
	"github.com/jackc/pgx/v5/pgconn"
)

// Error classes. Every error returned by the order service matches at most
// one of these with errors.Is.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidOption     = errors.New("invalid option")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrBusy              = errors.New("store busy, retry later")
	ErrConflict          = errors.New("conflict")
)

// Validation errors returned before any store access.
var (
	ErrEmptyItems      = fmt.Errorf("%w: items are required", ErrValidation)
	ErrInvalidMenuID   = fmt.Errorf("%w: invalid menuId", ErrValidation)
	ErrInvalidQuantity = fmt.Errorf("%w: quantity must be >= 1", ErrValidation)
	ErrInvalidOptionID = fmt.Errorf("%w: invalid optionId", ErrValidation)
	ErrDuplicateOption = fmt.Errorf("%w: option selected more than once", ErrValidation)
	ErrInvalidStatus   = fmt.Errorf("%w: invalid status", ErrValidation)
	ErrInvalidOrderID  = fmt.Errorf("%w: invalid orderId", ErrValidation)
	ErrAmountOverflow  = fmt.Errorf("%w: order amount out of range", ErrValidation)
)

// NotFoundError reports a referenced entity that does not exist.
type NotFoundError struct {
	Entity string // "menu", "option" or "order"
	ID     int32
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %d", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InsufficientStockError reports a menu whose stock cannot cover the
// quantity requested across the whole order.
type InsufficientStockError struct {
	MenuID    int32
	MenuName  string
	Requested int32
	Available int32
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d",
		e.MenuName, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// InvalidOptionError reports an option that belongs to a different menu.
type InvalidOptionError struct {
	OptionID int32
	MenuID   int32
}

func (e *InvalidOptionError) Error() string {
	return fmt.Sprintf("option %d does not belong to menu %d", e.OptionID, e.MenuID)
}

func (e *InvalidOptionError) Unwrap() error { return ErrInvalidOption }

// InvalidTransitionError reports a status change outside the transition table.
type InvalidTransitionError struct {
	Current   database.OrderStatus
	Requested database.OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition from %s to %s", e.Current, e.Requested)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// PostgreSQL error codes that mean "try again later".
const (
	pgLockNotAvailable     = "55P03"
	pgDeadlockDetected     = "40P01"
	pgSerializationFailure = "40001"
	pgQueryCanceled        = "57014"
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
)

// classifyStoreErr wraps lock contention and timeouts in ErrBusy and returns
// every other error unchanged.
func classifyStoreErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrBusy, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable, pgDeadlockDetected, pgSerializationFailure, pgQueryCanceled:
			return fmt.Errorf("%w: %w", ErrBusy, err)
		}
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation
}
