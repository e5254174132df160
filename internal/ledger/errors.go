package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrConflict means a conditional update lost its race. Re-read and
	// re-authorize rather than report it.
	ErrConflict = errors.New("ledger: concurrent update conflict")

	// ErrTransient is returned once conflict retries are exhausted.
	ErrTransient = errors.New("ledger: retries exhausted")

	// ErrUnavailable wraps storage failures. Nothing may be assumed to have
	// been authorized or settled.
	ErrUnavailable = errors.New("ledger: storage unavailable")

	// ErrUnpaid means a successful search could not be paid for after a
	// re-authorization. The result must not be delivered as paid.
	ErrUnpaid = errors.New("ledger: search not paid")
)

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}
