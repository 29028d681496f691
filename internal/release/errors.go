package release

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyReleased is returned when the booking's refund marker is
	// already set.  The orchestrator reports it as a skip, not a failure.
	ErrAlreadyReleased = errors.New("deposit already released")

	// ErrMissingChargeRef is returned when the card rail needs to run but the
	// booking has no original charge reference.
	ErrMissingChargeRef = errors.New("booking has no original charge reference")

	// ErrWalletNotFound is returned by Settle when the wallet found by the
	// executor disappeared before the credit.  The transaction is rolled back
	// and the next run settles the booking without the wallet credit.
	ErrWalletNotFound = errors.New("guest wallet profile not found")

	// ErrNothingToRelease is returned when the split adds up to zero.
	ErrNothingToRelease = errors.New("nothing to release")

	// ErrLockUnavailable is returned when the lock backend could not be
	// asked.  The booking is failed rather than processed unguarded.
	ErrLockUnavailable = errors.New("lock unavailable")
)

// GatewayError wraps a failed card refund.  The booking keeps no marker and
// is picked up again on the next run.
type GatewayError struct {
	BookingCode string
	Err         error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("card refund failed for %s: %v", e.BookingCode, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }
