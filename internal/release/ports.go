// Package release implements the security deposit release engine: it selects
// completed bookings whose deposit can be returned, gates them on claim and
// issue state, splits the releasable amount between the card and wallet
// rails and settles both rails idempotently.
package release

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/carshare-deposits/internal/model"
	"github.com/iliyamo/carshare-deposits/internal/queue"
)

// EligibilityQuery carries the inputs of the eligibility selector.  Cutoff is
// Now minus the grace period; BookingCodes, when non-empty, restricts the
// result to those codes.
type EligibilityQuery struct {
	Now          time.Time
	Cutoff       time.Time
	BookingCodes []string
	Limit        int
}

// Settlement is the single atomic ledger write performed after the card rail
// (if any) succeeded.  The store must, in one transaction, stamp the refund
// marker only when it is still unset, increment the wallet by WalletAmount
// (when positive and WalletID is set) and append the matching
// DepositTransaction.
type Settlement struct {
	BookingID     string
	BookingCode   string
	NetAmount     decimal.Decimal
	CardAmount    decimal.Decimal
	CardRefundRef string
	WalletID      string
	WalletAmount  decimal.Decimal
	// WalletMissing is set when the guest has no wallet profile.  The
	// marker is still stamped and WalletAmount is not credited.
	WalletMissing bool
	GuestEmail    string
	Description   string
	At            time.Time

	// LedgerEntry is filled in by the store when a wallet credit was made.
	LedgerEntry *model.DepositTransaction
}

// CreditedWallet is the amount actually added to the guest wallet.
func (s *Settlement) CreditedWallet() decimal.Decimal {
	if s.WalletMissing || s.WalletID == "" {
		return decimal.Zero
	}
	return s.WalletAmount
}

// LedgerStore is the relational store the engine reads and writes.
// Implementations must return ErrAlreadyReleased from Settle when the refund
// marker is already set.
type LedgerStore interface {
	PlatformSettings(ctx context.Context) (model.PlatformSettings, error)
	SelectEligible(ctx context.Context, q EligibilityQuery) ([]model.Booking, error)
	CountOpenClaims(ctx context.Context, bookingID string) (int, error)
	CountOpenTripIssues(ctx context.Context, bookingID string) (int, error)
	// AutoApproveReview moves PENDING_REVIEW to AUTO_APPROVED.  It returns
	// false when the row was no longer pending.
	AutoApproveReview(ctx context.Context, bookingID string, at time.Time) (bool, error)
	RefundMarker(ctx context.Context, bookingID string) (*time.Time, error)
	FindWalletByEmail(ctx context.Context, email string) (*model.WalletProfile, bool, error)
	// RecordCardRefund saves the gateway refund id on a booking whose marker
	// is still unset, ahead of Settle.
	RecordCardRefund(ctx context.Context, bookingID, refundRef string) error
	Settle(ctx context.Context, s *Settlement) error
}

// RefundRequest asks the card gateway to partially refund an original charge.
type RefundRequest struct {
	ChargeRef      string
	AmountMinor    int64
	IdempotencyKey string
	BookingID      string
	BookingCode    string
}

// RefundResult is what the gateway reports back on success.
type RefundResult struct {
	RefundID string
	Status   string
}

// CardGateway is the external card payment processor.  A non-nil error
// (including a timeout) means the refund must be treated as not issued.
type CardGateway interface {
	IssuePartialRefund(ctx context.Context, req RefundRequest) (RefundResult, error)
}

// Notifier receives release confirmations.  Implementations must not block
// and must never report failures back to the engine.
type Notifier interface {
	DepositReleased(ev queue.DepositReleasedEvent)
}

// Locker guards a booking against concurrent release by overlapping runs.
// acquired=false with a nil error means another worker holds the lock.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(), acquired bool, err error)
}

// Journal persists finished run reports.
type Journal interface {
	Save(ctx context.Context, r *Report) error
}

type nopLocker struct{}

func (nopLocker) TryLock(context.Context, string, time.Duration) (func(), bool, error) {
	return func() {}, true, nil
}
