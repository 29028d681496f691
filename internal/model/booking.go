package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BookingStatusCompleted is the only rental status the deposit release
// engine ever looks at.  Other statuses (PENDING, CONFIRMED, ACTIVE,
// CANCELLED) belong to the booking workflow and are ignored here.
const BookingStatusCompleted = "COMPLETED"

// Booking is the slice of a rental_bookings row that the deposit release
// engine reads and writes.  Money columns are DECIMAL(10,2) in MySQL and
// are carried as decimal.Decimal so card/wallet splits never drift.
//
// Fields:
//
//	ID                  – primary key (uuid string).
//	BookingCode         – human readable code shown to guests and hosts.
//	Status              – booking lifecycle status; must be COMPLETED here.
//	TripEndedAt         – when the guest returned the car (nullable).
//	DepositAmount       – total security deposit authorized at booking time.
//	DepositFromCard     – part of the deposit taken from the card charge.
//	DepositFromWallet   – part of the deposit drawn from the guest wallet.
//	DepositUsedForClaim – running deduction made by the claims workflow.
//	DepositRefunded     – amount returned by this engine (zero until release).
//	DepositRefundedAt   – idempotency marker; set exactly once on release.
//	DepositRefundRef    – gateway refund id recorded with the marker.
//	PaymentIntentID     – original charge reference used for card refunds.
//	HostFinalReview     – host post-trip review state.
//	HostReviewDeadline  – deadline after which a pending review auto-approves.
//	GuestID             – renter user id (nullable for guest checkouts).
//	GuestName, GuestEmail, GuestPhone – guest contact fields.
type Booking struct {
	ID                  string          // rental_bookings.id
	BookingCode         string          // rental_bookings.booking_code
	Status              string          // rental_bookings.status
	TripEndedAt         *time.Time      // rental_bookings.trip_ended_at
	DepositAmount       decimal.Decimal // rental_bookings.deposit_amount
	DepositFromCard     decimal.Decimal // rental_bookings.deposit_from_card
	DepositFromWallet   decimal.Decimal // rental_bookings.deposit_from_wallet
	DepositUsedForClaim decimal.Decimal // rental_bookings.deposit_used_for_claim
	DepositRefunded     decimal.Decimal // rental_bookings.deposit_refunded
	DepositRefundedAt   *time.Time      // rental_bookings.deposit_refunded_at
	DepositRefundRef    *string         // rental_bookings.deposit_refund_ref
	PaymentIntentID     *string         // rental_bookings.payment_intent_id
	HostFinalReview     ReviewStatus    // rental_bookings.host_final_review_status
	HostReviewDeadline  *time.Time      // rental_bookings.host_review_deadline
	GuestID             *string         // rental_bookings.renter_id
	GuestName           string          // rental_bookings.guest_name
	GuestEmail          string          // rental_bookings.guest_email
	GuestPhone          string          // rental_bookings.guest_phone
}

// NetDeposit returns the releasable remainder: the authorized deposit minus
// whatever the claims workflow has already consumed.  It may be zero or
// negative when claims used up the whole deposit.
func (b Booking) NetDeposit() decimal.Decimal {
	return b.DepositAmount.Sub(b.DepositUsedForClaim)
}

// Released reports whether the idempotency marker is already present.
func (b Booking) Released() bool {
	return b.DepositRefundedAt != nil
}

// ChargeRef returns the original charge reference or "" when the booking was
// never charged through the card gateway.
func (b Booking) ChargeRef() string {
	if b.PaymentIntentID == nil {
		return ""
	}
	return *b.PaymentIntentID
}
