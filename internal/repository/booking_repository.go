package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/carshare-deposits/internal/model"
)

// BookingRepo reads rental_bookings for the deposit release engine and
// performs the two writes the engine is allowed to make: the review
// auto-approval and the one-time refund marker.  All timestamps are stored
// in UTC.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, booking_code, status, trip_ended_at,
       deposit_amount, deposit_from_card, deposit_from_wallet, deposit_used_for_claim,
       deposit_refunded, deposit_refunded_at, deposit_refund_ref, payment_intent_id,
       host_final_review_status, host_review_deadline,
       renter_id, guest_name, guest_email, guest_phone`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(s rowScanner) (model.Booking, error) {
	var (
		b                                 model.Booking
		tripEnded, refundedAt, deadline   sql.NullTime
		refundRef, paymentIntent, review  sql.NullString
		renterID, guestName, email, phone sql.NullString
	)
	if err := s.Scan(
		&b.ID, &b.BookingCode, &b.Status, &tripEnded,
		&b.DepositAmount, &b.DepositFromCard, &b.DepositFromWallet, &b.DepositUsedForClaim,
		&b.DepositRefunded, &refundedAt, &refundRef, &paymentIntent,
		&review, &deadline,
		&renterID, &guestName, &email, &phone,
	); err != nil {
		return model.Booking{}, err
	}
	status, err := model.ParseReviewStatus(review.String)
	if err != nil {
		return model.Booking{}, err
	}
	b.HostFinalReview = status
	b.TripEndedAt = timePtr(tripEnded)
	b.DepositRefundedAt = timePtr(refundedAt)
	b.HostReviewDeadline = timePtr(deadline)
	b.DepositRefundRef = strPtr(refundRef)
	b.PaymentIntentID = strPtr(paymentIntent)
	b.GuestID = strPtr(renterID)
	b.GuestName = guestName.String
	b.GuestEmail = email.String
	b.GuestPhone = phone.String
	return b, nil
}

// EligibleFilter bounds an eligibility scan.  It has the same shape as
// release.EligibilityQuery so the store can convert one into the other.
type EligibleFilter struct {
	Now          time.Time
	Cutoff       time.Time
	BookingCodes []string
	Limit        int
}

// SelectEligible returns completed bookings whose deposit can be considered
// for release: unreleased, positive deposit, charged through the gateway and
// either legacy past the grace cutoff, approved by the host (or auto-approved
// by an earlier run), or pending review past its deadline.  The page is
// bounded by f.Limit and unordered.
func (r *BookingRepo) SelectEligible(ctx context.Context, f EligibleFilter) ([]model.Booking, error) {
	q := `SELECT ` + bookingColumns + `
          FROM rental_bookings
          WHERE status = ?
            AND deposit_amount > 0
            AND deposit_refunded_at IS NULL
            AND payment_intent_id IS NOT NULL AND payment_intent_id <> ''
            AND (
                  ((host_final_review_status IS NULL OR host_final_review_status = '')
                    AND trip_ended_at IS NOT NULL AND trip_ended_at <= ?)
               OR host_final_review_status IN (?, ?)
               OR (host_final_review_status = ?
                    AND host_review_deadline IS NOT NULL AND host_review_deadline <= ?)
            )`
	args := []any{
		model.BookingStatusCompleted,
		f.Cutoff.UTC(),
		string(model.ReviewApproved), string(model.ReviewAutoApproved),
		string(model.ReviewPending), f.Now.UTC(),
	}
	if len(f.BookingCodes) > 0 {
		q += ` AND booking_code IN (` + placeholders(len(f.BookingCodes)) + `)`
		for _, c := range f.BookingCodes {
			args = append(args, c)
		}
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	q += ` LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetByID loads a single booking.  It returns ErrNotFound when no row
// matches.
func (r *BookingRepo) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM rental_bookings WHERE id = ?`, id)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// AutoApproveReview moves a booking from PENDING_REVIEW to AUTO_APPROVED.
// The update is conditional on the current status so a host who filed a
// claim in the meantime is never overridden; moved=false reports that case.
func (r *BookingRepo) AutoApproveReview(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE rental_bookings
            SET host_final_review_status = ?, host_final_review_at = ?, updated_at = ?
          WHERE id = ? AND host_final_review_status = ?`,
		string(model.ReviewAutoApproved), at.UTC(), at.UTC(), id, string(model.ReviewPending),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// RefundMarker returns the current deposit_refunded_at value, nil when the
// deposit has not been released yet.
func (r *BookingRepo) RefundMarker(ctx context.Context, id string) (*time.Time, error) {
	var at sql.NullTime
	err := r.db.QueryRowContext(ctx, `SELECT deposit_refunded_at FROM rental_bookings WHERE id = ?`, id).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return timePtr(at), nil
}

// RecordRefundRef stores the gateway refund id on a booking that is not yet
// released.  It is written outside the settlement transaction so an issued
// card refund survives a failed ledger write.  It returns ErrConflict when
// the marker is already set.
func (r *BookingRepo) RecordRefundRef(ctx context.Context, id, refundRef string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE rental_bookings
            SET deposit_refund_ref = ?, updated_at = ?
          WHERE id = ? AND deposit_refunded_at IS NULL`,
		refundRef, at.UTC(), id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// MarkRefundedTx stamps the refund amount and marker inside the caller's
// transaction, but only while the marker is still unset.  It returns
// ErrConflict when another writer got there first.  The caller must commit
// or roll back.
func (r *BookingRepo) MarkRefundedTx(ctx context.Context, tx *sql.Tx, id string, amount decimal.Decimal, refundRef string, at time.Time) error {
	var ref any
	if refundRef != "" {
		ref = refundRef
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE rental_bookings
            SET deposit_refunded = ?, deposit_refunded_at = ?, deposit_refund_ref = ?, updated_at = ?
          WHERE id = ? AND deposit_refunded_at IS NULL`,
		amount, at.UTC(), ref, at.UTC(), id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func strPtr(s sql.NullString) *string {
	if !s.Valid || s.String == "" {
		return nil
	}
	v := s.String
	return &v
}
