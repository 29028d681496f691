package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/carshare-deposits/internal/model"
)

var now = time.Date(2025, time.June, 10, 12, 0, 0, 0, time.UTC)

func eligibleIDs(t *testing.T, repo *BookingRepo, f EligibleFilter) []string {
	t.Helper()
	got, err := repo.SelectEligible(context.Background(), f)
	require.NoError(t, err)
	ids := make([]string, 0, len(got))
	for _, b := range got {
		ids = append(ids, b.ID)
	}
	return ids
}

func TestSelectEligible_Rules(t *testing.T) {
	db := newTestDB(t)
	repo := NewBookingRepo(db)
	cutoff := now.Add(-72 * time.Hour)

	fixtures := []bookingRow{
		// legacy, trip ended before cutoff
		{ID: "legacy-old", Code: "LEG1", TripEndedAt: at(cutoff.Add(-time.Hour)), Deposit: "500", Card: "500", PaymentIntent: "pi_1"},
		// legacy, inside grace period
		{ID: "legacy-new", Code: "LEG2", TripEndedAt: at(cutoff.Add(time.Hour)), Deposit: "500", Card: "500", PaymentIntent: "pi_2"},
		{ID: "approved", Code: "APR1", TripEndedAt: at(now), Deposit: "500", Card: "500", PaymentIntent: "pi_3", Review: "APPROVED"},
		{ID: "auto", Code: "AUT1", TripEndedAt: at(now), Deposit: "500", Card: "500", PaymentIntent: "pi_4", Review: "AUTO_APPROVED"},
		{ID: "pending-due", Code: "PEN1", Deposit: "500", Card: "500", PaymentIntent: "pi_5", Review: "PENDING_REVIEW", Deadline: at(now.Add(-time.Minute))},
		{ID: "pending-open", Code: "PEN2", Deposit: "500", Card: "500", PaymentIntent: "pi_6", Review: "PENDING_REVIEW", Deadline: at(now.Add(time.Hour))},
		{ID: "claim", Code: "CLM1", Deposit: "500", Card: "500", PaymentIntent: "pi_7", Review: "CLAIM_FILED"},
		{ID: "released", Code: "REL1", Deposit: "500", Card: "500", PaymentIntent: "pi_8", Review: "APPROVED", RefundedAt: at(now)},
		{ID: "no-charge", Code: "NCH1", Deposit: "500", Card: "500", Review: "APPROVED"},
		{ID: "no-deposit", Code: "NDP1", Deposit: "0", PaymentIntent: "pi_9", Review: "APPROVED"},
		{ID: "active", Code: "ACT1", Status: "ACTIVE", Deposit: "500", Card: "500", PaymentIntent: "pi_10", Review: "APPROVED"},
	}
	for _, f := range fixtures {
		insertBooking(t, db, f)
	}

	ids := eligibleIDs(t, repo, EligibleFilter{Now: now, Cutoff: cutoff, Limit: 50})
	assert.ElementsMatch(t, []string{"legacy-old", "approved", "auto", "pending-due"}, ids)
}

func TestSelectEligible_CodesAndLimit(t *testing.T) {
	db := newTestDB(t)
	repo := NewBookingRepo(db)
	for _, code := range []string{"A1", "A2", "A3"} {
		insertBooking(t, db, bookingRow{ID: "id-" + code, Code: code, Deposit: "100", Card: "100", PaymentIntent: "pi_" + code, Review: "APPROVED"})
	}

	ids := eligibleIDs(t, repo, EligibleFilter{Now: now, Cutoff: now, BookingCodes: []string{"A2", "A3", "ZZ"}, Limit: 50})
	assert.ElementsMatch(t, []string{"id-A2", "id-A3"}, ids)

	ids = eligibleIDs(t, repo, EligibleFilter{Now: now, Cutoff: now, Limit: 2})
	assert.Len(t, ids, 2)
}

func TestSelectEligible_ScansBooking(t *testing.T) {
	db := newTestDB(t)
	repo := NewBookingRepo(db)
	insertBooking(t, db, bookingRow{
		ID: "b1", Code: "CAR-1", Deposit: "500", Card: "200", Wallet: "300", UsedByClaim: "150.50",
		PaymentIntent: "pi_abc", Review: "APPROVED", GuestEmail: "guest@example.com",
	})

	got, err := repo.SelectEligible(context.Background(), EligibleFilter{Now: now, Cutoff: now, Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 1)
	b := got[0]
	assert.Equal(t, "CAR-1", b.BookingCode)
	assert.True(t, b.DepositAmount.Equal(decimal.NewFromInt(500)))
	assert.True(t, b.DepositFromWallet.Equal(decimal.NewFromInt(300)))
	assert.True(t, b.NetDeposit().Equal(decimal.RequireFromString("349.5")))
	assert.Equal(t, model.ReviewApproved, b.HostFinalReview)
	assert.Equal(t, "pi_abc", b.ChargeRef())
	assert.Equal(t, "guest@example.com", b.GuestEmail)
	assert.Nil(t, b.DepositRefundedAt)
	assert.Nil(t, b.GuestID)
}

func TestAutoApproveReview_Conditional(t *testing.T) {
	db := newTestDB(t)
	repo := NewBookingRepo(db)
	ctx := context.Background()
	insertBooking(t, db, bookingRow{ID: "p", Code: "P1", Deposit: "100", PaymentIntent: "pi", Review: "PENDING_REVIEW", Deadline: at(now.Add(-time.Hour))})
	insertBooking(t, db, bookingRow{ID: "c", Code: "C1", Deposit: "100", PaymentIntent: "pi", Review: "CLAIM_FILED"})

	moved, err := repo.AutoApproveReview(ctx, "p", now)
	require.NoError(t, err)
	assert.True(t, moved)

	b, err := repo.GetByID(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, model.ReviewAutoApproved, b.HostFinalReview)

	// second call and a claim-filed booking are both left untouched
	moved, err = repo.AutoApproveReview(ctx, "p", now)
	require.NoError(t, err)
	assert.False(t, moved)

	moved, err = repo.AutoApproveReview(ctx, "c", now)
	require.NoError(t, err)
	assert.False(t, moved)
	b, err = repo.GetByID(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, model.ReviewClaimFiled, b.HostFinalReview)
}

func TestMarkRefundedTx_OnlyOnce(t *testing.T) {
	db := newTestDB(t)
	repo := NewBookingRepo(db)
	ctx := context.Background()
	insertBooking(t, db, bookingRow{ID: "b", Code: "B1", Deposit: "100", PaymentIntent: "pi", Review: "APPROVED"})

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, repo.MarkRefundedTx(ctx, tx, "b", decimal.NewFromInt(100), "re_1", now))
	require.NoError(t, tx.Commit())

	marker, err := repo.RefundMarker(ctx, "b")
	require.NoError(t, err)
	require.NotNil(t, marker)
	assert.True(t, marker.Equal(now))

	tx, err = db.BeginTx(ctx, nil)
	require.NoError(t, err)
	err = repo.MarkRefundedTx(ctx, tx, "b", decimal.NewFromInt(100), "re_2", now.Add(time.Minute))
	assert.ErrorIs(t, err, ErrConflict)
	require.NoError(t, tx.Rollback())

	b, err := repo.GetByID(ctx, "b")
	require.NoError(t, err)
	require.NotNil(t, b.DepositRefundRef)
	assert.Equal(t, "re_1", *b.DepositRefundRef)
}

func TestRefundMarker_NotFound(t *testing.T) {
	repo := NewBookingRepo(newTestDB(t))
	_, err := repo.RefundMarker(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
