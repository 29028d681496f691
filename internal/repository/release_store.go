package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/carshare-deposits/internal/model"
	"github.com/iliyamo/carshare-deposits/internal/release"
)

// ReleaseStore is the MySQL implementation of release.LedgerStore.  It
// bundles the repositories the engine needs and owns the settlement
// transaction.
type ReleaseStore struct {
	db         *sql.DB
	Bookings   *BookingRepo
	Claims     *ClaimRepo
	TripIssues *TripIssueRepo
	Wallets    *WalletRepo
	Settings   *SettingsRepo
}

var _ release.LedgerStore = (*ReleaseStore)(nil)

// NewReleaseStore wires the repositories over db.
func NewReleaseStore(db *sql.DB) *ReleaseStore {
	return &ReleaseStore{
		db:         db,
		Bookings:   NewBookingRepo(db),
		Claims:     NewClaimRepo(db),
		TripIssues: NewTripIssueRepo(db),
		Wallets:    NewWalletRepo(db),
		Settings:   NewSettingsRepo(db),
	}
}

func (s *ReleaseStore) PlatformSettings(ctx context.Context) (model.PlatformSettings, error) {
	return s.Settings.Get(ctx)
}

func (s *ReleaseStore) SelectEligible(ctx context.Context, q release.EligibilityQuery) ([]model.Booking, error) {
	return s.Bookings.SelectEligible(ctx, EligibleFilter(q))
}

func (s *ReleaseStore) CountOpenClaims(ctx context.Context, bookingID string) (int, error) {
	return s.Claims.CountOpen(ctx, bookingID)
}

func (s *ReleaseStore) CountOpenTripIssues(ctx context.Context, bookingID string) (int, error) {
	return s.TripIssues.CountOpen(ctx, bookingID)
}

func (s *ReleaseStore) AutoApproveReview(ctx context.Context, bookingID string, at time.Time) (bool, error) {
	return s.Bookings.AutoApproveReview(ctx, bookingID, at)
}

func (s *ReleaseStore) RefundMarker(ctx context.Context, bookingID string) (*time.Time, error) {
	return s.Bookings.RefundMarker(ctx, bookingID)
}

func (s *ReleaseStore) FindWalletByEmail(ctx context.Context, email string) (*model.WalletProfile, bool, error) {
	return s.Wallets.FindByEmail(ctx, email)
}

func (s *ReleaseStore) RecordCardRefund(ctx context.Context, bookingID, refundRef string) error {
	err := s.Bookings.RecordRefundRef(ctx, bookingID, refundRef, time.Now())
	if errors.Is(err, ErrConflict) {
		return release.ErrAlreadyReleased
	}
	return err
}

// Settle applies the ledger side of a release in one transaction: the
// conditional refund marker, the wallet increment and the ledger entry.
// Either all three are committed or none.
func (s *ReleaseStore) Settle(ctx context.Context, st *release.Settlement) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin settlement: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// The marker goes first: it takes the booking row lock, so a second
	// settlement of the same booking blocks here and then matches no row.
	err = s.Bookings.MarkRefundedTx(ctx, tx, st.BookingID, st.NetAmount, st.CardRefundRef, st.At)
	if errors.Is(err, ErrConflict) {
		return release.ErrAlreadyReleased
	}
	if err != nil {
		return fmt.Errorf("mark refunded: %w", err)
	}

	// No WalletID means the guest has no wallet profile: the marker alone is
	// written.
	if st.WalletAmount.IsPositive() && st.WalletID != "" {
		balance, err := s.Wallets.CreditTx(ctx, tx, st.WalletID, st.WalletAmount)
		if errors.Is(err, ErrNotFound) {
			return release.ErrWalletNotFound
		}
		if err != nil {
			return fmt.Errorf("credit wallet: %w", err)
		}
		entry := model.DepositTransaction{
			ID:           uuid.NewString(),
			WalletID:     st.WalletID,
			GuestEmail:   st.GuestEmail,
			Type:         model.DepositTxRelease,
			Amount:       st.WalletAmount,
			BalanceAfter: balance,
			BookingID:    st.BookingID,
			Description:  st.Description,
			CreatedAt:    st.At,
		}
		if err := s.Wallets.AppendTransactionTx(ctx, tx, entry); err != nil {
			return fmt.Errorf("append deposit transaction: %w", err)
		}
		st.LedgerEntry = &entry
	}

	if err := tx.Commit(); err != nil {
		st.LedgerEntry = nil
		return fmt.Errorf("commit settlement: %w", err)
	}
	committed = true
	return nil
}
