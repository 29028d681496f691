package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/carshare-deposits/internal/model"
)

// WalletRepo provides access to guest deposit wallets and their append-only
// deposit_transactions ledger.  Balances are only ever changed with an
// in-place `wallet_balance = wallet_balance + ?` update; there is no method
// that writes an absolute balance.
type WalletRepo struct {
	db *sql.DB
}

// NewWalletRepo returns a new WalletRepo bound to the given database.
func NewWalletRepo(db *sql.DB) *WalletRepo { return &WalletRepo{db: db} }

// FindByEmail looks up the wallet owned by the guest with the given email.
// The match ignores case on both sides; found is false when the guest has no
// wallet.
func (r *WalletRepo) FindByEmail(ctx context.Context, email string) (*model.WalletProfile, bool, error) {
	var (
		w      model.WalletProfile
		userID sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, email, wallet_balance FROM wallet_profiles WHERE LOWER(email) = ? ORDER BY id LIMIT 1`,
		strings.ToLower(strings.TrimSpace(email)),
	).Scan(&w.ID, &userID, &w.Email, &w.WalletBalance)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	w.UserID = strPtr(userID)
	return &w, true, nil
}

// CreditTx atomically adds amount to the wallet and returns the balance as
// seen by the same transaction right after the increment.  The UPDATE holds
// the row lock until commit, so the value read back is the true
// post-increment balance even when other runs credit the same wallet.
// It returns ErrNotFound when the wallet row does not exist.
func (r *WalletRepo) CreditTx(ctx context.Context, tx *sql.Tx, walletID string, amount decimal.Decimal) (decimal.Decimal, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE wallet_profiles SET wallet_balance = wallet_balance + ? WHERE id = ?`,
		amount, walletID,
	)
	if err != nil {
		return decimal.Zero, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return decimal.Zero, err
	}
	if n == 0 {
		return decimal.Zero, ErrNotFound
	}
	var balance decimal.Decimal
	if err := tx.QueryRowContext(ctx, `SELECT wallet_balance FROM wallet_profiles WHERE id = ?`, walletID).Scan(&balance); err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

// AppendTransactionTx inserts one deposit_transactions row inside the
// caller's transaction.
func (r *WalletRepo) AppendTransactionTx(ctx context.Context, tx *sql.Tx, t model.DepositTransaction) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO deposit_transactions
            (id, wallet_id, guest_email, type, amount, balance_after, booking_id, description, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.WalletID, t.GuestEmail, t.Type, t.Amount, t.BalanceAfter, t.BookingID, t.Description, t.CreatedAt.UTC(),
	)
	return err
}
