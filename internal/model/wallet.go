package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DepositTxRelease is the only ledger entry type written by the release engine.
const DepositTxRelease = "RELEASE"

// WalletProfile holds a guest's prepaid deposit wallet.  The release engine
// only ever increments WalletBalance, and only through an atomic
// `wallet_balance = wallet_balance + ?` update.
type WalletProfile struct {
	ID            string          // wallet_profiles.id
	UserID        *string         // wallet_profiles.user_id
	Email         string          // wallet_profiles.email
	WalletBalance decimal.Decimal // wallet_profiles.wallet_balance
}

// DepositTransaction is one append-only entry in the wallet ledger.  Rows are
// never updated or deleted; BalanceAfter is the balance returned by the same
// database transaction that applied the increment.
//
// Fields:
//
//	ID           – primary key (uuid string).
//	WalletID     – wallet profile that was credited.
//	GuestEmail   – guest reference used to locate the wallet.
//	Type         – RELEASE for this engine.
//	Amount       – amount credited back to the wallet.
//	BalanceAfter – wallet balance right after the increment.
//	BookingID    – booking whose deposit was released.
//	Description  – human readable note shown in the wallet history.
//	CreatedAt    – creation timestamp (UTC).
type DepositTransaction struct {
	ID           string          `json:"id"`
	WalletID     string          `json:"walletId"`
	GuestEmail   string          `json:"guestEmail"`
	Type         string          `json:"type"`
	Amount       decimal.Decimal `json:"amount"`
	BalanceAfter decimal.Decimal `json:"balanceAfter"`
	BookingID    string          `json:"bookingId"`
	Description  string          `json:"description"`
	CreatedAt    time.Time       `json:"createdAt"`
}
