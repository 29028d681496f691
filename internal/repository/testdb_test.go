package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// The production schema lives in migrations/ and targets MySQL.  The tests
// run the same queries against an in-memory SQLite database with an
// equivalent schema.
const sqliteSchema = `
CREATE TABLE platform_settings (
    id TEXT PRIMARY KEY,
    deposit_auto_release_enabled BOOLEAN NOT NULL DEFAULT 1,
    deposit_grace_period_days INTEGER NOT NULL DEFAULT 3,
    updated_at DATETIME
);
CREATE TABLE rental_bookings (
    id TEXT PRIMARY KEY,
    booking_code TEXT NOT NULL UNIQUE,
    status TEXT NOT NULL,
    trip_ended_at DATETIME,
    deposit_amount DECIMAL NOT NULL DEFAULT 0,
    deposit_from_card DECIMAL NOT NULL DEFAULT 0,
    deposit_from_wallet DECIMAL NOT NULL DEFAULT 0,
    deposit_used_for_claim DECIMAL NOT NULL DEFAULT 0,
    deposit_refunded DECIMAL NOT NULL DEFAULT 0,
    deposit_refunded_at DATETIME,
    deposit_refund_ref TEXT,
    payment_intent_id TEXT,
    host_final_review_status TEXT,
    host_final_review_at DATETIME,
    host_review_deadline DATETIME,
    renter_id TEXT,
    guest_name TEXT,
    guest_email TEXT,
    guest_phone TEXT,
    updated_at DATETIME
);
CREATE TABLE claims (id TEXT PRIMARY KEY, booking_id TEXT NOT NULL, status TEXT NOT NULL);
CREATE TABLE trip_issues (id TEXT PRIMARY KEY, booking_id TEXT NOT NULL, status TEXT NOT NULL);
CREATE TABLE wallet_profiles (
    id TEXT PRIMARY KEY,
    user_id TEXT,
    email TEXT NOT NULL UNIQUE,
    wallet_balance DECIMAL NOT NULL DEFAULT 0
);
CREATE TABLE deposit_transactions (
    id TEXT PRIMARY KEY,
    wallet_id TEXT NOT NULL,
    guest_email TEXT NOT NULL,
    type TEXT NOT NULL,
    amount DECIMAL NOT NULL,
    balance_after DECIMAL NOT NULL,
    booking_id TEXT NOT NULL,
    description TEXT NOT NULL,
    created_at DATETIME NOT NULL
);
CREATE TABLE notifications (
    id TEXT PRIMARY KEY,
    user_id TEXT,
    email TEXT NOT NULL,
    type TEXT NOT NULL,
    title TEXT NOT NULL,
    message TEXT NOT NULL,
    action_url TEXT,
    created_at DATETIME NOT NULL
);
`

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec(sqliteSchema)
	require.NoError(t, err)
	return db
}

// newFileTestDB opens a file-backed database that several connections can
// share.  Transactions begin IMMEDIATE and wait on the busy timeout, the way
// MySQL row locks make concurrent writers wait.
func newFileTestDB(t *testing.T, conns int) *sql.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "ledger.db") + "?_busy_timeout=10000&_txlock=immediate&_journal_mode=WAL"
	db, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(conns)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec(sqliteSchema)
	require.NoError(t, err)
	return db
}

// bookingRow describes a rental_bookings fixture.  Zero values leave the
// column NULL or 0.
type bookingRow struct {
	ID, Code, Status    string
	TripEndedAt         *time.Time
	Deposit, Card       string
	Wallet, UsedByClaim string
	RefundedAt          *time.Time
	PaymentIntent       string
	Review              string
	Deadline            *time.Time
	GuestEmail          string
}

func insertBooking(t *testing.T, db *sql.DB, b bookingRow) {
	t.Helper()
	if b.Status == "" {
		b.Status = "COMPLETED"
	}
	_, err := db.ExecContext(context.Background(),
		`INSERT INTO rental_bookings
            (id, booking_code, status, trip_ended_at, deposit_amount, deposit_from_card,
             deposit_from_wallet, deposit_used_for_claim, deposit_refunded_at, payment_intent_id,
             host_final_review_status, host_review_deadline, guest_name, guest_email, guest_phone)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Code, b.Status, utcOrNil(b.TripEndedAt),
		dec(b.Deposit), dec(b.Card), dec(b.Wallet), dec(b.UsedByClaim),
		utcOrNil(b.RefundedAt), nilIfEmpty(b.PaymentIntent), nilIfEmpty(b.Review), utcOrNil(b.Deadline),
		"Guest "+b.Code, b.GuestEmail, "+15550100",
	)
	require.NoError(t, err)
}

func insertWallet(t *testing.T, db *sql.DB, id, email, balance string) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO wallet_profiles (id, email, wallet_balance) VALUES (?, ?, ?)`, id, email, dec(balance))
	require.NoError(t, err)
}

func dec(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	return decimal.RequireFromString(s)
}

func utcOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func at(t time.Time) *time.Time { return &t }
