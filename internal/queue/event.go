// Package queue defines message payloads exchanged over the message broker
// and the publisher, dispatcher and consumer that move them.
package queue

// Queue names, one per notification channel so that a failing channel never
// holds back the other.
const (
	QueueDepositReleasedEmail = "deposit.released.email"
	QueueDepositReleasedSMS   = "deposit.released.sms"
)

// DepositReleasedEvent is published after a booking's deposit was settled.
// It contains enough information for the email and SMS/in-app consumers to
// notify the guest without querying the primary database.  Amounts are
// decimal strings with two places.
type DepositReleasedEvent struct {
	BookingID    string `json:"booking_id"`
	BookingCode  string `json:"booking_code"`
	GuestID      string `json:"guest_id,omitempty"`
	GuestName    string `json:"guest_name"`
	GuestEmail   string `json:"guest_email"`
	GuestPhone   string `json:"guest_phone,omitempty"`
	Amount       string `json:"amount"`
	CardAmount   string `json:"card_amount"`
	WalletAmount string `json:"wallet_amount"`
	ReleasedAt   string `json:"released_at"`
}
