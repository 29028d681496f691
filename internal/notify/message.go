// Package notify turns deposit release events into guest-facing messages and
// delivers them over email, SMS and the in-app notification centre.
package notify

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/carshare-deposits/internal/queue"
)

// NotificationTypeDepositReleased tags in-app notifications written here.
const NotificationTypeDepositReleased = "DEPOSIT_RELEASED"

func money(s string) string {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return "$" + s
	}
	return "$" + d.StringFixed(2)
}

func firstName(full string) string {
	if f := strings.Fields(full); len(f) > 0 {
		return f[0]
	}
	return "there"
}

func isPositive(s string) bool {
	d, err := decimal.NewFromString(s)
	return err == nil && d.IsPositive()
}

// breakdown describes where the money goes, e.g. "$200.00 back to your card
// and $300.00 to your wallet".
func breakdown(ev queue.DepositReleasedEvent) string {
	var parts []string
	if isPositive(ev.CardAmount) {
		parts = append(parts, money(ev.CardAmount)+" back to your card")
	}
	if isPositive(ev.WalletAmount) {
		parts = append(parts, money(ev.WalletAmount)+" to your wallet")
	}
	return strings.Join(parts, " and ")
}

func subject(ev queue.DepositReleasedEvent) string {
	return fmt.Sprintf("Your %s security deposit for booking %s has been released", money(ev.Amount), ev.BookingCode)
}

func emailBody(ev queue.DepositReleasedEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\r\n\r\n", firstName(ev.GuestName))
	fmt.Fprintf(&b, "Good news: the security deposit for booking %s has been released.\r\n", ev.BookingCode)
	if s := breakdown(ev); s != "" {
		fmt.Fprintf(&b, "We are returning %s.\r\n", s)
	}
	if isPositive(ev.CardAmount) {
		b.WriteString("Card refunds usually appear within 5-10 business days.\r\n")
	}
	b.WriteString("\r\nThanks for driving with us.\r\n")
	return b.String()
}

func smsText(ev queue.DepositReleasedEvent) string {
	msg := fmt.Sprintf("Your %s deposit for booking %s was released", money(ev.Amount), ev.BookingCode)
	if s := breakdown(ev); s != "" {
		msg += ": " + s
	}
	return msg + "."
}
