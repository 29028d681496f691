package release

import "github.com/shopspring/decimal"

// Split is the card/wallet division of a net deposit.  Card+Wallet always
// equals the net deposit exactly.
type Split struct {
	Card   decimal.Decimal `json:"cardPortion"`
	Wallet decimal.Decimal `json:"walletPortion"`
}

// Total returns Card+Wallet.
func (s Split) Total() decimal.Decimal { return s.Card.Add(s.Wallet) }

// Calculate splits netDeposit between the rails.  The wallet gets back at
// most what was drawn from it; the card absorbs the remainder, including the
// whole amount when no wallet funds were used.
func Calculate(netDeposit, depositFromWallet decimal.Decimal) Split {
	if !netDeposit.IsPositive() {
		return Split{Card: decimal.Zero, Wallet: decimal.Zero}
	}
	fromWallet := depositFromWallet
	if fromWallet.IsNegative() {
		fromWallet = decimal.Zero
	}
	wallet := decimal.Min(fromWallet, netDeposit)
	return Split{Card: netDeposit.Sub(wallet), Wallet: wallet}
}
