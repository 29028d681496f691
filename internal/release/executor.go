package release

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/carshare-deposits/internal/model"
	"github.com/iliyamo/carshare-deposits/internal/queue"
)

// Executor performs the two-rail write for a single booking: the card refund
// first, then one atomic ledger transaction that stamps the refund marker and
// credits the wallet.  An aborted card call leaves no ledger side effects.
type Executor struct {
	store    LedgerStore
	gateway  CardGateway
	notifier Notifier
	nowFn    func() time.Time
}

// NewExecutor wires an Executor.  notifier may be nil.
func NewExecutor(store LedgerStore, gateway CardGateway, notifier Notifier, nowFn func() time.Time) *Executor {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Executor{store: store, gateway: gateway, notifier: notifier, nowFn: nowFn}
}

// IdempotencyKey is the gateway idempotency key for a booking's deposit
// refund.  It depends on the booking only: a replay with a different amount
// is rejected by the gateway instead of becoming a second refund.
func IdempotencyKey(bookingID string) string {
	return "deposit-release:" + bookingID
}

// Execute settles split for b.  It returns ErrAlreadyReleased when the
// marker is already present, either on the passed booking or in the store.
func (x *Executor) Execute(ctx context.Context, b model.Booking, split Split) (*Settlement, error) {
	if b.Released() {
		return nil, ErrAlreadyReleased
	}
	marker, err := x.store.RefundMarker(ctx, b.ID)
	if err != nil {
		return nil, fmt.Errorf("read refund marker: %w", err)
	}
	if marker != nil {
		return nil, ErrAlreadyReleased
	}

	net := split.Total()
	if !net.IsPositive() {
		return nil, ErrNothingToRelease
	}

	s := &Settlement{
		BookingID:    b.ID,
		BookingCode:  b.BookingCode,
		NetAmount:    net,
		CardAmount:   split.Card,
		WalletAmount: split.Wallet,
		GuestEmail:   b.GuestEmail,
		Description:  fmt.Sprintf("Security deposit released for booking %s", b.BookingCode),
	}

	// The wallet is looked up before the card rail so a lookup error never
	// follows an issued refund.  A guest without a wallet profile still gets
	// the card portion and the marker; only the wallet credit is left out.
	if split.Wallet.IsPositive() {
		w, found, err := x.store.FindWalletByEmail(ctx, strings.ToLower(strings.TrimSpace(b.GuestEmail)))
		if err != nil {
			return nil, fmt.Errorf("find wallet: %w", err)
		}
		if found {
			s.WalletID = w.ID
		} else {
			s.WalletMissing = true
			log.Warn().
				Str("component", "release").
				Str("booking", b.BookingCode).
				Str("wallet_amount", split.Wallet.StringFixed(2)).
				Msg("guest wallet profile not found; wallet portion not credited")
		}
	}

	if split.Card.IsPositive() {
		if err := x.refundCard(ctx, b, split.Card, s); err != nil {
			return nil, err
		}
	}

	s.At = x.nowFn().UTC()
	if err := x.store.Settle(ctx, s); err != nil {
		if errors.Is(err, ErrAlreadyReleased) {
			return nil, err
		}
		if s.CardRefundRef != "" {
			log.Error().Err(err).
				Str("component", "release").
				Str("booking", b.BookingCode).
				Str("refund_ref", s.CardRefundRef).
				Msg("card refund issued but ledger write failed; next run settles with the recorded refund")
		}
		return nil, fmt.Errorf("settle ledger: %w", err)
	}

	x.notify(b, s)
	return s, nil
}

// refundCard runs the card rail.  A refund recorded by an earlier run whose
// ledger write failed is reused instead of calling the gateway again.
func (x *Executor) refundCard(ctx context.Context, b model.Booking, amount decimal.Decimal, s *Settlement) error {
	if b.DepositRefundRef != nil && *b.DepositRefundRef != "" {
		s.CardRefundRef = *b.DepositRefundRef
		log.Info().
			Str("component", "release").
			Str("booking", b.BookingCode).
			Str("refund_ref", s.CardRefundRef).
			Msg("card refund already issued by an earlier run")
		return nil
	}
	ref := b.ChargeRef()
	if ref == "" {
		return ErrMissingChargeRef
	}
	res, err := x.gateway.IssuePartialRefund(ctx, RefundRequest{
		ChargeRef:      ref,
		AmountMinor:    ToMinorUnits(amount),
		IdempotencyKey: IdempotencyKey(b.ID),
		BookingID:      b.ID,
		BookingCode:    b.BookingCode,
	})
	if err != nil {
		return &GatewayError{BookingCode: b.BookingCode, Err: err}
	}
	s.CardRefundRef = res.RefundID

	// Persist the refund id ahead of the ledger transaction.  If that
	// transaction fails, the retry settles against this refund and never
	// reaches the gateway, whatever the deposit looks like by then.
	if err := x.store.RecordCardRefund(ctx, b.ID, res.RefundID); err != nil {
		log.Error().Err(err).
			Str("component", "release").
			Str("booking", b.BookingCode).
			Str("refund_ref", res.RefundID).
			Msg("record card refund failed")
	}
	return nil
}

func (x *Executor) notify(b model.Booking, s *Settlement) {
	if x.notifier == nil {
		return
	}
	credited := s.CreditedWallet()
	ev := queue.DepositReleasedEvent{
		BookingID:    b.ID,
		BookingCode:  b.BookingCode,
		GuestName:    b.GuestName,
		GuestEmail:   b.GuestEmail,
		GuestPhone:   b.GuestPhone,
		Amount:       s.CardAmount.Add(credited).StringFixed(2),
		CardAmount:   s.CardAmount.StringFixed(2),
		WalletAmount: credited.StringFixed(2),
		ReleasedAt:   s.At.Format(time.RFC3339),
	}
	if b.GuestID != nil {
		ev.GuestID = *b.GuestID
	}
	x.notifier.DepositReleased(ev)
}
