// Package gateway adapts the card payment provider to the release engine.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/iliyamo/carshare-deposits/internal/release"
)

// ErrNotConfigured is returned by every refund attempt when no API key was
// supplied.  Wallet-only releases still go through.
var ErrNotConfigured = errors.New("card gateway not configured")

// StripeConfig holds the settings for StripeGateway.
type StripeConfig struct {
	SecretKey string
	Timeout   time.Duration
	// BaseURL overrides the API endpoint; empty means the live API.
	BaseURL string
}

// StripeGateway issues partial refunds against the original payment.
type StripeGateway struct {
	sc *client.API
}

var _ release.CardGateway = (*StripeGateway)(nil)

// NewStripeGateway builds a client with its own backend so the per-call
// timeout and retry settings do not leak into the global stripe package.
// Network retries are disabled: a refund is retried by the next run using the
// same idempotency key.
func NewStripeGateway(cfg StripeConfig) *StripeGateway {
	if cfg.SecretKey == "" {
		return &StripeGateway{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	bc := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: cfg.Timeout},
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
	}
	if cfg.BaseURL != "" {
		bc.URL = stripe.String(strings.TrimRight(cfg.BaseURL, "/"))
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, bc)
	sc := &client.API{}
	sc.Init(cfg.SecretKey, &stripe.Backends{API: backend, Connect: backend, Uploads: backend})
	return &StripeGateway{sc: sc}
}

// IssuePartialRefund refunds req.AmountMinor against the charge.  References
// starting with "pi_" are payment intents; anything else is treated as a
// charge id.
func (g *StripeGateway) IssuePartialRefund(ctx context.Context, req release.RefundRequest) (release.RefundResult, error) {
	if g.sc == nil {
		return release.RefundResult{}, ErrNotConfigured
	}
	if req.ChargeRef == "" {
		return release.RefundResult{}, release.ErrMissingChargeRef
	}
	if req.AmountMinor <= 0 {
		return release.RefundResult{}, fmt.Errorf("refund amount must be positive, got %d", req.AmountMinor)
	}

	params := &stripe.RefundParams{
		Amount: stripe.Int64(req.AmountMinor),
		Reason: stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	if strings.HasPrefix(req.ChargeRef, "pi_") {
		params.PaymentIntent = stripe.String(req.ChargeRef)
	} else {
		params.Charge = stripe.String(req.ChargeRef)
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	params.AddMetadata("booking_id", req.BookingID)
	params.AddMetadata("booking_code", req.BookingCode)
	params.AddMetadata("type", "deposit_release")

	r, err := g.sc.Refunds.New(params)
	if err != nil {
		var se *stripe.Error
		if errors.As(err, &se) {
			return release.RefundResult{}, fmt.Errorf("stripe refund: %s (%s)", se.Msg, se.Code)
		}
		return release.RefundResult{}, fmt.Errorf("stripe refund: %w", err)
	}
	switch r.Status {
	case stripe.RefundStatusFailed, stripe.RefundStatusCanceled:
		return release.RefundResult{}, fmt.Errorf("stripe refund %s is %s", r.ID, r.Status)
	}
	return release.RefundResult{RefundID: r.ID, Status: string(r.Status)}, nil
}
