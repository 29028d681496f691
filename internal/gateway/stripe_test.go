package gateway

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/carshare-deposits/internal/release"
)

type capturedRequest struct {
	path           string
	idempotencyKey string
	form           url.Values
}

func newStripeServer(t *testing.T, status int, body string) (*StripeGateway, *capturedRequest) {
	t.Helper()
	got := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		got.path = r.URL.Path
		got.idempotencyKey = r.Header.Get("Idempotency-Key")
		got.form, _ = url.ParseQuery(string(raw))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	g := NewStripeGateway(StripeConfig{SecretKey: "sk_test_123", Timeout: 5 * time.Second, BaseURL: srv.URL})
	return g, got
}

func TestStripeGateway_RefundsPaymentIntent(t *testing.T) {
	g, got := newStripeServer(t, http.StatusOK, `{"id":"re_123","object":"refund","status":"succeeded","amount":20000}`)

	res, err := g.IssuePartialRefund(context.Background(), release.RefundRequest{
		ChargeRef:      "pi_abc",
		AmountMinor:    20000,
		IdempotencyKey: "deposit-release:b1",
		BookingID:      "b1",
		BookingCode:    "CAR-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "re_123", res.RefundID)
	assert.Equal(t, "succeeded", res.Status)

	assert.Equal(t, "/v1/refunds", got.path)
	assert.Equal(t, "deposit-release:b1", got.idempotencyKey)
	assert.Equal(t, "pi_abc", got.form.Get("payment_intent"))
	assert.Empty(t, got.form.Get("charge"))
	assert.Equal(t, "20000", got.form.Get("amount"))
	assert.Equal(t, "CAR-1", got.form.Get("metadata[booking_code]"))
}

func TestStripeGateway_RefundsCharge(t *testing.T) {
	g, got := newStripeServer(t, http.StatusOK, `{"id":"re_9","object":"refund","status":"pending"}`)

	res, err := g.IssuePartialRefund(context.Background(), release.RefundRequest{ChargeRef: "ch_1", AmountMinor: 1})
	require.NoError(t, err)
	assert.Equal(t, "re_9", res.RefundID)
	assert.Equal(t, "ch_1", got.form.Get("charge"))
	assert.Equal(t, "1", got.form.Get("amount"))
}

func TestStripeGateway_Errors(t *testing.T) {
	g, _ := newStripeServer(t, http.StatusBadRequest,
		`{"error":{"type":"invalid_request_error","code":"charge_already_refunded","message":"Charge has already been refunded."}}`)
	_, err := g.IssuePartialRefund(context.Background(), release.RefundRequest{ChargeRef: "pi_abc", AmountMinor: 100})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already been refunded")

	g, _ = newStripeServer(t, http.StatusOK, `{"id":"re_bad","object":"refund","status":"failed"}`)
	_, err = g.IssuePartialRefund(context.Background(), release.RefundRequest{ChargeRef: "pi_abc", AmountMinor: 100})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed")
}

func TestStripeGateway_Validation(t *testing.T) {
	_, err := NewStripeGateway(StripeConfig{}).IssuePartialRefund(context.Background(), release.RefundRequest{ChargeRef: "pi_1", AmountMinor: 1})
	assert.ErrorIs(t, err, ErrNotConfigured)

	g := NewStripeGateway(StripeConfig{SecretKey: "sk_test"})
	_, err = g.IssuePartialRefund(context.Background(), release.RefundRequest{AmountMinor: 1})
	assert.ErrorIs(t, err, release.ErrMissingChargeRef)
	_, err = g.IssuePartialRefund(context.Background(), release.RefundRequest{ChargeRef: "pi_1"})
	assert.Error(t, err)
}
